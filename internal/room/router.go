package room

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/metrics"
	"github.com/khanmassab/flixers-server/internal/types"

	"go.uber.org/zap"
)

// Router applies the message-type policy table (C5) to decoded inbound
// frames, grounded on the teacher's room.Router type switch but keyed by
// a JSON type tag instead of a protobuf oneof.
type Router struct {
	mirror types.Mirror
}

// NewRouter builds a Router. mirror may be nil.
func NewRouter(mirror types.Mirror) *Router {
	return &Router{mirror: mirror}
}

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

func resolveTs(ts *int64) int64 {
	if ts != nil {
		return *ts
	}
	return time.Now().UnixMilli()
}

func (rt *Router) relayed(msgType types.MessageType) {
	metrics.MessagesRelayed.WithLabelValues(string(msgType), "relayed").Inc()
}

func (rt *Router) dropped(msgType types.MessageType, reason string) {
	metrics.MessagesRelayed.WithLabelValues(string(msgType), "dropped").Inc()
	metrics.PolicyViolations.WithLabelValues(string(msgType), reason).Inc()
}

// Route dispatches a single already-decoded inbound message from sender
// in room, per the policy table in spec §4.4.
func (rt *Router) Route(sender *Connection, room *Room, msg types.InboundMessage) {
	switch msg.Type {
	case types.MessageTypePing:
		rt.replyPong(sender)

	case types.MessageTypePong:
		// awaiting_pong already cleared unconditionally by the reader.

	case types.MessageTypeKeyExchange:
		if !nonEmpty(msg.PublicKey) || !nonEmpty(msg.Curve) {
			rt.dropped(msg.Type, "malformed")
			return
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:      msg.Type,
			PublicKey: msg.PublicKey,
			Curve:     msg.Curve,
			From:      string(sender.Identity.Name),
			FromID:    string(sender.Identity.Sub),
		})

	case types.MessageTypeEncrypted:
		if !nonEmpty(msg.Ciphertext) || !nonEmpty(msg.IV) {
			rt.dropped(msg.Type, "malformed")
			return
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:        msg.Type,
			Ciphertext:  msg.Ciphertext,
			IV:          msg.IV,
			Tag:         msg.Tag,
			Salt:        msg.Salt,
			Alg:         msg.Alg,
			RecipientID: msg.RecipientID,
			From:        string(sender.Identity.Name),
			FromID:      string(sender.Identity.Sub),
			Ts:          resolveTs(msg.Ts),
		})

	case types.MessageTypeSystem:
		if !nonEmpty(msg.Text) {
			rt.dropped(msg.Type, "malformed")
			return
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type: msg.Type,
			Text: msg.Text,
			URL:  msg.URL,
			Ts:   resolveTs(msg.Ts),
		})

	case types.MessageTypeEpisodeChanged:
		if !nonEmpty(msg.URL) {
			rt.dropped(msg.Type, "malformed")
			return
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:   msg.Type,
			URL:    msg.URL,
			Seq:    msg.Seq,
			Title:  msg.Title,
			From:   string(sender.Identity.Name),
			FromID: string(sender.Identity.Sub),
			Ts:     resolveTs(msg.Ts),
		})

	case types.MessageTypeSyncRequest:
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:   msg.Type,
			From:   string(sender.Identity.Name),
			FromID: string(sender.Identity.Sub),
			Ts:     resolveTs(msg.Ts),
		})

	case types.MessageTypeSyncState:
		if !nonEmpty(msg.URL) || msg.Time == nil {
			rt.dropped(msg.Type, "malformed")
			return
		}
		room.UpdatePlaybackState(msg.URL, *msg.Time)
		if rt.mirror != nil {
			go func() {
				_ = rt.mirror.UpdatePlaybackState(context.Background(), room.ID, msg.URL, *msg.Time)
			}()
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:   msg.Type,
			Time:   msg.Time,
			Paused: msg.Paused,
			URL:    msg.URL,
			From:   string(sender.Identity.Name),
			FromID: string(sender.Identity.Sub),
			Ts:     resolveTs(msg.Ts),
		})

	case types.MessageTypeState:
		if room.EncryptionRequired() {
			rt.dropped(msg.Type, "encrypted_room_plaintext_blocked")
			return
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:    msg.Type,
			Payload: msg.Payload,
		})

	case types.MessageTypeChat:
		if room.EncryptionRequired() {
			rt.dropped(msg.Type, "encrypted_room_plaintext_blocked")
			return
		}
		if !nonEmpty(msg.Text) {
			rt.dropped(msg.Type, "malformed")
			return
		}
		rt.broadcastAll(room, types.OutboundEnvelope{
			Type:   msg.Type,
			Text:   msg.Text,
			From:   string(sender.Identity.Name),
			FromID: string(sender.Identity.Sub),
			Avatar: sender.Identity.Picture,
			Ts:     resolveTs(msg.Ts),
		})

	case types.MessageTypeTyping:
		if room.EncryptionRequired() {
			rt.dropped(msg.Type, "encrypted_room_plaintext_blocked")
			return
		}
		rt.broadcastExcludeSender(room, sender, types.OutboundEnvelope{
			Type:   msg.Type,
			From:   string(sender.Identity.Name),
			FromID: string(sender.Identity.Sub),
			Active: msg.Active,
			Ts:     resolveTs(msg.Ts),
		})

	default:
		rt.dropped(msg.Type, "unknown_type")
	}
}

func (rt *Router) replyPong(sender *Connection) {
	data, err := json.Marshal(types.OutboundEnvelope{
		Type: types.MessageTypePong,
		Ts:   time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	sender.Enqueue(data)
}

func (rt *Router) broadcastExcludeSender(room *Room, sender *Connection, env types.OutboundEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(nil, "failed to marshal outbound envelope", zap.String("type", string(env.Type)), zap.Error(err))
		return
	}
	for _, conn := range room.Members() {
		if conn == sender {
			continue
		}
		conn.Enqueue(data)
	}
	rt.relayed(env.Type)
}

func (rt *Router) broadcastAll(room *Room, env types.OutboundEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(nil, "failed to marshal outbound envelope", zap.String("type", string(env.Type)), zap.Error(err))
		return
	}
	for _, conn := range room.Members() {
		conn.Enqueue(data)
	}
	rt.relayed(env.Type)
}
