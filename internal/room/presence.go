package room

import (
	"encoding/json"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/types"

	"go.uber.org/zap"
)

// BroadcastPresence sends a presence envelope (C6) to every current
// member of room, reflecting the membership as of the call. Callers must
// invoke this immediately after the membership mutation that changed it
// (spec §5 "Presence is emitted after the membership mutation").
func BroadcastPresence(room *Room) {
	room.mu.RLock()
	participants := make([]types.PresenceParticipant, 0, len(room.members))
	users := make([]string, 0, len(room.members))
	avatars := make(map[string]string)
	targets := make([]*Connection, 0, len(room.members))
	for conn := range room.members {
		participants = append(participants, types.PresenceParticipant{
			ID:      string(conn.Identity.Sub),
			Name:    string(conn.Identity.Name),
			Picture: conn.Identity.Picture,
		})
		users = append(users, string(conn.Identity.Name))
		if conn.Identity.Picture != "" {
			avatars[string(conn.Identity.Sub)] = conn.Identity.Picture
		}
		targets = append(targets, conn)
	}
	enc := room.encryptionRequired
	room.mu.RUnlock()

	env := types.OutboundEnvelope{
		Type:               types.MessageTypePresence,
		Participants:       participants,
		Users:              users,
		Avatars:            avatars,
		EncryptionRequired: &enc,
	}
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(nil, "failed to marshal presence envelope", zap.String("room_id", string(room.ID)), zap.Error(err))
		return
	}
	for _, conn := range targets {
		conn.Enqueue(data)
	}
}
