package types

import "encoding/json"

// MessageType enumerates the inbound/outbound frame tags the router
// recognizes. Unknown tags are dropped, not rejected with an error —
// see spec §4.4 and §7 (policy violations are silent).
type MessageType string

const (
	MessageTypePing            MessageType = "ping"
	MessageTypePong             MessageType = "pong"
	MessageTypeKeyExchange      MessageType = "key-exchange"
	MessageTypeEncrypted        MessageType = "encrypted"
	MessageTypeSystem           MessageType = "system"
	MessageTypeEpisodeChanged   MessageType = "episode-changed"
	MessageTypeSyncRequest      MessageType = "sync-request"
	MessageTypeSyncState        MessageType = "sync-state"
	MessageTypeState            MessageType = "state"
	MessageTypeChat              MessageType = "chat"
	MessageTypeTyping            MessageType = "typing"
	MessageTypePresence          MessageType = "presence"
)

// InboundMessage is the loosely-typed shape of any frame a client sends.
// Fields not relevant to a given Type are simply left zero; the router
// picks which ones it reads based on Type. This mirrors the "dynamic
// objects over the wire" design note: a single struct keyed by Type
// rather than one Go type per wire shape, because inbound frames are
// heterogeneous and forward-compatible fields must not break decoding.
type InboundMessage struct {
	Type MessageType `json:"type"`

	// chat / system
	Text string `json:"text,omitempty"`

	// key-exchange
	PublicKey string `json:"publicKey,omitempty"`
	Curve     string `json:"curve,omitempty"`

	// encrypted
	Ciphertext  string `json:"ciphertext,omitempty"`
	IV          string `json:"iv,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Salt        string `json:"salt,omitempty"`
	Alg         string `json:"alg,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`

	// episode-changed
	URL   string `json:"url,omitempty"`
	Seq   *int64 `json:"seq,omitempty"`
	Title string `json:"title,omitempty"`

	// sync-state
	Time   *float64 `json:"time,omitempty"`
	Paused *bool    `json:"paused,omitempty"`

	// state (plaintext, open rooms only)
	Payload json.RawMessage `json:"payload,omitempty"`

	// typing
	Active *bool `json:"active,omitempty"`

	// ts is copied to the outbound envelope when present; when it is
	// absent the router substitutes the server's wall clock. A ts that is
	// not an integer fails decoding of the whole frame.
	Ts *int64 `json:"ts,omitempty"`
}

// OutboundEnvelope is what the router/presence broadcaster actually put on
// the wire. It reuses the same flat shape as InboundMessage plus sender
// attribution and server timestamps, and is marshaled directly to JSON —
// omitempty keeps it looking like the narrow per-type envelopes in spec
// §4.4 rather than one bloated struct.
type OutboundEnvelope struct {
	Type MessageType `json:"type"`

	From   string `json:"from,omitempty"`
	FromID string `json:"fromId,omitempty"`
	Ts     int64  `json:"ts,omitempty"`

	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`

	PublicKey string `json:"publicKey,omitempty"`
	Curve     string `json:"curve,omitempty"`

	Ciphertext  string `json:"ciphertext,omitempty"`
	IV          string `json:"iv,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Salt        string `json:"salt,omitempty"`
	Alg         string `json:"alg,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`

	Seq   *int64 `json:"seq,omitempty"`
	Title string `json:"title,omitempty"`

	Time   *float64 `json:"time,omitempty"`
	Paused *bool    `json:"paused,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`

	Active *bool `json:"active,omitempty"`
	Avatar string `json:"avatar,omitempty"`

	// presence-only fields
	Participants       []PresenceParticipant `json:"participants,omitempty"`
	Users              []string               `json:"users,omitempty"`
	Avatars            map[string]string      `json:"avatars,omitempty"`
	EncryptionRequired *bool                  `json:"encryption_required,omitempty"`
}

// PresenceParticipant is one entry in a presence envelope's member list.
type PresenceParticipant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}
