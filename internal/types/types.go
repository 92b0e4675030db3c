// Package types defines shared domain types and the interfaces that let the
// room, control-plane, and transport code depend on each other without
// import cycles.
package types

import (
	"context"
	"time"
)

// RoomIDType is an opaque room identifier, 3-64 chars of [A-Za-z0-9_-].
type RoomIDType string

// ClientIDType is the stable subject claim from a verified session token.
type ClientIDType string

// DisplayNameType is the human-readable name shown to other members.
type DisplayNameType string

// Identity is the verified principal behind a connection. The core never
// reads these values from inbound frames; they always come from the
// Token Verifier.
type Identity struct {
	Sub     ClientIDType
	Name    DisplayNameType
	Picture string
}

// RoomOpts carries the optional fields accepted by Registry.Ensure. Only
// EncryptionRequired is honored on first creation; the rest overwrite the
// record's advertised metadata whenever supplied.
type RoomOpts struct {
	EncryptionRequired *bool
	VideoURL           *string
	TitleID            *string
	InitialTime        *float64
}

// TokenValidator verifies a compact signed session token and returns the
// identity it carries. Implemented by internal/auth.Verifier.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*Identity, error)
}

// Mirror is the optional, best-effort external store for durable room
// metadata (C3). Every method must be safe to call with mirror == nil and
// must never block the caller longer than its own bounded timeout.
type Mirror interface {
	// SaveRoom persists room-creation metadata. Best-effort.
	SaveRoom(ctx context.Context, roomID RoomIDType, rec RoomSnapshot) error
	// LoadRoom fetches a previously saved snapshot, or (nil, nil) if absent.
	LoadRoom(ctx context.Context, roomID RoomIDType) (*RoomSnapshot, error)
	// UpdatePlaybackState opportunistically records the latest advertised
	// video URL/time for new-joiner hydration.
	UpdatePlaybackState(ctx context.Context, roomID RoomIDType, videoURL string, t float64) error
	// DeleteRoom removes the mirrored record. Best-effort.
	DeleteRoom(ctx context.Context, roomID RoomIDType) error
	// Ping reports mirror connectivity for readiness checks.
	Ping(ctx context.Context) error
}

// RoomSnapshot is the durable projection of a room record, suitable for
// mirroring to an external cache and for control-plane responses.
type RoomSnapshot struct {
	RoomID              RoomIDType `json:"roomId"`
	EncryptionRequired  bool       `json:"encryptionRequired"`
	VideoURL            string     `json:"videoUrl,omitempty"`
	TitleID             string     `json:"titleId,omitempty"`
	InitialTime         float64    `json:"initialTime,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}
