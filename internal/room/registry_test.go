package room

import (
	"context"
	"testing"
	"time"

	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool       { return &b }
func strPtr(s string) *string    { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestValidRoomID(t *testing.T) {
	assert.True(t, ValidRoomID("abc"))
	assert.True(t, ValidRoomID("room_1-XY"))
	assert.False(t, ValidRoomID("ab"))
	assert.False(t, ValidRoomID("has a space"))
	assert.False(t, ValidRoomID(""))
}

func TestEnsure_CreatesWithDefaultEncryption(t *testing.T) {
	reg := NewRegistry(nil, true, time.Hour)
	r := reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	require.NotNil(t, r)
	assert.True(t, r.EncryptionRequired())
}

func TestEnsure_ExplicitEncryptionOverridesDefault(t *testing.T) {
	reg := NewRegistry(nil, true, time.Hour)
	r := reg.Ensure(context.Background(), "room-1", types.RoomOpts{EncryptionRequired: boolPtr(false)})
	assert.False(t, r.EncryptionRequired())
}

func TestEnsure_IsIdempotent(t *testing.T) {
	reg := NewRegistry(nil, false, time.Hour)
	r1 := reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	r2 := reg.Ensure(context.Background(), "room-1", types.RoomOpts{EncryptionRequired: boolPtr(true)})
	assert.Same(t, r1, r2)
	assert.False(t, r2.EncryptionRequired(), "encryption_required only honored on creation")
}

func TestEnsure_OverwritesAdvertisedMetadata(t *testing.T) {
	reg := NewRegistry(nil, false, time.Hour)
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{VideoURL: strPtr("https://a")})
	r := reg.Ensure(context.Background(), "room-1", types.RoomOpts{VideoURL: strPtr("https://b"), InitialTime: floatPtr(42)})
	snap := r.Snapshot()
	assert.Equal(t, "https://b", snap.VideoURL)
	assert.Equal(t, float64(42), snap.InitialTime)
}

func TestLookup_NotFound(t *testing.T) {
	reg := NewRegistry(nil, false, time.Hour)
	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
}

func TestAddRemoveMember_ArmsDeletionTimer(t *testing.T) {
	reg := NewRegistry(nil, false, 10*time.Millisecond)
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	conn := &Connection{}

	reg.AddMember("room-1", conn)
	r, _ := reg.Lookup("room-1")
	assert.Equal(t, 1, r.MemberCount())

	empty := reg.RemoveMember("room-1", conn)
	assert.True(t, empty)
	assert.Equal(t, 0, r.MemberCount())

	// deletion timer fires after the grace period
	require.Eventually(t, func() bool {
		_, ok := reg.Lookup("room-1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestEnsure_CancelsDeletionTimer(t *testing.T) {
	reg := NewRegistry(nil, false, 30*time.Millisecond)
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	conn := &Connection{}
	reg.AddMember("room-1", conn)
	reg.RemoveMember("room-1", conn)

	// reconnect before the grace period elapses cancels deletion
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})

	time.Sleep(60 * time.Millisecond)
	_, ok := reg.Lookup("room-1")
	assert.True(t, ok, "room must survive a reconnect within the grace window")
}

func TestEnsure_ArmsDeletionTimerWhenCreatedWithNoMembers(t *testing.T) {
	// A room created via the control plane and never joined (spec §8 "a
	// room with zero members has an active deletion timer") must not
	// linger in the registry forever.
	reg := NewRegistry(nil, false, 10*time.Millisecond)
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})

	require.Eventually(t, func() bool {
		_, ok := reg.Lookup("room-1")
		return !ok
	}, time.Second, 5*time.Millisecond, "an unjoined room must still be deleted after the empty grace period")
}

func TestDrop_RemovesUnconditionally(t *testing.T) {
	reg := NewRegistry(nil, false, time.Hour)
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	reg.Drop("room-1")
	_, ok := reg.Lookup("room-1")
	assert.False(t, ok)
}

func TestRemoveMember_ReconnectRacesTimer(t *testing.T) {
	// A member rejoining right after the room empties, before the grace
	// timer fires, must leave the room intact once the timer's original
	// deadline has passed (spec §8 boundary behavior).
	reg := NewRegistry(nil, false, 50*time.Millisecond)
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	connA := &Connection{}
	reg.AddMember("room-1", connA)
	reg.RemoveMember("room-1", connA)

	connB := &Connection{}
	reg.Ensure(context.Background(), "room-1", types.RoomOpts{})
	reg.AddMember("room-1", connB)

	time.Sleep(120 * time.Millisecond)
	r, ok := reg.Lookup("room-1")
	require.True(t, ok)
	assert.Equal(t, 1, r.MemberCount())
}
