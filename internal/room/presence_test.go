package room

import (
	"context"
	"testing"
	"time"

	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastPresence_IncludesAllMembers(t *testing.T) {
	reg := NewRegistry(nil, false, time.Hour)
	r := reg.Ensure(context.Background(), "r1", types.RoomOpts{})

	alice := newTestConnection("alice-sub", "Alice")
	bob := newTestConnection("bob-sub", "Bob")
	bob.Identity.Picture = "https://pic/bob"
	reg.AddMember("r1", alice)
	reg.AddMember("r1", bob)

	BroadcastPresence(r)

	aliceEnv := lastEnvelope(t, alice)
	require.Len(t, aliceEnv.Participants, 2)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, aliceEnv.Users)
	assert.Equal(t, "https://pic/bob", aliceEnv.Avatars["bob-sub"])
	require.NotNil(t, aliceEnv.EncryptionRequired)
	assert.False(t, *aliceEnv.EncryptionRequired)
	assert.Empty(t, aliceEnv.From)
	assert.Empty(t, aliceEnv.FromID)

	bobEnv := lastEnvelope(t, bob)
	assert.Len(t, bobEnv.Participants, 2)
}

func TestBroadcastPresence_EmptyRoom(t *testing.T) {
	reg := NewRegistry(nil, false, time.Hour)
	r := reg.Ensure(context.Background(), "r1", types.RoomOpts{})
	BroadcastPresence(r) // must not panic with zero members
}
