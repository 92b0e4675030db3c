package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	svc, err := NewService(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestSaveAndLoadRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rec := types.RoomSnapshot{
		RoomID:             "r1",
		EncryptionRequired: true,
		VideoURL:           "https://example.com/v",
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, svc.SaveRoom(ctx, "r1", rec))

	loaded, err := svc.LoadRoom(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rec.RoomID, loaded.RoomID)
	assert.True(t, loaded.EncryptionRequired)
	assert.Equal(t, rec.VideoURL, loaded.VideoURL)
}

func TestLoadRoom_Miss(t *testing.T) {
	svc := newTestService(t)
	loaded, err := svc.LoadRoom(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestUpdatePlaybackState_CreatesRecordIfMissing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdatePlaybackState(ctx, "r2", "https://example.com/ep2", 42.5))

	loaded, err := svc.LoadRoom(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "https://example.com/ep2", loaded.VideoURL)
	assert.Equal(t, 42.5, loaded.InitialTime)
}

func TestUpdatePlaybackState_PreservesOtherFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveRoom(ctx, "r3", types.RoomSnapshot{
		RoomID:             "r3",
		EncryptionRequired: true,
	}))
	require.NoError(t, svc.UpdatePlaybackState(ctx, "r3", "https://example.com/ep3", 10))

	loaded, err := svc.LoadRoom(ctx, "r3")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.EncryptionRequired)
	assert.Equal(t, "https://example.com/ep3", loaded.VideoURL)
}

func TestDeleteRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveRoom(ctx, "r4", types.RoomSnapshot{RoomID: "r4"}))
	require.NoError(t, svc.DeleteRoom(ctx, "r4"))

	loaded, err := svc.LoadRoom(ctx, "r4")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestNilService_IsNoop(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	assert.NoError(t, svc.SaveRoom(ctx, "r5", types.RoomSnapshot{}))
	loaded, err := svc.LoadRoom(ctx, "r5")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, svc.UpdatePlaybackState(ctx, "r5", "u", 1))
	assert.NoError(t, svc.DeleteRoom(ctx, "r5"))
	assert.NoError(t, svc.Ping(ctx))
	assert.NoError(t, svc.Close())
}

func TestPing(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.Ping(context.Background()))
}
