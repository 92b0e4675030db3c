package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/khanmassab/flixers-server/internal/room"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct{}

func (fakeValidator) ValidateToken(ctx context.Context, tokenString string) (*types.Identity, error) {
	return &types.Identity{Sub: "alice-sub", Name: "Alice"}, nil
}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r, fakeValidator{})
	return r
}

func TestCreateRoom_Defaults(t *testing.T) {
	reg := room.NewRegistry(nil, false, time.Hour)
	svc := NewService(reg, false)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp RoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RoomID)
	assert.False(t, resp.EncryptionRequired)
	require.NotNil(t, resp.User)
	assert.Equal(t, "alice-sub", resp.User.ID)
}

func TestCreateRoom_ExtractsTitleID(t *testing.T) {
	reg := room.NewRegistry(nil, false, time.Hour)
	svc := NewService(reg, false)
	router := newTestRouter(svc)

	body, _ := json.Marshal(CreateRoomRequest{VideoURL: strPtr("https://example.com/watch/abc123")})
	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp RoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.TitleID)
}

func TestJoinPreflight_NotFound(t *testing.T) {
	reg := room.NewRegistry(nil, false, time.Hour)
	svc := NewService(reg, false)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/rooms/does-not-exist/join", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinPreflight_DoesNotAttachMember(t *testing.T) {
	reg := room.NewRegistry(nil, false, time.Hour)
	reg.Ensure(context.Background(), "r1", types.RoomOpts{})
	svc := NewService(reg, false)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/rooms/r1/join", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	r, ok := reg.Lookup("r1")
	require.True(t, ok)
	assert.Equal(t, 0, r.MemberCount())
}

func TestPreview_InvalidRoomID(t *testing.T) {
	reg := room.NewRegistry(nil, false, time.Hour)
	svc := NewService(reg, false)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/rooms/ab/preview", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_RequireAuth(t *testing.T) {
	reg := room.NewRegistry(nil, false, time.Hour)
	svc := NewService(reg, false)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/rooms", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func strPtr(s string) *string { return &s }
