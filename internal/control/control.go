// Package control implements the Control Plane (C8): the three HTTP
// request/response operations that sit alongside the streaming endpoint
// — create room, join preflight, preview — grounded on the teacher's
// session/room handlers.go pattern but reworked onto the Registry instead
// of a protobuf room type.
package control

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/middleware"
	"github.com/khanmassab/flixers-server/internal/room"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service serves the control-plane HTTP handlers.
type Service struct {
	registry                  *room.Registry
	defaultEncryptionRequired bool
}

// NewService builds a Service.
func NewService(registry *room.Registry, defaultEncryptionRequired bool) *Service {
	return &Service{registry: registry, defaultEncryptionRequired: defaultEncryptionRequired}
}

// RegisterRoutes wires the control-plane endpoints onto router. Every
// route here requires a verified session, per spec §6.
func (s *Service) RegisterRoutes(router gin.IRouter, validator types.TokenValidator) {
	authed := router.Group("/rooms", middleware.RequireAuth(validator))
	authed.POST("", s.CreateRoom)
	authed.POST("/:id/join", s.JoinPreflight)
	authed.GET("/:id/preview", s.Preview)
}

// CreateRoomRequest is the optional body accepted by POST /rooms.
type CreateRoomRequest struct {
	EncryptionRequired *bool    `json:"encryption_required,omitempty"`
	VideoURL           *string  `json:"video_url,omitempty"`
	VideoTime          *float64 `json:"video_time,omitempty"`
}

// RoomResponse is the shape returned by all three control-plane
// operations.
type RoomResponse struct {
	RoomID             string    `json:"room_id"`
	EncryptionRequired bool      `json:"encryption_required"`
	VideoURL           string    `json:"video_url,omitempty"`
	TitleID            string    `json:"title_id,omitempty"`
	InitialTime        float64   `json:"initial_time,omitempty"`
	User               *UserInfo `json:"user,omitempty"`
}

// UserInfo is the verified caller, echoed back for client convenience.
type UserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

var titleIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/title/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`/watch/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]+)`),
}

// extractTitleID pulls a title id out of a video URL by pattern match.
// Absence is not an error (spec §4.7).
func extractTitleID(videoURL string) string {
	for _, p := range titleIDPatterns {
		if m := p.FindStringSubmatch(videoURL); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

// generateRoomID mints a short opaque id within the room id charset.
func generateRoomID() types.RoomIDType {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return types.RoomIDType(id[:12])
}

func toResponse(snap types.RoomSnapshot, identity *types.Identity) RoomResponse {
	resp := RoomResponse{
		RoomID:             string(snap.RoomID),
		EncryptionRequired: snap.EncryptionRequired,
		VideoURL:           snap.VideoURL,
		TitleID:            snap.TitleID,
		InitialTime:        snap.InitialTime,
	}
	if identity != nil {
		resp.User = &UserInfo{ID: string(identity.Sub), Name: string(identity.Name), Picture: identity.Picture}
	}
	return resp
}

// CreateRoom handles POST /rooms.
func (s *Service) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	roomID := generateRoomID()
	opts := types.RoomOpts{EncryptionRequired: req.EncryptionRequired}
	if req.VideoURL != nil {
		opts.VideoURL = req.VideoURL
		if titleID := extractTitleID(*req.VideoURL); titleID != "" {
			opts.TitleID = &titleID
		}
	}
	if req.VideoTime != nil {
		opts.InitialTime = req.VideoTime
	}

	r := s.registry.Ensure(c.Request.Context(), roomID, opts)
	logging.Info(c.Request.Context(), "room created via control plane", zap.String("room_id", string(roomID)))
	c.JSON(http.StatusCreated, toResponse(r.Snapshot(), middleware.Identity(c)))
}

// JoinPreflight handles POST /rooms/{id}/join. It is read-only: it never
// attaches the caller to the room (spec §4.7 "not a state transition").
func (s *Service) JoinPreflight(c *gin.Context) {
	s.lookup(c)
}

// Preview handles GET /rooms/{id}/preview.
func (s *Service) Preview(c *gin.Context) {
	s.lookup(c)
}

func (s *Service) lookup(c *gin.Context) {
	roomID := types.RoomIDType(c.Param("id"))
	if !room.ValidRoomID(roomID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	snap, ok := s.registry.LookupOrMirror(c.Request.Context(), roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, toResponse(*snap, middleware.Identity(c)))
}
