package room

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/metrics"
	"github.com/khanmassab/flixers-server/internal/ratelimit"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub is the Connection Manager (C4): it authenticates and upgrades
// incoming streaming requests, attaches them to a room, and runs the
// per-connection reader and heartbeat activities. Grounded on the
// teacher's transport.Hub, stripped of SFU/redis-pubsub plumbing this
// spec has no use for.
type Hub struct {
	registry        *Registry
	router          *Router
	validator       types.TokenValidator
	limiter         *ratelimit.Limiter
	pingInterval    time.Duration
	activityTimeout time.Duration
	allowedOrigins  []string
}

// NewHub builds a Hub. limiter may be nil, in which case connection
// attempts are never throttled.
func NewHub(registry *Registry, router *Router, validator types.TokenValidator, limiter *ratelimit.Limiter, pingInterval, activityTimeout time.Duration, allowedOrigins []string) *Hub {
	return &Hub{
		registry:        registry,
		router:          router,
		validator:       validator,
		limiter:         limiter,
		pingInterval:    pingInterval,
		activityTimeout: activityTimeout,
		allowedOrigins:  allowedOrigins,
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return true
		}
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// ServeWs authenticates the request and upgrades it to a streaming
// connection. Missing or invalid room id/token cause an immediate close
// without a payload (spec §6): the request is aborted with a bare status
// and no JSON body, and the socket is never upgraded.
func (h *Hub) ServeWs(c *gin.Context) {
	ctx := c.Request.Context()

	roomID := types.RoomIDType(c.Query("roomId"))
	token := c.Query("token")
	if roomID == "" || token == "" || !ValidRoomID(roomID) {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	identity, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		logging.Warn(ctx, "websocket authentication failed", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	if h.limiter != nil && !h.limiter.AllowConnection(c, string(identity.Sub)) {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConnection(socket, roomID, *identity, h.pingInterval)
	conn.conn.SetPongHandler(func(string) error {
		conn.TouchActivity()
		conn.SetAwaitingPong(false)
		return nil
	})

	roomRec := h.registry.Ensure(ctx, roomID, types.RoomOpts{})
	h.registry.AddMember(roomID, conn)
	metrics.ActiveConnections.Inc()
	BroadcastPresence(roomRec)

	logging.Info(ctx, "connection attached",
		zap.String("room_id", string(roomID)),
		zap.String("user_id", string(identity.Sub)))

	go conn.writePump()
	go h.readPump(conn, roomRec)
	go h.heartbeatMonitor(conn, roomRec)
}

// readPump decodes inbound text frames and hands valid ones to the
// router. Every read (successful or not) refreshes last_activity_ts and
// clears awaiting_pong, since any inbound byte demonstrates liveness.
func (h *Hub) readPump(conn *Connection, roomRec *Room) {
	defer h.terminate(conn, roomRec, "read_closed")

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}
		conn.TouchActivity()
		conn.SetAwaitingPong(false)

		if messageType != websocket.TextMessage {
			continue
		}

		var msg types.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.MessagesRelayed.WithLabelValues("unknown", "dropped").Inc()
			continue
		}
		h.router.Route(conn, roomRec, msg)
	}
}

// heartbeatMonitor implements the liveness loop from spec §4.3.
func (h *Hub) heartbeatMonitor(conn *Connection, roomRec *Room) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.closed:
			return
		case now := <-ticker.C:
			if now.Sub(conn.LastActivity()) > h.activityTimeout {
				h.terminate(conn, roomRec, "activity_timeout")
				return
			}
			if conn.AwaitingPong() {
				h.terminate(conn, roomRec, "pong_timeout")
				return
			}

			conn.SetAwaitingPong(true)
			payload, err := json.Marshal(types.OutboundEnvelope{
				Type: types.MessageTypePing,
				Ts:   now.UnixMilli(),
			})
			if err == nil {
				conn.Enqueue(payload)
			}
		}
	}
}

// terminate tears down conn (idempotent), removes it from its room,
// broadcasts presence, and arms a deletion timer if the room is now
// empty (handled inside Registry.RemoveMember).
func (h *Hub) terminate(conn *Connection, roomRec *Room, reason string) {
	conn.Terminate()
	h.registry.RemoveMember(roomRec.ID, conn)
	BroadcastPresence(roomRec)
	metrics.ActiveConnections.Dec()
	metrics.HeartbeatTerminations.WithLabelValues(reason).Inc()
}
