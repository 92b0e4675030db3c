// Package room implements the Room Registry (C2), Connection Manager (C4),
// Message Router (C5), Presence Broadcaster (C6), and Lifecycle Scheduler
// (C7). It is grounded on the teacher's internal/v1/room and
// internal/v1/transport packages, generalized from a protobuf/SFU video
// room to a JSON watch-party room with no media plane.
package room

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/metrics"
	"github.com/khanmassab/flixers-server/internal/types"

	"go.uber.org/zap"
)

// roomIDPattern matches spec §3's room id shape.
var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// ValidRoomID reports whether id is an acceptable room identifier.
func ValidRoomID(id types.RoomIDType) bool {
	return roomIDPattern.MatchString(string(id))
}

// Room is one in-memory room record, exclusively owned by the Registry.
type Room struct {
	ID types.RoomIDType

	mu                 sync.RWMutex
	encryptionRequired bool
	videoURL           string
	titleID            string
	initialTime        float64
	createdAt          time.Time
	members            map[*Connection]struct{}
	deletionTimer      *time.Timer
}

// EncryptionRequired reports the room's immutable encryption policy.
func (r *Room) EncryptionRequired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.encryptionRequired
}

// Snapshot returns the durable projection of the room's current metadata.
func (r *Room) Snapshot() types.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.RoomSnapshot{
		RoomID:             r.ID,
		EncryptionRequired: r.encryptionRequired,
		VideoURL:           r.videoURL,
		TitleID:            r.titleID,
		InitialTime:        r.initialTime,
		CreatedAt:          r.createdAt,
	}
}

// Members returns a point-in-time snapshot of the room's connections.
func (r *Room) Members() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.members))
	for c := range r.members {
		out = append(out, c)
	}
	return out
}

// MemberCount returns the current member count.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// UpdatePlaybackState records the latest advertised video URL/time, called
// from the router on a sync-state message (spec §4.4).
func (r *Room) UpdatePlaybackState(videoURL string, t float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videoURL = videoURL
	r.initialTime = t
}

func (r *Room) applyOptsLocked(opts types.RoomOpts) {
	if opts.VideoURL != nil {
		r.videoURL = *opts.VideoURL
	}
	if opts.TitleID != nil {
		r.titleID = *opts.TitleID
	}
	if opts.InitialTime != nil {
		r.initialTime = *opts.InitialTime
	}
}

func (r *Room) cancelDeletionTimerLocked() {
	if r.deletionTimer != nil {
		r.deletionTimer.Stop()
		r.deletionTimer = nil
	}
}

// Registry is the single source of truth for room membership (C2), and
// owns the empty-grace deletion timers (C7).
type Registry struct {
	mu                        sync.Mutex
	rooms                     map[types.RoomIDType]*Room
	mirror                    types.Mirror
	defaultEncryptionRequired bool
	emptyGrace                time.Duration
}

// NewRegistry builds an empty Registry. mirror may be nil.
func NewRegistry(mirror types.Mirror, defaultEncryptionRequired bool, emptyGrace time.Duration) *Registry {
	return &Registry{
		rooms:                     make(map[types.RoomIDType]*Room),
		mirror:                    mirror,
		defaultEncryptionRequired: defaultEncryptionRequired,
		emptyGrace:                emptyGrace,
	}
}

// Ensure returns the existing record for roomID, or creates one. Any
// pending deletion timer is cancelled. encryption_required is only
// honored on creation; the other optional fields overwrite whenever
// supplied.
func (reg *Registry) Ensure(ctx context.Context, roomID types.RoomIDType, opts types.RoomOpts) *Room {
	reg.mu.Lock()
	room, exists := reg.rooms[roomID]
	if !exists {
		encRequired := reg.defaultEncryptionRequired
		if opts.EncryptionRequired != nil {
			encRequired = *opts.EncryptionRequired
		}
		room = &Room{
			ID:                 roomID,
			encryptionRequired: encRequired,
			members:            make(map[*Connection]struct{}),
			createdAt:          time.Now().UTC(),
		}
		room.applyOptsLocked(opts)
		reg.rooms[roomID] = room
		// A freshly created room starts with zero members; arm its
		// deletion timer immediately so a room created but never joined
		// (e.g. via the control plane) does not linger forever. AddMember
		// cancels this the moment the first connection attaches.
		room.mu.Lock()
		reg.armDeletionTimerLocked(room)
		room.mu.Unlock()
		reg.mu.Unlock()

		metrics.ActiveRooms.Inc()
		logging.Info(ctx, "room created", zap.String("room_id", string(roomID)), zap.Bool("encryption_required", encRequired))
		if reg.mirror != nil {
			snap := room.Snapshot()
			go func() {
				_ = reg.mirror.SaveRoom(context.Background(), roomID, snap)
			}()
		}
		return room
	}

	room.mu.Lock()
	room.cancelDeletionTimerLocked()
	room.applyOptsLocked(opts)
	room.mu.Unlock()
	reg.mu.Unlock()
	return room
}

// Lookup returns the in-memory record for roomID, if any.
func (reg *Registry) Lookup(roomID types.RoomIDType) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[roomID]
	return room, ok
}

// LookupOrMirror resolves room metadata for the control plane: the local
// registry is authoritative when present; otherwise, if a mirror is
// configured, it is consulted so preview/preflight work across restarts
// or other instances. The mirror never seeds live membership state.
func (reg *Registry) LookupOrMirror(ctx context.Context, roomID types.RoomIDType) (*types.RoomSnapshot, bool) {
	if room, ok := reg.Lookup(roomID); ok {
		snap := room.Snapshot()
		return &snap, true
	}
	if reg.mirror == nil {
		return nil, false
	}
	snap, err := reg.mirror.LoadRoom(ctx, roomID)
	if err != nil || snap == nil {
		return nil, false
	}
	return snap, true
}

// Drop unconditionally removes the record for roomID.
func (reg *Registry) Drop(roomID types.RoomIDType) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return
	}
	room.mu.Lock()
	room.cancelDeletionTimerLocked()
	room.mu.Unlock()
	delete(reg.rooms, roomID)
	reg.mu.Unlock()

	metrics.ActiveRooms.Dec()
	metrics.RoomMembers.DeleteLabelValues(string(roomID))
}

// AddMember attaches conn to roomID's member set and cancels any pending
// deletion timer, satisfying C4's "cancel pending deletion" step. The
// room must already exist (via Ensure).
func (reg *Registry) AddMember(roomID types.RoomIDType, conn *Connection) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[roomID]
	if !ok {
		return nil
	}
	room.mu.Lock()
	room.cancelDeletionTimerLocked()
	room.members[conn] = struct{}{}
	count := len(room.members)
	room.mu.Unlock()

	metrics.RoomMembers.WithLabelValues(string(roomID)).Set(float64(count))
	return room
}

// RemoveMember detaches conn from its room. If the room becomes empty, a
// deletion timer is armed (C7). Returns whether the room is now empty.
func (reg *Registry) RemoveMember(roomID types.RoomIDType, conn *Connection) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[roomID]
	if !ok {
		return true
	}

	room.mu.Lock()
	delete(room.members, conn)
	count := len(room.members)
	empty := count == 0
	if empty {
		reg.armDeletionTimerLocked(room)
	}
	room.mu.Unlock()

	if empty {
		metrics.RoomMembers.DeleteLabelValues(string(roomID))
	} else {
		metrics.RoomMembers.WithLabelValues(string(roomID)).Set(float64(count))
	}
	return empty
}

// armDeletionTimerLocked schedules roomID's deletion after the configured
// grace period. Caller must hold reg.mu and room.mu.
func (reg *Registry) armDeletionTimerLocked(room *Room) {
	room.cancelDeletionTimerLocked()
	roomID := room.ID
	room.deletionTimer = time.AfterFunc(reg.emptyGrace, func() {
		reg.fireDeletion(roomID)
	})
}

// fireDeletion re-checks membership before actually deleting, so a
// reconnect racing the timer is never clobbered.
func (reg *Registry) fireDeletion(roomID types.RoomIDType) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return
	}
	room.mu.Lock()
	if len(room.members) != 0 {
		room.mu.Unlock()
		reg.mu.Unlock()
		return
	}
	room.deletionTimer = nil
	room.mu.Unlock()
	delete(reg.rooms, roomID)
	reg.mu.Unlock()

	metrics.ActiveRooms.Dec()
	metrics.RoomsDeleted.WithLabelValues("empty_grace").Inc()
	logging.Info(context.Background(), "room deleted after empty grace period", zap.String("room_id", string(roomID)))
	if reg.mirror != nil {
		go func() {
			_ = reg.mirror.DeleteRoom(context.Background(), roomID)
		}()
	}
}
