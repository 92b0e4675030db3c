// Package mirror implements the Metadata Mirror (C3): a best-effort
// external store for durable room metadata, grounded on the teacher's
// internal/v1/bus.Service. Every call is non-blocking or time-bounded
// and failures of the data operations are logged and swallowed (Ping
// returns its error so readiness can report it) — the mirror is never
// authoritative and never allowed to slow down or fail a caller beyond
// its own bounded timeout (spec §5 "the optional cache is best-effort").
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/khanmassab/flixers-server/internal/logging"
	"github.com/khanmassab/flixers-server/internal/metrics"
	"github.com/khanmassab/flixers-server/internal/types"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// callTimeout bounds every individual Redis round-trip, per spec §5
// ("Control-plane operations have a short time budget (≈5s) for cache
// calls and fall back to the in-memory registry on cache timeout").
const callTimeout = 5 * time.Second

// Service is a Redis-backed implementation of types.Mirror.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewService dials addr and verifies connectivity before returning, so
// that a misconfigured mirror fails fast at startup rather than silently
// degrading every request later.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  callTimeout,
		WriteTimeout: callTimeout,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to metadata mirror: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "metadata-mirror",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateClosed:
				v = 0
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("mirror").Set(v)
		},
	}

	return &Service{client: rdb, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

func roomKey(roomID types.RoomIDType) string {
	return fmt.Sprintf("watchparty:room:%s", roomID)
}

// SaveRoom persists a room snapshot as a JSON-encoded Redis string.
func (s *Service) SaveRoom(ctx context.Context, roomID types.RoomIDType, rec types.RoomSnapshot) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		return nil, s.client.Set(ctx, roomKey(roomID), data, 0).Err()
	})
	return s.swallow(ctx, "save_room", err)
}

// LoadRoom fetches a previously saved snapshot. A cache miss or any
// failure returns (nil, nil) — the caller falls back to the in-memory
// registry, never to an error.
func (s *Service) LoadRoom(ctx context.Context, roomID types.RoomIDType) (*types.RoomSnapshot, error) {
	if s == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := s.cb.Execute(func() (interface{}, error) {
		data, err := s.client.Get(ctx, roomKey(roomID)).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var rec types.RoomSnapshot
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	})
	if err := s.swallow(ctx, "load_room", err); err != nil {
		return nil, nil
	}
	if res == nil {
		return nil, nil
	}
	return res.(*types.RoomSnapshot), nil
}

// UpdatePlaybackState writes the latest advertised video URL/time,
// called opportunistically from sync-state routing (spec §4.4).
func (s *Service) UpdatePlaybackState(ctx context.Context, roomID types.RoomIDType, videoURL string, t float64) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		rec, loadErr := s.loadLocked(ctx, roomID)
		if loadErr != nil && loadErr != redis.Nil {
			return nil, loadErr
		}
		if rec == nil {
			rec = &types.RoomSnapshot{RoomID: roomID}
		}
		rec.VideoURL = videoURL
		rec.InitialTime = t
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		return nil, s.client.Set(ctx, roomKey(roomID), data, 0).Err()
	})
	return s.swallow(ctx, "update_playback_state", err)
}

func (s *Service) loadLocked(ctx context.Context, roomID types.RoomIDType) (*types.RoomSnapshot, error) {
	data, err := s.client.Get(ctx, roomKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec types.RoomSnapshot
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRoom removes the mirrored record.
func (s *Service) DeleteRoom(ctx context.Context, roomID types.RoomIDType) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, roomKey(roomID)).Err()
	})
	return s.swallow(ctx, "delete_room", err)
}

// Ping reports mirror connectivity, used by the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close shuts down the underlying Redis client.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// swallow logs and counts a mirror failure and always returns nil to the
// caller; gobreaker's open-circuit sentinel is logged as a warning rather
// than an error.
func (s *Service) swallow(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	metrics.MirrorFailures.WithLabelValues(op).Inc()
	if err == gobreaker.ErrOpenState {
		logging.Warn(ctx, "metadata mirror circuit open, skipping operation", zap.String("op", op))
		return nil
	}
	logging.Error(ctx, "metadata mirror operation failed", zap.String("op", op), zap.Error(err))
	return nil
}
