// Package idempotency implements the check-and-lock/complete/release
// envelope from spec §4.6 around client-supplied idempotency keys,
// backed by Redis for its atomic SETNX-based locking, grounded on
// LerianStudio-midaz's common/mredis connection wrapper pattern. Unlike
// the teacher's idempotency.GenerateKey (which derives a key from
// operation+amount, hashing out true duplicates with different
// amounts), keys here are supplied by the client and are NOT
// partitioned by endpoint, per spec §4.6's open question #4.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status is the recorded state of a key while a command runs.
type Status string

const (
	StatusInFlight Status = "in_flight"
	StatusComplete Status = "complete"
)

// Record is what's stored under an idempotency key once a command
// has either started or finished processing it.
type Record struct {
	Status       Status          `json:"status"`
	Fingerprint  string          `json:"fingerprint"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`
	ResponseCode int             `json:"responseCode,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

var (
	// ErrInFlight is returned when a second request reuses a key whose
	// first request hasn't finished yet.
	ErrInFlight = errors.New("idempotency key is already in flight")
	// ErrMismatch is returned when a key is replayed with a different
	// request fingerprint than the one it was first locked with.
	ErrMismatch = errors.New("idempotency key reused with a different request")
)

// Store is the Redis-backed lock/complete/release envelope.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func keyFor(idempotencyKey string) string {
	return fmt.Sprintf("idempotency:%s", idempotencyKey)
}

// CheckAndLock atomically claims key for fingerprint. It returns:
//   - (nil, false, nil) when the key is new and now locked by this call
//   - (record, true, nil) when the key already completed — record holds
//     the original response to replay verbatim, regardless of whether
//     fingerprint matches the one the key first completed with (spec
//     §4.6: the cached response replays "regardless of the new
//     request's body")
//   - (nil, false, ErrInFlight) when another request holds the lock
//   - (nil, false, ErrMismatch) when the key is still IN_PROGRESS under
//     a different fingerprint (a different request body racing the
//     first one to completion on the same key)
func (s *Store) CheckAndLock(ctx context.Context, idempotencyKey, fingerprint string) (*Record, bool, error) {
	redisKey := keyFor(idempotencyKey)

	locked := Record{Status: StatusInFlight, Fingerprint: fingerprint, CreatedAt: time.Now().UTC()}
	payload, err := json.Marshal(locked)
	if err != nil {
		return nil, false, fmt.Errorf("marshal lock record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey, payload, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	if ok {
		return nil, false, nil
	}

	existing, err := s.get(ctx, redisKey)
	if err != nil {
		return nil, false, err
	}

	if existing.Status == StatusComplete {
		return existing, true, nil
	}

	if existing.Fingerprint != fingerprint {
		return nil, false, ErrMismatch
	}

	return nil, false, ErrInFlight
}

// Complete records the final response against key. The key's TTL window
// is anchored to the original lock's CreatedAt rather than restarted
// from now, so a key's replay window is always ttl from first use, not
// ttl from whenever the command happened to finish.
func (s *Store) Complete(ctx context.Context, idempotencyKey, fingerprint string, responseCode int, responseBody []byte) error {
	redisKey := keyFor(idempotencyKey)

	createdAt := time.Now().UTC()
	if existing, err := s.get(ctx, redisKey); err == nil && !existing.CreatedAt.IsZero() {
		createdAt = existing.CreatedAt
	}

	record := Record{
		Status:       StatusComplete,
		Fingerprint:  fingerprint,
		ResponseCode: responseCode,
		ResponseBody: responseBody,
		CreatedAt:    createdAt,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal complete record: %w", err)
	}

	remaining := s.ttl - time.Since(createdAt)
	if remaining <= 0 {
		remaining = time.Second
	}

	if err := s.client.Set(ctx, redisKey, payload, remaining).Err(); err != nil {
		return fmt.Errorf("persist idempotency completion: %w", err)
	}
	return nil
}

// Release removes the lock, used when the command failed before
// producing a response so a retry of the same key is allowed to
// proceed rather than being stuck returning ErrInFlight until TTL
// expiry.
func (s *Store) Release(ctx context.Context, idempotencyKey string) error {
	if err := s.client.Del(ctx, keyFor(idempotencyKey)).Err(); err != nil {
		return fmt.Errorf("release idempotency lock: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, redisKey string) (*Record, error) {
	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	return &record, nil
}
