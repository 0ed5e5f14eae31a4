package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/revue-tickets/internal/model"
)

// patchRetries bounds the optimistic WATCH loop in PatchUnavailable.
const patchRetries = 5

// ErrPatchContended is returned when PatchUnavailable kept losing the
// WATCH race.  Callers fall back to Invalidate.
var ErrPatchContended = errors.New("seat view patch contended")

// ViewKey is the Redis key of the seat snapshot for a date.
func ViewKey(date string) string { return "seats:" + date }

// ViewCache stores a JSON SeatsByRow snapshot per performance date.  The
// snapshot is never authoritative; readers must overlay durable
// availability and live holds before showing it.
type ViewCache struct {
	rdb redis.UniversalClient
}

// NewViewCache returns a cache backed by rdb.
func NewViewCache(rdb redis.UniversalClient) *ViewCache {
	return &ViewCache{rdb: rdb}
}

// Get returns the cached snapshot or ErrCacheMiss.
func (c *ViewCache) Get(ctx context.Context, date string) (model.SeatsByRow, error) {
	raw, err := c.rdb.Get(ctx, ViewKey(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, unavailable("read seat view", err)
	}
	var seats model.SeatsByRow
	if err := json.Unmarshal(raw, &seats); err != nil {
		// a corrupt entry is treated as absent and overwritten on rebuild
		return nil, ErrCacheMiss
	}
	return seats, nil
}

// Put replaces the snapshot for date.
func (c *ViewCache) Put(ctx context.Context, date string, seats model.SeatsByRow, ttl time.Duration) error {
	data, err := json.Marshal(seats)
	if err != nil {
		return fmt.Errorf("encode seat view: %w", err)
	}
	if err := c.rdb.Set(ctx, ViewKey(date), data, ttl).Err(); err != nil {
		return unavailable("write seat view", err)
	}
	return nil
}

// Invalidate drops the snapshot so the next read rebuilds it.
func (c *ViewCache) Invalidate(ctx context.Context, date string) error {
	if err := c.rdb.Del(ctx, ViewKey(date)).Err(); err != nil {
		return unavailable("invalidate seat view", err)
	}
	return nil
}

// PatchUnavailable marks refs unavailable and unselected inside the
// cached snapshot, keeping its remaining TTL.  A missing snapshot is left
// alone.  The read-modify-write runs under WATCH so two overlapping
// patches cannot overwrite each other.
func (c *ViewCache) PatchUnavailable(ctx context.Context, date string, refs []model.SeatRef) error {
	key := ViewKey(date)
	patch := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var seats model.SeatsByRow
		if err := json.Unmarshal(raw, &seats); err != nil {
			return err
		}
		for _, ref := range refs {
			if s := seats.Find(ref); s != nil {
				s.Available = false
				s.Selected = false
			}
		}
		data, err := json.Marshal(seats)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true, Mode: "XX"})
			return nil
		})
		if errors.Is(err, redis.Nil) {
			// expired while patching; XX kept us from writing a TTL-less key
			return nil
		}
		return err
	}
	for i := 0; i < patchRetries; i++ {
		err := c.rdb.Watch(ctx, patch, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return unavailable("patch seat view", err)
	}
	return ErrPatchContended
}
