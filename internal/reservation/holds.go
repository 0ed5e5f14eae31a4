package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/revue-tickets/internal/model"
)

const holdPrefix = "seatlock:"

// HoldKey renders the Redis key of a seat hold: seatlock:{date}:{row}-{number}.
func HoldKey(k model.SeatKey) string {
	return holdPrefix + k.Date + ":" + k.SeatRef.String()
}

// acquireScript creates the hold when absent.  When the caller already
// owns it the TTL is refreshed instead.  Returns 1 on success and 0 when
// another holder owns the seat.
var acquireScript = redis.NewScript(`
	if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
		return 1
	end
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
		return 1
	end
	return 0
`)

// releaseScript deletes the hold only if it belongs to ARGV[1].
// Returns 1 when deleted, 0 when absent and -1 when owned by someone else.
var releaseScript = redis.NewScript(`
	local owner = redis.call('GET', KEYS[1])
	if not owner then
		return 0
	end
	if owner ~= ARGV[1] then
		return -1
	end
	redis.call('DEL', KEYS[1])
	return 1
`)

// HoldRegistry keeps one exclusive, self-expiring hold per seat.  Expiry
// is left entirely to Redis TTLs; there is no sweeper.
type HoldRegistry struct {
	rdb redis.UniversalClient
}

// NewHoldRegistry returns a registry backed by rdb.
func NewHoldRegistry(rdb redis.UniversalClient) *HoldRegistry {
	return &HoldRegistry{rdb: rdb}
}

// Acquire takes the hold for holder.  Re-acquiring a hold the holder
// already owns extends it to ttl.
func (h *HoldRegistry) Acquire(ctx context.Context, key model.SeatKey, holder string, ttl time.Duration) error {
	n, err := acquireScript.Run(ctx, h.rdb, []string{HoldKey(key)}, holder, ttl.Milliseconds()).Int()
	if err != nil {
		return unavailable("acquire hold", err)
	}
	if n != 1 {
		return &ConflictError{Seats: []string{key.SeatRef.String()}}
	}
	return nil
}

// Release drops the hold if holder owns it.  It never deletes a hold
// owned by someone else.
func (h *HoldRegistry) Release(ctx context.Context, key model.SeatKey, holder string) error {
	n, err := releaseScript.Run(ctx, h.rdb, []string{HoldKey(key)}, holder).Int()
	if err != nil {
		return unavailable("release hold", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return ErrHoldNotFound
	default:
		return ErrForbidden
	}
}

// Extend refreshes the hold's TTL without checking ownership.
// ErrHoldNotFound is returned when the hold already expired.
func (h *HoldRegistry) Extend(ctx context.Context, key model.SeatKey, ttl time.Duration) error {
	ok, err := h.rdb.PExpire(ctx, HoldKey(key), ttl).Result()
	if err != nil {
		return unavailable("extend hold", err)
	}
	if !ok {
		return ErrHoldNotFound
	}
	return nil
}

// Owner returns the current holder of key, or "" when the seat is not held.
func (h *HoldRegistry) Owner(ctx context.Context, key model.SeatKey) (string, error) {
	v, err := h.rdb.Get(ctx, HoldKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", unavailable("read hold", err)
	}
	return v, nil
}

// IsOwnedBy reports whether holder currently owns key.  An unheld seat
// has no owner, not even the empty holder.  Batch checks go through
// Owners instead, which is what the reconciler uses.
func (h *HoldRegistry) IsOwnedBy(ctx context.Context, key model.SeatKey, holder string) (bool, error) {
	owner, err := h.Owner(ctx, key)
	if err != nil {
		return false, err
	}
	return owner != "" && owner == holder, nil
}

// Owners looks up the holders of many seats of one date in a single MGET.
// Seats without a live hold are absent from the result.
func (h *HoldRegistry) Owners(ctx context.Context, date string, refs []model.SeatRef) (map[model.SeatRef]string, error) {
	out := make(map[model.SeatRef]string, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = HoldKey(model.SeatKey{Date: date, SeatRef: ref})
	}
	vals, err := h.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("read holds", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[refs[i]] = s
		}
	}
	return out, nil
}

// Finalize deletes the holds unconditionally.  It is used once the seats
// are sold and ownership no longer matters.
func (h *HoldRegistry) Finalize(ctx context.Context, keys ...model.SeatKey) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = HoldKey(k)
	}
	if err := h.rdb.Del(ctx, names...).Err(); err != nil {
		return unavailable("finalize holds", err)
	}
	return nil
}

// ListByDate returns every live hold of a date keyed by seat.  Keys are
// discovered with SCAN so a large keyspace never blocks Redis.
func (h *HoldRegistry) ListByDate(ctx context.Context, date string) (map[model.SeatRef]string, error) {
	prefix := holdPrefix + date + ":"
	var keys []string
	iter := h.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan holds", err)
	}
	out := make(map[model.SeatRef]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := h.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("read holds", err)
	}
	for i, v := range vals {
		holder, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		ref, err := model.ParseSeatRef(strings.TrimPrefix(keys[i], prefix))
		if err != nil {
			continue
		}
		out[ref] = holder
	}
	return out, nil
}
