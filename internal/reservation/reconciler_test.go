package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/revue-tickets/internal/model"
)

type fixture struct {
	store *memStore
	holds *HoldRegistry
	views *ViewCache
	rec   *Reconciler
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, rdb := newTestRedis(t)
	store := newMemStore(testDate, map[string]int{"A": 12, "B": 5, "C": 3, "D": 6})
	holds := NewHoldRegistry(rdb)
	views := NewViewCache(rdb)
	rec := NewReconciler(store, store, holds, views, Options{HoldTTL: time.Minute, ViewTTL: 5 * time.Minute}, nil)
	return &fixture{store: store, holds: holds, views: views, rec: rec, mr: mr}
}

func orderFor(id, holder string, refs ...model.SeatRef) *model.Order {
	o := &model.Order{ID: id, SelectedDate: testDate, HolderID: holder}
	for _, r := range refs {
		o.SelectedSeats = append(o.SelectedSeats, model.OrderSeat{RowLabel: r.RowLabel, Number: r.Number, SeatType: model.SeatStandard})
	}
	return o
}

func TestReconciler_ListSeatsForRequesterOverlaysHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rec.Select(ctx, key(testDate, "A", 1), "alice"))
	require.NoError(t, f.rec.Select(ctx, key(testDate, "A", 2), "bob"))

	view, err := f.rec.ListSeatsForRequester(ctx, testDate, "alice")
	require.NoError(t, err)

	mine := view.Find(ref("A", 1))
	assert.True(t, mine.Available)
	assert.True(t, mine.Selected)
	theirs := view.Find(ref("A", 2))
	assert.False(t, theirs.Available)
	assert.False(t, theirs.Selected)
	assert.True(t, view.Find(ref("A", 3)).Available)

	// the cached snapshot never carries a requester overlay
	cached, err := f.views.Get(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, cached.Find(ref("A", 2)).Available)
	assert.False(t, cached.Find(ref("A", 1)).Selected)
}

func TestReconciler_ListSeatsUsesCacheOnSecondRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.ListSeatsForRequester(ctx, testDate, "alice")
	require.NoError(t, err)
	_, err = f.rec.ListSeatsForRequester(ctx, testDate, "bob")
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.listHits)
}

func TestReconciler_ListSeatsFallsBackWhenRedisDown(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	view, err := f.rec.ListSeatsForRequester(context.Background(), testDate, "alice")
	require.NoError(t, err)
	assert.Len(t, view["A"], 12)
}

func TestReconciler_ListSeatsUnknownDateIsEmpty(t *testing.T) {
	f := newFixture(t)
	view, err := f.rec.ListSeatsForRequester(context.Background(), "2030-01-01", "alice")
	require.NoError(t, err)
	assert.Empty(t, view)

	_, err = f.views.Get(context.Background(), "2030-01-01")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestReconciler_VerifySeatsPolicies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rec.Select(ctx, key(testDate, "B", 1), "alice"))
	require.NoError(t, f.rec.Select(ctx, key(testDate, "B", 2), "bob"))
	_, err := f.store.MarkPaidSeat(testDate, ref("B", 3))
	require.NoError(t, err)

	refs := []model.SeatRef{ref("B", 1), ref("B", 2), ref("B", 3), ref("B", 4), ref("Z", 1)}
	tests := []struct {
		name   string
		policy Policy
		want   []string
	}{
		{"owned", PolicyOwned, []string{"B-2", "B-3", "B-4", "Z-1"}},
		{"owned or free", PolicyOwnedOrFree, []string{"B-2", "B-3", "Z-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invalid, err := f.rec.VerifySeats(ctx, testDate, refs, "alice", tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, invalid)
		})
	}
}

func TestReconciler_VerifySeatsWithoutDate(t *testing.T) {
	f := newFixture(t)
	invalid, err := f.rec.VerifySeats(context.Background(), "", []model.SeatRef{ref("A", 1)}, "alice", PolicyOwned)
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1"}, invalid)
}

func TestReconciler_SelectAndUnselect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.rec.Select(ctx, key(testDate, "Z", 1), "alice"), ErrSeatNotFound)
	require.NoError(t, f.rec.Select(ctx, key(testDate, "C", 1), "alice"))
	assert.ErrorIs(t, f.rec.Select(ctx, key(testDate, "C", 1), "bob"), ErrConflict)
	assert.ErrorIs(t, f.rec.Unselect(ctx, key(testDate, "C", 1), "bob"), ErrForbidden)
	require.NoError(t, f.rec.Unselect(ctx, key(testDate, "C", 1), "alice"))
	assert.ErrorIs(t, f.rec.Unselect(ctx, key(testDate, "C", 1), "alice"), ErrHoldNotFound)
}

func TestReconciler_AbandonedHoldFreesSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rec.Select(ctx, key(testDate, "C", 1), "alice"))
	f.mr.FastForward(61 * time.Second)
	assert.NoError(t, f.rec.Select(ctx, key(testDate, "C", 1), "bob"))
}

func TestReconciler_ExtendHoldsReportsLapsedSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rec.Select(ctx, key(testDate, "A", 5), "alice"))

	err := f.rec.ExtendHolds(ctx, testDate, []model.SeatRef{ref("A", 5), ref("A", 6)}, 30*time.Minute)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"A-6"}, conflict.Seats)
}

func TestReconciler_FinalizeHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rec.Select(ctx, key(testDate, "A", 12), "alice"))

	// warm the cache so the finalize has something to patch
	_, err := f.rec.ListSeatsForRequester(ctx, testDate, "alice")
	require.NoError(t, err)

	o := orderFor("order-1", "alice", ref("A", 12))
	done, err := f.rec.FinalizeOrder(ctx, o)
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, o.Paid)
	assert.False(t, f.store.available(key(testDate, "A", 12)))

	owner, err := f.holds.Owner(ctx, key(testDate, "A", 12))
	require.NoError(t, err)
	assert.Empty(t, owner)

	cached, err := f.views.Get(ctx, testDate)
	require.NoError(t, err)
	assert.False(t, cached.Find(ref("A", 12)).Available)

	assert.ErrorIs(t, f.rec.Select(ctx, key(testDate, "A", 12), "bob"), ErrConflict)
}

func TestReconciler_FinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rec.Select(ctx, key(testDate, "B", 5), "alice"))

	o := orderFor("order-2", "alice", ref("B", 5))
	done, err := f.rec.FinalizeOrder(ctx, o)
	require.NoError(t, err)
	require.True(t, done)

	done, err = f.rec.FinalizeOrder(ctx, o)
	require.NoError(t, err)
	assert.False(t, done)

	// a copy loaded before the first finalize must not report a conflict
	stale := orderFor("order-2", "alice", ref("B", 5))
	done, err = f.rec.FinalizeOrder(ctx, stale)
	require.NoError(t, err)
	assert.False(t, done)
	assert.True(t, stale.Paid)
	assert.False(t, f.store.available(key(testDate, "B", 5)))
}

func TestReconciler_StaleOrderIsNeverPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rec.Select(ctx, key(testDate, "D", 4), "alice"))
	alice := orderFor("order-x", "alice", ref("D", 4))

	f.mr.FastForward(61 * time.Second)
	require.NoError(t, f.rec.Select(ctx, key(testDate, "D", 4), "bob"))
	bob := orderFor("order-y", "bob", ref("D", 4))
	done, err := f.rec.FinalizeOrder(ctx, bob)
	require.NoError(t, err)
	require.True(t, done)

	done, err = f.rec.FinalizeOrder(ctx, alice)
	assert.False(t, done)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"D-4"}, conflict.Seats)
	assert.False(t, alice.Paid)
}

func TestReconciler_FinalizeWithoutHolderNeedsHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := orderFor("o-anon", "", ref("A", 1))
	done, err := f.rec.FinalizeOrder(ctx, o)
	assert.False(t, done)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A-1"}, conflict.Seats)
	assert.False(t, o.Paid)

	paid, err := f.store.IsPaid(ctx, "o-anon")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestReconciler_ConcurrentFinalizeSellsSeatOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprintf("round %d", i), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			for _, n := range []int{1, 2, 3} {
				require.NoError(t, f.rec.Select(ctx, key(testDate, "B", n), "alice"))
			}
			orders := []*model.Order{
				orderFor("tab-1", "alice", ref("B", 1), ref("B", 2)),
				orderFor("tab-2", "alice", ref("B", 1), ref("B", 3)),
			}

			var wg sync.WaitGroup
			done := make([]bool, len(orders))
			errs := make([]error, len(orders))
			for j, o := range orders {
				wg.Add(1)
				go func(j int, o *model.Order) {
					defer wg.Done()
					done[j], errs[j] = f.rec.FinalizeOrder(ctx, o)
				}(j, o)
			}
			wg.Wait()

			require.NotEqual(t, done[0], done[1], "exactly one order may take B-1")
			for j := range orders {
				if done[j] {
					assert.NoError(t, errs[j])
					continue
				}
				var conflict *ConflictError
				assert.ErrorAs(t, errs[j], &conflict)
				assert.False(t, orders[j].Paid)
			}
		})
	}
}

func TestReconciler_ViewConsistentAfterFinalize(t *testing.T) {
	for _, warm := range []bool{true, false} {
		name := "cache miss"
		if warm {
			name = "cache hit"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.rec.Select(ctx, key(testDate, "C", 2), "alice"))
			if warm {
				_, err := f.rec.ListSeatsForRequester(ctx, testDate, "carol")
				require.NoError(t, err)
			}
			_, err := f.rec.FinalizeOrder(ctx, orderFor("o", "alice", ref("C", 2)))
			require.NoError(t, err)

			for _, who := range []string{"alice", "carol"} {
				view, err := f.rec.ListSeatsForRequester(ctx, testDate, who)
				require.NoError(t, err)
				assert.False(t, view.Find(ref("C", 2)).Available, who)
			}
		})
	}
}

func TestReconciler_StaleCacheIsCorrectedByDurableOverlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.ListSeatsForRequester(ctx, testDate, "alice")
	require.NoError(t, err)
	// sold behind the cache's back
	_, err = f.store.MarkPaidSeat(testDate, ref("A", 7))
	require.NoError(t, err)

	view, err := f.rec.ListSeatsForRequester(ctx, testDate, "alice")
	require.NoError(t, err)
	assert.False(t, view.Find(ref("A", 7)).Available)
}
