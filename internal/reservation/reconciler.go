package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/repository"
)

// SeatStore is the durable seat source the reconciler reads from.
type SeatStore interface {
	ListByDate(ctx context.Context, date string) ([]model.Seat, error)
	ListUnavailableByDate(ctx context.Context, date string) ([]model.Seat, error)
	FindByRefs(ctx context.Context, date string, refs []model.SeatRef) ([]model.Seat, error)
}

// OrderStore flips an order to paid together with its seats.
type OrderStore interface {
	MarkPaid(ctx context.Context, o *model.Order) error
	IsPaid(ctx context.Context, id string) (bool, error)
}

// HoldStore is the subset of HoldRegistry the reconciler needs.
type HoldStore interface {
	Acquire(ctx context.Context, key model.SeatKey, holder string, ttl time.Duration) error
	Release(ctx context.Context, key model.SeatKey, holder string) error
	Extend(ctx context.Context, key model.SeatKey, ttl time.Duration) error
	Owners(ctx context.Context, date string, refs []model.SeatRef) (map[model.SeatRef]string, error)
	ListByDate(ctx context.Context, date string) (map[model.SeatRef]string, error)
	Finalize(ctx context.Context, keys ...model.SeatKey) error
}

// ViewStore is the subset of ViewCache the reconciler needs.
type ViewStore interface {
	Get(ctx context.Context, date string) (model.SeatsByRow, error)
	Put(ctx context.Context, date string, seats model.SeatsByRow, ttl time.Duration) error
	Invalidate(ctx context.Context, date string) error
	PatchUnavailable(ctx context.Context, date string, refs []model.SeatRef) error
}

// Policy selects how strictly VerifySeats treats holds.
type Policy int

const (
	// PolicyOwned requires every seat to be held by the requester.  It is
	// used when creating an order and again when the payment succeeds.
	PolicyOwned Policy = iota
	// PolicyOwnedOrFree also accepts seats nobody holds.  It backs the
	// early verify call so a buyer whose hold lapsed across a page reload
	// can still pick the seat again.
	PolicyOwnedOrFree
)

// Options tunes the reconciler's lease and cache lifetimes.
type Options struct {
	HoldTTL time.Duration // initial selection hold
	ViewTTL time.Duration // seat view snapshot
}

// Reconciler produces requester-specific seat views and moves seats from
// held to sold.  The durable stores are authoritative; holds and the view
// cache can be rebuilt from nothing.
type Reconciler struct {
	seats  SeatStore
	orders OrderStore
	holds  HoldStore
	views  ViewStore
	opts   Options
	log    *zap.Logger
}

// NewReconciler wires the reconciler to its collaborators.
func NewReconciler(seats SeatStore, orders OrderStore, holds HoldStore, views ViewStore, opts Options, log *zap.Logger) *Reconciler {
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = 10 * time.Minute
	}
	if opts.ViewTTL <= 0 {
		opts.ViewTTL = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{seats: seats, orders: orders, holds: holds, views: views, opts: opts, log: log}
}

// ListSeatsForRequester returns the seat map of date as seen by requester.
// Seats held by others render unavailable; seats the requester holds
// render selected.  Cache failures only cost latency: the durable store
// is read directly and holds are skipped if Redis is down.
func (r *Reconciler) ListSeatsForRequester(ctx context.Context, date, requester string) (model.SeatsByRow, error) {
	view, err := r.views.Get(ctx, date)
	switch {
	case err == nil:
		sold, err := r.seats.ListUnavailableByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		for _, s := range sold {
			if cached := view.Find(s.Ref()); cached != nil {
				cached.Available = false
				cached.Selected = false
			}
		}
	default:
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn("seat view read failed, using durable store", zap.String("date", date), zap.Error(err))
		}
		view, err = r.rebuild(ctx, date)
		if err != nil {
			return nil, err
		}
	}

	held, err := r.holds.ListByDate(ctx, date)
	if err != nil {
		r.log.Warn("hold overlay skipped", zap.String("date", date), zap.Error(err))
		return view, nil
	}
	for ref, holder := range held {
		s := view.Find(ref)
		if s == nil || !s.Available {
			continue
		}
		if holder == requester {
			s.Selected = true
		} else {
			s.Available = false
			s.Selected = false
		}
	}
	return view, nil
}

// RefreshView rebuilds the cached snapshot of date from the durable store.
func (r *Reconciler) RefreshView(ctx context.Context, date string) (model.SeatsByRow, error) {
	if err := r.views.Invalidate(ctx, date); err != nil {
		return nil, err
	}
	return r.rebuild(ctx, date)
}

// rebuild reads every seat of date and stores the snapshot.  Dates with
// no seats are not cached so that seeding is picked up immediately.
func (r *Reconciler) rebuild(ctx context.Context, date string) (model.SeatsByRow, error) {
	seats, err := r.seats.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	view := model.GroupByRow(seats)
	if len(seats) == 0 {
		return view, nil
	}
	if err := r.views.Put(ctx, date, view, r.opts.ViewTTL); err != nil {
		r.log.Warn("seat view write failed", zap.String("date", date), zap.Error(err))
	}
	return view.Clone(), nil
}

// VerifySeats returns the refs (as "ROW-NUMBER") that fail policy for
// requester.  A seat is always invalid when it does not exist or is no
// longer available.  It never mutates anything; Redis errors surface.
func (r *Reconciler) VerifySeats(ctx context.Context, date string, refs []model.SeatRef, requester string, policy Policy) ([]string, error) {
	invalid := make([]string, 0)
	if date == "" || len(refs) == 0 {
		for _, ref := range refs {
			invalid = append(invalid, ref.String())
		}
		return invalid, nil
	}
	found, err := r.seats.FindByRefs(ctx, date, refs)
	if err != nil {
		return nil, err
	}
	durable := make(map[model.SeatRef]model.Seat, len(found))
	for _, s := range found {
		durable[s.Ref()] = s
	}
	owners, err := r.holds.Owners(ctx, date, refs)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		s, ok := durable[ref]
		if !ok || !s.Available {
			invalid = append(invalid, ref.String())
			continue
		}
		owner := owners[ref]
		switch policy {
		case PolicyOwned:
			// no hold is never ownership, whatever the requester id
			if owner == "" || owner != requester {
				invalid = append(invalid, ref.String())
			}
		case PolicyOwnedOrFree:
			if owner != "" && owner != requester {
				invalid = append(invalid, ref.String())
			}
		}
	}
	return invalid, nil
}

// Select places a hold on one seat for requester after checking the seat
// exists and is still for sale.
func (r *Reconciler) Select(ctx context.Context, key model.SeatKey, requester string) error {
	found, err := r.seats.FindByRefs(ctx, key.Date, []model.SeatRef{key.SeatRef})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return ErrSeatNotFound
	}
	if !found[0].Available {
		return &ConflictError{Seats: []string{key.SeatRef.String()}}
	}
	return r.holds.Acquire(ctx, key, requester, r.opts.HoldTTL)
}

// Unselect releases requester's hold on one seat.
func (r *Reconciler) Unselect(ctx context.Context, key model.SeatKey, requester string) error {
	return r.holds.Release(ctx, key, requester)
}

// ExtendHolds stretches the holds of refs to ttl, typically to cover the
// external checkout.  Holds that already lapsed are reported as a conflict.
func (r *Reconciler) ExtendHolds(ctx context.Context, date string, refs []model.SeatRef, ttl time.Duration) error {
	var lapsed []string
	for _, ref := range refs {
		err := r.holds.Extend(ctx, model.SeatKey{Date: date, SeatRef: ref}, ttl)
		switch {
		case err == nil:
		case errors.Is(err, ErrHoldNotFound):
			lapsed = append(lapsed, ref.String())
		default:
			return err
		}
	}
	if len(lapsed) > 0 {
		return &ConflictError{Seats: lapsed}
	}
	return nil
}

// FinalizeOrder turns a paid order's holds into sold seats.  It reports
// whether this call flipped the order; an order that is already paid is
// a no-op.  When any seat fails strict verification against the holder
// recorded on the order, a *ConflictError is returned and the order
// stays unpaid.
func (r *Reconciler) FinalizeOrder(ctx context.Context, o *model.Order) (bool, error) {
	if o.Paid {
		return false, nil
	}
	refs := o.SeatRefs()
	invalid, err := r.VerifySeats(ctx, o.SelectedDate, refs, o.HolderID, PolicyOwned)
	if err != nil {
		return false, fmt.Errorf("verify seats: %w", err)
	}
	if len(invalid) > 0 {
		// A concurrent finalize of this same order sells the seats to
		// it, which fails verification for every later caller.
		paid, err := r.orders.IsPaid(ctx, o.ID)
		if err != nil {
			return false, fmt.Errorf("check order paid: %w", err)
		}
		if paid {
			o.Paid = true
			return false, nil
		}
		return false, &ConflictError{Seats: invalid}
	}

	// paid flag and seat availability commit together
	if err := r.orders.MarkPaid(ctx, o); err != nil {
		var taken *repository.SeatsTakenError
		switch {
		case errors.Is(err, repository.ErrAlreadyPaid):
			o.Paid = true
			return false, nil
		case errors.As(err, &taken):
			return false, &ConflictError{Seats: taken.Seats}
		default:
			return false, fmt.Errorf("mark order paid: %w", err)
		}
	}

	// From here on the sale is durable; cache cleanup failures are logged
	// and repaired by TTL or the next rebuild.
	keys := make([]model.SeatKey, len(refs))
	for i, ref := range refs {
		keys[i] = model.SeatKey{Date: o.SelectedDate, SeatRef: ref}
	}
	if err := r.holds.Finalize(ctx, keys...); err != nil {
		r.log.Warn("finalize holds failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := r.views.PatchUnavailable(ctx, o.SelectedDate, refs); err != nil {
		r.log.Warn("seat view patch failed, invalidating", zap.String("date", o.SelectedDate), zap.Error(err))
		if err := r.views.Invalidate(ctx, o.SelectedDate); err != nil {
			r.log.Error("seat view invalidate failed", zap.String("date", o.SelectedDate), zap.Error(err))
		}
	}
	r.log.Info("order finalized",
		zap.String("order_id", o.ID),
		zap.String("date", o.SelectedDate),
		zap.Int("seats", len(refs)))
	return true, nil
}
