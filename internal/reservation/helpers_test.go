package reservation

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/repository"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func key(date, row string, n int) model.SeatKey {
	return model.SeatKey{Date: date, SeatRef: model.SeatRef{RowLabel: row, Number: n}}
}

func ref(row string, n int) model.SeatRef { return model.SeatRef{RowLabel: row, Number: n} }

// memStore is an in-memory seat and order store.  MarkPaid mirrors the
// MySQL transaction: the paid guard and the seat flips succeed or fail
// together.
type memStore struct {
	mu       sync.Mutex
	seats    map[model.SeatKey]*model.Seat
	paid     map[string]bool
	listErr  error
	listHits int
}

func newMemStore(date string, rows map[string]int) *memStore {
	m := &memStore{seats: map[model.SeatKey]*model.Seat{}, paid: map[string]bool{}}
	for row, n := range rows {
		for i := 1; i <= n; i++ {
			m.seats[key(date, row, i)] = &model.Seat{
				Date: date, RowLabel: row, Number: i, Available: true, SeatType: model.SeatStandard,
			}
		}
	}
	return m
}

func (m *memStore) ListByDate(_ context.Context, date string) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listHits++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.filter(date, func(model.Seat) bool { return true }), nil
}

func (m *memStore) ListUnavailableByDate(_ context.Context, date string) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(date, func(s model.Seat) bool { return !s.Available }), nil
}

func (m *memStore) FindByRefs(_ context.Context, date string, refs []model.SeatRef) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Seat{}
	for _, r := range refs {
		if s, ok := m.seats[model.SeatKey{Date: date, SeatRef: r}]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) MarkPaid(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paid[o.ID] {
		return repository.ErrAlreadyPaid
	}
	var taken []string
	for _, r := range o.SeatRefs() {
		s, ok := m.seats[model.SeatKey{Date: o.SelectedDate, SeatRef: r}]
		if !ok || !s.Available {
			taken = append(taken, r.String())
		}
	}
	if len(taken) > 0 {
		return &repository.SeatsTakenError{Seats: taken}
	}
	for _, r := range o.SeatRefs() {
		s := m.seats[model.SeatKey{Date: o.SelectedDate, SeatRef: r}]
		s.Available = false
		s.Selected = false
	}
	m.paid[o.ID] = true
	o.Paid = true
	return nil
}

func (m *memStore) IsPaid(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paid[id], nil
}

// MarkPaidSeat sells one seat directly, bypassing any order.
func (m *memStore) MarkPaidSeat(date string, r model.SeatRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seats[model.SeatKey{Date: date, SeatRef: r}]
	if !ok {
		return false, repository.ErrConflict
	}
	was := s.Available
	s.Available = false
	return was, nil
}

func (m *memStore) available(k model.SeatKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seats[k].Available
}

// filter returns seats of date ordered by row then number.
func (m *memStore) filter(date string, keep func(model.Seat) bool) []model.Seat {
	out := []model.Seat{}
	for _, s := range m.seats {
		if s.Date == date && keep(*s) {
			out = append(out, *s)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b model.Seat) bool {
	if a.RowLabel != b.RowLabel {
		return a.RowLabel < b.RowLabel
	}
	return a.Number < b.Number
}
