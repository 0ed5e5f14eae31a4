// Package seed creates the seat layout of each performance date.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/model"
)

// Layout describes the theatre floor.  Rows are labelled A, B, ... and
// seats are numbered from 1.  VIPRows lists the labels sold as VIP.
type Layout struct {
	Rows        int
	SeatsPerRow int
	VIPRows     []string
}

// DefaultLayout is the house used when no flags override it.
var DefaultLayout = Layout{Rows: 12, SeatsPerRow: 20, VIPRows: []string{"A", "B"}}

// Validate rejects layouts that would produce no seats.
func (l Layout) Validate() error {
	if l.Rows <= 0 || l.SeatsPerRow <= 0 {
		return fmt.Errorf("layout needs at least one row and one seat per row")
	}
	for _, r := range l.VIPRows {
		idx, ok := model.RowIndex(r)
		if !ok || idx >= l.Rows {
			return fmt.Errorf("vip row %q is outside the layout", r)
		}
	}
	return nil
}

// Seats builds every seat of the layout for date, available and unselected.
func (l Layout) Seats(date string) []model.Seat {
	vip := make(map[string]bool, len(l.VIPRows))
	for _, r := range l.VIPRows {
		vip[model.NormalizeRowLabel(r)] = true
	}
	out := make([]model.Seat, 0, l.Rows*l.SeatsPerRow)
	for i := 0; i < l.Rows; i++ {
		row := model.RowLabel(i)
		typ := model.SeatStandard
		if vip[row] {
			typ = model.SeatVIP
		}
		for n := 1; n <= l.SeatsPerRow; n++ {
			out = append(out, model.Seat{Date: date, RowLabel: row, Number: n, Available: true, SeatType: typ})
		}
	}
	return out
}

// Store is the part of the seat repository the seeder writes through.
type Store interface {
	CountByDate(ctx context.Context, date string) (int, error)
	CreateBulk(ctx context.Context, seats []model.Seat) error
}

// Run seeds each date that has no seats yet.  Dates that already have
// seats are skipped so sold seats are never reset.  It returns the number
// of dates seeded.
func Run(ctx context.Context, store Store, dates []string, layout Layout, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := layout.Validate(); err != nil {
		return 0, err
	}
	seeded := 0
	for _, date := range dates {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return seeded, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
		}
		n, err := store.CountByDate(ctx, date)
		if err != nil {
			return seeded, fmt.Errorf("count seats for %s: %w", date, err)
		}
		if n > 0 {
			log.Info("date already seeded", zap.String("date", date), zap.Int("seats", n))
			continue
		}
		seats := layout.Seats(date)
		if err := store.CreateBulk(ctx, seats); err != nil {
			return seeded, fmt.Errorf("insert seats for %s: %w", date, err)
		}
		log.Info("seeded date", zap.String("date", date), zap.Int("seats", len(seats)))
		seeded++
	}
	return seeded, nil
}
