package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"strings"

	"github.com/iliyamo/revue-tickets/internal/model"
)

// SeatRepo is the durable seat store.  It is the source of truth for
// seat existence and permanent availability; the reservation caches are
// always reconciled against it.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `show_date, row_label, number, available, selected, seat_type`

// ListByDate retrieves all seats of a performance date ordered by row
// label then seat number.
func (r *SeatRepo) ListByDate(ctx context.Context, date string) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + `
	           FROM seats
	           WHERE show_date = ?
	           ORDER BY row_label, number`
	return r.query(ctx, q, date)
}

// ListUnavailableByDate retrieves only the seats already sold for a date.
func (r *SeatRepo) ListUnavailableByDate(ctx context.Context, date string) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + `
	           FROM seats
	           WHERE show_date = ? AND available = 0
	           ORDER BY row_label, number`
	return r.query(ctx, q, date)
}

// FindByRefs returns the seats of date matching any of refs.  Seats that
// do not exist are simply absent from the result.
func (r *SeatRepo) FindByRefs(ctx context.Context, date string, refs []model.SeatRef) ([]model.Seat, error) {
	if len(refs) == 0 {
		return []model.Seat{}, nil
	}
	where, args := refFilter(date, refs)
	q := `SELECT ` + seatColumns + ` FROM seats WHERE ` + where + ` ORDER BY row_label, number`
	return r.query(ctx, q, args...)
}

// CountByDate returns how many seats exist for a date.  The seeder uses
// it to skip dates that were already created.
func (r *SeatRepo) CountByDate(ctx context.Context, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE show_date = ?`, date).Scan(&n)
	return n, err
}

// CreateBulk inserts multiple seats in a single statement.  Rows that
// collide with the (show_date, row_label, number) unique key are ignored
// so seeding can be re-run safely.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO seats (show_date, row_label, number, available, selected, seat_type) VALUES `
	args := make([]interface{}, 0, len(seats)*6)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, s.Date, s.RowLabel, s.Number, s.Available, s.Selected, string(s.SeatType))
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// MarkUnavailableTx flips the given seats to available=false and
// selected=false inside tx.  Only seats that are still available are
// touched, so the returned count is the number of seats this call
// actually claimed.  Callers compare it with len(refs) to detect a
// seat that was sold by someone else.
func (r *SeatRepo) MarkUnavailableTx(ctx context.Context, tx *sql.Tx, date string, refs []model.SeatRef) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	where, args := refFilter(date, refs)
	q := `UPDATE seats SET available = 0, selected = 0 WHERE available = 1 AND ` + where
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnavailableAmongTx returns the refs (as "ROW-NUMBER") that are already
// unavailable or missing for date.  It is used after a short update to
// report exactly which seats were lost.
func (r *SeatRepo) UnavailableAmongTx(ctx context.Context, tx *sql.Tx, date string, refs []model.SeatRef) ([]string, error) {
	where, args := refFilter(date, refs)
	rows, err := tx.QueryContext(ctx, `SELECT row_label, number FROM seats WHERE available = 1 AND `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	free := make(map[model.SeatRef]bool, len(refs))
	for rows.Next() {
		var ref model.SeatRef
		if err := rows.Scan(&ref.RowLabel, &ref.Number); err != nil {
			return nil, err
		}
		free[ref] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	taken := make([]string, 0)
	for _, ref := range refs {
		if !free[ref] {
			taken = append(taken, ref.String())
		}
	}
	return taken, nil
}

// refFilter builds "show_date = ? AND ((row_label = ? AND number = ?) OR ...)".
func refFilter(date string, refs []model.SeatRef) (string, []interface{}) {
	parts := make([]string, 0, len(refs))
	args := make([]interface{}, 0, 1+len(refs)*2)
	args = append(args, date)
	for _, ref := range refs {
		parts = append(parts, "(row_label = ? AND number = ?)")
		args = append(args, ref.RowLabel, ref.Number)
	}
	return "show_date = ? AND (" + strings.Join(parts, " OR ") + ")", args
}

func (r *SeatRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		var seatType string
		if err := rows.Scan(&s.Date, &s.RowLabel, &s.Number, &s.Available, &s.Selected, &seatType); err != nil {
			return nil, err
		}
		s.SeatType = model.SeatType(seatType)
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
