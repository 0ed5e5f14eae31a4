package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/revue-tickets/internal/model"
)

// OrderRepo is the durable order store.  Orders and their seat manifests
// live in the orders and order_seats tables.  All timestamp fields are
// assumed to be stored in UTC.
type OrderRepo struct {
	db    *sql.DB
	seats *SeatRepo
}

// NewOrderRepo returns a new OrderRepo bound to the given database.  The
// seat repository is used by MarkPaid to flip seat availability in the
// same transaction as the paid flag.
func NewOrderRepo(db *sql.DB, seats *SeatRepo) *OrderRepo {
	return &OrderRepo{db: db, seats: seats}
}

const orderColumns = `id, first_name, last_name, email, phone, is_student, student_count,
                      selected_date, total_price_cents, paid, holder_id, checkout_session_id,
                      created_at, updated_at`

// Create inserts a new order and its seat manifest in one transaction.
// The caller supplies the ID; CreatedAt/UpdatedAt are populated from the
// values written.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC()
	const q = `INSERT INTO orders (id, first_name, last_name, email, phone, is_student, student_count,
	                               selected_date, total_price_cents, paid, holder_id, checkout_session_id,
	                               created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		o.ID, o.FirstName, o.LastName, o.Email, o.Phone, o.IsStudent, o.StudentCount,
		o.SelectedDate, o.TotalPriceCents, o.Paid, o.HolderID, nullString(o.CheckoutSessionID),
		now, now,
	); err != nil {
		return err
	}
	if len(o.SelectedSeats) > 0 {
		query := `INSERT INTO order_seats (order_id, row_label, number, seat_type) VALUES `
		args := make([]interface{}, 0, len(o.SelectedSeats)*4)
		for i, s := range o.SelectedSeats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, o.ID, s.RowLabel, s.Number, string(s.SeatType))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

// GetByID loads a single order with its seats.  ErrOrderNotFound is
// returned when no order has the given ID.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

// GetByCheckoutSession loads the order created for an external payment
// session.  It is used by the payment webhook, which only knows the
// session reference.
func (r *OrderRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_session_id = ?`, sessionID)
}

// List returns all orders, newest first, with their seats.
func (r *OrderRepo) List(ctx context.Context) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := make([]*model.Order, 0)
	index := make(map[string]*model.Order)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		index[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	// Populate seats for all orders in a single query
	ids := make([]interface{}, 0, len(orders))
	placeholders := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		placeholders = append(placeholders, "?")
	}
	seatQuery := `SELECT order_id, row_label, number, seat_type
	              FROM order_seats
	              WHERE order_id IN (` + strings.Join(placeholders, ",") + `)
	              ORDER BY order_id, row_label, number`
	srows, err := r.db.QueryContext(ctx, seatQuery, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var orderID, seatType string
		var s model.OrderSeat
		if err := srows.Scan(&orderID, &s.RowLabel, &s.Number, &seatType); err != nil {
			return nil, err
		}
		s.SeatType = model.SeatType(seatType)
		if o, ok := index[orderID]; ok {
			o.SelectedSeats = append(o.SelectedSeats, s)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaid sets paid=true on the order and flips every seat in its
// manifest to unavailable, atomically.  The paid flag is guarded by
// paid=0 so only one caller ever wins; losers get ErrAlreadyPaid.  When a
// seat was already sold the transaction is rolled back and a
// *SeatsTakenError listing the lost seats is returned.
func (r *OrderRepo) MarkPaid(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET paid = 1, updated_at = ? WHERE id = ? AND paid = 0`,
		time.Now().UTC(), o.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyPaid
	}
	refs := uniqueRefs(o.SeatRefs())
	claimed, err := r.seats.MarkUnavailableTx(ctx, tx, o.SelectedDate, refs)
	if err != nil {
		return err
	}
	if claimed != int64(len(refs)) {
		taken, err := r.seats.UnavailableAmongTx(ctx, tx, o.SelectedDate, refs)
		if err != nil {
			return err
		}
		return &SeatsTakenError{Seats: taken}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	o.Paid = true
	return nil
}

// IsPaid reads the current paid flag of an order straight from the
// database.
func (r *OrderRepo) IsPaid(ctx context.Context, id string) (bool, error) {
	var paid bool
	err := r.db.QueryRowContext(ctx, `SELECT paid FROM orders WHERE id = ?`, id).Scan(&paid)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	return paid, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s rowScanner) (*model.Order, error) {
	var o model.Order
	var session sql.NullString
	if err := s.Scan(
		&o.ID, &o.FirstName, &o.LastName, &o.Email, &o.Phone, &o.IsStudent, &o.StudentCount,
		&o.SelectedDate, &o.TotalPriceCents, &o.Paid, &o.HolderID, &session,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if session.Valid {
		o.CheckoutSessionID = session.String
	}
	o.SelectedSeats = []model.OrderSeat{}
	return &o, nil
}

func (r *OrderRepo) getOne(ctx context.Context, q string, arg interface{}) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	const seatQ = `SELECT row_label, number, seat_type
	               FROM order_seats
	               WHERE order_id = ?
	               ORDER BY row_label, number`
	rows, err := r.db.QueryContext(ctx, seatQ, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.OrderSeat
		var seatType string
		if err := rows.Scan(&s.RowLabel, &s.Number, &seatType); err != nil {
			return nil, err
		}
		s.SeatType = model.SeatType(seatType)
		o.SelectedSeats = append(o.SelectedSeats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

func uniqueRefs(refs []model.SeatRef) []model.SeatRef {
	seen := make(map[model.SeatRef]struct{}, len(refs))
	out := make([]model.SeatRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
