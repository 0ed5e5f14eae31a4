package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/revue-tickets/internal/model"
)

func testOrder() *model.Order {
	return &model.Order{
		ID:           "5b1d2a7e-0000-4000-8000-000000000001",
		FirstName:    "Ana",
		LastName:     "Ngata",
		Email:        "ana@example.com",
		Phone:        "021000000",
		SelectedDate: "2025-08-14",
		SelectedSeats: []model.OrderSeat{
			{RowLabel: "A", Number: 1, SeatType: model.SeatVIP},
			{RowLabel: "A", Number: 2, SeatType: model.SeatVIP},
		},
		TotalPriceCents: 9000,
		HolderID:        "sess-1",
	}
}

func newOrderRepo(t *testing.T) (*OrderRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOrderRepo(db, NewSeatRepo(db)), mock
}

func TestOrderRepo_CreateWritesOrderAndSeats(t *testing.T) {
	repo, mock := newOrderRepo(t)
	o := testOrder()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_seats`).
		WithArgs(o.ID, "A", 1, "VIP", o.ID, "A", 2, "VIP").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.False(t, o.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_CreateRollsBackOnSeatInsertFailure(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_seats`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	assert.Error(t, repo.Create(context.Background(), testOrder()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByID(t *testing.T) {
	repo, mock := newOrderRepo(t)
	now := time.Now().UTC()
	cols := []string{"id", "first_name", "last_name", "email", "phone", "is_student", "student_count",
		"selected_date", "total_price_cents", "paid", "holder_id", "checkout_session_id", "created_at", "updated_at"}

	mock.ExpectQuery(`FROM orders WHERE id = \?`).WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("o1", "Ana", "Ngata", "ana@example.com", "021", false, 0,
			"2025-08-14", 4500, false, "sess-1", "cs_test_1", now, now))
	mock.ExpectQuery(`FROM order_seats`).WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "number", "seat_type"}).AddRow("C", 4, "Standard"))

	o, err := repo.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", o.CheckoutSessionID)
	assert.Equal(t, []model.OrderSeat{{RowLabel: "C", Number: 4, SeatType: model.SeatStandard}}, o.SelectedSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByIDNotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)
	mock.ExpectQuery(`FROM orders WHERE id = \?`).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderRepo_MarkPaid(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
		paid    bool
	}{
		{
			name: "commits when every seat is claimed",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE orders SET paid = 1`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE seats SET available = 0`).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectCommit()
			},
			paid: true,
		},
		{
			name: "already paid",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE orders SET paid = 1`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantErr: ErrAlreadyPaid,
		},
		{
			name: "rolls back when a seat was sold elsewhere",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`UPDATE orders SET paid = 1`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`UPDATE seats SET available = 0`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`SELECT row_label, number FROM seats WHERE available = 1`).
					WillReturnRows(sqlmock.NewRows([]string{"row_label", "number"}).AddRow("A", 1))
				mock.ExpectRollback()
			},
			wantErr: ErrConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newOrderRepo(t)
			tt.setup(mock)
			o := testOrder()

			err := repo.MarkPaid(context.Background(), o)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.paid, o.Paid)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrderRepo_MarkPaidReportsTakenSeats(t *testing.T) {
	repo, mock := newOrderRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET paid = 1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE seats SET available = 0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT row_label, number FROM seats`).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "number"}))
	mock.ExpectRollback()

	err := repo.MarkPaid(context.Background(), testOrder())
	var taken *SeatsTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, []string{"A-1", "A-2"}, taken.Seats)
}
