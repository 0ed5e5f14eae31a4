package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/revue-tickets/internal/model"
)

var seatCols = []string{"show_date", "row_label", "number", "available", "selected", "seat_type"}

func TestSeatRepo_ListByDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT show_date, row_label, number, available, selected, seat_type\s+FROM seats\s+WHERE show_date = \?`).
		WithArgs("2025-08-14").
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow("2025-08-14", "A", 1, true, false, "VIP").
			AddRow("2025-08-14", "A", 2, false, false, "VIP"))

	seats, err := NewSeatRepo(db).ListByDate(context.Background(), "2025-08-14")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, model.SeatVIP, seats[0].SeatType)
	assert.False(t, seats[1].Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_FindByRefsBuildsOrFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE show_date = \? AND \(\(row_label = \? AND number = \?\) OR \(row_label = \? AND number = \?\)\)`).
		WithArgs("2025-08-14", "A", 1, "B", 3).
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow("2025-08-14", "A", 1, true, false, "Standard"))

	seats, err := NewSeatRepo(db).FindByRefs(context.Background(), "2025-08-14",
		[]model.SeatRef{{RowLabel: "A", Number: 1}, {RowLabel: "B", Number: 3}})
	require.NoError(t, err)
	assert.Len(t, seats, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_FindByRefsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	seats, err := NewSeatRepo(db).FindByRefs(context.Background(), "2025-08-14", nil)
	require.NoError(t, err)
	assert.Empty(t, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_CreateBulkIgnoresDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT IGNORE INTO seats`).
		WithArgs("2025-08-14", "A", 1, true, false, "VIP", "2025-08-14", "B", 1, true, false, "Standard").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = NewSeatRepo(db).CreateBulk(context.Background(), []model.Seat{
		{Date: "2025-08-14", RowLabel: "A", Number: 1, Available: true, SeatType: model.SeatVIP},
		{Date: "2025-08-14", RowLabel: "B", Number: 1, Available: true, SeatType: model.SeatStandard},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_MarkUnavailableTxOnlyClaimsAvailableSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE seats SET available = 0, selected = 0 WHERE available = 1 AND show_date = \?`).
		WithArgs("2025-08-14", "A", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	n, err := NewSeatRepo(db).MarkUnavailableTx(context.Background(), tx, "2025-08-14", []model.SeatRef{{RowLabel: "A", Number: 1}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
