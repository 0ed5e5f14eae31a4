package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SeatType classifies a seat for pricing and display.
type SeatType string

const (
	SeatStandard SeatType = "Standard"
	SeatVIP      SeatType = "VIP"
)

// Valid reports whether t is one of the known seat types.
func (t SeatType) Valid() bool { return t == SeatStandard || t == SeatVIP }

// Seat describes a physical seat for one performance date.  Seats are
// uniquely identified by their date, row label and seat number.
//
// Fields:
//
//	Date      – performance date (YYYY-MM-DD).
//	RowLabel  – letter designating the row.
//	Number    – number of the seat within the row.
//	Available – false once an order has been finalized against the seat.
//	Selected  – UI hint only; never used for concurrency decisions.
//	SeatType  – Standard or VIP.
type Seat struct {
	Date      string   `json:"date,omitempty"` // seats.show_date
	RowLabel  string   `json:"rowLabel"`       // seats.row_label
	Number    int      `json:"number"`         // seats.number
	Available bool     `json:"available"`      // seats.available
	Selected  bool     `json:"selected"`       // seats.selected
	SeatType  SeatType `json:"seatType"`       // seats.seat_type
}

// Ref returns the row/number pair identifying the seat within its date.
func (s Seat) Ref() SeatRef { return SeatRef{RowLabel: s.RowLabel, Number: s.Number} }

// SeatRef names a seat within a single performance date.
type SeatRef struct {
	RowLabel string `json:"rowLabel"`
	Number   int    `json:"number"`
}

// String renders the ref as "ROW-NUMBER", the identifier reported for
// invalid seats and used inside hold keys.
func (r SeatRef) String() string { return r.RowLabel + "-" + strconv.Itoa(r.Number) }

// ParseSeatRef is the inverse of SeatRef.String.  The number is taken
// after the last dash so that multi-character row labels still parse.
func ParseSeatRef(s string) (SeatRef, error) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return SeatRef{}, fmt.Errorf("malformed seat ref %q", s)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n <= 0 {
		return SeatRef{}, fmt.Errorf("malformed seat number in %q", s)
	}
	return SeatRef{RowLabel: s[:i], Number: n}, nil
}

// SeatKey is the composite identity shared by seats and holds.
type SeatKey struct {
	Date string
	SeatRef
}

// SeatsByRow maps a row label to the seats of that row ordered by number.
type SeatsByRow map[string][]Seat

// GroupByRow builds a SeatsByRow from a flat seat list, preserving the
// input order inside each row.
func GroupByRow(seats []Seat) SeatsByRow {
	out := make(SeatsByRow)
	for _, s := range seats {
		out[s.RowLabel] = append(out[s.RowLabel], s)
	}
	return out
}

// Clone returns a deep copy so overlays never mutate a shared snapshot.
func (m SeatsByRow) Clone() SeatsByRow {
	out := make(SeatsByRow, len(m))
	for row, seats := range m {
		cp := make([]Seat, len(seats))
		copy(cp, seats)
		out[row] = cp
	}
	return out
}

// Find returns a pointer to the seat identified by ref, or nil.
func (m SeatsByRow) Find(ref SeatRef) *Seat {
	seats := m[ref.RowLabel]
	for i := range seats {
		if seats[i].Number == ref.Number {
			return &seats[i]
		}
	}
	return nil
}
