package model

import "time"

// Order records a buyer's purchase attempt for one performance date.
// The seat list is a snapshot taken at checkout time, not a live reference
// to the seats table.
//
// Fields:
//
//	ID                – opaque identifier (UUID).
//	FirstName …Phone  – buyer contact information.
//	IsStudent         – whether student pricing was claimed.
//	StudentCount      – number of student tickets in the order.
//	SelectedDate      – performance date.
//	SelectedSeats     – seats purchased in this order.
//	TotalPriceCents   – order total in the smallest currency unit.
//	Paid              – flipped to true exactly once by finalize.
//	HolderID          – requester session that held the seats at checkout.
//	CheckoutSessionID – external payment session reference.
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Order struct {
	ID                string      `json:"id"`                // orders.id
	FirstName         string      `json:"firstName"`         // orders.first_name
	LastName          string      `json:"lastName"`          // orders.last_name
	Email             string      `json:"email"`             // orders.email
	Phone             string      `json:"phone"`             // orders.phone
	IsStudent         bool        `json:"isStudent"`         // orders.is_student
	StudentCount      int         `json:"studentCount"`      // orders.student_count
	SelectedDate      string      `json:"selectedDate"`      // orders.selected_date
	SelectedSeats     []OrderSeat `json:"selectedSeats"`     // order_seats rows
	TotalPriceCents   int64       `json:"totalPriceCents"`   // orders.total_price_cents
	Paid              bool        `json:"paid"`              // orders.paid
	HolderID          string      `json:"-"`                 // orders.holder_id
	CheckoutSessionID string      `json:"checkoutSessionId"` // orders.checkout_session_id
	CreatedAt         time.Time   `json:"createdAt"`         // orders.created_at
	UpdatedAt         time.Time   `json:"updatedAt"`         // orders.updated_at
}

// OrderSeat is one line of an order's seat manifest.
type OrderSeat struct {
	RowLabel string   `json:"rowLabel"` // order_seats.row_label
	Number   int      `json:"number"`   // order_seats.number
	SeatType SeatType `json:"seatType"` // order_seats.seat_type
}

// SeatRefs returns the row/number pairs of the order's seats.
func (o *Order) SeatRefs() []SeatRef {
	refs := make([]SeatRef, 0, len(o.SelectedSeats))
	for _, s := range o.SelectedSeats {
		refs = append(refs, SeatRef{RowLabel: s.RowLabel, Number: s.Number})
	}
	return refs
}
