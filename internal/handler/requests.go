package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/revue-tickets/internal/model"
	"github.com/iliyamo/revue-tickets/internal/service"
)

// dateLayout is the performance date format used in paths and bodies.
const dateLayout = "2006-01-02"

// maxSeatsPerRequest caps verify and order bodies.
const maxSeatsPerRequest = 20

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{service.ErrInvalidInput}, args...)...)
}

func validateDate(date string) error {
	if date == "" {
		return invalid("missing date")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return invalid("date must be YYYY-MM-DD")
	}
	return nil
}

// normalizeRefs cleans row labels in place and rejects malformed or
// duplicated seats.
func normalizeRefs(refs []model.SeatRef) error {
	if len(refs) == 0 {
		return invalid("missing seats")
	}
	if len(refs) > maxSeatsPerRequest {
		return invalid("at most %d seats per request", maxSeatsPerRequest)
	}
	seen := make(map[model.SeatRef]struct{}, len(refs))
	for i := range refs {
		refs[i].RowLabel = model.NormalizeRowLabel(refs[i].RowLabel)
		if refs[i].RowLabel == "" || refs[i].Number <= 0 {
			return invalid("invalid seat at position %d", i)
		}
		if _, dup := seen[refs[i]]; dup {
			return invalid("duplicate seat %s", refs[i])
		}
		seen[refs[i]] = struct{}{}
	}
	return nil
}

// seatRequest is the body of select and unselect.
type seatRequest struct {
	Date     string `json:"date"`
	RowLabel string `json:"rowLabel"`
	Number   int    `json:"number"`
}

func (r *seatRequest) Validate() error {
	if err := validateDate(r.Date); err != nil {
		return err
	}
	r.RowLabel = model.NormalizeRowLabel(r.RowLabel)
	if r.RowLabel == "" {
		return invalid("missing rowLabel")
	}
	if r.Number <= 0 {
		return invalid("number must be positive")
	}
	return nil
}

func (r *seatRequest) Key() model.SeatKey {
	return model.SeatKey{Date: r.Date, SeatRef: model.SeatRef{RowLabel: r.RowLabel, Number: r.Number}}
}

// verifyRequest is the body of the early seat verification.
type verifyRequest struct {
	Date  string          `json:"date"`
	Seats []model.SeatRef `json:"seats"`
}

func (r *verifyRequest) Validate() error {
	if err := validateDate(r.Date); err != nil {
		return err
	}
	return normalizeRefs(r.Seats)
}

// createOrderRequest is the checkout form submitted by the buyer.
type createOrderRequest struct {
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	IsStudent       bool              `json:"isStudent"`
	StudentCount    int               `json:"studentCount"`
	SelectedDate    string            `json:"selectedDate"`
	SelectedSeats   []model.OrderSeat `json:"selectedSeats"`
	TotalPriceCents int64             `json:"totalPriceCents"`
}

func (r *createOrderRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	switch {
	case r.FirstName == "":
		return invalid("missing first name")
	case r.LastName == "":
		return invalid("missing last name")
	case r.Email == "" || !strings.Contains(r.Email, "@"):
		return invalid("missing or malformed email")
	case r.Phone == "":
		return invalid("missing phone")
	case r.StudentCount < 0 || r.StudentCount > len(r.SelectedSeats):
		return invalid("student count out of range")
	case !r.IsStudent && r.StudentCount > 0:
		return invalid("student count requires isStudent")
	case r.TotalPriceCents < 0:
		return invalid("total price must not be negative")
	}
	if err := validateDate(r.SelectedDate); err != nil {
		return err
	}
	refs := make([]model.SeatRef, len(r.SelectedSeats))
	for i, s := range r.SelectedSeats {
		if !s.SeatType.Valid() {
			return invalid("invalid seat type %q", s.SeatType)
		}
		refs[i] = model.SeatRef{RowLabel: s.RowLabel, Number: s.Number}
	}
	if err := normalizeRefs(refs); err != nil {
		return err
	}
	for i := range r.SelectedSeats {
		r.SelectedSeats[i].RowLabel = refs[i].RowLabel
	}
	return nil
}

func (r *createOrderRequest) Input() service.CreateOrderInput {
	return service.CreateOrderInput{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		Phone:           r.Phone,
		IsStudent:       r.IsStudent,
		StudentCount:    r.StudentCount,
		SelectedDate:    r.SelectedDate,
		SelectedSeats:   r.SelectedSeats,
		TotalPriceCents: r.TotalPriceCents,
	}
}
