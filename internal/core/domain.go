package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Paid   PaymentStatus = "paid"
	Unpaid PaymentStatus = "unpaid"

	// DefaultPricePerTon seeds a brand-new ledger.
	DefaultPricePerTon = 5.0
)

type (
	PaymentStatus string

	// Month is one billing period of a customer. Consumption and TotalPrice
	// are derived values; they are only recomputed through the accounting
	// functions, never mutated directly.
	Month struct {
		Label       string        `json:"month"`
		OldReading  float64       `json:"oldReading"`
		NewReading  float64       `json:"newReading"`
		Consumption float64       `json:"consumption"`
		TotalPrice  float64       `json:"totalPrice"`
		Status      PaymentStatus `json:"status"`
		Date        time.Time     `json:"date"`
	}

	Customer struct {
		ID               string    `json:"id"`
		FullName         string    `json:"fullName"`
		MeterNumber      int       `json:"meterNumber"`
		Phone            string    `json:"phone,omitempty"`
		RegistrationDate string    `json:"registrationDate"`
		Months           []Month   `json:"months"`
		CreatedAt        time.Time `json:"date"`
	}

	// Ledger is the whole persisted dataset: the customers and the price
	// applied to newly created billing periods.
	Ledger struct {
		Customers   []Customer `json:"users"`
		PricePerTon float64    `json:"pricePerTon"`
	}
)

var (
	ErrDuplicateMeter     = errors.New("meter number already in use")
	ErrInvalidReading     = errors.New("invalid reading")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrNotFound           = errors.New("customer not found")
	ErrMonthExists        = errors.New("billing month already exists")
	ErrLastMonth          = errors.New("cannot delete the last remaining month")
	ErrInvalidSnapshot    = errors.New("invalid ledger snapshot")
	ErrRollbackConfirm    = errors.New("reading below previous value requires confirmation")
	ErrStorageUnavailable = errors.New("durable storage unavailable")
	ErrEmptyName          = errors.New("empty customer name")
)

// Toggle flips paid and unpaid.
func (s PaymentStatus) Toggle() PaymentStatus {
	if s == Paid {
		return Unpaid
	}
	return Paid
}

// ParseStatus classifies free-form status text from imports. It recognizes
// the canonical values plus the Arabic labels legacy exports carry; anything
// unrecognized is unpaid.
func ParseStatus(s string) PaymentStatus {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case string(Paid), "مدفوعة":
		return Paid
	default:
		return Unpaid
	}
}

// Period returns the calendar (year, month 0-11) this billing period covers.
func (m Month) Period() (year, monthIndex int) {
	return m.Date.UTC().Year(), int(m.Date.UTC().Month()) - 1
}

// LastMonth returns a pointer to the customer's most recent billing period.
// A well-formed customer always has at least one month.
func (c *Customer) LastMonth() *Month {
	if len(c.Months) == 0 {
		return nil
	}
	return &c.Months[len(c.Months)-1]
}

// HasPeriod reports whether the customer already has a billing period for the
// given calendar (year, monthIndex) pair.
func (c *Customer) HasPeriod(year, monthIndex int) bool {
	for _, m := range c.Months {
		y, mi := m.Period()
		if y == year && mi == monthIndex {
			return true
		}
	}
	return false
}

// UnpaidCount returns the number of unpaid billing periods.
func (c *Customer) UnpaidCount() int {
	n := 0
	for _, m := range c.Months {
		if m.Status != Paid {
			n++
		}
	}
	return n
}

func (c *Customer) Validate() error {
	if strings.TrimSpace(c.FullName) == "" {
		return ErrEmptyName
	}
	if c.MeterNumber <= 0 {
		return errors.New("meter number must be positive")
	}
	if len(c.Months) == 0 {
		return errors.New("customer must have at least one month")
	}
	return nil
}

// FindByID returns the customer with the given id, or nil.
func (l *Ledger) FindByID(id string) *Customer {
	for i := range l.Customers {
		if l.Customers[i].ID == id {
			return &l.Customers[i]
		}
	}
	return nil
}

// FindByMeter returns the customer holding the meter number, or nil.
func (l *Ledger) FindByMeter(meter int) *Customer {
	for i := range l.Customers {
		if l.Customers[i].MeterNumber == meter {
			return &l.Customers[i]
		}
	}
	return nil
}

// MeterInUse reports whether the meter number belongs to a customer other
// than excludeID. EditCustomer passes its own id so a customer keeps its
// meter on edit.
func (l *Ledger) MeterInUse(meter int, excludeID string) bool {
	for i := range l.Customers {
		if l.Customers[i].ID != excludeID && l.Customers[i].MeterNumber == meter {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so snapshots handed to async persistence are
// isolated from later mutations.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{PricePerTon: l.PricePerTon}
	out.Customers = make([]Customer, len(l.Customers))
	for i, c := range l.Customers {
		cc := c
		cc.Months = make([]Month, len(c.Months))
		copy(cc.Months, c.Months)
		out.Customers[i] = cc
	}
	return out
}

// NewLedger returns an empty ledger with the default price.
func NewLedger() *Ledger {
	return &Ledger{Customers: []Customer{}, PricePerTon: DefaultPricePerTon}
}
