package core

import (
	"encoding/json"
	"fmt"
)

// EncodeSnapshot serializes the whole ledger to its canonical JSON form, the
// same shape the import endpoint accepts back.
func EncodeSnapshot(l *Ledger) ([]byte, error) {
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses and shape-checks a full ledger snapshot. Any
// structural problem rejects the whole document; a snapshot import is
// all-or-nothing.
func DecodeSnapshot(data []byte) (*Ledger, error) {
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if l.Customers == nil {
		return nil, fmt.Errorf("%w: missing users array", ErrInvalidSnapshot)
	}
	if l.PricePerTon <= 0 {
		return nil, fmt.Errorf("%w: pricePerTon must be positive", ErrInvalidSnapshot)
	}
	seen := map[int]bool{}
	for i := range l.Customers {
		u := &l.Customers[i]
		if u.FullName == "" {
			return nil, fmt.Errorf("%w: user %d has no name", ErrInvalidSnapshot, i)
		}
		if u.MeterNumber <= 0 {
			return nil, fmt.Errorf("%w: user %q has no meter number", ErrInvalidSnapshot, u.FullName)
		}
		if seen[u.MeterNumber] {
			return nil, fmt.Errorf("%w: duplicate meter %d", ErrInvalidSnapshot, u.MeterNumber)
		}
		seen[u.MeterNumber] = true
		if u.Months == nil {
			return nil, fmt.Errorf("%w: user %q has no months array", ErrInvalidSnapshot, u.FullName)
		}
		for j, m := range u.Months {
			if m.OldReading < 0 || m.NewReading < 0 {
				return nil, fmt.Errorf("%w: user %q month %d has negative readings", ErrInvalidSnapshot, u.FullName, j)
			}
			if m.Status != Paid && m.Status != Unpaid {
				return nil, fmt.Errorf("%w: user %q month %d has status %q", ErrInvalidSnapshot, u.FullName, j, m.Status)
			}
		}
	}
	return &l, nil
}
