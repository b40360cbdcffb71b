package core

import (
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	l := testLedger()
	b, err := EncodeSnapshot(l)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PricePerTon != 5 || len(got.Customers) != 2 {
		t.Fatalf("unexpected ledger %+v", got)
	}
	if got.Customers[0].Months[0].TotalPrice != 50 {
		t.Fatalf("month data lost: %+v", got.Customers[0].Months[0])
	}
}

func TestDecodeSnapshotRejectsBadShapes(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing users", `{"pricePerTon": 5}`},
		{"bad price", `{"users": [], "pricePerTon": 0}`},
		{"nameless user", `{"users": [{"id": "a", "fullName": "", "meterNumber": 1, "months": []}], "pricePerTon": 5}`},
		{"missing meter", `{"users": [{"id": "a", "fullName": "A", "months": []}], "pricePerTon": 5}`},
		{"missing months", `{"users": [{"id": "a", "fullName": "A", "meterNumber": 1}], "pricePerTon": 5}`},
		{"duplicate meter", `{"users": [
			{"id": "a", "fullName": "A", "meterNumber": 1, "months": []},
			{"id": "b", "fullName": "B", "meterNumber": 1, "months": []}
		], "pricePerTon": 5}`},
		{"negative reading", `{"users": [{"id": "a", "fullName": "A", "meterNumber": 1, "months": [
			{"month": "x", "oldReading": -1, "newReading": 0, "consumption": 0, "totalPrice": 0, "status": "paid", "date": "2025-01-01T00:00:00Z"}
		]}], "pricePerTon": 5}`},
		{"unknown status", `{"users": [{"id": "a", "fullName": "A", "meterNumber": 1, "months": [
			{"month": "x", "oldReading": 0, "newReading": 1, "consumption": 1, "totalPrice": 5, "status": "maybe", "date": "2025-01-01T00:00:00Z"}
		]}], "pricePerTon": 5}`},
	}
	for _, tc := range cases {
		if _, err := DecodeSnapshot([]byte(tc.data)); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("%s: expected ErrInvalidSnapshot, got %v", tc.name, err)
		}
	}
}
