package importer

import (
	"testing"
	"time"

	"waterledger/internal/core"
)

var importNow = time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

func TestBuildNormalizesAndChains(t *testing.T) {
	rows := []TransactionRow{
		{Meter: 101, FullName: "Ahmed", Phone: "0600000000", Year: 2025, Month: "janv.", OldReading: 100, NewReading: 110, PricePerTon: 5, Status: "paid"},
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "2", OldReading: 110, NewReading: 125, PricePerTon: 5, Status: "مدفوعة"},
	}
	l, rep := Build(rows, nil, 5, importNow)

	if rep.Customers != 1 || len(l.Customers) != 1 {
		t.Fatalf("customers: %+v", rep)
	}
	c := l.Customers[0]
	if c.FullName != "Ahmed" || c.MeterNumber != 101 || c.Phone != "0600000000" {
		t.Fatalf("identity %+v", c)
	}
	if len(c.Months) != 2 {
		t.Fatalf("months = %d", len(c.Months))
	}
	jan, feb := c.Months[0], c.Months[1]
	if y, mi := jan.Period(); y != 2025 || mi != 0 {
		t.Fatalf("first month period (%d, %d)", y, mi)
	}
	if jan.Consumption != 10 || jan.TotalPrice != 50 {
		t.Fatalf("january (%v, %v)", jan.Consumption, jan.TotalPrice)
	}
	if feb.Status != core.Paid {
		t.Fatalf("arabic paid label not recognized: %q", feb.Status)
	}
}

func TestBuildDeduplicatesLastRowWins(t *testing.T) {
	rows := []TransactionRow{
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "janv.", OldReading: 100, NewReading: 110, PricePerTon: 5},
		// Same period written as a numeric month; this row wins.
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "1", OldReading: 100, NewReading: 120, PricePerTon: 5},
	}
	l, rep := Build(rows, nil, 5, importNow)

	if rep.DuplicatesMerged != 1 {
		t.Fatalf("duplicates merged = %d", rep.DuplicatesMerged)
	}
	c := l.Customers[0]
	if len(c.Months) != 1 {
		t.Fatalf("months = %d", len(c.Months))
	}
	if c.Months[0].NewReading != 120 {
		t.Fatalf("last row should win, got reading %v", c.Months[0].NewReading)
	}
}

func TestBuildDropsRowsWithoutMeter(t *testing.T) {
	rows := []TransactionRow{
		{Meter: 0, FullName: "Ghost", Year: 2025, Month: "1", NewReading: 10},
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "1", OldReading: 0, NewReading: 10, PricePerTon: 5},
	}
	l, rep := Build(rows, nil, 5, importNow)
	if rep.DroppedRows != 1 {
		t.Fatalf("dropped = %d", rep.DroppedRows)
	}
	if len(l.Customers) != 1 {
		t.Fatalf("customers = %d", len(l.Customers))
	}
}

func TestBuildInfersPrice(t *testing.T) {
	rows := []TransactionRow{
		// No rate, but consumption and total imply 6 per ton.
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "1", OldReading: 0, NewReading: 10, TotalPrice: 60},
		// Neither rate nor total: falls back to the global rate.
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "2", OldReading: 10, NewReading: 14},
	}
	l, _ := Build(rows, nil, 5, importNow)

	c := l.Customers[0]
	if c.Months[0].TotalPrice != 60 {
		t.Fatalf("explicit total kept, got %v", c.Months[0].TotalPrice)
	}
	if got := core.EffectivePrice(c.Months[0], 5); got != 6 {
		t.Fatalf("inferred price = %v", got)
	}
	if c.Months[1].TotalPrice != 20 {
		t.Fatalf("global rate month = %v", c.Months[1].TotalPrice)
	}
}

func TestBuildSummaryComplement(t *testing.T) {
	rows := []TransactionRow{
		{Meter: 101, FullName: "Ahmed", Year: 2025, Month: "1", OldReading: 100, NewReading: 110, PricePerTon: 5, Status: "paid"},
	}
	cells := []SummaryCell{
		// Same period as the transaction: must not overwrite it.
		{Meter: 101, FullName: "Ahmed", Year: 2025, MonthIndex: 0, Consumption: 999, Status: core.Unpaid},
		// New period: complements the history.
		{Meter: 101, FullName: "Ahmed", Year: 2025, MonthIndex: 1, Consumption: 7, Status: core.Paid},
		// Unknown meter: becomes its own customer.
		{Meter: 202, FullName: "", Year: 2025, MonthIndex: 0, Consumption: 3, Status: core.Unpaid},
	}
	l, rep := Build(rows, cells, 5, importNow)

	if rep.Customers != 2 {
		t.Fatalf("customers = %d", rep.Customers)
	}
	a := l.FindByMeter(101)
	if len(a.Months) != 2 {
		t.Fatalf("months = %d", len(a.Months))
	}
	if a.Months[0].NewReading != 110 || a.Months[0].Consumption != 10 {
		t.Fatalf("transaction month was overwritten: %+v", a.Months[0])
	}
	if a.Months[1].Consumption != 7 || a.Months[1].TotalPrice != 35 || a.Months[1].Status != core.Paid {
		t.Fatalf("complemented month %+v", a.Months[1])
	}
	// Grid months carry no readings, so the chain is seeded 0 -> consumption.
	if a.Months[1].OldReading != 0 || a.Months[1].NewReading != 7 {
		t.Fatalf("complemented readings %+v", a.Months[1])
	}

	b := l.FindByMeter(202)
	if b == nil || b.FullName != "Compteur 202" {
		t.Fatalf("summary-only customer %+v", b)
	}
}

func TestBuildResolvesMessyDates(t *testing.T) {
	rows := []TransactionRow{
		{Meter: 101, FullName: "A", Date: "2025-01-01T00:00:00Z", NewReading: 1, PricePerTon: 5},
		{Meter: 101, FullName: "A", Date: "45689", NewReading: 2, PricePerTon: 5},  // serial for 2025-02-01
		{Meter: 101, FullName: "A", Month: "mars-25", NewReading: 3, PricePerTon: 5},
		{Meter: 101, FullName: "A", Month: "غشت 2025", NewReading: 4, PricePerTon: 5},
	}
	l, rep := Build(rows, nil, 5, importNow)
	if rep.DuplicatesMerged != 0 {
		t.Fatalf("all rows are distinct periods, merged = %d", rep.DuplicatesMerged)
	}
	c := l.Customers[0]
	if len(c.Months) != 4 {
		t.Fatalf("months = %d", len(c.Months))
	}
	wantPeriods := [][2]int{{2025, 0}, {2025, 1}, {2025, 2}, {2025, 7}}
	for i, want := range wantPeriods {
		y, mi := c.Months[i].Period()
		if y != want[0] || mi != want[1] {
			t.Fatalf("month %d resolved to (%d, %d), want %v", i, y, mi, want)
		}
	}
}
