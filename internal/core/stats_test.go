package core

import (
	"testing"
	"time"
)

func testLedger() *Ledger {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return &Ledger{
		PricePerTon: 5,
		Customers: []Customer{
			{
				ID: "a", FullName: "Ahmed", MeterNumber: 101,
				Months: []Month{
					{Label: PeriodLabel(jan), OldReading: 100, NewReading: 110, Consumption: 10, TotalPrice: 50, Status: Paid, Date: jan},
				},
			},
			{
				ID: "b", FullName: "Brahim", MeterNumber: 102,
				Months: []Month{
					{Label: PeriodLabel(feb), OldReading: 200, NewReading: 205, Consumption: 5, TotalPrice: 25, Status: Unpaid, Date: feb},
				},
			},
		},
	}
}

func TestComputeStatistics(t *testing.T) {
	s := ComputeStatistics(testLedger())
	if s.TotalCustomers != 2 {
		t.Fatalf("customers = %d", s.TotalCustomers)
	}
	if s.TotalConsumption != 15 {
		t.Fatalf("consumption = %v", s.TotalConsumption)
	}
	if s.TotalRevenue != 75 {
		t.Fatalf("revenue = %v", s.TotalRevenue)
	}
	if s.TotalPaid != 50 || s.TotalUnpaid != 25 {
		t.Fatalf("paid/unpaid = %v/%v", s.TotalPaid, s.TotalUnpaid)
	}
	if s.AvgConsumption != 7.5 {
		t.Fatalf("avg = %v", s.AvgConsumption)
	}
}

func TestComputeStatisticsAvgPerMonth(t *testing.T) {
	l := testLedger()
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	// Ahmed gets a second month, so the ledger has 3 billed months across
	// 2 customers: 10 + 20 + 5 tons.
	l.Customers[0].Months = append(l.Customers[0].Months, Month{
		Label: PeriodLabel(feb), OldReading: 110, NewReading: 130,
		Consumption: 20, TotalPrice: 100, Status: Unpaid, Date: feb,
	})

	s := ComputeStatistics(l)
	if s.TotalConsumption != 35 {
		t.Fatalf("consumption = %v", s.TotalConsumption)
	}
	// The average is per billed month, not per customer (which would be 17.5).
	if want := 35.0 / 3; s.AvgConsumption != want {
		t.Fatalf("avg = %v, want %v", s.AvgConsumption, want)
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	s := ComputeStatistics(NewLedger())
	if s != (Statistics{}) {
		t.Fatalf("expected zero stats, got %+v", s)
	}
}

func TestBuildSummary(t *testing.T) {
	sum := BuildSummary(testLedger())

	if len(sum.Years) != 1 || sum.Years[0] != 2025 {
		t.Fatalf("years = %v", sum.Years)
	}
	// meter + name + 12 months + 4 aggregates
	if len(sum.Columns) != 18 {
		t.Fatalf("columns = %d", len(sum.Columns))
	}
	if sum.Columns[2].Title != "janv.-25" {
		t.Fatalf("first month column titled %q", sum.Columns[2].Title)
	}
	if len(sum.Rows) != 2 {
		t.Fatalf("rows = %d", len(sum.Rows))
	}

	first := sum.Rows[0]
	if first.Meter != 101 || first.Name != "Ahmed" {
		t.Fatalf("row identity %+v", first)
	}
	jan := first.Cells[2]
	if !jan.Set || jan.Value != 10 || jan.Status != Paid {
		t.Fatalf("january cell %+v", jan)
	}
	if first.Cells[3].Set {
		t.Fatalf("february should be empty for first customer")
	}

	second := sum.Rows[1]
	feb := second.Cells[3]
	if !feb.Set || feb.Value != 5 || feb.Status != Unpaid {
		t.Fatalf("february cell %+v", feb)
	}
	// aggregates: tons, MAD, unpaid count, unpaid MAD
	agg := second.Cells[len(sum.Columns)-4:]
	if agg[0].Value != 5 || agg[1].Value != 25 || agg[2].Value != 1 || agg[3].Value != 25 {
		t.Fatalf("aggregates %+v", agg)
	}
}

func TestBuildSummaryMultiYear(t *testing.T) {
	l := testLedger()
	dec24 := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	l.Customers[0].Months = append([]Month{
		{Label: PeriodLabel(dec24), OldReading: 90, NewReading: 100, Consumption: 10, TotalPrice: 50, Status: Paid, Date: dec24},
	}, l.Customers[0].Months...)

	sum := BuildSummary(l)
	if len(sum.Years) != 2 || sum.Years[0] != 2024 || sum.Years[1] != 2025 {
		t.Fatalf("years = %v", sum.Years)
	}
	// meter + name + (12 months + 4 aggregates) per year
	if len(sum.Columns) != 2+2*16 {
		t.Fatalf("columns = %d", len(sum.Columns))
	}
	dec := sum.Rows[0].Cells[2+11]
	if !dec.Set || dec.Value != 10 {
		t.Fatalf("december 2024 cell %+v", dec)
	}

	// Each year's aggregate block only counts that year's months. Ahmed has
	// 10 tons / 50 MAD paid in 2024 and again in 2025; Brahim bills only in
	// 2025 (5 tons / 25 MAD unpaid).
	agg24 := sum.Rows[0].Cells[2+12 : 2+16]
	if agg24[0].Value != 10 || agg24[1].Value != 50 || agg24[2].Value != 0 || agg24[3].Value != 0 {
		t.Fatalf("2024 aggregates %+v", agg24)
	}
	agg25 := sum.Rows[0].Cells[2+16+12 : 2+16+16]
	if agg25[0].Value != 10 || agg25[1].Value != 50 {
		t.Fatalf("2025 aggregates %+v", agg25)
	}
	brahim24 := sum.Rows[1].Cells[2+12 : 2+16]
	if brahim24[0].Value != 0 || brahim24[3].Value != 0 {
		t.Fatalf("2024 aggregates for 2025-only customer %+v", brahim24)
	}
	brahim25 := sum.Rows[1].Cells[2+16+12 : 2+16+16]
	if brahim25[0].Value != 5 || brahim25[1].Value != 25 || brahim25[2].Value != 1 || brahim25[3].Value != 25 {
		t.Fatalf("2025 aggregates %+v", brahim25)
	}
}
