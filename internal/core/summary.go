package core

import (
	"fmt"
	"sort"
)

// Column kinds of the wide summary matrix.
type SummaryColumnKind int

const (
	ColMeter SummaryColumnKind = iota
	ColName
	ColMonth
	ColSumTons
	ColSumMAD
	ColUnpaidCount
	ColUnpaidMAD
)

// SummaryColumn describes one column of the matrix. Year is set on month and
// aggregate columns alike; MonthIndex is only meaningful for ColMonth.
type SummaryColumn struct {
	Kind       SummaryColumnKind
	Title      string
	Year       int
	MonthIndex int
}

// SummaryCell is one customer/column intersection. Month cells carry the
// consumption in tons and the payment status; aggregate cells carry Value.
type SummaryCell struct {
	Set    bool
	Value  float64
	Status PaymentStatus
}

// SummaryRow is one customer's line across all columns, aggregate cells
// included.
type SummaryRow struct {
	Meter int
	Name  string
	Cells []SummaryCell
}

// Summary is the year-by-month matrix shown on the résumé sheet: one row per
// customer and, for each year present in the ledger, twelve month columns
// followed by that year's four aggregate columns.
type Summary struct {
	Years   []int
	Columns []SummaryColumn
	Rows    []SummaryRow
}

// BuildSummary derives the matrix from the ledger. Years are the distinct
// billing years across all customers, ascending; customers keep ledger order.
func BuildSummary(l *Ledger) Summary {
	yearSet := map[int]bool{}
	for _, u := range l.Customers {
		for _, m := range u.Months {
			y, _ := m.Period()
			yearSet[y] = true
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	cols := []SummaryColumn{
		{Kind: ColMeter, Title: "N° Compteur"},
		{Kind: ColName, Title: "Adhérent"},
	}
	for _, y := range years {
		for mi := 0; mi < 12; mi++ {
			cols = append(cols, SummaryColumn{
				Kind:       ColMonth,
				Title:      fmt.Sprintf("%s-%02d", FRMonthLabel(mi), y%100),
				Year:       y,
				MonthIndex: mi,
			})
		}
		cols = append(cols,
			SummaryColumn{Kind: ColSumTons, Title: "Total (tonnes)", Year: y},
			SummaryColumn{Kind: ColSumMAD, Title: "Total (MAD)", Year: y},
			SummaryColumn{Kind: ColUnpaidCount, Title: "Mois impayés", Year: y},
			SummaryColumn{Kind: ColUnpaidMAD, Title: "Impayé (MAD)", Year: y},
		)
	}

	type yearTotals struct {
		tons, mad, unpaidMAD float64
		unpaid               int
	}

	sum := Summary{Years: years, Columns: cols}
	for _, u := range l.Customers {
		row := SummaryRow{
			Meter: u.MeterNumber,
			Name:  u.FullName,
			Cells: make([]SummaryCell, len(cols)),
		}
		byPeriod := map[[2]int]Month{}
		byYear := map[int]*yearTotals{}
		for _, m := range u.Months {
			y, mi := m.Period()
			byPeriod[[2]int{y, mi}] = m
			t := byYear[y]
			if t == nil {
				t = &yearTotals{}
				byYear[y] = t
			}
			t.tons += m.Consumption
			t.mad += m.TotalPrice
			if m.Status != Paid {
				t.unpaid++
				t.unpaidMAD += m.TotalPrice
			}
		}
		for i, c := range cols {
			var t yearTotals
			if yt := byYear[c.Year]; yt != nil {
				t = *yt
			}
			switch c.Kind {
			case ColMonth:
				if m, ok := byPeriod[[2]int{c.Year, c.MonthIndex}]; ok {
					row.Cells[i] = SummaryCell{Set: true, Value: m.Consumption, Status: m.Status}
				}
			case ColSumTons:
				row.Cells[i] = SummaryCell{Set: true, Value: t.tons}
			case ColSumMAD:
				row.Cells[i] = SummaryCell{Set: true, Value: t.mad}
			case ColUnpaidCount:
				row.Cells[i] = SummaryCell{Set: true, Value: float64(t.unpaid)}
			case ColUnpaidMAD:
				row.Cells[i] = SummaryCell{Set: true, Value: t.unpaidMAD}
			}
		}
		sum.Rows = append(sum.Rows, row)
	}
	return sum
}
