// Package importer turns spreadsheet rows back into a ledger. Rows come from
// two places: the transaction sheet, which carries full readings, and the
// wide summary sheet, which only knows consumption and payment status. The
// transaction sheet always wins; summary cells only fill periods the
// transactions never mentioned.
package importer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"waterledger/internal/core"
)

// TransactionRow is one parsed line of the transaction sheet. String fields
// keep whatever the cell held; normalization happens in Build.
type TransactionRow struct {
	Meter            int
	FullName         string
	Phone            string
	RegistrationDate string
	Year             int
	Month            string
	OldReading       float64
	NewReading       float64
	Consumption      float64
	PricePerTon      float64
	TotalPrice       float64
	Status           string
	Date             string
}

// SummaryCell is one month cell of the wide summary sheet, already located
// to a meter and a calendar period by the sheet reader.
type SummaryCell struct {
	Meter       int
	FullName    string
	Year        int
	MonthIndex  int
	Consumption float64
	Status      core.PaymentStatus
}

// Report counts what an import did, for the operator's eyes.
type Report struct {
	TransactionRows  int
	SummaryCells     int
	DroppedRows      int
	DuplicatesMerged int
	Customers        int
}

type periodKey struct {
	meter      int
	year       int
	monthIndex int
}

type entry struct {
	meter    int
	fullName string
	phone    string
	regDate  string
	month    core.Month
	fromTx   bool
}

// Build assembles a ledger from both sheets. Rows without a meter number are
// dropped and counted; several rows for the same meter and period collapse
// to the last one seen. globalPrice prices rows that carry neither a rate
// nor a total.
func Build(transactions []TransactionRow, summary []SummaryCell, globalPrice float64, now time.Time) (*core.Ledger, Report) {
	report := Report{TransactionRows: len(transactions), SummaryCells: len(summary)}
	entries := map[periodKey]entry{}
	var order []int
	seenMeter := map[int]bool{}

	for _, row := range transactions {
		if row.Meter <= 0 {
			report.DroppedRows++
			continue
		}
		date := core.ResolveMonthYear(core.ResolveInput{
			DateText:   row.Date,
			Year:       row.Year,
			MonthIndex: -1,
			MonthText:  row.Month,
			Now:        now,
		})
		key := periodKey{row.Meter, date.Year(), int(date.Month()) - 1}
		if _, dup := entries[key]; dup {
			report.DuplicatesMerged++
		}

		cons := row.Consumption
		if cons == 0 {
			cons = row.NewReading - row.OldReading
			if cons < 0 {
				cons = 0
			}
		}
		price := row.PricePerTon
		if price <= 0 && cons > 0 && row.TotalPrice > 0 {
			price = row.TotalPrice / cons
		}
		if price <= 0 {
			price = globalPrice
		}
		total := row.TotalPrice
		if total <= 0 {
			total = cons * price
		}

		if !seenMeter[row.Meter] {
			seenMeter[row.Meter] = true
			order = append(order, row.Meter)
		}
		entries[key] = entry{
			meter:    row.Meter,
			fullName: strings.TrimSpace(row.FullName),
			phone:    strings.TrimSpace(row.Phone),
			regDate:  strings.TrimSpace(row.RegistrationDate),
			fromTx:   true,
			month: core.Month{
				Label:       core.PeriodLabel(date),
				OldReading:  row.OldReading,
				NewReading:  row.NewReading,
				Consumption: cons,
				TotalPrice:  total,
				Status:      core.ParseStatus(row.Status),
				Date:        date,
			},
		}
	}

	for _, cell := range summary {
		if cell.Meter <= 0 {
			report.DroppedRows++
			continue
		}
		key := periodKey{cell.Meter, cell.Year, cell.MonthIndex}
		if existing, ok := entries[key]; ok && existing.fromTx {
			continue // transaction data outranks the summary
		}
		if !seenMeter[cell.Meter] {
			seenMeter[cell.Meter] = true
			order = append(order, cell.Meter)
		}
		date := core.PeriodDate(cell.Year, cell.MonthIndex)
		// The grid carries no readings, so seed the chain as 0 -> consumption.
		entries[key] = entry{
			meter:    cell.Meter,
			fullName: strings.TrimSpace(cell.FullName),
			month: core.Month{
				Label:       core.PeriodLabel(date),
				NewReading:  cell.Consumption,
				Consumption: cell.Consumption,
				TotalPrice:  cell.Consumption * globalPrice,
				Status:      cell.Status,
				Date:        date,
			},
		}
	}

	ledger := &core.Ledger{Customers: []core.Customer{}, PricePerTon: globalPrice}
	for _, meter := range order {
		var months []core.Month
		var name, phone, regDate string
		for key, e := range entries {
			if key.meter != meter {
				continue
			}
			months = append(months, e.month)
			if e.fullName != "" {
				name = e.fullName
			}
			if e.phone != "" {
				phone = e.phone
			}
			if e.regDate != "" {
				regDate = e.regDate
			}
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Date.Before(months[j].Date) })
		if name == "" {
			name = fmt.Sprintf("Compteur %d", meter)
		}
		if regDate == "" {
			regDate = now.UTC().Format("2006-01-02")
		}
		ledger.Customers = append(ledger.Customers, core.Customer{
			ID:               uuid.NewString(),
			FullName:         name,
			MeterNumber:      meter,
			Phone:            phone,
			RegistrationDate: regDate,
			CreatedAt:        now.UTC(),
			Months:           months,
		})
	}
	report.Customers = len(ledger.Customers)
	return ledger, report
}
