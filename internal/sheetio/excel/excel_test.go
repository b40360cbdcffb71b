package excel

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"waterledger/internal/core"
	"waterledger/internal/importer"
)

func exportLedger() *core.Ledger {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return &core.Ledger{
		PricePerTon: 5,
		Customers: []core.Customer{
			{
				ID: "a", FullName: "Ahmed", MeterNumber: 101, Phone: "0600000000",
				RegistrationDate: "2024-06-01",
				Months: []core.Month{
					{Label: core.PeriodLabel(jan), OldReading: 100, NewReading: 110, Consumption: 10, TotalPrice: 50, Status: core.Paid, Date: jan},
					{Label: core.PeriodLabel(feb), OldReading: 110, NewReading: 115, Consumption: 5, TotalPrice: 25, Status: core.Unpaid, Date: feb},
				},
			},
		},
	}
}

func TestWorkbookRoundTrip(t *testing.T) {
	l := exportLedger()
	w := New()

	data, err := w.Encode(l, core.BuildSummary(l))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty workbook")
	}

	transactions, summary, err := w.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(transactions) != 2 {
		t.Fatalf("transactions = %d", len(transactions))
	}
	first := transactions[0]
	if first.Meter != 101 || first.FullName != "Ahmed" || first.Phone != "0600000000" {
		t.Fatalf("identity row %+v", first)
	}
	if first.Year != 2025 || first.Month != "1" {
		t.Fatalf("period row %+v", first)
	}
	if first.OldReading != 100 || first.NewReading != 110 || first.TotalPrice != 50 {
		t.Fatalf("readings row %+v", first)
	}
	if core.ParseStatus(first.Status) != core.Paid {
		t.Fatalf("status %q", first.Status)
	}

	// The summary sheet mirrors both months with status carried in the fill.
	byPeriod := map[int]importer.SummaryCell{}
	for _, c := range summary {
		if c.Meter == 101 {
			byPeriod[c.MonthIndex] = c
		}
	}
	jan, ok := byPeriod[0]
	if !ok || jan.Year != 2025 || jan.Consumption != 10 {
		t.Fatalf("january summary cell %+v", jan)
	}
	if jan.Status != core.Paid {
		t.Fatalf("january fill should read paid, got %q", jan.Status)
	}
	feb := byPeriod[1]
	if feb.Status != core.Unpaid || feb.Consumption != 5 {
		t.Fatalf("february summary cell %+v", feb)
	}
}

func TestDecodeLocalizedHeaders(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	header := []any{"Adhérent", "N° Compteur", "Mois", "Année", "Ancien index", "Nouvel index", "Montant", "Statut"}
	if err := f.SetSheetRow(TransactionsSheet, "A1", &header); err != nil {
		t.Fatalf("header: %v", err)
	}
	row := []any{"Ahmed", 101, "janv.", 2025, 100, 110, 50, "paid"}
	if err := f.SetSheetRow(TransactionsSheet, "A2", &row); err != nil {
		t.Fatalf("row: %v", err)
	}
	f.DeleteSheet("Sheet1")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	transactions, _, err := New().Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("transactions = %d", len(transactions))
	}
	got := transactions[0]
	if got.Meter != 101 || got.FullName != "Ahmed" {
		t.Fatalf("identity %+v", got)
	}
	if got.Year != 2025 || got.Month != "janv." {
		t.Fatalf("period %+v", got)
	}
	if got.OldReading != 100 || got.NewReading != 110 || got.TotalPrice != 50 {
		t.Fatalf("readings %+v", got)
	}
}

func TestDecodeSummarySplitYearHeaders(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	for _, sheet := range []string{TransactionsSheet, SummarySheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("new sheet %s: %v", sheet, err)
		}
	}
	// Month name and numeric month with the year split into the next column.
	header := []any{"N° Compteur", "Adhérent", "janv.", "2025", "2", "2025"}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		t.Fatalf("header: %v", err)
	}
	row := []any{101, "Ahmed", 10, "", 4, ""}
	if err := f.SetSheetRow(SummarySheet, "A2", &row); err != nil {
		t.Fatalf("row: %v", err)
	}
	f.DeleteSheet("Sheet1")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	_, summary, err := New().Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("summary cells = %d: %+v", len(summary), summary)
	}
	byMonth := map[int]importer.SummaryCell{}
	for _, c := range summary {
		byMonth[c.MonthIndex] = c
	}
	jan := byMonth[0]
	if jan.Meter != 101 || jan.Year != 2025 || jan.Consumption != 10 {
		t.Fatalf("january cell %+v", jan)
	}
	feb := byMonth[1]
	if feb.Year != 2025 || feb.Consumption != 4 {
		t.Fatalf("february cell %+v", feb)
	}
}

func TestDecodeRejectsForeignFile(t *testing.T) {
	w := New()
	if _, _, err := w.Decode([]byte("not an xlsx file")); err == nil {
		t.Fatalf("expected error for non-workbook bytes")
	}
}

func TestDecodeFeedsImporter(t *testing.T) {
	l := exportLedger()
	w := New()
	data, err := w.Encode(l, core.BuildSummary(l))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	transactions, summary, err := w.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	rebuilt, rep := importer.Build(transactions, summary, 5, time.Now())
	if rep.Customers != 1 {
		t.Fatalf("rebuilt customers = %d", rep.Customers)
	}
	c := rebuilt.FindByMeter(101)
	if c == nil || len(c.Months) != 2 {
		t.Fatalf("rebuilt customer %+v", c)
	}
	if c.Months[0].TotalPrice != 50 || c.Months[0].Status != core.Paid {
		t.Fatalf("rebuilt month %+v", c.Months[0])
	}
}
