// Package excel implements the sheetio ports on xlsx workbooks. The layout
// mirrors the association's historical files: a "Transactions" sheet with one
// row per billed month, and a wide "Résumé" sheet whose month cells carry
// consumption and encode payment status in the cell fill.
package excel

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"waterledger/internal/core"
	"waterledger/internal/importer"
)

const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Résumé"

	paidFill   = "C6EFCE"
	unpaidFill = "FFC7CE"
)

var transactionHeader = []any{
	"MeterNumber", "FullName", "Phone", "RegistrationDate",
	"Year", "Month", "OldReading", "NewReading", "Consumption",
	"PricePerTon", "TotalPrice", "Status", "ISODate",
}

// transactionSynonyms maps header spellings seen in circulating files, across
// locales, to logical field names. Lookup keys are lower-cased trimmed titles.
var transactionSynonyms = map[string]string{
	"meternumber": "meter", "n° compteur": "meter", "compteur": "meter", "meter": "meter", "رقم العداد": "meter",
	"fullname": "name", "adhérent": "name", "nom": "name", "name": "name", "الاسم": "name",
	"phone": "phone", "téléphone": "phone", "tél": "phone", "الهاتف": "phone",
	"registrationdate": "registered", "date d'inscription": "registered",
	"year": "year", "année": "year", "السنة": "year",
	"month": "month", "mois": "month", "الشهر": "month",
	"oldreading": "old", "ancien index": "old",
	"newreading": "new", "nouvel index": "new",
	"consumption": "cons", "consommation": "cons", "الاستهلاك": "cons",
	"priceperton": "price", "prix": "price",
	"totalprice": "total", "montant": "total", "المجموع": "total",
	"status": "status", "statut": "status", "الحالة": "status",
	"isodate": "date", "date": "date",
}

// transactionFieldColumns resolves the header row into a field-to-column map.
// When no header cell is recognized the canonical export positions apply, so
// headerless variants still read correctly. Fields a recognized header does
// not mention stay absent rather than falling back to a position, which would
// capture some unrelated column.
func transactionFieldColumns(header []string) map[string]int {
	cols := map[string]int{}
	for i, title := range header {
		if field, ok := transactionSynonyms[strings.ToLower(strings.TrimSpace(title))]; ok {
			cols[field] = i
		}
	}
	if len(cols) == 0 {
		return map[string]int{
			"meter": 0, "name": 1, "phone": 2, "registered": 3, "year": 4,
			"month": 5, "old": 6, "new": 7, "cons": 8, "price": 9,
			"total": 10, "status": 11, "date": 12,
		}
	}
	return cols
}

// Workbook is the xlsx codec. The zero value is not usable; construct with
// New.
type Workbook struct{}

func New() *Workbook {
	return &Workbook{}
}

// Encode writes both sheets and returns the finished file bytes.
func (w *Workbook) Encode(l *core.Ledger, sum core.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeTransactions(f, l); err != nil {
		return nil, err
	}
	if err := w.writeSummary(f, sum); err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Workbook) writeTransactions(f *excelize.File, l *core.Ledger) error {
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		return fmt.Errorf("create transactions sheet: %w", err)
	}
	if err := f.SetSheetRow(TransactionsSheet, "A1", &transactionHeader); err != nil {
		return fmt.Errorf("write transactions header: %w", err)
	}

	rowNum := 2
	for _, c := range l.Customers {
		for _, m := range c.Months {
			y, mi := m.Period()
			row := []any{
				c.MeterNumber, c.FullName, c.Phone, c.RegistrationDate,
				y, mi + 1, m.OldReading, m.NewReading, m.Consumption,
				core.EffectivePrice(m, l.PricePerTon), m.TotalPrice,
				string(m.Status), m.Date.Format("2006-01-02T15:04:05Z07:00"),
			}
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := f.SetSheetRow(TransactionsSheet, cell, &row); err != nil {
				return fmt.Errorf("write transaction row %d: %w", rowNum, err)
			}
			rowNum++
		}
	}

	return f.SetPanes(TransactionsSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	})
}

func (w *Workbook) writeSummary(f *excelize.File, sum core.Summary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	header := make([]any, len(sum.Columns))
	for i, col := range sum.Columns {
		header[i] = col.Title
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	paidStyle, err := fillStyle(f, paidFill)
	if err != nil {
		return err
	}
	unpaidStyle, err := fillStyle(f, unpaidFill)
	if err != nil {
		return err
	}

	for r, row := range sum.Rows {
		rowNum := r + 2
		values := make([]any, len(sum.Columns))
		for i, col := range sum.Columns {
			switch col.Kind {
			case core.ColMeter:
				values[i] = row.Meter
			case core.ColName:
				values[i] = row.Name
			default:
				if row.Cells[i].Set {
					values[i] = row.Cells[i].Value
				}
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return fmt.Errorf("write summary row %d: %w", rowNum, err)
		}

		for i, col := range sum.Columns {
			if col.Kind != core.ColMonth || !row.Cells[i].Set {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
			style := unpaidStyle
			if row.Cells[i].Status == core.Paid {
				style = paidStyle
			}
			if err := f.SetCellStyle(SummarySheet, cell, cell, style); err != nil {
				return fmt.Errorf("style summary cell %s: %w", cell, err)
			}
		}
	}

	// Meter and name stay visible while scrolling across the years.
	if err := f.SetPanes(SummarySheet, &excelize.Panes{
		Freeze: true, XSplit: 2, YSplit: 1, TopLeftCell: "C2", ActivePane: "bottomRight",
	}); err != nil {
		return err
	}
	rtl := true
	return f.SetSheetView(SummarySheet, -1, &excelize.ViewOptions{RightToLeft: &rtl})
}

func fillStyle(f *excelize.File, color string) (int, error) {
	id, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return 0, fmt.Errorf("create fill style: %w", err)
	}
	return id, nil
}

// Decode reads both sheets. A file missing the transactions sheet is not an
// exchange workbook and is rejected; the summary sheet is optional.
func (w *Workbook) Decode(data []byte) ([]importer.TransactionRow, []importer.SummaryCell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open workbook: %v", core.ErrInvalidSnapshot, err)
	}
	defer f.Close()

	transactions, err := w.readTransactions(f)
	if err != nil {
		return nil, nil, err
	}
	summary, err := w.readSummary(f)
	if err != nil {
		return nil, nil, err
	}
	return transactions, summary, nil
}

func (w *Workbook) readTransactions(f *excelize.File) ([]importer.TransactionRow, error) {
	rows, err := f.GetRows(TransactionsSheet)
	if err != nil {
		return nil, fmt.Errorf("%w: no transactions sheet", core.ErrInvalidSnapshot)
	}

	var cols map[string]int
	var out []importer.TransactionRow
	for i, row := range rows {
		if i == 0 {
			cols = transactionFieldColumns(row)
			continue
		}
		if len(row) == 0 {
			continue
		}
		get := func(field string) string {
			if col, ok := cols[field]; ok && col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		meter, _ := strconv.Atoi(get("meter"))
		year, _ := strconv.Atoi(get("year"))
		out = append(out, importer.TransactionRow{
			Meter:            meter,
			FullName:         get("name"),
			Phone:            get("phone"),
			RegistrationDate: get("registered"),
			Year:             year,
			Month:            get("month"),
			OldReading:       number(get("old")),
			NewReading:       number(get("new")),
			Consumption:      number(get("cons")),
			PricePerTon:      number(get("price")),
			TotalPrice:       number(get("total")),
			Status:           get("status"),
			Date:             get("date"),
		})
	}
	return out, nil
}

// summaryHeaderRe matches month column titles like "janv.-25" or "mars 2024".
var summaryHeaderRe = regexp.MustCompile(`^(.+?)[-\s](\d{2,4})$`)

// bareYear reads a header cell holding only a 2-4 digit year. Two-digit
// years are 2000-based. Returns 0 when the cell is not a year.
func bareYear(text string) int {
	if len(text) < 2 || len(text) > 4 {
		return 0
	}
	year, err := strconv.Atoi(text)
	if err != nil || year <= 0 {
		return 0
	}
	if year < 100 {
		year += 2000
	}
	return year
}

func (w *Workbook) readSummary(f *excelize.File) ([]importer.SummaryCell, error) {
	rows, err := f.GetRows(SummarySheet)
	if err != nil || len(rows) == 0 {
		return nil, nil
	}

	type monthCol struct {
		year       int
		monthIndex int
	}
	columns := map[int]monthCol{}
	header := rows[0]
	for i := 2; i < len(header); i++ {
		title := strings.TrimSpace(header[i])
		if m := summaryHeaderRe.FindStringSubmatch(title); m != nil {
			if mi := core.MonthIndex(m[1]); mi >= 0 {
				year, _ := strconv.Atoi(m[2])
				if year < 100 {
					year += 2000
				}
				columns[i] = monthCol{year: year, monthIndex: mi}
				continue
			}
		}
		// Bare month name or number with the year split into the next
		// column. The year column carries no data and is consumed.
		mi := core.MonthIndex(title)
		if mi < 0 || i+1 >= len(header) {
			continue
		}
		if year := bareYear(strings.TrimSpace(header[i+1])); year > 0 {
			columns[i] = monthCol{year: year, monthIndex: mi}
			i++
		}
	}

	var out []importer.SummaryCell
	for r, row := range rows {
		if r == 0 || len(row) == 0 {
			continue
		}
		meter, _ := strconv.Atoi(strings.TrimSpace(row[0]))
		name := ""
		if len(row) > 1 {
			name = strings.TrimSpace(row[1])
		}
		for col, mc := range columns {
			if col >= len(row) {
				continue
			}
			raw := strings.TrimSpace(row[col])
			if raw == "" {
				continue
			}
			cons := number(raw)
			cell, _ := excelize.CoordinatesToCellName(col+1, r+1)
			out = append(out, importer.SummaryCell{
				Meter:       meter,
				FullName:    name,
				Year:        mc.year,
				MonthIndex:  mc.monthIndex,
				Consumption: cons,
				Status:      w.cellStatus(f, cell),
			})
		}
	}
	return out, nil
}

// cellStatus infers payment status from the cell fill. Anything that is not
// the paid green counts as unpaid.
func (w *Workbook) cellStatus(f *excelize.File, cell string) core.PaymentStatus {
	styleID, err := f.GetCellStyle(SummarySheet, cell)
	if err != nil {
		return core.Unpaid
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return core.Unpaid
	}
	for _, c := range style.Fill.Color {
		if strings.HasSuffix(strings.ToUpper(c), paidFill) {
			return core.Paid
		}
	}
	return core.Unpaid
}

func number(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
