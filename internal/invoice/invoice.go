// Package invoice renders billing months as printable documents: an A4 HTML
// page for one month, a multi-month statement page per customer (optionally
// for the whole ledger), and plain text sized for 58mm thermal receipt
// printers.
package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"waterledger/internal/core"
)

// ThermalWidth is the character budget of a 58mm receipt line.
const ThermalWidth = 32

// Data is everything one invoice needs.
type Data struct {
	Association string
	Customer    core.Customer
	Month       core.Month
	PricePerTon float64
	GeneratedAt time.Time
}

var htmlTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html dir="rtl" lang="ar">
<head>
<meta charset="utf-8">
<title>{{.Association}}</title>
<style>
  @page { size: A4; margin: 2cm; }
  body { font-family: sans-serif; }
  h1 { text-align: center; font-size: 1.4em; }
  table { width: 100%; border-collapse: collapse; margin-top: 1.5em; }
  th, td { border: 1px solid #333; padding: 0.5em; text-align: center; }
  .status-paid { color: #1a7a3a; }
  .status-unpaid { color: #b02020; }
  footer { margin-top: 2em; font-size: 0.8em; text-align: center; }
</style>
</head>
<body>
<h1>{{.Association}}</h1>
<p>الاسم الكامل: {{.Customer.FullName}}</p>
<p>رقم العداد: {{.Customer.MeterNumber}}</p>
{{if .Customer.Phone}}<p>الهاتف: {{.Customer.Phone}}</p>{{end}}
<table>
<tr><th>الشهر</th><th>العداد السابق</th><th>العداد الحالي</th><th>الاستهلاك (طن)</th><th>الثمن</th><th>المجموع (درهم)</th></tr>
<tr>
  <td>{{.Month.Label}}</td>
  <td>{{.Month.OldReading}}</td>
  <td>{{.Month.NewReading}}</td>
  <td>{{.Month.Consumption}}</td>
  <td>{{printf "%.2f" .EffectivePrice}}</td>
  <td>{{printf "%.2f" .Month.TotalPrice}}</td>
</tr>
</table>
<p class="{{if .Paid}}status-paid{{else}}status-unpaid{{end}}">
  الحالة: {{if .Paid}}مدفوعة{{else}}غير مدفوعة{{end}}
</p>
<footer>{{.GeneratedAt.Format "2006-01-02 15:04"}}</footer>
</body>
</html>
`))

// Statement is one customer's section of a multi-month statement.
type Statement struct {
	Customer core.Customer
	Months   []core.Month
}

// BatchData drives the statement renderer. One Statement yields a single
// customer statement; several yield a whole-ledger print run with a page
// break between customers.
type BatchData struct {
	Association string
	PricePerTon float64
	GeneratedAt time.Time
	Statements  []Statement
}

type statementView struct {
	Customer         core.Customer
	Rows             []statementRow
	TotalConsumption float64
	TotalAmount      float64
	UnpaidAmount     float64
}

type statementRow struct {
	Month          core.Month
	EffectivePrice float64
	Paid           bool
}

var statementTmpl = template.Must(template.New("statement").Parse(`<!DOCTYPE html>
<html dir="rtl" lang="ar">
<head>
<meta charset="utf-8">
<title>{{.Association}}</title>
<style>
  @page { size: A4; margin: 2cm; }
  body { font-family: sans-serif; }
  h1 { text-align: center; font-size: 1.4em; }
  section { page-break-after: always; }
  section:last-of-type { page-break-after: auto; }
  table { width: 100%; border-collapse: collapse; margin-top: 1.5em; }
  th, td { border: 1px solid #333; padding: 0.5em; text-align: center; }
  tfoot td { font-weight: bold; }
  .status-paid { color: #1a7a3a; }
  .status-unpaid { color: #b02020; }
  footer { margin-top: 2em; font-size: 0.8em; text-align: center; }
</style>
</head>
<body>
<h1>{{.Association}}</h1>
{{range .Statements}}
<section>
<p>الاسم الكامل: {{.Customer.FullName}}</p>
<p>رقم العداد: {{.Customer.MeterNumber}}</p>
{{if .Customer.Phone}}<p>الهاتف: {{.Customer.Phone}}</p>{{end}}
<table>
<thead>
<tr><th>الشهر</th><th>العداد السابق</th><th>العداد الحالي</th><th>الاستهلاك (طن)</th><th>الثمن</th><th>المجموع (درهم)</th><th>الحالة</th></tr>
</thead>
<tbody>
{{range .Rows}}
<tr>
  <td>{{.Month.Label}}</td>
  <td>{{.Month.OldReading}}</td>
  <td>{{.Month.NewReading}}</td>
  <td>{{.Month.Consumption}}</td>
  <td>{{printf "%.2f" .EffectivePrice}}</td>
  <td>{{printf "%.2f" .Month.TotalPrice}}</td>
  <td class="{{if .Paid}}status-paid{{else}}status-unpaid{{end}}">{{if .Paid}}مدفوعة{{else}}غير مدفوعة{{end}}</td>
</tr>
{{end}}
</tbody>
<tfoot>
<tr>
  <td colspan="3">المجموع</td>
  <td>{{printf "%.2f" .TotalConsumption}}</td>
  <td></td>
  <td>{{printf "%.2f" .TotalAmount}}</td>
  <td class="status-unpaid">{{printf "%.2f" .UnpaidAmount}} غير مدفوعة</td>
</tr>
</tfoot>
</table>
</section>
{{end}}
<footer>{{.GeneratedAt.Format "2006-01-02 15:04"}}</footer>
</body>
</html>
`))

// RenderStatementHTML produces the A4 statement pages. Each statement gets
// its own section with per-month rows and a totals footer.
func RenderStatementHTML(d BatchData) ([]byte, error) {
	views := make([]statementView, 0, len(d.Statements))
	for _, st := range d.Statements {
		v := statementView{Customer: st.Customer}
		for _, m := range st.Months {
			v.Rows = append(v.Rows, statementRow{
				Month:          m,
				EffectivePrice: core.EffectivePrice(m, d.PricePerTon),
				Paid:           m.Status == core.Paid,
			})
			v.TotalConsumption += m.Consumption
			v.TotalAmount += m.TotalPrice
			if m.Status != core.Paid {
				v.UnpaidAmount += m.TotalPrice
			}
		}
		views = append(views, v)
	}

	var buf bytes.Buffer
	err := statementTmpl.Execute(&buf, struct {
		Association string
		GeneratedAt time.Time
		Statements  []statementView
	}{d.Association, d.GeneratedAt, views})
	if err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderHTML produces the A4 invoice page.
func RenderHTML(d Data) ([]byte, error) {
	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, struct {
		Data
		EffectivePrice float64
		Paid           bool
	}{
		Data:           d,
		EffectivePrice: core.EffectivePrice(d.Month, d.PricePerTon),
		Paid:           d.Month.Status == core.Paid,
	})
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderThermal produces the receipt text: centered header, one label-value
// line per field, wrapped to the printer width.
func RenderThermal(d Data) string {
	var b strings.Builder
	sep := strings.Repeat("-", ThermalWidth)

	for _, line := range wrap(d.Association, ThermalWidth) {
		b.WriteString(center(line, ThermalWidth))
		b.WriteByte('\n')
	}
	b.WriteString(sep)
	b.WriteByte('\n')

	write := func(label, value string) {
		for _, line := range wrap(label+": "+value, ThermalWidth) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	write("الاسم", d.Customer.FullName)
	write("العداد", fmt.Sprintf("%d", d.Customer.MeterNumber))
	write("الشهر", d.Month.Label)
	write("القراءة السابقة", trimFloat(d.Month.OldReading))
	write("القراءة الحالية", trimFloat(d.Month.NewReading))
	write("الاستهلاك", trimFloat(d.Month.Consumption))
	write("المجموع", fmt.Sprintf("%.2f درهم", d.Month.TotalPrice))

	b.WriteString(sep)
	b.WriteByte('\n')
	status := "غير مدفوعة"
	if d.Month.Status == core.Paid {
		status = "مدفوعة"
	}
	b.WriteString(center(status, ThermalWidth))
	b.WriteByte('\n')
	b.WriteString(center(d.GeneratedAt.Format("2006-01-02 15:04"), ThermalWidth))
	b.WriteByte('\n')
	return b.String()
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

// wrap splits text into lines of at most width runes, breaking on spaces
// when it can.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := ""
	for _, w := range words {
		for len([]rune(w)) > width {
			r := []rune(w)
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, string(r[:width]))
			w = string(r[width:])
		}
		switch {
		case current == "":
			current = w
		case len([]rune(current))+1+len([]rune(w)) <= width:
			current += " " + w
		default:
			lines = append(lines, current)
			current = w
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func center(text string, width int) string {
	n := len([]rune(text))
	if n >= width {
		return text
	}
	pad := (width - n) / 2
	return strings.Repeat(" ", pad) + text
}
