package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Month name tables. The French short labels double as the spreadsheet
// column vocabulary ("janv.-25"); the Arabic table carries the Moroccan
// variants found in legacy exports, several of which alias the same month.
var (
	frMonthNames = []string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}
	enMonthNames = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

	// Display names for billing period labels.
	arMonthNames = []string{"يناير", "فبراير", "مارس", "أبريل", "ماي", "يونيو", "يوليوز", "غشت", "شتنبر", "أكتوبر", "نونبر", "دجنبر"}

	arMonthVariants = map[string]int{
		"يناير":  0,
		"فبراير": 1,
		"مارس":   2,
		"أبريل":  3,
		"ابريل":  3,
		"ماي":    4,
		"يونيو":  5,
		"يوليوز": 6,
		"غشت":    7,
		"شتنبر":  8,
		"أكتوبر": 9,
		"اكتوبر": 9,
		"نونبر":  10,
		"دجنبر":  11,
	}
)

// FRMonthLabel returns the French short label for a month index 0-11.
func FRMonthLabel(monthIndex int) string {
	return frMonthNames[monthIndex]
}

// MonthIndex resolves a month expressed as a number (1-12) or a French,
// English or Arabic month name to an index 0-11. Returns -1 when nothing
// matches.
func MonthIndex(v string) int {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return -1
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return n - 1
		}
		return -1
	}
	for i, name := range frMonthNames {
		if strings.HasPrefix(s, strings.TrimSuffix(name, ".")) {
			return i
		}
	}
	for i, name := range enMonthNames {
		if strings.HasPrefix(s, name) {
			return i
		}
	}
	for name, i := range arMonthVariants {
		if strings.Contains(s, name) {
			return i
		}
	}
	return -1
}

// excelEpoch is the spreadsheet serial-date origin, 1899-12-30.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ExcelSerialDate converts a spreadsheet numeric date serial (days since the
// 1899-12-30 epoch, fractional part carrying the time of day) to a UTC time.
func ExcelSerialDate(serial float64) time.Time {
	ms := int64(serial*86400000 + 0.5)
	return excelEpoch.Add(time.Duration(ms) * time.Millisecond)
}

var (
	yearMonthRe    = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})`)
	monthYearRe    = regexp.MustCompile(`^(\d{1,2})[-/.](\d{4})$`)
	embeddedYearRe = regexp.MustCompile(`(\d{2,4})`)
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ResolveInput carries whatever fragments of date information an imported
// row provides. Zero values mean "not supplied" (MonthIndex uses -1).
type ResolveInput struct {
	DateText   string // absolute date, ISO string or spreadsheet serial
	Year       int
	MonthIndex int
	MonthText  string // month name/number, possibly with an embedded year
	Now        time.Time
}

// ResolveMonthYear normalizes a row's date fragments to the canonical first
// day of its calendar month, trying in order: an absolute date or serial, a
// YYYY-MM / MM-YYYY pattern, explicit year + month name/number, and a month
// name with an embedded 2-4-digit year. When nothing resolves it degrades to
// the first day of the current month rather than dropping the row.
func ResolveMonthYear(in ResolveInput) time.Time {
	if s := strings.TrimSpace(in.DateText); s != "" {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 20000 {
			return ExcelSerialDate(serial)
		}
		if m := yearMonthRe.FindStringSubmatch(s); m != nil {
			y, _ := strconv.Atoi(m[1])
			mi, _ := strconv.Atoi(m[2])
			if mi >= 1 && mi <= 12 {
				return PeriodDate(y, mi-1)
			}
		}
		if m := monthYearRe.FindStringSubmatch(s); m != nil {
			mi, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[2])
			if mi >= 1 && mi <= 12 {
				return PeriodDate(y, mi-1)
			}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}

	if in.Year != 0 {
		mi := in.MonthIndex
		if mi < 0 || mi > 11 {
			mi = MonthIndex(in.MonthText)
		}
		if mi >= 0 && mi <= 11 {
			return PeriodDate(in.Year, mi)
		}
	}

	if text := strings.TrimSpace(in.MonthText); text != "" {
		if _, err := strconv.Atoi(text); err != nil {
			if mi := MonthIndex(text); mi >= 0 {
				if m := embeddedYearRe.FindStringSubmatch(text); m != nil {
					if y, err := strconv.Atoi(m[1]); err == nil {
						return PeriodDate(y, mi)
					}
				}
			}
		}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	return PeriodDate(now.UTC().Year(), int(now.UTC().Month())-1)
}
