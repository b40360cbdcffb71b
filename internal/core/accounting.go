package core

import "time"

// ComputeMonth derives consumption and price for a new reading. Consumption
// clamps at zero: meter rollbacks are a caller-side policy decision, the
// accounting itself never yields negative amounts.
func ComputeMonth(oldReading, newReading, pricePerTon float64) (consumption, totalPrice float64) {
	consumption = newReading - oldReading
	if consumption < 0 {
		consumption = 0
	}
	return consumption, consumption * pricePerTon
}

// EffectivePrice reconstructs the per-ton price locked into a billed month.
// When the month has no consumption there is nothing to divide by, so the
// current global price stands in.
func EffectivePrice(m Month, globalPrice float64) float64 {
	if m.Consumption > 0 && m.TotalPrice > 0 {
		return m.TotalPrice / m.Consumption
	}
	return globalPrice
}

// RecomputeLastMonth fixes a reading typo on an already-priced month without
// letting a later global price change leak into it: the month keeps its own
// effective price.
func RecomputeLastMonth(m *Month, newReading, globalPrice float64) {
	price := EffectivePrice(*m, globalPrice)
	m.NewReading = newReading
	m.Consumption = newReading - m.OldReading
	if m.Consumption < 0 {
		m.Consumption = 0
	}
	m.TotalPrice = m.Consumption * price
}

// NextPeriod returns the first day of the calendar month following the given
// billing date.
func NextPeriod(after time.Time) time.Time {
	t := after.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// PeriodDate returns the canonical instant for a (year, monthIndex 0-11)
// billing period: midnight UTC on the first of the month. Two-digit years
// are taken as 2000+year, matching the spreadsheet conventions.
func PeriodDate(year, monthIndex int) time.Time {
	if year < 100 {
		year += 2000
	}
	return time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodLabel renders the display label for a billing period, in the Arabic
// month naming the association's invoices use.
func PeriodLabel(date time.Time) string {
	return arMonthNames[int(date.UTC().Month())-1] + " " + date.UTC().Format("2006")
}
