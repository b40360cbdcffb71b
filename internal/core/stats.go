package core

// Statistics aggregates the whole ledger for the dashboard header.
type Statistics struct {
	TotalCustomers   int     `json:"totalCustomers"`
	TotalConsumption float64 `json:"totalConsumption"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalPaid        float64 `json:"totalPaid"`
	TotalUnpaid      float64 `json:"totalUnpaid"`
	AvgConsumption   float64 `json:"avgConsumption"`
}

// ComputeStatistics walks every month of every customer once.
// AvgConsumption is per billed month, not per customer; an empty ledger
// yields zeros.
func ComputeStatistics(l *Ledger) Statistics {
	s := Statistics{TotalCustomers: len(l.Customers)}
	months := 0
	for _, u := range l.Customers {
		for _, m := range u.Months {
			months++
			s.TotalConsumption += m.Consumption
			s.TotalRevenue += m.TotalPrice
			if m.Status == Paid {
				s.TotalPaid += m.TotalPrice
			} else {
				s.TotalUnpaid += m.TotalPrice
			}
		}
	}
	if months > 0 {
		s.AvgConsumption = s.TotalConsumption / float64(months)
	}
	return s
}
