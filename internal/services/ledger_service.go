package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"waterledger/internal/core"
	"waterledger/internal/log"
)

// SnapshotStore is the persistence port. The sqlite store implements it for
// normal operation, the memory store for degraded mode and tests.
type SnapshotStore interface {
	Save(ctx context.Context, l *core.Ledger) error
	Load(ctx context.Context) (*core.Ledger, error)
	Close() error
}

// Publisher notifies the backup worker after each successful save.
type Publisher interface {
	PublishLedgerSync(ctx context.Context, revision int64) error
}

// LedgerService owns the in-memory ledger and funnels every mutation through
// validation first, then a best-effort save and sync notification. Neither a
// save nor a publish failure fails the request; the mutation already
// happened in memory and stays visible.
type LedgerService struct {
	mu       sync.RWMutex
	ledger   *core.Ledger
	revision int64

	store     SnapshotStore
	recovery  SnapshotStore
	publisher Publisher
	logger    *log.Logger
	durable   bool
}

// NewLedgerService wires the service. recovery and publisher may be nil;
// durable is false when the caller could only provide in-memory storage.
func NewLedgerService(store SnapshotStore, recovery SnapshotStore, publisher Publisher, logger *log.Logger, durable bool) *LedgerService {
	return &LedgerService{
		store:     store,
		recovery:  recovery,
		publisher: publisher,
		logger:    logger,
		durable:   durable,
	}
}

// Init loads the ledger: primary first, then the backup copy, then an empty
// ledger. A backup hit is written straight back to the primary.
func (s *LedgerService) Init(ctx context.Context) error {
	l, err := s.store.Load(ctx)
	switch {
	case err == nil:
		s.logger.Info("ledger loaded", "customers", len(l.Customers))
	case errors.Is(err, core.ErrNotFound):
		l = nil
	default:
		return fmt.Errorf("load ledger: %w", err)
	}

	if l == nil && s.recovery != nil {
		b, err := s.recovery.Load(ctx)
		if err == nil {
			s.logger.Warn("primary ledger empty, recovered from backup", "customers", len(b.Customers))
			l = b
			if err := s.store.Save(ctx, l); err != nil {
				s.logger.Error("failed to restore backup into primary", "error", err)
			}
		} else if !errors.Is(err, core.ErrNotFound) {
			s.logger.Error("backup unreadable", "error", err)
		}
	}

	if l == nil {
		l = core.NewLedger()
		s.logger.Info("starting with empty ledger")
	}

	s.mu.Lock()
	s.ledger = l
	s.mu.Unlock()
	return nil
}

// Ready reports whether mutations reach durable storage.
func (s *LedgerService) Ready() bool {
	return s.durable
}

// persist saves the current ledger and notifies the backup worker. Both are
// best-effort: the in-memory mutation stands and a storage failure is only
// logged, so the ledger stays usable when the disk is not. Callers hold the
// write lock.
func (s *LedgerService) persist(ctx context.Context) {
	s.revision++
	if err := s.store.Save(ctx, s.ledger); err != nil {
		s.logger.Error("failed to save ledger", "revision", s.revision, "error", err)
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishLedgerSync(ctx, s.revision); err != nil {
			s.logger.Error("failed to publish sync message", "revision", s.revision, "error", err)
		}
	}
}

// AddCustomer registers a customer with its first billing month. The seed
// month always starts from an old reading of zero, priced at the current
// global rate. An empty registration date defaults to today.
func (s *LedgerService) AddCustomer(ctx context.Context, fullName string, meter int, phone, registrationDate string, initialReading float64, now time.Time) (core.Customer, error) {
	if strings.TrimSpace(fullName) == "" {
		return core.Customer{}, core.ErrEmptyName
	}
	if meter <= 0 {
		return core.Customer{}, fmt.Errorf("%w: meter number must be positive", core.ErrInvalidReading)
	}
	if initialReading < 0 {
		return core.Customer{}, core.ErrInvalidReading
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.MeterInUse(meter, "") {
		return core.Customer{}, core.ErrDuplicateMeter
	}

	regDate := strings.TrimSpace(registrationDate)
	if regDate == "" {
		regDate = now.UTC().Format("2006-01-02")
	}

	period := core.PeriodDate(now.UTC().Year(), int(now.UTC().Month())-1)
	cons, total := core.ComputeMonth(0, initialReading, s.ledger.PricePerTon)
	c := core.Customer{
		ID:               uuid.NewString(),
		FullName:         strings.TrimSpace(fullName),
		MeterNumber:      meter,
		Phone:            strings.TrimSpace(phone),
		RegistrationDate: regDate,
		CreatedAt:        now.UTC(),
		Months: []core.Month{{
			Label:       core.PeriodLabel(period),
			OldReading:  0,
			NewReading:  initialReading,
			Consumption: cons,
			TotalPrice:  total,
			Status:      core.Unpaid,
			Date:        period,
		}},
	}
	s.ledger.Customers = append(s.ledger.Customers, c)

	s.persist(ctx)
	s.logger.Info("customer added", "id", c.ID, "meter", meter)
	return c, nil
}

// EditCustomer updates identity fields and the latest month's reading. A new
// reading below the month's old reading is a meter rollback and needs
// confirm; the month keeps its historically locked price either way. An
// empty registration date keeps the recorded one.
func (s *LedgerService) EditCustomer(ctx context.Context, id, fullName string, meter int, phone, registrationDate string, newReading float64, confirmRollback bool) (core.Customer, error) {
	if strings.TrimSpace(fullName) == "" {
		return core.Customer{}, core.ErrEmptyName
	}
	if newReading < 0 {
		return core.Customer{}, core.ErrInvalidReading
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ledger.FindByID(id)
	if c == nil {
		return core.Customer{}, core.ErrNotFound
	}
	if s.ledger.MeterInUse(meter, id) {
		return core.Customer{}, core.ErrDuplicateMeter
	}
	last := c.LastMonth()
	if last != nil && newReading < last.OldReading && !confirmRollback {
		return core.Customer{}, core.ErrRollbackConfirm
	}

	c.FullName = strings.TrimSpace(fullName)
	c.MeterNumber = meter
	c.Phone = strings.TrimSpace(phone)
	if rd := strings.TrimSpace(registrationDate); rd != "" {
		c.RegistrationDate = rd
	}
	if last != nil {
		core.RecomputeLastMonth(last, newReading, s.ledger.PricePerTon)
	}

	s.persist(ctx)
	return *c, nil
}

// DeleteCustomer removes the customer entirely, history included.
func (s *LedgerService) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.ledger.Customers {
		if s.ledger.Customers[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ErrNotFound
	}

	removed := s.ledger.Customers[idx]
	s.ledger.Customers = append(s.ledger.Customers[:idx], s.ledger.Customers[idx+1:]...)

	s.persist(ctx)
	s.logger.Info("customer deleted", "id", id, "meter", removed.MeterNumber)
	return nil
}

// AddMonth opens the next calendar billing month. The new month's old
// reading is the previous month's new reading, priced at the current global
// rate and created unpaid.
func (s *LedgerService) AddMonth(ctx context.Context, id string, newReading float64, confirmRollback bool) (core.Month, error) {
	if newReading < 0 {
		return core.Month{}, core.ErrInvalidReading
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ledger.FindByID(id)
	if c == nil {
		return core.Month{}, core.ErrNotFound
	}
	last := c.LastMonth()
	if last == nil {
		return core.Month{}, fmt.Errorf("%w: customer has no billing history", core.ErrInvalidReading)
	}

	period := core.NextPeriod(last.Date)
	if c.HasPeriod(period.Year(), int(period.Month())-1) {
		return core.Month{}, core.ErrMonthExists
	}
	if newReading < last.NewReading && !confirmRollback {
		return core.Month{}, core.ErrRollbackConfirm
	}

	cons, total := core.ComputeMonth(last.NewReading, newReading, s.ledger.PricePerTon)
	m := core.Month{
		Label:       core.PeriodLabel(period),
		OldReading:  last.NewReading,
		NewReading:  newReading,
		Consumption: cons,
		TotalPrice:  total,
		Status:      core.Unpaid,
		Date:        period,
	}
	c.Months = append(c.Months, m)

	s.persist(ctx)
	s.logger.Info("month added", "customer", id, "label", m.Label)
	return m, nil
}

// DeleteMonth removes one billing month. The last remaining month is
// protected; deleting it would leave the customer without an anchor reading.
func (s *LedgerService) DeleteMonth(ctx context.Context, id string, monthIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ledger.FindByID(id)
	if c == nil {
		return core.ErrNotFound
	}
	if monthIndex < 0 || monthIndex >= len(c.Months) {
		return core.ErrNotFound
	}
	if len(c.Months) == 1 {
		return core.ErrLastMonth
	}

	c.Months = append(c.Months[:monthIndex], c.Months[monthIndex+1:]...)

	s.persist(ctx)
	return nil
}

// ToggleMonthStatus flips a month between paid and unpaid.
func (s *LedgerService) ToggleMonthStatus(ctx context.Context, id string, monthIndex int) (core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ledger.FindByID(id)
	if c == nil {
		return core.Month{}, core.ErrNotFound
	}
	if monthIndex < 0 || monthIndex >= len(c.Months) {
		return core.Month{}, core.ErrNotFound
	}

	c.Months[monthIndex].Status = c.Months[monthIndex].Status.Toggle()

	s.persist(ctx)
	return c.Months[monthIndex], nil
}

// ChangeGlobalPrice sets the rate applied to future months. Existing months
// keep the totals they were billed at.
func (s *LedgerService) ChangeGlobalPrice(ctx context.Context, price float64) error {
	if price <= 0 {
		return core.ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.ledger.PricePerTon
	s.ledger.PricePerTon = price

	s.persist(ctx)
	s.logger.Info("global price changed", "from", prev, "to", price)
	return nil
}

// GlobalPrice returns the current per-ton rate.
func (s *LedgerService) GlobalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.PricePerTon
}

// Customer returns a copy of one customer.
func (s *LedgerService) Customer(id string) (core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.ledger.FindByID(id)
	if c == nil {
		return core.Customer{}, core.ErrNotFound
	}
	cc := *c
	cc.Months = append([]core.Month(nil), c.Months...)
	return cc, nil
}

// List returns the customers, optionally sorted by "name" or "meter",
// optionally filtered by a free-text query matching name, meter or phone.
func (s *LedgerService) List(sortBy, order, query string) []core.Customer {
	s.mu.RLock()
	snapshot := s.ledger.Clone()
	s.mu.RUnlock()

	out := snapshot.Customers
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		filtered := out[:0]
		for _, c := range out {
			if strings.Contains(strings.ToLower(c.FullName), q) ||
				strings.Contains(strconv.Itoa(c.MeterNumber), q) ||
				strings.Contains(c.Phone, q) {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}

	lastReading := func(c core.Customer) float64 {
		if m := c.LastMonth(); m != nil {
			return m.NewReading
		}
		return 0
	}

	var less func(i, j int) bool
	switch sortBy {
	case "name":
		less = func(i, j int) bool { return out[i].FullName < out[j].FullName }
	case "meter":
		less = func(i, j int) bool { return out[i].MeterNumber < out[j].MeterNumber }
	case "reading":
		less = func(i, j int) bool { return lastReading(out[i]) < lastReading(out[j]) }
	case "unpaid":
		less = func(i, j int) bool { return out[i].UnpaidCount() < out[j].UnpaidCount() }
	}
	if less != nil {
		if order == "desc" {
			asc := less
			less = func(i, j int) bool { return asc(j, i) }
		}
		sort.SliceStable(out, less)
	}
	return out
}

// Snapshot returns a deep copy of the whole ledger.
func (s *LedgerService) Snapshot() *core.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Clone()
}

// Statistics aggregates the current ledger.
func (s *LedgerService) Statistics() core.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.ComputeStatistics(s.ledger)
}

// Summary builds the wide per-customer matrix.
func (s *LedgerService) Summary() core.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.BuildSummary(s.ledger)
}

// ReplaceLedger swaps in a fully validated ledger, replacing everything.
// Snapshot imports are all-or-nothing; the caller validated the shape.
func (s *LedgerService) ReplaceLedger(ctx context.Context, l *core.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = l

	s.persist(ctx)
	s.logger.Info("ledger replaced", "customers", len(l.Customers))
	return nil
}

// Close releases storage and messaging resources.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.recovery != nil {
		if err := s.recovery.Close(); err != nil {
			errs = append(errs, fmt.Errorf("backup storage: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
