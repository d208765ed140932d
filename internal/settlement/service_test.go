package settlement_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/core/events"
	"github.com/freightops/settlements/internal/freight"
	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payee"
	"github.com/freightops/settlements/internal/payperiod"
	"github.com/freightops/settlements/internal/payplan"
	"github.com/freightops/settlements/internal/settlement"
)

func TestSettlementService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Settlement Service Suite")
}

// Mock settlement repository for testing
type mockSettlementRepository struct {
	settlements map[int64]*settlement.Settlement
	nextID      int64
	createError error
	getError    error
	updateError error
}

func newMockSettlementRepository() *mockSettlementRepository {
	return &mockSettlementRepository{
		settlements: make(map[int64]*settlement.Settlement),
		nextID:      1,
	}
}

func (m *mockSettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	if m.createError != nil {
		return m.createError
	}
	s.ID = m.nextID
	m.nextID++
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.settlements[s.ID] = s
	return nil
}

func (m *mockSettlementRepository) GetByID(ctx context.Context, id int64) (*settlement.Settlement, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	s, ok := m.settlements[id]
	if !ok {
		return nil, internal.ErrSettlementNotFound
	}
	return s, nil
}

func (m *mockSettlementRepository) FindByPayeePeriod(ctx context.Context, payeeID int64, periodStart, periodEnd time.Time) (*settlement.Settlement, error) {
	for _, s := range m.settlements {
		if s.PayeeID == payeeID && s.PeriodStart.Equal(periodStart) && s.PeriodEnd.Equal(periodEnd) && s.Status != settlement.StatusVoid {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSettlementRepository) List(ctx context.Context, filter settlement.ListFilter) ([]*settlement.ListItem, error) {
	var items []*settlement.ListItem
	for _, s := range m.settlements {
		if s.OrganizationID != filter.OrganizationID {
			continue
		}
		items = append(items, &settlement.ListItem{Settlement: *s})
	}
	return items, nil
}

func (m *mockSettlementRepository) Update(ctx context.Context, s *settlement.Settlement) error {
	if m.updateError != nil {
		return m.updateError
	}
	m.settlements[s.ID] = s
	return nil
}

func (m *mockSettlementRepository) Delete(ctx context.Context, id int64) error {
	delete(m.settlements, id)
	return nil
}

func (m *mockSettlementRepository) StatementNumbers(ctx context.Context, orgID int64, year int) ([]string, error) {
	var numbers []string
	for _, s := range m.settlements {
		if s.OrganizationID == orgID && s.StatementNumber != "" {
			numbers = append(numbers, s.StatementNumber)
		}
	}
	return numbers, nil
}

// Mock payable repository for testing
type mockPayableRepository struct {
	payables map[int64]*payable.Payable
	nextID   int64
}

func newMockPayableRepository() *mockPayableRepository {
	return &mockPayableRepository{
		payables: make(map[int64]*payable.Payable),
		nextID:   1,
	}
}

func (m *mockPayableRepository) add(p *payable.Payable) *payable.Payable {
	p.ID = m.nextID
	m.nextID++
	m.payables[p.ID] = p
	return p
}

func (m *mockPayableRepository) Create(ctx context.Context, p *payable.Payable) error {
	m.add(p)
	return nil
}

func (m *mockPayableRepository) GetByID(ctx context.Context, id int64) (*payable.Payable, error) {
	p, ok := m.payables[id]
	if !ok {
		return nil, internal.ErrPayableNotFound
	}
	return p, nil
}

func (m *mockPayableRepository) ListUnassignedByPayee(ctx context.Context, payeeID int64) ([]*payable.Payable, error) {
	var pool []*payable.Payable
	for _, p := range m.payables {
		if p.PayeeID == payeeID && p.SettlementID == nil {
			pool = append(pool, p)
		}
	}
	return pool, nil
}

func (m *mockPayableRepository) ListBySettlement(ctx context.Context, settlementID int64) ([]*payable.Payable, error) {
	var lines []*payable.Payable
	for _, p := range m.payables {
		if p.SettlementID != nil && *p.SettlementID == settlementID {
			lines = append(lines, p)
		}
	}
	return lines, nil
}

func (m *mockPayableRepository) Update(ctx context.Context, p *payable.Payable) error {
	m.payables[p.ID] = p
	return nil
}

func (m *mockPayableRepository) Delete(ctx context.Context, id int64) error {
	delete(m.payables, id)
	return nil
}

func (m *mockPayableRepository) AssignToSettlement(ctx context.Context, ids []int64, settlementID int64) error {
	for _, id := range ids {
		p, ok := m.payables[id]
		if !ok || p.SettlementID != nil {
			return internal.NewConflictError("payable already assigned to a settlement", internal.ErrCodePayableAlreadyAssigned)
		}
	}
	for _, id := range ids {
		sid := settlementID
		m.payables[id].SettlementID = &sid
	}
	return nil
}

func (m *mockPayableRepository) UnassignLoadLinked(ctx context.Context, settlementID int64) (int64, error) {
	var n int64
	for _, p := range m.payables {
		if p.SettlementID != nil && *p.SettlementID == settlementID && p.LoadID != nil {
			p.SettlementID = nil
			n++
		}
	}
	return n, nil
}

func (m *mockPayableRepository) DeleteStandalone(ctx context.Context, settlementID int64) (int64, error) {
	var n int64
	for id, p := range m.payables {
		if p.SettlementID != nil && *p.SettlementID == settlementID && p.LoadID == nil {
			delete(m.payables, id)
			n++
		}
	}
	return n, nil
}

func (m *mockPayableRepository) LockAndStampApproved(ctx context.Context, settlementID int64, approvedAt time.Time) error {
	for _, p := range m.payables {
		if p.SettlementID != nil && *p.SettlementID == settlementID {
			p.IsLocked = true
			at := approvedAt
			p.ApprovedAt = &at
		}
	}
	return nil
}

// Fake unit of work that hands the service the same mocks it reads from.
type fakeUnitOfWork struct {
	repos settlement.Repos
	err   error
}

func (f *fakeUnitOfWork) WithinTx(ctx context.Context, fn func(r settlement.Repos) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(f.repos)
}

// Mock plan reader for testing
type mockPlanReader struct {
	plans    map[int64]*payplan.PayPlan
	getError error
}

func (m *mockPlanReader) GetByID(ctx context.Context, id int64) (*payplan.PayPlan, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	p, ok := m.plans[id]
	if !ok {
		return nil, internal.ErrPayPlanNotFound
	}
	return p, nil
}

// Mock payee reader for testing
type mockPayeeReader struct {
	payees       map[int64]*payee.Payee
	orgs         map[int64]*payee.Organization
	activeByPlan map[int64][]*payee.Payee
	payeeErrors  map[int64]error
}

func newMockPayeeReader() *mockPayeeReader {
	return &mockPayeeReader{
		payees:       make(map[int64]*payee.Payee),
		orgs:         make(map[int64]*payee.Organization),
		activeByPlan: make(map[int64][]*payee.Payee),
		payeeErrors:  make(map[int64]error),
	}
}

func (m *mockPayeeReader) GetPayee(ctx context.Context, id int64) (*payee.Payee, error) {
	if err := m.payeeErrors[id]; err != nil {
		return nil, err
	}
	p, ok := m.payees[id]
	if !ok {
		return nil, internal.ErrPayeeNotFound
	}
	return p, nil
}

func (m *mockPayeeReader) ListActiveByPlan(ctx context.Context, planID int64) ([]*payee.Payee, error) {
	return m.activeByPlan[planID], nil
}

func (m *mockPayeeReader) CountAssignedToPlan(ctx context.Context, planID int64) (int64, error) {
	return int64(len(m.activeByPlan[planID])), nil
}

func (m *mockPayeeReader) GetOrganization(ctx context.Context, id int64) (*payee.Organization, error) {
	return m.orgs[id], nil
}

// Mock freight reader for testing
type mockFreightReader struct {
	loads map[int64]*freight.Load
	snaps map[int64]*freight.Snapshot
}

func newMockFreightReader() *mockFreightReader {
	return &mockFreightReader{
		loads: make(map[int64]*freight.Load),
		snaps: make(map[int64]*freight.Snapshot),
	}
}

func (m *mockFreightReader) GetLoad(ctx context.Context, id int64) (*freight.Load, error) {
	return m.loads[id], nil
}

func (m *mockFreightReader) GetLoads(ctx context.Context, ids []int64) (map[int64]*freight.Load, error) {
	out := make(map[int64]*freight.Load)
	for _, id := range ids {
		if l, ok := m.loads[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

func (m *mockFreightReader) Snapshot(ctx context.Context, loadID int64, legID *int64) (*freight.Snapshot, error) {
	return m.snaps[loadID], nil
}

// Recording event bus for testing
type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) types() []string {
	var out []string
	for _, e := range b.published {
		out = append(out, e.EventType())
	}
	return out
}

var _ = Describe("SettlementService", func() {
	var (
		svc         *settlement.Service
		stmtRepo    *mockSettlementRepository
		lineRepo    *mockPayableRepository
		planReader  *mockPlanReader
		payeeReader *mockPayeeReader
		dispatch    *mockFreightReader
		bus         *recordingBus
		ctx         context.Context
	)

	const (
		orgID   = int64(1)
		planID  = int64(1)
		payeeID = int64(7)
	)

	// Wednesday inside the Mon Jun 15 - Sun Jun 21 2026 week.
	refDate := time.Date(2026, time.June, 17, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	deliveredAt := func(day, hour int) *time.Time {
		t := time.Date(2026, time.June, day, hour, 0, 0, 0, time.UTC)
		return &t
	}

	seedLoadLine := func(loadID int64, miles, total float64, held bool, checkout *time.Time) *payable.Payable {
		dispatch.loads[loadID] = &freight.Load{
			ID:             loadID,
			OrganizationID: orgID,
			EffectiveMiles: decimal.NewFromFloat(miles),
			IsHeld:         held,
			HasSignedPOD:   true,
		}
		snap := &freight.Snapshot{Load: dispatch.loads[loadID]}
		if checkout != nil {
			snap.LastDeliveryStop = &freight.Stop{
				LoadID:       loadID,
				StopType:     freight.StopTypeDelivery,
				CheckedOutAt: checkout,
			}
		}
		dispatch.snaps[loadID] = snap
		lid := loadID
		return lineRepo.add(&payable.Payable{
			OrganizationID: orgID,
			PayeeID:        payeeID,
			LoadID:         &lid,
			Description:    "Linehaul",
			Quantity:       decimal.NewFromFloat(miles),
			Rate:           decimal.NewFromFloat(0.62),
			TotalAmount:    decimal.NewFromFloat(total),
			SourceType:     payable.SourceSystem,
			CreatedAt:      refDate,
			UpdatedAt:      refDate,
		})
	}

	seedStandalone := func(total float64) *payable.Payable {
		return lineRepo.add(&payable.Payable{
			OrganizationID: orgID,
			PayeeID:        payeeID,
			Description:    "Safety bonus",
			TotalAmount:    decimal.NewFromFloat(total),
			SourceType:     payable.SourceManual,
			IsLocked:       true,
			CreatedAt:      refDate,
			UpdatedAt:      refDate,
		})
	}

	generateDraft := func() *settlement.GenerateResult {
		ref := refDate
		result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
			OrganizationID: orgID,
			PayeeID:        payeeID,
			ReferenceDate:  &ref,
		})
		Expect(err).ToNot(HaveOccurred())
		return result
	}

	BeforeEach(func() {
		stmtRepo = newMockSettlementRepository()
		lineRepo = newMockPayableRepository()
		planReader = &mockPlanReader{plans: make(map[int64]*payplan.PayPlan)}
		payeeReader = newMockPayeeReader()
		dispatch = newMockFreightReader()
		bus = &recordingBus{}

		anchor := int(time.Monday)
		planReader.plans[planID] = &payplan.PayPlan{
			ID:                           planID,
			OrganizationID:               orgID,
			Name:                         "Weekly Drivers",
			Frequency:                    string(payperiod.FrequencyWeekly),
			AnchorDayOfWeek:              &anchor,
			CutoffTime:                   "23:59",
			PayableTrigger:               payplan.TriggerDeliveryDate,
			IncludeStandaloneAdjustments: true,
			IsActive:                     true,
		}
		payeeReader.orgs[orgID] = &payee.Organization{ID: orgID, Name: "Test Carrier", DefaultTimezone: "UTC"}
		pid := planID
		payeeReader.payees[payeeID] = &payee.Payee{
			ID:             payeeID,
			OrganizationID: orgID,
			PayeeType:      payee.TypeDriver,
			DisplayName:    "Dana Ops",
			PayPlanID:      &pid,
			IsActive:       true,
		}

		repos := settlement.Repos{Settlements: stmtRepo, Payables: lineRepo}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = settlement.NewService(
			&fakeUnitOfWork{repos: repos},
			repos,
			planReader,
			payeeReader,
			dispatch,
			bus,
			settlement.EngineConfig{
				DefaultTimezone: "UTC",
				StatementPrefix: "STL",
				SequencePadding: 4,
			},
			logger,
		)

		ctx = internal.ContextWithOperator(context.Background(), &internal.Operator{
			ID:          "op-1",
			Name:        "Pay Admin",
			Permissions: []string{"admin"},
		})
	})

	Describe("Generate", func() {
		It("should create a draft covering the plan period for the reference date", func() {
			eligible := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			seedLoadLine(200, 90, 60.00, true, deliveredAt(16, 14))  // held
			seedLoadLine(300, 120, 74.40, false, nil)                // no trigger signal
			standalone := seedStandalone(50.00)

			ref := refDate
			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				ReferenceDate:  &ref,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.AlreadyExisted).To(BeFalse())
			Expect(result.EligibleCount).To(Equal(2))
			Expect(result.HeldCount).To(Equal(1))
			Expect(result.UnresolvedCount).To(Equal(1))

			stmt := result.Settlement
			Expect(stmt.Status).To(Equal(settlement.StatusDraft))
			Expect(stmt.StatementNumber).To(Equal("STL-2026-0001"))
			Expect(stmt.PeriodStart.Equal(periodStart)).To(BeTrue())
			Expect(stmt.PeriodEnd.Equal(periodStart.AddDate(0, 0, 7).Add(-time.Millisecond))).To(BeTrue())
			Expect(stmt.GrossTotal.StringFixed(2)).To(Equal("205.00"))
			Expect(stmt.TotalLoads).To(Equal(1))
			Expect(stmt.TotalManualAdjustments.StringFixed(2)).To(Equal("50.00"))

			Expect(eligible.SettlementID).ToNot(BeNil())
			Expect(*eligible.SettlementID).To(Equal(stmt.ID))
			Expect(standalone.SettlementID).ToNot(BeNil())

			Expect(bus.types()).To(ContainElement(events.EventTypeSettlementGenerated))
		})

		It("should return the existing settlement instead of creating a duplicate", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))

			first := generateDraft()

			ref := refDate
			second, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				ReferenceDate:  &ref,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(second.AlreadyExisted).To(BeTrue())
			Expect(second.Settlement.ID).To(Equal(first.Settlement.ID))
			Expect(stmtRepo.settlements).To(HaveLen(1))
		})

		It("should allocate sequential statement numbers within the organization and year", func() {
			generateDraft()

			nextWeek := refDate.AddDate(0, 0, 7)
			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				ReferenceDate:  &nextWeek,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Settlement.StatementNumber).To(Equal("STL-2026-0002"))
		})

		It("should include held loads when asked to", func() {
			seedLoadLine(200, 90, 60.00, true, deliveredAt(16, 14))

			ref := refDate
			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				ReferenceDate:  &ref,
				IncludeHeld:    true,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.EligibleCount).To(Equal(1))
			Expect(result.HeldCount).To(Equal(0))
		})

		It("should reject a payee belonging to another organization", func() {
			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: 99,
				PayeeID:        payeeID,
			})

			Expect(err).To(HaveOccurred())
			Expect(result).To(BeNil())
		})

		It("should require an explicit range for payees without a plan", func() {
			payeeReader.payees[8] = &payee.Payee{ID: 8, OrganizationID: orgID, PayeeType: payee.TypeCarrier, DisplayName: "Ad Hoc Carrier", IsActive: true}

			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        8,
			})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("explicit period"))
			Expect(result).To(BeNil())
		})

		It("should honor an explicit period range over the plan schedule", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))

			start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
			end := time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC)
			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				PeriodStart:    &start,
				PeriodEnd:      &end,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Settlement.PeriodStart.Equal(start)).To(BeTrue())
			Expect(result.Settlement.PeriodEnd.Equal(end)).To(BeTrue())
			Expect(result.Settlement.PayDate.Equal(end)).To(BeTrue())
			Expect(result.Settlement.PeriodNumber).To(BeNil())
			Expect(result.EligibleCount).To(Equal(1))
		})

		It("should not treat an ad-hoc range sharing a period start as already generated", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			first := generateDraft()

			start := periodStart
			end := time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC)
			result, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				PeriodStart:    &start,
				PeriodEnd:      &end,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.AlreadyExisted).To(BeFalse())
			Expect(result.Settlement.ID).ToNot(Equal(first.Settlement.ID))
			Expect(result.Settlement.StatementNumber).To(Equal("STL-2026-0002"))
		})

		It("should reject a range missing one end", func() {
			start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
			_, err := svc.Generate(ctx, settlement.GenerateStatementDTO{
				OrganizationID: orgID,
				PayeeID:        payeeID,
				PeriodStart:    &start,
			})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("together"))
		})
	})

	Describe("BulkGenerate", func() {
		BeforeEach(func() {
			pid := planID
			payeeReader.payees[9] = &payee.Payee{ID: 9, OrganizationID: orgID, PayeeType: payee.TypeDriver, DisplayName: "Second Driver", PayPlanID: &pid, IsActive: true}
			payeeReader.activeByPlan[planID] = []*payee.Payee{payeeReader.payees[payeeID], payeeReader.payees[9]}
		})

		It("should create one settlement per active payee on the plan", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))

			ref := refDate
			result, err := svc.BulkGenerate(ctx, settlement.BulkGenerateDTO{
				OrganizationID: orgID,
				PayPlanID:      planID,
				ReferenceDate:  &ref,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.BatchID).ToNot(BeEmpty())
			Expect(result.Created).To(Equal(2))
			Expect(result.Items).To(HaveLen(2))
		})

		It("should isolate one payee's failure from the rest of the batch", func() {
			payeeReader.payeeErrors[9] = errors.New("payee lookup failed")

			ref := refDate
			result, err := svc.BulkGenerate(ctx, settlement.BulkGenerateDTO{
				OrganizationID: orgID,
				PayPlanID:      planID,
				ReferenceDate:  &ref,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Created).To(Equal(1))
			Expect(result.Failed).To(Equal(1))

			var failed *settlement.BulkItem
			for i := range result.Items {
				if result.Items[i].StatusCode == settlement.BulkStatusFailed {
					failed = &result.Items[i]
				}
			}
			Expect(failed).ToNot(BeNil())
			Expect(failed.PayeeID).To(Equal(int64(9)))
			Expect(failed.Error).To(ContainSubstring("payee lookup failed"))
		})

		It("should mark payees with an existing settlement as skipped", func() {
			generateDraft()

			ref := refDate
			result, err := svc.BulkGenerate(ctx, settlement.BulkGenerateDTO{
				OrganizationID: orgID,
				PayPlanID:      planID,
				ReferenceDate:  &ref,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Skipped).To(Equal(1))
			Expect(result.Created).To(Equal(1))
		})
	})

	Describe("Refresh", func() {
		It("should re-run eligibility against the stored period", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			seedStandalone(50.00)
			stmt := generateDraft().Settlement

			// new work delivered after the first generation run
			seedLoadLine(400, 80, 49.60, false, deliveredAt(18, 9))

			result, err := svc.Refresh(ctx, stmt.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(result.Removed).To(Equal(int64(1)))
			Expect(result.Deleted).To(Equal(int64(1))) // the standalone dies with the rebuild
			Expect(result.Added).To(Equal(2))
			Expect(result.Settlement.GrossTotal.StringFixed(2)).To(Equal("204.60"))
			Expect(result.Settlement.TotalLoads).To(Equal(2))
		})

		It("should refuse to refresh a non-draft settlement", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			stmt.Status = settlement.StatusApproved

			_, err := svc.Refresh(ctx, stmt.ID)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("draft"))
		})
	})

	Describe("UpdateStatus", func() {
		It("should require an authenticated operator", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			_, err := svc.UpdateStatus(context.Background(), stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusPending})

			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})

		It("should refuse skipping a lifecycle step", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			_, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusApproved})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("cannot move settlement"))
		})

		It("should freeze totals and lock member lines at approval", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			_, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusPending})
			Expect(err).ToNot(HaveOccurred())

			approved, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusApproved})

			Expect(err).ToNot(HaveOccurred())
			Expect(approved.Status).To(Equal(settlement.StatusApproved))
			Expect(approved.ApprovedBy).ToNot(BeNil())
			Expect(*approved.ApprovedBy).To(Equal("op-1"))
			Expect(approved.ApprovedAt).ToNot(BeNil())
			Expect(approved.GrossTotal.StringFixed(2)).To(Equal("155.00"))

			Expect(line.IsLocked).To(BeTrue())
			Expect(line.ApprovedAt).ToNot(BeNil())

			Expect(bus.types()).To(ContainElement(events.EventTypeSettlementApproved))
		})

		It("should stamp payment details when marking paid", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			_, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusPending})
			Expect(err).ToNot(HaveOccurred())
			_, err = svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusApproved})
			Expect(err).ToNot(HaveOccurred())

			method := "ACH"
			ref := "batch-42"
			paid, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{
				Status:        settlement.StatusPaid,
				PaymentMethod: &method,
				PaymentRef:    &ref,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(paid.Status).To(Equal(settlement.StatusPaid))
			Expect(*paid.PaymentMethod).To(Equal("ACH"))
			Expect(*paid.PaymentRef).To(Equal("batch-42"))
			Expect(paid.PaidAt).ToNot(BeNil())
		})

		It("should require a reason when voiding", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			_, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: settlement.StatusVoid})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("reason"))
		})

		It("should void with an audit trail", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			reason := "duplicate statement"
			voided, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{
				Status: settlement.StatusVoid,
				Reason: &reason,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(voided.Status).To(Equal(settlement.StatusVoid))
			Expect(*voided.VoidedBy).To(Equal("op-1"))
			Expect(*voided.VoidReason).To(Equal("duplicate statement"))
			Expect(bus.types()).To(ContainElement(events.EventTypeSettlementVoided))
		})

		It("should treat PAID as terminal", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			for _, status := range []string{settlement.StatusPending, settlement.StatusApproved, settlement.StatusPaid} {
				_, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{Status: status})
				Expect(err).ToNot(HaveOccurred())
			}

			reason := "too late"
			_, err := svc.UpdateStatus(ctx, stmt.ID, settlement.UpdateStatusDTO{
				Status: settlement.StatusVoid,
				Reason: &reason,
			})

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		It("should return load-linked lines to the pool and drop standalones", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			standalone := seedStandalone(50.00)
			stmt := generateDraft().Settlement

			err := svc.Delete(ctx, stmt.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(stmtRepo.settlements).To(BeEmpty())
			Expect(line.SettlementID).To(BeNil())
			_, exists := lineRepo.payables[standalone.ID]
			Expect(exists).To(BeFalse())
		})

		It("should refuse deleting an approved settlement", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			stmt.Status = settlement.StatusApproved

			err := svc.Delete(ctx, stmt.ID)

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AddManualAdjustment", func() {
		It("should append a locked manual line and update the totals", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			amount := decimal.NewFromFloat(-35.00)
			line, err := svc.AddManualAdjustment(ctx, stmt.ID, payable.ManualAdjustmentDTO{
				Description: "Fuel advance repayment",
				TotalAmount: &amount,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(line.SourceType).To(Equal(payable.SourceManual))
			Expect(line.IsLocked).To(BeTrue())
			Expect(line.SettlementID).ToNot(BeNil())
			Expect(stmt.GrossTotal.StringFixed(2)).To(Equal("120.00"))
			Expect(stmt.TotalManualAdjustments.StringFixed(2)).To(Equal("-35.00"))
		})

		It("should refuse adding lines to a non-draft settlement", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			stmt.Status = settlement.StatusPending

			amount := decimal.NewFromFloat(10)
			_, err := svc.AddManualAdjustment(ctx, stmt.ID, payable.ManualAdjustmentDTO{
				Description: "Late add",
				TotalAmount: &amount,
			})

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("UpdatePayable", func() {
		It("should convert an edited system line to manual and resummarize", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			qty := decimal.NewFromFloat(260)
			updated, err := svc.UpdatePayable(ctx, line.ID, payable.UpdatePayableDTO{Quantity: &qty})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.SourceType).To(Equal(payable.SourceManual))
			Expect(updated.IsLocked).To(BeTrue())
			Expect(updated.TotalAmount.StringFixed(2)).To(Equal("161.20")) // 260 * 0.62
			Expect(stmt.GrossTotal.StringFixed(2)).To(Equal("161.20"))
		})

		It("should refuse edits once the settlement leaves draft", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			stmt.Status = settlement.StatusPending

			qty := decimal.NewFromFloat(260)
			_, err := svc.UpdatePayable(ctx, line.ID, payable.UpdatePayableDTO{Quantity: &qty})

			Expect(err).To(HaveOccurred())
		})

		It("should refuse edits to a locked unassigned line", func() {
			standalone := seedStandalone(50.00)

			desc := "renamed"
			_, err := svc.UpdatePayable(ctx, standalone.ID, payable.UpdatePayableDTO{Description: &desc})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("locked"))
		})

		It("should allow editing an unassigned unlocked system line", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))

			override := decimal.NewFromFloat(170)
			updated, err := svc.UpdatePayable(ctx, line.ID, payable.UpdatePayableDTO{TotalAmount: &override})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.SourceType).To(Equal(payable.SourceManual))
			Expect(updated.TotalAmount.StringFixed(2)).To(Equal("170.00"))
		})
	})

	Describe("RemovePayable", func() {
		It("should delete a standalone manual line outright", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			standalone := seedStandalone(50.00)
			stmt := generateDraft().Settlement

			err := svc.RemovePayable(ctx, standalone.ID)

			Expect(err).ToNot(HaveOccurred())
			_, exists := lineRepo.payables[standalone.ID]
			Expect(exists).To(BeFalse())
			Expect(stmt.GrossTotal.StringFixed(2)).To(Equal("155.00"))
		})

		It("should return a load-linked line to the pool", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			err := svc.RemovePayable(ctx, line.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(line.SettlementID).To(BeNil())
			_, exists := lineRepo.payables[line.ID]
			Expect(exists).To(BeTrue())
			Expect(stmt.GrossTotal.StringFixed(2)).To(Equal("0.00"))
		})

		It("should refuse deleting an unassigned system line", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))

			err := svc.RemovePayable(ctx, line.ID)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("system"))
		})

		It("should refuse removing lines from an approved settlement", func() {
			line := seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement
			stmt.Status = settlement.StatusApproved

			err := svc.RemovePayable(ctx, line.ID)

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Detail", func() {
		It("should return lines with audit flags computed on read", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			dispatch.loads[100].HasSignedPOD = false
			stmt := generateDraft().Settlement

			detail, err := svc.Detail(ctx, stmt.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(detail.Payee).ToNot(BeNil())
			Expect(detail.Payee.DisplayName).To(Equal("Dana Ops"))
			Expect(detail.Lines).To(HaveLen(1))
			Expect(detail.NetTotal.StringFixed(2)).To(Equal("155.00"))

			var flagTypes []settlement.FlagType
			for _, f := range detail.Flags {
				flagTypes = append(flagTypes, f.Type)
			}
			Expect(flagTypes).To(ContainElement(settlement.FlagMissingPOD))
		})

		It("should surface held and unresolved pool items separately", func() {
			seedLoadLine(100, 250, 155.00, false, deliveredAt(16, 10))
			stmt := generateDraft().Settlement

			held := seedLoadLine(200, 90, 60.00, true, deliveredAt(16, 14))
			unresolved := seedLoadLine(300, 120, 74.40, false, nil)

			detail, err := svc.Detail(ctx, stmt.ID)

			Expect(err).ToNot(HaveOccurred())
			Expect(detail.Lines).To(HaveLen(1))
			Expect(detail.HeldPayables).To(HaveLen(1))
			Expect(detail.HeldPayables[0].ID).To(Equal(held.ID))
			Expect(detail.UnresolvedPayables).To(HaveLen(1))
			Expect(detail.UnresolvedPayables[0].ID).To(Equal(unresolved.ID))
		})
	})
})
