package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/core/events"
	"github.com/freightops/settlements/internal/freight"
	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payee"
	"github.com/freightops/settlements/internal/payperiod"
	"github.com/freightops/settlements/internal/payplan"
)

// PlanReader is the slice of the pay plan repository the settlement
// engine needs.
type PlanReader interface {
	GetByID(ctx context.Context, id int64) (*payplan.PayPlan, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EngineConfig carries the engine-level defaults applied when neither the
// plan nor the organization specifies a value.
type EngineConfig struct {
	DefaultTimezone string
	StatementPrefix string
	SequencePadding int
	Calendar        *payperiod.HolidayCalendar
}

// Defaults applied to ad-hoc generation for payees without a plan.
const (
	defaultTrigger = payplan.TriggerDeliveryDate
	defaultCutoff  = payplan.DefaultCutoffTime
)

// periodNumberCap bounds the scan when numbering a period within its
// year; weekly plans have at most 54 periods touching a calendar year.
const periodNumberCap = 60

type Service struct {
	uow     UnitOfWork
	repos   Repos
	plans   PlanReader
	payees  payee.Reader
	freight freight.Reader
	events  EventPublisher
	cfg     EngineConfig
	logger  *slog.Logger
}

func NewService(uow UnitOfWork, repos Repos, plans PlanReader, payees payee.Reader, fr freight.Reader, bus EventPublisher, cfg EngineConfig, logger *slog.Logger) *Service {
	return &Service{
		uow:     uow,
		repos:   repos,
		plans:   plans,
		payees:  payees,
		freight: fr,
		events:  bus,
		cfg:     cfg,
		logger:  logger,
	}
}

// generationContext is everything Generate resolves up front: the payee,
// their plan when they have one, the resolved period, and the eligibility
// policy for that period.
type generationContext struct {
	payee  *payee.Payee
	plan   *payplan.PayPlan
	period payperiod.Period
	number *int
	policy PeriodPolicy
}

// Generate creates one settlement for one payee covering the period that
// contains the reference date, or the explicit range when one is given.
// Generation is idempotent per payee and exact period.
func (s *Service) Generate(ctx context.Context, dto GenerateStatementDTO) (*GenerateResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	gctx, err := s.resolveGeneration(ctx, dto)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repos.Settlements.FindByPayeePeriod(ctx, dto.PayeeID, gctx.period.Start, gctx.period.End); err != nil {
		return nil, err
	} else if existing != nil {
		return &GenerateResult{Settlement: existing, AlreadyExisted: true}, nil
	}

	stmt := &Settlement{
		OrganizationID: dto.OrganizationID,
		PayeeID:        dto.PayeeID,
		PeriodNumber:   gctx.number,
		PeriodStart:    gctx.period.Start,
		PeriodEnd:      gctx.period.End,
		PayDate:        gctx.period.PayDate,
		Status:         StatusDraft,
	}
	if gctx.plan != nil {
		stmt.PayPlanID = &gctx.plan.ID
	}

	alreadyExisted := false
	var filtered FilterResult
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		// re-probe under the transaction; a concurrent run may have won
		existing, err := r.Settlements.FindByPayeePeriod(ctx, dto.PayeeID, gctx.period.Start, gctx.period.End)
		if err != nil {
			return err
		}
		if existing != nil {
			stmt = existing
			alreadyExisted = true
			return nil
		}

		// read the pool under the same transaction that assigns it, so a
		// line captured by a concurrent settlement is never counted here
		pool, err := r.Payables.ListUnassignedByPayee(ctx, dto.PayeeID)
		if err != nil {
			return err
		}
		snaps, err := s.loadSnapshots(ctx, pool)
		if err != nil {
			return err
		}
		filtered = FilterEligible(pool, snaps, gctx.policy)

		number, err := s.allocateStatementNumber(ctx, r, dto.OrganizationID, gctx.period.Start)
		if err != nil {
			return err
		}
		stmt.StatementNumber = number
		stmt.ApplySummary(Summarize(filtered.Eligible))

		if err := r.Settlements.Create(ctx, stmt); err != nil {
			return err
		}
		ids := make([]int64, len(filtered.Eligible))
		for i, p := range filtered.Eligible {
			ids[i] = p.ID
		}
		return r.Payables.AssignToSettlement(ctx, ids, stmt.ID)
	})
	if err != nil {
		s.logger.Error("settlement generation failed",
			"error", err,
			"payee_id", dto.PayeeID,
			"period_start", gctx.period.Start)
		return nil, err
	}

	if alreadyExisted {
		return &GenerateResult{Settlement: stmt, AlreadyExisted: true}, nil
	}

	s.logger.Info("settlement generated",
		"settlement_id", stmt.ID,
		"statement_number", stmt.StatementNumber,
		"payee_id", dto.PayeeID,
		"eligible", len(filtered.Eligible),
		"held", len(filtered.Held),
		"unresolved", len(filtered.Unresolved))

	s.events.Publish(ctx, events.NewSettlementGeneratedEvent(stmt.ID, stmt.PayeeID, stmt.StatementNumber, len(filtered.Eligible)))

	return &GenerateResult{
		Settlement:      stmt,
		EligibleCount:   len(filtered.Eligible),
		HeldCount:       len(filtered.Held),
		UnresolvedCount: len(filtered.Unresolved),
	}, nil
}

// BulkGenerate runs Generate for every active payee on a plan. Each payee
// is isolated; one failure is recorded and the batch moves on.
func (s *Service) BulkGenerate(ctx context.Context, dto BulkGenerateDTO) (*BulkResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	plan, err := s.plans.GetByID(ctx, dto.PayPlanID)
	if err != nil {
		return nil, err
	}
	members, err := s.payees.ListActiveByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{BatchID: uuid.New().String()}
	for _, member := range members {
		item := BulkItem{PayeeID: member.ID}
		gen, err := s.Generate(ctx, GenerateStatementDTO{
			OrganizationID: dto.OrganizationID,
			PayeeID:        member.ID,
			ReferenceDate:  dto.ReferenceDate,
			IncludeHeld:    dto.IncludeHeld,
		})
		switch {
		case err != nil:
			item.StatusCode = BulkStatusFailed
			item.Error = err.Error()
			result.Failed++
		case gen.AlreadyExisted:
			item.StatusCode = BulkStatusSkipped
			item.Result = gen
			result.Skipped++
		default:
			item.StatusCode = BulkStatusCreated
			item.Result = gen
			result.Created++
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("bulk settlement generation finished",
		"batch_id", result.BatchID,
		"plan_id", plan.ID,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}

// Refresh re-runs eligibility for a draft settlement: load-linked lines
// return to the pool, standalone lines are dropped, and the current pool
// is re-filtered against the stored period.
func (s *Service) Refresh(ctx context.Context, id int64) (*RefreshResult, error) {
	stmt, err := s.repos.Settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !OperationAllowed(OpRefresh, stmt.Status) {
		return nil, internal.NewStateConflictError("only draft settlements can be refreshed", stmt.Status, internal.ErrCodeSettlementNotDraft)
	}

	policy, err := s.policyForSettlement(ctx, stmt)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{}
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		removed, err := r.Payables.UnassignLoadLinked(ctx, stmt.ID)
		if err != nil {
			return err
		}
		deleted, err := r.Payables.DeleteStandalone(ctx, stmt.ID)
		if err != nil {
			return err
		}

		pool, err := r.Payables.ListUnassignedByPayee(ctx, stmt.PayeeID)
		if err != nil {
			return err
		}
		snaps, err := s.loadSnapshots(ctx, pool)
		if err != nil {
			return err
		}
		filtered := FilterEligible(pool, snaps, policy)

		ids := make([]int64, len(filtered.Eligible))
		for i, p := range filtered.Eligible {
			ids[i] = p.ID
		}
		if err := r.Payables.AssignToSettlement(ctx, ids, stmt.ID); err != nil {
			return err
		}

		stmt.ApplySummary(Summarize(filtered.Eligible))
		stmt.UpdatedAt = time.Now()
		if err := r.Settlements.Update(ctx, stmt); err != nil {
			return err
		}

		result.Settlement = stmt
		result.Removed = removed
		result.Deleted = deleted
		result.Added = len(filtered.Eligible)
		result.Held = len(filtered.Held)
		result.Unresolved = len(filtered.Unresolved)
		return nil
	})
	if err != nil {
		s.logger.Error("settlement refresh failed", "error", err, "settlement_id", id)
		return nil, err
	}

	s.logger.Info("settlement refreshed",
		"settlement_id", id,
		"removed", result.Removed,
		"deleted", result.Deleted,
		"added", result.Added)
	return result, nil
}

// UpdateStatus moves a settlement through its lifecycle. Approval freezes
// the totals and locks every member line in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id int64, dto UpdateStatusDTO) (*Settlement, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	operator, ok := internal.OperatorFromContext(ctx)
	if !ok {
		return nil, internal.ErrUnauthorizedAccess
	}

	stmt, err := s.repos.Settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(stmt.Status, dto.Status) {
		return nil, internal.NewStateConflictError(
			fmt.Sprintf("cannot move settlement from %s to %s", stmt.Status, dto.Status),
			stmt.Status, internal.ErrCodeInvalidTransition)
	}

	now := time.Now()
	switch dto.Status {
	case StatusPending:
		stmt.Status = StatusPending
		stmt.UpdatedAt = now
		if err := s.repos.Settlements.Update(ctx, stmt); err != nil {
			return nil, err
		}

	case StatusApproved:
		err = s.uow.WithinTx(ctx, func(r Repos) error {
			lines, err := r.Payables.ListBySettlement(ctx, stmt.ID)
			if err != nil {
				return err
			}
			stmt.Freeze(Summarize(lines), operator.ID, now)
			if err := r.Payables.LockAndStampApproved(ctx, stmt.ID, now); err != nil {
				return err
			}
			return r.Settlements.Update(ctx, stmt)
		})
		if err != nil {
			return nil, err
		}
		s.events.Publish(ctx, events.NewSettlementApprovedEvent(stmt.ID, stmt.PayeeID, stmt.StatementNumber, stmt.GrossTotal, operator.ID))

	case StatusPaid:
		method, ref := "", ""
		if dto.PaymentMethod != nil {
			method = *dto.PaymentMethod
		}
		if dto.PaymentRef != nil {
			ref = *dto.PaymentRef
		}
		stmt.MarkPaid(method, ref, now)
		if err := s.repos.Settlements.Update(ctx, stmt); err != nil {
			return nil, err
		}

	case StatusVoid:
		stmt.MarkVoid(operator.ID, *dto.Reason, now)
		if err := s.repos.Settlements.Update(ctx, stmt); err != nil {
			return nil, err
		}
		s.events.Publish(ctx, events.NewSettlementVoidedEvent(stmt.ID, stmt.PayeeID, *dto.Reason, operator.ID))
	}

	s.logger.Info("settlement status changed",
		"settlement_id", stmt.ID,
		"status", stmt.Status,
		"operator", operator.ID)
	return stmt, nil
}

// Delete removes a DRAFT or VOID settlement. Load-linked lines go back to
// the unassigned pool; standalone adjustments die with the statement.
func (s *Service) Delete(ctx context.Context, id int64) error {
	stmt, err := s.repos.Settlements.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !OperationAllowed(OpDelete, stmt.Status) {
		return internal.NewStateConflictError("only draft or void settlements can be deleted", stmt.Status, internal.ErrCodeSettlementLocked)
	}

	err = s.uow.WithinTx(ctx, func(r Repos) error {
		if _, err := r.Payables.UnassignLoadLinked(ctx, stmt.ID); err != nil {
			return err
		}
		if _, err := r.Payables.DeleteStandalone(ctx, stmt.ID); err != nil {
			return err
		}
		return r.Settlements.Delete(ctx, stmt.ID)
	})
	if err != nil {
		s.logger.Error("settlement delete failed", "error", err, "settlement_id", id)
		return err
	}

	s.logger.Info("settlement deleted", "settlement_id", id, "status_was", stmt.Status)
	return nil
}

// AddManualAdjustment appends an operator-entered line to a draft.
func (s *Service) AddManualAdjustment(ctx context.Context, settlementID int64, dto payable.ManualAdjustmentDTO) (*payable.Payable, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	stmt, err := s.repos.Settlements.GetByID(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if !OperationAllowed(OpAddLine, stmt.Status) {
		return nil, internal.NewStateConflictError("lines can only be added to draft settlements", stmt.Status, internal.ErrCodeSettlementNotDraft)
	}

	line := dto.ToPayable(stmt.OrganizationID, stmt.PayeeID, &stmt.ID)
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		if err := r.Payables.Create(ctx, line); err != nil {
			return err
		}
		return s.resummarize(ctx, r, stmt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual adjustment added",
		"settlement_id", settlementID,
		"payable_id", line.ID,
		"amount", line.TotalAmount)
	return line, nil
}

// UpdatePayable patches a money line. Editing a SYSTEM line converts it
// to MANUAL so pay recalculation leaves the operator's numbers alone.
// Lines inside a settlement can only be edited while it is a draft.
func (s *Service) UpdatePayable(ctx context.Context, payableID int64, dto payable.UpdatePayableDTO) (*payable.Payable, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	line, err := s.repos.Payables.GetByID(ctx, payableID)
	if err != nil {
		return nil, err
	}

	var stmt *Settlement
	if line.SettlementID != nil {
		stmt, err = s.repos.Settlements.GetByID(ctx, *line.SettlementID)
		if err != nil {
			return nil, err
		}
		if !OperationAllowed(OpEditLine, stmt.Status) {
			return nil, internal.NewStateConflictError("lines can only be edited while the settlement is a draft", stmt.Status, internal.ErrCodeSettlementNotDraft)
		}
	} else if line.IsLocked {
		return nil, internal.NewStateConflictError("payable is locked", "", internal.ErrCodePayableLocked)
	}

	wasSystem := line.SourceType == payable.SourceSystem
	dto.Apply(line)
	if wasSystem {
		line.ConvertToManual()
	}

	err = s.uow.WithinTx(ctx, func(r Repos) error {
		if err := r.Payables.Update(ctx, line); err != nil {
			return err
		}
		if stmt == nil {
			return nil
		}
		return s.resummarize(ctx, r, stmt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payable updated",
		"payable_id", payableID,
		"converted_to_manual", wasSystem)
	return line, nil
}

// RemovePayable detaches a line from its draft settlement, or deletes an
// unassigned manual line. Standalone manual adjustments are deleted
// outright; load-linked lines return to the unassigned pool. SYSTEM
// lines outside a settlement are owned by pay calculation and refused.
func (s *Service) RemovePayable(ctx context.Context, payableID int64) error {
	line, err := s.repos.Payables.GetByID(ctx, payableID)
	if err != nil {
		return err
	}

	var stmt *Settlement
	if line.SettlementID != nil {
		stmt, err = s.repos.Settlements.GetByID(ctx, *line.SettlementID)
		if err != nil {
			return err
		}
		if !OperationAllowed(OpRemoveLine, stmt.Status) {
			return internal.NewStateConflictError("lines can only be removed while the settlement is a draft", stmt.Status, internal.ErrCodeSettlementNotDraft)
		}
	} else if !line.IsManual() {
		return internal.NewStateConflictError("system payables cannot be deleted", "", internal.ErrCodePayableNotManual)
	}

	deleteLine := line.IsManual() && line.IsStandalone()
	err = s.uow.WithinTx(ctx, func(r Repos) error {
		if deleteLine || stmt == nil {
			if err := r.Payables.Delete(ctx, line.ID); err != nil {
				return err
			}
		} else {
			line.SettlementID = nil
			line.UpdatedAt = time.Now()
			if err := r.Payables.Update(ctx, line); err != nil {
				return err
			}
		}
		if stmt == nil {
			return nil
		}
		return s.resummarize(ctx, r, stmt)
	})
	if err != nil {
		return err
	}

	s.logger.Info("payable removed",
		"payable_id", payableID,
		"deleted", deleteLine)
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*ListItem, error) {
	items, err := s.repos.Settlements.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.PeriodLabel = item.Settlement.PeriodLabel()
	}
	return items, nil
}

// Detail loads a settlement with its lines and a fresh audit scan. The
// payee's held and unresolved pool items are evaluated against the
// stored period and returned separately, never merged into the lines.
func (s *Service) Detail(ctx context.Context, id int64) (*Detail, error) {
	stmt, err := s.repos.Settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	member, err := s.payees.GetPayee(ctx, stmt.PayeeID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repos.Payables.ListBySettlement(ctx, id)
	if err != nil {
		return nil, err
	}

	loadIDs := distinctLoadIDs(lines)
	loads, err := s.freight.GetLoads(ctx, loadIDs)
	if err != nil {
		return nil, err
	}

	policy, err := s.policyForSettlement(ctx, stmt)
	if err != nil {
		return nil, err
	}
	pool, err := s.repos.Payables.ListUnassignedByPayee(ctx, stmt.PayeeID)
	if err != nil {
		return nil, err
	}
	snaps, err := s.loadSnapshots(ctx, pool)
	if err != nil {
		return nil, err
	}
	filtered := FilterEligible(pool, snaps, policy)

	sum := Summarize(lines)
	return &Detail{
		Settlement:         stmt,
		Payee:              member,
		Lines:              lines,
		HeldPayables:       filtered.Held,
		UnresolvedPayables: filtered.Unresolved,
		Summary:            sum,
		Flags:              Audit(lines, loads),
		NetTotal:           sum.GrossTotal,
	}, nil
}

// ---------------- internals ----------------

// resolveGeneration works out the payee, plan, period, and eligibility
// policy for a generation request.
func (s *Service) resolveGeneration(ctx context.Context, dto GenerateStatementDTO) (*generationContext, error) {
	member, err := s.payees.GetPayee(ctx, dto.PayeeID)
	if err != nil {
		return nil, err
	}
	if member.OrganizationID != dto.OrganizationID {
		return nil, internal.ErrPayeeNotFound
	}

	var plan *payplan.PayPlan
	if member.PayPlanID != nil {
		plan, err = s.plans.GetByID(ctx, *member.PayPlanID)
		if err != nil {
			return nil, err
		}
	}

	org, err := s.payees.GetOrganization(ctx, dto.OrganizationID)
	if err != nil {
		return nil, err
	}

	loc, err := s.resolveLocation(plan, org)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidTimezone).WithCause(err)
	}

	gctx := &generationContext{payee: member, plan: plan}

	if dto.HasExplicitRange() {
		gctx.period = payperiod.Period{
			Start:   *dto.PeriodStart,
			End:     *dto.PeriodEnd,
			PayDate: *dto.PeriodEnd,
		}
		if dto.PayDate != nil {
			gctx.period.PayDate = *dto.PayDate
		}
	} else {
		if plan == nil {
			return nil, internal.NewValidationError(
				"payee has no pay plan; an explicit period range is required",
				internal.ErrCodeValidationFailed)
		}
		ref := time.Now()
		if dto.ReferenceDate != nil {
			ref = *dto.ReferenceDate
		}
		sched := plan.Schedule(loc, s.cfg.Calendar)
		period, err := sched.PeriodFor(ref)
		if err != nil {
			return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidPeriod).WithCause(err)
		}
		gctx.period = period
		if n, ok := periodNumber(sched, period); ok {
			gctx.number = &n
		}
	}

	gctx.policy, err = s.buildPolicy(plan, gctx.period, loc, dto.IncludeHeld)
	if err != nil {
		return nil, err
	}
	return gctx, nil
}

// policyForSettlement rebuilds the eligibility policy for an existing
// draft using its stored period window.
func (s *Service) policyForSettlement(ctx context.Context, stmt *Settlement) (PeriodPolicy, error) {
	var plan *payplan.PayPlan
	var err error
	if stmt.PayPlanID != nil {
		plan, err = s.plans.GetByID(ctx, *stmt.PayPlanID)
		if err != nil {
			return PeriodPolicy{}, err
		}
	}
	org, err := s.payees.GetOrganization(ctx, stmt.OrganizationID)
	if err != nil {
		return PeriodPolicy{}, err
	}
	loc, err := s.resolveLocation(plan, org)
	if err != nil {
		return PeriodPolicy{}, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidTimezone).WithCause(err)
	}
	period := payperiod.Period{Start: stmt.PeriodStart, End: stmt.PeriodEnd, PayDate: stmt.PayDate}
	return s.buildPolicy(plan, period, loc, false)
}

func (s *Service) resolveLocation(plan *payplan.PayPlan, org *payee.Organization) (*time.Location, error) {
	orgDefault := ""
	if org != nil {
		orgDefault = org.DefaultTimezone
	}
	if plan != nil {
		return plan.ResolveLocation(orgDefault, s.cfg.DefaultTimezone)
	}
	name := s.cfg.DefaultTimezone
	if orgDefault != "" {
		name = orgDefault
	}
	return time.LoadLocation(name)
}

func (s *Service) buildPolicy(plan *payplan.PayPlan, period payperiod.Period, loc *time.Location, includeHeld bool) (PeriodPolicy, error) {
	policy := PeriodPolicy{
		Period:             period,
		Location:           loc,
		Trigger:            defaultTrigger,
		IncludeHeld:        includeHeld,
		IncludeStandalones: true,
	}
	cutoff := defaultCutoff
	if plan != nil {
		policy.Trigger = plan.PayableTrigger
		policy.IncludeStandalones = plan.IncludeStandaloneAdjustments
		cutoff = plan.CutoffTime
	}
	h, m, err := payplan.ParseCutoff(cutoff)
	if err != nil {
		return PeriodPolicy{}, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidCutoff).WithCause(err)
	}
	policy.CutoffHour, policy.CutoffMinute = h, m
	return policy, nil
}

// loadSnapshots fetches one dispatch snapshot per distinct load in the
// pool, keyed by load ID.
func (s *Service) loadSnapshots(ctx context.Context, pool []*payable.Payable) (map[int64]*freight.Snapshot, error) {
	snaps := make(map[int64]*freight.Snapshot)
	for _, p := range pool {
		if p.LoadID == nil {
			continue
		}
		if _, ok := snaps[*p.LoadID]; ok {
			continue
		}
		snap, err := s.freight.Snapshot(ctx, *p.LoadID, p.LegID)
		if err != nil {
			return nil, err
		}
		snaps[*p.LoadID] = snap
	}
	return snaps, nil
}

// allocateStatementNumber reads the org's numbers for the period's year
// and takes max plus one. Runs inside the generation transaction; the
// unique index on (organization_id, statement_number) backstops races.
func (s *Service) allocateStatementNumber(ctx context.Context, r Repos, orgID int64, periodStart time.Time) (string, error) {
	year := periodStart.Year()
	numbers, err := r.Settlements.StatementNumbers(ctx, orgID, year)
	if err != nil {
		return "", err
	}
	seq := MaxSequence(numbers, s.cfg.StatementPrefix, year) + 1
	return FormatStatementNumber(s.cfg.StatementPrefix, year, seq, s.cfg.SequencePadding), nil
}

// resummarize recomputes a draft's aggregate fields from its current
// lines, inside the caller's transaction.
func (s *Service) resummarize(ctx context.Context, r Repos, stmt *Settlement) error {
	lines, err := r.Payables.ListBySettlement(ctx, stmt.ID)
	if err != nil {
		return err
	}
	stmt.ApplySummary(Summarize(lines))
	stmt.UpdatedAt = time.Now()
	return r.Settlements.Update(ctx, stmt)
}

// periodNumber walks the plan's periods from the start of the period's
// calendar year and counts until it lands on the given period.
func periodNumber(sched payperiod.Schedule, target payperiod.Period) (int, bool) {
	loc := sched.Location
	if loc == nil {
		loc = time.UTC
	}
	jan1 := time.Date(target.Start.Year(), time.January, 1, 12, 0, 0, 0, loc)
	cur, err := sched.PeriodFor(jan1)
	if err != nil {
		return 0, false
	}
	for n := 1; n <= periodNumberCap; n++ {
		if cur.Start.Equal(target.Start) {
			return n, true
		}
		if cur.Start.After(target.Start) {
			return 0, false
		}
		cur, err = sched.PeriodFor(cur.End.Add(time.Millisecond))
		if err != nil {
			return 0, false
		}
	}
	return 0, false
}

func distinctLoadIDs(lines []*payable.Payable) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, p := range lines {
		if p.LoadID == nil {
			continue
		}
		if _, ok := seen[*p.LoadID]; ok {
			continue
		}
		seen[*p.LoadID] = struct{}{}
		ids = append(ids, *p.LoadID)
	}
	return ids
}
