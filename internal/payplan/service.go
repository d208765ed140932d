package payplan

import (
	"context"
	"log/slog"
	"time"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/payee"
	"github.com/freightops/settlements/internal/payperiod"
)

// Repository defines the data access methods for pay plans
type Repository interface {
	Create(ctx context.Context, plan *PayPlan) error
	GetByID(ctx context.Context, id int64) (*PayPlan, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*PayPlan, error)
	Update(ctx context.Context, plan *PayPlan) error
}

// PayeeCounter reports how many payees are assigned to a plan; archiving
// is refused while any are.
type PayeeCounter interface {
	CountAssignedToPlan(ctx context.Context, planID int64) (int64, error)
}

// OrganizationReader resolves the organization default timezone for the
// plan-org-engine fallback chain.
type OrganizationReader interface {
	GetOrganization(ctx context.Context, id int64) (*payee.Organization, error)
}

type Service struct {
	repo      Repository
	payees    PayeeCounter
	orgs      OrganizationReader
	defaultTZ string
	calendar  *payperiod.HolidayCalendar
	logger    *slog.Logger
}

func NewService(repo Repository, payees PayeeCounter, orgs OrganizationReader, defaultTZ string, cal *payperiod.HolidayCalendar, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		payees:    payees,
		orgs:      orgs,
		defaultTZ: defaultTZ,
		calendar:  cal,
		logger:    logger,
	}
}

func (s *Service) CreatePlan(ctx context.Context, dto CreatePayPlanDTO) (*PayPlan, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("pay plan validation failed", "error", err, "org_id", dto.OrganizationID)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	plan := dto.ToPlan()
	if err := s.repo.Create(ctx, plan); err != nil {
		s.logger.Error("failed to create pay plan", "error", err, "org_id", dto.OrganizationID)
		return nil, err
	}

	s.logger.Info("pay plan created",
		"plan_id", plan.ID,
		"org_id", plan.OrganizationID,
		"frequency", plan.Frequency,
		"trigger", plan.PayableTrigger)

	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id int64) (*PayPlan, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context, orgID int64) ([]*PayPlan, error) {
	return s.repo.ListByOrganization(ctx, orgID)
}

// UpdatePlan applies a patch to a plan. Frequency and anchor changes only
// affect periods computed after the edit.
func (s *Service) UpdatePlan(ctx context.Context, id int64, dto UpdatePayPlanDTO) (*PayPlan, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, internal.ErrPayPlanArchived
	}
	if err := dto.Validate(plan); err != nil {
		s.logger.Error("pay plan patch validation failed", "error", err, "plan_id", id)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}

	dto.Apply(plan)
	if err := s.repo.Update(ctx, plan); err != nil {
		s.logger.Error("failed to update pay plan", "error", err, "plan_id", id)
		return nil, err
	}

	s.logger.Info("pay plan updated", "plan_id", id)
	return plan, nil
}

// ArchivePlan deactivates a plan. Refused while any payee is assigned.
func (s *Service) ArchivePlan(ctx context.Context, id int64) error {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !plan.IsActive {
		return nil
	}

	assigned, err := s.payees.CountAssignedToPlan(ctx, id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		s.logger.Warn("cannot archive pay plan with assigned payees",
			"plan_id", id,
			"assigned_payees", assigned)
		return internal.ErrPayPlanInUse
	}

	plan.IsActive = false
	if err := s.repo.Update(ctx, plan); err != nil {
		s.logger.Error("failed to archive pay plan", "error", err, "plan_id", id)
		return err
	}

	s.logger.Info("pay plan archived", "plan_id", id)
	return nil
}

// PreviewPeriods returns the next n periods of a plan starting from ref,
// for operator tooling.
func (s *Service) PreviewPeriods(ctx context.Context, id int64, ref time.Time, n int) ([]payperiod.Period, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	orgDefault := ""
	if org, err := s.orgs.GetOrganization(ctx, plan.OrganizationID); err == nil && org != nil {
		orgDefault = org.DefaultTimezone
	}

	loc, err := plan.ResolveLocation(orgDefault, s.defaultTZ)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidTimezone).WithCause(err)
	}

	periods, err := plan.Schedule(loc, s.calendar).NextPeriods(ref, n)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}
	return periods, nil
}
