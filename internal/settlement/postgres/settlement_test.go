package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payee"
	"github.com/freightops/settlements/internal/settlement"
)

func TestSettlementRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Settlement Repository Suite")
}

var _ = Describe("SettlementRepository", func() {
	var (
		db   *gorm.DB
		repo settlement.Repository
		ctx  context.Context
	)

	periodStart := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 0, 7).Add(-time.Millisecond)

	newStatement := func(payeeID int64, number, status string) *settlement.Settlement {
		return &settlement.Settlement{
			OrganizationID:  1,
			PayeeID:         payeeID,
			PeriodStart:     periodStart,
			PeriodEnd:       periodEnd,
			PayDate:         periodStart.AddDate(0, 0, 7),
			Status:          status,
			StatementNumber: number,
			GrossTotal:      decimal.NewFromFloat(155.00),
		}
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&payee.Payee{}, &settlement.Settlement{}, &payable.Payable{})
		Expect(err).NotTo(HaveOccurred())

		err = db.Create(&payee.Payee{ID: 7, OrganizationID: 1, PayeeType: payee.TypeDriver, DisplayName: "Dana Ops", IsActive: true}).Error
		Expect(err).NotTo(HaveOccurred())

		repo = NewSettlementRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		err = sqlDB.Close()
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Create and GetByID", func() {
		It("should persist a settlement and read it back", func() {
			stmt := newStatement(7, "STL-2026-0001", settlement.StatusDraft)

			err := repo.Create(ctx, stmt)
			Expect(err).NotTo(HaveOccurred())
			Expect(stmt.ID).To(BeNumerically(">", 0))

			got, err := repo.GetByID(ctx, stmt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.StatementNumber).To(Equal("STL-2026-0001"))
			Expect(got.GrossTotal.StringFixed(2)).To(Equal("155.00"))
			Expect(got.PeriodStart.Equal(periodStart)).To(BeTrue())
		})

		It("should return a not found error for a missing id", func() {
			_, err := repo.GetByID(ctx, 999)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, internal.ErrSettlementNotFound)).To(BeTrue())
		})
	})

	Describe("FindByPayeePeriod", func() {
		It("should find the live settlement for a payee and period range", func() {
			stmt := newStatement(7, "STL-2026-0001", settlement.StatusDraft)
			Expect(repo.Create(ctx, stmt)).To(Succeed())

			got, err := repo.FindByPayeePeriod(ctx, 7, periodStart, periodEnd)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.ID).To(Equal(stmt.ID))
		})

		It("should return nil when no settlement exists", func() {
			got, err := repo.FindByPayeePeriod(ctx, 7, periodStart, periodEnd)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("should not match a range sharing only the period start", func() {
			stmt := newStatement(7, "STL-2026-0001", settlement.StatusDraft)
			Expect(repo.Create(ctx, stmt)).To(Succeed())

			adHocEnd := periodStart.AddDate(0, 0, 30).Add(-time.Millisecond)
			got, err := repo.FindByPayeePeriod(ctx, 7, periodStart, adHocEnd)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("should ignore voided settlements", func() {
			stmt := newStatement(7, "STL-2026-0001", settlement.StatusVoid)
			Expect(repo.Create(ctx, stmt)).To(Succeed())

			got, err := repo.FindByPayeePeriod(ctx, 7, periodStart, periodEnd)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			Expect(repo.Create(ctx, newStatement(7, "STL-2026-0001", settlement.StatusDraft))).To(Succeed())

			older := newStatement(7, "STL-2026-0002", settlement.StatusPaid)
			older.PeriodStart = periodStart.AddDate(0, 0, -7)
			older.PeriodEnd = periodStart.Add(-time.Millisecond)
			Expect(repo.Create(ctx, older)).To(Succeed())
		})

		It("should join the payee name and order newest period first", func() {
			items, err := repo.List(ctx, settlement.ListFilter{OrganizationID: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].StatementNumber).To(Equal("STL-2026-0001"))
			Expect(items[0].PayeeName).To(Equal("Dana Ops"))
			Expect(items[0].PayeeType).To(Equal(payee.TypeDriver))
		})

		It("should filter by status", func() {
			status := settlement.StatusPaid
			items, err := repo.List(ctx, settlement.ListFilter{OrganizationID: 1, Status: &status})
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].StatementNumber).To(Equal("STL-2026-0002"))
		})

		It("should filter by period window", func() {
			from := periodStart
			items, err := repo.List(ctx, settlement.ListFilter{OrganizationID: 1, PeriodFrom: &from})
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].StatementNumber).To(Equal("STL-2026-0001"))
		})

		It("should return nothing for another organization", func() {
			items, err := repo.List(ctx, settlement.ListFilter{OrganizationID: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})
	})

	Describe("StatementNumbers", func() {
		It("should return only the organization's numbers for the year", func() {
			Expect(repo.Create(ctx, newStatement(7, "STL-2026-0001", settlement.StatusDraft))).To(Succeed())

			prior := newStatement(7, "STL-2025-0040", settlement.StatusPaid)
			prior.PeriodStart = time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
			Expect(repo.Create(ctx, prior)).To(Succeed())

			numbers, err := repo.StatementNumbers(ctx, 1, 2026)
			Expect(err).NotTo(HaveOccurred())
			Expect(numbers).To(ConsistOf("STL-2026-0001"))
		})
	})

	Describe("Unit of work", func() {
		It("should roll back the settlement write when line assignment fails", func() {
			lid := int64(100)
			line := &payable.Payable{
				OrganizationID: 1,
				PayeeID:        7,
				LoadID:         &lid,
				Description:    "Linehaul",
				TotalAmount:    decimal.NewFromFloat(155.00),
				SourceType:     payable.SourceSystem,
			}
			Expect(db.Create(line).Error).To(Succeed())

			uow := NewGormUnitOfWork(db)
			err := uow.WithinTx(ctx, func(r settlement.Repos) error {
				stmt := newStatement(7, "STL-2026-0001", settlement.StatusDraft)
				if err := r.Settlements.Create(ctx, stmt); err != nil {
					return err
				}
				if err := r.Payables.AssignToSettlement(ctx, []int64{line.ID}, stmt.ID); err != nil {
					return err
				}
				return errors.New("forced failure")
			})
			Expect(err).To(HaveOccurred())

			got, err := repo.FindByPayeePeriod(ctx, 7, periodStart, periodEnd)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())

			var reloaded payable.Payable
			Expect(db.First(&reloaded, line.ID).Error).To(Succeed())
			Expect(reloaded.SettlementID).To(BeNil())
		})

		It("should commit settlement and line assignment together", func() {
			lid := int64(100)
			line := &payable.Payable{
				OrganizationID: 1,
				PayeeID:        7,
				LoadID:         &lid,
				Description:    "Linehaul",
				TotalAmount:    decimal.NewFromFloat(155.00),
				SourceType:     payable.SourceSystem,
			}
			Expect(db.Create(line).Error).To(Succeed())

			uow := NewGormUnitOfWork(db)
			var stmtID int64
			err := uow.WithinTx(ctx, func(r settlement.Repos) error {
				stmt := newStatement(7, "STL-2026-0001", settlement.StatusDraft)
				if err := r.Settlements.Create(ctx, stmt); err != nil {
					return err
				}
				stmtID = stmt.ID
				return r.Payables.AssignToSettlement(ctx, []int64{line.ID}, stmt.ID)
			})
			Expect(err).NotTo(HaveOccurred())

			var reloaded payable.Payable
			Expect(db.First(&reloaded, line.ID).Error).To(Succeed())
			Expect(reloaded.SettlementID).NotTo(BeNil())
			Expect(*reloaded.SettlementID).To(Equal(stmtID))
		})

		It("should refuse to capture a line another settlement already holds", func() {
			winner := newStatement(7, "STL-2026-0001", settlement.StatusDraft)
			Expect(repo.Create(ctx, winner)).To(Succeed())

			lid := int64(100)
			line := &payable.Payable{
				OrganizationID: 1,
				PayeeID:        7,
				LoadID:         &lid,
				Description:    "Linehaul",
				TotalAmount:    decimal.NewFromFloat(155.00),
				SourceType:     payable.SourceSystem,
				SettlementID:   &winner.ID,
			}
			Expect(db.Create(line).Error).To(Succeed())

			uow := NewGormUnitOfWork(db)
			err := uow.WithinTx(ctx, func(r settlement.Repos) error {
				adHoc := newStatement(7, "STL-2026-0002", settlement.StatusDraft)
				adHoc.PeriodEnd = periodStart.AddDate(0, 0, 30).Add(-time.Millisecond)
				if err := r.Settlements.Create(ctx, adHoc); err != nil {
					return err
				}
				return r.Payables.AssignToSettlement(ctx, []int64{line.ID}, adHoc.ID)
			})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePayableAlreadyAssigned))

			var reloaded payable.Payable
			Expect(db.First(&reloaded, line.ID).Error).To(Succeed())
			Expect(*reloaded.SettlementID).To(Equal(winner.ID))
		})
	})
})
