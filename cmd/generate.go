package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/freightops/settlements/internal/core/events"
	"github.com/freightops/settlements/internal/settlement"
	"github.com/freightops/settlements/pkg/logger"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	generateOrgID       int64
	generatePlanID      int64
	generateDate        string
	generateIncludeHeld bool
)

// generateCmd runs a bulk settlement generation from the command line, for
// cron-driven period closes that do not go through the HTTP surface.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate settlements for every payee on a pay plan",
	Run: func(cmd *cobra.Command, args []string) {
		runBulkGeneration()
	},
}

func init() {
	generateCmd.Flags().Int64Var(&generateOrgID, "org", 0, "organization ID (required)")
	generateCmd.Flags().Int64Var(&generatePlanID, "plan", 0, "pay plan ID (required)")
	generateCmd.Flags().StringVar(&generateDate, "date", "", "reference date YYYY-MM-DD (default today)")
	generateCmd.Flags().BoolVar(&generateIncludeHeld, "include-held", false, "include payables on held loads")
	generateCmd.MarkFlagRequired("org")
	generateCmd.MarkFlagRequired("plan")
}

func runBulkGeneration() {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open gorm connection: %v", err)
	}

	bus := events.NewEventBus(lg)
	_, settlementSvc, err := buildServices(cfg, gormDB, bus, lg)
	if err != nil {
		log.Fatalf("failed to build services: %v", err)
	}

	dto := settlement.BulkGenerateDTO{
		OrganizationID: generateOrgID,
		PayPlanID:      generatePlanID,
		IncludeHeld:    generateIncludeHeld,
	}
	if generateDate != "" {
		ref, err := time.Parse("2006-01-02", generateDate)
		if err != nil {
			log.Fatalf("invalid --date: %v", err)
		}
		dto.ReferenceDate = &ref
	}

	result, err := settlementSvc.BulkGenerate(context.Background(), dto)
	if err != nil {
		log.Fatalf("bulk generation failed: %v", err)
	}

	fmt.Printf("batch %s: created=%d skipped=%d failed=%d\n", result.BatchID, result.Created, result.Skipped, result.Failed)
	for _, item := range result.Items {
		if item.StatusCode == settlement.BulkStatusFailed {
			fmt.Printf("  payee %d FAILED: %s\n", item.PayeeID, item.Error)
			continue
		}
		fmt.Printf("  payee %d %s: %s\n", item.PayeeID, item.StatusCode, item.Result.Settlement.StatementNumber)
	}
}
