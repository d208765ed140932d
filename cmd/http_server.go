package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/core/events"
	freightpg "github.com/freightops/settlements/internal/freight/postgres"
	payablepg "github.com/freightops/settlements/internal/payable/postgres"
	payeepg "github.com/freightops/settlements/internal/payee/postgres"
	"github.com/freightops/settlements/internal/payperiod"
	"github.com/freightops/settlements/internal/payplan"
	payplanpg "github.com/freightops/settlements/internal/payplan/postgres"
	"github.com/freightops/settlements/internal/settlement"
	settlementpg "github.com/freightops/settlements/internal/settlement/postgres"
	"github.com/freightops/settlements/internal/transport/rest"
	"github.com/freightops/settlements/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config            *internal.Config
	DB                *sqlx.DB
	Gorm              *gorm.DB
	Redis             *redis.Client
	Router            *chi.Mux
	Logger            *slog.Logger
	PlanHandler       *payplan.Handler
	SettlementHandler *settlement.Handler
	SettlementService *settlement.Service
	Bus               *events.EventBus
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	registerAuditSubscriber(deps)
	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.Config, deps.PlanHandler, deps.SettlementHandler, deps.Redis, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	var rdb *redis.Client
	if config.Idempotency.Enabled {
		opts, err := redis.ParseURL(config.Idempotency.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
	}

	bus := events.NewEventBus(lg)
	planSvc, settlementSvc, err := buildServices(config, gormDB, bus, lg)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Config:            config,
		DB:                db,
		Gorm:              gormDB,
		Redis:             rdb,
		Router:            chi.NewRouter(),
		Logger:            lg,
		PlanHandler:       payplan.NewHandler(planSvc),
		SettlementHandler: settlement.NewHandler(settlementSvc),
		SettlementService: settlementSvc,
		Bus:               bus,
	}, nil
}

// buildServices wires the repositories and domain services on top of one
// gorm connection.
func buildServices(config *internal.Config, gormDB *gorm.DB, bus *events.EventBus, lg *slog.Logger) (*payplan.Service, *settlement.Service, error) {
	cal, err := holidayCalendar(config.Settlement)
	if err != nil {
		return nil, nil, err
	}

	planRepo := payplanpg.NewPayPlanRepository(gormDB)
	payeeRepo := payeepg.NewPayeeRepository(gormDB)
	freightRepo := freightpg.NewFreightRepository(gormDB)
	settlementRepo := settlementpg.NewSettlementRepository(gormDB)
	payableRepo := payablepg.NewPayableRepository(gormDB)
	uow := settlementpg.NewGormUnitOfWork(gormDB)

	planSvc := payplan.NewService(planRepo, payeeRepo, payeeRepo, config.Settlement.DefaultTimezone, cal, lg)
	settlementSvc := settlement.NewService(
		uow,
		settlement.Repos{Settlements: settlementRepo, Payables: payableRepo},
		planRepo,
		payeeRepo,
		freightRepo,
		bus,
		settlement.EngineConfig{
			DefaultTimezone: config.Settlement.DefaultTimezone,
			StatementPrefix: config.Settlement.StatementPrefix,
			SequencePadding: config.Settlement.SequencePadding,
			Calendar:        cal,
		},
		lg,
	)
	return planSvc, settlementSvc, nil
}

func holidayCalendar(cfg internal.SettlementConfig) (*payperiod.HolidayCalendar, error) {
	if !cfg.AdjustForHoliday {
		return nil, nil
	}
	cal, err := payperiod.ParseHolidayCalendar(cfg.Holidays)
	if err != nil {
		return nil, fmt.Errorf("failed to parse holiday calendar: %w", err)
	}
	return cal, nil
}

// registerAuditSubscriber re-runs the audit scan when a settlement is
// approved and logs any warnings left standing at approval time.
func registerAuditSubscriber(deps *Dependencies) {
	deps.Bus.Subscribe(events.EventTypeSettlementApproved, func(ctx context.Context, event events.Event) error {
		approved, ok := event.(*events.SettlementApprovedEvent)
		if !ok {
			return nil
		}
		detail, err := deps.SettlementService.Detail(ctx, approved.SettlementID)
		if err != nil {
			return err
		}
		for _, flag := range detail.Flags {
			if flag.Level != settlement.FlagLevelWarning {
				continue
			}
			deps.Logger.Warn("settlement approved with open audit flag",
				"settlement_id", approved.SettlementID,
				"statement_number", approved.StatementNumber,
				"flag_type", flag.Type,
				"message", flag.Message)
		}
		return nil
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
