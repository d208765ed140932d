package rest

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/internal/payplan"
	"github.com/freightops/settlements/internal/settlement"
	"github.com/freightops/settlements/internal/transport/middleware"
	"github.com/freightops/settlements/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Operator permissions enforced on the settlement surface.
const (
	PermApproveSettlement = "settlements:approve"
	PermGenerateStatement = "settlements:generate"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, cfg *internal.Config, planHandler *payplan.Handler, settlementHandler *settlement.Handler, rdb *redis.Client, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if cfg.Observability.Metrics.Enabled {
		router.Use(middleware.Metrics)
		router.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticator(cfg.Security.JWTSecret))
			if cfg.Idempotency.Enabled && rdb != nil {
				pr.Use(middleware.Idempotency(rdb, cfg.Idempotency.TTL, logger))
			}

			if planHandler != nil {
				pr.Route("/pay-plans", func(plr chi.Router) {
					plr.Get("/", planHandler.List)
					plr.Post("/", planHandler.Create)
					plr.Get("/{id}", planHandler.Get)
					plr.Patch("/{id}", planHandler.Update)
					plr.Post("/{id}/archive", planHandler.Archive)
					plr.Get("/{id}/periods", planHandler.Preview)
				})
			}

			if settlementHandler != nil {
				pr.Route("/settlements", func(sr chi.Router) {
					sr.Get("/", settlementHandler.List)
					sr.Get("/{id}", settlementHandler.Get)

					sr.Group(func(gr chi.Router) {
						gr.Use(middleware.RequirePermission(PermGenerateStatement))
						gr.Post("/generate", settlementHandler.Generate)
						gr.Post("/generate/bulk", settlementHandler.BulkGenerate)
						gr.Post("/{id}/refresh", settlementHandler.Refresh)
						gr.Delete("/{id}", settlementHandler.Delete)
						gr.Post("/{id}/adjustments", settlementHandler.AddLine)
					})

					sr.Group(func(ar chi.Router) {
						ar.Use(middleware.RequirePermission(PermApproveSettlement))
						ar.Patch("/{id}/status", settlementHandler.UpdateStatus)
					})
				})

				pr.Route("/payables", func(pyr chi.Router) {
					pyr.Use(middleware.RequirePermission(PermGenerateStatement))
					pyr.Patch("/{id}", settlementHandler.UpdatePayable)
					pyr.Delete("/{id}", settlementHandler.DeletePayable)
				})
			}
		})
	})
}
