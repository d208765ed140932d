package payplan

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/freightops/settlements/internal/payperiod"
	"github.com/freightops/settlements/internal/transport"
	"github.com/freightops/settlements/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreatePlan(ctx context.Context, dto CreatePayPlanDTO) (*PayPlan, error)
	GetPlan(ctx context.Context, id int64) (*PayPlan, error)
	ListPlans(ctx context.Context, orgID int64) ([]*PayPlan, error)
	UpdatePlan(ctx context.Context, id int64, dto UpdatePayPlanDTO) (*PayPlan, error)
	ArchivePlan(ctx context.Context, id int64) error
	PreviewPeriods(ctx context.Context, id int64, ref time.Time, n int) ([]payperiod.Period, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CreatePayPlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Create: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := h.Service.CreatePlan(r.Context(), dto)
	if err != nil {
		h.Logger.Error("Create: service error", "error", err, "org_id", dto.OrganizationID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, plan)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	plan, err := h.Service.GetPlan(r.Context(), id)
	if err != nil {
		h.Logger.Error("Get: service error", "error", err, "plan_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(r.URL.Query().Get("organization_id"), 10, 64)
	if err != nil || orgID == 0 {
		h.WriteError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	plans, err := h.Service.ListPlans(r.Context(), orgID)
	if err != nil {
		h.Logger.Error("List: service error", "error", err, "org_id", orgID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"pay_plans": plans})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var dto UpdatePayPlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Update: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := h.Service.UpdatePlan(r.Context(), id, dto)
	if err != nil {
		h.Logger.Error("Update: service error", "error", err, "plan_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.Service.ArchivePlan(r.Context(), id); err != nil {
		h.Logger.Error("Archive: service error", "error", err, "plan_id", id)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Preview returns the next few periods a plan would produce, so operators
// can sanity-check anchors and cutoffs before assigning payees.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	ref := time.Now()
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	n := 6
	if raw := r.URL.Query().Get("count"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 52 {
			n = parsed
		}
	}

	periods, err := h.Service.PreviewPeriods(r.Context(), id, ref, n)
	if err != nil {
		h.Logger.Error("Preview: service error", "error", err, "plan_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid pay plan ID")
		return 0, false
	}
	return id, true
}
