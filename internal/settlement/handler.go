package settlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/transport"
	"github.com/freightops/settlements/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Generate(ctx context.Context, dto GenerateStatementDTO) (*GenerateResult, error)
	BulkGenerate(ctx context.Context, dto BulkGenerateDTO) (*BulkResult, error)
	Refresh(ctx context.Context, id int64) (*RefreshResult, error)
	UpdateStatus(ctx context.Context, id int64, dto UpdateStatusDTO) (*Settlement, error)
	Delete(ctx context.Context, id int64) error
	AddManualAdjustment(ctx context.Context, settlementID int64, dto payable.ManualAdjustmentDTO) (*payable.Payable, error)
	UpdatePayable(ctx context.Context, payableID int64, dto payable.UpdatePayableDTO) (*payable.Payable, error)
	RemovePayable(ctx context.Context, payableID int64) error
	List(ctx context.Context, filter ListFilter) ([]*ListItem, error)
	Detail(ctx context.Context, id int64) (*Detail, error)
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

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var dto GenerateStatementDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Generate: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Generate(r.Context(), dto)
	if err != nil {
		h.Logger.Error("Generate: service error", "error", err, "payee_id", dto.PayeeID)
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, result)
}

func (h *Handler) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	var dto BulkGenerateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("BulkGenerate: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.BulkGenerate(r.Context(), dto)
	if err != nil {
		h.Logger.Error("BulkGenerate: service error", "error", err, "plan_id", dto.PayPlanID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryInt64(r, "organization_id")
	if err != nil || orgID == 0 {
		h.WriteError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	filter := ListFilter{OrganizationID: orgID, Limit: 50}

	if payeeID, err := queryInt64(r, "payee_id"); err == nil && payeeID > 0 {
		filter.PayeeID = &payeeID
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if !ValidStatus(status) {
			h.WriteError(w, http.StatusBadRequest, "unknown status: "+status)
			return
		}
		filter.Status = &status
	}
	if from, ok := queryTime(r, "period_from"); ok {
		filter.PeriodFrom = &from
	}
	if to, ok := queryTime(r, "period_to"); ok {
		filter.PeriodTo = &to
	}
	if limit, err := queryInt64(r, "limit"); err == nil && limit > 0 && limit <= 200 {
		filter.Limit = int(limit)
	}
	if offset, err := queryInt64(r, "offset"); err == nil && offset >= 0 {
		filter.Offset = int(offset)
	}

	items, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("List: service error", "error", err, "org_id", orgID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"settlements": items,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		h.Logger.Error("Get: service error", "error", err, "settlement_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.Service.Refresh(r.Context(), id)
	if err != nil {
		h.Logger.Error("Refresh: service error", "error", err, "settlement_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateStatus: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stmt, err := h.Service.UpdateStatus(r.Context(), id, dto)
	if err != nil {
		h.Logger.Error("UpdateStatus: service error", "error", err, "settlement_id", id, "status", dto.Status)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stmt)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.Logger.Error("Delete: service error", "error", err, "settlement_id", id)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var dto payable.ManualAdjustmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("AddLine: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	line, err := h.Service.AddManualAdjustment(r.Context(), id, dto)
	if err != nil {
		h.Logger.Error("AddLine: service error", "error", err, "settlement_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, line)
}

func (h *Handler) UpdatePayable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var dto payable.UpdatePayableDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdatePayable: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	line, err := h.Service.UpdatePayable(r.Context(), id, dto)
	if err != nil {
		h.Logger.Error("UpdatePayable: service error", "error", err, "payable_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, line)
}

func (h *Handler) DeletePayable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.RemovePayable(r.Context(), id); err != nil {
		h.Logger.Error("DeletePayable: service error", "error", err, "payable_id", id)
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
}

func queryTime(r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
