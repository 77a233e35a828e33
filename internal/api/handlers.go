package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guatepass/tolling/internal/domain"
	"github.com/guatepass/tolling/internal/eventbus"
	"github.com/guatepass/tolling/internal/history"
	"github.com/guatepass/tolling/internal/ingestion"
	"github.com/guatepass/tolling/internal/tags"
)

type Ingester interface {
	IngestCrossing(ctx context.Context, hook ingestion.TollWebhook) (domain.TollCrossingEvent, error)
	ImportUsers(ctx context.Context, r io.Reader) (*ingestion.ImportResult, error)
}

type UserReader interface {
	GetByPlate(ctx context.Context, plate string) (*domain.UserProfile, error)
}

type TagManager interface {
	Associate(ctx context.Context, plate, tagID string, status domain.TagStatus) (*tags.TagInfo, error)
	Update(ctx context.Context, plate, tagID string, status domain.TagStatus) (*tags.UpdateResult, error)
	Remove(ctx context.Context, plate string) (*tags.RemoveResult, error)
	GetByTag(ctx context.Context, tagID string) (*tags.TagInfo, error)
	GetByPlate(ctx context.Context, plate string) (*tags.TagInfo, error)
}

type HistoryReader interface {
	Invoices(ctx context.Context, plate string, status domain.InvoiceStatus, limit int) (*history.InvoiceHistory, error)
	Transactions(ctx context.Context, plate string, from, to *time.Time, limit int) (*history.TransactionHistory, error)
}

type StatsSource interface {
	Stats() eventbus.Stats
}

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	ingestion Ingester
	users     UserReader
	tags      TagManager
	history   HistoryReader
	bus       StatsSource
	logger    *slog.Logger
}

const maxImportSize = 32 << 20

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"error": msg, "status_code": status})
}

// writeDomainError maps the domain sentinels onto HTTP statuses.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// parseDateRange reads from/to, accepting the from_date/to_date aliases. A
// bare date in "to" covers the whole day.
func parseDateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	fromRaw := firstNonEmpty(q.Get("from"), q.Get("from_date"))
	toRaw := firstNonEmpty(q.Get("to"), q.Get("to_date"))

	if from, err = parseTime(fromRaw); err != nil {
		return nil, nil, domain.NewValidationError("from", "invalid date %q", fromRaw)
	}
	if to, err = parseTime(toRaw); err != nil {
		return nil, nil, domain.NewValidationError("to", "invalid date %q", toRaw)
	}
	if to != nil && len(toRaw) == len("2006-01-02") {
		end := to.Add(24*time.Hour - time.Microsecond)
		to = &end
	}
	return from, to, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.NewValidationError("body", "is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "is required")
		}
		return domain.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

// --- ingestion ---

func (h *Handlers) IngestCrossing(w http.ResponseWriter, r *http.Request) {
	var hook ingestion.TollWebhook
	if err := decodeBody(r, &hook); err != nil {
		h.writeDomainError(w, err)
		return
	}

	event, err := h.ingestion.IngestCrossing(r.Context(), hook)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Evento de peaje recibido exitosamente",
		"event_id": event.EventID,
		"placa":    event.Plate,
		"peaje_id": event.TollPointID,
	})
}

func (h *Handlers) ImportUsers(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	result, err := h.ingestion.ImportUsers(r.Context(), file)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Usuarios importados exitosamente",
		"result":  result,
	})
}

// --- users ---

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	plate := domain.NormalizePlate(chi.URLParam(r, "plate"))
	user, err := h.users.GetByPlate(r.Context(), plate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": fmt.Sprintf("Usuario %s encontrado exitosamente", plate),
	})
}

// --- tags ---

type tagRequest struct {
	TagID     string           `json:"tag_id"`
	TagStatus domain.TagStatus `json:"tag_status"`
}

func (h *Handlers) AssociateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	info, err := h.tags.Associate(r.Context(), chi.URLParam(r, "plate"), req.TagID, req.TagStatus)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Tag asociado exitosamente",
		"tag":     info,
	})
}

func (h *Handlers) UpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.tags.Update(r.Context(), chi.URLParam(r, "plate"), req.TagID, req.TagStatus)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Tag actualizado exitosamente",
		"tag":     result,
	})
}

func (h *Handlers) RemoveTag(w http.ResponseWriter, r *http.Request) {
	result, err := h.tags.Remove(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Tag desasociado exitosamente",
		"tag":     result,
	})
}

func (h *Handlers) GetPlateTag(w http.ResponseWriter, r *http.Request) {
	info, err := h.tags.GetByPlate(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) GetTag(w http.ResponseWriter, r *http.Request) {
	info, err := h.tags.GetByTag(r.Context(), chi.URLParam(r, "tag_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// --- history ---

func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.InvoiceStatus(strings.ToLower(strings.TrimSpace(q.Get("status"))))

	result, err := h.history.Invoices(r.Context(), chi.URLParam(r, "plate"), status, parseIntDefault(q.Get("limit"), 0))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result, err := h.history.Transactions(r.Context(), chi.URLParam(r, "plate"), from, to,
		parseIntDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// --- operations ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) BusStats(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		h.writeError(w, http.StatusNotFound, "event bus not configured")
		return
	}
	h.writeJSON(w, http.StatusOK, h.bus.Stats())
}
