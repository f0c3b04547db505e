package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/audit"
	"custodia/internal/record/models"
	respond "custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// maxContentBytes caps raw content uploads.
const maxContentBytes = 16 << 20

// RecordService is the lifecycle surface the transport depends on.
type RecordService interface {
	CreateOrUpdate(ctx context.Context, recordID, actor string, fieldValues map[string][]byte, meta map[string]string) (*models.Record, error)
	Read(ctx context.Context, recordID, requester string, fields []string, purpose string) (map[string][]byte, error)
	GrantAccess(ctx context.Context, recordID, caller, grantee string, op models.Operation, ttl *time.Duration, purpose string) error
	RevokeAccess(ctx context.Context, recordID, caller, grantee string, op models.Operation) error
	RecordPurchase(ctx context.Context, recordID, caller, txRef, locator string) error
	AttachContent(ctx context.Context, recordID, caller string, content []byte) error
	RetrieveContent(ctx context.Context, recordID, requester, purpose string) ([]byte, error)
	ScheduleDeletion(ctx context.Context, recordID, caller string) error
	AuditTrail(ctx context.Context, recordID, caller string, filter audit.Filter) ([]audit.RedactedEvent, error)
}

// RecordHandler exposes the record lifecycle over HTTP. It decodes, calls the
// service, and encodes; every decision stays in the service layer.
type RecordHandler struct {
	logger  *slog.Logger
	records RecordService
}

// NewRecordHandler creates a record handler.
func NewRecordHandler(records RecordService, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{logger: logger, records: records}
}

// Register registers record routes with the chi router.
func (h *RecordHandler) Register(r chi.Router) {
	r.Put("/records/{recordID}", h.handleWrite)
	r.Get("/records/{recordID}", h.handleRead)
	r.Delete("/records/{recordID}", h.handleScheduleDeletion)
	r.Post("/records/{recordID}/grants", h.handleGrant)
	r.Post("/records/{recordID}/grants/revoke", h.handleRevoke)
	r.Post("/records/{recordID}/purchase", h.handlePurchase)
	r.Post("/records/{recordID}/content", h.handleAttachContent)
	r.Get("/records/{recordID}/content", h.handleRetrieveContent)
	r.Get("/records/{recordID}/audit", h.handleAuditTrail)
}

type writeRequest struct {
	Fields   map[string][]byte `json:"fields"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type writeResponse struct {
	ID        string    `json:"id"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *RecordHandler) handleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	rec, err := h.records.CreateOrUpdate(ctx, recordID, actor, req.Fields, req.Metadata)
	if err != nil {
		h.logError(ctx, "record write failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, writeResponse{
		ID:        rec.ID,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	})
}

type readResponse struct {
	ID     string            `json:"id"`
	Fields map[string][]byte `json:"fields"`
}

func (h *RecordHandler) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	query := r.URL.Query()
	values, err := h.records.Read(ctx, recordID, actor, query["field"], query.Get("purpose"))
	if err != nil {
		h.logError(ctx, "record read failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, readResponse{ID: recordID, Fields: values})
}

type grantRequest struct {
	Grantee    string `json:"grantee"`
	Operation  string `json:"operation"`
	TTLSeconds int64  `json:"ttlSeconds,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
}

func (h *RecordHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	var ttl *time.Duration
	if req.TTLSeconds > 0 {
		d := time.Duration(req.TTLSeconds) * time.Second
		ttl = &d
	}

	err := h.records.GrantAccess(ctx, recordID, actor, req.Grantee, models.Operation(req.Operation), ttl, req.Purpose)
	if err != nil {
		h.logError(ctx, "grant failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

type revokeRequest struct {
	Grantee   string `json:"grantee"`
	Operation string `json:"operation"`
}

func (h *RecordHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	err := h.records.RevokeAccess(ctx, recordID, actor, req.Grantee, models.Operation(req.Operation))
	if err != nil {
		h.logError(ctx, "revoke failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type purchaseRequest struct {
	TransactionRef string `json:"transactionRef"`
	Locator        string `json:"locator,omitempty"`
}

func (h *RecordHandler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	err := h.records.RecordPurchase(ctx, recordID, actor, req.TransactionRef, req.Locator)
	if err != nil {
		h.logError(ctx, "purchase record failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *RecordHandler) handleAttachContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	content, err := io.ReadAll(io.LimitReader(r.Body, maxContentBytes))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "could not read content"))
		return
	}

	if err := h.records.AttachContent(ctx, recordID, actor, content); err != nil {
		h.logError(ctx, "content attach failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "attached"})
}

func (h *RecordHandler) handleRetrieveContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	content, err := h.records.RetrieveContent(ctx, recordID, actor, r.URL.Query().Get("purpose"))
	if err != nil {
		h.logError(ctx, "content retrieve failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *RecordHandler) handleScheduleDeletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	if err := h.records.ScheduleDeletion(ctx, recordID, actor); err != nil {
		h.logError(ctx, "deletion scheduling failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "deletion_scheduled"})
}

func (h *RecordHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	recordID := chi.URLParam(r, "recordID")

	filter := audit.Filter{
		Action:      audit.Action(r.URL.Query().Get("action")),
		PerformedBy: r.URL.Query().Get("performedBy"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid limit"))
			return
		}
		filter.Limit = limit
	}

	events, err := h.records.AuditTrail(ctx, recordID, actor, filter)
	if err != nil {
		h.logError(ctx, "audit trail read failed", recordID, err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"recordId": recordID,
		"events":   events,
	})
}

func (h *RecordHandler) logError(ctx context.Context, msg, recordID string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.WarnContext(ctx, msg,
		"record_id", recordID,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
