package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	consentmodels "custodia/internal/consent/models"
	respond "custodia/internal/transport/http/json"
	"custodia/internal/transport/http/shared"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// ConsentService is the ledger surface the transport depends on.
type ConsentService interface {
	Record(ctx context.Context, subject string, ctype consentmodels.Type, granted bool, consentContext string) (*consentmodels.Record, error)
	Verify(ctx context.Context, subject string, ctype consentmodels.Type) (bool, error)
	History(ctx context.Context, subject string, ctype consentmodels.Type) ([]*consentmodels.Record, error)
}

// ConsentHandler exposes the consent ledger over HTTP. Subjects act on their
// own consent only; the subject is always the authenticated caller.
type ConsentHandler struct {
	logger   *slog.Logger
	consents ConsentService
}

// NewConsentHandler creates a consent handler.
func NewConsentHandler(consents ConsentService, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{logger: logger, consents: consents}
}

// Register registers consent routes with the chi router.
func (h *ConsentHandler) Register(r chi.Router) {
	r.Post("/consents", h.handleRecord)
	r.Get("/consents/{type}", h.handleVerify)
	r.Get("/consents/{type}/history", h.handleHistory)
}

type recordConsentRequest struct {
	Type    string `json:"type"`
	Granted bool   `json:"granted"`
	Context string `json:"context,omitempty"`
}

type consentResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Granted   bool      `json:"granted"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *ConsentHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := requestcontext.Actor(ctx)

	var req recordConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	record, err := h.consents.Record(ctx, subject, consentmodels.Type(req.Type), req.Granted, req.Context)
	if err != nil {
		h.logError(ctx, "consent record failed", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, consentResponse{
		ID:        record.ID,
		Type:      string(record.Type),
		Granted:   record.Granted,
		Timestamp: record.Timestamp,
	})
}

func (h *ConsentHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := requestcontext.Actor(ctx)

	fresh, err := h.consents.Verify(ctx, subject, consentmodels.Type(chi.URLParam(r, "type")))
	if err != nil {
		h.logError(ctx, "consent verify failed", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"fresh": fresh})
}

func (h *ConsentHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := requestcontext.Actor(ctx)

	records, err := h.consents.History(ctx, subject, consentmodels.Type(chi.URLParam(r, "type")))
	if err != nil {
		h.logError(ctx, "consent history failed", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]consentResponse, 0, len(records))
	for _, record := range records {
		out = append(out, consentResponse{
			ID:        record.ID,
			Type:      string(record.Type),
			Granted:   record.Granted,
			Timestamp: record.Timestamp,
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *ConsentHandler) logError(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
