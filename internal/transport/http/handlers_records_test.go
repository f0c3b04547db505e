package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"custodia/internal/audit"
	"custodia/internal/record/models"
	"custodia/internal/transport/http/mocks"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_records.go -destination=mocks/records_mock.go -package=mocks RecordService

const testActor = "subject-alice"

type RecordHandlerSuite struct {
	suite.Suite
}

func (s *RecordHandlerSuite) newHandler(t *testing.T) (*mocks.MockRecordService, *chi.Mux) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	mockService := mocks.NewMockRecordService(ctrl)
	handler := NewRecordHandler(mockService, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestcontext.WithActor(req.Context(), testActor)))
		})
	})
	handler.Register(r)
	return mockService, r
}

func (s *RecordHandlerSuite) doJSON(t *testing.T, router *chi.Mux, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func (s *RecordHandlerSuite) TestHandler_Write() {
	s.T().Run("writes fields and returns version - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		updated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		mockService.EXPECT().
			CreateOrUpdate(gomock.Any(), "rec-1", testActor,
				map[string][]byte{"diagnosis": []byte("J45.909")},
				map[string]string{"category": "clinical"}).
			Return(&models.Record{ID: "rec-1", Version: 2, UpdatedAt: updated}, nil)

		body := `{"fields":{"diagnosis":"SjQ1LjkwOQ=="},"metadata":{"category":"clinical"}}`
		status, resp := s.doJSON(t, router, http.MethodPut, "/records/rec-1", body)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "rec-1", resp["id"])
		assert.Equal(t, float64(2), resp["version"])
	})

	s.T().Run("rejects malformed body - 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().CreateOrUpdate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		status, resp := s.doJSON(t, router, http.MethodPut, "/records/rec-1", "{bad-json")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, string(dErrors.CodeValidation), resp["error"])
	})

	s.T().Run("forbidden write maps to 403", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			CreateOrUpdate(gomock.Any(), "rec-1", testActor, gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "write access denied"))

		status, resp := s.doJSON(t, router, http.MethodPut, "/records/rec-1", `{"fields":{}}`)

		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(dErrors.CodeForbidden), resp["error"])
	})
}

func (s *RecordHandlerSuite) TestHandler_Read() {
	s.T().Run("reads selected fields - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			Read(gomock.Any(), "rec-1", testActor, []string{"diagnosis"}, "treatment").
			Return(map[string][]byte{"diagnosis": []byte("J45.909")}, nil)

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1?field=diagnosis&purpose=treatment", "")

		assert.Equal(t, http.StatusOK, status)
		fields, ok := resp["fields"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "SjQ1LjkwOQ==", fields["diagnosis"])
	})

	s.T().Run("missing record maps to 404", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			Read(gomock.Any(), "rec-missing", testActor, gomock.Nil(), "").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "record not found"))

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-missing", "")

		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, string(dErrors.CodeNotFound), resp["error"])
	})

	s.T().Run("integrity failure is indistinguishable from forbidden", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			Read(gomock.Any(), "rec-1", testActor, gomock.Nil(), "").
			Return(nil, dErrors.New(dErrors.CodeIntegrityMismatch, "record integrity check failed"))

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1", "")

		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(dErrors.CodeForbidden), resp["error"])
		assert.Equal(t, "access denied", resp["error_description"])
	})

	s.T().Run("authentication failure is indistinguishable from forbidden", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			Read(gomock.Any(), "rec-1", testActor, gomock.Nil(), "").
			Return(nil, dErrors.New(dErrors.CodeAuthFailure, "field decryption failed"))

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1", "")

		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(dErrors.CodeForbidden), resp["error"])
		assert.Equal(t, "access denied", resp["error_description"])
	})
}

func (s *RecordHandlerSuite) TestHandler_Grants() {
	s.T().Run("grant with ttl - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		hour := time.Hour
		mockService.EXPECT().
			GrantAccess(gomock.Any(), "rec-1", testActor, "clinic-bob", models.OperationRead, &hour, "treatment").
			Return(nil)

		body := `{"grantee":"clinic-bob","operation":"read","ttlSeconds":3600,"purpose":"treatment"}`
		status, resp := s.doJSON(t, router, http.MethodPost, "/records/rec-1/grants", body)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "granted", resp["status"])
	})

	s.T().Run("grant without fresh consent maps to 403", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			GrantAccess(gomock.Any(), "rec-1", testActor, "clinic-bob", models.OperationRead, gomock.Nil(), "").
			Return(dErrors.New(dErrors.CodeConsentRequired, "fresh data_sharing consent required"))

		body := `{"grantee":"clinic-bob","operation":"read"}`
		status, resp := s.doJSON(t, router, http.MethodPost, "/records/rec-1/grants", body)

		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(dErrors.CodeConsentRequired), resp["error"])
	})

	s.T().Run("revoke - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			RevokeAccess(gomock.Any(), "rec-1", testActor, "clinic-bob", models.OperationRead).
			Return(nil)

		body := `{"grantee":"clinic-bob","operation":"read"}`
		status, resp := s.doJSON(t, router, http.MethodPost, "/records/rec-1/grants/revoke", body)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "revoked", resp["status"])
	})
}

func (s *RecordHandlerSuite) TestHandler_PurchaseAndDeletion() {
	s.T().Run("purchase - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			RecordPurchase(gomock.Any(), "rec-1", testActor, "tx-789", "s3://reports/789").
			Return(nil)

		body := `{"transactionRef":"tx-789","locator":"s3://reports/789"}`
		status, resp := s.doJSON(t, router, http.MethodPost, "/records/rec-1/purchase", body)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "recorded", resp["status"])
	})

	s.T().Run("deletion scheduling - 202", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			ScheduleDeletion(gomock.Any(), "rec-1", testActor).
			Return(nil)

		status, resp := s.doJSON(t, router, http.MethodDelete, "/records/rec-1", "")

		assert.Equal(t, http.StatusAccepted, status)
		assert.Equal(t, "deletion_scheduled", resp["status"])
	})
}

func (s *RecordHandlerSuite) TestHandler_Content() {
	s.T().Run("attach raw content - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		content := []byte{0x25, 0x50, 0x44, 0x46, 0x01, 0x02}
		mockService.EXPECT().
			AttachContent(gomock.Any(), "rec-1", testActor, content).
			Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/records/rec-1/content", bytes.NewReader(content))
		req.Header.Set("Content-Type", "application/octet-stream")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	s.T().Run("retrieve content streams bytes back", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		content := []byte("scan payload")
		mockService.EXPECT().
			RetrieveContent(gomock.Any(), "rec-1", testActor, "treatment").
			Return(content, nil)

		req := httptest.NewRequest(http.MethodGet, "/records/rec-1/content?purpose=treatment", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, content, rec.Body.Bytes())
	})

	s.T().Run("retrieve with nothing attached maps to 404", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			RetrieveContent(gomock.Any(), "rec-1", testActor, "").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no content attached"))

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1/content", "")

		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, string(dErrors.CodeNotFound), resp["error"])
	})
}

func (s *RecordHandlerSuite) TestHandler_AuditTrail() {
	s.T().Run("returns redacted events with filter - 200", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			AuditTrail(gomock.Any(), "rec-1", testActor, audit.Filter{
				Action:      audit.ActionRead,
				PerformedBy: "clinic-bob",
				Limit:       10,
			}).
			Return([]audit.RedactedEvent{{
				ID:          "evt-1",
				RecordID:    "rec-1",
				Action:      audit.ActionRead,
				PerformedBy: "clinic-bob",
				Network:     "203.0.113.0/24",
			}}, nil)

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1/audit?action=read&performedBy=clinic-bob&limit=10", "")

		assert.Equal(t, http.StatusOK, status)
		events, ok := resp["events"].([]any)
		require.True(t, ok)
		require.Len(t, events, 1)
		event := events[0].(map[string]any)
		assert.Equal(t, "203.0.113.0/24", event["network"])
		assert.NotContains(t, event, "ipAddress")
	})

	s.T().Run("rejects negative limit - 400", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().AuditTrail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1/audit?limit=-5", "")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, string(dErrors.CodeValidation), resp["error"])
	})

	s.T().Run("non-owner trail access maps to 403", func(t *testing.T) {
		mockService, router := s.newHandler(t)
		mockService.EXPECT().
			AuditTrail(gomock.Any(), "rec-1", testActor, audit.Filter{}).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "audit trail access denied"))

		status, resp := s.doJSON(t, router, http.MethodGet, "/records/rec-1/audit", "")

		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, string(dErrors.CodeForbidden), resp["error"])
	})
}

func TestRecordHandlerSuite(t *testing.T) {
	suite.Run(t, new(RecordHandlerSuite))
}
