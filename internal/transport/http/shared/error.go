package shared

import (
	"errors"
	"net/http"

	respond "custodia/internal/transport/http/json"
	dErrors "custodia/pkg/domain-errors"
)

// WriteError centralizes domain error translation to HTTP responses.
//
// authentication_failure and integrity_mismatch deliberately collapse into a
// generic 403 with no description: a distinguishable response would let a
// caller probe which tamper check fired.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		respond.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": string(dErrors.CodeInternal),
		})
		return
	}

	switch domainErr.Code {
	case dErrors.CodeAuthFailure, dErrors.CodeIntegrityMismatch:
		respond.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error":             string(dErrors.CodeForbidden),
			"error_description": "access denied",
		})
		return
	}

	response := map[string]string{
		"error": string(domainErr.Code),
	}
	if domainErr.Message != "" {
		response["error_description"] = domainErr.Message
	}
	respond.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeForbidden, dErrors.CodeConsentRequired,
		dErrors.CodeAuthFailure, dErrors.CodeIntegrityMismatch:
		return http.StatusForbidden
	case dErrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
