// Package auth authenticates requests from a JWT bearer token and places the
// caller identity in the request context. The engine trusts the token's
// subject claim as the requester identity; issuing tokens is out of scope.
package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// Validator verifies bearer tokens and extracts the subject identity.
type Validator interface {
	ValidateToken(tokenString string) (subject string, err error)
}

// HMACValidator validates HS256-signed tokens against a shared secret.
type HMACValidator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// HMACOption configures the HMACValidator.
type HMACOption func(*HMACValidator)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) HMACOption {
	return func(v *HMACValidator) {
		v.issuer = issuer
	}
}

// WithAudience requires the aud claim to contain the value.
func WithAudience(audience string) HMACOption {
	return func(v *HMACValidator) {
		v.audience = audience
	}
}

// WithLeeway tolerates clock skew when validating exp/nbf.
func WithLeeway(leeway time.Duration) HMACOption {
	return func(v *HMACValidator) {
		v.leeway = leeway
	}
}

// NewHMACValidator constructs a validator for HS256 tokens.
func NewHMACValidator(secret []byte, opts ...HMACOption) (*HMACValidator, error) {
	if len(secret) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "token secret required")
	}
	v := &HMACValidator{secret: secret}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateToken parses and verifies the token and returns its subject.
func (v *HMACValidator) ValidateToken(tokenString string) (string, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAuthFailure, "invalid token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", dErrors.New(dErrors.CodeAuthFailure, "token missing subject")
	}
	return subject, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated identity in the context for handlers and the audit trail.
func RequireAuth(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Missing bearer token")
				return
			}

			subject, err := validator.ValidateToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "unauthorized request",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, subject)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
