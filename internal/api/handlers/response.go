package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/smartcare/backend/pkg/errors"
)

// Actor identity headers set by the authentication proxy
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"

	HeaderIdempotencyKey = "Idempotency-Key"
)

const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// statusFor maps an error type onto its HTTP status
func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict, apperrors.ErrorTypeResourceExhausted:
		return http.StatusConflict
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError writes err with the status of its type. Internal and
// external details are logged, not returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := statusFor(appErr.Type)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	switch appErr.Type {
	case apperrors.ErrorTypeInternal:
		respondWithError(w, status, "internal server error")
	case apperrors.ErrorTypeExternal:
		respondWithError(w, status, "upstream dependency failed")
	default:
		respondWithJSON(w, status, map[string]string{
			"error": appErr.Message,
			"code":  string(appErr.Type),
		})
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// actorFromRequest reads the trusted actor identity headers
func actorFromRequest(r *http.Request) entities.Actor {
	return entities.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Name: strings.TrimSpace(r.Header.Get(HeaderActorName)),
		Role: entities.ActorRole(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
	}
}

// actorLabel names the actor for pool logs, falling back to the role
func actorLabel(a entities.Actor) string {
	switch {
	case a.Name != "":
		return a.Name
	case a.ID != "":
		return a.ID
	default:
		return "staff"
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
