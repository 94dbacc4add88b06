package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/greenbasket/garden-backend/internal/types"
)

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	reqID := middleware.GetReqID(r.Context())
	resp := map[string]interface{}{
		"success":    false,
		"error":      message,
		"request_id": reqID,
	}
	WriteJSONResponse(w, r, status, resp)
}

// SuccessResponse writes the standard success envelope with an optional data
// payload.
func SuccessResponse(w http.ResponseWriter, r *http.Request, status int, message string, data interface{}) {
	resp := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if data != nil {
		resp["data"] = data
	}
	WriteJSONResponse(w, r, status, resp)
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	// Cap the body to prevent abuse (1MB)
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// SanitizeInput trims whitespace and escapes HTML metacharacters before a
// value reaches storage.
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// MissingFields returns the names of required fields whose values are blank,
// in the order given.
func MissingFields(fields map[string]string, required ...string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// MissingFieldsMessage formats the standard "missing required fields" error.
func MissingFieldsMessage(missing []string) string {
	return "Missing required fields: " + strings.Join(missing, ", ")
}

// MapServiceError translates the shared sentinel errors into HTTP statuses
// and client-safe messages.
func MapServiceError(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest, clientMessage(err, types.ErrValidation, "Invalid input")
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict, clientMessage(err, types.ErrConflict, "Already exists")
	case errors.Is(err, types.ErrDeactivated):
		return http.StatusUnauthorized, "Account is deactivated. Please contact support"
	case errors.Is(err, types.ErrUnauthenticated):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, types.ErrDependency):
		return http.StatusInternalServerError, clientMessage(err, types.ErrDependency, "Upstream dependency failed")
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// clientMessage strips the sentinel prefix from a wrapped error, leaving the
// human-readable detail.
func clientMessage(err error, sentinel error, fallback string) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		detail := strings.TrimPrefix(msg, prefix)
		if detail != "" {
			return strings.ToUpper(detail[:1]) + detail[1:]
		}
	}
	return fallback
}

// VerifyAudience checks whether the expected audience is present in the claim.
func VerifyAudience(claimsAudience jwt.ClaimStrings, expectedAudience string) bool {
	if expectedAudience == "" {
		return true
	}
	for _, aud := range claimsAudience {
		if aud == expectedAudience {
			return true
		}
	}
	return false
}
