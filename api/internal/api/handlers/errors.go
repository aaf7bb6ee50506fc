package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"akatsuki/api/internal/core/domain"
)

// Use a single instance of Validate, it caches struct info
var validate = validator.New()

type errorResponse struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// HandleError is the single place where domain failures become HTTP statuses.
// Internal detail goes to logger, never to the client.
func HandleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+":"+fe.Tag())
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "Validation failed", Fields: fields})
		return
	}

	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, errorResponse{Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrMailNotConfigured):
		return http.StatusServiceUnavailable, "Mail transport not configured"
	case errors.Is(err, domain.ErrMailDelivery):
		return http.StatusBadGateway, "Mail delivery failed"
	default:
		// ErrDriver, ErrCrypto, ErrMisconfiguredKey, ErrLastInsertIDUnknown and
		// anything unclassified.
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
