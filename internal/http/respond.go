package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleError maps store and backend errors to HTTP statuses.
func handleError(w http.ResponseWriter, err error) {
	var reqErr *apiclient.RequestError

	switch {
	case errors.Is(err, session.ErrUnauthenticated),
		errors.Is(err, session.ErrNoRefreshToken):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, session.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, "session_expired", err.Error())
	case errors.Is(err, session.ErrInvalidCredentials):
		respondError(w, http.StatusBadRequest, "invalid_credentials", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.As(err, &reqErr):
		status := reqErr.Status
		code := "backend_error"
		if status == 0 {
			status = http.StatusBadGateway
			code = "backend_unreachable"
		}
		respondJSON(w, status, ErrorResponse{Error: reqErr.Message, Code: code, Details: reqErr.Details})
	default:
		log.Error().Err(err).Msg("unhandled error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
