package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type SessionHandler struct {
	session *session.Store
	timeout time.Duration
}

func NewSessionHandler(s *session.Store, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		session: s,
		timeout: timeout,
	}
}

type LoginRequestDTO struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user"`
}

type SessionResponseDTO struct {
	IsAuthenticated bool         `json:"is_authenticated"`
	User            *domain.User `json:"user"`
	TokenExpiry     *time.Time   `json:"token_expiry,omitempty"`
}

type TokenResponseDTO struct {
	Access string `json:"access"`
}

func (h *SessionHandler) snapshot() SessionResponseDTO {
	st := h.session.State()
	return SessionResponseDTO{
		IsAuthenticated: st.IsAuthenticated(),
		User:            st.User,
		TokenExpiry:     st.TokenExpiry,
	}
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.snapshot())
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := h.session.Login(ctx, domain.Credentials{Access: req.Access, Refresh: req.Refresh}, req.User)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.session.Logout(ctx)

	respondJSON(w, http.StatusOK, h.snapshot())
}

// POST /api/v1/session/refresh
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.session.RefreshAccessToken(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TokenResponseDTO{Access: token})
}

// GET /api/v1/session/token returns a token that is valid now, refreshing it
// when needed.
func (h *SessionHandler) Token(w http.ResponseWriter, r *http.Request) {
	token, err := h.session.GetValidToken(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TokenResponseDTO{Access: token})
}
