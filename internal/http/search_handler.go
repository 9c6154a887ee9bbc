package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/search"
)

type SearchHandler struct {
	searches *search.Store
	timeout  time.Duration
}

func NewSearchHandler(s *search.Store, timeout time.Duration) *SearchHandler {
	return &SearchHandler{
		searches: s,
		timeout:  timeout,
	}
}

type RecordSearchRequestDTO struct {
	Term string `json:"term"`
}

type SearchesResponseDTO struct {
	Recent []string `json:"recent"`
}

func (h *SearchHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SearchesResponseDTO{Recent: h.searches.List()})
}

func (h *SearchHandler) Record(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RecordSearchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		respondError(w, http.StatusBadRequest, "invalid_term", "term must not be blank")
		return
	}

	h.searches.Record(ctx, req.Term)
	respondJSON(w, http.StatusCreated, SearchesResponseDTO{Recent: h.searches.List()})
}

func (h *SearchHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.searches.Clear(ctx)
	respondJSON(w, http.StatusOK, SearchesResponseDTO{Recent: h.searches.List()})
}
