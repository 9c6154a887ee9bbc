package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/bulkupload"
)

const maxBulkUploadBytes = 5 << 20

type BulkUploadHandler struct {
	uploader *bulkupload.Uploader
	timeout  time.Duration
}

func NewBulkUploadHandler(uploader *bulkupload.Uploader, timeout time.Duration) *BulkUploadHandler {
	return &BulkUploadHandler{
		uploader: uploader,
		timeout:  timeout,
	}
}

type BulkUploadResponseDTO struct {
	Products   []bulkupload.Product `json:"products"`
	ProductIDs []int64              `json:"product_ids,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// POST /api/v1/products/bulk?format=csv|paste[&category=<id>][&dry_run=true]
//
// The body is the raw table. A dry run only returns the parsed products.
func (h *BulkUploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := bulkupload.Format(q.Get("format"))
	if format == "" {
		format = bulkupload.FormatCSV
	}

	var category *int64
	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_category", "category must be a positive integer")
			return
		}
		category = &id
	}
	dryRun, _ := strconv.ParseBool(q.Get("dry_run"))

	products, err := bulkupload.Parse(http.MaxBytesReader(w, r.Body, maxBulkUploadBytes), format)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds 5MB")
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	case len(products) == 0:
		respondError(w, http.StatusBadRequest, "invalid_upload", bulkupload.ErrNoProducts.Error())
		return
	}

	if dryRun {
		respondJSON(w, http.StatusOK, BulkUploadResponseDTO{Products: products})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.uploader.Upload(ctx, products, category)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, BulkUploadResponseDTO{
		Products:   products,
		ProductIDs: res.ProductIDs,
		Message:    res.Message,
	})
}
