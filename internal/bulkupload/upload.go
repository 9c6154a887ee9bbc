package bulkupload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/rs/zerolog"
)

const ProductsPath = "/api/bulk-products/"

var ErrNoProducts = errors.New("no products to upload")

type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

type Poster interface {
	Post(ctx context.Context, path string, body any, opts ...apiclient.RequestOption) apiclient.Result
}

// uploadRequest carries the products as a JSON encoded string: the backend
// reads them from a form field and decodes it itself.
type uploadRequest struct {
	Products string `json:"products"`
}

type Result struct {
	Message    string  `json:"message"`
	ProductIDs []int64 `json:"product_ids"`
}

type Uploader struct {
	session TokenProvider
	client  Poster
	logger  zerolog.Logger
}

func NewUploader(session TokenProvider, client Poster, logger zerolog.Logger) *Uploader {
	return &Uploader{
		session: session,
		client:  client,
		logger:  logger.With().Str("component", "bulkupload").Logger(),
	}
}

// Upload submits the products in one request. A non-nil category is applied
// to every product that has none.
func (u *Uploader) Upload(ctx context.Context, products []Product, category *int64) (*Result, error) {
	if len(products) == 0 {
		return nil, ErrNoProducts
	}

	token, err := u.session.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulk upload requires a session: %w", err)
	}

	batch := make([]Product, len(products))
	copy(batch, products)
	if category != nil {
		for i := range batch {
			if batch[i].Category == nil {
				batch[i].Category = category
			}
		}
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	res := u.client.Post(ctx, ProductsPath, uploadRequest{Products: string(data)},
		apiclient.WithHeader("Authorization", "Bearer "+token),
	)
	if !res.OK() {
		u.logger.Warn().Str("error", res.Error).Int("status", res.Status).Int("products", len(batch)).Msg("bulk upload rejected")
		return nil, res.Err()
	}

	var out Result
	if err := res.Decode(&out); err != nil && !errors.Is(err, apiclient.ErrNoData) {
		u.logger.Warn().Err(err).Msg("bulk upload accepted but response unreadable")
	}
	u.logger.Info().Int("submitted", len(batch)).Int("created", len(out.ProductIDs)).Msg("bulk upload done")
	return &out, nil
}
