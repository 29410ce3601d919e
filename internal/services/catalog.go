package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"chatagent-backend/internal/models"
)

// UpstreamError is returned when the Product Service answers with a non-2xx
// status. Body is kept for the server log only.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("product service returned status %d", e.StatusCode)
}

// CatalogClient talks to the external Product Service.
type CatalogClient struct {
	http *resty.Client
}

// NewCatalogClient builds a client without retries. A zero timeout leaves the
// request bounded only by its context.
func NewCatalogClient(timeout time.Duration) *CatalogClient {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("Cache-Control", "no-store").
		SetHeader("User-Agent", "chatagent-backend/1.0")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &CatalogClient{http: client}
}

// Search runs GET {baseURL}/products?q={query} and decodes the product list.
func (c *CatalogClient) Search(ctx context.Context, baseURL, query string) ([]models.Product, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get(productsURL(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "product service request failed")
	}

	if !resp.IsSuccess() {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}

	return decodeProducts(resp.Body())
}

// decodeProducts requires a JSON array of products. A literal null is read as
// an empty list.
func decodeProducts(body []byte) ([]models.Product, error) {
	var products []models.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, errors.Wrap(err, "invalid product list from product service")
	}
	return products, nil
}

func productsURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/products"
}
