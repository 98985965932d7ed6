package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mfsilva/order-ledger/internal/core/domain"
)

// HTTPClient implements port.InventoryClient against the inventory service's
// REST API. Transport failures, timeouts and 5xx responses all map to
// domain.ErrUpstreamUnavailable: the outcome is unknown, not failed.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

type productResponse struct {
	ID    int64   `json:"id"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func (c *HTTPClient) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	url := fmt.Sprintf("%s/product/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build product request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body productResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: decode product: %v", domain.ErrUpstreamUnavailable, err)
		}
		return &domain.Product{ID: body.ID, Price: body.Price, Stock: body.Stock}, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: product %d", domain.ErrProductNotFound, productID)
	default:
		return nil, fmt.Errorf("%w: product endpoint returned %s", domain.ErrUpstreamUnavailable, resp.Status)
	}
}

type adjustRequest struct {
	Delta          int    `json:"delta"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func (c *HTTPClient) AdjustStock(ctx context.Context, productID int64, delta int, idempotencyKey string) error {
	payload, err := json.Marshal(adjustRequest{Delta: delta, IdempotencyKey: idempotencyKey})
	if err != nil {
		return fmt.Errorf("encode adjust request: %w", err)
	}

	url := fmt.Sprintf("%s/product/%d/stock", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build adjust request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The request may have landed; only an explicit response settles it.
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: adjustment of %d rejected for product %d", domain.ErrInsufficientStock, delta, productID)
	case http.StatusNotFound:
		return fmt.Errorf("%w: product %d", domain.ErrProductNotFound, productID)
	default:
		return fmt.Errorf("%w: stock endpoint returned %s", domain.ErrUpstreamUnavailable, resp.Status)
	}
}
