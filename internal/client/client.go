// Package client talks to the storefront REST API: catalog reads and the
// order status endpoint polled after checkout.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/slug"
)

const maxBodyBytes = 4 << 20

// Client is a typed wrapper over the storefront API. Requests go through the
// supplied Doer, normally a circuit-breaking httpclient.
type Client struct {
	baseURL string
	http    httpclient.Doer
	logger  *slog.Logger
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger.With(slog.String("component", "api_client")),
	}
}

// ListProducts returns catalog products matching filter.
func (c *Client) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	q := url.Values{}
	if filter.Featured != nil {
		q.Set("featured", strconv.FormatBool(*filter.Featured))
	}
	if filter.CategoryID != "" {
		q.Set("category", filter.CategoryID)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}

	path := "/api/v1/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var products []domain.Product
	if err := c.get(ctx, path, "product", "", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns a single product. A missing product yields an error
// wrapping apperrors.ErrNotFound.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, "/api/v1/products/"+url.PathEscape(id), "product", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCategories returns every catalog category. Categories the API sends
// without a slug get one derived from their name.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.get(ctx, "/api/v1/categories", "category", "", &categories); err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].Slug == "" {
			categories[i].Slug = slug.Generate(categories[i].Name)
		}
	}
	return categories, nil
}

type orderStatusResponse struct {
	Status string `json:"status"`
}

// GetOrderStatus returns the raw status string the API reports for an order.
// Normalisation is left to the caller.
func (c *Client) GetOrderStatus(ctx context.Context, merchantReference string) (string, error) {
	var resp orderStatusResponse
	path := "/api/v1/orders/" + url.PathEscape(merchantReference) + "/status"
	if err := c.get(ctx, path, "order", merchantReference, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) get(ctx context.Context, path, resource, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", resource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s api: %w", resource, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, resource, id)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", resource, err)
	}
	if err := decodeEnvelope(body, out); err != nil {
		c.logger.WarnContext(ctx, "undecodable api response",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

// decodeEnvelope accepts both a bare JSON payload and one wrapped as
// {"data": ...}.
func decodeEnvelope(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return err
		}
		if data, ok := env["data"]; ok && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(trimmed, out)
}
