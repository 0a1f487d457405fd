package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrProductNotFound is returned when the catalog has no such product.
var ErrProductNotFound = errors.New("pricing: product not found")

// Catalog is the product/price lookup collaborator.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	SearchProducts(ctx context.Context, query string) ([]Product, error)
}

// CatalogClient talks to the external product lookup over HTTP.
type CatalogClient struct {
	baseURL string
	client  *http.Client
}

// NewCatalogClient constructs a client for the catalog at baseURL.
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// GetProduct fetches one product with its price lists and stock.
func (c *CatalogClient) GetProduct(ctx context.Context, id string) (Product, error) {
	body, err := c.get(ctx, "/products/"+url.PathEscape(id), nil)
	if err != nil {
		return Product{}, err
	}
	defer body.Close()
	return DecodeProduct(body)
}

// SearchProducts lists products matching query.
func (c *CatalogClient) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	body, err := c.get(ctx, "/products", url.Values{"search": {query}})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DecodeProducts(body)
}

func (c *CatalogClient) get(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing: catalog request: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("pricing: catalog status %d: %s", resp.StatusCode, string(msg))
	}
	return resp.Body, nil
}
