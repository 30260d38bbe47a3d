// Package catalog is a read-only client of the product catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Retention      time.Duration
	CircuitBreaker config.CircuitBreakerConfig
}

// Client fetches categories and products. Responses are cached and shared
// between concurrent callers. Transport failures trip a circuit breaker.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	cache      *responseCache
	group      singleflight.Group
	lookups    metric.Int64Counter
	logger     *slog.Logger
}

// NewClient builds a Client. The HTTP transport is instrumented with OTel.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	lookups, err := otel.Meter("storefront-catalog").Int64Counter("catalog_cache_lookups",
		metric.WithDescription("Catalog cache lookups by outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_cache_lookups counter: %v", err))
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker:    gobreaker.NewCircuitBreaker[[]byte](breakerSettings(cfg.CircuitBreaker)),
		cache:      newResponseCache(cfg.Retention),
		lookups:    lookups,
		logger:     logger.With("component", "catalog"),
	}
}

func breakerSettings(cfg config.CircuitBreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "catalog-cb",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.Requests)*100 > float64(cfg.ErrorRatePercent))
		},
		// a missing product is an answer, not an outage, and a caller that went
		// away says nothing about the catalog
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, storeerrors.ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
	}
}

// Categories returns all category names.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	err := c.fetch(ctx, "/products/categories", &out, staticTags(TagCategory))
	return out, err
}

// ProductsByCategory returns the products of category. An unknown category yields an empty list.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]cart.Product, error) {
	var out []cart.Product
	err := c.fetch(ctx, "/products/category/"+url.PathEscape(category), &out, listTags)
	return out, err
}

// Products returns the whole catalog.
func (c *Client) Products(ctx context.Context) ([]cart.Product, error) {
	var out []cart.Product
	err := c.fetch(ctx, "/products", &out, listTags)
	return out, err
}

// Product returns a single product.
// Returns ErrProductNotFound if the catalog has no product with id.
func (c *Client) Product(ctx context.Context, id int) (cart.Product, error) {
	var out cart.Product
	err := c.fetch(ctx, "/products/"+strconv.Itoa(id), &out, staticTags(ProductTag(id)))
	if err == nil && out.ID == 0 {
		return cart.Product{}, fmt.Errorf("product %d: %w", id, storeerrors.ErrProductNotFound)
	}
	return out, err
}

// Invalidate drops cached responses carrying any of tags so that the next
// read refetches them. It returns the number of dropped responses. A fetch
// already in flight is not cached under the invalidated tags.
func (c *Client) Invalidate(tags ...string) int {
	n := c.cache.invalidate(tags...)
	c.logger.Debug("Catalog cache invalidated", "tags", tags, "evicted", n)
	return n
}

// tagsFunc derives the cache tags of a response body.
type tagsFunc func(body []byte) ([]string, error)

func staticTags(tags ...string) tagsFunc {
	return func([]byte) ([]string, error) { return tags, nil }
}

// listTags tags a product list with TagProductList and the tag of every product in it.
func listTags(body []byte) ([]string, error) {
	var products []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(products)+1)
	tags = append(tags, TagProductList)
	for _, p := range products {
		tags = append(tags, ProductTag(p.ID))
	}
	return tags, nil
}

// fetch decodes the response for path into dst, serving it from cache when possible.
//
// The request runs detached from ctx and bounded by the client timeout, and the
// flight caches its own response. A cancelled caller returns ctx.Err() at once
// while the flight carries on for the callers sharing it.
func (c *Client) fetch(ctx context.Context, path string, dst any, tagsOf tagsFunc) error {
	if body, ok := c.cache.get(path); ok {
		c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", true)))
		return json.Unmarshal(body, dst)
	}
	c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", false)))

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (any, error) {
		generation := c.cache.begin()
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.get(flightCtx, path)
		})
		if err != nil {
			return nil, err
		}
		tags, err := tagsOf(body)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %w", storeerrors.ErrCatalogUnavailable, path, err)
		}
		if !c.cache.set(path, body, tags, generation) {
			c.logger.DebugContext(flightCtx, "Skipped caching a response invalidated while in flight", "path", path)
		}
		return body, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}
	if err := res.Err; err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w", storeerrors.ErrCatalogUnavailable, err)
		}
		return err
	}
	if err := json.Unmarshal(res.Val.([]byte), dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", storeerrors.ErrCatalogUnavailable, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Catalog request failed", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrCatalogUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", storeerrors.ErrCatalogUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, storeerrors.ErrProductNotFound)
	case resp.StatusCode >= 300:
		c.logger.WarnContext(ctx, "Catalog returned an error status", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s returned status %d", storeerrors.ErrCatalogUnavailable, path, resp.StatusCode)
	}
	// unknown product ids come back as 200 with an empty body
	if trimmed := strings.TrimSpace(string(body)); trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("%s: %w", path, storeerrors.ErrProductNotFound)
	}
	return body, nil
}
