// Package marketplace calls the marketplace REST API on behalf of a seller
package marketplace

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketplace-oauth/internal/circuitbreaker"
	"marketplace-oauth/internal/common/errors"
	commonhttp "marketplace-oauth/internal/common/http"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/common/ratelimit"
	"marketplace-oauth/internal/models"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	// ItemsBatchSize is the most ids the multi-get endpoint accepts per call
	ItemsBatchSize = 20
	// SearchPageSize is the page size used when walking a seller's items
	SearchPageSize = 50
	// MaxSearchOffset is the deepest offset the search endpoint serves.
	// Sellers with more items are walked in scan mode.
	MaxSearchOffset = 1000
	// ScanPageSize is the page size in scan mode
	ScanPageSize = 100
	// MaxScanPages caps a scan walk
	MaxScanPages = 1000

	defaultTimeout          = 15 * time.Second
	defaultBatchConcurrency = 4
	promotionsAppVersion    = "v2"
	salePriceContext        = "channel_marketplace"
)

// Config holds the client settings
type Config struct {
	BaseURL string
	// Timeout bounds each call, zero selects 15s
	Timeout time.Duration
	// RateLimitRPS of zero disables outbound throttling
	RateLimitRPS   float64
	RateLimitBurst int
}

// Client is a marketplace API client. The access token is passed per call.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	breaker     *circuitbreaker.Breaker
	timeout     time.Duration
	concurrency int
	logger      logging.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBreaker sets the circuit breaker guarding API calls
func WithBreaker(breaker *circuitbreaker.Breaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// WithBatchConcurrency bounds how many item batches are fetched at once
func WithBatchConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the API rooted at cfg.BaseURL
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.ValidationError("marketplace base URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid marketplace base URL: %v", err))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		Enabled:           cfg.RateLimitRPS > 0,
	})
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid outbound rate limit: %v", err))
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		limiter:     limiter,
		timeout:     cfg.Timeout,
		concurrency: defaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.GetGlobalLogger()
	}
	if c.httpClient == nil {
		c.httpClient = commonhttp.NewHTTPClientWithTimeout(c.timeout)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.NewGoBreaker("marketplace-api", circuitbreaker.HTTPConfig, c.logger)
	}

	return c, nil
}

// SearchItemIDs returns every item id listed by userID. Up to
// MaxSearchOffset items are walked with offset paging, larger catalogues
// through scroll ids in scan mode.
func (c *Client) SearchItemIDs(ctx context.Context, token, userID string) ([]string, error) {
	path := "/users/" + url.PathEscape(userID) + "/items/search"

	var ids []string
	offset := 0
	for {
		query := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(SearchPageSize)},
		}

		var page models.SearchResult
		if err := c.getJSON(ctx, token, "items_search", path, query, &page); err != nil {
			return nil, err
		}
		if offset == 0 && page.Paging.Total > MaxSearchOffset {
			return c.scanItemIDs(ctx, token, path, userID)
		}

		ids = append(ids, page.Results...)
		offset += len(page.Results)
		if len(page.Results) == 0 || offset >= page.Paging.Total {
			break
		}
	}

	// Listings can shift between pages while we walk them.
	return lo.Uniq(ids), nil
}

func (c *Client) scanItemIDs(ctx context.Context, token, path, userID string) ([]string, error) {
	query := url.Values{
		"search_type": {"scan"},
		"limit":       {strconv.Itoa(ScanPageSize)},
	}

	var ids []string
	for pages := 0; pages < MaxScanPages; pages++ {
		var page models.SearchResult
		if err := c.getJSON(ctx, token, "items_search", path, query, &page); err != nil {
			return nil, err
		}
		if len(page.Results) == 0 {
			return lo.Uniq(ids), nil
		}

		ids = append(ids, page.Results...)
		if page.ScrollID == "" {
			return lo.Uniq(ids), nil
		}
		query.Set("scroll_id", page.ScrollID)
	}

	c.logger.Warn("Item scan stopped at page limit",
		logging.String("user_id", userID),
		logging.Int("items", len(ids)),
	)
	return lo.Uniq(ids), nil
}

// GetItems fetches item details in batches of ItemsBatchSize. Results keep
// the order of ids; entries the marketplace could not return are skipped.
func (c *Client) GetItems(ctx context.Context, token string, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	batches := lo.Chunk(ids, ItemsBatchSize)
	results := make([][]models.Item, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			query := url.Values{
				"ids":        {strings.Join(batch, ",")},
				"attributes": {models.ItemAttributes},
			}

			var entries []models.ItemResult
			if err := c.getJSON(gctx, token, "items", "/items", query, &entries); err != nil {
				return err
			}

			results[i] = lo.FilterMap(entries, func(entry models.ItemResult, _ int) (models.Item, bool) {
				return entry.Body, entry.Code == http.StatusOK
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.Flatten(results), nil
}

// GetSalePrice returns the current sale price of itemID. A 404 from the
// marketplace means no active promotion and yields (nil, false, nil).
func (c *Client) GetSalePrice(ctx context.Context, token, itemID string) (*models.SalePrice, bool, error) {
	path := "/items/" + url.PathEscape(itemID) + "/sale_price"
	query := url.Values{"context": {salePriceContext}}

	var price models.SalePrice
	err := c.getJSON(ctx, token, "sale_price", path, query, &price)
	if appErr, ok := errors.As(err); ok && appErr.Type == errors.ErrTypeUpstreamAPI && appErr.Status == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &price, true, nil
}

// ListPromotions returns the seller's promotions as the marketplace sent them
func (c *Client) ListPromotions(ctx context.Context, token, userID string) (json.RawMessage, error) {
	path := "/seller-promotions/users/" + url.PathEscape(userID)
	query := url.Values{"app_version": {promotionsAppVersion}}

	var raw json.RawMessage
	if err := c.getJSON(ctx, token, "promotions", path, query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PromotionItems returns the items of one promotion as the marketplace sent
// them. Empty promotionType or status are left out of the query.
func (c *Client) PromotionItems(ctx context.Context, token, promotionID, promotionType, status string) (json.RawMessage, error) {
	path := "/seller-promotions/promotions/" + url.PathEscape(promotionID) + "/items"
	query := url.Values{"app_version": {promotionsAppVersion}}
	if promotionType != "" {
		query.Set("promotion_type", promotionType)
	}
	if status != "" {
		query.Set("status", status)
	}

	var raw json.RawMessage
	if err := c.getJSON(ctx, token, "promotion_items", path, query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// BreakerStats reports the state of the API circuit breaker
func (c *Client) BreakerStats() circuitbreaker.Stats {
	return c.breaker.Stats()
}

// RateLimitStats reports the outbound call budget
func (c *Client) RateLimitStats() map[string]interface{} {
	return c.limiter.Stats()
}

// getJSON performs an authorised GET and decodes a 2xx body into out.
// endpoint names the call in errors and logs.
func (c *Client) getJSON(ctx context.Context, token, endpoint, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.RateLimitError("marketplace api")
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	start := time.Now()
	err := c.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
		if err != nil {
			return errors.InternalError("failed to build marketplace request", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if stderrors.Is(err, context.Canceled) {
				return err
			}
			return errors.ConnectionError("marketplace api is unreachable", err).WithContext("endpoint", endpoint)
		}

		body, err := commonhttp.ReadBody(resp)
		if err != nil {
			return errors.ConnectionError("failed to read marketplace response", err).WithContext("endpoint", endpoint)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.UpstreamAPIError(endpoint, resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return errors.UpstreamAPIError(endpoint, resp.StatusCode, string(body)).WithContext("decode_error", err.Error())
		}
		return nil
	})

	c.logger.Debug("Marketplace call finished",
		logging.String("endpoint", endpoint),
		logging.Duration("duration", time.Since(start)),
		logging.Field{Key: "failed", Value: err != nil},
	)
	return err
}
