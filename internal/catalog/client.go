package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrCatalogUnavailable is returned when the catalog cannot be reached after
// the retry budget is exhausted, or responds with a non-retryable failure.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Client handles communication with a STAC search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries uint64
}

// NewClient creates a new STAC API client.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:     slog.Default(),
		maxRetries: uint64(maxRetries),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// FetchPage executes one page of a search. Pass the token from the previous
// page's NextToken, or "" for the first page. Transient failures (network
// errors, 5xx, 429) are retried with exponential backoff; once the retry
// budget is exhausted the error wraps ErrCatalogUnavailable.
func (c *Client) FetchPage(ctx context.Context, query SearchQuery, token string) (*Page, error) {
	query.Token = token

	var page *Page
	operation := func() error {
		var err error
		page, err = c.search(ctx, query)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return page, nil
}

func (c *Client) search(ctx context.Context, query SearchQuery) (*Page, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to encode search query: %w", err))
	}

	searchURL := c.baseURL + "/search"
	c.logger.DebugContext(ctx, "executing STAC search",
		slog.String("url", searchURL),
		slog.String("token", query.Token),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", "revisit-raster/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "STAC search request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("STAC search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("STAC API returned status %d: %s", resp.StatusCode, string(respBody))
		if retryableStatus(resp.StatusCode) {
			c.logger.WarnContext(ctx, "STAC search failed, will retry",
				slog.Int("status_code", resp.StatusCode),
			)
			return nil, err
		}
		c.logger.ErrorContext(ctx, "STAC search failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)),
		)
		return nil, backoff.Permanent(err)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode STAC response: %w", err)
	}

	c.logger.DebugContext(ctx, "STAC search completed",
		slog.Int("feature_count", len(page.Features)),
	)
	return &page, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
