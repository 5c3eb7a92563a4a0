package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/foliowatch/foliowatch-go/internal/conf"
	"github.com/foliowatch/foliowatch-go/internal/datastore/entities"
	"github.com/foliowatch/foliowatch-go/internal/errors"
)

// fetchTimeout bounds a single quote request.
const fetchTimeout = 10 * time.Second

// quoteResponse is the provider's JSON quote shape.
type quoteResponse struct {
	Symbol        string   `json:"symbol"`
	Price         *float64 `json:"price"`
	ChangePercent *float64 `json:"change_percent"`
	Volume        *float64 `json:"volume"`
}

// HTTPFetcher fetches current values from a market-data provider's quote
// endpoint.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher against the configured provider.
func NewHTTPFetcher(settings *conf.FetcherSettings) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: settings.QuoteURL,
		apiKey:  settings.APIKey,
		client:  &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch implements ValueFetcher. The field read from the quote depends on
// the rule type: price rules read the last price, percentage rules the
// 24h change, volume rules the traded volume.
func (f *HTTPFetcher) Fetch(ctx context.Context, ruleType, subject string) (float64, error) {
	if subject == "" {
		return 0, ErrNoData
	}

	u := fmt.Sprintf("%s?symbol=%s", f.baseURL, url.QueryEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to build quote request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("X-API-Key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errors.New(fmt.Errorf("quote request failed for %s: %w", subject, err)).
			Component("fetcher").Category(errors.CategoryUpstreamData).Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Newf("quote request for %s returned status %d", subject, resp.StatusCode).
			Component("fetcher").Category(errors.CategoryUpstreamData).Build()
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("failed to decode quote for %s: %w", subject, err)
	}

	var value *float64
	switch ruleType {
	case entities.RuleTypePercentage:
		value = quote.ChangePercent
	case entities.RuleTypeVolume:
		value = quote.Volume
	default:
		value = quote.Price
	}
	if value == nil {
		return 0, ErrNoData
	}
	return *value, nil
}
