package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

const (
	DefaultPrimaryURL  = "https://api.frankfurter.app"
	DefaultFallbackURL = "https://api.exchangerate-api.com"
)

// HTTPSource fetches USD-based quotes from public rate APIs and rebases them
// into the canonical UZS table. The secondary provider only serves latest quotes.
type HTTPSource struct {
	client      *http.Client
	primaryURL  string
	fallbackURL string
	static      RateTable
}

// NewHTTPSource creates a source. Empty URLs select the public defaults.
func NewHTTPSource(primaryURL, fallbackURL string, timeout time.Duration) *HTTPSource {
	if primaryURL == "" {
		primaryURL = DefaultPrimaryURL
	}
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSource{
		client:      &http.Client{Timeout: timeout},
		primaryURL:  strings.TrimRight(primaryURL, "/"),
		fallbackURL: strings.TrimRight(fallbackURL, "/"),
		static:      StaticTable(),
	}
}

type quotesResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Latest implements RateSource.
func (s *HTTPSource) Latest(ctx context.Context) (RateTable, error) {
	t, err := s.fetch(ctx, s.primaryURL+"/latest?base=USD")
	if err == nil {
		return t, nil
	}
	t, fallbackErr := s.fetch(ctx, s.fallbackURL+"/v4/latest/USD")
	if fallbackErr != nil {
		return RateTable{}, errors.Join(err, fallbackErr)
	}
	return t, nil
}

// Historical implements RateSource.
func (s *HTTPSource) Historical(ctx context.Context, date time.Time) (RateTable, error) {
	return s.fetch(ctx, s.primaryURL+"/"+core.DateOf(date).String()+"?from=USD")
}

func (s *HTTPSource) fetch(ctx context.Context, url string) (RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RateTable{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return RateTable{}, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return RateTable{}, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	var body quotesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return RateTable{}, fmt.Errorf("decode %s: %w", url, err)
	}
	if len(body.Rates) == 0 {
		return RateTable{}, fmt.Errorf("get %s: empty rates", url)
	}

	quotes := make(map[core.Currency]decimal.Decimal, len(body.Rates))
	for code, r := range body.Rates {
		quotes[core.Currency(strings.ToUpper(code))] = r
	}
	asOf := time.Now().UTC()
	if d, err := time.Parse(time.DateOnly, body.Date); err == nil {
		asOf = d
	}
	return FromQuotes(core.USD, quotes, s.static, asOf), nil
}
