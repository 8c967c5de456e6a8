// Package quotes fetches current market figures from two public
// upstreams: the USD-BRL exchange rate and the BVSP index. Quotes are
// fetched on demand, never cached and never retried; a failed upstream
// only blanks its own field.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
)

// ErrPlaceholder is the display value for a field whose upstream failed.
const ErrPlaceholder = "error"

const (
	DefaultCurrencyURL = "https://economia.awesomeapi.com.br/json/last/USD-BRL"
	DefaultIndexURL    = "https://brapi.dev/api/quote/^BVSP"
)

// Result carries both display-ready quote strings. A field holds
// ErrPlaceholder when its fetch failed; the matching error explains why.
type Result struct {
	Dollar   string
	Ibovespa string

	DollarErr   error
	IbovespaErr error
}

type Client struct {
	httpClient  *http.Client
	currencyURL string
	indexURL    string
	token       string
}

// NewClient builds a quote client. The token authenticates against the
// index upstream; the currency upstream is public.
func NewClient(currencyURL, indexURL, token string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		currencyURL: currencyURL,
		indexURL:    indexURL,
		token:       token,
	}
}

// Fetch polls both upstreams concurrently and always returns a complete
// Result. Upstream failures are recorded per field, never returned.
func (c *Client) Fetch(ctx context.Context) Result {
	res := Result{Dollar: ErrPlaceholder, Ibovespa: ErrPlaceholder}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dollar, err := c.fetchDollar(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to fetch exchange quote", "error", err)
			res.DollarErr = err
			return nil
		}
		res.Dollar = dollar
		return nil
	})
	g.Go(func() error {
		ibov, err := c.fetchIbovespa(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to fetch index quote", "error", err)
			res.IbovespaErr = err
			return nil
		}
		res.Ibovespa = ibov
		return nil
	})
	g.Wait()

	return res
}

func (c *Client) fetchDollar(ctx context.Context) (string, error) {
	var payload struct {
		USDBRL struct {
			Bid string `json:"bid"`
		} `json:"USDBRL"`
	}
	if err := c.getJSON(ctx, c.currencyURL, &payload); err != nil {
		return "", err
	}

	rate, err := strconv.ParseFloat(payload.USDBRL.Bid, 64)
	if err != nil {
		return "", fmt.Errorf("parse bid %q: %w", payload.USDBRL.Bid, err)
	}
	cents := int64(math.Round(rate * 100))
	if cents <= 0 {
		return "", fmt.Errorf("implausible bid %q", payload.USDBRL.Bid)
	}
	return core.Money{Cents: cents}.String(), nil
}

func (c *Client) fetchIbovespa(ctx context.Context) (string, error) {
	url := c.indexURL
	if c.token != "" {
		url += "?token=" + c.token
	}

	var payload struct {
		Results []struct {
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return "", err
	}
	if len(payload.Results) == 0 {
		return "", fmt.Errorf("index response carries no results")
	}
	return formatPoints(payload.Results[0].RegularMarketPrice) + " pts", nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// formatPoints renders an index level in pt-BR style: thousands grouped
// with dots, decimal comma, fraction shown only when present.
func formatPoints(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(digit)
	}
	if hasFrac {
		if len(fracPart) > 2 {
			fracPart = fracPart[:2]
		}
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}
