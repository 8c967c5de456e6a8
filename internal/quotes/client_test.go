package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newUpstreams(t *testing.T, currencyBody, indexBody string, indexStatus int) (*httptest.Server, *httptest.Server) {
	t.Helper()
	currency := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(currencyBody))
	}))
	t.Cleanup(currency.Close)

	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "test-token" {
			t.Errorf("missing token, got query %q", r.URL.RawQuery)
		}
		w.WriteHeader(indexStatus)
		w.Write([]byte(indexBody))
	}))
	t.Cleanup(index.Close)
	return currency, index
}

func TestFetchFormatsBothQuotes(t *testing.T) {
	currency, index := newUpstreams(t,
		`{"USDBRL":{"bid":"5.4312"}}`,
		`{"results":[{"regularMarketPrice":120283.45}]}`,
		http.StatusOK)

	client := NewClient(currency.URL, index.URL, "test-token")
	res := client.Fetch(context.Background())

	if res.DollarErr != nil || res.IbovespaErr != nil {
		t.Fatalf("unexpected errors: %v / %v", res.DollarErr, res.IbovespaErr)
	}
	if res.Dollar != "R$ 5,43" {
		t.Fatalf("dollar = %q", res.Dollar)
	}
	if res.Ibovespa != "120.283,45 pts" {
		t.Fatalf("ibovespa = %q", res.Ibovespa)
	}
}

func TestFetchFailureBlanksOnlyItsField(t *testing.T) {
	currency, index := newUpstreams(t,
		`{"USDBRL":{"bid":"5.00"}}`,
		`upstream down`,
		http.StatusInternalServerError)

	client := NewClient(currency.URL, index.URL, "test-token")
	res := client.Fetch(context.Background())

	if res.Dollar != "R$ 5,00" || res.DollarErr != nil {
		t.Fatalf("dollar should survive index failure: %q %v", res.Dollar, res.DollarErr)
	}
	if res.Ibovespa != ErrPlaceholder || res.IbovespaErr == nil {
		t.Fatalf("expected placeholder for failed index, got %q %v", res.Ibovespa, res.IbovespaErr)
	}
}

func TestFetchMalformedBid(t *testing.T) {
	currency, index := newUpstreams(t,
		`{"USDBRL":{"bid":"not-a-number"}}`,
		`{"results":[{"regularMarketPrice":100000}]}`,
		http.StatusOK)

	client := NewClient(currency.URL, index.URL, "test-token")
	res := client.Fetch(context.Background())

	if res.Dollar != ErrPlaceholder || res.DollarErr == nil {
		t.Fatalf("expected placeholder for malformed bid, got %q %v", res.Dollar, res.DollarErr)
	}
	if res.Ibovespa != "100.000 pts" {
		t.Fatalf("ibovespa = %q", res.Ibovespa)
	}
}

func TestFormatPoints(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{120283.45, "120.283,45"},
		{100000, "100.000"},
		{987, "987"},
		{1234567.5, "1.234.567,5"},
	}
	for _, tc := range cases {
		if got := formatPoints(tc.in); got != tc.want {
			t.Errorf("formatPoints(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
