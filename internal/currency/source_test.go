package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hisob/internal/core"
)

func TestHTTPSourceLatest(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" || r.URL.Query().Get("base") != "USD" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"USD","date":"2024-03-01","rates":{"EUR":0.9,"UZS":12600}}`))
	}))
	defer primary.Close()

	src := NewHTTPSource(primary.URL, "http://127.0.0.1:1", time.Second)
	table, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !table.Rate(core.EUR).Equal(dec("14000")) {
		t.Errorf("EUR = %s, want 14000", table.Rate(core.EUR))
	}
	if !table.Rate(core.USD).Equal(dec("12600")) {
		t.Errorf("USD = %s, want 12600", table.Rate(core.USD))
	}
	if table.AsOf().Format(time.DateOnly) != "2024-03-01" {
		t.Errorf("unexpected as-of %v", table.AsOf())
	}
}

func TestHTTPSourceFallsBackToSecondary(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v4/latest/USD" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"base":"USD","date":"2024-03-02","rates":{"USD":1,"RUB":100}}`))
	}))
	defer secondary.Close()

	src := NewHTTPSource(primary.URL, secondary.URL, time.Second)
	table, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !table.Rate(core.RUB).Equal(dec("125")) {
		t.Fatalf("RUB = %s, want 125", table.Rate(core.RUB))
	}
}

func TestHTTPSourceHistorical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2024-01-15" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"base":"USD","date":"2024-01-15","rates":{"GBP":0.8}}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.URL, time.Second)
	table, err := src.Historical(context.Background(), time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	if !table.Rate(core.GBP).Equal(dec("15625")) {
		t.Fatalf("GBP = %s, want 15625", table.Rate(core.GBP))
	}

	if _, err := src.Historical(context.Background(), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatalf("expected error for unknown date")
	}
}
