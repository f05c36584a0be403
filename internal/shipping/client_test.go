package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Whiteherobot/microservices-project/internal/domain"
	"github.com/Whiteherobot/microservices-project/internal/resilience"
)

func newTestClient(url string) *Client {
	cfg := resilience.Config{
		Timeout:             time.Second,
		MaxRetries:          0,
		RetryDelay:          time.Millisecond,
		BreakerMinRequests:  100,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(url, http.DefaultClient, cfg, logger)
}

func TestClient_Quote(t *testing.T) {
	t.Run("returns the quoted cost", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/shipping/calculate" {
				t.Errorf("expected /shipping/calculate, got %s", r.URL.Path)
			}
			var req struct {
				Weight   float64 `json:"weight"`
				Distance float64 `json:"distance"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.Weight != 5.0 || req.Distance != 100.0 {
				t.Errorf("unexpected request: %+v", req)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"cost": 27.5}`))
		}))
		defer server.Close()

		cost, err := newTestClient(server.URL).Quote(context.Background(), 5.0, 100.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cost != 27.5 {
			t.Errorf("expected cost 27.5, got %f", cost)
		}
	})

	t.Run("surfaces unavailable on 5xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Quote(context.Background(), 5.0, 100.0)
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("surfaces unavailable when unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := newTestClient(server.URL).Quote(context.Background(), 5.0, 100.0)
		if !errors.Is(err, domain.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}
