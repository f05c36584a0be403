package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Whiteherobot/microservices-project/internal/domain"
)

func TestHandler_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("accepts a well-formed event", func(t *testing.T) {
		event := domain.StockRestoreFailedEvent{
			ProductID: 1,
			Quantity:  2,
			Reason:    "service unavailable: restore_stock",
			Timestamp: time.Now().UTC(),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("failed to marshal event: %v", err)
		}

		if err := NewHandler(logger).Handle(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("drops malformed payloads without error", func(t *testing.T) {
		if err := NewHandler(logger).Handle(context.Background(), []byte(`{not json`)); err != nil {
			t.Fatalf("malformed payload must not stop consumption: %v", err)
		}
	})
}
