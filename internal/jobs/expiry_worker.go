package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverstack/rating-engine/internal/core"
)

// ExpiryWorker sweeps overdue active quotes to expired. The sweep is
// housekeeping for reporting; issuance rejects expired quotes against the
// wall clock regardless of whether the sweep has run.
type ExpiryWorker struct {
	BaseWorker
	quotes core.QuoteRepo
	clock  func() time.Time
}

// NewExpiryWorker creates a new quote expiry worker.
func NewExpiryWorker(quotes core.QuoteRepo, interval time.Duration, log *slog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		BaseWorker: NewBaseWorker("quote-expiry", interval, log),
		quotes:     quotes,
		clock:      time.Now,
	}
}

// Start begins the worker polling loop.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.Poll(ctx, w.sweep)
}

// Name returns the worker name.
func (w *ExpiryWorker) Name() string {
	return w.name
}

func (w *ExpiryWorker) sweep(ctx context.Context) error {
	expired, err := w.quotes.ExpireQuotes(ctx, w.clock())
	if err != nil {
		return err
	}

	if expired > 0 {
		w.log.Info("expired overdue quotes", "count", expired)
	}
	return nil
}
