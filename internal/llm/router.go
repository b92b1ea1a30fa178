package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Router wraps a FieldExtractor with the call policy: per-call timeout,
// bounded retries with exponential backoff, and structured logging.
// Failures stay soft; the caller keeps its heuristic values.
type Router struct {
	inner      FieldExtractor
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewRouter builds a router. timeout defaults to 8s, retryDelay to
// 500ms when unset.
func NewRouter(inner FieldExtractor, timeout time.Duration, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Router {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		inner:      inner,
		timeout:    timeout,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// ExtractFields issues the batched call with retries. Each attempt gets
// a fresh timeout so a retry is not charged for its predecessor's wait.
func (r *Router) ExtractFields(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.retryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.maxRetries)), ctx)

	var (
		fields  InvoiceFields
		raw     []byte
		attempt int
	)
	start := time.Now()
	err := backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		var err error
		fields, raw, err = r.inner.ExtractFields(callCtx, req)
		if err != nil {
			r.logger.Warn("llm.router.retry",
				"job_id", req.JobID, "attempt", attempt, "error", err)
		}
		return err
	}, policy)

	if err != nil {
		r.logger.Error("llm.router.exhausted",
			"job_id", req.JobID,
			"attempts", attempt,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err)
		return InvoiceFields{}, raw, err
	}
	return fields, raw, nil
}
