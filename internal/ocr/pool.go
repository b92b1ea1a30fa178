package ocr

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// PagePool fans page extraction out over a bounded set of workers and
// retries transient engine failures with exponential backoff. Block
// order is stable: results are reassembled in page order regardless of
// completion order.
type PagePool struct {
	source     BlockSource
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewPagePool builds a pool. workers is clamped to at least 1.
func NewPagePool(source BlockSource, workers, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *PagePool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PagePool{
		source:     source,
		workers:    workers,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

type pageResult struct {
	page   int
	blocks []entity.OCRBlock
	err    error
}

// ExtractAll runs the source over pages [0, pageCount) and returns all
// blocks in page order. The first page error cancels the remaining
// work.
func (p *PagePool) ExtractAll(ctx context.Context, path string, pageCount int) ([]entity.OCRBlock, error) {
	if pageCount <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pages := make(chan int)
	results := make(chan pageResult, pageCount)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				blocks, err := p.extractPage(ctx, path, page)
				select {
				case results <- pageResult{page: page, blocks: blocks, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(pages)
		for page := 0; page < pageCount; page++ {
			select {
			case pages <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]pageResult, 0, pageCount)
	for res := range results {
		if res.err != nil {
			cancel()
			return nil, common.WrapError(res.err, "extracting page")
		}
		collected = append(collected, res)
		if len(collected) == pageCount {
			break
		}
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].page < collected[j].page })
	var all []entity.OCRBlock
	for _, res := range collected {
		all = append(all, res.blocks...)
	}
	return all, nil
}

func (p *PagePool) extractPage(ctx context.Context, path string, page int) ([]entity.OCRBlock, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.retryDelay), uint64(p.maxRetries)),
		ctx,
	)

	var blocks []entity.OCRBlock
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		blocks, err = p.source.Extract(ctx, path, page)
		if err != nil {
			p.logger.Warn("ocr.page_retry", "page", page, "attempt", attempt, "error", err)
		}
		return err
	}, policy)
	return blocks, err
}
