package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/internal/backpressure"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/confidence"
	"github.com/Sundramrai3691/ReXcan/internal/dedup"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
	"github.com/Sundramrai3691/ReXcan/internal/pipeline"
	"github.com/Sundramrai3691/ReXcan/internal/reconcile"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
)

type countingRecords struct {
	mu    sync.Mutex
	saved []uuid.UUID
}

func (c *countingRecords) Save(_ context.Context, x *entity.InvoiceExtract) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, x.JobID)
	return nil
}

func (c *countingRecords) Get(context.Context, uuid.UUID) (*entity.InvoiceExtract, error) {
	return nil, common.ErrNotFound
}

func (c *countingRecords) ExistingHashes(context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (c *countingRecords) ExistingIdentities(context.Context) ([]dedup.Identity, error) {
	return nil, nil
}

func (c *countingRecords) ListExportable(context.Context) ([]*entity.InvoiceExtract, error) {
	return nil, nil
}

func (c *countingRecords) Metrics(context.Context, float64, float64) (repository.MetricsSummary, error) {
	return repository.MetricsSummary{}, nil
}

func (c *countingRecords) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.saved)
}

func newQueueProcessor(records repository.RecordRepository) *pipeline.Processor {
	return pipeline.NewProcessor(pipeline.Deps{
		Generator:  heuristics.NewGenerator(heuristics.DefaultTotalConfig(), nil),
		Scorer:     confidence.NewScorer(0.85, 0.75, nil),
		Policy:     confidence.NewFallbackPolicy(0.5, 0.85, 10*time.Second),
		Reconciler: reconcile.New(reconcile.DefaultConfig(), nil),
		Deduper:    dedup.NewEngine(0.95, 5, nil),
		Records:    records,
		Limits: backpressure.NewManager(backpressure.Limits{
			Window: time.Minute, OCRMaxCalls: 100, LLMMaxCalls: 100, DocAIMax: 100, MaxQueueSize: 10,
		}, nil),
	}, pipeline.Config{MaxLLMCallsPerJob: 5, AmountTolerance: 0.01, FlagFloor: 0.5}, nil)
}

func sampleJob() Job {
	return Job{
		JobID: uuid.New(),
		Blocks: []entity.OCRBlock{
			{Text: "Invoice Number:", BBox: [4]float64{50, 160, 180, 175}, Confidence: 0.95},
			{Text: "INV-42", BBox: [4]float64{200, 160, 280, 175}, Confidence: 0.95},
			{Text: "Total:", BBox: [4]float64{50, 700, 100, 715}, Confidence: 0.95},
			{Text: "$12.00", BBox: [4]float64{180, 700, 250, 715}, Confidence: 0.95},
		},
		Filename: "sample.pdf",
	}
}

func waitFor(t *testing.T, deadline time.Duration, cond func() bool) {
	t.Helper()
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestQueueProcessesJobs(t *testing.T) {
	records := &countingRecords{}
	q := NewProcessorQueue(newQueueProcessor(records), nil, WithWorkers(2), WithQueueSize(8))
	defer q.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(context.Background(), sampleJob()); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	waitFor(t, 5*time.Second, func() bool { return records.count() == 5 })
}

func TestQueueShutdownDrains(t *testing.T) {
	records := &countingRecords{}
	q := NewProcessorQueue(newQueueProcessor(records), nil, WithWorkers(1), WithQueueSize(8))

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), sampleJob()); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Shutdown(context.Background())

	if got := records.count(); got != 3 {
		t.Fatalf("processed = %d, want 3 after drain", got)
	}
	if err := q.Enqueue(context.Background(), sampleJob()); !errors.Is(err, common.ErrQueueFull) {
		t.Fatalf("enqueue after shutdown = %v, want queue-full error", err)
	}
}

// blockingRecords parks every Save until released, pinning the worker
// so queue-full behavior is deterministic.
type blockingRecords struct {
	countingRecords
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRecords) Save(ctx context.Context, x *entity.InvoiceExtract) error {
	b.entered <- struct{}{}
	<-b.release
	return b.countingRecords.Save(ctx, x)
}

func TestQueueShedsLoadWhenFull(t *testing.T) {
	records := &blockingRecords{
		entered: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	q := NewProcessorQueue(newQueueProcessor(records), nil, WithWorkers(1), WithQueueSize(1))

	// First job occupies the worker; wait until it is pinned in Save.
	if err := q.Enqueue(context.Background(), sampleJob()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-records.entered

	// Second job fills the channel, third must shed.
	if err := q.Enqueue(context.Background(), sampleJob()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), sampleJob()); !errors.Is(err, common.ErrQueueFull) {
		t.Fatalf("third enqueue = %v, want queue-full error", err)
	}

	close(records.release)
	q.Shutdown(context.Background())
}
