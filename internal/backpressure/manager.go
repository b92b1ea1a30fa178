package backpressure

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
)

// Decision is the caller-visible admission outcome for one call class.
// Rejected-with-wait ("wait N seconds") and rejected-outright ("try
// again later", queue full) are distinct outcomes.
type Decision struct {
	Allowed   bool
	WaitTime  *time.Duration // nil when the queue is full
	QueueFull bool
}

// Limits configures one Manager.
type Limits struct {
	Window       time.Duration
	OCRMaxCalls  int
	LLMMaxCalls  int
	DocAIMax     int
	MaxQueueSize int
}

// Manager owns one sliding-window limiter per downstream call class plus
// bounded pending queues. It is an explicit handle constructed once and
// passed into the pipeline; there is no process-wide instance.
type Manager struct {
	limiters map[constants.CallClass]*RateLimiter
	logger   *slog.Logger

	mu           sync.Mutex
	pending      map[constants.CallClass]int
	maxQueueSize int
}

// NewManager builds a manager with one limiter per call class.
func NewManager(lim Limits, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		limiters: map[constants.CallClass]*RateLimiter{
			constants.CallClassOCR:   NewRateLimiter(lim.OCRMaxCalls, lim.Window),
			constants.CallClassLLM:   NewRateLimiter(lim.LLMMaxCalls, lim.Window),
			constants.CallClassDocAI: NewRateLimiter(lim.DocAIMax, lim.Window),
		},
		logger:       logger,
		pending:      make(map[constants.CallClass]int),
		maxQueueSize: lim.MaxQueueSize,
	}
}

// Limiter exposes the limiter for a call class. Test hook for clock
// injection; returns nil for unknown classes.
func (m *Manager) Limiter(class constants.CallClass) *RateLimiter {
	return m.limiters[class]
}

// CanProcess checks admission for one call of the given class.
func (m *Manager) CanProcess(class constants.CallClass) Decision {
	limiter, ok := m.limiters[class]
	if !ok {
		return Decision{Allowed: true}
	}

	m.mu.Lock()
	depth := m.pending[class]
	m.mu.Unlock()
	if m.maxQueueSize > 0 && depth >= m.maxQueueSize {
		m.logger.Warn("backpressure.queue_full", "class", string(class), "depth", depth)
		return Decision{QueueFull: true}
	}

	if limiter.Acquire() {
		return Decision{Allowed: true}
	}
	wait := limiter.WaitTime()
	m.logger.Warn("backpressure.rate_limited", "class", string(class), "wait_ms", wait.Milliseconds())
	return Decision{WaitTime: &wait}
}

// Enqueue registers a pending unit of work for the class.
func (m *Manager) Enqueue(class constants.CallClass) {
	m.mu.Lock()
	m.pending[class]++
	m.mu.Unlock()
}

// Dequeue releases a pending unit of work for the class.
func (m *Manager) Dequeue(class constants.CallClass) {
	m.mu.Lock()
	if m.pending[class] > 0 {
		m.pending[class]--
	}
	m.mu.Unlock()
}
