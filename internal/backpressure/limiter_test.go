package backpressure

import (
	"testing"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
)

func TestRateLimiter_Window(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	l := NewRateLimiter(2, 60*time.Second).WithClock(clock)

	if !l.Acquire() {
		t.Fatal("first acquire should succeed")
	}
	if !l.Acquire() {
		t.Fatal("second acquire should succeed")
	}
	if l.Acquire() {
		t.Fatal("third acquire within window should be rejected")
	}

	// After 61s the first two timestamps have left the window.
	now = now.Add(61 * time.Second)
	if !l.Acquire() {
		t.Fatal("acquire after window elapsed should succeed")
	}
}

func TestRateLimiter_ExactWindowAgeStillCounts(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	l := NewRateLimiter(2, 60*time.Second).WithClock(clock)

	l.Acquire()
	l.Acquire()

	// A call aged exactly one window has not left it yet.
	now = now.Add(60 * time.Second)
	if l.Acquire() {
		t.Fatal("acquire at exactly the window age should still be rejected")
	}
	now = now.Add(time.Nanosecond)
	if !l.Acquire() {
		t.Fatal("acquire just past the window age should succeed")
	}
}

func TestRateLimiter_WaitTime(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	l := NewRateLimiter(1, 60*time.Second).WithClock(clock)

	if got := l.WaitTime(); got != 0 {
		t.Fatalf("empty limiter wait time = %v, want 0", got)
	}
	l.Acquire()

	now = now.Add(20 * time.Second)
	if got := l.WaitTime(); got != 40*time.Second {
		t.Fatalf("wait time = %v, want 40s", got)
	}

	now = now.Add(45 * time.Second)
	if got := l.WaitTime(); got != 0 {
		t.Fatalf("wait time after expiry = %v, want 0", got)
	}
}

func TestManager_Decisions(t *testing.T) {
	m := NewManager(Limits{
		Window:       time.Minute,
		OCRMaxCalls:  20,
		LLMMaxCalls:  1,
		DocAIMax:     10,
		MaxQueueSize: 2,
	}, nil)

	d := m.CanProcess(constants.CallClassLLM)
	if !d.Allowed {
		t.Fatal("first LLM call should be admitted")
	}

	// Budget exhausted: rejected with a wait estimate, not queue-full.
	d = m.CanProcess(constants.CallClassLLM)
	if d.Allowed || d.QueueFull {
		t.Fatalf("expected rate-limited decision, got %+v", d)
	}
	if d.WaitTime == nil || *d.WaitTime <= 0 {
		t.Fatal("rate-limited decision must carry a wait time")
	}

	// Queue saturation: rejected outright, no wait time surfaced.
	m.Enqueue(constants.CallClassLLM)
	m.Enqueue(constants.CallClassLLM)
	d = m.CanProcess(constants.CallClassLLM)
	if !d.QueueFull {
		t.Fatalf("expected queue-full decision, got %+v", d)
	}
	if d.WaitTime != nil {
		t.Fatal("queue-full decision must not carry a wait time")
	}

	m.Dequeue(constants.CallClassLLM)
	d = m.CanProcess(constants.CallClassLLM)
	if d.QueueFull {
		t.Fatal("queue below bound should not report queue-full")
	}
}

func TestManager_IndependentBudgets(t *testing.T) {
	m := NewManager(Limits{
		Window:       time.Minute,
		OCRMaxCalls:  1,
		LLMMaxCalls:  1,
		DocAIMax:     1,
		MaxQueueSize: 10,
	}, nil)

	if !m.CanProcess(constants.CallClassOCR).Allowed {
		t.Fatal("OCR budget should admit")
	}
	if m.CanProcess(constants.CallClassOCR).Allowed {
		t.Fatal("OCR budget should be exhausted")
	}
	// LLM budget is untouched by OCR calls.
	if !m.CanProcess(constants.CallClassLLM).Allowed {
		t.Fatal("LLM budget should be independent of OCR")
	}
}
