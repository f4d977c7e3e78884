package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSamplerSnapshotAggregates(t *testing.T) {
	clk := newStubClock()
	s := NewSampler(time.Minute, 6, 100, clk, nil)

	for i := 1; i <= 20; i++ {
		s.Record(time.Duration(i)*time.Millisecond, nil)
	}

	s.Record(100*time.Millisecond, errDown)

	snap := s.Snapshot()

	if snap.Count != 21 || snap.Failures != 1 {
		t.Fatalf("Count=%d Failures=%d, want 21 and 1", snap.Count, snap.Failures)
	}
	if snap.Max != 100*time.Millisecond {
		t.Fatalf("Max = %v, want 100ms", snap.Max)
	}
	// (1+...+20)ms + 100ms = 310ms over 21 samples.
	if want := 310 * time.Millisecond / 21; snap.Mean != want {
		t.Fatalf("Mean = %v, want %v", snap.Mean, want)
	}
	if snap.P95 != 20*time.Millisecond {
		t.Fatalf("P95 = %v, want 20ms", snap.P95)
	}
}

func TestSamplerForgetsExpiredBuckets(t *testing.T) {
	clk := newStubClock()
	s := NewSampler(10*time.Second, 2, 0, clk, nil)

	s.Record(time.Millisecond, nil)
	clk.advance(6 * time.Second)
	s.Record(time.Millisecond, nil)
	clk.advance(6 * time.Second)

	if got := s.Snapshot().Count; got != 1 {
		t.Fatalf("Count = %d, want 1 (first bucket expired)", got)
	}

	clk.advance(10 * time.Second)

	if got := s.Snapshot(); got != (SamplerSnapshot{}) {
		t.Fatalf("Snapshot() = %+v, want empty", got)
	}
}

func TestSamplerCapacityBoundsRawSamples(t *testing.T) {
	s := NewSampler(time.Minute, 1, 2, newStubClock(), nil)

	s.Record(time.Millisecond, nil)
	s.Record(2*time.Millisecond, nil)
	s.Record(50*time.Millisecond, nil)

	snap := s.Snapshot()

	// Counters are exact, percentiles only see retained samples.
	if snap.Count != 3 || snap.Max != 50*time.Millisecond {
		t.Fatalf("Count=%d Max=%v, want 3 and 50ms", snap.Count, snap.Max)
	}
	if snap.P95 != 2*time.Millisecond {
		t.Fatalf("P95 = %v, want 2ms", snap.P95)
	}
}

func TestSamplerMiddlewareTimesCalls(t *testing.T) {
	clk := newStubClock()

	var sampled time.Duration

	s := NewSampler(DefaultMetricsWindow, DefaultMetricsBuckets, 0, clk,
		&Hooks{OnSample: func(d time.Duration, _ error) { sampled = d }})

	fn := s.Middleware()(func(context.Context) (any, error) {
		clk.advance(25 * time.Millisecond)
		return nil, errors.New("slow and wrong")
	})

	_, _ = fn(context.Background())

	snap := s.Snapshot()

	if snap.Count != 1 || snap.Failures != 1 || snap.Mean != 25*time.Millisecond {
		t.Fatalf("Snapshot() = %+v, want one 25ms failure", snap)
	}
	if sampled != 25*time.Millisecond {
		t.Fatalf("OnSample got %v, want 25ms", sampled)
	}
}
