package engine

import "time"

type (
	// windowBucket aggregates the outcomes observed during one bucket span.
	windowBucket struct {
		start     time.Time
		samples   []time.Duration
		total     time.Duration
		max       time.Duration
		successes int64
		failures  int64
	}

	// rollingWindow is a ring of buckets covering the most recent window.
	// It is not safe for concurrent use; owners serialise access.
	rollingWindow struct {
		buckets  []windowBucket
		span     time.Duration
		window   time.Duration
		capacity int
		head     int
	}
)

func newRollingWindow(window time.Duration, buckets, capacity int) *rollingWindow {
	if buckets < 1 {
		buckets = 1
	}

	span := window / time.Duration(buckets)
	if span <= 0 {
		span = window
	}

	return &rollingWindow{
		buckets:  make([]windowBucket, buckets),
		span:     span,
		window:   window,
		capacity: capacity,
	}
}

// current returns the bucket covering now, rotating the ring when the head
// bucket's span has elapsed.
func (w *rollingWindow) current(now time.Time) *windowBucket {
	b := &w.buckets[w.head]
	if b.start.IsZero() {
		b.start = now
		return b
	}

	if now.Sub(b.start) < w.span {
		return b
	}

	w.head = (w.head + 1) % len(w.buckets)
	b = &w.buckets[w.head]
	*b = windowBucket{start: now, samples: b.samples[:0]}

	return b
}

func (w *rollingWindow) add(now time.Time, d time.Duration, failed bool) {
	b := w.current(now)

	if failed {
		b.failures++
	} else {
		b.successes++
	}

	b.total += d
	if d > b.max {
		b.max = d
	}

	if w.capacity > 0 && len(b.samples) < w.capacity {
		b.samples = append(b.samples, d)
	}
}

// live calls fn for every bucket still inside the window at now.
func (w *rollingWindow) live(now time.Time, fn func(*windowBucket)) {
	for i := range w.buckets {
		b := &w.buckets[i]
		if b.start.IsZero() || now.Sub(b.start) >= w.window {
			continue
		}

		fn(b)
	}
}

func (w *rollingWindow) counts(now time.Time) (successes, failures int64) {
	w.live(now, func(b *windowBucket) {
		successes += b.successes
		failures += b.failures
	})

	return successes, failures
}

func (w *rollingWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = windowBucket{}
	}

	w.head = 0
}
