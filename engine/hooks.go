package engine

import "time"

// Hooks holds optional callbacks for layer lifecycle events. All fields are
// nil by default. A Hooks value must not be mutated once a policy has been
// built with it: emit methods read the fields without synchronisation.
//
// Pattern: Observer. Layers emit events without knowing who listens
// (logging or metrics).
type Hooks struct {
	OnRetry           func(attempt int, err error)
	OnCircuitOpen     func()
	OnCircuitClose    func()
	OnCircuitHalfOpen func()
	OnThrottled       func()
	OnTimeout         func()
	OnCacheHit        func(key string)
	OnCacheMiss       func(key string)
	OnFallbackUsed    func(err error)
	OnSample          func(d time.Duration, err error)
}

func (h *Hooks) emitRetry(attempt int, err error) {
	if h != nil && h.OnRetry != nil {
		h.OnRetry(attempt, err)
	}
}

func (h *Hooks) emitCircuitOpen() {
	if h != nil && h.OnCircuitOpen != nil {
		h.OnCircuitOpen()
	}
}

func (h *Hooks) emitCircuitClose() {
	if h != nil && h.OnCircuitClose != nil {
		h.OnCircuitClose()
	}
}

func (h *Hooks) emitCircuitHalfOpen() {
	if h != nil && h.OnCircuitHalfOpen != nil {
		h.OnCircuitHalfOpen()
	}
}

func (h *Hooks) emitThrottled() {
	if h != nil && h.OnThrottled != nil {
		h.OnThrottled()
	}
}

func (h *Hooks) emitTimeout() {
	if h != nil && h.OnTimeout != nil {
		h.OnTimeout()
	}
}

func (h *Hooks) emitCacheHit(key string) {
	if h != nil && h.OnCacheHit != nil {
		h.OnCacheHit(key)
	}
}

func (h *Hooks) emitCacheMiss(key string) {
	if h != nil && h.OnCacheMiss != nil {
		h.OnCacheMiss(key)
	}
}

func (h *Hooks) emitFallbackUsed(err error) {
	if h != nil && h.OnFallbackUsed != nil {
		h.OnFallbackUsed(err)
	}
}

func (h *Hooks) emitSample(d time.Duration, err error) {
	if h != nil && h.OnSample != nil {
		h.OnSample(d, err)
	}
}
