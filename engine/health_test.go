package engine

import (
	"context"
	"testing"
)

func TestHealthStatusHealthy(t *testing.T) {
	p := Compose(Layer{Kind: KindTimeout, MW: Chain()}).WithKey("p")

	st := p.HealthStatus()
	if !st.Healthy || st.State != "healthy" || st.Criticality != CriticalityNone || st.Name != "p" {
		t.Fatalf("HealthStatus() = %+v, want healthy p", st)
	}
}

func TestHealthStatusOpenBreakerIsCritical(t *testing.T) {
	cb := NewCircuitBreaker(newStubClock(), nil, ConsecutiveFailures(1, 0))
	cb.RecordFailure()

	p := Compose(Layer{Kind: KindCircuitBreaker, MW: cb.Middleware(PredicateSet{}), Breaker: cb})

	st := p.HealthStatus()
	if st.Healthy || st.State != "circuit_open" || st.Criticality != CriticalityCritical {
		t.Fatalf("HealthStatus() = %+v, want critical circuit_open", st)
	}
}

func TestHealthStatusFullThrottleIsDegraded(t *testing.T) {
	th := NewThrottle(1, 0, nil)
	p := Compose(Layer{Kind: KindThrottle, MW: th.Middleware(), Throttle: th})

	_ = th.Acquire(context.Background())
	defer th.Release()

	st := p.HealthStatus()
	if !st.Healthy || st.State != "throttle_full" || st.Criticality != CriticalityDegraded {
		t.Fatalf("HealthStatus() = %+v, want degraded throttle_full", st)
	}
}

func TestCriticalityString(t *testing.T) {
	tests := map[Criticality]string{
		CriticalityNone:     "none",
		CriticalityDegraded: "degraded",
		CriticalityCritical: "critical",
	}

	for c, want := range tests {
		if got := c.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", c, got, want)
		}
	}
}
