package r8econf

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/r8econf/engine"
)

// ReadinessStatus aggregates the health of every cached policy.
type ReadinessStatus struct {
	Policies []engine.PolicyStatus `json:"policies"`
	Ready    bool                  `json:"ready"`
}

// CheckReadiness reports the health of every policy compiled so far, sorted
// by name. Ready is false if any policy is critical and unhealthy, which in
// practice means one of its circuit breakers is open.
func (r *Registry) CheckReadiness() ReadinessStatus {
	policies := r.Policies()

	status := ReadinessStatus{
		Ready:    true,
		Policies: make([]engine.PolicyStatus, 0, len(policies)),
	}

	for _, p := range policies {
		ps := p.HealthStatus()
		status.Policies = append(status.Policies, ps)

		if ps.Criticality == engine.CriticalityCritical && !ps.Healthy {
			status.Ready = false
		}
	}

	return status
}

// ReadinessHandler returns an [http.Handler] that reports the readiness of
// all policies cached by reg. It responds with 200 OK when all critical
// policies are healthy, and 503 Service Unavailable otherwise. The response
// body is always a JSON-encoded [ReadinessStatus].
func ReadinessHandler(reg *Registry) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		status := reg.CheckReadiness()

		writer.Header().Set("Content-Type", "application/json")

		if status.Ready {
			writer.WriteHeader(http.StatusOK)
		} else {
			writer.WriteHeader(http.StatusServiceUnavailable)
		}

		//nolint:errcheck // best-effort JSON encoding to HTTP response
		_ = json.NewEncoder(writer).Encode(status)
	})
}
