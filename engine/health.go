package engine

type (
	// HealthReporter is implemented by [Policy].
	HealthReporter interface {
		// Name returns the policy's name.
		Name() string
		// HealthStatus returns the current health state of the policy.
		HealthStatus() PolicyStatus
	}

	// Criticality represents how an unhealthy layer affects readiness.
	Criticality int

	// PolicyStatus represents the current health state of a policy.
	PolicyStatus struct {
		Name        string      `json:"name"`
		State       string      `json:"state"`
		Criticality Criticality `json:"criticality"`
		Healthy     bool        `json:"healthy"`
	}
)

const (
	// CriticalityNone means no layer has persistent health state.
	CriticalityNone Criticality = iota
	// CriticalityDegraded means the policy still serves but is impaired.
	CriticalityDegraded
	// CriticalityCritical means the policy cannot reliably serve requests.
	CriticalityCritical
)

// String returns the criticality level as a human-readable string.
func (c Criticality) String() string {
	switch c {
	case CriticalityDegraded:
		return "degraded"
	case CriticalityCritical:
		return "critical"
	default:
		return "none"
	}
}

// HealthStatus derives the policy's health from its stateful layers. An open
// breaker is critical; a saturated throttle is degraded.
func (p *Policy) HealthStatus() PolicyStatus {
	status := PolicyStatus{
		Name:    p.key,
		Healthy: true,
		State:   "healthy",
	}

	for _, l := range p.layers {
		if l.Breaker != nil {
			switch l.Breaker.State() {
			case StateOpen:
				status.Healthy = false
				status.Criticality = CriticalityCritical
				status.State = "circuit_open"
			case StateHalfOpen:
				if status.Healthy {
					status.State = "circuit_half_open"
				}
			}
		}

		if l.Throttle != nil && l.Throttle.Full() {
			if status.Criticality < CriticalityDegraded {
				status.Criticality = CriticalityDegraded
			}

			if status.Healthy && status.State == "healthy" {
				status.State = "throttle_full"
			}
		}
	}

	return status
}
