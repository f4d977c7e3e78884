package r8econf

import (
	"strconv"
	"strings"
)

// Attribute names understood by the compiler.
const (
	AttrType                            = "type"
	AttrOrder                           = "order"
	AttrExceptionType                   = "exceptionType"
	AttrTimeoutInMilliseconds           = "timeoutInMilliseconds"
	AttrTimeoutInSeconds                = "timeoutInSeconds"
	AttrMaxParallelization              = "maxParallelization"
	AttrMaxQueuedActions                = "maxQueuedActions"
	AttrCacheProvider                   = "cacheProvider"
	AttrValue                           = "value"
	AttrValueType                       = "valueType"
	AttrValueProviderType               = "valueProviderType"
	AttrRetryCount                      = "retryCount"
	AttrFailureThreshold                = "failureThreshold"
	AttrSamplingDurationInSeconds       = "samplingDurationInSeconds"
	AttrSamplingDurationInMilliseconds  = "samplingDurationInMilliseconds"
	AttrMinimumThroughput               = "minimumThroughput"
	AttrExceptionsAllowedBeforeBreaking = "exceptionsAllowedBeforeBreaking"
	AttrDurationOfBreakInSeconds        = "durationOfBreakInSeconds"
	AttrDurationOfBreakInMilliseconds   = "durationOfBreakInMilliseconds"
	AttrExceptionCountLifetime          = "exceptionCountLifetime"
	AttrTimeInMilliseconds              = "timeInMilliseconds"
	AttrNumberOfBuckets                 = "numberOfBuckets"
	AttrBucketDataLength                = "bucketDataLength"
	AttrPolicyType                      = "policyType"
)

// recognized lists every attribute consumed by some step kind. Anything else
// is passed through to value providers and custom policies.
//
//nolint:gochecknoglobals // read-only lookup table
var recognized = map[string]struct{}{
	AttrType: {}, AttrOrder: {}, AttrExceptionType: {},
	AttrTimeoutInMilliseconds: {}, AttrTimeoutInSeconds: {},
	AttrMaxParallelization: {}, AttrMaxQueuedActions: {},
	AttrCacheProvider: {}, AttrValue: {}, AttrValueType: {},
	AttrValueProviderType: {}, AttrRetryCount: {},
	AttrFailureThreshold: {}, AttrSamplingDurationInSeconds: {},
	AttrSamplingDurationInMilliseconds: {}, AttrMinimumThroughput: {},
	AttrExceptionsAllowedBeforeBreaking: {}, AttrDurationOfBreakInSeconds: {},
	AttrDurationOfBreakInMilliseconds: {}, AttrExceptionCountLifetime: {},
	AttrTimeInMilliseconds: {}, AttrNumberOfBuckets: {},
	AttrBucketDataLength: {}, AttrPolicyType: {},
}

type (
	// StepDefinition is one raw step section: its key in the policy section
	// and its scalar attributes.
	StepDefinition struct {
		Attributes Attributes
		Key        string
	}

	// PolicyDefinition is a named, ordered list of steps.
	PolicyDefinition struct {
		Name  string
		Steps []StepDefinition
	}

	// StepKind classifies a step. Kinds split into a primary phase, folded
	// first, and a secondary phase.
	StepKind uint8
)

// Step kinds.
const (
	KindUnknown StepKind = iota
	KindHandle
	KindTimeout
	KindThrottle
	KindCaching
	KindMetrics
	KindThenHandle
	KindFallback
	KindRetry
	KindCircuitBreaker
	KindLatency
	KindCustom
)

//nolint:gochecknoglobals // read-only lookup table
var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindHandle:         "handle",
	KindTimeout:        "timeout",
	KindThrottle:       "throttle",
	KindCaching:        "caching",
	KindMetrics:        "metrics",
	KindThenHandle:     "thenhandle",
	KindFallback:       "fallback",
	KindRetry:          "retry",
	KindCircuitBreaker: "circuitbreaker",
	KindLatency:        "latency",
	KindCustom:         "custom",
}

// String returns the type tag of k.
func (k StepKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return kindNames[KindUnknown]
}

// Primary reports whether k belongs to the primary phase.
func (k StepKind) Primary() bool {
	return k >= KindHandle && k <= KindMetrics
}

// ParseStepKind maps a type tag to its kind. Matching is case-insensitive.
func ParseStepKind(tag string) (StepKind, bool) {
	tag = strings.ToLower(tag)

	for k := KindHandle; k <= KindCustom; k++ {
		if kindNames[k] == tag {
			return k, true
		}
	}

	return KindUnknown, false
}

// NewStep builds a StepDefinition from alternating attribute key/value pairs.
func NewStep(key string, pairs ...string) StepDefinition {
	return StepDefinition{Key: key, Attributes: NewAttributes(pairs...)}
}

// Type returns the step's type tag: the explicit type attribute when set,
// the section key otherwise, lower-cased.
func (d StepDefinition) Type() string {
	if t := d.Attributes.Get(AttrType); t != "" {
		return strings.ToLower(t)
	}

	return strings.ToLower(d.Key)
}

// Order returns the step's ordering hint; absent or unparsable hints are 0.
func (d StepDefinition) Order() int {
	n, err := strconv.Atoi(strings.TrimSpace(d.Attributes.Get(AttrOrder)))
	if err != nil {
		return 0
	}

	return n
}

// Extra returns the attributes no step kind recognizes, in declaration
// order.
func (d StepDefinition) Extra() Attributes {
	var out Attributes

	for k, v := range d.Attributes.All() {
		if _, ok := recognized[k]; !ok {
			out.Set(k, v)
		}
	}

	return out
}
