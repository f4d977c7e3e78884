package r8econf

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/byte4ever/r8econf/engine"
)

type (
	// RegistryOption configures a [Registry].
	RegistryOption func(*registrySetup)

	registrySetup struct {
		resolver   *TypeResolver
		clock      engine.Clock
		hooks      *engine.Hooks
		logger     *zap.Logger
		registerer prometheus.Registerer
	}

	// Registry resolves policies by name from a configuration source and
	// caches the compiled result for the lifetime of the registry. Entries
	// are never evicted or refreshed.
	//
	// Reads of cached entries are lock-free (copy-on-write map behind an
	// atomic pointer). Inserts are serialised by a mutex and double-checked,
	// so at most one compiled instance per name is ever stored; concurrent
	// first resolutions of a name share one compilation.
	Registry struct {
		source   Source
		compiler *Compiler
		logger   *zap.Logger
		metrics  *registryMetrics
		policies atomic.Pointer[map[string]*engine.Policy]
		group    singleflight.Group
		mu       sync.Mutex
	}
)

// WithResolver sets the type resolver used to compile definitions.
func WithResolver(r *TypeResolver) RegistryOption {
	return func(s *registrySetup) {
		s.resolver = r
	}
}

// WithClock sets the clock used by compiled circuit breakers and samplers.
func WithClock(c engine.Clock) RegistryOption {
	return func(s *registrySetup) {
		s.clock = c
	}
}

// WithHooks sets the lifecycle hooks shared by every compiled policy.
func WithHooks(h *engine.Hooks) RegistryOption {
	return func(s *registrySetup) {
		s.hooks = h
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(s *registrySetup) {
		s.logger = l
	}
}

// WithRegisterer registers the registry's Prometheus collectors with reg.
func WithRegisterer(reg prometheus.Registerer) RegistryOption {
	return func(s *registrySetup) {
		s.registerer = reg
	}
}

// NewRegistry creates an empty registry reading definitions from source.
// source may be nil; resolving a name that is not cached then fails with
// ErrConfigurationRequired.
func NewRegistry(source Source, opts ...RegistryOption) *Registry {
	var setup registrySetup
	for _, o := range opts {
		o(&setup)
	}

	if setup.logger == nil {
		setup.logger = zap.NewNop()
	}

	compilerOpts := []CompilerOption{WithCompilerHooks(setup.hooks)}
	if setup.clock != nil {
		compilerOpts = append(compilerOpts, WithCompilerClock(setup.clock))
	}

	r := &Registry{
		source:   source,
		compiler: NewCompiler(setup.resolver, compilerOpts...),
		logger:   setup.logger,
	}

	empty := map[string]*engine.Policy{}
	r.policies.Store(&empty)

	r.metrics = newRegistryMetrics(r)
	if setup.registerer != nil {
		r.metrics.mustRegister(setup.registerer)
	}

	return r
}

// Compiler returns the registry's compiler.
func (r *Registry) Compiler() *Compiler { return r.compiler }

func cacheKey(name string) string { return strings.ToLower(name) }

func (r *Registry) lookup(name string) (*engine.Policy, bool) {
	p, ok := (*r.policies.Load())[cacheKey(name)]

	return p, ok
}

// Resolve returns the policy named name, compiling and caching it on first
// use. Names match definitions case-insensitively.
//
// It fails with ErrNameRequired for an empty name, ErrConfigurationRequired
// when the policy is not cached and the registry has no source,
// ErrPolicyNotFound when no definition matches, and with the compilation
// error otherwise. Failed compilations are not cached.
func (r *Registry) Resolve(name string) (*engine.Policy, error) {
	if name == "" {
		return nil, ErrNameRequired
	}

	if p, ok := r.lookup(name); ok {
		r.logger.Debug("policy cache hit", zap.String("policy", name))
		return p, nil
	}

	if r.source == nil {
		return nil, ErrConfigurationRequired
	}

	v, err, _ := r.group.Do(cacheKey(name), func() (any, error) {
		if p, ok := r.lookup(name); ok {
			return p, nil
		}

		def, found := FindDefinition(r.source, name)
		if !found {
			return nil, fmt.Errorf("r8econf: %q: %w", name, ErrPolicyNotFound)
		}

		return r.compileAndStore(def)
	})
	if err != nil {
		return nil, err
	}

	return v.(*engine.Policy), nil //nolint:forcetypeassert // only policies are stored
}

// ResolveAll compiles every definition not cached yet and returns all cached
// policies, previously cached ones included, sorted by name. Definitions
// that fail to compile are skipped; their errors are joined into the
// returned error.
func (r *Registry) ResolveAll() ([]*engine.Policy, error) {
	if r.source == nil {
		return nil, ErrConfigurationRequired
	}

	var errs []error

	for _, def := range Definitions(r.source) {
		if _, ok := r.lookup(def.Name); ok {
			continue
		}

		_, err, _ := r.group.Do(cacheKey(def.Name), func() (any, error) {
			if p, ok := r.lookup(def.Name); ok {
				return p, nil
			}

			return r.compileAndStore(def)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	return r.Policies(), errors.Join(errs...)
}

// Policies returns every cached policy sorted by name.
func (r *Registry) Policies() []*engine.Policy {
	m := *r.policies.Load()

	out := make([]*engine.Policy, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}

	slices.SortFunc(out, func(a, b *engine.Policy) int {
		return strings.Compare(a.Key(), b.Key())
	})

	return out
}

// Len returns the number of cached policies.
func (r *Registry) Len() int {
	return len(*r.policies.Load())
}

func (r *Registry) compileAndStore(def PolicyDefinition) (*engine.Policy, error) {
	p, err := r.compiler.Compile(def)
	if err != nil {
		r.metrics.compileFailed()
		r.logger.Warn("policy compilation failed",
			zap.String("policy", def.Name),
			zap.Error(err),
		)

		return nil, err
	}

	r.metrics.compiled()

	return r.store(def.Name, p), nil
}

// store inserts p under name unless another goroutine got there first, and
// returns the instance that ends up cached.
func (r *Registry) store(name string, p *engine.Policy) *engine.Policy {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.policies.Load()

	key := cacheKey(name)
	if existing, ok := old[key]; ok {
		return existing
	}

	// Copy-on-write so that lock-free readers never see a map being written.
	updated := make(map[string]*engine.Policy, len(old)+1)
	for k, v := range old {
		updated[k] = v
	}

	updated[key] = p
	r.policies.Store(&updated)

	r.logger.Info("policy compiled",
		zap.String("policy", name),
		zap.Strings("layers", p.Kinds()),
		zap.Bool("metrics", p.MetricsEnabled()),
	)

	return p
}
