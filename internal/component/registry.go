// Package component implements the lifecycle core of the daemon: named
// components with a start/stop/pause/resume/shutdown state machine, a
// periodic update timer per component, and a registry that drives
// transitions across the dependency graph.
package component

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aresch/deluge/internal/logging"
)

// Registry holds the currently registered components and manages them by
// starting, stopping, pausing, resuming and shutting them down.
//
// Start cascades walk a component's declared dependencies first; stop
// cascades walk the reverse edges, stopping dependents first. Cascade
// walks carry a visited set, so cyclic declarations terminate instead of
// recursing forever.
type Registry struct {
	logger  *logging.Logger
	metrics *Metrics

	mu         sync.Mutex
	components map[string]*Component
	order      []string
	dependents map[string][]string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics attaches Prometheus metrics to the registry.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty component registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:     logging.New("component.registry"),
		components: make(map[string]*Component),
		dependents: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a component to the registry. This is done automatically
// when a component is created with New. Returns ErrAlreadyRegistered if a
// component with the same name is present.
func (r *Registry) Register(c *Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[c.name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, c.name)
	}

	r.components[c.name] = c
	r.order = append(r.order, c.name)
	for _, dep := range c.depend {
		if !contains(r.dependents[dep], c.name) {
			r.dependents[dep] = append(r.dependents[dep], c.name)
		}
	}

	if r.metrics != nil {
		r.metrics.Registered.Inc()
	}
	r.logger.Debug("registered component %s with %d dependencies", c.name, len(c.depend))
	return nil
}

// Deregister removes a component from the registry. A stop cascade is
// issued first unless the component has already reached Shutdown. Returns
// ErrNotRegistered if the component is not present.
func (r *Registry) Deregister(ctx context.Context, c *Component) error {
	r.mu.Lock()
	registered := r.components[c.name] == c
	r.mu.Unlock()

	if !registered {
		return fmt.Errorf("%w: %s", ErrNotRegistered, c.name)
	}

	r.logger.Debug("deregistering component %s", c.name)
	if c.State() != Shutdown {
		if err := r.Stop(ctx, c.name); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.components, c.name)
	for i, name := range r.order {
		if name == c.name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.metrics != nil {
		r.metrics.Registered.Dec()
	}
	return nil
}

// Get returns the component registered under name.
func (r *Registry) Get(name string) (*Component, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[name]
	return c, ok
}

// Start starts the named components and, before each, its declared
// dependencies, depth-first in declaration order. With no names, every
// registered component is started in registration order. Starting an
// already started component is a no-op.
func (r *Registry) Start(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = r.allNames()
	}

	visited := make(map[string]bool)
	for _, name := range names {
		if err := r.startWithDeps(ctx, name, visited, true); err != nil {
			return err
		}
	}
	return nil
}

// startWithDeps starts name's dependency subtree, then name itself.
// Unknown top-level names are an error; unknown names inside a depend
// list are skipped until they get registered.
func (r *Registry) startWithDeps(ctx context.Context, name string, visited map[string]bool, required bool) error {
	if visited[name] {
		return nil
	}
	visited[name] = true

	c, ok := r.Get(name)
	if !ok {
		if required {
			return fmt.Errorf("%w: %s", ErrNotRegistered, name)
		}
		return nil
	}

	for _, dep := range c.depend {
		if err := r.startWithDeps(ctx, dep, visited, false); err != nil {
			return err
		}
	}

	err := c.start(ctx)
	r.metrics.observe(name, "start", err)
	if err != nil {
		return err
	}
	r.logger.Debug("started component %s", name)
	return nil
}

// Stop stops the named components, first stopping everything that depends
// on them. With no names, every registered component is stopped. Names
// that are not registered are silently skipped, which tolerates
// components deregistering while a cascade is in flight.
func (r *Registry) Stop(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = r.allNames()
	}

	visited := make(map[string]bool)
	for _, name := range names {
		if err := r.stopWithDependents(ctx, name, visited); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) stopWithDependents(ctx context.Context, name string, visited map[string]bool) error {
	if visited[name] {
		return nil
	}
	visited[name] = true

	c, ok := r.Get(name)
	if !ok {
		return nil
	}

	for _, dependent := range r.dependentsOf(name) {
		if err := r.stopWithDependents(ctx, dependent, visited); err != nil {
			return err
		}
	}

	err := c.stop(ctx)
	r.metrics.observe(name, "stop", err)
	if err != nil {
		return err
	}
	r.logger.Debug("stopped component %s", name)
	return nil
}

// Pause pauses the named components, or all of them with no names. Pause
// does not cascade over dependencies.
func (r *Registry) Pause(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = r.allNames()
	}

	for _, name := range names {
		c, ok := r.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotRegistered, name)
		}
		err := c.pause(ctx)
		r.metrics.observe(name, "pause", err)
		if err != nil {
			return err
		}
	}
	return nil
}

// Resume resumes the named components, or all of them with no names.
// Resume does not cascade over dependencies.
func (r *Registry) Resume(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = r.allNames()
	}

	for _, name := range names {
		c, ok := r.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotRegistered, name)
		}
		err := c.resume(ctx)
		r.metrics.observe(name, "resume", err)
		if err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops every component that has not reached Shutdown yet, then
// concurrently drives each one to its terminal Shutdown state and waits for
// all of them. Calling it again after it succeeded is a no-op. This should
// be called when the process is exiting so every component gets a chance
// to clean up.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down all components")
	var live []string
	for _, name := range r.allNames() {
		if c, ok := r.Get(name); ok && c.State() != Shutdown {
			live = append(live, name)
		}
	}
	if len(live) > 0 {
		if err := r.Stop(ctx, live...); err != nil {
			return err
		}
	}

	var g errgroup.Group
	for _, name := range r.allNames() {
		c, ok := r.Get(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			err := c.shutdown(ctx)
			r.metrics.observe(c.name, "shutdown", err)
			return err
		})
	}
	return g.Wait()
}

func (r *Registry) allNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) dependentsOf(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dependents[name]...)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// defaultRegistry backs the package-level functions for call sites that
// want the process-wide registry. Tests build their own with NewRegistry.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register adds a component to the default registry.
func Register(c *Component) error {
	return defaultRegistry.Register(c)
}

// Deregister removes a component from the default registry.
func Deregister(ctx context.Context, c *Component) error {
	return defaultRegistry.Deregister(ctx, c)
}

// Start starts components in the default registry.
func Start(ctx context.Context, names ...string) error {
	return defaultRegistry.Start(ctx, names...)
}

// Stop stops components in the default registry.
func Stop(ctx context.Context, names ...string) error {
	return defaultRegistry.Stop(ctx, names...)
}

// Pause pauses components in the default registry.
func Pause(ctx context.Context, names ...string) error {
	return defaultRegistry.Pause(ctx, names...)
}

// Resume resumes components in the default registry.
func Resume(ctx context.Context, names ...string) error {
	return defaultRegistry.Resume(ctx, names...)
}

// ShutdownAll shuts down every component in the default registry. It is not
// named Shutdown because that name is the terminal State.
func ShutdownAll(ctx context.Context) error {
	return defaultRegistry.Shutdown(ctx)
}

// Get returns a component from the default registry.
func Get(name string) (*Component, bool) {
	return defaultRegistry.Get(name)
}
