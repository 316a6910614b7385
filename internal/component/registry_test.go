package component

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	c, err := New(reg, "x", nil)
	require.NoError(t, err)

	got, ok := reg.Get("x")
	require.True(t, ok)
	assert.Same(t, c, got)

	_, err = New(reg, "x", nil)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("nope")
	assert.False(t, ok)
}

func TestRegistryStartCascadesDependencies(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	_, h1 := newTestComponent(t, reg, "c1")
	_, h2 := newTestComponent(t, reg, "c2", WithDepend("c1"))
	_, h3 := newTestComponent(t, reg, "c3", WithDepend("c2"))

	require.NoError(t, reg.Start(ctx, "c2"))
	assert.Equal(t, int32(1), h1.startCount.Load())
	assert.Equal(t, int32(1), h2.startCount.Load())
	assert.Equal(t, int32(0), h3.startCount.Load())

	require.NoError(t, reg.Start(ctx, "c3"))
	assert.Equal(t, int32(1), h1.startCount.Load())
	assert.Equal(t, int32(1), h2.startCount.Load())
	assert.Equal(t, int32(1), h3.startCount.Load())
}

func TestRegistryStopCascadesDependents(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	_, h1 := newTestComponent(t, reg, "c1")
	_, h2 := newTestComponent(t, reg, "c2", WithDepend("c1"))
	_, h3 := newTestComponent(t, reg, "c3", WithDepend("c2"))

	require.NoError(t, reg.Start(ctx))
	require.NoError(t, reg.Stop(ctx, "c2"))

	assert.Equal(t, int32(0), h1.stopCount.Load())
	assert.Equal(t, int32(1), h2.stopCount.Load())
	assert.Equal(t, int32(1), h3.stopCount.Load())
}

func TestRegistryStartAllStartsEveryComponent(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	c1, _ := newTestComponent(t, reg, "c1")
	c2, _ := newTestComponent(t, reg, "c2")

	require.NoError(t, reg.Start(ctx))
	assert.Equal(t, Started, c1.State())
	assert.Equal(t, Started, c2.State())
}

func TestRegistryStartUnknownName(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Start(context.Background(), "ghost"), ErrNotRegistered)
}

func TestRegistryStartSkipsUnregisteredDependency(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	c, _ := newTestComponent(t, reg, "c", WithDepend("ghost"))

	require.NoError(t, reg.Start(ctx, "c"))
	assert.Equal(t, Started, c.State())
}

func TestRegistryStopUnknownNameIsSilent(t *testing.T) {
	reg := NewRegistry()
	assert.NoError(t, reg.Stop(context.Background(), "ghost"))
}

func TestRegistryCyclicDependTerminates(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	ca, _ := newTestComponent(t, reg, "a", WithDepend("b"))
	cb, _ := newTestComponent(t, reg, "b", WithDepend("a"))

	require.NoError(t, reg.Start(ctx, "a"))
	assert.Equal(t, Started, ca.State())
	assert.Equal(t, Started, cb.State())

	require.NoError(t, reg.Stop(ctx, "a"))
	assert.Equal(t, Stopped, ca.State())
	assert.Equal(t, Stopped, cb.State())
}

func TestRegistryDeregister(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	c, hooks := newTestComponent(t, reg, "c")

	require.NoError(t, reg.Start(ctx, "c"))
	require.NoError(t, reg.Deregister(ctx, c))
	assert.Equal(t, int32(1), hooks.stopCount.Load())

	_, ok := reg.Get("c")
	assert.False(t, ok)

	assert.ErrorIs(t, reg.Deregister(ctx, c), ErrNotRegistered)
}

func TestRegistryDeregisterStopsDependentsFirst(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	c1, _ := newTestComponent(t, reg, "c1")
	_, h2 := newTestComponent(t, reg, "c2", WithDepend("c1"))

	require.NoError(t, reg.Start(ctx))
	require.NoError(t, reg.Deregister(ctx, c1))
	assert.Equal(t, int32(1), h2.stopCount.Load())
}

func TestRegistryShutdownAll(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	c1, h1 := newTestComponent(t, reg, "c1")
	c2, h2 := newTestComponent(t, reg, "c2", WithDepend("c1"))

	require.NoError(t, reg.Start(ctx))
	require.NoError(t, reg.Shutdown(ctx))

	assert.Equal(t, Shutdown, c1.State())
	assert.Equal(t, Shutdown, c2.State())
	assert.Equal(t, int32(1), h1.shutdownCount.Load())
	assert.Equal(t, int32(1), h2.shutdownCount.Load())
}

func TestRegistryPauseResumeDoNotCascade(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	c1, _ := newTestComponent(t, reg, "c1")
	c2, _ := newTestComponent(t, reg, "c2", WithDepend("c1"))

	require.NoError(t, reg.Start(ctx))
	require.NoError(t, reg.Pause(ctx, "c1"))
	assert.Equal(t, Paused, c1.State())
	assert.Equal(t, Started, c2.State())

	require.NoError(t, reg.Resume(ctx, "c1"))
	assert.Equal(t, Started, c1.State())
}

func TestRegistryDependentsInvariant(t *testing.T) {
	reg := NewRegistry()
	newTestComponent(t, reg, "c1")
	newTestComponent(t, reg, "c2", WithDepend("c1"))
	newTestComponent(t, reg, "c3", WithDepend("c1", "c2"))

	assert.Equal(t, []string{"c2", "c3"}, reg.dependentsOf("c1"))
	assert.Equal(t, []string{"c3"}, reg.dependentsOf("c2"))
}

func TestRegistryCancelledCascadeReleasesLock(t *testing.T) {
	reg := NewRegistry()
	c, _ := newTestComponent(t, reg, "c")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, reg.Start(ctx, "c"), context.Canceled)

	// The lock must be free again for a fresh transition.
	require.NoError(t, reg.Start(context.Background(), "c"))
	assert.Equal(t, Started, c.State())
}

func TestRegistryMetrics(t *testing.T) {
	ctx := context.Background()
	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	defer metrics.Unregister()
	reg := NewRegistry(WithMetrics(metrics))

	newTestComponent(t, reg, "c1")
	newTestComponent(t, reg, "c2")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Registered))

	require.NoError(t, reg.Start(ctx))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.Transitions.WithLabelValues("c1", "start")))

	require.NoError(t, reg.Shutdown(ctx))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.Transitions.WithLabelValues("c1", "shutdown")))
}

func TestMetricsUnregisterAllowsRebuild(t *testing.T) {
	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	metrics.Unregister()

	// The registerer accepts a fresh set once the old one is gone;
	// NewMetrics would panic on duplicate registration otherwise.
	rebuilt := NewMetrics(promReg)
	rebuilt.Unregister()
}

func TestDefaultRegistryFunctions(t *testing.T) {
	ctx := context.Background()
	hooks := &testHooks{}
	c, err := New(Default(), "default-test", hooks, WithInterval(time.Hour))
	require.NoError(t, err)
	defer Deregister(ctx, c)

	require.NoError(t, Start(ctx, "default-test"))
	got, ok := Get("default-test")
	require.True(t, ok)
	assert.Equal(t, Started, got.State())
	require.NoError(t, Stop(ctx, "default-test"))
}
