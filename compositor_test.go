package atmos

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider wraps the default geometry factory and counts calls.
type countingProvider struct {
	calls int
}

func (p *countingProvider) CreateGeometry(params SpeciesParams) *Geometry {
	p.calls++
	return NewSpeciesGeometry(params)
}

type failingGenerator struct{}

func (failingGenerator) Generate(count int, bounds Bounds, physics *PhysicsParams) ([]Particle, error) {
	return nil, errors.New("boom")
}

func snowConfig(count int) EffectConfig {
	return EffectConfig{
		Count:  count,
		Bounds: Bounds{Width: 20, Height: 10, Depth: 18},
		Params: DefaultSnowParams(),
	}
}

func TestEffectCompositor_MountBuildsEverything(t *testing.T) {
	c, err := NewEffectCompositor(snowConfig(50), NewNopLogger())
	require.NoError(t, err)
	defer c.Dispose()

	assert.Equal(t, SpeciesSnow, c.Species())
	assert.Len(t, c.Particles(), 50)
	assert.Equal(t, 50, c.Buffer().Count())
	require.NotNil(t, c.Geometry())
	assert.False(t, c.Geometry().Disposed())
}

func TestEffectCompositor_ConfigErrorsFailFast(t *testing.T) {
	_, err := NewEffectCompositor(EffectConfig{Count: 10}, NewNopLogger())
	assert.Error(t, err, "nil species params is a config error")

	_, err = NewEffectCompositor(snowConfig(0), NewNopLogger())
	assert.Error(t, err, "zero count is a config error")

	cfg := snowConfig(10)
	cfg.Params.Physics().Palette = nil
	_, err = NewEffectCompositor(cfg, NewNopLogger())
	assert.Error(t, err, "empty palette is a config error")
}

func TestEffectCompositor_GeneratorFailureDisposesGeometry(t *testing.T) {
	provider := &countingProvider{}
	_, err := NewEffectCompositor(snowConfig(10), NewNopLogger(),
		WithGeometryProvider(provider),
		WithFieldGenerator(failingGenerator{}))
	require.Error(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestEffectCompositor_ReconfigureRebuildsField(t *testing.T) {
	c, err := NewEffectCompositor(snowConfig(300), NewNopLogger())
	require.NoError(t, err)
	defer c.Dispose()

	geom := c.Geometry()
	oldBuffer := c.Buffer()

	require.NoError(t, c.Reconfigure(150, c.Bounds()))
	assert.Len(t, c.Particles(), 150)
	assert.Equal(t, 150, c.Buffer().Count())
	assert.NotSame(t, oldBuffer, c.Buffer(), "count change replaces the buffer wholesale")
	assert.Same(t, geom, c.Geometry(), "shared geometry survives a field rebuild")
	assert.False(t, geom.Disposed())
	assert.Equal(t, 150, c.Count())
}

func TestEffectCompositor_ReconfigureSameKeyIsNoOp(t *testing.T) {
	provider := &countingProvider{}
	c, err := NewEffectCompositor(snowConfig(40), NewNopLogger(), WithGeometryProvider(provider))
	require.NoError(t, err)
	defer c.Dispose()

	particles := c.Particles()
	buffer := c.Buffer()

	require.NoError(t, c.Reconfigure(40, c.Bounds()))
	assert.Same(t, buffer, c.Buffer())
	assert.Same(t, &particles[0], &c.Particles()[0], "unchanged key must not regenerate the field")
	assert.Equal(t, 1, provider.calls, "geometry is created once per mounted lifetime")
}

func TestEffectCompositor_StepFlushesOncePerFrame(t *testing.T) {
	c, err := NewEffectCompositor(snowConfig(25), NewNopLogger())
	require.NoError(t, err)
	defer c.Dispose()

	// Drain the mount-time dirty flags first.
	c.Buffer().TakeDirty()

	view := View{Bounds: c.Bounds()}
	c.Step(view, Clock{Dt: 0.016})

	transforms, colors := c.Buffer().TakeDirty()
	assert.True(t, transforms)
	assert.True(t, colors)

	transforms, colors = c.Buffer().TakeDirty()
	assert.False(t, transforms, "flags are consumed, not sticky")
	assert.False(t, colors)
}

func TestEffectCompositor_DisposeIsIdempotent(t *testing.T) {
	c, err := NewEffectCompositor(snowConfig(10), NewNopLogger())
	require.NoError(t, err)

	geom := c.Geometry()
	released := 0
	geom.attachRelease(func() { released++ })

	c.Dispose()
	c.Dispose()
	c.Dispose()

	assert.True(t, c.Disposed())
	assert.True(t, geom.Disposed())
	assert.Equal(t, 1, released, "release runs exactly once")
	assert.Nil(t, c.Buffer())
	assert.Nil(t, c.Particles())

	// A disposed compositor refuses reconfiguration and skips frames.
	assert.Error(t, c.Reconfigure(20, Bounds{Width: 1, Height: 1, Depth: 1}))
	c.Step(View{}, Clock{Dt: 0.016}) // must not panic
}

func TestEffectCompositor_CustomIntegratorReceivesField(t *testing.T) {
	stepped := 0
	c, err := NewEffectCompositor(snowConfig(5), NewNopLogger(),
		WithIntegrator(integratorFunc(func(particles []Particle, buf *InstanceBuffer, view View, clock Clock) bool {
			stepped++
			return buf.Ready(len(particles))
		})))
	require.NoError(t, err)
	defer c.Dispose()

	c.Step(View{Bounds: c.Bounds()}, Clock{Dt: 0.016})
	assert.Equal(t, 1, stepped)
}

type integratorFunc func(particles []Particle, buf *InstanceBuffer, view View, clock Clock) bool

func (f integratorFunc) Step(particles []Particle, buf *InstanceBuffer, view View, clock Clock) bool {
	return f(particles, buf, view, clock)
}
