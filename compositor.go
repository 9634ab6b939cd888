package atmos

import (
	"fmt"
)

// GeometryProvider, FieldGenerator and FieldIntegrator are the
// capability set an EffectCompositor composes. Species differ only in
// data, so the default implementations serve every species; the
// interfaces exist for hosts that substitute geometry or physics.
type GeometryProvider interface {
	CreateGeometry(params SpeciesParams) *Geometry
}

type FieldGenerator interface {
	Generate(count int, bounds Bounds, physics *PhysicsParams) ([]Particle, error)
}

type FieldIntegrator interface {
	Step(particles []Particle, buf *InstanceBuffer, view View, clock Clock) bool
}

type defaultGeometryProvider struct{}

func (defaultGeometryProvider) CreateGeometry(params SpeciesParams) *Geometry {
	return NewSpeciesGeometry(params)
}

type defaultFieldGenerator struct{}

func (defaultFieldGenerator) Generate(count int, bounds Bounds, physics *PhysicsParams) ([]Particle, error) {
	return GenerateField(count, bounds, physics)
}

// EffectConfig is the public contract of one effect: an instance count
// plus the typed species config.
type EffectConfig struct {
	Count  int
	Bounds Bounds
	Params SpeciesParams
}

type fieldKey struct {
	count  int
	bounds Bounds
}

// EffectCompositor wires geometry, particle field, integrator and
// instance buffer into one renderable unit for one mounted lifetime.
// Geometry is created once; the field and buffers are rebuilt only when
// the (count, bounds) key changes; everything is disposed exactly once.
type EffectCompositor struct {
	cfg        EffectConfig
	geometry   *Geometry
	particles  []Particle
	buffer     *InstanceBuffer
	integrator FieldIntegrator

	geometryProvider GeometryProvider
	fieldGenerator   FieldGenerator

	key      fieldKey
	disposed bool
	log      Logger
}

// CompositorOption tweaks construction; used mainly by tests and hosts
// that substitute capabilities.
type CompositorOption func(*EffectCompositor)

func WithGeometryProvider(p GeometryProvider) CompositorOption {
	return func(c *EffectCompositor) { c.geometryProvider = p }
}

func WithFieldGenerator(g FieldGenerator) CompositorOption {
	return func(c *EffectCompositor) { c.fieldGenerator = g }
}

func WithIntegrator(it FieldIntegrator) CompositorOption {
	return func(c *EffectCompositor) { c.integrator = it }
}

// NewEffectCompositor validates the config and builds the full unit.
// Configuration errors fail here, loudly, never at frame time.
func NewEffectCompositor(cfg EffectConfig, log Logger, opts ...CompositorOption) (*EffectCompositor, error) {
	if cfg.Params == nil {
		return nil, fmt.Errorf("effect config for count %d has no species params", cfg.Count)
	}
	if log == nil {
		log = NewNopLogger()
	}

	c := &EffectCompositor{
		cfg:              cfg,
		log:              log,
		geometryProvider: defaultGeometryProvider{},
		fieldGenerator:   defaultFieldGenerator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.integrator == nil {
		c.integrator = NewIntegrator(cfg.Params)
	}

	c.geometry = c.geometryProvider.CreateGeometry(cfg.Params)
	if c.geometry == nil {
		return nil, fmt.Errorf("no geometry for species %v", cfg.Params.Species())
	}

	if err := c.buildField(cfg.Count, cfg.Bounds); err != nil {
		c.geometry.Dispose()
		return nil, err
	}

	log.Debugf("effect %v mounted: %d instances", cfg.Params.Species(), cfg.Count)
	return c, nil
}

func (c *EffectCompositor) buildField(count int, bounds Bounds) error {
	particles, err := c.fieldGenerator.Generate(count, bounds, c.cfg.Params.Physics())
	if err != nil {
		return fmt.Errorf("generate %v field: %w", c.cfg.Params.Species(), err)
	}
	c.particles = particles
	c.buffer = NewInstanceBuffer(count)
	c.buffer.Init(particles, c.cfg.Params.Physics().Aspect)
	c.key = fieldKey{count: count, bounds: bounds}
	return nil
}

// Reconfigure applies a new count or bounds. An unchanged key is a
// no-op: re-render must not regenerate the field. A changed key tears
// the old field and buffers down and rebuilds from scratch; the shared
// geometry survives.
func (c *EffectCompositor) Reconfigure(count int, bounds Bounds) error {
	if c.disposed {
		return fmt.Errorf("reconfigure on disposed %v compositor", c.cfg.Params.Species())
	}
	next := fieldKey{count: count, bounds: bounds}
	if next == c.key {
		return nil
	}

	// Drop the old field wholesale so nothing keeps the stale arrays
	// alive; count changes are teardown plus re-init, not a resize.
	c.particles = nil
	c.buffer = nil

	c.cfg.Count = count
	c.cfg.Bounds = bounds
	return c.buildField(count, bounds)
}

// Step advances the simulation one frame and flags the buffers for
// upload exactly once. A not-yet-ready or already-disposed compositor
// skips the frame silently.
func (c *EffectCompositor) Step(view View, clock Clock) {
	if c.disposed || c.buffer == nil || c.geometry == nil || c.geometry.Disposed() {
		return
	}
	if !c.integrator.Step(c.particles, c.buffer, view, clock) {
		return
	}
	c.buffer.Flush()
}

// Dispose releases the geometry and detaches the field. Idempotent;
// only the first call does work.
func (c *EffectCompositor) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	if c.geometry != nil {
		c.geometry.Dispose()
	}
	c.particles = nil
	c.buffer = nil
	c.log.Debugf("effect %v unmounted", c.cfg.Params.Species())
}

func (c *EffectCompositor) Species() Species        { return c.cfg.Params.Species() }
func (c *EffectCompositor) Count() int              { return c.cfg.Count }
func (c *EffectCompositor) Bounds() Bounds          { return c.cfg.Bounds }
func (c *EffectCompositor) Params() SpeciesParams   { return c.cfg.Params }
func (c *EffectCompositor) Geometry() *Geometry     { return c.geometry }
func (c *EffectCompositor) Particles() []Particle   { return c.particles }
func (c *EffectCompositor) Buffer() *InstanceBuffer { return c.buffer }
func (c *EffectCompositor) Disposed() bool          { return c.disposed }
