package atmos

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/colornames"
)

// Species identifies one weather effect. Each species is data, not
// behavior: a geometry, a palette and a set of physics ranges.
type Species int

const (
	SpeciesSakura Species = iota
	SpeciesFireflies
	SpeciesSnow
	SpeciesRain
	SpeciesAutumn
	SpeciesFog

	speciesCount
)

var speciesNames = map[Species]string{
	SpeciesSakura:    "sakura",
	SpeciesFireflies: "fireflies",
	SpeciesSnow:      "snow",
	SpeciesRain:      "rain",
	SpeciesAutumn:    "autumn",
	SpeciesFog:       "fog",
}

func (s Species) String() string {
	if name, ok := speciesNames[s]; ok {
		return name
	}
	return fmt.Sprintf("species(%d)", int(s))
}

// ParseSpecies maps a persisted mode name back to its Species.
func ParseSpecies(name string) (Species, error) {
	for s, n := range speciesNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown species %q", name)
}

// Range is a [min,max] pair sampled uniformly at spawn time.
type Range [2]float32

func (r Range) Sample() float32 {
	return lerp(r[0], r[1], rand.Float32())
}

func (r Range) Contains(v float32) bool {
	return v >= r[0] && v <= r[1]
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// RGB is a linear color triple in [0,1] per channel.
type RGB struct {
	R, G, B float32
}

func rgbFromColor(c color.RGBA) RGB {
	return RGB{
		R: float32(c.R) / 255.0,
		G: float32(c.G) / 255.0,
		B: float32(c.B) / 255.0,
	}
}

// Bounds is the simulated volume, centered on the origin.
type Bounds struct {
	Width, Height, Depth float32
}

// SpawnBias controls where inside the bounds new positions cluster.
type SpawnBias int

const (
	// SpawnAnywhere draws positions uniformly through the volume.
	SpawnAnywhere SpawnBias = iota
	// SpawnAbove weights positions toward the top of the volume, for
	// falling species that should enter from above.
	SpawnAbove
	// SpawnLow weights positions toward the bottom half, for ground fog.
	SpawnLow
)

// EdgePolicy controls what happens when a particle leaves the volume.
type EdgePolicy int

const (
	// RespawnTop teleports the particle above the volume once it falls
	// below the bottom margin. Falling species.
	RespawnTop EdgePolicy = iota
	// WrapAll wraps the particle on all three axes. Drifting species.
	WrapAll
)

// PhysicsParams are the spawn-time ranges shared by every species.
// All rates are tuned for a 60 fps frame and scaled by dt*simTimeScale.
type PhysicsParams struct {
	FallSpeed     Range
	SwayAmplitude Range
	SwayFrequency Range
	RotationSpeed [3]Range
	Scale         Range
	// Aspect stretches the uniform scale per axis (length vs width).
	Aspect mgl32.Vec3
	// ColorJitter is the per-channel uniform delta applied to the
	// palette pick, clamped to [0,1].
	ColorJitter float32
	Palette     []RGB
	SpawnBias   SpawnBias
	EdgePolicy  EdgePolicy
	// BoundaryMargin pads the exit boundary so respawns happen outside
	// the visible volume instead of popping at its edge.
	BoundaryMargin float32
	// BaseSpeed is a host-tunable multiplier over FallSpeed.
	BaseSpeed float32
	// Wind adds a constant lateral drift, in units per 60 fps frame.
	Wind float32
	// Opacity is forwarded to the renderer, not the simulation.
	Opacity float32
}

// SpeciesParams is the tagged variant over species identifiers; each
// implementation carries the strongly typed config for one species.
type SpeciesParams interface {
	Species() Species
	Physics() *PhysicsParams
}

type SakuraParams struct {
	PhysicsParams
}

func (p *SakuraParams) Species() Species        { return SpeciesSakura }
func (p *SakuraParams) Physics() *PhysicsParams { return &p.PhysicsParams }

type FireflyParams struct {
	PhysicsParams
	// FlickerSpeed drives the sin() brightness/scale pulse.
	FlickerSpeed Range
	// BrightnessFloor keeps flickering fireflies from going fully dark.
	BrightnessFloor float32
	// PerturbChance is the per-frame probability that a firefly re-rolls
	// its sway parameters, so swarms do not settle into fixed orbits.
	PerturbChance float32
}

func (p *FireflyParams) Species() Species        { return SpeciesFireflies }
func (p *FireflyParams) Physics() *PhysicsParams { return &p.PhysicsParams }

type SnowParams struct {
	PhysicsParams
}

func (p *SnowParams) Species() Species        { return SpeciesSnow }
func (p *SnowParams) Physics() *PhysicsParams { return &p.PhysicsParams }

type RainParams struct {
	PhysicsParams
	// FogNear/FogFar bound the synthetic depth fog: streaks closer than
	// FogNear keep full brightness, beyond FogFar they fade out.
	FogNear float32
	FogFar  float32
}

func (p *RainParams) Species() Species        { return SpeciesRain }
func (p *RainParams) Physics() *PhysicsParams { return &p.PhysicsParams }

// LeafShape selects the outline geometry for one autumn sub-species.
type LeafShape int

const (
	LeafMaple LeafShape = iota
	LeafGinkgo
	LeafGeneric
)

type AutumnParams struct {
	PhysicsParams
	Shape LeafShape
}

func (p *AutumnParams) Species() Species        { return SpeciesAutumn }
func (p *AutumnParams) Physics() *PhysicsParams { return &p.PhysicsParams }

type FogParams struct {
	PhysicsParams
}

func (p *FogParams) Species() Species        { return SpeciesFog }
func (p *FogParams) Physics() *PhysicsParams { return &p.PhysicsParams }

func DefaultSakuraParams() *SakuraParams {
	return &SakuraParams{
		PhysicsParams: PhysicsParams{
			FallSpeed:     Range{0.018, 0.05},
			SwayAmplitude: Range{0.01, 0.05},
			SwayFrequency: Range{0.6, 1.4},
			RotationSpeed: [3]Range{
				{-0.02, 0.02},
				{-0.03, 0.03},
				{-0.02, 0.02},
			},
			Scale:  Range{0.6, 1.2},
			Aspect: mgl32.Vec3{1, 1, 0.35},
			Palette: []RGB{
				{1.0, 0.78, 0.86},
				{1.0, 0.71, 0.81},
				{0.98, 0.85, 0.90},
				{1.0, 0.63, 0.76},
			},
			ColorJitter:    0.05,
			SpawnBias:      SpawnAbove,
			EdgePolicy:     RespawnTop,
			BoundaryMargin: 2,
			BaseSpeed:      1,
			Wind:           0.006,
			Opacity:        0.95,
		},
	}
}

func DefaultFireflyParams() *FireflyParams {
	return &FireflyParams{
		PhysicsParams: PhysicsParams{
			FallSpeed:     Range{-0.004, 0.004}, // slow vertical wander, both directions
			SwayAmplitude: Range{0.008, 0.03},
			SwayFrequency: Range{0.3, 1.1},
			RotationSpeed: [3]Range{{0, 0}, {0, 0}, {0, 0}},
			Scale:         Range{0.08, 0.22},
			Aspect:        mgl32.Vec3{1, 1, 1},
			Palette: []RGB{
				{1.0, 0.95, 0.55},
				{0.95, 1.0, 0.60},
				{1.0, 0.87, 0.40},
			},
			ColorJitter:    0.03,
			SpawnBias:      SpawnAnywhere,
			EdgePolicy:     WrapAll,
			BoundaryMargin: 1,
			BaseSpeed:      1,
			Opacity:        1,
		},
		FlickerSpeed:    Range{1.5, 3.5},
		BrightnessFloor: 0.25,
		PerturbChance:   0.002,
	}
}

func DefaultSnowParams() *SnowParams {
	return &SnowParams{
		PhysicsParams: PhysicsParams{
			FallSpeed:     Range{0.01, 0.035},
			SwayAmplitude: Range{0.005, 0.025},
			SwayFrequency: Range{0.4, 1.0},
			RotationSpeed: [3]Range{
				{-0.01, 0.01},
				{-0.01, 0.01},
				{-0.01, 0.01},
			},
			Scale:  Range{0.08, 0.3},
			Aspect: mgl32.Vec3{1, 1, 1},
			Palette: []RGB{
				rgbFromColor(colornames.White),
				rgbFromColor(colornames.Snow),
				rgbFromColor(colornames.Aliceblue),
			},
			ColorJitter:    0.02,
			SpawnBias:      SpawnAbove,
			EdgePolicy:     RespawnTop,
			BoundaryMargin: 1.5,
			BaseSpeed:      1,
			Wind:           0.002,
			Opacity:        0.9,
		},
	}
}

func DefaultRainParams() *RainParams {
	return &RainParams{
		PhysicsParams: PhysicsParams{
			FallSpeed:     Range{0.25, 0.45},
			SwayAmplitude: Range{0, 0.002}, // streaks barely drift
			SwayFrequency: Range{0.5, 1.0},
			RotationSpeed: [3]Range{{0, 0}, {0, 0}, {0, 0}},
			Scale:         Range{0.5, 1.1},
			Aspect:        mgl32.Vec3{0.5, 2.2, 0.5},
			Palette: []RGB{
				rgbFromColor(colornames.Lightsteelblue),
				rgbFromColor(colornames.Lightslategray),
				rgbFromColor(colornames.Gainsboro),
			},
			ColorJitter:    0.02,
			SpawnBias:      SpawnAbove,
			EdgePolicy:     RespawnTop,
			BoundaryMargin: 3,
			BaseSpeed:      1,
			Opacity:        0.55,
		},
		FogNear: 4,
		FogFar:  22,
	}
}

func DefaultAutumnParams(shape LeafShape) *AutumnParams {
	return &AutumnParams{
		PhysicsParams: PhysicsParams{
			FallSpeed:     Range{0.015, 0.04},
			SwayAmplitude: Range{0.015, 0.06},
			SwayFrequency: Range{0.5, 1.2},
			RotationSpeed: [3]Range{
				{-0.035, 0.035},
				{-0.045, 0.045},
				{-0.035, 0.035},
			},
			Scale:  Range{0.5, 1.1},
			Aspect: mgl32.Vec3{1, 1, 0.3},
			Palette: []RGB{
				{0.85, 0.33, 0.10},
				{0.90, 0.55, 0.13},
				{0.80, 0.20, 0.12},
				{0.93, 0.74, 0.25},
			},
			ColorJitter:    0.06,
			SpawnBias:      SpawnAbove,
			EdgePolicy:     RespawnTop,
			BoundaryMargin: 2,
			BaseSpeed:      1,
			Wind:           0.01,
			Opacity:        1,
		},
		Shape: shape,
	}
}

func DefaultFogParams() *FogParams {
	return &FogParams{
		PhysicsParams: PhysicsParams{
			FallSpeed:     Range{-0.006, 0.006}, // fog drifts, it does not fall
			SwayAmplitude: Range{0.004, 0.02},
			SwayFrequency: Range{0.1, 0.4},
			RotationSpeed: [3]Range{{0, 0}, {0, 0}, {-0.002, 0.002}},
			Scale:         Range{2.5, 6.0},
			Aspect:        mgl32.Vec3{1.6, 1, 1},
			Palette: []RGB{
				rgbFromColor(colornames.Gainsboro),
				rgbFromColor(colornames.Lightgray),
				rgbFromColor(colornames.Silver),
			},
			ColorJitter:    0.02,
			SpawnBias:      SpawnLow,
			EdgePolicy:     WrapAll,
			BoundaryMargin: 4,
			BaseSpeed:      1,
			Opacity:        0.18,
		},
	}
}

// DefaultParams returns the stock parameter set for a species; autumn
// defaults to the maple outline.
func DefaultParams(s Species) SpeciesParams {
	switch s {
	case SpeciesSakura:
		return DefaultSakuraParams()
	case SpeciesFireflies:
		return DefaultFireflyParams()
	case SpeciesSnow:
		return DefaultSnowParams()
	case SpeciesRain:
		return DefaultRainParams()
	case SpeciesAutumn:
		return DefaultAutumnParams(LeafMaple)
	case SpeciesFog:
		return DefaultFogParams()
	}
	panic(fmt.Sprintf("no default params for %v", s))
}
