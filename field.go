package atmos

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// VelocityParams are fixed at spawn and define a particle's personality:
// a respawn teleports the position but never re-rolls these.
type VelocityParams struct {
	FallRate      float32
	SwayAmplitude float32
	SwayFrequency float32
	RotationRate  mgl32.Vec3
}

// Particle is one instance record. Arrays of these are the single source
// of truth for the simulation; the instance buffer is derived state.
type Particle struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3 // Euler angles
	Scale    float32
	Velocity VelocityParams
	// Color is the spawn-time base color. Species with modulated
	// brightness (fireflies, rain) derive the written color from it
	// every frame without touching the stored value.
	Color RGB
	// Phase offsets each particle's sin() terms so identical ranges do
	// not pulse in lockstep.
	Phase float32
}

// GenerateField creates count independent particle records randomized
// within bounds according to the species physics ranges. Not seeded:
// two calls with equal inputs yield different particles.
func GenerateField(count int, bounds Bounds, physics *PhysicsParams) ([]Particle, error) {
	if count <= 0 {
		return nil, fmt.Errorf("particle count must be positive, got %d", count)
	}
	if len(physics.Palette) == 0 {
		return nil, fmt.Errorf("species palette is empty")
	}
	if bounds.Width <= 0 || bounds.Height <= 0 || bounds.Depth <= 0 {
		return nil, fmt.Errorf("bounds must be positive, got %+v", bounds)
	}

	particles := make([]Particle, count)
	for i := range particles {
		p := &particles[i]
		p.Position = spawnPosition(bounds, physics.SpawnBias)
		p.Rotation = mgl32.Vec3{
			rand.Float32() * 2 * math.Pi,
			rand.Float32() * 2 * math.Pi,
			rand.Float32() * 2 * math.Pi,
		}
		p.Scale = physics.Scale.Sample()
		p.Velocity = VelocityParams{
			FallRate:      physics.FallSpeed.Sample(),
			SwayAmplitude: physics.SwayAmplitude.Sample(),
			SwayFrequency: physics.SwayFrequency.Sample(),
			RotationRate: mgl32.Vec3{
				physics.RotationSpeed[0].Sample(),
				physics.RotationSpeed[1].Sample(),
				physics.RotationSpeed[2].Sample(),
			},
		}
		p.Color = jitterColor(physics.Palette[rand.Intn(len(physics.Palette))], physics.ColorJitter)
		p.Phase = rand.Float32() * 2 * math.Pi
	}
	return particles, nil
}

// spawnPosition draws a position inside bounds. Biased draws still stay
// strictly within the volume; only the vertical density changes.
func spawnPosition(bounds Bounds, bias SpawnBias) mgl32.Vec3 {
	x := (rand.Float32() - 0.5) * bounds.Width
	z := (rand.Float32() - 0.5) * bounds.Depth

	var y float32
	u := rand.Float32()
	switch bias {
	case SpawnAbove:
		// sqrt skews mass toward the top edge.
		y = (float32(math.Sqrt(float64(u))) - 0.5) * bounds.Height
	case SpawnLow:
		y = (0.5 - float32(math.Sqrt(float64(u)))) * bounds.Height
	default:
		y = (u - 0.5) * bounds.Height
	}
	return mgl32.Vec3{x, y, z}
}

func jitterColor(base RGB, jitter float32) RGB {
	return RGB{
		R: clamp01(base.R + (rand.Float32()*2-1)*jitter),
		G: clamp01(base.G + (rand.Float32()*2-1)*jitter),
		B: clamp01(base.B + (rand.Float32()*2-1)*jitter),
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
