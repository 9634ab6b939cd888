package atmos

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// simTimeScale rescales the per-60fps-frame rates in PhysicsParams so a
// variable-dt loop moves particles at the same visible speed.
const simTimeScale = 60.0

// View is the host context read fresh every frame, so spawn bounds track
// window resizes and the depth fog tracks the camera.
type View struct {
	Bounds    Bounds
	CameraPos mgl32.Vec3
}

// Clock is the frame clock slice handed to the integrator.
type Clock struct {
	Elapsed float64
	Dt      float32
}

// Integrator advances a particle field by one frame: primary fall or
// drift, sinusoidal sway, rotation, species extras, boundary respawn.
// One scratch matrix is reused across all particles per frame.
type Integrator struct {
	params  SpeciesParams
	scratch mgl32.Mat4
}

func NewIntegrator(params SpeciesParams) *Integrator {
	return &Integrator{params: params}
}

// Step mutates particles in place and writes the recomposed transforms
// through buf. Returns false when the buffer is not ready for this
// field; the frame is skipped, never an error. That state is an
// expected race during compositor mount and teardown.
func (it *Integrator) Step(particles []Particle, buf *InstanceBuffer, view View, clock Clock) bool {
	if !buf.Ready(len(particles)) {
		return false
	}

	phys := it.params.Physics()
	k := clock.Dt * simTimeScale
	halfW := view.Bounds.Width * 0.5
	halfH := view.Bounds.Height * 0.5
	halfD := view.Bounds.Depth * 0.5
	margin := phys.BoundaryMargin

	for i := range particles {
		p := &particles[i]

		// Primary fall plus constant wind drift.
		p.Position[1] -= p.Velocity.FallRate * phys.BaseSpeed * k
		p.Position[0] += phys.Wind * k

		// Secondary lateral sway.
		sway := float32(math.Sin(clock.Elapsed*float64(p.Velocity.SwayFrequency)+float64(p.Phase)))
		p.Position[0] += sway * p.Velocity.SwayAmplitude * k

		p.Rotation[0] += p.Velocity.RotationRate[0] * k
		p.Rotation[1] += p.Velocity.RotationRate[1] * k
		p.Rotation[2] += p.Velocity.RotationRate[2] * k

		scale := scaleVec(p.Scale, phys.Aspect)

		switch sp := it.params.(type) {
		case *FireflyParams:
			// Depth wander, 90 degrees out of phase with the X sway so
			// fireflies trace loose loops instead of lines.
			drift := float32(math.Cos(clock.Elapsed*float64(p.Velocity.SwayFrequency)*0.8 + float64(p.Phase)))
			p.Position[2] += drift * p.Velocity.SwayAmplitude * k

			pulse := it.fireflyPulse(sp, p, clock.Elapsed)
			scale = scaleVec(p.Scale*(0.7+0.3*pulse), phys.Aspect)
			br := sp.BrightnessFloor + (1-sp.BrightnessFloor)*(0.5+0.5*pulse)
			buf.SetColor(i, p.Color.R*br, p.Color.G*br, p.Color.B*br)

			// Rare stochastic perturbation keeps the swarm from settling
			// into fixed orbits. Position identity only; base color and
			// phase are never touched.
			if sp.PerturbChance > 0 && rand.Float32() < sp.PerturbChance {
				p.Velocity.SwayAmplitude = phys.SwayAmplitude.Sample()
				p.Velocity.SwayFrequency = phys.SwayFrequency.Sample()
			}

		case *RainParams:
			f := depthFogFactor(p.Position, view.CameraPos, sp.FogNear, sp.FogFar)
			buf.SetColor(i, p.Color.R*f, p.Color.G*f, p.Color.B*f)
		}

		switch phys.EdgePolicy {
		case RespawnTop:
			if p.Position[1] < -halfH-margin {
				respawnAbove(p, view.Bounds, margin)
			}
		case WrapAll:
			wrapAxis(&p.Position[0], halfW+margin)
			wrapAxis(&p.Position[1], halfH+margin)
			wrapAxis(&p.Position[2], halfD+margin)
		}

		composeTransform(&it.scratch, p.Position, p.Rotation, scale)
		buf.SetTransform(i, &it.scratch)
	}
	return true
}

// fireflyPulse derives a per-particle flicker speed from the spawn phase
// so the pulse rate is stable without storing another field.
func (it *Integrator) fireflyPulse(sp *FireflyParams, p *Particle, elapsed float64) float32 {
	t := p.Phase / (2 * math.Pi)
	speed := lerp(sp.FlickerSpeed[0], sp.FlickerSpeed[1], t)
	return float32(math.Sin(elapsed*float64(speed) + float64(p.Phase)))
}

func depthFogFactor(pos, camera mgl32.Vec3, near, far float32) float32 {
	if far <= near {
		return 1
	}
	dist := pos.Sub(camera).Len()
	return clamp01((far - dist) / (far - near))
}

// respawnAbove teleports a fallen particle to a fresh spawn point above
// the visible top edge, redrawing the horizontal and depth coordinates
// across the current bounds. Velocity params and color keep the
// particle's original personality.
func respawnAbove(p *Particle, bounds Bounds, margin float32) {
	p.Position[0] = (rand.Float32() - 0.5) * bounds.Width
	p.Position[2] = (rand.Float32() - 0.5) * bounds.Depth
	p.Position[1] = bounds.Height*0.5 + margin*(0.25+0.75*rand.Float32())
}

func wrapAxis(v *float32, limit float32) {
	if *v > limit {
		*v = -limit
	} else if *v < -limit {
		*v = limit
	}
}
