package atmos

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestField(t *testing.T, count int) []Particle {
	t.Helper()
	particles, err := GenerateField(count, Bounds{Width: 20, Height: 12, Depth: 16}, DefaultSnowParams().Physics())
	require.NoError(t, err)
	return particles
}

func TestInstanceBuffer_InitWritesAllSlots(t *testing.T) {
	particles := makeTestField(t, 8)
	buf := NewInstanceBuffer(8)
	buf.Init(particles, mgl32.Vec3{1, 1, 1})

	assert.Equal(t, 8, buf.Count())
	for i, p := range particles {
		m := buf.Matrices()[i]
		// Translation column carries the particle position.
		assert.InDelta(t, p.Position[0], m[12], 1e-5)
		assert.InDelta(t, p.Position[1], m[13], 1e-5)
		assert.InDelta(t, p.Position[2], m[14], 1e-5)

		r, g, b := buf.ColorAt(i)
		assert.Equal(t, p.Color.R, r)
		assert.Equal(t, p.Color.G, g)
		assert.Equal(t, p.Color.B, b)
	}

	transforms, colors := buf.TakeDirty()
	assert.True(t, transforms)
	assert.True(t, colors)
}

func TestInstanceBuffer_FlushIdempotent(t *testing.T) {
	particles := makeTestField(t, 4)
	buf := NewInstanceBuffer(4)
	buf.Init(particles, mgl32.Vec3{1, 1, 1})
	buf.TakeDirty()

	m := mgl32.Translate3D(1, 2, 3)
	buf.SetTransform(2, &m)
	buf.SetColor(2, 0.5, 0.25, 0.125)
	buf.Flush()

	matricesBefore := append([]mgl32.Mat4(nil), buf.Matrices()...)
	colorsBefore := append([]float32(nil), buf.Colors()...)

	// Repeated flushes without further writes change nothing.
	buf.Flush()
	buf.Flush()

	assert.Equal(t, matricesBefore, buf.Matrices())
	assert.Equal(t, colorsBefore, buf.Colors())

	transforms, colors := buf.TakeDirty()
	assert.True(t, transforms)
	assert.True(t, colors)
	transforms, colors = buf.TakeDirty()
	assert.False(t, transforms)
	assert.False(t, colors)
}

func TestInstanceBuffer_ReallocOnSizeMismatch(t *testing.T) {
	buf := NewInstanceBuffer(10)
	assert.Equal(t, 10, buf.Count())

	// A field of a different size forces a wholesale reallocation.
	particles := makeTestField(t, 4)
	buf.Init(particles, mgl32.Vec3{1, 1, 1})
	assert.Equal(t, 4, buf.Count())
	assert.Len(t, buf.Colors(), 12)

	assert.True(t, buf.Ready(4))
	assert.False(t, buf.Ready(10))
}

func TestInstanceBuffer_AspectScalesAnisotropically(t *testing.T) {
	particles := []Particle{{
		Position: mgl32.Vec3{0, 0, 0},
		Scale:    2,
		Color:    RGB{1, 1, 1},
	}}
	buf := NewInstanceBuffer(1)
	buf.Init(particles, mgl32.Vec3{0.5, 2, 1})

	m := buf.Matrices()[0]
	// No rotation: the diagonal carries the per-axis scale.
	assert.InDelta(t, 1.0, m[0], 1e-5)
	assert.InDelta(t, 4.0, m[5], 1e-5)
	assert.InDelta(t, 2.0, m[10], 1e-5)
}

func TestComposeTransform_MatchesMglChain(t *testing.T) {
	var dst mgl32.Mat4
	pos := mgl32.Vec3{1, -2, 3}
	rot := mgl32.Vec3{0.3, 0.5, -0.2}
	scale := mgl32.Vec3{2, 2, 0.5}
	composeTransform(&dst, pos, rot, scale)

	q := mgl32.AnglesToQuat(rot[0], rot[1], rot[2], mgl32.XYZ)
	want := mgl32.Translate3D(1, -2, 3).Mul4(q.Mat4()).Mul4(mgl32.Scale3D(2, 2, 0.5))
	for i := 0; i < 16; i++ {
		assert.InDelta(t, want[i], dst[i], 1e-5)
	}
}
