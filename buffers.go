package atmos

import (
	"github.com/go-gl/mathgl/mgl32"
)

// InstanceBuffer owns the CPU mirror of the per-instance GPU data: one
// 4x4 transform and one RGB triple per particle, in contiguous arrays.
// Per-instance writes never allocate; the renderer uploads when the
// needs-upload flags are set and clears them after the copy.
type InstanceBuffer struct {
	matrices []mgl32.Mat4
	colors   []float32 // N*3, tightly packed

	transformsDirty bool
	colorsDirty     bool
}

func NewInstanceBuffer(count int) *InstanceBuffer {
	b := &InstanceBuffer{}
	b.realloc(count)
	return b
}

// realloc replaces both backing arrays wholesale. GPU attribute buffers
// are fixed-size, so a count change is a full replacement, never a patch.
func (b *InstanceBuffer) realloc(count int) {
	b.matrices = make([]mgl32.Mat4, count)
	b.colors = make([]float32, count*3)
}

// Init writes each particle's composed transform and color into its
// slot, then marks both arrays dirty exactly once. If the backing size
// does not match the field, the arrays are reallocated first.
func (b *InstanceBuffer) Init(particles []Particle, aspect mgl32.Vec3) {
	if len(b.matrices) != len(particles) {
		b.realloc(len(particles))
	}
	var scratch mgl32.Mat4
	for i := range particles {
		p := &particles[i]
		composeTransform(&scratch, p.Position, p.Rotation, scaleVec(p.Scale, aspect))
		b.matrices[i] = scratch
		b.writeColor(i, p.Color.R, p.Color.G, p.Color.B)
	}
	b.transformsDirty = true
	b.colorsDirty = true
}

// SetTransform stores the composed matrix for instance i. Called inside
// the per-frame loop; must not allocate.
func (b *InstanceBuffer) SetTransform(i int, m *mgl32.Mat4) {
	b.matrices[i] = *m
}

// SetColor rewrites the color triple for instance i.
func (b *InstanceBuffer) SetColor(i int, r, g, bl float32) {
	b.writeColor(i, r, g, bl)
}

func (b *InstanceBuffer) writeColor(i int, r, g, bl float32) {
	base := i * 3
	b.colors[base] = r
	b.colors[base+1] = g
	b.colors[base+2] = bl
}

// Flush flags both arrays for GPU upload. Called once per frame after
// all per-instance writes; calling it again without further writes
// changes nothing.
func (b *InstanceBuffer) Flush() {
	b.transformsDirty = true
	b.colorsDirty = true
}

// TakeDirty returns and clears the needs-upload flags; the renderer
// calls this right before copying to the GPU.
func (b *InstanceBuffer) TakeDirty() (transforms, colors bool) {
	transforms, colors = b.transformsDirty, b.colorsDirty
	b.transformsDirty = false
	b.colorsDirty = false
	return
}

func (b *InstanceBuffer) Count() int             { return len(b.matrices) }
func (b *InstanceBuffer) Matrices() []mgl32.Mat4 { return b.matrices }
func (b *InstanceBuffer) Colors() []float32      { return b.colors }

// Ready reports whether the buffer can absorb per-instance writes for a
// field of the given size. The integrator skips the frame when false.
func (b *InstanceBuffer) Ready(count int) bool {
	return b != nil && len(b.matrices) == count && count > 0
}

// ColorAt reads back the stored triple for instance i.
func (b *InstanceBuffer) ColorAt(i int) (r, g, bl float32) {
	base := i * 3
	return b.colors[base], b.colors[base+1], b.colors[base+2]
}

// composeTransform writes translate * rotate * scale into dst without
// heap allocation; dst is the caller's pooled scratch matrix.
func composeTransform(dst *mgl32.Mat4, pos mgl32.Vec3, rot mgl32.Vec3, scale mgl32.Vec3) {
	q := mgl32.AnglesToQuat(rot[0], rot[1], rot[2], mgl32.XYZ)
	*dst = mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(q.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

func scaleVec(s float32, aspect mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{s * aspect[0], s * aspect[1], s * aspect[2]}
}
