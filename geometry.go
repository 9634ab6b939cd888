package atmos

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// AssetId keys a geometry in the renderer's GPU-side registries.
type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// ParticleVertex matches the vertex input of the particle WGSL shader.
type ParticleVertex struct {
	Pos    [3]float32
	Normal [3]float32
}

// Geometry is one shared shape definition per species: created once,
// instanced N times, disposed exactly once on compositor teardown.
type Geometry struct {
	id       AssetId
	label    string
	vertices []ParticleVertex
	indices  []uint16

	disposed bool
	// release frees the GPU buffers; attached lazily by the renderer.
	release func()
}

func newGeometry(label string, vertices []ParticleVertex, indices []uint16) *Geometry {
	return &Geometry{
		id:       makeAssetId(),
		label:    label,
		vertices: recenter(vertices),
		indices:  indices,
	}
}

func (g *Geometry) Id() AssetId                { return g.id }
func (g *Geometry) Label() string              { return g.label }
func (g *Geometry) Vertices() []ParticleVertex { return g.vertices }
func (g *Geometry) Indices() []uint16          { return g.indices }
func (g *Geometry) Disposed() bool             { return g.disposed }

// Dispose releases the GPU-side buffers. The second and later calls are
// no-ops; teardown paths may race against the renderer's cleanup.
func (g *Geometry) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	if g.release != nil {
		g.release()
		g.release = nil
	}
}

func (g *Geometry) attachRelease(release func()) {
	if g.disposed {
		release()
		return
	}
	g.release = release
}

// recenter shifts vertices so the bounding box midpoint sits at the
// origin; instance transforms assume centered geometry.
func recenter(vertices []ParticleVertex) []ParticleVertex {
	if len(vertices) == 0 {
		return vertices
	}
	min := mgl32.Vec3{vertices[0].Pos[0], vertices[0].Pos[1], vertices[0].Pos[2]}
	max := min
	for _, v := range vertices {
		for a := 0; a < 3; a++ {
			if v.Pos[a] < min[a] {
				min[a] = v.Pos[a]
			}
			if v.Pos[a] > max[a] {
				max[a] = v.Pos[a]
			}
		}
	}
	center := min.Add(max).Mul(0.5)
	for i := range vertices {
		vertices[i].Pos[0] -= center[0]
		vertices[i].Pos[1] -= center[1]
		vertices[i].Pos[2] -= center[2]
	}
	return vertices
}

// NewPetalGeometry builds a sakura petal: a quadratic bezier outline from
// tip to notch, mirrored across the long axis and fan-triangulated.
func NewPetalGeometry(length, width float32, segments int) *Geometry {
	if segments < 3 {
		segments = 3
	}

	// Control points, one side of the petal. The notch at the base is
	// the characteristic sakura shape.
	tip := mgl32.Vec2{0, length * 0.5}
	side := mgl32.Vec2{width * 0.5, length * 0.05}
	notch := mgl32.Vec2{width * 0.12, -length * 0.42}

	var outline []mgl32.Vec2
	for i := 0; i <= segments; i++ {
		t := float32(i) / float32(segments)
		outline = append(outline, quadBezier(tip, side, notch, t))
	}
	// Mirror back to the tip, skipping the shared notch point.
	for i := segments - 1; i >= 0; i-- {
		p := outline[i]
		outline = append(outline, mgl32.Vec2{-p.X(), p.Y()})
	}

	vertices, indices := fanTriangulate(outline)
	return newGeometry("petal", vertices, indices)
}

func quadBezier(a, b, c mgl32.Vec2, t float32) mgl32.Vec2 {
	u := 1 - t
	return a.Mul(u * u).Add(b.Mul(2 * u * t)).Add(c.Mul(t * t))
}

// NewStreakGeometry builds a thin open cylinder along Y, used for rain.
func NewStreakGeometry(radius, height float32, sides int) *Geometry {
	if sides < 3 {
		sides = 3
	}
	var vertices []ParticleVertex
	var indices []uint16

	halfH := height * 0.5
	for i := 0; i <= sides; i++ {
		a := 2 * math.Pi * float64(i) / float64(sides)
		nx := float32(math.Cos(a))
		nz := float32(math.Sin(a))
		x := radius * nx
		z := radius * nz
		vertices = append(vertices,
			ParticleVertex{Pos: [3]float32{x, -halfH, z}, Normal: [3]float32{nx, 0, nz}},
			ParticleVertex{Pos: [3]float32{x, halfH, z}, Normal: [3]float32{nx, 0, nz}},
		)
	}
	for i := 0; i < sides; i++ {
		base := uint16(i * 2)
		indices = append(indices,
			base, base+1, base+2,
			base+2, base+1, base+3,
		)
	}
	return newGeometry("streak", vertices, indices)
}

// NewSphereGeometry builds a low-poly UV sphere; snow grains and firefly
// glow points need no more than a handful of rings.
func NewSphereGeometry(radius float32, segments, rings int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}
	var vertices []ParticleVertex
	var indices []uint16

	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		y := float32(math.Cos(phi))
		ringR := float32(math.Sin(phi))
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			nx := ringR * float32(math.Cos(theta))
			nz := ringR * float32(math.Sin(theta))
			vertices = append(vertices, ParticleVertex{
				Pos:    [3]float32{radius * nx, radius * y, radius * nz},
				Normal: [3]float32{nx, y, nz},
			})
		}
	}
	stride := uint16(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := uint16(r)*stride + uint16(s)
			b := a + stride
			indices = append(indices,
				a, b, a+1,
				a+1, b, b+1,
			)
		}
	}
	return newGeometry("sphere", vertices, indices)
}

// NewQuadGeometry builds a unit billboard quad in the XY plane, scaled
// up by the fog species' instance transforms.
func NewQuadGeometry(size float32) *Geometry {
	h := size * 0.5
	n := [3]float32{0, 0, 1}
	vertices := []ParticleVertex{
		{Pos: [3]float32{-h, -h, 0}, Normal: n},
		{Pos: [3]float32{h, -h, 0}, Normal: n},
		{Pos: [3]float32{h, h, 0}, Normal: n},
		{Pos: [3]float32{-h, h, 0}, Normal: n},
	}
	indices := []uint16{0, 1, 2, 0, 2, 3}
	return newGeometry("quad", vertices, indices)
}

// NewLeafGeometry fan-triangulates a closed 2D outline into a flat leaf.
func NewLeafGeometry(label string, outline []mgl32.Vec2) *Geometry {
	vertices, indices := fanTriangulate(outline)
	return newGeometry(label, vertices, indices)
}

// MapleLeafOutline is a coarse five-lobed maple silhouette.
func MapleLeafOutline() []mgl32.Vec2 {
	return []mgl32.Vec2{
		{0, 0.55}, {0.14, 0.30}, {0.38, 0.42}, {0.30, 0.14},
		{0.55, 0.12}, {0.34, -0.08}, {0.42, -0.36}, {0.14, -0.24},
		{0, -0.52}, {-0.14, -0.24}, {-0.42, -0.36}, {-0.34, -0.08},
		{-0.55, 0.12}, {-0.30, 0.14}, {-0.38, 0.42}, {-0.14, 0.30},
	}
}

// GinkgoLeafOutline is the fan-shaped ginkgo silhouette with its
// characteristic central split.
func GinkgoLeafOutline() []mgl32.Vec2 {
	return []mgl32.Vec2{
		{0, -0.5}, {0.10, -0.28}, {0.30, -0.05}, {0.48, 0.22},
		{0.40, 0.40}, {0.18, 0.48}, {0.04, 0.34}, {0, 0.42},
		{-0.04, 0.34}, {-0.18, 0.48}, {-0.40, 0.40}, {-0.48, 0.22},
		{-0.30, -0.05}, {-0.10, -0.28},
	}
}

// GenericLeafOutline is a plain elliptic leaf used for the filler share
// of the autumn mix.
func GenericLeafOutline() []mgl32.Vec2 {
	var outline []mgl32.Vec2
	const steps = 10
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		outline = append(outline, mgl32.Vec2{
			0.28 * float32(math.Sin(a)),
			0.5 * float32(math.Cos(a)),
		})
	}
	return outline
}

// fanTriangulate converts a closed convex-ish outline into a triangle
// fan around its centroid, flat in the XY plane.
func fanTriangulate(outline []mgl32.Vec2) ([]ParticleVertex, []uint16) {
	var centroid mgl32.Vec2
	for _, p := range outline {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float32(len(outline)))

	n := [3]float32{0, 0, 1}
	vertices := []ParticleVertex{{Pos: [3]float32{centroid.X(), centroid.Y(), 0}, Normal: n}}
	for _, p := range outline {
		vertices = append(vertices, ParticleVertex{Pos: [3]float32{p.X(), p.Y(), 0}, Normal: n})
	}

	var indices []uint16
	count := uint16(len(outline))
	for i := uint16(0); i < count; i++ {
		next := (i + 1) % count
		indices = append(indices, 0, i+1, next+1)
	}
	return vertices, indices
}

// NewSpeciesGeometry creates the shared shape for one species, tuned to
// the stock physics scales.
func NewSpeciesGeometry(params SpeciesParams) *Geometry {
	switch p := params.(type) {
	case *SakuraParams:
		return NewPetalGeometry(0.6, 0.45, 6)
	case *FireflyParams:
		return NewSphereGeometry(0.5, 6, 4)
	case *SnowParams:
		return NewSphereGeometry(0.5, 5, 3)
	case *RainParams:
		return NewStreakGeometry(0.02, 1.0, 4)
	case *AutumnParams:
		switch p.Shape {
		case LeafGinkgo:
			return NewLeafGeometry("ginkgo", GinkgoLeafOutline())
		case LeafGeneric:
			return NewLeafGeometry("leaf", GenericLeafOutline())
		default:
			return NewLeafGeometry("maple", MapleLeafOutline())
		}
	case *FogParams:
		return NewQuadGeometry(1.0)
	}
	return nil
}
