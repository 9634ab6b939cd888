package atmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *EffectRegistry {
	return &EffectRegistry{
		counts:     defaultEffectCounts(),
		baseBounds: Bounds{Width: 20, Height: 12, Depth: 16},
		log:        NewNopLogger(),
	}
}

func TestEffectRegistry_MountSingleSpecies(t *testing.T) {
	r := testRegistry()
	require.NoError(t, r.mount(SpeciesSnow, r.baseBounds))

	require.Len(t, r.Active(), 1)
	c := r.Active()[0]
	assert.Equal(t, SpeciesSnow, c.Species())
	assert.Equal(t, 400, c.Count())
}

func TestEffectRegistry_AutumnSplitsAcrossThreeShapes(t *testing.T) {
	r := testRegistry()
	r.counts[SpeciesAutumn] = 240
	require.NoError(t, r.mount(SpeciesAutumn, r.baseBounds))

	active := r.Active()
	require.Len(t, active, 3)

	total := 0
	labels := map[string]bool{}
	for _, c := range active {
		assert.Equal(t, SpeciesAutumn, c.Species())
		total += c.Count()
		labels[c.Geometry().Label()] = true
	}
	assert.Equal(t, 240, total, "shape shares sum to the configured total")
	assert.True(t, labels["maple"])
	assert.True(t, labels["ginkgo"])
	assert.True(t, labels["leaf"])
}

func TestEffectRegistry_AutumnRemainderGoesToMaple(t *testing.T) {
	r := testRegistry()
	r.counts[SpeciesAutumn] = 100 // 34 + 33 + 33
	require.NoError(t, r.mount(SpeciesAutumn, r.baseBounds))

	active := r.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "maple", active[0].Geometry().Label())
	assert.Equal(t, 34, active[0].Count())
	assert.Equal(t, 33, active[1].Count())
	assert.Equal(t, 33, active[2].Count())
}

func TestEffectRegistry_RemountDisposesPrevious(t *testing.T) {
	r := testRegistry()
	require.NoError(t, r.mount(SpeciesSakura, r.baseBounds))
	old := r.Active()[0]

	require.NoError(t, r.mount(SpeciesRain, r.baseBounds))
	assert.True(t, old.Disposed(), "previous mode's compositor is torn down")
	require.Len(t, r.Active(), 1)
	assert.Equal(t, SpeciesRain, r.Active()[0].Species())
}

func TestEffectRegistry_DisposeAll(t *testing.T) {
	r := testRegistry()
	require.NoError(t, r.mount(SpeciesAutumn, r.baseBounds))
	active := r.Active()

	r.disposeAll()
	assert.Empty(t, r.Active())
	assert.False(t, r.hasAny)
	for _, c := range active {
		assert.True(t, c.Disposed())
	}
}

func TestEffectRegistry_ViewBoundsTracksAspect(t *testing.T) {
	r := testRegistry()

	wide := r.viewBounds(&WindowState{WindowWidth: 1920, WindowHeight: 1080})
	assert.InDelta(t, 12.0*1920.0/1080.0, wide.Width, 1e-4)
	assert.Equal(t, r.baseBounds.Height, wide.Height)
	assert.Equal(t, r.baseBounds.Depth, wide.Depth)

	// Degenerate or absent window keeps the configured volume.
	assert.Equal(t, r.baseBounds, r.viewBounds(nil))
	assert.Equal(t, r.baseBounds, r.viewBounds(&WindowState{}))
}
