package atmos

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, mode string) *MemoryModeStore {
	t.Helper()
	store := &MemoryModeStore{}
	require.NoError(t, store.Save(mode))
	return store
}

func TestWeatherController_ToggleCyclesAndWraps(t *testing.T) {
	modes := []Species{SpeciesSakura, SpeciesFireflies, SpeciesSnow, SpeciesRain, SpeciesAutumn}
	store := seededStore(t, "sakura")

	w, err := NewWeatherController(modes, store)
	require.NoError(t, err)
	require.Equal(t, SpeciesSakura, w.Mode())

	var seen []Species
	for i := 0; i < 5; i++ {
		seen = append(seen, w.Toggle())
	}
	assert.Equal(t, []Species{SpeciesFireflies, SpeciesSnow, SpeciesRain, SpeciesAutumn, SpeciesSakura}, seen)
	assert.Equal(t, SpeciesSakura, w.Mode(), "five toggles over five modes wrap back to the start")
}

func TestWeatherController_ToggleTwicePersistsEachStep(t *testing.T) {
	store := seededStore(t, "snow")
	w, err := NewWeatherController(DefaultModeCycle(), store)
	require.NoError(t, err)

	w.Toggle()
	value, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "rain", value)

	w.Toggle()
	value, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "autumn", value)
}

func TestWeatherController_BogusStoredValueFallsBackToTimeOfDay(t *testing.T) {
	store := seededStore(t, "thunderstorm")
	afternoon := func() time.Time {
		return time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC)
	}

	w, err := NewWeatherController(DefaultModeCycle(), store, WithClock(afternoon))
	require.NoError(t, err)
	assert.Equal(t, SpeciesSakura, w.Mode(), "15:00 lands in the sakura band")
}

func TestWeatherController_PersistedModeOutsideCycle(t *testing.T) {
	// "fog" parses fine but this host only cycles two modes.
	store := seededStore(t, "fog")
	evening := func() time.Time {
		return time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)
	}

	w, err := NewWeatherController([]Species{SpeciesSakura, SpeciesFireflies}, store, WithClock(evening))
	require.NoError(t, err)
	assert.Equal(t, SpeciesFireflies, w.Mode(), "22:00 fallback is fireflies")
}

func TestWeatherController_FallbackNotInCycleStartsAtFront(t *testing.T) {
	noon := func() time.Time {
		return time.Date(2024, 3, 14, 13, 0, 0, 0, time.UTC)
	}
	// 13:00 wants sakura; this cycle has none, so index 0 wins.
	w, err := NewWeatherController([]Species{SpeciesSnow, SpeciesFog}, nil, WithClock(noon))
	require.NoError(t, err)
	assert.Equal(t, SpeciesSnow, w.Mode())
}

func TestWeatherController_EmptyCycleIsAnError(t *testing.T) {
	_, err := NewWeatherController(nil, nil)
	assert.Error(t, err)
}

func TestWeatherController_Set(t *testing.T) {
	store := seededStore(t, "sakura")
	w, err := NewWeatherController(DefaultModeCycle(), store)
	require.NoError(t, err)

	require.NoError(t, w.Set(SpeciesRain))
	assert.Equal(t, SpeciesRain, w.Mode())
	value, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "rain", value)

	assert.Error(t, w.Set(Species(99)))
	assert.Equal(t, SpeciesRain, w.Mode())
}

func TestWeatherController_DarkThemeTracksFireflies(t *testing.T) {
	w, err := NewWeatherController(DefaultModeCycle(), seededStore(t, "sakura"))
	require.NoError(t, err)

	assert.False(t, w.DarkTheme())
	require.NoError(t, w.Set(SpeciesFireflies))
	assert.True(t, w.DarkTheme())
	require.NoError(t, w.Set(SpeciesSnow))
	assert.False(t, w.DarkTheme())
}

func TestDefaultModeForHour_Bands(t *testing.T) {
	headsSnow := func() float32 { return 0.1 }
	tailsRain := func() float32 { return 0.9 }

	assert.Equal(t, SpeciesSnow, defaultModeForHour(6, headsSnow))
	assert.Equal(t, SpeciesRain, defaultModeForHour(11, tailsRain))
	assert.Equal(t, SpeciesSakura, defaultModeForHour(12, headsSnow))
	assert.Equal(t, SpeciesSakura, defaultModeForHour(16, headsSnow))
	assert.Equal(t, SpeciesAutumn, defaultModeForHour(17, headsSnow))
	assert.Equal(t, SpeciesAutumn, defaultModeForHour(18, headsSnow))
	assert.Equal(t, SpeciesFireflies, defaultModeForHour(19, headsSnow))
	assert.Equal(t, SpeciesFireflies, defaultModeForHour(23, headsSnow))
	assert.Equal(t, SpeciesFireflies, defaultModeForHour(3, headsSnow))
	assert.Equal(t, SpeciesFireflies, defaultModeForHour(5, headsSnow))
}

func TestFileModeStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.json")
	store := FileModeStore{Path: path}

	require.NoError(t, store.Save("autumn"))
	value, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "autumn", value)

	// The controller survives a restart on the persisted value.
	w, err := NewWeatherController(DefaultModeCycle(), store)
	require.NoError(t, err)
	assert.Equal(t, SpeciesAutumn, w.Mode())
}

func TestFileModeStore_RejectsForeignKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"other.setting","mode":"snow"}`), 0644))

	_, err := FileModeStore{Path: path}.Load()
	assert.Error(t, err)
}

func TestFileModeStore_MissingFileFallsBack(t *testing.T) {
	store := FileModeStore{Path: filepath.Join(t.TempDir(), "absent.json")}
	night := func() time.Time {
		return time.Date(2024, 3, 14, 2, 0, 0, 0, time.UTC)
	}

	w, err := NewWeatherController(DefaultModeCycle(), store, WithClock(night))
	require.NoError(t, err)
	assert.Equal(t, SpeciesFireflies, w.Mode())
}
