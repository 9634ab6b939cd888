package atmos

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"
)

// WeatherStorageKey is the fixed key the active mode is persisted under.
const WeatherStorageKey = "atmos.weather-mode"

// ModeStore persists the active weather mode as a single string value.
type ModeStore interface {
	Load() (string, error)
	Save(value string) error
}

type storedMode struct {
	Key  string `json:"key"`
	Mode string `json:"mode"`
}

// FileModeStore keeps the mode in a small JSON file.
type FileModeStore struct {
	Path string
}

func (s FileModeStore) Load() (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	var stored storedMode
	if err := json.Unmarshal(raw, &stored); err != nil {
		return "", fmt.Errorf("decode weather mode file: %w", err)
	}
	if stored.Key != WeatherStorageKey {
		return "", fmt.Errorf("unexpected storage key %q", stored.Key)
	}
	return stored.Mode, nil
}

func (s FileModeStore) Save(value string) error {
	raw, err := json.MarshalIndent(storedMode{Key: WeatherStorageKey, Mode: value}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, raw, 0644)
}

// MemoryModeStore is an in-process store for tests and embedded hosts.
type MemoryModeStore struct {
	value string
	set   bool
}

func (s *MemoryModeStore) Load() (string, error) {
	if !s.set {
		return "", fmt.Errorf("no stored mode")
	}
	return s.value, nil
}

func (s *MemoryModeStore) Save(value string) error {
	s.value = value
	s.set = true
	return nil
}

// DefaultModeCycle is the stock toggle order.
func DefaultModeCycle() []Species {
	return []Species{SpeciesSakura, SpeciesFireflies, SpeciesSnow, SpeciesRain, SpeciesAutumn, SpeciesFog}
}

// defaultModeForHour picks a mode from wall-clock hour when nothing
// valid is persisted. Policy (several historical variants exist; this
// one is the documented choice): [6,12) snow or rain by coin flip,
// [12,17) sakura, [17,19) autumn, everything else fireflies.
func defaultModeForHour(hour int, coin func() float32) Species {
	switch {
	case hour >= 6 && hour < 12:
		if coin() < 0.5 {
			return SpeciesSnow
		}
		return SpeciesRain
	case hour >= 12 && hour < 17:
		return SpeciesSakura
	case hour >= 17 && hour < 19:
		return SpeciesAutumn
	default:
		return SpeciesFireflies
	}
}

// WeatherController is the state machine over the configured mode cycle.
// Transitions are a cyclic advance; the selection is persisted on every
// change and restored on cold start.
type WeatherController struct {
	modes   []Species
	current int
	store   ModeStore
	now     func() time.Time
	coin    func() float32
	log     Logger
}

type ControllerOption func(*WeatherController)

// WithClock substitutes the wall clock, for deterministic tests of the
// time-of-day default.
func WithClock(now func() time.Time) ControllerOption {
	return func(w *WeatherController) { w.now = now }
}

// WithCoin substitutes the coin flip used by the morning band.
func WithCoin(coin func() float32) ControllerOption {
	return func(w *WeatherController) { w.coin = coin }
}

func WithControllerLogger(log Logger) ControllerOption {
	return func(w *WeatherController) { w.log = log }
}

// NewWeatherController restores the persisted mode if it is valid and in
// the cycle; anything else falls back to the time-of-day default. An
// empty mode list is a configuration error.
func NewWeatherController(modes []Species, store ModeStore, opts ...ControllerOption) (*WeatherController, error) {
	if len(modes) == 0 {
		return nil, fmt.Errorf("weather controller needs at least one mode")
	}
	w := &WeatherController{
		modes: modes,
		store: store,
		now:   time.Now,
		coin:  rand.Float32,
		log:   NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.current = w.coldStartIndex()
	return w, nil
}

func (w *WeatherController) coldStartIndex() int {
	if w.store != nil {
		if value, err := w.store.Load(); err == nil {
			if mode, perr := ParseSpecies(value); perr == nil {
				if idx := w.indexOf(mode); idx >= 0 {
					return idx
				}
				w.log.Warnf("persisted mode %q not in cycle, using time-of-day default", value)
			} else {
				w.log.Warnf("invalid persisted mode %q, using time-of-day default", value)
			}
		}
	}

	fallback := defaultModeForHour(w.now().Hour(), w.coin)
	if idx := w.indexOf(fallback); idx >= 0 {
		return idx
	}
	// Fallback species not configured in this cycle; start at the front.
	return 0
}

func (w *WeatherController) indexOf(mode Species) int {
	for i, m := range w.modes {
		if m == mode {
			return i
		}
	}
	return -1
}

// Mode returns the active weather mode.
func (w *WeatherController) Mode() Species {
	return w.modes[w.current]
}

// Toggle advances to the next mode in the cycle and persists it.
func (w *WeatherController) Toggle() Species {
	w.current = (w.current + 1) % len(w.modes)
	w.persist()
	return w.Mode()
}

// Set selects a specific mode; it must be part of the cycle.
func (w *WeatherController) Set(mode Species) error {
	idx := w.indexOf(mode)
	if idx < 0 {
		return fmt.Errorf("mode %v is not in the configured cycle", mode)
	}
	if idx != w.current {
		w.current = idx
		w.persist()
	}
	return nil
}

func (w *WeatherController) persist() {
	if w.store == nil {
		return
	}
	if err := w.store.Save(w.Mode().String()); err != nil {
		// Persistence failure degrades to session-only mode selection.
		w.log.Warnf("persist weather mode: %v", err)
	}
}

// DarkTheme reports whether the host should render its dark theme. The
// coupling to fireflies is deliberate: it is the only nighttime effect.
func (w *WeatherController) DarkTheme() bool {
	return w.Mode() == SpeciesFireflies
}
