package atmos

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the host scene context consumed by the simulation (rain
// depth fog) and the renderer (view matrix).
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
	Near     float32
	Far      float32
}

func defaultCamera() *Camera {
	return &Camera{
		Position: mgl32.Vec3{0, 0, 12},
		Target:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     mgl32.DegToRad(50),
		Near:     0.1,
		Far:      100,
	}
}

// EffectRegistry tracks the compositors mounted for the active mode.
// One mode maps to one compositor, except autumn, which splits its
// total count across three leaf shapes.
type EffectRegistry struct {
	active  []*EffectCompositor
	mounted Species
	hasAny  bool

	counts     map[Species]int
	baseBounds Bounds
	log        Logger
}

func (r *EffectRegistry) Active() []*EffectCompositor { return r.active }

// mount tears down the previous mode's compositors and builds the new
// ones. Geometry disposal happens before the compositors are dropped.
func (r *EffectRegistry) mount(mode Species, bounds Bounds) error {
	for _, c := range r.active {
		c.Dispose()
	}
	r.active = r.active[:0]

	count := r.counts[mode]
	if mode == SpeciesAutumn {
		// TotalCount split three ways across the leaf mix.
		shapes := []LeafShape{LeafMaple, LeafGinkgo, LeafGeneric}
		share := count / len(shapes)
		for i, shape := range shapes {
			n := share
			if i == 0 {
				n = count - share*(len(shapes)-1) // remainder goes to maple
			}
			c, err := NewEffectCompositor(EffectConfig{
				Count:  n,
				Bounds: bounds,
				Params: DefaultAutumnParams(shape),
			}, r.log)
			if err != nil {
				return err
			}
			r.active = append(r.active, c)
		}
	} else {
		c, err := NewEffectCompositor(EffectConfig{
			Count:  count,
			Bounds: bounds,
			Params: DefaultParams(mode),
		}, r.log)
		if err != nil {
			return err
		}
		r.active = append(r.active, c)
	}

	r.mounted = mode
	r.hasAny = true
	return nil
}

func (r *EffectRegistry) disposeAll() {
	for _, c := range r.active {
		c.Dispose()
	}
	r.active = r.active[:0]
	r.hasAny = false
}

func defaultEffectCounts() map[Species]int {
	return map[Species]int{
		SpeciesSakura:    300,
		SpeciesFireflies: 120,
		SpeciesSnow:      400,
		SpeciesRain:      500,
		SpeciesAutumn:    240,
		SpeciesFog:       40,
	}
}

// WeatherModule installs the mode controller, the camera, the effect
// registry and the per-frame simulation system.
type WeatherModule struct {
	// Modes overrides the toggle cycle; defaults to DefaultModeCycle.
	Modes []Species
	// Store persists the active mode; nil means session-only.
	Store ModeStore
	// Counts overrides per-species instance counts.
	Counts map[Species]int
	// Bounds is the simulated volume at aspect ratio 1; the width is
	// rescaled from the live viewport every frame.
	Bounds Bounds
}

func (m WeatherModule) Install(app *App, cmd *Commands) {
	log := app.Logger()

	modes := m.Modes
	if len(modes) == 0 {
		modes = DefaultModeCycle()
	}
	counts := defaultEffectCounts()
	for s, n := range m.Counts {
		counts[s] = n
	}
	bounds := m.Bounds
	if bounds.Width <= 0 {
		bounds = Bounds{Width: 20, Height: 12, Depth: 16}
	}

	controller, err := NewWeatherController(modes, m.Store, WithControllerLogger(log))
	if err != nil {
		panic(err)
	}
	log.Infof("weather mode: %v (dark theme: %v)", controller.Mode(), controller.DarkTheme())

	cmd.AddResources(
		controller,
		defaultCamera(),
		&EffectRegistry{
			counts:     counts,
			baseBounds: bounds,
			log:        log,
		},
	)

	app.UseSystem(
		System(weatherToggleSystem).
			InStage(PreUpdate),
	)
	app.UseSystem(
		System(weatherSimulateSystem).
			InStage(Update),
	)
}

func weatherToggleSystem(input *Input, controller *WeatherController, registry *EffectRegistry) {
	if input.JustPressed[KeyT] || input.JustPressed[KeySpace] {
		mode := controller.Toggle()
		registry.log.Infof("weather mode: %v (dark theme: %v)", mode, controller.DarkTheme())
	}
}

// weatherSimulateSystem is the per-frame driver: mounts the active
// mode's compositors on demand, derives the live view bounds from the
// window, and steps every active compositor once.
func weatherSimulateSystem(
	controller *WeatherController,
	registry *EffectRegistry,
	clock *Time,
	window *WindowState,
	camera *Camera,
) {
	mode := controller.Mode()
	bounds := registry.viewBounds(window)

	if !registry.hasAny || registry.mounted != mode {
		if err := registry.mount(mode, bounds); err != nil {
			// Configuration errors surface at mount; the effect stays
			// dark rather than taking the host down.
			registry.log.Errorf("mount %v: %v", mode, err)
			registry.disposeAll()
			return
		}
	}

	view := View{Bounds: bounds, CameraPos: camera.Position}
	tick := Clock{Elapsed: clock.Elapsed, Dt: clock.Dt}
	for _, c := range registry.active {
		c.Step(view, tick)
	}
}

// viewBounds rescales the configured volume's width by the live window
// aspect ratio, read fresh each frame.
func (r *EffectRegistry) viewBounds(window *WindowState) Bounds {
	bounds := r.baseBounds
	if window != nil && window.WindowHeight > 0 {
		aspect := float32(window.WindowWidth) / float32(window.WindowHeight)
		bounds.Width = bounds.Height * aspect
	}
	return bounds
}
