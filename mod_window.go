package atmos

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowState is the single shared GLFW window resource. WindowWidth and
// WindowHeight are refreshed from the framebuffer every frame so spawn
// bounds track live resizes instead of the size at mount time.
type WindowState struct {
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

func (s *WindowState) Window() *glfw.Window { return s.windowGlfw }

func createWindowState(windowWidth int, windowHeight int, windowTitle string) *WindowState {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // wgpu owns the surface, not OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		panic(err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}
}

// PlatformWindowModule provides the shared WindowState resource.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "Atmos"
	}
	return &PlatformWindowModule{Width: width, Height: height, Title: title}
}

func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	ws := createWindowState(m.Width, m.Height, m.Title)
	cmd.AddResources(ws)

	app.UseSystem(
		System(windowEventsSystem).
			InStage(Prelude),
	)
}

func windowEventsSystem(state *WindowState, control *AppControl) {
	glfw.PollEvents()

	if state.windowGlfw.ShouldClose() {
		control.QuitRequested = true
		return
	}

	state.WindowWidth, state.WindowHeight = state.windowGlfw.GetFramebufferSize()
}
