package atmos

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	KeyD int = iota
	KeyQ
	KeyT
	KeyW
	KeySpace
	KeyEscape

	keyCount
)

var keyToGlfw = map[int]glfw.Key{
	KeyD:      glfw.KeyD,
	KeyQ:      glfw.KeyQ,
	KeyT:      glfw.KeyT,
	KeyW:      glfw.KeyW,
	KeySpace:  glfw.KeySpace,
	KeyEscape: glfw.KeyEscape,
}

// Input is the polled keyboard state. The engine itself only uses the
// toggle and quit keys; the full Pressed array is for host systems.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool
}

type InputModule struct{}

func (mod InputModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Input{})
	app.UseSystem(
		System(inputSystem).
			InStage(PreUpdate),
	)
}

func inputSystem(s *WindowState, input *Input) {
	for key, glfwKey := range keyToGlfw {
		action := s.windowGlfw.GetKey(glfwKey)
		pressed := action == glfw.Press || action == glfw.Repeat

		input.JustPressed[key] = pressed && !input.Pressed[key]
		input.JustReleased[key] = !pressed && input.Pressed[key]
		input.Pressed[key] = pressed
	}
}
