package atmos

import (
	"reflect"
)

// Commands is the handle modules and systems use to mutate the App.
type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

// Resource returns the registered resource of type T, or nil if absent.
func Resource[T any](cmd *Commands) *T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if r, ok := cmd.app.resources[t]; ok {
		return r.(*T)
	}
	return nil
}

func (cmd *Commands) Quit() {
	cmd.app.Quit()
}
