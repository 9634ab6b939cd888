package atmos

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// App drives the per-frame loop: one pass over all stages per frame.
// Systems are plain functions whose pointer parameters are resolved from
// the resource map by type.
type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any

	control AppControl
}

// AppControl is the quit switch, available to systems as a resource.
type AppControl struct {
	QuitRequested bool
}

// Module installs resources and systems into an App during build.
type Module interface {
	Install(app *App, cmd *Commands)
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// Quit asks the run loop to stop after the current frame.
func (app *App) Quit() {
	app.control.QuitRequested = true
}

// Run executes all stages repeatedly until quit is requested.
func (app *App) Run() {
	for !app.control.QuitRequested {
		app.RunFrame()
	}
}

// RunFrame executes exactly one pass over all stages. Exposed separately
// so hosts with their own outer loop (or tests) can drive frames manually.
func (app *App) RunFrame() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
	}
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Ptr {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

var typeOfCommands = reflect.TypeOf(Commands{})
var typeOfAppControl = reflect.TypeOf(AppControl{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if underlyingType == typeOfAppControl {
			args[i] = reflect.ValueOf(&app.control)
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			panic(msg)
		}
	}
	systemValue.Call(args)
}

// Logger returns the first Logger resource if present, otherwise a no-op
// logger. Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}
