package atmos

import (
	"reflect"
)

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	app := &App{
		resources: make(map[reflect.Type]any),
		systems:   make(map[string][]systemFn),
		stages:    defaultStages(),
	}
	for _, stage := range app.stages {
		app.systems[stage.Name] = make([]systemFn, 0)
	}
	return &AppBuilder{app: app}
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

func (b *AppBuilder) Build() *App {
	app := b.app
	commands := &Commands{app: app}

	for _, module := range b.modules {
		module.Install(app, commands)
		app.modules = append(app.modules, module)
	}

	return app
}
