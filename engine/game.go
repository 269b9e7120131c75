package engine

type Game struct {
	ApplicationConfig *ApplicationConfig
	// App is assigned by engine.New before any callback runs.
	App          *Application
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Shutdown func() error
