package engine

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/loading"
	"github.com/spaghettifunk/gantry/engine/resources"
	"github.com/spaghettifunk/gantry/engine/states"
)

type ApplicationConfig struct {
	// The application name used in logs.
	Name     string        `toml:"name"`
	LogLevel core.LogLevel `toml:"log_level"`
	// The relative base path for assets.
	AssetBasePath string `toml:"asset_base_path"`
	// Watch the asset base path for changes.
	WatchAssets bool `toml:"watch_assets"`
	// Seconds per update tick; zero means run as fast as possible.
	TargetFrameSeconds float64 `toml:"target_frame_seconds"`
}

// LoadApplicationConfig reads an ApplicationConfig from a TOML file.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &ApplicationConfig{}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("application config '%s': %w", path, err)
	}
	return config, nil
}

// Application wires the engine pieces together: the state machine, the
// event bus, the asset manager, the resource store and the loading system.
type Application struct {
	game *Game

	bus          *core.EventBus
	machine      *states.Machine
	store        *resources.Store
	registry     *dynamic.Registry
	collections  *dynamic.Collections
	assetManager *assets.Manager
	loading      *loading.System

	isRunning bool
}

func New(game *Game) (*Application, error) {
	if game == nil || game.ApplicationConfig == nil {
		return nil, fmt.Errorf("engine.New requires a game with an application config")
	}

	core.SetLogLevel(game.ApplicationConfig.LogLevel)

	bus := core.NewEventBus()
	machine := states.NewMachine(bus)
	store := resources.NewStore()
	registry := dynamic.NewRegistry()
	collections := dynamic.NewCollections()

	manager, err := assets.NewManager(assets.ManagerConfig{
		AssetBasePath: game.ApplicationConfig.AssetBasePath,
		Watch:         game.ApplicationConfig.WatchAssets,
	})
	if err != nil {
		return nil, err
	}

	app := &Application{
		game:         game,
		bus:          bus,
		machine:      machine,
		store:        store,
		registry:     registry,
		collections:  collections,
		assetManager: manager,
		loading:      loading.NewSystem(machine, manager, registry, collections, store, bus),
	}
	game.App = app

	bus.Register(core.EventCodeApplicationQuit, app, func(core.SystemEventCode, interface{}, interface{}, core.EventContext) bool {
		app.isRunning = false
		return true
	})

	return app, nil
}

func (app *Application) Initialize() error {
	if app.game.FnInitialize != nil {
		if err := app.game.FnInitialize(); err != nil {
			return err
		}
	}
	core.LogInfo("%s initialized.", app.game.ApplicationConfig.Name)
	return nil
}

// Run drives the update loop until a quit event fires or Stop is called.
// Each tick advances the state machine (and with it every active loading
// schedule), drains deferred events and calls the game's update callback.
func (app *Application) Run() error {
	app.isRunning = true
	last := time.Now()

	for app.isRunning {
		now := time.Now()
		deltaTime := now.Sub(last).Seconds()
		last = now

		app.machine.Update(deltaTime)
		app.bus.Drain()

		if app.game.FnUpdate != nil {
			if err := app.game.FnUpdate(deltaTime); err != nil {
				return err
			}
		}

		if target := app.game.ApplicationConfig.TargetFrameSeconds; target > 0 {
			if elapsed := time.Since(now).Seconds(); elapsed < target {
				time.Sleep(time.Duration((target - elapsed) * float64(time.Second)))
			}
		}
	}
	return nil
}

// Stop ends the run loop after the current tick.
func (app *Application) Stop() {
	app.isRunning = false
}

func (app *Application) Shutdown() error {
	app.Stop()
	if app.game.FnShutdown != nil {
		if err := app.game.FnShutdown(); err != nil {
			return err
		}
	}
	return app.assetManager.Shutdown()
}

// AddLoadingState registers a loading state with the loading system.
func (app *Application) AddLoadingState(s *loading.State) error {
	return app.loading.AddLoadingState(s)
}

func (app *Application) States() *states.Machine {
	return app.machine
}

func (app *Application) Events() *core.EventBus {
	return app.bus
}

func (app *Application) Resources() *resources.Store {
	return app.store
}

func (app *Application) DynamicAssets() *dynamic.Registry {
	return app.registry
}

func (app *Application) Assets() *assets.Manager {
	return app.assetManager
}

func (app *Application) Loading() *loading.System {
	return app.loading
}
