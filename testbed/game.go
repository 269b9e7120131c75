package testbed

import (
	"fmt"

	"github.com/spaghettifunk/gantry/engine"
	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/loading"
	"github.com/spaghettifunk/gantry/engine/resources"
	"github.com/spaghettifunk/gantry/engine/states"
)

const (
	StateLoading states.StateID = "loading"
	StateMenu    states.StateID = "menu"
	StateError   states.StateID = "error_screen"
)

// Abort the demo if loading makes no progress for this long.
const watchdogSeconds = 10.0

type AudioAssets struct {
	Plop assets.Handle
}

func (a *AudioAssets) Load(ctx *loading.Context) []assets.Handle {
	a.Plop = ctx.Server.Load("audio/plop.ogg")
	return []assets.Handle{a.Plop}
}

func (a *AudioAssets) Create(ctx *loading.Context) error {
	value, ok := ctx.Server.Get(a.Plop)
	if !ok {
		return fmt.Errorf("plop.ogg vanished between load and create")
	}
	core.LogInfo("audio ready: %s (%s)", a.Plop.Path, value.(*assets.Audio).Format)
	return nil
}

type ImageAssets struct {
	Tree      assets.Handle
	Character assets.Handle
	Tiles     []assets.Handle
}

func (i *ImageAssets) Load(ctx *loading.Context) []assets.Handle {
	i.Tree = ctx.Server.Load("images/tree.png")
	handles := []assets.Handle{i.Tree}
	handles = append(handles, ctx.DynamicHandles("character")...)
	handles = append(handles, ctx.OptionalDynamicHandles("tileset")...)
	return handles
}

func (i *ImageAssets) Create(ctx *loading.Context) error {
	i.Character = ctx.DynamicSingle("character")
	if tiles, ok := ctx.OptionalDynamicMany("tileset"); ok {
		i.Tiles = tiles
	}
	return nil
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	clock    *core.Clock
	tracker  *loading.ProgressTracker
	lastDone int
}

func NewTestGame() *TestGame {
	config, err := engine.LoadApplicationConfig("testbed/config.toml")
	if err != nil {
		core.LogWarn("testbed - cannot read config.toml (%s), using defaults", err.Error())
		config = &engine.ApplicationConfig{
			Name:               "Gantry Testbed",
			LogLevel:           core.DebugLevel,
			AssetBasePath:      "testbed/assets",
			WatchAssets:        true,
			TargetFrameSeconds: 1.0 / 60.0,
		}
	}

	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				clock: core.NewClock(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	app := g.App
	state := g.State.(*gameState)

	state.tracker = loading.NewProgressTracker(app.Events())

	// The "character" key is decided at run time; keys.toml can override it.
	app.DynamicAssets().Register("character", dynamic.File{Path: "images/zombie.png"})

	ls := loading.NewState(StateLoading).
		ContinueTo(StateMenu).
		OnFailureContinueTo(StateError).
		WithDynamicCollectionsFile("keys.toml").
		WithCollection(&AudioAssets{}).
		WithCollection(&ImageAssets{}).
		WithFinally(func(ctx *loading.Context) interface{} {
			audio, _ := resources.Get[*AudioAssets](ctx.Resources)
			images, _ := resources.Get[*ImageAssets](ctx.Resources)
			core.LogInfo("finalizing with %v and %v", audio.Plop.Path, images.Tree.Path)
			return nil
		})
	if err := app.AddLoadingState(ls); err != nil {
		return err
	}

	app.States().OnEnter(StateLoading, func(states.StateID) {
		state.clock.Start()
		state.tracker.Reset()
	})
	app.States().OnEnter(StateMenu, func(states.StateID) {
		images, _ := resources.Get[*ImageAssets](app.Resources())
		core.LogInfo("menu ready, character sprite is '%s'", images.Character.Path)
		app.Events().FireDeferred(core.EventCodeApplicationQuit, g, core.EventContext{})
	})
	app.States().OnEnter(StateError, func(states.StateID) {
		core.LogError("loading failed, shutting down")
		app.Events().FireDeferred(core.EventCodeApplicationQuit, g, core.EventContext{})
	})

	app.States().Start(StateLoading)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	app := g.App
	state := g.State.(*gameState)

	if app.States().Current() != StateLoading {
		return nil
	}

	done, total := state.tracker.Overall()
	if done != state.lastDone {
		state.lastDone = done
		state.clock.Start()
		core.LogInfo("loading %d/%d (%.0f%%)", done, total, state.tracker.Ratio()*100)
	}

	state.clock.Update()
	if state.clock.Elapsed() > watchdogSeconds {
		return fmt.Errorf("loading made no progress for %.0fs, giving up", watchdogSeconds)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shutting down")
	return nil
}
