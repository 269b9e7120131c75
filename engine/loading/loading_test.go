package loading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/resources"
	"github.com/spaghettifunk/gantry/engine/states"
)

// fakeServer is a deterministic, synchronous asset server: every path is
// Loaded immediately unless marked failing or pending.
type fakeServer struct {
	byPath   map[string]assets.Handle
	statesBy map[uuid.UUID]assets.LoadState
	values   map[uuid.UUID]interface{}
	contents map[string]interface{}
	failing  map[string]bool
	pending  map[string]bool
	folders  map[string][]string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		byPath:   make(map[string]assets.Handle),
		statesBy: make(map[uuid.UUID]assets.LoadState),
		values:   make(map[uuid.UUID]interface{}),
		contents: make(map[string]interface{}),
		failing:  make(map[string]bool),
		pending:  make(map[string]bool),
		folders:  make(map[string][]string),
	}
}

func (f *fakeServer) Load(path string) assets.Handle {
	if h, ok := f.byPath[path]; ok {
		return h
	}
	h := assets.Handle{ID: uuid.New(), Path: path, Type: assets.DetermineAssetType(path)}
	f.byPath[path] = h
	switch {
	case f.failing[path]:
		f.statesBy[h.ID] = assets.LoadStateFailed
	case f.pending[path]:
		f.statesBy[h.ID] = assets.LoadStateLoading
	default:
		f.statesBy[h.ID] = assets.LoadStateLoaded
		f.values[h.ID] = f.contents[path]
	}
	return h
}

func (f *fakeServer) LoadFolder(dir string) []assets.Handle {
	var out []assets.Handle
	for _, p := range f.folders[dir] {
		out = append(out, f.Load(p))
	}
	return out
}

func (f *fakeServer) Insert(name string, value interface{}) assets.Handle {
	h := f.Load(name)
	f.statesBy[h.ID] = assets.LoadStateLoaded
	f.values[h.ID] = value
	return h
}

func (f *fakeServer) LoadState(h assets.Handle) assets.LoadState {
	return f.statesBy[h.ID]
}

func (f *fakeServer) Get(h assets.Handle) (interface{}, bool) {
	if f.statesBy[h.ID] != assets.LoadStateLoaded {
		return nil, false
	}
	return f.values[h.ID], true
}

// finish flips a pending path to loaded.
func (f *fakeServer) finish(path string) {
	delete(f.pending, path)
	if h, ok := f.byPath[path]; ok {
		f.statesBy[h.ID] = assets.LoadStateLoaded
		f.values[h.ID] = f.contents[path]
	}
}

// fail flips a pending path to failed.
func (f *fakeServer) fail(path string) {
	delete(f.pending, path)
	f.failing[path] = true
	if h, ok := f.byPath[path]; ok {
		f.statesBy[h.ID] = assets.LoadStateFailed
	}
}

type harness struct {
	bus     *core.EventBus
	machine *states.Machine
	server  *fakeServer
	store   *resources.Store
	sys     *System
}

func newHarness() *harness {
	bus := core.NewEventBus()
	machine := states.NewMachine(bus)
	server := newFakeServer()
	store := resources.NewStore()
	sys := NewSystem(machine, server, dynamic.NewRegistry(), dynamic.NewCollections(), store, bus)
	return &harness{bus: bus, machine: machine, server: server, store: store, sys: sys}
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.machine.Update(0.016)
		h.bus.Drain()
	}
}

// Test collections.

type AudioAssets struct {
	Plop      assets.Handle
	createRan *int
}

func (a *AudioAssets) Load(ctx *Context) []assets.Handle {
	a.Plop = ctx.Server.Load("audio/plop.ogg")
	return []assets.Handle{a.Plop}
}

func (a *AudioAssets) Create(ctx *Context) error {
	if a.createRan != nil {
		*a.createRan++
	}
	return nil
}

type ImageAssets struct {
	Tree assets.Handle
}

func (i *ImageAssets) Load(ctx *Context) []assets.Handle {
	i.Tree = ctx.Server.Load("images/tree.png")
	return []assets.Handle{i.Tree}
}

func (i *ImageAssets) Create(ctx *Context) error {
	return nil
}

type CharacterAssets struct {
	Character   assets.Handle
	Portrait    assets.Handle
	HasPortrait bool
}

func (c *CharacterAssets) Load(ctx *Context) []assets.Handle {
	handles := ctx.DynamicHandles("character")
	handles = append(handles, ctx.OptionalDynamicHandles("portrait")...)
	return handles
}

func (c *CharacterAssets) Create(ctx *Context) error {
	c.Character = ctx.DynamicSingle("character")
	c.Portrait, c.HasPortrait = ctx.OptionalDynamicSingle("portrait")
	return nil
}

// collectionWithKey requires one configurable dynamic key.
type collectionWithKey struct {
	key    string
	Handle assets.Handle
}

func (c *collectionWithKey) Load(ctx *Context) []assets.Handle {
	return ctx.DynamicHandles(c.key)
}

func (c *collectionWithKey) Create(ctx *Context) error {
	c.Handle = ctx.DynamicSingle(c.key)
	return nil
}

func TestLoadingReachesNextStateAndPublishesResources(t *testing.T) {
	h := newHarness()

	ls := NewState("loading").
		ContinueTo("menu").
		WithCollection(&AudioAssets{}).
		WithCollection(&ImageAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("menu"), h.machine.Current())

	audio, ok := resources.Get[*AudioAssets](h.store)
	require.True(t, ok)
	require.Equal(t, "audio/plop.ogg", audio.Plop.Path)

	img, ok := resources.Get[*ImageAssets](h.store)
	require.True(t, ok)
	require.Equal(t, "images/tree.png", img.Tree.Path)
}

func TestLoadingFailureRedirectsAndPublishesNothing(t *testing.T) {
	h := newHarness()
	h.server.failing["audio/plop.ogg"] = true

	ls := NewState("loading").
		ContinueTo("menu").
		OnFailureContinueTo("error_screen").
		WithCollection(&AudioAssets{}).
		WithCollection(&ImageAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("error_screen"), h.machine.Current())

	_, ok := resources.Get[*AudioAssets](h.store)
	require.False(t, ok, "the failing collection must never be published")
	_, ok = resources.Get[*ImageAssets](h.store)
	require.False(t, ok, "finalize is skipped for the whole pass, the healthy collection stays unpublished too")
}

func TestLoadingFailureWithoutFailureStateStillContinues(t *testing.T) {
	h := newHarness()
	h.server.failing["audio/plop.ogg"] = true

	ls := NewState("loading").
		ContinueTo("menu").
		WithCollection(&AudioAssets{}).
		WithCollection(&ImageAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("menu"), h.machine.Current())
	require.True(t, ls.Configuration().Failed())

	_, ok := resources.Get[*AudioAssets](h.store)
	require.False(t, ok, "the failing collection is absent")
	_, ok = resources.Get[*ImageAssets](h.store)
	require.True(t, ok, "the healthy collection is published")
}

func TestLoadingWithoutNextStateParksInDone(t *testing.T) {
	h := newHarness()

	ls := NewState("loading").WithCollection(&AudioAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("loading"), h.machine.Current())
	require.Equal(t, PhaseDone, ls.CurrentPhase())

	_, ok := resources.Get[*AudioAssets](h.store)
	require.True(t, ok)
}

func TestDuplicateCollectionRegistrationRunsTwice(t *testing.T) {
	h := newHarness()

	created := 0
	ls := NewState("loading").
		ContinueTo("menu").
		WithCollection(&AudioAssets{createRan: &created}).
		WithCollection(&AudioAssets{createRan: &created})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("menu"), h.machine.Current())
	require.Equal(t, 2, created, "both registrations run their own construct cycle")

	_, ok := resources.Get[*AudioAssets](h.store)
	require.True(t, ok)
}

func TestPendingHandlesKeepStateInLoadingAssets(t *testing.T) {
	h := newHarness()
	h.server.pending["audio/plop.ogg"] = true

	ls := NewState("loading").ContinueTo("menu").WithCollection(&AudioAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(10)

	require.Equal(t, states.StateID("loading"), h.machine.Current())
	require.Equal(t, PhaseLoadingAssets, ls.CurrentPhase())

	h.server.finish("audio/plop.ogg")
	h.tick(3)

	require.Equal(t, states.StateID("menu"), h.machine.Current())
}

func TestReEnteringLoadingStateResetsPhase(t *testing.T) {
	h := newHarness()
	h.server.pending["audio/plop.ogg"] = true

	ls := NewState("loading").ContinueTo("menu").WithCollection(&AudioAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	// Registered after the loading system's own hook, so it observes the
	// phase right after the reset.
	var phaseAtEnter []Phase
	h.machine.OnEnter("loading", func(states.StateID) {
		phaseAtEnter = append(phaseAtEnter, ls.CurrentPhase())
	})

	h.machine.Start("loading")
	h.tick(3)
	require.Equal(t, PhaseLoadingAssets, ls.CurrentPhase(), "stuck on the pending handle")

	h.machine.SetNext("loading")
	h.tick(1)

	require.Equal(t, []Phase{PhaseInitialize, PhaseInitialize}, phaseAtEnter)
	require.False(t, ls.Configuration().Failed())

	// The fresh pass completes normally once the asset arrives.
	h.server.finish("audio/plop.ogg")
	h.tick(3)
	require.Equal(t, states.StateID("menu"), h.machine.Current())
}

func TestManuallyRegisteredDynamicKeyResolves(t *testing.T) {
	h := newHarness()

	ls := NewState("loading").ContinueTo("menu").WithCollection(&CharacterAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.sys.Registry().Register("character", dynamic.File{Path: "zombie.png"})

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("menu"), h.machine.Current())

	chars, ok := resources.Get[*CharacterAssets](h.store)
	require.True(t, ok)
	require.Equal(t, "zombie.png", chars.Character.Path)
	require.False(t, chars.HasPortrait, "the optional key is absent, not fatal")
}

func TestReEnteringStateReloadsDynamicCollectionFiles(t *testing.T) {
	h := newHarness()
	h.server.contents["keys.toml"] = assets.Text(`
[character]
type = "file"
path = "zombie.png"
`)

	ls := NewState("loading").
		ContinueTo("menu").
		WithDynamicCollectionsFile("keys.toml").
		WithCollection(&CharacterAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)
	require.Equal(t, states.StateID("menu"), h.machine.Current())

	// The second pass re-reads the file and must complete just like the
	// first; nothing from the previous pass may linger in flight.
	h.machine.SetNext("loading")
	h.tick(5)
	require.Equal(t, states.StateID("menu"), h.machine.Current())

	chars, ok := resources.Get[*CharacterAssets](h.store)
	require.True(t, ok)
	require.Equal(t, "zombie.png", chars.Character.Path)
}

func TestMissingRequiredDynamicKeyAborts(t *testing.T) {
	h := newHarness()

	ls := NewState("loading").ContinueTo("menu").WithCollection(&CharacterAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	require.PanicsWithValue(t,
		"collection *loading.CharacterAssets - no dynamic asset registered for required key 'character'",
		func() { h.tick(3) })
}

func TestDynamicKeyWithFormattingVerbsSurvivesIntact(t *testing.T) {
	h := newHarness()

	ls := NewState("loading").ContinueTo("menu").WithCollection(&collectionWithKey{key: "hp%dbar"})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	require.PanicsWithValue(t,
		"collection *loading.collectionWithKey - no dynamic asset registered for required key 'hp%dbar'",
		func() { h.tick(3) })
}

func TestWrongDynamicShapeAborts(t *testing.T) {
	h := newHarness()

	ls := NewState("loading").ContinueTo("menu").WithCollection(&CharacterAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.sys.Registry().Register("character", dynamic.Files{Paths: []string{"a.png", "b.png"}})

	h.machine.Start("loading")
	require.Panics(t, func() { h.tick(3) })
}

func TestDynamicCollectionFilesMergeBeforeCollectionsLoad(t *testing.T) {
	h := newHarness()
	h.server.contents["keys.toml"] = assets.Text(`
[character]
type = "file"
path = "zombie.png"
`)

	ls := NewState("loading").
		ContinueTo("menu").
		WithDynamicCollectionsFile("keys.toml").
		WithCollection(&CharacterAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("menu"), h.machine.Current())
	chars, ok := resources.Get[*CharacterAssets](h.store)
	require.True(t, ok)
	require.Equal(t, "zombie.png", chars.Character.Path)
}

func TestLaterDynamicCollectionFileWins(t *testing.T) {
	h := newHarness()
	h.server.contents["base.toml"] = assets.Text(`
[character]
type = "file"
path = "knight.png"
`)
	h.server.contents["override.toml"] = assets.Text(`
[character]
type = "file"
path = "zombie.png"
`)

	ls := NewState("loading").
		ContinueTo("menu").
		WithDynamicCollectionsFile("base.toml", "override.toml").
		WithCollection(&CharacterAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	chars, ok := resources.Get[*CharacterAssets](h.store)
	require.True(t, ok)
	require.Equal(t, "zombie.png", chars.Character.Path)
}

func TestFailingDynamicCollectionFileRedirects(t *testing.T) {
	h := newHarness()
	h.server.failing["keys.toml"] = true

	ls := NewState("loading").
		ContinueTo("menu").
		OnFailureContinueTo("error_screen").
		WithDynamicCollectionsFile("keys.toml").
		WithCollection(&AudioAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("error_screen"), h.machine.Current())
	_, ok := resources.Get[*AudioAssets](h.store)
	require.False(t, ok, "collections never start when the dynamic phase fails")
}

func TestUnparsableDynamicCollectionFileSetsFailure(t *testing.T) {
	h := newHarness()
	h.server.contents["keys.toml"] = assets.Text(`[broken`)

	ls := NewState("loading").
		ContinueTo("menu").
		OnFailureContinueTo("error_screen").
		WithDynamicCollectionsFile("keys.toml")
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, states.StateID("error_screen"), h.machine.Current())
}

func TestFinallyCallbacksRunInOrderAfterPublication(t *testing.T) {
	h := newHarness()

	type uiTheme struct{ Audio *AudioAssets }
	var order []string

	ls := NewState("loading").
		ContinueTo("menu").
		WithCollection(&AudioAssets{}).
		WithFinally(func(ctx *Context) interface{} {
			order = append(order, "theme")
			audio, ok := resources.Get[*AudioAssets](ctx.Resources)
			require.True(t, ok, "collections are published before finally callbacks run")
			return &uiTheme{Audio: audio}
		}).
		WithFinally(func(ctx *Context) interface{} {
			order = append(order, "second")
			return nil
		})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(5)

	require.Equal(t, []string{"theme", "second"}, order)
	theme, ok := resources.Get[*uiTheme](h.store)
	require.True(t, ok)
	require.NotNil(t, theme.Audio)
}

func TestConcurrentLoadingStatesAreIndependent(t *testing.T) {
	h := newHarness()
	h.server.failing["audio/plop.ogg"] = true

	first := NewState("loading").
		ContinueTo("menu").
		OnFailureContinueTo("error_screen").
		WithCollection(&AudioAssets{})
	second := NewState("loading_level").
		ContinueTo("playing").
		WithCollection(&ImageAssets{})
	require.NoError(t, h.sys.AddLoadingState(first))
	require.NoError(t, h.sys.AddLoadingState(second))

	h.machine.Start("loading")
	h.tick(5)
	require.Equal(t, states.StateID("error_screen"), h.machine.Current())

	h.machine.SetNext("loading_level")
	h.tick(5)
	require.Equal(t, states.StateID("playing"), h.machine.Current())

	_, ok := resources.Get[*ImageAssets](h.store)
	require.True(t, ok)
}

func TestProgressTrackerAggregates(t *testing.T) {
	h := newHarness()
	h.server.pending["audio/plop.ogg"] = true

	tracker := NewProgressTracker(h.bus)

	ls := NewState("loading").
		ContinueTo("menu").
		WithCollection(&AudioAssets{}).
		WithCollection(&ImageAssets{})
	require.NoError(t, h.sys.AddLoadingState(ls))

	h.machine.Start("loading")
	h.tick(2)

	done, total := tracker.Overall()
	require.Equal(t, 2, total)
	require.Equal(t, 1, done, "the image is ready, the audio is still pending")

	h.server.finish("audio/plop.ogg")
	h.tick(3)

	done, total = tracker.Overall()
	require.Equal(t, total, done)
	require.Equal(t, states.StateID("menu"), h.machine.Current())
	require.Equal(t, 1.0, tracker.Ratio())
}

func TestProgressRatioStaysInUnitRange(t *testing.T) {
	bus := core.NewEventBus()
	tracker := NewProgressTracker(bus)

	require.Equal(t, 0.0, tracker.Ratio(), "an empty tracker reports zero")

	bus.Fire(core.EventCodeLoadingProgress, t, core.EventContext{Name: "a", Done: 1, Total: 2})
	require.Equal(t, 0.5, tracker.Ratio())

	// A misbehaving reporter must not push the ratio past 1.
	bus.Fire(core.EventCodeLoadingProgress, t, core.EventContext{Name: "a", Done: 5, Total: 2})
	require.Equal(t, 1.0, tracker.Ratio())
}
