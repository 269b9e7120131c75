package loading

import (
	"reflect"

	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/resources"
	"github.com/spaghettifunk/gantry/engine/states"
)

// System owns every registered loading state and drives their phase
// machines from the host state machine's schedules. All work happens
// synchronously inside the per-tick update; waiting on an asset is a
// poll-and-return-early, never a blocking call.
type System struct {
	machine     *states.Machine
	server      assets.Server
	registry    *dynamic.Registry
	collections *dynamic.Collections
	store       *resources.Store
	bus         *core.EventBus

	loadingStates map[states.StateID]*State
}

func NewSystem(
	machine *states.Machine,
	server assets.Server,
	registry *dynamic.Registry,
	collections *dynamic.Collections,
	store *resources.Store,
	bus *core.EventBus,
) *System {
	return &System{
		machine:       machine,
		server:        server,
		registry:      registry,
		collections:   collections,
		store:         store,
		bus:           bus,
		loadingStates: make(map[states.StateID]*State),
	}
}

// AddLoadingState wires a loading state into the host state machine:
// entering the owning application state resets the phase machine, and the
// state's schedule advances it once per tick. Registering a second loading
// state for the same application state replaces the first with a warning.
func (sys *System) AddLoadingState(s *State) error {
	if _, exists := sys.loadingStates[s.id]; exists {
		core.LogWarn("loading system - state '%s' already has a loading state; replacing it", s.id)
	}
	if err := sys.collections.Register(s.id, s.files...); err != nil {
		return err
	}
	sys.loadingStates[s.id] = s

	sys.machine.OnEnter(s.id, func(states.StateID) {
		s.reset()
	})
	sys.machine.AddSchedule(s.id, func(float64) {
		sys.tick(s)
	})
	return nil
}

// Registry exposes the dynamic asset registry for manual registrations.
func (sys *System) Registry() *dynamic.Registry {
	return sys.registry
}

// tick advances one loading state through as many phases as this tick's
// completion results allow. Within a tick, dynamic collection checks run
// before collection checks, which run before finalize.
func (sys *System) tick(s *State) {
	if s.phase == PhaseInitialize {
		sys.startDynamicCollections(s)
		s.phase = PhaseLoadingDynamicCollections
	}

	if s.phase == PhaseLoadingDynamicCollections {
		sys.checkDynamicCollections(s)
		if len(s.config.loadingDynamicCollections) == 0 {
			if s.config.loadingFailed && s.config.Failure != states.StateNone {
				// The failure state takes over; collections never start.
				s.phase = PhaseDone
			} else {
				sys.startCollections(s)
				s.phase = PhaseLoadingAssets
			}
		}
	}

	if s.phase == PhaseLoadingAssets {
		sys.checkCollections(s)
		if len(s.config.loadingCollections) == 0 {
			if s.config.loadingFailed && s.config.Failure != states.StateNone {
				// No partial finalize: a configured failure state skips it.
				s.phase = PhaseDone
			} else {
				s.phase = PhaseFinalize
			}
		}
	}

	if s.phase == PhaseFinalize {
		sys.finalize(s)
		s.phase = PhaseDone
	}

	if s.phase == PhaseDone {
		sys.exit(s)
	}
}

// startDynamicCollections issues load requests for every registered dynamic
// collection file and records each file format as in-flight.
func (sys *System) startDynamicCollections(s *State) {
	s.dynFiles = make(map[dynamic.FileFormat][]fileLoad)
	s.dynOrder = nil

	for _, format := range sys.collections.Formats(s.id) {
		s.dynOrder = append(s.dynOrder, format)
		s.config.loadingDynamicCollections[format] = struct{}{}

		for _, path := range sys.collections.Files(s.id, format) {
			s.dynFiles[format] = append(s.dynFiles[format], fileLoad{
				path:   path,
				handle: sys.server.Load(path),
			})
		}
	}
}

// checkDynamicCollections polls in-flight collection files. Completed
// formats are merged into the dynamic registry in file registration order
// (last write wins on key collisions); a failed file sets the sticky
// failure flag.
func (sys *System) checkDynamicCollections(s *State) {
	for _, format := range s.dynOrder {
		if _, inflight := s.config.loadingDynamicCollections[format]; !inflight {
			continue
		}
		files := s.dynFiles[format]
		handles := make([]assets.Handle, 0, len(files))
		for _, f := range files {
			handles = append(handles, f.handle)
		}

		state, done := assets.RecursiveLoadState(sys.server, handles)
		switch state {
		case assets.LoadStateFailed:
			s.config.loadingFailed = true
			delete(s.config.loadingDynamicCollections, format)
			core.LogError("loading state '%s' - failed to load %s dynamic collection files", s.id, format)
			sys.bus.FireDeferred(core.EventCodeLoadingFailed, sys, core.EventContext{
				State: string(s.id),
				Name:  string(format),
			})
		case assets.LoadStateLoaded:
			sys.mergeDynamicCollections(s, format, files)
			delete(s.config.loadingDynamicCollections, format)
		default:
			sys.bus.FireDeferred(core.EventCodeLoadingProgress, sys, core.EventContext{
				State: string(s.id),
				Name:  string(format),
				Done:  done,
				Total: len(handles),
			})
		}
	}
}

func (sys *System) mergeDynamicCollections(s *State, format dynamic.FileFormat, files []fileLoad) {
	for _, f := range files {
		value, ok := sys.server.Get(f.handle)
		if !ok {
			s.config.loadingFailed = true
			core.LogError("loading state '%s' - collection file '%s' vanished before merge", s.id, f.path)
			return
		}
		data, ok := rawBytes(value)
		if !ok {
			s.config.loadingFailed = true
			core.LogError("loading state '%s' - collection file '%s' did not load as text", s.id, f.path)
			return
		}
		parsed, err := dynamic.Parse(data, format)
		if err != nil {
			s.config.loadingFailed = true
			core.LogError("loading state '%s' - %s", s.id, err.Error())
			return
		}
		dynamic.Merge(sys.registry, parsed)
		core.LogDebug("loading state '%s' - merged %d dynamic assets from '%s'", s.id, len(parsed), f.path)
	}
}

func rawBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case assets.Text:
		return []byte(v), true
	case assets.Bytes:
		return v, true
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// startCollections calls Load on every registered collection, in
// registration order, and records each one as in-flight. Dynamic keys are
// resolved here, once, at call time.
func (sys *System) startCollections(s *State) {
	s.inflight = nil
	for _, c := range s.collections {
		typ := reflect.TypeOf(c)
		ctx := sys.contextFor(s, typ.String())
		entry := &collectionEntry{
			collection: c,
			typ:        typ,
			handles:    c.Load(ctx),
		}
		s.inflight = append(s.inflight, entry)
		s.config.loadingCollections[typ]++
		core.LogDebug("loading state '%s' - collection %s awaiting %d handles", s.id, typ, len(entry.handles))
	}
}

// checkCollections polls every in-flight collection. A failing handle
// retires the collection without constructing it and sets the sticky
// failure flag; a fully-loaded collection is created and published.
func (sys *System) checkCollections(s *State) {
	for _, entry := range s.inflight {
		if entry.retired {
			continue
		}

		state, done := assets.RecursiveLoadState(sys.server, entry.handles)
		switch state {
		case assets.LoadStateFailed:
			s.config.loadingFailed = true
			sys.retire(s, entry)
			core.LogError("loading state '%s' - collection %s failed to load", s.id, entry.typ)
			sys.bus.FireDeferred(core.EventCodeLoadingFailed, sys, core.EventContext{
				State: string(s.id),
				Name:  entry.typ.String(),
			})
		case assets.LoadStateLoaded:
			ctx := sys.contextFor(s, entry.typ.String())
			if err := entry.collection.Create(ctx); err != nil {
				s.config.loadingFailed = true
				sys.retire(s, entry)
				core.LogError("loading state '%s' - creating collection %s: %s", s.id, entry.typ, err.Error())
				break
			}
			// Publication waits for the finalize phase; a pass that is
			// redirected to its failure state publishes nothing.
			entry.created = true
			sys.retire(s, entry)
			sys.bus.FireDeferred(core.EventCodeLoadingProgress, sys, core.EventContext{
				State: string(s.id),
				Name:  entry.typ.String(),
				Done:  len(entry.handles),
				Total: len(entry.handles),
			})
			core.LogDebug("loading state '%s' - collection %s ready", s.id, entry.typ)
		default:
			sys.bus.FireDeferred(core.EventCodeLoadingProgress, sys, core.EventContext{
				State: string(s.id),
				Name:  entry.typ.String(),
				Done:  done,
				Total: len(entry.handles),
			})
		}
	}
}

func (sys *System) retire(s *State, entry *collectionEntry) {
	entry.retired = true
	if count := s.config.loadingCollections[entry.typ]; count <= 1 {
		delete(s.config.loadingCollections, entry.typ)
	} else {
		s.config.loadingCollections[entry.typ] = count - 1
	}
}

// finalize publishes every successfully created collection, then runs the
// deferred construct callbacks in registration order. Callbacks see the
// full set of published collections.
func (sys *System) finalize(s *State) {
	for _, entry := range s.inflight {
		if entry.created {
			sys.store.Insert(entry.collection)
		}
	}
	for _, fn := range s.finally {
		ctx := sys.contextFor(s, "finally")
		if res := fn(ctx); res != nil {
			sys.store.Insert(res)
		}
	}
}

// exit requests the follow-up application state. With no next state
// configured the machine parks in Done until the owning state is
// re-entered.
func (sys *System) exit(s *State) {
	switch {
	case s.config.loadingFailed && s.config.Failure != states.StateNone:
		sys.machine.SetNext(s.config.Failure)
	case s.config.Next != states.StateNone:
		sys.machine.SetNext(s.config.Next)
	}
}

func (sys *System) contextFor(s *State, collection string) *Context {
	return &Context{
		State:      s.id,
		Server:     sys.server,
		Dynamic:    sys.registry,
		Resources:  sys.store,
		collection: collection,
	}
}
