package loading

import (
	"reflect"

	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/core"
	"github.com/spaghettifunk/gantry/engine/dynamic"
	"github.com/spaghettifunk/gantry/engine/states"
)

// collectionEntry is one registered collection's in-flight bookkeeping for
// the current pass.
type collectionEntry struct {
	collection AssetCollection
	typ        reflect.Type
	handles    []assets.Handle
	retired    bool
	created    bool
}

// fileLoad tracks one dynamic collection file requested this pass.
type fileLoad struct {
	path   string
	handle assets.Handle
}

// State describes one loading state: which application state owns it, where
// to go afterwards, and what to load while it is active. Built fluently and
// handed to System.AddLoadingState.
type State struct {
	id     states.StateID
	config *Config

	// Registration order is iteration order for the whole pass.
	collections []AssetCollection
	files       []string
	finally     []FinallyConstruct

	// Per-pass runtime state.
	phase    Phase
	inflight []*collectionEntry
	dynFiles map[dynamic.FileFormat][]fileLoad
	dynOrder []dynamic.FileFormat
}

func NewState(id states.StateID) *State {
	return &State{
		id:     id,
		config: newConfig(),
		phase:  PhaseInitialize,
	}
}

// ContinueTo sets the application state entered once loading succeeds.
func (s *State) ContinueTo(next states.StateID) *State {
	s.config.Next = next
	return s
}

// OnFailureContinueTo sets the application state entered when any
// collection or dynamic file fails to load.
func (s *State) OnFailureContinueTo(failure states.StateID) *State {
	s.config.Failure = failure
	return s
}

// WithCollection registers a collection for this loading state. Registering
// the same collection type twice is allowed: both registrations run their
// own load/poll/create cycle, and the duplicate is warned about once.
func (s *State) WithCollection(c AssetCollection) *State {
	typ := reflect.TypeOf(c)
	for _, existing := range s.collections {
		if reflect.TypeOf(existing) == typ {
			core.LogWarn("loading state '%s' - collection type %s registered more than once", s.id, typ)
			break
		}
	}
	s.collections = append(s.collections, c)
	return s
}

// WithDynamicCollectionsFile registers dynamic asset collection files to be
// loaded and merged before this state's collections start loading.
func (s *State) WithDynamicCollectionsFile(paths ...string) *State {
	s.files = append(s.files, paths...)
	return s
}

// WithFinally queues a callback constructing a resource that depends on
// fully-loaded collections. Callbacks run in registration order during the
// finalize phase.
func (s *State) WithFinally(fn FinallyConstruct) *State {
	s.finally = append(s.finally, fn)
	return s
}

// ID returns the owning application state.
func (s *State) ID() states.StateID {
	return s.id
}

// CurrentPhase exposes the internal phase, mainly for diagnostics.
func (s *State) CurrentPhase() Phase {
	return s.phase
}

// Config exposes the per-state configuration.
func (s *State) Configuration() *Config {
	return s.config
}

// reset discards the previous pass and forces the phase machine back to
// PhaseInitialize. Runs whenever the owning application state is entered.
func (s *State) reset() {
	s.phase = PhaseInitialize
	s.inflight = nil
	s.dynFiles = nil
	s.dynOrder = nil
	s.config.beginPass()
	core.LogDebug("loading state '%s' - reset to %s", s.id, s.phase)
}
