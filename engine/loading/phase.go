package loading

// Phase is one step of the internal loading sequencer. Transitions are
// strictly forward; only re-entering the owning application state resets a
// phase back to PhaseInitialize.
type Phase int

const (
	PhaseInitialize Phase = iota
	PhaseLoadingDynamicCollections
	PhaseLoadingAssets
	PhaseFinalize
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialize:
		return "initialize"
	case PhaseLoadingDynamicCollections:
		return "loading-dynamic-collections"
	case PhaseLoadingAssets:
		return "loading-assets"
	case PhaseFinalize:
		return "finalize"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}
