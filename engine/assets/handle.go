package assets

import (
	"github.com/google/uuid"
)

// AssetType categorizes what an asset decodes into. It is inferred from the
// file extension.
type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeBytes
	AssetTypeImage
	AssetTypeAudio
	AssetTypeText
	// AssetTypeGenerated marks assets inserted directly by the application
	// (atlas layouts, materials) rather than loaded from disk.
	AssetTypeGenerated
)

// LoadState describes where an asset is in its load lifecycle.
type LoadState int

const (
	LoadStateNotLoaded LoadState = iota
	LoadStateLoading
	LoadStateLoaded
	LoadStateFailed
)

func (ls LoadState) String() string {
	switch ls {
	case LoadStateNotLoaded:
		return "not-loaded"
	case LoadStateLoading:
		return "loading"
	case LoadStateLoaded:
		return "loaded"
	case LoadStateFailed:
		return "failed"
	}
	return "unknown"
}

// Handle is an opaque reference to one asset tracked by the server. Handles
// are cheap to copy and compare.
type Handle struct {
	ID   uuid.UUID
	Path string
	Type AssetType
}

// RecursiveLoadState aggregates the load state of a set of handles: Failed
// if any handle failed, Loaded when every handle is loaded, Loading
// otherwise. It also returns how many handles are already loaded.
func RecursiveLoadState(server Server, handles []Handle) (LoadState, int) {
	done := 0
	failed := false
	for _, h := range handles {
		switch server.LoadState(h) {
		case LoadStateLoaded:
			done++
		case LoadStateFailed:
			failed = true
		}
	}
	if failed {
		return LoadStateFailed, done
	}
	if done == len(handles) {
		return LoadStateLoaded, done
	}
	return LoadStateLoading, done
}
