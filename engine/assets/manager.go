package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/spaghettifunk/gantry/engine/core"
)

// Server is the surface the loading machinery polls against. Manager is the
// real implementation; tests substitute their own.
type Server interface {
	// Load requests the asset at path (relative to the asset base path) and
	// returns its handle immediately. Loading happens in the background.
	Load(path string) Handle
	// LoadFolder requests every file under dir, recursively.
	LoadFolder(dir string) []Handle
	// Insert publishes an application-generated asset under a name and
	// returns an already-loaded handle for it.
	Insert(name string, value interface{}) Handle
	// LoadState reports where the handle is in its load lifecycle.
	LoadState(h Handle) LoadState
	// Get returns the asset value once the handle is loaded.
	Get(h Handle) (interface{}, bool)
}

/** @brief The configuration for the asset manager. */
type ManagerConfig struct {
	/** @brief The relative base path for assets. */
	AssetBasePath string
	/** @brief How many background load workers to run. */
	NumWorkers int
	/** @brief Watch the asset base path and invalidate changed files. */
	Watch bool
}

type assetEntry struct {
	handle Handle
	state  LoadState
	value  interface{}
	err    error
}

type Manager struct {
	config ManagerConfig

	mutex   sync.RWMutex
	entries map[uuid.UUID]*assetEntry
	byPath  map[string]uuid.UUID
	loaders map[AssetType]Loader

	jobs *JobSystem

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	isClosed bool
}

func NewManager(config ManagerConfig) (*Manager, error) {
	if config.NumWorkers == 0 {
		config.NumWorkers = 2
	}

	jobs, err := NewJobSystem(config.NumWorkers, 64)
	if err != nil {
		return nil, err
	}

	am := &Manager{
		config:  config,
		entries: make(map[uuid.UUID]*assetEntry),
		byPath:  make(map[string]uuid.UUID),
		loaders: make(map[AssetType]Loader),
		jobs:    jobs,
		done:    make(chan struct{}),
	}

	// Register loaders
	am.registerLoader(AssetTypeBytes, BytesLoader{})
	am.registerLoader(AssetTypeText, TextLoader{})
	am.registerLoader(AssetTypeImage, ImageLoader{})
	am.registerLoader(AssetTypeAudio, AudioLoader{})

	if config.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		am.fsnotify = watcher
		if err := am.watchRecursive(config.AssetBasePath); err != nil {
			core.LogWarn("asset manager - cannot watch '%s': %s", config.AssetBasePath, err.Error())
		}
		go am.start()
	}

	core.LogInfo("Asset manager initialized with base path '%s'.", config.AssetBasePath)

	return am, nil
}

func (am *Manager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

func (am *Manager) Load(path string) Handle {
	return am.load(filepath.Join(am.config.AssetBasePath, path))
}

func (am *Manager) load(fullPath string) Handle {
	am.mutex.Lock()

	if id, ok := am.byPath[fullPath]; ok {
		entry := am.entries[id]
		if entry.state != LoadStateNotLoaded {
			am.mutex.Unlock()
			return entry.handle
		}
		// Invalidated by the watcher; fall through and reload in place.
		entry.state = LoadStateLoading
		am.mutex.Unlock()
		am.submitLoad(entry.handle, fullPath)
		return entry.handle
	}

	handle := Handle{
		ID:   uuid.New(),
		Path: fullPath,
		Type: DetermineAssetType(fullPath),
	}
	am.entries[handle.ID] = &assetEntry{handle: handle, state: LoadStateLoading}
	am.byPath[fullPath] = handle.ID
	am.mutex.Unlock()

	am.submitLoad(handle, fullPath)
	return handle
}

func (am *Manager) submitLoad(handle Handle, fullPath string) {
	loader, ok := am.loaders[handle.Type]
	if !ok {
		loader = am.loaders[AssetTypeBytes]
	}
	am.jobs.Submit(JobTask{
		OnStart: func() (interface{}, error) {
			return loader.Load(fullPath)
		},
		OnComplete: func(result interface{}) {
			am.finishLoad(handle.ID, result, nil)
			core.LogDebug("Successfully loaded asset '%s'.", fullPath)
		},
		OnFailure: func(err error) {
			am.finishLoad(handle.ID, nil, err)
		},
	})
}

func (am *Manager) finishLoad(id uuid.UUID, value interface{}, err error) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	entry, ok := am.entries[id]
	if !ok {
		return
	}
	if err != nil {
		entry.state = LoadStateFailed
		entry.err = err
		return
	}
	entry.state = LoadStateLoaded
	entry.value = value
	entry.err = nil
}

func (am *Manager) LoadFolder(dir string) []Handle {
	root := filepath.Join(am.config.AssetBasePath, dir)

	var handles []Handle
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		handles = append(handles, am.load(path))
		return nil
	})
	if err != nil {
		// Surface the walk failure as a failed handle so pollers see it.
		handle := Handle{ID: uuid.New(), Path: root, Type: AssetTypeNone}
		am.mutex.Lock()
		am.entries[handle.ID] = &assetEntry{
			handle: handle,
			state:  LoadStateFailed,
			err:    fmt.Errorf("asset manager - folder '%s': %w", root, err),
		}
		am.mutex.Unlock()
		core.LogError("asset manager - failed to load folder '%s': %s", root, err.Error())
		return []Handle{handle}
	}
	return handles
}

func (am *Manager) Insert(name string, value interface{}) Handle {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if id, ok := am.byPath[name]; ok {
		entry := am.entries[id]
		entry.value = value
		entry.state = LoadStateLoaded
		return entry.handle
	}

	handle := Handle{ID: uuid.New(), Path: name, Type: AssetTypeGenerated}
	am.entries[handle.ID] = &assetEntry{
		handle: handle,
		state:  LoadStateLoaded,
		value:  value,
	}
	am.byPath[name] = handle.ID
	return handle
}

func (am *Manager) LoadState(h Handle) LoadState {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	entry, ok := am.entries[h.ID]
	if !ok {
		return LoadStateNotLoaded
	}
	return entry.state
}

// LoadError returns the failure recorded for a handle, if any.
func (am *Manager) LoadError(h Handle) error {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	if entry, ok := am.entries[h.ID]; ok {
		return entry.err
	}
	return nil
}

func (am *Manager) Get(h Handle) (interface{}, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	entry, ok := am.entries[h.ID]
	if !ok || entry.state != LoadStateLoaded {
		return nil, false
	}
	return entry.value, true
}

func (am *Manager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil {
		close(am.done)
	}
	return am.jobs.Shutdown()
}

func (am *Manager) start() {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					am.watchRecursive(e.Name)
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0 {
				am.invalidate(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *Manager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// invalidate marks a changed file as not-loaded so the next Load for the
// same path re-reads it from disk.
func (am *Manager) invalidate(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if id, ok := am.byPath[path]; ok {
		entry := am.entries[id]
		if entry.state == LoadStateLoaded || entry.state == LoadStateFailed {
			entry.state = LoadStateNotLoaded
			core.LogDebug("asset manager - invalidated '%s'", path)
		}
	}
}
