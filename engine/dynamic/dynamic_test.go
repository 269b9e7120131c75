package dynamic

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gantry/engine/assets"
)

// fakeServer resolves every load synchronously; good enough for descriptor
// resolution tests.
type fakeServer struct {
	handles map[string]assets.Handle
	values  map[uuid.UUID]interface{}
	folders map[string][]string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		handles: make(map[string]assets.Handle),
		values:  make(map[uuid.UUID]interface{}),
		folders: make(map[string][]string),
	}
}

func (f *fakeServer) Load(path string) assets.Handle {
	if h, ok := f.handles[path]; ok {
		return h
	}
	h := assets.Handle{ID: uuid.New(), Path: path, Type: assets.DetermineAssetType(path)}
	f.handles[path] = h
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
	f.values[h.ID] = value
	return h
}

func (f *fakeServer) LoadState(h assets.Handle) assets.LoadState {
	return assets.LoadStateLoaded
}

func (f *fakeServer) Get(h assets.Handle) (interface{}, bool) {
	v, ok := f.values[h.ID]
	return v, ok
}

func TestFileResolvesToSingleHandle(t *testing.T) {
	server := newFakeServer()
	asset := File{Path: "zombie.png"}

	handles := asset.Load(server)
	require.Len(t, handles, 1)

	value, err := asset.Build(server)
	require.NoError(t, err)
	single, ok := value.Single()
	require.True(t, ok)
	require.Equal(t, handles[0], single, "build must resolve to the same handle load awaited")

	_, ok = value.Many()
	require.False(t, ok, "a single-shaped value must not answer as a collection")
}

func TestFolderResolvesToManyHandles(t *testing.T) {
	server := newFakeServer()
	server.folders["sfx"] = []string{"sfx/plop.ogg", "sfx/click.wav"}

	asset := Folder{Path: "sfx"}
	require.Len(t, asset.Load(server), 2)

	value, err := asset.Build(server)
	require.NoError(t, err)
	many, ok := value.Many()
	require.True(t, ok)
	require.Len(t, many, 2)

	_, ok = value.Single()
	require.False(t, ok)
}

func TestFilesAndListFlatten(t *testing.T) {
	server := newFakeServer()

	files := Files{Paths: []string{"a.png", "b.png"}}
	value, err := files.Build(server)
	require.NoError(t, err)
	many, ok := value.Many()
	require.True(t, ok)
	require.Len(t, many, 2)

	list := List{Assets: []Asset{File{Path: "c.png"}, files}}
	require.Len(t, list.Load(server), 3)
	value, err = list.Build(server)
	require.NoError(t, err)
	many, ok = value.Many()
	require.True(t, ok)
	require.Len(t, many, 3)
}

func TestImageWithSamplerBuildsVariant(t *testing.T) {
	server := newFakeServer()

	plain := Image{Path: "tree.png"}
	value, err := plain.Build(server)
	require.NoError(t, err)
	single, ok := value.Single()
	require.True(t, ok)
	require.Equal(t, "tree.png", single.Path)

	sampled := Image{Path: "tree.png", Sampler: "nearest"}
	value, err = sampled.Build(server)
	require.NoError(t, err)
	single, ok = value.Single()
	require.True(t, ok)

	built, ok := server.Get(single)
	require.True(t, ok)
	variant := built.(*ImageVariant)
	require.Equal(t, "nearest", variant.Sampler)
	require.Equal(t, "tree.png", variant.Source.Path)
}

func TestStandardMaterialBuildsGeneratedMaterial(t *testing.T) {
	server := newFakeServer()

	asset := StandardMaterial{Path: "tree.png"}
	require.Len(t, asset.Load(server), 1)

	value, err := asset.Build(server)
	require.NoError(t, err)
	single, ok := value.Single()
	require.True(t, ok)

	built, ok := server.Get(single)
	require.True(t, ok)
	require.Equal(t, "tree.png", built.(*Material).Texture.Path)
}

func TestTextureAtlasLayoutRects(t *testing.T) {
	server := newFakeServer()

	asset := TextureAtlasLayout{
		TileWidth:  32,
		TileHeight: 16,
		Columns:    3,
		Rows:       2,
		PaddingX:   2,
		PaddingY:   4,
		OffsetX:    1,
		OffsetY:    1,
	}
	require.Empty(t, asset.Load(server), "a pure layout awaits no handles")

	value, err := asset.Build(server)
	require.NoError(t, err)
	single, ok := value.Single()
	require.True(t, ok)

	built, ok := server.Get(single)
	require.True(t, ok)
	layout := built.(*AtlasLayout)
	require.Len(t, layout.Rects, 6)

	// Second tile of the first row: offset + one tile + one padding.
	second := layout.Rects[1]
	require.Equal(t, float32(1+32+2), second.Min.X)
	require.Equal(t, float32(1), second.Min.Y)
	require.Equal(t, float32(32), second.Width())
	require.Equal(t, float32(16), second.Height())

	// First tile of the second row.
	fourth := layout.Rects[3]
	require.Equal(t, float32(1), fourth.Min.X)
	require.Equal(t, float32(1+16+4), fourth.Min.Y)
}

func TestTextureAtlasLayoutRejectsDegenerateGrid(t *testing.T) {
	server := newFakeServer()
	_, err := TextureAtlasLayout{TileWidth: 8, TileHeight: 8}.Build(server)
	require.Error(t, err)
}

func TestRegistryOverwritesOnRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("character", File{Path: "knight.png"})
	r.Register("character", File{Path: "zombie.png"})

	asset, ok := r.Lookup("character")
	require.True(t, ok)
	require.Equal(t, "zombie.png", asset.(File).Path)
	require.Equal(t, 1, r.Len())
}

func TestRegistryLookupMissingKey(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("character")
	require.False(t, ok)
}
