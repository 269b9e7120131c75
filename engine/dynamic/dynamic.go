package dynamic

import (
	"fmt"

	"github.com/spaghettifunk/gantry/engine/assets"
	"github.com/spaghettifunk/gantry/engine/math"
)

// Asset describes how a string key resolves to concrete assets at run time.
// Load issues the load requests and returns every handle that must become
// ready; Build produces the final value once they are. Both must resolve to
// the same handles when called repeatedly, which holds because the asset
// server deduplicates by path.
type Asset interface {
	Load(server assets.Server) []assets.Handle
	Build(server assets.Server) (Value, error)
}

// Value is the built shape of a dynamic asset: exactly one handle, or a
// homogeneous list of handles. Consumers asking for the wrong shape get a
// shape mismatch, which the loading context escalates to a panic naming the
// offending key.
type Value struct {
	single assets.Handle
	hasOne bool
	many   []assets.Handle
}

func SingleValue(h assets.Handle) Value {
	return Value{single: h, hasOne: true}
}

func ManyValue(hs []assets.Handle) Value {
	return Value{many: hs}
}

func (v Value) Single() (assets.Handle, bool) {
	return v.single, v.hasOne
}

func (v Value) Many() ([]assets.Handle, bool) {
	if v.hasOne {
		return nil, false
	}
	return v.many, true
}

// File resolves to a single handle for one asset file.
type File struct {
	Path string
}

func (f File) Load(server assets.Server) []assets.Handle {
	return []assets.Handle{server.Load(f.Path)}
}

func (f File) Build(server assets.Server) (Value, error) {
	return SingleValue(server.Load(f.Path)), nil
}

// Folder resolves to every asset file under a directory.
type Folder struct {
	Path string
}

func (f Folder) Load(server assets.Server) []assets.Handle {
	return server.LoadFolder(f.Path)
}

func (f Folder) Build(server assets.Server) (Value, error) {
	return ManyValue(server.LoadFolder(f.Path)), nil
}

// Files resolves to one handle per listed path.
type Files struct {
	Paths []string
}

func (f Files) Load(server assets.Server) []assets.Handle {
	handles := make([]assets.Handle, 0, len(f.Paths))
	for _, p := range f.Paths {
		handles = append(handles, server.Load(p))
	}
	return handles
}

func (f Files) Build(server assets.Server) (Value, error) {
	return ManyValue(f.Load(server)), nil
}

// List groups several descriptors under one key; the key then resolves to
// the collection of all their handles.
type List struct {
	Assets []Asset
}

func (l List) Load(server assets.Server) []assets.Handle {
	var handles []assets.Handle
	for _, a := range l.Assets {
		handles = append(handles, a.Load(server)...)
	}
	return handles
}

func (l List) Build(server assets.Server) (Value, error) {
	return ManyValue(l.Load(server)), nil
}

// Image resolves to an image handle, optionally re-published as an
// ImageVariant when a sampler or array layout is requested.
type Image struct {
	Path        string
	Sampler     string
	ArrayLayers int
}

// ImageVariant is the generated asset built for an Image descriptor with
// sampler or array-layer settings.
type ImageVariant struct {
	Source      assets.Handle
	Sampler     string
	ArrayLayers int
}

func (i Image) Load(server assets.Server) []assets.Handle {
	return []assets.Handle{server.Load(i.Path)}
}

func (i Image) Build(server assets.Server) (Value, error) {
	source := server.Load(i.Path)
	if i.Sampler == "" && i.ArrayLayers == 0 {
		return SingleValue(source), nil
	}
	name := fmt.Sprintf("%s#sampler=%s,layers=%d", i.Path, i.Sampler, i.ArrayLayers)
	return SingleValue(server.Insert(name, &ImageVariant{
		Source:      source,
		Sampler:     i.Sampler,
		ArrayLayers: i.ArrayLayers,
	})), nil
}

// StandardMaterial resolves to a generated material wrapping the texture at
// Path.
type StandardMaterial struct {
	Path string
}

// Material is the generated asset built for a StandardMaterial descriptor.
type Material struct {
	Texture assets.Handle
}

func (m StandardMaterial) Load(server assets.Server) []assets.Handle {
	return []assets.Handle{server.Load(m.Path)}
}

func (m StandardMaterial) Build(server assets.Server) (Value, error) {
	texture := server.Load(m.Path)
	name := fmt.Sprintf("%s#material", m.Path)
	return SingleValue(server.Insert(name, &Material{Texture: texture})), nil
}

// TextureAtlasLayout resolves to a generated grid layout. It references no
// files; the layout is pure geometry.
type TextureAtlasLayout struct {
	TileWidth  float32
	TileHeight float32
	Columns    int
	Rows       int
	PaddingX   float32
	PaddingY   float32
	OffsetX    float32
	OffsetY    float32
}

// AtlasLayout is the generated asset built for a TextureAtlasLayout
// descriptor: one rect per tile, row-major.
type AtlasLayout struct {
	TileSize math.Vec2
	Rects    []math.Rect
}

func (t TextureAtlasLayout) Load(server assets.Server) []assets.Handle {
	return nil
}

func (t TextureAtlasLayout) Build(server assets.Server) (Value, error) {
	if t.Columns <= 0 || t.Rows <= 0 {
		return Value{}, fmt.Errorf("texture atlas layout - columns and rows must be positive, got %dx%d", t.Columns, t.Rows)
	}
	layout := &AtlasLayout{
		TileSize: math.Vec2{X: t.TileWidth, Y: t.TileHeight},
		Rects:    make([]math.Rect, 0, t.Columns*t.Rows),
	}
	for row := 0; row < t.Rows; row++ {
		for col := 0; col < t.Columns; col++ {
			minX := t.OffsetX + float32(col)*(t.TileWidth+t.PaddingX)
			minY := t.OffsetY + float32(row)*(t.TileHeight+t.PaddingY)
			layout.Rects = append(layout.Rects, math.Rect{
				Min: math.Vec2{X: minX, Y: minY},
				Max: math.Vec2{X: minX + t.TileWidth, Y: minY + t.TileHeight},
			})
		}
	}
	name := fmt.Sprintf("atlas#%gx%g,%dx%d,pad=%g:%g,off=%g:%g",
		t.TileWidth, t.TileHeight, t.Columns, t.Rows, t.PaddingX, t.PaddingY, t.OffsetX, t.OffsetY)
	return SingleValue(server.Insert(name, layout)), nil
}

// Custom is the escape hatch for application-defined dynamic assets.
type Custom struct {
	LoadFn  func(server assets.Server) []assets.Handle
	BuildFn func(server assets.Server) (Value, error)
}

func (c Custom) Load(server assets.Server) []assets.Handle {
	if c.LoadFn == nil {
		return nil
	}
	return c.LoadFn(server)
}

func (c Custom) Build(server assets.Server) (Value, error) {
	if c.BuildFn == nil {
		return Value{}, fmt.Errorf("custom dynamic asset has no build function")
	}
	return c.BuildFn(server)
}
