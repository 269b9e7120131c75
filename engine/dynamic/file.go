package dynamic

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileFormat identifies how a dynamic asset collection file is serialized.
// The format is the file-type identity the loading core tracks in-flight.
type FileFormat string

const (
	FormatTOML FileFormat = "toml"
	FormatYAML FileFormat = "yaml"
	FormatJSON FileFormat = "json"
)

// FormatForPath infers the collection file format from the extension.
func FormatForPath(path string) (FileFormat, bool) {
	switch filepath.Ext(path) {
	case ".toml":
		return FormatTOML, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// Parse decodes a serialized key → descriptor mapping. A key may map to a
// single tagged descriptor or to a list of descriptors (the key then
// resolves to a collection of handles).
func Parse(data []byte, format FileFormat) (map[string]Asset, error) {
	raw := map[string]interface{}{}
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("dynamic collection file - unknown format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("dynamic collection file - cannot decode %s: %w", format, err)
	}

	parsed := make(map[string]Asset, len(raw))
	for key, value := range raw {
		asset, err := decodeAsset(key, value)
		if err != nil {
			return nil, err
		}
		parsed[key] = asset
	}
	return parsed, nil
}

// Merge registers every parsed key into the registry. Key collisions are
// last-write-wins, so callers must merge files in registration order.
func Merge(registry *Registry, parsed map[string]Asset) {
	keys := make([]string, 0, len(parsed))
	for key := range parsed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		registry.Register(key, parsed[key])
	}
}

func decodeAsset(key string, value interface{}) (Asset, error) {
	switch v := value.(type) {
	case []interface{}:
		list := List{Assets: make([]Asset, 0, len(v))}
		for _, item := range v {
			asset, err := decodeAsset(key, item)
			if err != nil {
				return nil, err
			}
			list.Assets = append(list.Assets, asset)
		}
		return list, nil
	case map[string]interface{}:
		return decodeDescriptor(key, v)
	default:
		return nil, fmt.Errorf("dynamic collection file - key '%s': expected descriptor or list, got %T", key, value)
	}
}

func decodeDescriptor(key string, fields map[string]interface{}) (Asset, error) {
	kind, ok := asString(fields["type"])
	if !ok {
		return nil, fmt.Errorf("dynamic collection file - key '%s': descriptor has no 'type' field", key)
	}
	switch kind {
	case "file":
		path, ok := asString(fields["path"])
		if !ok {
			return nil, fmt.Errorf("dynamic collection file - key '%s': file descriptor needs a 'path'", key)
		}
		return File{Path: path}, nil
	case "folder":
		path, ok := asString(fields["path"])
		if !ok {
			return nil, fmt.Errorf("dynamic collection file - key '%s': folder descriptor needs a 'path'", key)
		}
		return Folder{Path: path}, nil
	case "files":
		paths, ok := asStringSlice(fields["paths"])
		if !ok {
			return nil, fmt.Errorf("dynamic collection file - key '%s': files descriptor needs 'paths'", key)
		}
		return Files{Paths: paths}, nil
	case "image":
		path, ok := asString(fields["path"])
		if !ok {
			return nil, fmt.Errorf("dynamic collection file - key '%s': image descriptor needs a 'path'", key)
		}
		sampler, _ := asString(fields["sampler"])
		layers, _ := asInt(fields["array_layers"])
		return Image{Path: path, Sampler: sampler, ArrayLayers: layers}, nil
	case "standard_material":
		path, ok := asString(fields["path"])
		if !ok {
			return nil, fmt.Errorf("dynamic collection file - key '%s': standard_material descriptor needs a 'path'", key)
		}
		return StandardMaterial{Path: path}, nil
	case "texture_atlas_layout":
		tileW, okW := asFloat(fields["tile_width"])
		tileH, okH := asFloat(fields["tile_height"])
		columns, okC := asInt(fields["columns"])
		rows, okR := asInt(fields["rows"])
		if !okW || !okH || !okC || !okR {
			return nil, fmt.Errorf("dynamic collection file - key '%s': texture_atlas_layout needs tile_width, tile_height, columns and rows", key)
		}
		padX, _ := asFloat(fields["padding_x"])
		padY, _ := asFloat(fields["padding_y"])
		offX, _ := asFloat(fields["offset_x"])
		offY, _ := asFloat(fields["offset_y"])
		return TextureAtlasLayout{
			TileWidth:  float32(tileW),
			TileHeight: float32(tileH),
			Columns:    columns,
			Rows:       rows,
			PaddingX:   float32(padX),
			PaddingY:   float32(padY),
			OffsetX:    float32(offX),
			OffsetY:    float32(offY),
		}, nil
	default:
		return nil, fmt.Errorf("dynamic collection file - key '%s': unknown descriptor type '%s'", key, kind)
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStringSlice(v interface{}) ([]string, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// The three decoders disagree on number types; normalize them.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
