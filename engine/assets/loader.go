package assets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Loader turns the raw file at path into the asset value stored behind a
// handle. An error marks the owning handle as failed.
type Loader interface {
	Load(path string) (interface{}, error)
}

// Bytes is the fallback asset value for unrecognized file types.
type Bytes []byte

// Image is a decoded-enough image asset: dimensions plus the raw file
// contents. Pixel decoding is the renderer's business, not ours.
type Image struct {
	Width  int
	Height int
	Data   []byte
}

// Audio is a validated audio asset: container format plus raw contents.
type Audio struct {
	Format string
	Data   []byte
}

// Text is a plain text asset.
type Text string

// DetermineAssetType infers the asset type from the file extension, in the
// same spirit the renderer-side managers pick their resource loaders.
func DetermineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".tga":
		return AssetTypeImage
	case ".ogg", ".wav":
		return AssetTypeAudio
	case ".txt", ".glsl", ".json", ".toml", ".yaml", ".yml":
		return AssetTypeText
	default:
		return AssetTypeBytes
	}
}

type BytesLoader struct{}

func (BytesLoader) Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Bytes(data), nil
}

type TextLoader struct{}

func (TextLoader) Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Text(data), nil
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type ImageLoader struct{}

func (ImageLoader) Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case len(data) >= 24 && bytes.HasPrefix(data, pngSignature):
		// IHDR is always the first chunk; width and height sit right
		// after the chunk type.
		return &Image{
			Width:  int(binary.BigEndian.Uint32(data[16:20])),
			Height: int(binary.BigEndian.Uint32(data[20:24])),
			Data:   data,
		}, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return &Image{Data: data}, nil
	default:
		return nil, fmt.Errorf("image loader - '%s' is not a supported image file", path)
	}
}

type AudioLoader struct{}

func (AudioLoader) Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("OggS")):
		return &Audio{Format: "ogg", Data: data}, nil
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return &Audio{Format: "wav", Data: data}, nil
	default:
		return nil, fmt.Errorf("audio loader - '%s' is not a supported audio file", path)
	}
}
