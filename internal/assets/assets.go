package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/solarlune/tetra3d"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"idol-vr/internal/audio"
	"idol-vr/internal/loader"
)

// Panorama is a decoded background image.
type Panorama struct {
	Source string
	Image  image.Image
}

func (*Panorama) Resource() loader.Resource { return loader.Panorama }

// Model is a decoded glTF library.
type Model struct {
	Source  string
	Library *tetra3d.Library
}

func (*Model) Resource() loader.Resource { return loader.Model }

// Track is a decoded audio stream, not yet attached to a player.
type Track struct {
	Source string
	Stream audio.Stream
}

func (*Track) Resource() loader.Resource { return loader.Audio }

// DecodeFunc turns raw bytes fetched from source into an asset.
type DecodeFunc func(source string, data []byte) (loader.Asset, error)

// DecodePanorama decodes png, jpeg, webp and bmp images.
func DecodePanorama(source string, data []byte) (loader.Asset, error) {
	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch strings.ToLower(path.Ext(stripQuery(source))) {
	case ".webp":
		img, err = webp.Decode(r)
	case ".bmp":
		img, err = bmp.Decode(r)
	default:
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode panorama: %w", err)
	}
	return &Panorama{Source: source, Image: img}, nil
}

// DecodeModel parses a glTF or GLB document.
func DecodeModel(source string, data []byte) (loader.Asset, error) {
	lib, err := tetra3d.LoadGLTFData(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(lib.Scenes) == 0 {
		return nil, errors.New("decode model: no scenes in document")
	}
	return &Model{Source: source, Library: lib}, nil
}

// DecodeTrack decodes mp3, ogg, wav and ym tracks.
func DecodeTrack(source string, data []byte) (loader.Asset, error) {
	s, err := audio.Decode(stripQuery(source), data)
	if err != nil {
		return nil, err
	}
	return &Track{Source: source, Stream: s}, nil
}

func stripQuery(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}
