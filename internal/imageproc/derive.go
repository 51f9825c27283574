// Package imageproc derives metadata and secondary renditions from
// uploaded image bytes.
package imageproc

import (
	"bytes"
	"errors"
	"image"
	"math"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/disintegration/imaging"
)

// Derived - what ingestion learns about one image before committing it
type Derived struct {
	Format imaging.Format
	Name   string // format name, e.g. "jpeg"
	Width  int
	Height int
	Scale  float64 // width/height, 2 decimal places
	Size   int64
}

// Derive decodes the header, validates the format against the supported
// set and computes dimensions and aspect ratio.
func Derive(data []byte) (*Derived, error) {
	if len(data) == 0 {
		return nil, model.ErrEmptySource
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, model.ErrUnsupportedFormat
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return nil, model.ErrUnsupportedFormat
	}

	switch format {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
	default:
		return nil, model.ErrUnsupportedFormat
	}

	if cfg.Height == 0 {
		return nil, errors.New("zero-height image")
	}

	return &Derived{
		Format: format,
		Name:   name,
		Width:  cfg.Width,
		Height: cfg.Height,
		Scale:  math.Round(float64(cfg.Width)/float64(cfg.Height)*100) / 100,
		Size:   int64(len(data)),
	}, nil
}
