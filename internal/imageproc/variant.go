package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// Variant re-encodes the source as the compressed alternate rendition
// served next to the original. Encoded as JPEG until a webp encoder is
// wired in; the key layout and response field already treat it as the
// webp slot.
func Variant(r io.Reader) (io.Reader, int64, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader baseIMG provided to Variant")
	}
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to DEcode baseIMG in Variant: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode resultIMG in Variant: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
