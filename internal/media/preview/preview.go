package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const DefaultSize = 256

var ErrNoDimensions = errors.New("svg has no usable dimensions")

// Rasterize draws sanitized svg markup into a size x size PNG, keeping the
// aspect ratio and centering the drawing on a transparent canvas.
func Rasterize(markup []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(markup), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("read svg: %w", err)
	}

	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 || math.IsNaN(vw) || math.IsNaN(vh) {
		return nil, ErrNoDimensions
	}

	scale := float64(size) / math.Max(vw, vh)
	w := max(1, int(math.Round(vw*scale)))
	h := max(1, int(math.Round(vh*scale)))

	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	canvas := imaging.New(size, size, color.Transparent)
	canvas = imaging.PasteCenter(canvas, imaging.Fit(img, size, size, imaging.Lanczos))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
