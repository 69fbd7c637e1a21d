package lib

import (
	"image"
	"strings"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// ParseFilterMode maps "point" and "linear" to a resampling filter.
func ParseFilterMode(mode string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(mode) {
	case "point":
		return imaging.NearestNeighbor, nil
	case "", "linear":
		return imaging.Linear, nil
	}
	return imaging.ResampleFilter{}, errors.Wrapf(ErrConfig, "unknown filter mode %q", mode)
}

// Colorize paints every cell of m with its class colour.
func Colorize(m *ClassMap, palette *ClassPalette) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, id := range m.IDs {
		c := palette.ClassColor(int(id)).WithChannels(4)
		copy(out.Pix[i*4:i*4+4], c.V[:])
		out.Pix[i*4+3] = 255
	}
	return out
}

func scaleTo(im image.Image, width int, height int, filter imaging.ResampleFilter) image.Image {
	b := im.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return im
	}
	return imaging.Resize(im, width, height, filter)
}

// Overlay blends the class colours of the last segmentation over frame and
// writes the result into dst. alpha is in [0, 255].
func Overlay(seg Segmenter, frame Image, dst Image, alpha float64, filter imaging.ResampleFilter) error {
	m := seg.ClassMap()
	if m == nil {
		return errors.New("overlay before process")
	}
	colors := scaleTo(Colorize(m, seg.Classes()), dst.Width, dst.Height, filter)
	bg := scaleTo(frame.AsImage(), dst.Width, dst.Height, imaging.Linear)
	dst.SetFromGo(blend.Opacity(bg, colors, alpha/255))
	return nil
}

// Mask writes the class colours of the last segmentation into dst.
func Mask(seg Segmenter, dst Image, filter imaging.ResampleFilter) error {
	m := seg.ClassMap()
	if m == nil {
		return errors.New("mask before process")
	}
	dst.SetFromGo(scaleTo(Colorize(m, seg.Classes()), dst.Width, dst.Height, filter))
	return nil
}

// DrawCentroidMarker outlines a circle around c.
func DrawCentroidMarker(im Image, c Centroid, radius float64, color Color) {
	dc := gg.NewContextForImage(im.AsImage())
	dc.SetRGB255(int(color.V[0]), int(color.V[1]), int(color.V[2]))
	dc.SetLineWidth(2)
	dc.DrawCircle(float64(c.X), float64(c.Y), radius)
	dc.Stroke()
	im.SetFromGo(dc.Image())
}

// ResizeImage scales im to width x height with linear filtering.
func ResizeImage(im Image, width int, height int) Image {
	out := ImageFromGo(imaging.Resize(im.AsImage(), width, height, imaging.Linear))
	return out.ToChannels(im.Channels)
}
