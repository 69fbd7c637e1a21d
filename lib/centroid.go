package lib

import (
	"image"

	"github.com/pkg/errors"
)

// Centroid is the representative point of the path pixels in a mask.
//
// It is half the offset between the first and the last matching pixel in
// row-major order, not the mean position of all matches. Callers that need
// the true centre of mass must aggregate differently.
type Centroid struct {
	X int
	Y int
}

// MatchSpan is the result of a highlight scan: the first and last matched
// pixels in row-major order and how many pixels matched.
type MatchSpan struct {
	First image.Point
	Last  image.Point
	Count int
}

func (s MatchSpan) Found() bool {
	return s.Count > 0
}

// Centroid is only meaningful when Found is true.
func (s MatchSpan) Centroid() Centroid {
	return Centroid{
		X: floorHalf(s.Last.X - s.First.X),
		Y: floorHalf(s.Last.Y - s.First.Y),
	}
}

func (s MatchSpan) add(p image.Point) MatchSpan {
	if s.Count == 0 {
		s.First = p
	}
	s.Last = p
	s.Count++
	return s
}

func floorHalf(d int) int {
	if d < 0 && d%2 != 0 {
		return d/2 - 1
	}
	return d / 2
}

// HighlightMatches scans grid in row-major order, overwrites every pixel whose
// colour is in colors with highlight and returns the span of matches.
func HighlightMatches(grid Image, colors ColorSet, highlight Color) (MatchSpan, error) {
	if err := validateScan(grid, colors, highlight); err != nil {
		return MatchSpan{}, err
	}
	var span MatchSpan
	hl := highlight.V[:grid.Channels]
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			px := grid.Pixel(x, y)
			if !colors.Contains(px) {
				continue
			}
			copy(px, hl)
			span = span.add(image.Point{X: x, Y: y})
		}
	}
	return span, nil
}

// FindAndHighlightCentroid highlights the path pixels of grid in place and
// returns their centroid. ok is false when no pixel matched.
func FindAndHighlightCentroid(grid Image, colors ColorSet, highlight Color) (c Centroid, ok bool, err error) {
	span, err := HighlightMatches(grid, colors, highlight)
	if err != nil {
		return Centroid{}, false, err
	}
	if !span.Found() {
		return Centroid{}, false, nil
	}
	return span.Centroid(), true, nil
}

func validateScan(grid Image, colors ColorSet, highlight Color) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if colors.Len() == 0 {
		return errors.Wrap(ErrInvalidInput, "empty color set")
	}
	if colors.Channels() != grid.Channels {
		return errors.Wrapf(ErrInvalidInput, "color set has %d channels, grid has %d", colors.Channels(), grid.Channels)
	}
	if highlight.N != grid.Channels {
		return errors.Wrapf(ErrInvalidInput, "highlight color has %d channels, grid has %d", highlight.N, grid.Channels)
	}
	return nil
}

// TrackedCentroid is a centroid whose axes may not have been assigned yet.
type TrackedCentroid struct {
	X    int
	Y    int
	HasX bool
	HasY bool
	// Found reports whether the current frame had any match.
	Found bool
}

// CentroidTracker carries centroid axes across frames (--parity):
// an axis is only recomputed when the last match on that axis is not at
// coordinate 0, otherwise the value from an earlier frame is kept. Frames
// without matches leave both axes unchanged.
type CentroidTracker struct {
	cur TrackedCentroid
}

func (t *CentroidTracker) Update(span MatchSpan) TrackedCentroid {
	c := span.Centroid()
	t.cur.Found = span.Found()
	if span.Found() && span.Last.X != 0 {
		t.cur.X = c.X
		t.cur.HasX = true
	}
	if span.Found() && span.Last.Y != 0 {
		t.cur.Y = c.Y
		t.cur.HasY = true
	}
	return t.cur
}

func (t *CentroidTracker) Current() TrackedCentroid {
	return t.cur
}

func (t *CentroidTracker) Reset() {
	t.cur = TrackedCentroid{}
}
