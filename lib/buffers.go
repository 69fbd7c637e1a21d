package lib

import (
	"fmt"
	"io"

	"github.com/mitchellh/colorstring"
)

// SegmentationBuffers owns the visualisation images of the pipeline.
type SegmentationBuffers struct {
	UseOverlay   bool
	UseMask      bool
	UseComposite bool
	UseStats     bool

	Overlay   Image
	Mask      Image
	Composite Image
}

func NewSegmentationBuffers(visualize string, stats bool) (*SegmentationBuffers, error) {
	overlay, mask, err := ParseVisualize(visualize)
	if err != nil {
		return nil, err
	}
	return &SegmentationBuffers{
		UseOverlay:   overlay,
		UseMask:      mask,
		UseComposite: overlay && mask,
		UseStats:     stats,
	}, nil
}

// Alloc sizes the buffers for width x height frames. It does nothing when
// the buffers already have that size.
func (b *SegmentationBuffers) Alloc(width int, height int) {
	if b.allocated() && b.frameWidth() == width && b.frameHeight() == height {
		return
	}
	b.Overlay, b.Mask, b.Composite = Image{}, Image{}, Image{}
	if b.UseOverlay {
		b.Overlay = NewImage(width, height)
	}
	if b.UseMask {
		downsample := 1
		if b.UseOverlay {
			downsample = 2
		}
		b.Mask = NewImage(width/downsample, height/downsample)
	}
	if b.UseComposite {
		b.Composite = NewImage(width+width/2, height)
	}
}

func (b *SegmentationBuffers) allocated() bool {
	return !b.Overlay.Empty() || !b.Mask.Empty()
}

func (b *SegmentationBuffers) frameWidth() int {
	if b.UseOverlay {
		return b.Overlay.Width
	}
	return b.Mask.Width
}

func (b *SegmentationBuffers) frameHeight() int {
	if b.UseOverlay {
		return b.Overlay.Height
	}
	return b.Mask.Height
}

// Output is the buffer that gets rendered.
func (b *SegmentationBuffers) Output() Image {
	switch {
	case b.UseOverlay && b.UseMask:
		return b.Composite
	case b.UseOverlay:
		return b.Overlay
	}
	return b.Mask
}

// CompositeImages places the overlay on the left, the mask on the top right
// and the ROI below the mask.
func (b *SegmentationBuffers) CompositeImages(roi Image) {
	if !b.UseComposite {
		return
	}
	b.Composite.DrawImage(0, 0, b.Overlay)
	b.Composite.DrawImage(b.Overlay.Width, 0, b.Mask)
	if !roi.Empty() {
		b.Composite.DrawImage(b.Overlay.Width, b.Mask.Height, roi)
	}
}

// ClassStats is the per-class cell count of a class map.
type ClassStats struct {
	GridWidth  int
	GridHeight int
	Names      []string
	Counts     []int
}

func (s ClassStats) Fraction(id int) float64 {
	total := s.GridWidth * s.GridHeight
	if total == 0 {
		return 0
	}
	return float64(s.Counts[id]) / float64(total)
}

// ComputeStats builds the class histogram of the last segmentation.
func (b *SegmentationBuffers) ComputeStats(seg Segmenter) (ClassStats, bool) {
	m := seg.ClassMap()
	if !b.UseStats || m == nil {
		return ClassStats{}, false
	}
	classes := seg.Classes()
	stats := ClassStats{
		GridWidth:  m.Width,
		GridHeight: m.Height,
		Counts:     m.Histogram(classes.NumClasses()),
	}
	for i := 0; i < classes.NumClasses(); i++ {
		stats.Names = append(stats.Names, classes.ClassName(i))
	}
	return stats, true
}

func PrintClassStats(w io.Writer, stats ClassStats) {
	fmt.Fprintf(w, "grid size:   %dx%d\n", stats.GridWidth, stats.GridHeight)
	fmt.Fprintf(w, "num classes: %d\n", len(stats.Counts))
	fmt.Fprintln(w, "-----------------------------------------")
	fmt.Fprintln(w, " ID  class name        count     %")
	fmt.Fprintln(w, "-----------------------------------------")
	for id, count := range stats.Counts {
		line := fmt.Sprintf(" %2d  %-18s %3d   %f", id, stats.Names[id], count, stats.Fraction(id))
		if count > 0 {
			line = "[green]" + line
		}
		colorstring.Fprintln(w, line)
	}
}
