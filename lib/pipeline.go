package lib

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// Pipeline runs segmentation and path finding over every frame of a source.
type Pipeline struct {
	Profiler   Profiler
	Trajectory Trajectory
	// Console receives the centroid lines and class statistics.
	Console io.Writer

	log        logs.Log
	cfg        Config
	seg        Segmenter
	src        VideoSource
	out        VideoOutput
	buffers    *SegmentationBuffers
	pathColors ColorSet
	highlight  Color
	marker     Color
	filter     imaging.ResampleFilter
	tracker    *CentroidTracker
	progress   *progressbar.ProgressBar
	frames     int
	roiWarned  bool
}

func NewPipeline(log logs.Log, cfg Config, seg Segmenter, src VideoSource, out VideoOutput) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buffers, err := NewSegmentationBuffers(cfg.VisualizeBase.Visualize, cfg.VisualizeBase.Stats)
	if err != nil {
		return nil, err
	}
	filter, err := ParseFilterMode(cfg.VisualizeBase.FilterMode)
	if err != nil {
		return nil, err
	}
	colors, err := cfg.PathColorSet()
	if err != nil {
		return nil, err
	}
	highlight, err := cfg.HighlightColor()
	if err != nil {
		return nil, err
	}
	marker, err := ParseColor(cfg.PathBase.MarkerColor)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Console:    os.Stdout,
		log:        log,
		cfg:        cfg,
		seg:        seg,
		src:        src,
		out:        out,
		buffers:    buffers,
		pathColors: colors.WithChannels(3),
		highlight:  highlight.WithChannels(3),
		marker:     marker.WithChannels(3),
		filter:     filter,
	}
	if cfg.PathBase.Parity {
		p.tracker = &CentroidTracker{}
	}
	if cfg.LogBase.Progress {
		p.progress = NewFrameProgress(src.FrameCount(), "[cyan][segnet][reset] Frames")
	}
	return p, nil
}

// Frames is the number of frames processed so far.
func (p *Pipeline) Frames() int {
	return p.frames
}

// Run processes frames until the source or the output stops streaming or ctx
// is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.finish()
	for {
		err := p.Step(ctx)
		if err == io.EOF || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if !p.src.IsStreaming() || !p.out.IsStreaming() {
			return nil
		}
	}
}

// Step processes a single frame. It returns io.EOF at the end of the input.
func (p *Pipeline) Step(ctx context.Context) error {
	done := p.Profiler.Begin(StageCapture)
	frame, err := p.src.Capture(ctx)
	done()
	if err != nil {
		return err
	}

	p.buffers.Alloc(frame.Width, frame.Height)

	done = p.Profiler.Begin(StageNetwork)
	err = p.seg.Process(ctx, frame, p.cfg.VisualizeBase.IgnoreClass)
	done()
	if err != nil {
		return errors.Wrap(err, "segment frame")
	}
	p.Profiler.AddNetworkFPS(p.seg.NetworkFPS())

	if p.buffers.UseOverlay {
		done = p.Profiler.Begin(StageOverlay)
		err = Overlay(p.seg, frame, p.buffers.Overlay, p.cfg.VisualizeBase.Alpha, p.filter)
		done()
		if err != nil {
			return err
		}
	}

	var roi Image
	if p.buffers.UseMask {
		done = p.Profiler.Begin(StageMask)
		err = Mask(p.seg, p.buffers.Mask, p.filter)
		done()
		if err != nil {
			return err
		}

		done = p.Profiler.Begin(StageScan)
		roi, err = p.scanPath()
		done()
		if err != nil {
			return err
		}
	}

	done = p.Profiler.Begin(StageComposite)
	p.buffers.CompositeImages(roi)
	done()

	done = p.Profiler.Begin(StageRender)
	err = p.out.Render(p.buffers.Output())
	done()
	if err != nil {
		return errors.Wrap(err, "render")
	}
	p.out.SetStatus(fmt.Sprintf("%s | Network %.0f FPS", p.cfg.Network.Name, p.seg.NetworkFPS()))

	if p.cfg.LogBase.Profile {
		p.Profiler.PrintProfilerTimes(p.log)
	}
	if stats, ok := p.buffers.ComputeStats(p.seg); ok {
		PrintClassStats(p.Console, stats)
	}

	p.frames++
	if p.progress != nil {
		p.progress.Add(1)
	}
	return nil
}

// scanPath crops the ROI out of the mask, highlights the path pixels in it and
// reports the centroid. A mask too small for the ROI is skipped.
func (p *Pipeline) scanPath() (Image, error) {
	roi, err := CropROI(p.buffers.Mask, p.cfg.RoiBase)
	if errors.Is(err, ErrInvalidInput) {
		if !p.roiWarned {
			warnf("mask %dx%d is too small for the ROI, skipping path search", p.buffers.Mask.Width, p.buffers.Mask.Height)
			p.roiWarned = true
		}
		return Image{}, nil
	}
	if err != nil {
		return Image{}, err
	}

	var c TrackedCentroid
	if p.tracker != nil {
		span, err := HighlightMatches(roi, p.pathColors, p.highlight)
		if err != nil {
			return Image{}, err
		}
		c = p.tracker.Update(span)
	} else {
		cen, ok, err := FindAndHighlightCentroid(roi, p.pathColors, p.highlight)
		if err != nil {
			return Image{}, err
		}
		if ok {
			c = TrackedCentroid{X: cen.X, Y: cen.Y, HasX: true, HasY: true, Found: true}
		}
	}
	PrintCentroid(p.Console, c)
	p.Trajectory.Add(p.frames, c)

	if p.cfg.PathBase.DrawCentroid && c.HasX && c.HasY {
		DrawCentroidMarker(roi, Centroid{X: c.X, Y: c.Y}, p.cfg.PathBase.MarkerRadius, p.marker)
	}
	return roi, nil
}

func (p *Pipeline) finish() {
	if p.progress != nil {
		p.progress.Finish()
	}
	if plotPath := p.cfg.LogBase.Plot; plotPath != "" {
		if err := p.Trajectory.Save(p.cfg.Network.Name+" path centroid", plotPath); err != nil {
			p.log.Warnf("Failed to save centroid plot: %v", err)
		} else {
			p.log.Infof("Centroid plot saved to %v", plotPath)
		}
	}
	p.Profiler.PrintSummary(p.log)
	PrintRunSummary(p.Console, p.frames, &p.Trajectory)
}
