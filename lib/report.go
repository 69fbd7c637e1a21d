package lib

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/k0kubun/go-ansi"
	"github.com/mitchellh/colorstring"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func init() {
	color.Output = ansi.NewAnsiStdout()
}

func axisString(v int, ok bool) string {
	if !ok {
		return "?"
	}
	return strconv.Itoa(v)
}

// FormatCentroid renders the per-frame centroid line. Axes that were never
// assigned print as "?".
func FormatCentroid(c TrackedCentroid) string {
	if !c.Found && !c.HasX && !c.HasY {
		return "Navigable path center: none"
	}
	return fmt.Sprintf("Navigable path center: (%s , %s)", axisString(c.X, c.HasX), axisString(c.Y, c.HasY))
}

// PrintCentroid writes the centroid line to w, green when the frame had a
// match and yellow when it did not.
func PrintCentroid(w io.Writer, c TrackedCentroid) {
	prefix := "[green]"
	if !c.Found {
		prefix = "[yellow]"
	}
	colorstring.Fprintln(w, prefix+FormatCentroid(c))
}

// Trajectory collects the centroid of every frame for plotting.
type Trajectory struct {
	xs     plotter.XYs
	ys     plotter.XYs
	misses int
}

func (t *Trajectory) Add(frameIdx int, c TrackedCentroid) {
	if !c.Found {
		t.misses++
	}
	if c.HasX {
		t.xs = append(t.xs, plotter.XY{X: float64(frameIdx), Y: float64(c.X)})
	}
	if c.HasY {
		t.ys = append(t.ys, plotter.XY{X: float64(frameIdx), Y: float64(c.Y)})
	}
}

func (t *Trajectory) Len() int {
	if len(t.xs) > len(t.ys) {
		return len(t.xs)
	}
	return len(t.ys)
}

// Misses is the number of frames without a path match.
func (t *Trajectory) Misses() int {
	return t.misses
}

// Save plots the centroid axes against the frame index into a PNG.
func (t *Trajectory) Save(title string, savePath string) error {
	if t.Len() == 0 {
		return errors.New("no centroids to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Centroid"

	var lines []interface{}
	if len(t.xs) > 0 {
		lines = append(lines, "x", t.xs)
	}
	if len(t.ys) > 0 {
		lines = append(lines, "y", t.ys)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "add line points")
	}
	return errors.Wrapf(p.Save(12*vg.Inch, 6*vg.Inch, savePath), "save plot %s", savePath)
}

// NewFrameProgress returns a progress bar over total frames, or a spinner
// when the total is unknown.
func NewFrameProgress(total int, description string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// PrintRunSummary prints the totals of a finished run.
func PrintRunSummary(w io.Writer, frames int, traj *Trajectory) {
	colorstring.Fprintf(w, "\nFrames: [green]%d[reset], ", frames)
	if traj.Misses() > 0 {
		colorstring.Fprintf(w, "frames without path: [red]%d\n", traj.Misses())
	} else {
		colorstring.Fprintf(w, "frames without path: [green]0\n")
	}
}

// warnf prints a highlighted warning to the console.
func warnf(format string, args ...interface{}) {
	color.New(color.FgYellow).Printf(format+"\n", args...)
}
