package lib

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoClassPalette() *ClassPalette {
	return &ClassPalette{
		Names:  []string{"background", "path"},
		Colors: []Color{RGBA(0, 0, 0, 255), RGBA(85, 85, 255, 255)},
	}
}

// fakeSegmenter returns a fixed class map for every frame.
type fakeSegmenter struct {
	palette  *ClassPalette
	template *ClassMap
	classMap *ClassMap
	calls    int
	ignored  []string
}

func (s *fakeSegmenter) Process(ctx context.Context, frame Image, ignoreClass string) error {
	s.calls++
	s.ignored = append(s.ignored, ignoreClass)
	s.classMap = s.template
	return nil
}

func (s *fakeSegmenter) ClassMap() *ClassMap    { return s.classMap }
func (s *fakeSegmenter) Classes() *ClassPalette { return s.palette }
func (s *fakeSegmenter) NetworkFPS() float64    { return 100 }
func (s *fakeSegmenter) Close() error           { return nil }

// fakeSource yields n grey frames.
type fakeSource struct {
	width, height int
	n             int
	captured      int
}

func (s *fakeSource) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if s.captured >= s.n {
		return Image{}, io.EOF
	}
	s.captured++
	im := NewImage(s.width, s.height)
	im.Fill(RGB(128, 128, 128))
	return im, nil
}

func (s *fakeSource) IsStreaming() bool { return s.captured < s.n }
func (s *fakeSource) Width() int        { return s.width }
func (s *fakeSource) Height() int       { return s.height }
func (s *fakeSource) FrameCount() int   { return s.n }
func (s *fakeSource) Close() error      { return nil }

// recordOutput keeps a copy of the last rendered frame.
type recordOutput struct {
	last     Image
	rendered int
	status   string
}

func (o *recordOutput) Render(im Image) error {
	o.last = im.Copy()
	o.rendered++
	return nil
}

func (o *recordOutput) SetStatus(status string) { o.status = status }
func (o *recordOutput) IsStreaming() bool       { return true }
func (o *recordOutput) Close() error            { return nil }

// pathClassMap is a 4x4 grid with the path class in cell (1, 1).
func pathClassMap() *ClassMap {
	m := NewClassMap(4, 4)
	m.IDs[1*4+1] = 1
	return m
}

func testPipelineConfig() Config {
	cfg := DefaultConfig()
	cfg.VisualizeBase.FilterMode = "point"
	cfg.LogBase.Profile = true
	return cfg
}

func TestPipelineRun(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.VisualizeBase.Stats = true
	cfg.LogBase.Plot = filepath.Join(t.TempDir(), "centroid.png")

	seg := &fakeSegmenter{palette: twoClassPalette(), template: pathClassMap()}
	src := &fakeSource{width: 40, height: 40, n: 3}
	out := &recordOutput{}
	p, err := NewPipeline(logs.NewTestingLog(t), cfg, seg, src, out)
	require.NoError(t, err)
	var console bytes.Buffer
	p.Console = &console

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 3, p.Frames())
	assert.Equal(t, 3, seg.calls)
	assert.Equal(t, []string{"void", "void", "void"}, seg.ignored)
	assert.Equal(t, 3, out.rendered)
	assert.Equal(t, "fcn-resnet18-voc | Network 100 FPS", out.status)

	// the 20x20 mask has the path at (5,5)-(9,9); the ROI starts at (1,4)
	assert.Contains(t, console.String(), "Navigable path center: (2 , 2)")
	assert.Contains(t, console.String(), "grid size:   4x4")

	require.Equal(t, 60, out.last.Width)
	require.Equal(t, 40, out.last.Height)
	// ROI sits below the mask in the composite
	assert.Equal(t, White, out.last.ColorAt(40+4, 20+1))
	assert.Equal(t, White, out.last.ColorAt(40+8, 20+5))
	// the mask itself is not highlighted
	assert.Equal(t, RGB(85, 85, 255), out.last.ColorAt(40+5, 5))

	assert.Equal(t, 3, p.Trajectory.Len())
	assert.Equal(t, int64(3), p.Profiler.Stage(StageScan).Samples)
	_, err = os.Stat(cfg.LogBase.Plot)
	assert.NoError(t, err)
}

// reddish counts the pixels of the composite ROI area dominated by red.
func reddish(im Image) int {
	n := 0
	for j := 20; j < 20+11; j++ {
		for i := 40; i < 40+18; i++ {
			px := im.GetRGB(i, j)
			if px[0] > 128 && px[1] < 64 && px[2] < 64 {
				n++
			}
		}
	}
	return n
}

func TestPipelineCentroidMarker(t *testing.T) {
	cfg := testPipelineConfig()
	seg := &fakeSegmenter{palette: twoClassPalette(), template: pathClassMap()}
	out := &recordOutput{}
	p, err := NewPipeline(logs.NewTestingLog(t), cfg, seg, &fakeSource{width: 40, height: 40, n: 1}, out)
	require.NoError(t, err)
	p.Console = io.Discard
	require.NoError(t, p.Step(context.Background()))
	assert.Equal(t, 0, reddish(out.last))

	// the default marker is a red ring of radius 15 around (2, 2), which
	// crosses the right part of the 18x11 ROI
	cfg.PathBase.DrawCentroid = true
	out = &recordOutput{}
	p, err = NewPipeline(logs.NewTestingLog(t), cfg, seg, &fakeSource{width: 40, height: 40, n: 1}, out)
	require.NoError(t, err)
	p.Console = io.Discard
	require.NoError(t, p.Step(context.Background()))
	assert.Greater(t, reddish(out.last), 0)
	// the highlighted path stays visible under the marker
	assert.Equal(t, White, out.last.ColorAt(40+4, 20+1))

	cfg.PathBase.MarkerRadius = 4
	cfg.PathBase.MarkerColor = "0,255,0"
	out = &recordOutput{}
	p, err = NewPipeline(logs.NewTestingLog(t), cfg, seg, &fakeSource{width: 40, height: 40, n: 1}, out)
	require.NoError(t, err)
	p.Console = io.Discard
	require.NoError(t, p.Step(context.Background()))
	assert.Equal(t, 0, reddish(out.last))
	ring := out.last.GetRGB(40+5, 20+2)
	assert.True(t, ring[1] > 200 && ring[0] < 64, "ring pixel %v", ring)
}

func TestPipelineNoPath(t *testing.T) {
	cfg := testPipelineConfig()
	seg := &fakeSegmenter{palette: twoClassPalette(), template: NewClassMap(4, 4)}
	src := &fakeSource{width: 40, height: 40, n: 2}
	p, err := NewPipeline(logs.NewTestingLog(t), cfg, seg, src, &recordOutput{})
	require.NoError(t, err)
	var console bytes.Buffer
	p.Console = &console

	require.NoError(t, p.Run(context.Background()))
	assert.Contains(t, console.String(), "Navigable path center: none")
	assert.Equal(t, 2, p.Trajectory.Misses())
}

func TestPipelineParity(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.PathBase.Parity = true
	seg := &fakeSegmenter{palette: twoClassPalette(), template: pathClassMap()}
	src := &fakeSource{width: 40, height: 40, n: 1}
	p, err := NewPipeline(logs.NewTestingLog(t), cfg, seg, src, &recordOutput{})
	require.NoError(t, err)
	var console bytes.Buffer
	p.Console = &console

	require.NoError(t, p.Step(context.Background()))
	assert.Contains(t, console.String(), "Navigable path center: (2 , 2)")

	// an empty frame keeps the previous centroid in parity mode
	seg.template = NewClassMap(4, 4)
	src.n = 2
	console.Reset()
	require.NoError(t, p.Step(context.Background()))
	assert.Contains(t, console.String(), "Navigable path center: (2 , 2)")
}

func TestPipelineOverlayOnly(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.VisualizeBase.Visualize = "overlay"
	seg := &fakeSegmenter{palette: twoClassPalette(), template: pathClassMap()}
	src := &fakeSource{width: 40, height: 40, n: 1}
	out := &recordOutput{}
	p, err := NewPipeline(logs.NewTestingLog(t), cfg, seg, src, out)
	require.NoError(t, err)
	var console bytes.Buffer
	p.Console = &console

	require.NoError(t, p.Step(context.Background()))
	assert.NotContains(t, console.String(), "Navigable path center")
	assert.Equal(t, 40, out.last.Width)
	assert.Equal(t, int64(0), p.Profiler.Stage(StageScan).Samples)
}

func TestPipelineCancel(t *testing.T) {
	cfg := testPipelineConfig()
	seg := &fakeSegmenter{palette: twoClassPalette(), template: pathClassMap()}
	src := &fakeSource{width: 40, height: 40, n: 100}
	p, err := NewPipeline(logs.NewTestingLog(t), cfg, seg, src, &recordOutput{})
	require.NoError(t, err)
	p.Console = io.Discard

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, p.Frames())
}

func TestPipelineRejectsBadConfig(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.VisualizeBase.Alpha = 300
	_, err := NewPipeline(logs.NewTestingLog(t), cfg, &fakeSegmenter{}, &fakeSource{}, &recordOutput{})
	assert.Error(t, err)
}
