package lib

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
)

// ClassMap holds one class ID per cell of the network output grid.
type ClassMap struct {
	Width  int
	Height int
	IDs    []uint8
}

func NewClassMap(width int, height int) *ClassMap {
	return &ClassMap{
		Width:  width,
		Height: height,
		IDs:    make([]uint8, width*height),
	}
}

func (m *ClassMap) At(x int, y int) uint8 {
	return m.IDs[y*m.Width+x]
}

// Histogram counts the cells of every class ID below numClasses.
func (m *ClassMap) Histogram(numClasses int) []int {
	counts := make([]int, numClasses)
	for _, id := range m.IDs {
		if int(id) < numClasses {
			counts[id]++
		}
	}
	return counts
}

// Segmenter runs a semantic segmentation network over frames.
type Segmenter interface {
	// Process classifies frame. Cells are never assigned ignoreClass; an empty
	// or unknown class name ignores nothing.
	Process(ctx context.Context, frame Image, ignoreClass string) error
	// ClassMap is the result of the last Process call.
	ClassMap() *ClassMap
	Classes() *ClassPalette
	NetworkFPS() float64
	Close() error
}

// argmaxClasses picks the best class of every cell from scores laid out as
// [numClasses][height][width]. Class ignore (if >= 0) is never chosen.
func argmaxClasses(scores []float32, numClasses int, height int, width int, ignore int) (*ClassMap, error) {
	if numClasses < 1 || numClasses > 256 {
		return nil, errors.Errorf("unsupported number of classes %d", numClasses)
	}
	if len(scores) < numClasses*height*width {
		return nil, errors.Errorf("network output has %d values, want %d", len(scores), numClasses*height*width)
	}
	m := NewClassMap(width, height)
	plane := width * height
	for cell := 0; cell < plane; cell++ {
		best := -1
		var bestScore float32
		for c := 0; c < numClasses; c++ {
			if c == ignore {
				continue
			}
			score := scores[c*plane+cell]
			if best < 0 || score > bestScore {
				best = c
				bestScore = score
			}
		}
		if best < 0 {
			best = 0
		}
		m.IDs[cell] = uint8(best)
	}
	return m, nil
}

// NetworkFiles are the files that make up a segmentation network.
type NetworkFiles struct {
	Model  string
	Config string
	Labels string
	Colors string
}

// ResolveNetwork finds the model files of a named network under
// modelRoot/<name>/. Explicit paths in cfg override the defaults.
func ResolveNetwork(cfg NetworkConfig) (NetworkFiles, error) {
	dir := filepath.Join(cfg.ModelRoot, cfg.Name)
	files := NetworkFiles{
		Model:  cfg.Model,
		Config: cfg.ModelConfig,
		Labels: cfg.Labels,
		Colors: cfg.Colors,
	}
	if files.Model == "" {
		matches, _ := filepath.Glob(filepath.Join(dir, "*.onnx"))
		if len(matches) == 0 {
			return files, errors.Wrapf(ErrConfig, "no model for network %q in %s", cfg.Name, dir)
		}
		files.Model = matches[0]
	}
	if files.Labels == "" {
		if p := filepath.Join(dir, "classes.txt"); fileExists(p) {
			files.Labels = p
		}
	}
	if files.Colors == "" {
		if p := filepath.Join(dir, "colors.txt"); fileExists(p) {
			files.Colors = p
		}
	}
	return files, nil
}

// LoadNetworkPalette loads the labels of a network, defaulting to Pascal VOC
// when the network ships none.
func LoadNetworkPalette(files NetworkFiles) (*ClassPalette, error) {
	if files.Labels == "" {
		return VOCPalette(), nil
	}
	return LoadClassPalette(files.Labels, files.Colors)
}

func fileExists(fname string) bool {
	_, err := os.Stat(fname)
	return err == nil
}

// NewSegmenter builds the backend selected in cfg.
func NewSegmenter(log logs.Log, cfg NetworkConfig) (Segmenter, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "opencv":
		files, err := ResolveNetwork(cfg)
		if err != nil {
			return nil, err
		}
		return NewOpenCVSegmenter(log, cfg, files)
	case "subprocess":
		return NewSubprocessSegmenter(log, cfg)
	}
	return nil, errors.Wrapf(ErrConfig, "unknown network backend %q", cfg.Backend)
}
