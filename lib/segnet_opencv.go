package lib

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// OpenCVSegmenter runs an ONNX (or any OpenCV readable) segmentation network
// through the OpenCV dnn module, on CUDA when available.
type OpenCVSegmenter struct {
	log      logs.Log
	cfg      NetworkConfig
	net      gocv.Net
	classes  *ClassPalette
	classMap *ClassMap
	fps      float64
	device   string
	mu       sync.Mutex
}

func NewOpenCVSegmenter(log logs.Log, cfg NetworkConfig, files NetworkFiles) (*OpenCVSegmenter, error) {
	classes, err := LoadNetworkPalette(files)
	if err != nil {
		return nil, err
	}
	if cfg.InputSize[0] < 1 || cfg.InputSize[1] < 1 {
		return nil, errors.Wrapf(ErrConfig, "bad network input size %v", cfg.InputSize)
	}
	s := &OpenCVSegmenter{
		log:     log,
		cfg:     cfg,
		classes: classes,
	}
	t0 := time.Now()
	s.net = gocv.ReadNet(files.Model, files.Config)
	if s.net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", files.Model)
	}

	if strings.ToLower(cfg.Device) == "cuda" {
		s.net.SetPreferableBackend(gocv.NetBackendCUDA)
		s.net.SetPreferableTarget(gocv.NetTargetCUDA)
		s.device = "CUDA"
		if !s.testForward() {
			log.Warnf("CUDA inference failed, falling back to CPU")
			s.useCPU()
		}
	} else {
		s.useCPU()
	}
	log.Infof("Loaded network %v (%v classes) on %v in %v", files.Model, classes.NumClasses(), s.device, time.Since(t0))
	return s, nil
}

func (s *OpenCVSegmenter) useCPU() {
	s.net.SetPreferableBackend(gocv.NetBackendDefault)
	s.net.SetPreferableTarget(gocv.NetTargetCPU)
	s.device = "CPU"
}

// testForward runs one blank frame through the network.
func (s *OpenCVSegmenter) testForward() bool {
	frame := gocv.NewMatWithSize(s.cfg.InputSize[1], s.cfg.InputSize[0], gocv.MatTypeCV8UC3)
	defer frame.Close()
	out, err := s.forward(frame)
	if err != nil {
		return false
	}
	defer out.Close()
	return !out.Empty()
}

func (s *OpenCVSegmenter) forward(frame gocv.Mat) (gocv.Mat, error) {
	mean := gocv.NewScalar(s.cfg.Mean[0], s.cfg.Mean[1], s.cfg.Mean[2], 0)
	blob := gocv.BlobFromImage(frame, s.cfg.Scale, image.Pt(s.cfg.InputSize[0], s.cfg.InputSize[1]), mean, s.cfg.SwapRB, false)
	defer blob.Close()
	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	if out.Empty() {
		out.Close()
		return gocv.Mat{}, errors.New("network produced no output")
	}
	return out, nil
}

func (s *OpenCVSegmenter) Process(ctx context.Context, frame Image, ignoreClass string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t0 := time.Now()
	rgb := frame.ToChannels(3)
	mat, err := gocv.NewMatFromBytes(rgb.Height, rgb.Width, gocv.MatTypeCV8UC3, rgb.Bytes)
	if err != nil {
		return errors.Wrap(err, "frame to mat")
	}
	defer mat.Close()

	out, err := s.forward(mat)
	if err != nil {
		return err
	}
	defer out.Close()

	// [batch, classes, height, width]
	dims := out.Size()
	if len(dims) != 4 {
		return errors.Errorf("unexpected network output shape %v", dims)
	}
	scores, err := out.DataPtrFloat32()
	if err != nil {
		return errors.Wrap(err, "read network output")
	}
	m, err := argmaxClasses(scores, dims[1], dims[2], dims[3], s.classes.FindClass(ignoreClass))
	if err != nil {
		return err
	}
	s.classMap = m
	if elapsed := time.Since(t0); elapsed > 0 {
		s.fps = float64(time.Second) / float64(elapsed)
	}
	return nil
}

func (s *OpenCVSegmenter) ClassMap() *ClassMap {
	return s.classMap
}

func (s *OpenCVSegmenter) Classes() *ClassPalette {
	return s.classes
}

func (s *OpenCVSegmenter) NetworkFPS() float64 {
	return s.fps
}

func (s *OpenCVSegmenter) Close() error {
	return s.net.Close()
}
