package lib

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoSource produces RGB frames. Capture returns io.EOF at the end of the
// stream. The returned image is only valid until the next Capture call.
type VideoSource interface {
	Capture(ctx context.Context) (Image, error)
	IsStreaming() bool
	Width() int
	Height() int
	// FrameCount is 0 when the length of the stream is unknown.
	FrameCount() int
	Close() error
}

// SourceOptions tune how a source is opened.
type SourceOptions struct {
	// Width and Height request a frame size; zero keeps the native size.
	Width  int
	Height int
	// Buffer is the number of frames decoded ahead for video files.
	Buffer int
}

var videoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm", ".h264", ".ts", ".flv"}
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".gif"}

func hasExtension(fname string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(fname))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// OpenVideoSource opens a camera, network stream, video file or image
// sequence from a URI:
//
//	"" or /dev/videoN or v4l2:///dev/videoN or N   V4L2 camera
//	csi://N                                         MIPI CSI camera (gstreamer)
//	rtsp://... http://... https://...               network stream
//	file://path or path.mp4                         video file (ffmpeg)
//	path.png or dir/*.jpg                           image sequence
func OpenVideoSource(ctx context.Context, log logs.Log, uri string, opts SourceOptions) (VideoSource, error) {
	if uri == "" {
		uri = "/dev/video0"
	}
	switch {
	case strings.HasPrefix(uri, "csi://"):
		id, err := strconv.Atoi(strings.TrimPrefix(uri, "csi://"))
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "bad csi uri %q", uri)
		}
		return openCapture(log, csiPipeline(id, opts), gocv.VideoCaptureGstreamer, opts)
	case strings.HasPrefix(uri, "v4l2://"):
		return openCapture(log, strings.TrimPrefix(uri, "v4l2://"), gocv.VideoCaptureAny, opts)
	case strings.HasPrefix(uri, "rtsp://"), strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return openCapture(log, uri, gocv.VideoCaptureAny, opts)
	case strings.HasPrefix(uri, "/dev/video"):
		return openCapture(log, uri, gocv.VideoCaptureAny, opts)
	}
	if id, err := strconv.Atoi(uri); err == nil {
		return openCapture(log, id, gocv.VideoCaptureAny, opts)
	}
	fname := strings.TrimPrefix(uri, "file://")
	if hasExtension(fname, videoExtensions) {
		return openFfmpegSource(ctx, log, fname, opts)
	}
	if hasExtension(fname, imageExtensions) {
		return openImageSequence(log, fname, opts)
	}
	return nil, errors.Wrapf(ErrConfig, "unsupported input %q", uri)
}

func csiPipeline(sensorID int, opts SourceOptions) string {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	return fmt.Sprintf("nvarguscamerasrc sensor-id=%d ! video/x-raw(memory:NVMM), width=%d, height=%d, framerate=30/1 ! "+
		"nvvidconv ! video/x-raw, format=BGRx ! videoconvert ! video/x-raw, format=BGR ! appsink", sensorID, width, height)
}

// captureSource reads from an OpenCV VideoCapture.
type captureSource struct {
	vc        *gocv.VideoCapture
	bgr       gocv.Mat
	rgb       gocv.Mat
	width     int
	height    int
	frames    int
	streaming bool
}

func openCapture(log logs.Log, device interface{}, api gocv.VideoCaptureAPI, opts SourceOptions) (*captureSource, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(device, api)
	if err != nil {
		return nil, errors.Wrapf(err, "open video capture %v", device)
	}
	if opts.Width > 0 && opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	s := &captureSource{
		vc:        vc,
		bgr:       gocv.NewMat(),
		rgb:       gocv.NewMat(),
		width:     int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height:    int(vc.Get(gocv.VideoCaptureFrameHeight)),
		frames:    int(vc.Get(gocv.VideoCaptureFrameCount)),
		streaming: true,
	}
	if s.frames < 0 {
		s.frames = 0
	}
	log.Infof("Opened video capture %v (%vx%v)", device, s.width, s.height)
	return s, nil
}

func (s *captureSource) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if !s.streaming {
		return Image{}, io.EOF
	}
	if ok := s.vc.Read(&s.bgr); !ok || s.bgr.Empty() {
		s.streaming = false
		return Image{}, io.EOF
	}
	gocv.CvtColor(s.bgr, &s.rgb, gocv.ColorBGRToRGB)
	s.width, s.height = s.rgb.Cols(), s.rgb.Rows()
	return ImageFromBytes(s.width, s.height, s.rgb.ToBytes()), nil
}

func (s *captureSource) IsStreaming() bool { return s.streaming }
func (s *captureSource) Width() int        { return s.width }
func (s *captureSource) Height() int       { return s.height }
func (s *captureSource) FrameCount() int   { return s.frames }

func (s *captureSource) Close() error {
	s.streaming = false
	s.bgr.Close()
	s.rgb.Close()
	return s.vc.Close()
}

// ffmpegSource reads a video file through the buffered ffmpeg reader.
type ffmpegSource struct {
	reader    *FfmpegReader
	buffered  *BufferedFfmpegReader
	frameIdx  int
	streaming bool
}

func openFfmpegSource(ctx context.Context, log logs.Log, fname string, opts SourceOptions) (*ffmpegSource, error) {
	reader, err := ReadFfmpeg(ctx, fname, opts.Width, opts.Height)
	if err != nil {
		return nil, err
	}
	log.Infof("Decoding %v (%vx%v, %v frames)", fname, reader.Width, reader.Height, reader.FrameCount)
	return &ffmpegSource{
		reader:    reader,
		buffered:  NewBufferedFfmpegReader(reader, opts.Buffer),
		streaming: true,
	}, nil
}

func (s *ffmpegSource) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	s.buffered.Discard(s.frameIdx)
	im, err := s.buffered.GetFrame(s.frameIdx)
	if err != nil {
		s.streaming = false
		return Image{}, err
	}
	s.frameIdx++
	return im, nil
}

func (s *ffmpegSource) IsStreaming() bool { return s.streaming }
func (s *ffmpegSource) Width() int        { return s.reader.Width }
func (s *ffmpegSource) Height() int       { return s.reader.Height }
func (s *ffmpegSource) FrameCount() int   { return s.reader.FrameCount }

func (s *ffmpegSource) Close() error {
	s.streaming = false
	s.buffered.Stop()
	return s.reader.Close()
}

// imageSequence reads still images in lexical order.
type imageSequence struct {
	fnames    []string
	next      int
	width     int
	height    int
	opts      SourceOptions
	streaming bool
}

func openImageSequence(log logs.Log, pattern string, opts SourceOptions) (*imageSequence, error) {
	fnames, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "bad input pattern %q", pattern)
	}
	if len(fnames) == 0 {
		return nil, errors.Errorf("no images match %q", pattern)
	}
	sort.Strings(fnames)
	first, err := ImageFromFile(fnames[0])
	if err != nil {
		return nil, err
	}
	s := &imageSequence{
		fnames:    fnames,
		width:     first.Width,
		height:    first.Height,
		opts:      opts,
		streaming: true,
	}
	if opts.Width > 0 && opts.Height > 0 {
		s.width, s.height = opts.Width, opts.Height
	}
	log.Infof("Reading %v images matching %v", len(fnames), pattern)
	return s, nil
}

func (s *imageSequence) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if s.next >= len(s.fnames) {
		s.streaming = false
		return Image{}, io.EOF
	}
	im, err := ImageFromFile(s.fnames[s.next])
	if err != nil {
		return Image{}, err
	}
	s.next++
	if s.next >= len(s.fnames) {
		s.streaming = false
	}
	if im.Width != s.width || im.Height != s.height {
		im = ResizeImage(im, s.width, s.height)
	}
	return im, nil
}

func (s *imageSequence) IsStreaming() bool { return s.streaming }
func (s *imageSequence) Width() int        { return s.width }
func (s *imageSequence) Height() int       { return s.height }
func (s *imageSequence) FrameCount() int   { return len(s.fnames) }
func (s *imageSequence) Close() error {
	s.streaming = false
	return nil
}
