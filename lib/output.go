package lib

import (
	"fmt"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoOutput consumes rendered frames.
type VideoOutput interface {
	Render(im Image) error
	// SetStatus sets the window title, where the output has one.
	SetStatus(status string)
	IsStreaming() bool
	Close() error
}

type OutputOptions struct {
	Headless bool
	FPS      float64
	Codec    string
}

// OpenVideoOutput opens an output from a URI:
//
//	"" or display://N      OpenCV window (null output when headless)
//	null://                discard frames
//	path.mp4, path.avi     video file
//	path.png, out-%05d.jpg image file, overwritten per frame unless it has a % verb
func OpenVideoOutput(log logs.Log, uri string, opts OutputOptions) (VideoOutput, error) {
	switch {
	case uri == "" || strings.HasPrefix(uri, "display://"):
		if opts.Headless {
			log.Infof("Headless mode, frames will not be displayed")
			return &nullOutput{streaming: true}, nil
		}
		return &windowOutput{window: gocv.NewWindow("segnav"), mat: gocv.NewMat(), streaming: true}, nil
	case uri == "null://":
		return &nullOutput{streaming: true}, nil
	case hasExtension(uri, videoExtensions):
		fps := opts.FPS
		if fps <= 0 {
			fps = 30
		}
		codec := opts.Codec
		if len(codec) != 4 {
			codec = "MJPG"
		}
		return &writerOutput{log: log, fname: uri, fps: fps, codec: codec, mat: gocv.NewMat(), streaming: true}, nil
	case hasExtension(uri, imageExtensions):
		return &imageOutput{pattern: uri, streaming: true}, nil
	}
	return nil, errors.Wrapf(ErrConfig, "unsupported output %q", uri)
}

// rgbToBGRMat converts im into dst for OpenCV.
func rgbToBGRMat(im Image, dst *gocv.Mat) error {
	rgb := im.ToChannels(3)
	src, err := gocv.NewMatFromBytes(rgb.Height, rgb.Width, gocv.MatTypeCV8UC3, rgb.Bytes)
	if err != nil {
		return errors.Wrap(err, "image to mat")
	}
	defer src.Close()
	gocv.CvtColor(src, dst, gocv.ColorRGBToBGR)
	return nil
}

type windowOutput struct {
	window    *gocv.Window
	mat       gocv.Mat
	streaming bool
}

func (o *windowOutput) Render(im Image) error {
	if err := rgbToBGRMat(im, &o.mat); err != nil {
		return err
	}
	o.window.IMShow(o.mat)
	// ESC or closing the window stops the stream
	if key := o.window.WaitKey(1); key == 27 || !o.window.IsOpen() {
		o.streaming = false
	}
	return nil
}

func (o *windowOutput) SetStatus(status string) {
	o.window.SetWindowTitle(status)
}

func (o *windowOutput) IsStreaming() bool {
	return o.streaming
}

func (o *windowOutput) Close() error {
	o.streaming = false
	o.mat.Close()
	return o.window.Close()
}

type writerOutput struct {
	log       logs.Log
	fname     string
	fps       float64
	codec     string
	writer    *gocv.VideoWriter
	mat       gocv.Mat
	streaming bool
}

func (o *writerOutput) Render(im Image) error {
	if o.writer == nil {
		writer, err := gocv.VideoWriterFile(o.fname, o.codec, o.fps, im.Width, im.Height, true)
		if err != nil {
			o.streaming = false
			return errors.Wrapf(err, "open video writer %s", o.fname)
		}
		o.log.Infof("Writing %vx%v %v video to %v", im.Width, im.Height, o.codec, o.fname)
		o.writer = writer
	}
	if err := rgbToBGRMat(im, &o.mat); err != nil {
		return err
	}
	return errors.Wrap(o.writer.Write(o.mat), "write frame")
}

func (o *writerOutput) SetStatus(string) {}

func (o *writerOutput) IsStreaming() bool {
	return o.streaming
}

func (o *writerOutput) Close() error {
	o.streaming = false
	o.mat.Close()
	if o.writer != nil {
		return o.writer.Close()
	}
	return nil
}

type imageOutput struct {
	pattern   string
	frameIdx  int
	streaming bool
}

func (o *imageOutput) fname() string {
	if strings.Contains(o.pattern, "%") {
		return fmt.Sprintf(o.pattern, o.frameIdx)
	}
	return o.pattern
}

func (o *imageOutput) Render(im Image) error {
	err := im.Save(o.fname())
	o.frameIdx++
	return err
}

func (o *imageOutput) SetStatus(string) {}

func (o *imageOutput) IsStreaming() bool {
	return o.streaming
}

func (o *imageOutput) Close() error {
	o.streaming = false
	return nil
}

type nullOutput struct {
	streaming bool
	status    string
}

func (o *nullOutput) Render(Image) error { return nil }

func (o *nullOutput) SetStatus(status string) {
	o.status = status
}

func (o *nullOutput) IsStreaming() bool {
	return o.streaming
}

func (o *nullOutput) Close() error {
	o.streaming = false
	return nil
}
