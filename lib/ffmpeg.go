package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// FfmpegReader decodes a video file into RGB frames with an ffmpeg process.
type FfmpegReader struct {
	Fname      string
	Width      int
	Height     int
	FrameCount int
	cmd        *exec.Cmd
	stdout     io.ReadCloser
}

type ffprobeOutput struct {
	Streams []struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		NbFrames string `json:"nb_frames"`
	} `json:"streams"`
}

// ProbeVideo returns the size and frame count (0 when unknown) of a video file.
func ProbeVideo(ctx context.Context, fname string) (width int, height int, frames int, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,nb_frames",
		"-of", "json", fname)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "ffprobe %s: %s", fname, stderr.String())
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (width int, height int, frames int, err error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, 0, 0, errors.Wrap(err, "decode ffprobe output")
	}
	if len(probe.Streams) == 0 || probe.Streams[0].Width < 1 || probe.Streams[0].Height < 1 {
		return 0, 0, 0, errors.New("no video stream")
	}
	st := probe.Streams[0]
	frames, _ = strconv.Atoi(st.NbFrames)
	return st.Width, st.Height, frames, nil
}

// ReadFfmpeg starts decoding fname. When width and height are zero the
// native size of the video is used, otherwise frames are scaled.
func ReadFfmpeg(ctx context.Context, fname string, width int, height int) (*FfmpegReader, error) {
	nativeWidth, nativeHeight, frames, err := ProbeVideo(ctx, fname)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		width, height = nativeWidth, nativeHeight
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-i", fname,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-c:v", "rawvideo", "-pix_fmt", "rgb24", "-f", "rawvideo",
		"-")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg")
	}
	return &FfmpegReader{
		Fname:      fname,
		Width:      width,
		Height:     height,
		FrameCount: frames,
		cmd:        cmd,
		stdout:     stdout,
	}, nil
}

// ReadInto fills im with the next frame. Returns io.EOF at the end.
func (rd *FfmpegReader) ReadInto(im Image) error {
	_, err := io.ReadFull(rd.stdout, im.Bytes)
	if err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

func (rd *FfmpegReader) Close() error {
	rd.stdout.Close()
	// ffmpeg exits with an error when its output is closed early
	rd.cmd.Wait()
	return nil
}

// BufferedFfmpegReader decodes ahead of the consumer into a pool of frames.
type BufferedFfmpegReader struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer []Image // decoded frames, oldest first
	offset int     // frame index of buffer[0]
	extras []Image // free frames
	done   bool
	err    error
}

type frameReader interface {
	ReadInto(im Image) error
}

func NewBufferedFfmpegReader(vreader *FfmpegReader, size int) *BufferedFfmpegReader {
	return newBufferedReader(vreader, vreader.Width, vreader.Height, size)
}

func newBufferedReader(vreader frameReader, width int, height int, size int) *BufferedFfmpegReader {
	if size < 1 {
		size = 1
	}
	bfr := &BufferedFfmpegReader{}
	bfr.cond = sync.NewCond(&bfr.mu)
	for i := 0; i < size; i++ {
		bfr.extras = append(bfr.extras, NewImage(width, height))
	}

	go func() {
		bfr.mu.Lock()
		for {
			for len(bfr.extras) == 0 && !bfr.done {
				bfr.cond.Wait()
			}
			if bfr.done {
				bfr.mu.Unlock()
				return
			}
			im := bfr.extras[len(bfr.extras)-1]
			bfr.extras = bfr.extras[0 : len(bfr.extras)-1]
			bfr.mu.Unlock()

			err := vreader.ReadInto(im)

			bfr.mu.Lock()
			if err != nil {
				if err != io.EOF {
					bfr.err = err
				}
				bfr.done = true
				bfr.cond.Broadcast()
				bfr.mu.Unlock()
				return
			}
			bfr.buffer = append(bfr.buffer, im)
			bfr.cond.Broadcast()
		}
	}()

	return bfr
}

// GetFrame blocks until frame frameIdx is decoded. At the end of the stream it
// returns io.EOF, or the decode error.
func (bfr *BufferedFfmpegReader) GetFrame(frameIdx int) (Image, error) {
	bfr.mu.Lock()
	defer bfr.mu.Unlock()

	for !bfr.done && bfr.offset+len(bfr.buffer) <= frameIdx {
		bfr.cond.Wait()
	}

	if frameIdx >= bfr.offset && frameIdx < bfr.offset+len(bfr.buffer) {
		return bfr.buffer[frameIdx-bfr.offset], nil
	}
	if bfr.err != nil {
		return Image{}, bfr.err
	}
	return Image{}, io.EOF
}

// Discard returns frames below frameIdx to the pool. Images returned by
// GetFrame for those frames must no longer be used.
func (bfr *BufferedFfmpegReader) Discard(frameIdx int) {
	bfr.mu.Lock()
	defer bfr.mu.Unlock()

	if frameIdx <= bfr.offset {
		return
	}
	pos := frameIdx - bfr.offset
	if pos > len(bfr.buffer) {
		pos = len(bfr.buffer)
	}

	discarded := bfr.buffer[0:pos]
	bfr.extras = append(bfr.extras, discarded...)
	n := copy(bfr.buffer[0:], bfr.buffer[pos:])
	bfr.buffer = bfr.buffer[0:n]
	bfr.offset += pos

	bfr.cond.Broadcast()
}

// Stop ends decoding. Frames already buffered stay readable.
func (bfr *BufferedFfmpegReader) Stop() {
	bfr.mu.Lock()
	bfr.done = true
	bfr.cond.Broadcast()
	bfr.mu.Unlock()
}
