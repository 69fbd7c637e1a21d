package lib

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
)

// SubprocessSegmenter delegates inference to an external process (typically a
// python script driving the GPU runtime).
//
// For every frame we write a 20 byte big-endian header (payload bytes, width,
// height, batch size, ignored class ID or -1) followed by the raw RGB bytes.
// The process answers with a line "json{...}" holding the class grid; any
// other output line is skipped.
type SubprocessSegmenter struct {
	log      logs.Log
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	rd       *bufio.Reader // stdout of the process
	mu       sync.Mutex
	classes  *ClassPalette
	classMap *ClassMap
	fps      float64
}

type subprocessResponse struct {
	Width   int   `json:"width"`
	Height  int   `json:"height"`
	Classes []int `json:"classes"`
}

func NewSubprocessSegmenter(log logs.Log, cfg NetworkConfig) (*SubprocessSegmenter, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.Wrap(ErrConfig, "subprocess backend needs network.command")
	}
	classes, err := LoadNetworkPalette(NetworkFiles{Labels: cfg.Labels, Colors: cfg.Colors})
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	if strings.ToLower(cfg.Device) == "cpu" {
		cmd.Env = append(os.Environ(), "CUDA_VISIBLE_DEVICES=")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %v", cfg.Command)
	}
	log.Infof("Started segmentation process %v (pid %v)", strings.Join(cfg.Command, " "), cmd.Process.Pid)
	s := newPipeSegmenter(log, stdin, stdout, classes)
	s.cmd = cmd
	return s, nil
}

func newPipeSegmenter(log logs.Log, stdin io.WriteCloser, stdout io.Reader, classes *ClassPalette) *SubprocessSegmenter {
	return &SubprocessSegmenter{
		log:     log,
		stdin:   stdin,
		rd:      bufio.NewReader(stdout),
		classes: classes,
	}
}

func (s *SubprocessSegmenter) Process(ctx context.Context, frame Image, ignoreClass string) error {
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
	header := make([]byte, 20)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(rgb.Bytes)))
	binary.BigEndian.PutUint32(header[4:8], uint32(rgb.Width))
	binary.BigEndian.PutUint32(header[8:12], uint32(rgb.Height))
	binary.BigEndian.PutUint32(header[12:16], 1)
	binary.BigEndian.PutUint32(header[16:20], uint32(int32(s.classes.FindClass(ignoreClass))))
	if _, err := s.stdin.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	if _, err := s.stdin.Write(rgb.Bytes); err != nil {
		return errors.Wrap(err, "write frame")
	}

	var line string
	for {
		var err error
		line, err = s.rd.ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read segmentation output")
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "json") {
			break
		}
	}
	var resp subprocessResponse
	if err := json.Unmarshal([]byte(line[4:]), &resp); err != nil {
		return errors.Wrap(err, "decode segmentation output")
	}
	if resp.Width < 1 || resp.Height < 1 || len(resp.Classes) != resp.Width*resp.Height {
		return errors.Errorf("segmentation output has %d classes for a %dx%d grid", len(resp.Classes), resp.Width, resp.Height)
	}
	m := NewClassMap(resp.Width, resp.Height)
	for i, id := range resp.Classes {
		if id < 0 || id > 255 {
			return errors.Errorf("class ID %d out of range", id)
		}
		m.IDs[i] = uint8(id)
	}
	s.classMap = m
	if elapsed := time.Since(t0); elapsed > 0 {
		s.fps = float64(time.Second) / float64(elapsed)
	}
	return nil
}

func (s *SubprocessSegmenter) ClassMap() *ClassMap {
	return s.classMap
}

func (s *SubprocessSegmenter) Classes() *ClassPalette {
	return s.classes
}

func (s *SubprocessSegmenter) NetworkFPS() float64 {
	return s.fps
}

func (s *SubprocessSegmenter) Close() error {
	err := s.stdin.Close()
	if s.cmd != nil {
		if werr := s.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}
