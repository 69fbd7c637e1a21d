package lib

import (
	"io"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{"programs": [], "streams": [{"width": 1280, "height": 720, "nb_frames": "1500"}]}`)
	w, h, n, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1280, 720, 1500}, [3]int{w, h, n})

	// live or unindexed streams have no frame count
	w, h, n, err = parseProbe([]byte(`{"streams": [{"width": 640, "height": 480}]}`))
	require.NoError(t, err)
	assert.Equal(t, [3]int{640, 480, 0}, [3]int{w, h, n})

	_, _, _, err = parseProbe([]byte(`{"streams": []}`))
	assert.Error(t, err)
	_, _, _, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

// countingReader fills frame i with the value i and fails or ends after n frames.
type countingReader struct {
	mu   sync.Mutex
	next int
	n    int
	err  error
}

func (rd *countingReader) ReadInto(im Image) error {
	rd.mu.Lock()
	defer rd.mu.Unlock()
	if rd.next >= rd.n {
		if rd.err != nil {
			return rd.err
		}
		return io.EOF
	}
	for i := range im.Bytes {
		im.Bytes[i] = uint8(rd.next)
	}
	rd.next++
	return nil
}

func TestBufferedReader(t *testing.T) {
	bfr := newBufferedReader(&countingReader{n: 10}, 4, 2, 3)
	defer bfr.Stop()

	for i := 0; i < 10; i++ {
		bfr.Discard(i)
		im, err := bfr.GetFrame(i)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, uint8(i), im.Bytes[0])
		assert.Equal(t, uint8(i), im.Bytes[len(im.Bytes)-1])
	}
	bfr.Discard(10)
	_, err := bfr.GetFrame(10)
	assert.Equal(t, io.EOF, err)
}

func TestBufferedReaderError(t *testing.T) {
	broken := errors.New("decoder crashed")
	bfr := newBufferedReader(&countingReader{n: 2, err: broken}, 2, 2, 4)
	defer bfr.Stop()

	im, err := bfr.GetFrame(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), im.Bytes[0])
	_, err = bfr.GetFrame(2)
	assert.Equal(t, broken, err)
}

func TestBufferedReaderStop(t *testing.T) {
	bfr := newBufferedReader(&countingReader{n: 1000}, 2, 2, 2)
	_, err := bfr.GetFrame(1)
	require.NoError(t, err)
	bfr.Stop()
	// frames past the buffer are gone once stopped
	_, err = bfr.GetFrame(50)
	assert.Equal(t, io.EOF, err)
}
