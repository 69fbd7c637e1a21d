package lib

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageCrop(t *testing.T) {
	im := NewImage(6, 4)
	im.SetColor(2, 1, RGB(9, 9, 9))
	im.SetColor(4, 2, RGB(7, 7, 7))

	crop, err := im.Crop(2, 1, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, crop.Width)
	assert.Equal(t, 2, crop.Height)
	assert.Equal(t, RGB(9, 9, 9), crop.ColorAt(0, 0))
	assert.Equal(t, RGB(7, 7, 7), crop.ColorAt(2, 1))

	// the crop is a copy
	crop.SetColor(0, 0, White)
	assert.Equal(t, RGB(9, 9, 9), im.ColorAt(2, 1))

	_, err = im.Crop(2, 1, 7, 3)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = im.Crop(3, 1, 3, 3)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestImageDrawImageClips(t *testing.T) {
	dst := NewImage(4, 4)
	src := NewImage(3, 3)
	src.Fill(RGB(1, 1, 1))

	dst.DrawImage(2, 2, src)
	assert.Equal(t, RGB(1, 1, 1), dst.ColorAt(3, 3))
	assert.Equal(t, RGB(0, 0, 0), dst.ColorAt(1, 1))

	rgba := NewImageChannels(2, 2, 4)
	rgba.DrawImage(0, 0, src)
	assert.Equal(t, []uint8{1, 1, 1, 255}, rgba.Pixel(1, 1))
}

func TestImageSetColorChannels(t *testing.T) {
	rgba := NewImageChannels(2, 2, 4)
	rgba.SetColor(1, 0, RGB(1, 2, 3))
	assert.Equal(t, []uint8{1, 2, 3, 255}, rgba.Pixel(1, 0))
	rgba.SetColor(0, 1, RGBA(4, 5, 6, 7))
	assert.Equal(t, []uint8{4, 5, 6, 7}, rgba.Pixel(0, 1))

	rgb := NewImage(2, 2)
	rgb.SetColor(0, 0, RGBA(8, 9, 10, 11))
	assert.Equal(t, []uint8{8, 9, 10}, rgb.Pixel(0, 0))
	assert.Equal(t, []uint8{0, 0, 0}, rgb.Pixel(1, 0))

	// writes outside the image are dropped
	rgba.SetColor(2, 0, White)
	rgba.SetColor(0, -1, White)
	assert.Equal(t, []uint8{0, 0, 0, 0}, rgba.Pixel(0, 0))
	assert.Equal(t, []uint8{0, 0, 0, 0}, rgba.Pixel(1, 1))
}

func TestImageValidate(t *testing.T) {
	require.NoError(t, NewImage(2, 2).Validate())
	assert.Error(t, NewImageChannels(2, 2, 2).Validate())
	assert.Error(t, Image{Width: 2, Height: 2, Channels: 3, Bytes: make([]byte, 11)}.Validate())
}

func TestImageGoRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{10, 20, 30, 255})

	im := ImageFromGo(src)
	assert.Equal(t, 3, im.Channels)
	assert.Equal(t, [3]uint8{10, 20, 30}, im.GetRGB(2, 1))
	back := im.AsImage()
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, back.NRGBAAt(2, 1))
}

func TestImagePNG(t *testing.T) {
	im := NewImage(5, 3)
	im.SetColor(4, 2, RGB(85, 170, 127))

	data, err := im.AsPNG()
	require.NoError(t, err)
	decoded, err := ImageFromReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, im.Bytes, decoded.Bytes)

	fname := filepath.Join(t.TempDir(), "mask.png")
	require.NoError(t, im.Save(fname))
	loaded, err := ImageFromFile(fname)
	require.NoError(t, err)
	assert.Equal(t, im.Bytes, loaded.Bytes)
}
