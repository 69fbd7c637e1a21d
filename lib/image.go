package lib

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Image is a row-major pixel buffer with the origin at the top left.
// Channels is 3 (RGB) or 4 (RGBA).
type Image struct {
	Width    int
	Height   int
	Channels int
	Bytes    []byte
}

func NewImage(width int, height int) Image {
	return NewImageChannels(width, height, 3)
}

func NewImageChannels(width int, height int, channels int) Image {
	return Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Bytes:    make([]byte, channels*width*height),
	}
}

func ImageFromBytes(width int, height int, bytes []byte) Image {
	return Image{
		Width:    width,
		Height:   height,
		Channels: 3,
		Bytes:    bytes,
	}
}

// ImageFromGo converts any image.Image into an RGB Image.
func ImageFromGo(im image.Image) Image {
	nrgba := imaging.Clone(im)
	width := nrgba.Rect.Dx()
	height := nrgba.Rect.Dy()
	out := NewImage(width, height)
	for j := 0; j < height; j++ {
		row := nrgba.Pix[j*nrgba.Stride:]
		for i := 0; i < width; i++ {
			out.SetRGB(i, j, [3]uint8{row[i*4], row[i*4+1], row[i*4+2]})
		}
	}
	return out
}

func ImageFromReader(rd io.Reader) (Image, error) {
	im, err := imaging.Decode(rd)
	if err != nil {
		return Image{}, errors.Wrap(err, "decode image")
	}
	return ImageFromGo(im), nil
}

func ImageFromFile(fname string) (Image, error) {
	im, err := imaging.Open(fname)
	if err != nil {
		return Image{}, errors.Wrapf(err, "open image %s", fname)
	}
	return ImageFromGo(im), nil
}

// Validate checks the dimensions and buffer length.
func (im Image) Validate() error {
	if im.Width < 1 || im.Height < 1 {
		return errors.Wrapf(ErrInvalidInput, "image is %dx%d", im.Width, im.Height)
	}
	if im.Channels != 3 && im.Channels != 4 {
		return errors.Wrapf(ErrInvalidInput, "image has %d channels", im.Channels)
	}
	if len(im.Bytes) != im.Width*im.Height*im.Channels {
		return errors.Wrapf(ErrInvalidInput, "image buffer has %d bytes, want %d", len(im.Bytes), im.Width*im.Height*im.Channels)
	}
	return nil
}

func (im Image) Empty() bool {
	return im.Width == 0 || im.Height == 0
}

func (im Image) offset(i int, j int) int {
	return (j*im.Width + i) * im.Channels
}

func (im Image) inside(i int, j int) bool {
	return i >= 0 && i < im.Width && j >= 0 && j < im.Height
}

// Pixel returns the channels of pixel (i, j). The slice aliases the buffer.
func (im Image) Pixel(i int, j int) []uint8 {
	off := im.offset(i, j)
	return im.Bytes[off : off+im.Channels]
}

func (im Image) SetColor(i int, j int, c Color) {
	if !im.inside(i, j) {
		return
	}
	cc := c.WithChannels(im.Channels)
	copy(im.Bytes[im.offset(i, j):], cc.V[:im.Channels])
}

func (im Image) ColorAt(i int, j int) Color {
	c := Color{N: im.Channels}
	copy(c.V[:], im.Pixel(i, j))
	return c
}

func (im Image) SetRGB(i int, j int, color [3]uint8) {
	if !im.inside(i, j) {
		return
	}
	off := im.offset(i, j)
	copy(im.Bytes[off:off+3], color[:])
	if im.Channels == 4 {
		im.Bytes[off+3] = 255
	}
}

func (im Image) GetRGB(i int, j int) [3]uint8 {
	var color [3]uint8
	copy(color[:], im.Bytes[im.offset(i, j):])
	return color
}

func (im Image) FillRectangle(left, top, right, bottom int, color Color) {
	for i := left; i < right; i++ {
		for j := top; j < bottom; j++ {
			im.SetColor(i, j, color)
		}
	}
}

func (im Image) Fill(color Color) {
	im.FillRectangle(0, 0, im.Width, im.Height, color)
}

func (im Image) Copy() Image {
	bytes := make([]byte, len(im.Bytes))
	copy(bytes, im.Bytes)
	return Image{
		Width:    im.Width,
		Height:   im.Height,
		Channels: im.Channels,
		Bytes:    bytes,
	}
}

// DrawImage copies other onto im with its top left corner at (left, top).
// Pixels falling outside im are dropped.
func (im Image) DrawImage(left int, top int, other Image) {
	for j := 0; j < other.Height; j++ {
		if top+j < 0 || top+j >= im.Height {
			continue
		}
		for i := 0; i < other.Width; i++ {
			if left+i < 0 || left+i >= im.Width {
				continue
			}
			if im.Channels == other.Channels {
				copy(im.Pixel(left+i, top+j), other.Pixel(i, j))
			} else {
				im.SetColor(left+i, top+j, other.ColorAt(i, j))
			}
		}
	}
}

// Crop returns a copy of the rectangle [sx, ex) x [sy, ey).
func (im Image) Crop(sx int, sy int, ex int, ey int) (Image, error) {
	if sx < 0 || sy < 0 || ex > im.Width || ey > im.Height || ex <= sx || ey <= sy {
		return Image{}, errors.Wrapf(ErrInvalidInput, "crop (%d,%d)-(%d,%d) outside %dx%d image", sx, sy, ex, ey, im.Width, im.Height)
	}
	other := NewImageChannels(ex-sx, ey-sy, im.Channels)
	rowBytes := other.Width * im.Channels
	for j := 0; j < other.Height; j++ {
		copy(other.Bytes[j*rowBytes:(j+1)*rowBytes], im.Bytes[im.offset(sx, sy+j):])
	}
	return other, nil
}

// ToChannels converts between RGB and RGBA. RGBA output is opaque.
func (im Image) ToChannels(channels int) Image {
	if channels == im.Channels {
		return im
	}
	out := NewImageChannels(im.Width, im.Height, channels)
	out.DrawImage(0, 0, im)
	return out
}

func (im Image) AsImage() *image.NRGBA {
	nrgba := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
	for j := 0; j < im.Height; j++ {
		for i := 0; i < im.Width; i++ {
			px := im.Pixel(i, j)
			a := uint8(255)
			if im.Channels == 4 {
				a = px[3]
			}
			nrgba.SetNRGBA(i, j, color.NRGBA{px[0], px[1], px[2], a})
		}
	}
	return nrgba
}

// SetFromGo overwrites im with the pixels of src, which must have the same size.
func (im Image) SetFromGo(src image.Image) {
	converted := ImageFromGo(src)
	im.DrawImage(0, 0, converted)
}

func (im Image) AsPNG() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, im.AsImage()); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// Save writes the image, picking the format from the file extension.
func (im Image) Save(fname string) error {
	if err := imaging.Save(im.AsImage(), fname); err != nil {
		return errors.Wrapf(err, "save image %s", fname)
	}
	return nil
}
