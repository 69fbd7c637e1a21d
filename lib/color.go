package lib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Color is an RGB or RGBA value. N is the number of channels in use (3 or 4).
type Color struct {
	V [4]uint8
	N int
}

func RGB(r, g, b uint8) Color {
	return Color{V: [4]uint8{r, g, b, 0}, N: 3}
}

func RGBA(r, g, b, a uint8) Color {
	return Color{V: [4]uint8{r, g, b, a}, N: 4}
}

var White = RGB(255, 255, 255)

// DefaultPathColors are the mask colours of the classes treated as navigable.
func DefaultPathColors() []Color {
	return []Color{
		RGB(85, 85, 255),
		RGB(255, 170, 127),
		RGB(85, 170, 127),
	}
}

// ParseColor accepts "r,g,b" or "r,g,b,a". Spaces are allowed as separators too.
func ParseColor(s string) (Color, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, errors.Wrapf(ErrConfig, "bad color %q", s)
	}
	c := Color{N: len(parts)}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Color{}, errors.Wrapf(ErrConfig, "bad color channel %q in %q", p, s)
		}
		c.V[i] = uint8(v)
	}
	return c, nil
}

// ParseColors parses a ';' separated list, eg "85,85,255;255,170,127".
func ParseColors(s string) ([]Color, error) {
	var colors []Color
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := ParseColor(part)
		if err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return colors, nil
}

// WithChannels returns the colour widened or narrowed to n channels.
// Widening to RGBA produces an opaque colour.
func (c Color) WithChannels(n int) Color {
	if n == c.N {
		return c
	}
	out := Color{V: c.V, N: n}
	if n == 4 {
		out.V[3] = 255
	} else {
		out.V[3] = 0
	}
	return out
}

func (c Color) Equal(px []uint8) bool {
	if len(px) != c.N {
		return false
	}
	for i := 0; i < c.N; i++ {
		if px[i] != c.V[i] {
			return false
		}
	}
	return true
}

func (c Color) String() string {
	if c.N == 4 {
		return fmt.Sprintf("%d,%d,%d,%d", c.V[0], c.V[1], c.V[2], c.V[3])
	}
	return fmt.Sprintf("%d,%d,%d", c.V[0], c.V[1], c.V[2])
}

// ColorSet is a set of colours sharing one channel count.
type ColorSet struct {
	channels int
	colors   []Color
	members  map[[4]uint8]struct{}
}

func NewColorSet(colors ...Color) (ColorSet, error) {
	if len(colors) == 0 {
		return ColorSet{}, errors.Wrap(ErrInvalidInput, "empty color set")
	}
	set := ColorSet{
		channels: colors[0].N,
		members:  make(map[[4]uint8]struct{}, len(colors)),
	}
	if set.channels != 3 && set.channels != 4 {
		return ColorSet{}, errors.Wrapf(ErrInvalidInput, "color %v has %d channels", colors[0], colors[0].N)
	}
	for _, c := range colors {
		if c.N != set.channels {
			return ColorSet{}, errors.Wrapf(ErrInvalidInput, "color %v has %d channels, set has %d", c, c.N, set.channels)
		}
		key := c.V
		if c.N == 3 {
			key[3] = 0
		}
		if _, ok := set.members[key]; ok {
			continue
		}
		set.members[key] = struct{}{}
		set.colors = append(set.colors, c)
	}
	return set, nil
}

// MustColorSet is NewColorSet for static colour lists.
func MustColorSet(colors ...Color) ColorSet {
	set, err := NewColorSet(colors...)
	if err != nil {
		panic(err)
	}
	return set
}

func (s ColorSet) Channels() int {
	return s.channels
}

func (s ColorSet) Len() int {
	return len(s.colors)
}

func (s ColorSet) Colors() []Color {
	return append([]Color(nil), s.colors...)
}

// Contains reports whether px, a slice of Channels() bytes, is in the set.
func (s ColorSet) Contains(px []uint8) bool {
	if len(px) != s.channels {
		return false
	}
	var key [4]uint8
	copy(key[:], px)
	_, ok := s.members[key]
	return ok
}

// WithChannels converts every member to n channels.
func (s ColorSet) WithChannels(n int) ColorSet {
	if n == s.channels || len(s.colors) == 0 {
		return s
	}
	converted := make([]Color, len(s.colors))
	for i, c := range s.colors {
		converted[i] = c.WithChannels(n)
	}
	return MustColorSet(converted...)
}
