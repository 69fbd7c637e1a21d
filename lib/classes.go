package lib

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var VOCCLASSES = []string{
	"background", "aeroplane", "bicycle", "bird", "boat",
	"bottle", "bus", "car", "cat", "chair",
	"cow", "diningtable", "dog", "horse", "motorbike",
	"person", "pottedplant", "sheep", "sofa", "train",
	"tvmonitor",
}

// ClassPalette maps class IDs to names and visualisation colours.
type ClassPalette struct {
	Names  []string
	Colors []Color
}

// VOCPalette is the Pascal VOC label set with its standard colour map.
func VOCPalette() *ClassPalette {
	return &ClassPalette{
		Names:  append([]string(nil), VOCCLASSES...),
		Colors: vocColormap(len(VOCCLASSES)),
	}
}

// vocColormap spreads the bits of each class ID over the three channels,
// most significant bits first.
func vocColormap(n int) []Color {
	colors := make([]Color, n)
	for id := 0; id < n; id++ {
		var r, g, b uint8
		c := id
		for shift := 7; shift >= 0; shift-- {
			r |= uint8(c&1) << shift
			g |= uint8((c>>1)&1) << shift
			b |= uint8((c>>2)&1) << shift
			c >>= 3
		}
		colors[id] = RGBA(r, g, b, 255)
	}
	return colors
}

// LoadClassPalette reads a labels file (one class name per line) and an
// optional colours file ("[name] r g b [a]" per line). Missing colours are
// filled from the VOC colour map.
func LoadClassPalette(labelsPath string, colorsPath string) (*ClassPalette, error) {
	names, err := readLines(labelsPath)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.Wrapf(ErrConfig, "no classes in %s", labelsPath)
	}
	palette := &ClassPalette{
		Names:  names,
		Colors: vocColormap(len(names)),
	}
	if colorsPath == "" {
		return palette, nil
	}
	lines, err := readLines(colorsPath)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		if i >= len(names) {
			break
		}
		c, err := parseColorLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d", colorsPath, i+1)
		}
		palette.Colors[i] = c
	}
	return palette, nil
}

func parseColorLine(line string) (Color, error) {
	fields := strings.Fields(line)
	var values []uint8
	for j := len(fields) - 1; j >= 0 && len(values) < 4; j-- {
		v, err := strconv.ParseUint(fields[j], 10, 8)
		if err != nil {
			break
		}
		values = append([]uint8{uint8(v)}, values...)
	}
	switch len(values) {
	case 3:
		return RGBA(values[0], values[1], values[2], 255), nil
	case 4:
		return RGBA(values[0], values[1], values[2], values[3]), nil
	}
	return Color{}, errors.Wrapf(ErrConfig, "bad color line %q", line)
}

func readLines(fname string) ([]string, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fname)
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", fname)
	}
	return lines, nil
}

func (p *ClassPalette) NumClasses() int {
	return len(p.Names)
}

func (p *ClassPalette) ClassName(id int) string {
	if id < 0 || id >= len(p.Names) {
		return fmt.Sprintf("class#%d", id)
	}
	return p.Names[id]
}

func (p *ClassPalette) ClassColor(id int) Color {
	if id < 0 || id >= len(p.Colors) {
		return RGBA(0, 0, 0, 255)
	}
	return p.Colors[id]
}

// FindClass returns the ID of the named class, or -1.
func (p *ClassPalette) FindClass(name string) int {
	for i, n := range p.Names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
