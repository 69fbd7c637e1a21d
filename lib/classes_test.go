package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVOCPalette(t *testing.T) {
	p := VOCPalette()
	require.Equal(t, 21, p.NumClasses())
	assert.Equal(t, RGBA(0, 0, 0, 255), p.ClassColor(0))
	assert.Equal(t, RGBA(128, 0, 0, 255), p.ClassColor(1))
	assert.Equal(t, RGBA(0, 128, 0, 255), p.ClassColor(2))
	assert.Equal(t, RGBA(128, 128, 128, 255), p.ClassColor(7))
	assert.Equal(t, RGBA(192, 128, 128, 255), p.ClassColor(15))
	assert.Equal(t, "person", p.ClassName(15))
	assert.Equal(t, "class#30", p.ClassName(30))
	assert.Equal(t, 15, p.FindClass("Person"))
	assert.Equal(t, -1, p.FindClass("void"))
}

func TestLoadClassPalette(t *testing.T) {
	dir := t.TempDir()
	labels := filepath.Join(dir, "classes.txt")
	colors := filepath.Join(dir, "colors.txt")
	require.NoError(t, os.WriteFile(labels, []byte("# labels\nvoid\nfloor\n\nwall\nstairs\n"), 0644))
	require.NoError(t, os.WriteFile(colors, []byte("void 0 0 0\nfloor 85 85 255\n255 170 127 200\n"), 0644))

	p, err := LoadClassPalette(labels, colors)
	require.NoError(t, err)
	want := &ClassPalette{
		Names: []string{"void", "floor", "wall", "stairs"},
		Colors: []Color{
			RGBA(0, 0, 0, 255),
			RGBA(85, 85, 255, 255),
			RGBA(255, 170, 127, 200),
			vocColormap(4)[3],
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("palette mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, os.WriteFile(colors, []byte("void 0 0\n"), 0644))
	_, err = LoadClassPalette(labels, colors)
	assert.Error(t, err)

	_, err = LoadClassPalette(filepath.Join(dir, "missing.txt"), "")
	assert.Error(t, err)
}
