package display

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exactly10!", Truncate("exactly10!", 10))
	assert.Equal(t, "A Very ...", Truncate("A Very Long Song Title", 10))
	assert.Equal(t, "..", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "", Truncate("", 5))
}

func TestParseTheme_PartialKeepsDefaults(t *testing.T) {
	th, err := ParseTheme([]byte(`
name = "night"
borderless = true
[colors]
error = "#FF0000"
`))
	require.NoError(t, err)
	assert.Equal(t, "night", th.Name)
	assert.True(t, th.Borderless)
	assert.Equal(t, "#FF0000", th.Colors.Error)
	assert.Equal(t, DefaultTheme().Colors.Foreground, th.Colors.Foreground)
}

func TestParseTheme_RejectsBadColor(t *testing.T) {
	_, err := ParseTheme([]byte("[colors]\nforeground = \"white\"\n"))
	assert.Error(t, err)

	_, err = ParseTheme([]byte("not = [toml"))
	assert.Error(t, err)
}

func TestLoadTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.toml")
	require.NoError(t, os.WriteFile(path, []byte(`name = "file"`), 0o644))

	th, err := LoadTheme(path)
	require.NoError(t, err)
	assert.Equal(t, "file", th.Name)

	_, err = LoadTheme(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestViewEqual(t *testing.T) {
	a := View{Title: "x", Lines: []string{"1", "2"}}
	assert.True(t, a.Equal(View{Title: "x", Lines: []string{"1", "2"}}))
	assert.False(t, a.Equal(View{Title: "x", Lines: []string{"1"}}))
	assert.False(t, a.Equal(View{Title: "x", Lines: []string{"1", "3"}}))
	assert.False(t, a.Equal(View{Title: "x", Lines: []string{"1", "2"}, Error: "e"}))
	// progress only matters when shown
	assert.True(t, a.Equal(View{Title: "x", Lines: []string{"1", "2"}, Progress: 0.5}))
}

func TestTerminalRenderer_Frame(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalRenderer(&buf, NewStyle(DefaultTheme()), 240, 135, false)
	assert.Equal(t, 30, r.Cols())

	out := r.Frame(View{Title: "Seoul", Lines: []string{"3:05", "PM"}})
	assert.Contains(t, out, "Seoul")
	assert.Contains(t, out, "3:05")

	// the error replaces the body
	out = r.Frame(View{Title: "Weather", Lines: []string{"--°C"}, Error: "No Connection"})
	assert.Contains(t, out, "No Connection")
	assert.NotContains(t, out, "--°C")

	require.NoError(t, r.Render(View{Title: "T", ShowProgress: true, Progress: 0.5}))
	assert.Contains(t, buf.String(), "█")
}
