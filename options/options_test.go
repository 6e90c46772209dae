package options

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
shader = "4lSGRV"
fps = 30
format = "rgba16f"
watch = true
file = "scene.json"
`)
	o, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "4lSGRV", o.ShaderID)
	assert.Equal(t, 30, o.FPS)
	assert.Equal(t, "rgba16f", o.Format)
	assert.True(t, o.Watch)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1280, o.Width)
	assert.Equal(t, path, o.Config)
	assert.NoError(t, o.Validate())
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "widht = 3\n"))
	assert.ErrorContains(t, err, "widht")
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "fps = 30\nwidth = 640\nmode = \"record\"\n")
	o, err := Parse("test", []string{"-config", path, "-fps", "24", "-v"})
	require.NoError(t, err)
	assert.Equal(t, 24, o.FPS)
	assert.Equal(t, 640, o.Width)
	assert.Equal(t, ModeRecord, o.Mode)
	assert.True(t, o.Verbose)
	assert.True(t, o.Recording())
}

func TestParseDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	o, err := Parse("test", nil)
	require.NoError(t, err)
	assert.Empty(t, o.Config)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("height = 360\n"), 0o644))
	o, err = Parse("test", nil)
	require.NoError(t, err)
	assert.Equal(t, 360, o.Height)
	assert.Equal(t, DefaultFile, o.Config)
}

func TestParseMissingConfig(t *testing.T) {
	_, err := Parse("test", []string{"-config", filepath.Join(t.TempDir(), "nope.toml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*ShaderOptions){
		"mode":     func(o *ShaderOptions) { o.Mode = "dance" },
		"size":     func(o *ShaderOptions) { o.Width = 0 },
		"fps":      func(o *ShaderOptions) { o.FPS = -1 },
		"format":   func(o *ShaderOptions) { o.Format = "rgb565" },
		"codec":    func(o *ShaderOptions) { o.Codec = "vp9" },
		"watch":    func(o *ShaderOptions) { o.Watch = true },
		"headless": func(o *ShaderOptions) { o.Headless = true },
	} {
		t.Run(name, func(t *testing.T) {
			o := Default()
			mutate(o)
			assert.Error(t, o.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	o := Default()
	o.ShaderID = "abc"
	var buf bytes.Buffer
	require.NoError(t, o.Save(&buf))
	assert.Contains(t, buf.String(), "shader = 'abc'")

	path := writeConfig(t, buf.String())
	got, err := Load(path)
	require.NoError(t, err)
	got.Config = ""
	assert.Equal(t, o, got)
}
