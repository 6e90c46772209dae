package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/options"
	"github.com/richinsley/goshaderchain/renderer"
)

const shaderJSON = `{"Shader": {
  "info": {"name": "Mic", "username": "me"},
  "renderpass": [
    {"type": "image", "name": "Image", "code": "void mainImage(out vec4 c, in vec2 p) { c = vec4(1.0); }",
     "inputs": [{"id": 1, "channel": 0, "ctype": "mic", "src": ""}]}
  ]
}}`

func writeShader(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "shader.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadShaderFromFile(t *testing.T) {
	o := options.Default()
	o.File = writeShader(t, t.TempDir(), shaderJSON)
	args, err := loadShader(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, `"Mic" by me`, args.Title)
	assert.True(t, usesMicrophone(args))

	o.File = filepath.Join(t.TempDir(), "missing.json")
	_, err = loadShader(context.Background(), o)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, backend.RGBA8, parseFormat("rgba8"))
	assert.Equal(t, backend.RGBA16F, parseFormat("RGBA16F"))
	assert.Equal(t, backend.RGBA32F, parseFormat("rgba32f"))
}

func TestChainHooks(t *testing.T) {
	var calls []int
	boom := errors.New("boom")
	h := chainHooks(
		func(*renderer.Renderer) error { calls = append(calls, 1); return nil },
		func(*renderer.Renderer) error { calls = append(calls, 2); return boom },
		func(*renderer.Renderer) error { calls = append(calls, 3); return nil },
	)
	assert.ErrorIs(t, h(nil), boom)
	assert.Equal(t, []int{1, 2}, calls)
	assert.NoError(t, chainHooks()(nil))
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, shaderJSON)
	fw, err := watchFile(path)
	require.NoError(t, err)
	defer fw.Close()

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))
	select {
	case <-fw.Changed():
		t.Fatal("change reported for another file")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(shaderJSON+"\n"), 0o644))
	select {
	case <-fw.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
