package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiJSON = `{"Shader": {
  "info": {"id": "abc123", "name": "Feedback", "username": "someone"},
  "renderpass": [
    {"type": "common", "name": "Common", "code": "float k;"},
    {"type": "buffer", "name": "Buffer A", "code": "void mainImage(out vec4 c, in vec2 p) {}",
     "inputs": [
       {"id": 257, "channel": 0, "ctype": "buffer", "src": "/media/previz/buffer00.png",
        "sampler": {"filter": "linear", "wrap": "clamp", "vflip": "true"}},
       {"id": 30, "channel": 1, "ctype": "texture", "src": "/media/a/tex.png",
        "sampler": {"filter": "mipmap", "wrap": "repeat"}}
     ],
     "outputs": [{"id": 257, "channel": 0}]},
    {"type": "image", "name": "Image", "code": "void mainImage(out vec4 c, in vec2 p) {}",
     "inputs": [
       {"id": 258, "channel": 0, "ctype": "buffer", "src": "/media/previz/weird.png"},
       {"id": 1, "channel": 2, "ctype": "keyboard", "src": ""},
       {"id": 2, "channel": 3, "ctype": "hologram", "src": ""}
     ]},
    {"type": "sound", "name": "Sound", "code": ""}
  ]
}}`

const rawJSON = `[{"info": {"id": "raw1", "name": "Raw", "username": "x"},
  "renderpass": [
    {"type": "image", "name": "Image", "code": "void mainImage(out vec4 c, in vec2 p) {}",
     "inputs": [{"id": "4dXGR8", "filepath": "/media/previz/buffer01.png", "type": "buffer", "channel": 1}],
     "outputs": [{"id": "37", "channel": 0}]}
  ]}]`

func TestShaderArgsFromJSON(t *testing.T) {
	resp, err := Parse([]byte(apiJSON))
	require.NoError(t, err)
	assert.True(t, resp.IsAPI)

	args, err := ShaderArgsFromJSON(resp)
	require.NoError(t, err)
	assert.Equal(t, `"Feedback" by someone`, args.Title)
	assert.Equal(t, "float k;", args.CommonCode)
	assert.False(t, args.Complete)
	require.Contains(t, args.Buffers, "A")

	a := args.Buffers["A"]
	assert.Equal(t, "A", a.Name)
	require.NotNil(t, a.Inputs[0])
	assert.Equal(t, "A", a.Inputs[0].BufferRef)
	assert.Equal(t, "clamp", a.Inputs[0].Sampler.Wrap)
	assert.Equal(t, "/media/a/tex.png", a.Inputs[1].Src)
	assert.Nil(t, a.Inputs[2])

	img := args.Image()
	require.NotNil(t, img)
	// No bufferNN file name: the output id decides.
	assert.Equal(t, "B", img.Inputs[0].BufferRef)
	assert.Equal(t, "keyboard", img.Inputs[2].CType)
	assert.Equal(t, "hologram", img.Inputs[3].CType)
}

func TestParseRaw(t *testing.T) {
	resp, err := Parse([]byte(rawJSON))
	require.NoError(t, err)
	assert.False(t, resp.IsAPI)
	pass := resp.Shader.RenderPass[0]
	assert.Equal(t, ResourceID(-1), pass.Inputs[0].ID)
	assert.Equal(t, ResourceID(37), pass.Outputs[0].ID)

	args, err := ShaderArgsFromJSON(resp)
	require.NoError(t, err)
	assert.True(t, args.Complete)
	assert.Equal(t, "B", args.Image().Inputs[1].BufferRef)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"Error": "Shader not found"}`))
	assert.ErrorContains(t, err, "Shader not found")
	_, err = Parse([]byte(`[]`))
	assert.Error(t, err)
	_, err = Parse([]byte(`{"foo": 1}`))
	assert.Error(t, err)

	resp, err := Parse([]byte(`{"renderpass": [{"type": "buffer", "name": "Buffer Q", "code": ""}]}`))
	require.NoError(t, err)
	_, err = ShaderArgsFromJSON(resp)
	assert.ErrorContains(t, err, "no valid index")

	resp, err = Parse([]byte(`{"renderpass": [{"type": "common", "code": ""}]}`))
	require.NoError(t, err)
	_, err = ShaderArgsFromJSON(resp)
	assert.ErrorContains(t, err, "no image pass")
}

func TestLoadFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "shader.json")
	require.NoError(t, os.WriteFile(name, []byte(apiJSON), 0o644))
	resp, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.Shader.Info.ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShaderID(t *testing.T) {
	assert.Equal(t, "4lSGRV", ShaderID("4lSGRV"))
	assert.Equal(t, "4lSGRV", ShaderID("https://www.shadertoy.com/view/4lSGRV/"))
}

func TestFetch(t *testing.T) {
	var gotKey, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "/shaders/abc123", r.URL.Path)
		w.Write([]byte(apiJSON))
	}))
	defer srv.Close()

	c := NewClient("secret")
	c.APIURL = srv.URL
	resp, err := c.Fetch(context.Background(), "https://www.shadertoy.com/view/abc123")
	require.NoError(t, err)
	assert.True(t, resp.IsAPI)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "goshaderchain", gotAgent)
}

func TestFetchFallsBackToRaw(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/shaders/raw1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error": "Shader not found"}`))
	})
	mux.HandleFunc("/raw", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, `{"shaders":["raw1"]}`, r.PostForm.Get("s"))
		w.Write([]byte(rawJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient("k")
	c.APIURL, c.RawURL = srv.URL+"/api", srv.URL+"/raw"
	resp, err := c.Fetch(context.Background(), "raw1")
	require.NoError(t, err)
	assert.False(t, resp.IsAPI)
	assert.Equal(t, "raw1", resp.Shader.Info.ID)
}

func TestFetchWithoutKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := NewClient("").Fetch(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
