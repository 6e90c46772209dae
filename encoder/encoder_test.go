package encoder

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	in, out := Args(Config{Output: "clip.mp4", Width: 320, Height: 200, FPS: 30, Codec: "hevc"})
	assert.Equal(t, "rawvideo", in["f"])
	assert.Equal(t, "rgba", in["pix_fmt"])
	assert.Equal(t, "320x200", in["s"])
	assert.Equal(t, "30", in["r"])
	assert.Equal(t, "libx265", out["c:v"])
	assert.Equal(t, "vflip", out["vf"])
	assert.Equal(t, "hvc1", out["tag:v"])
	assert.Equal(t, "25M", out["b:v"])
	assert.NotContains(t, out, "f")

	_, out = Args(Config{Output: "live.ts", Width: 2, Height: 2, FPS: 1, Bitrate: "4M", Format: "mpegts"})
	assert.Equal(t, "libx264", out["c:v"])
	assert.Equal(t, "mpegts", out["f"])
	assert.Equal(t, "4M", out["b:v"])
	assert.NotContains(t, out, "tag:v")
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{Width: 2, Height: 2, FPS: 1})
	assert.ErrorContains(t, err, "no output")
	_, err = New(Config{Output: "x.mp4", Width: 0, Height: 2, FPS: 1})
	assert.ErrorContains(t, err, "invalid size")
	_, err = New(Config{Output: "x.mp4", Width: 2, Height: 2})
	assert.ErrorContains(t, err, "invalid frame rate")
}

// fakeFFmpeg writes a script that copies stdin to $FAKE_FFMPEG_OUT.
func fakeFFmpeg(t *testing.T) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > \"$FAKE_FFMPEG_OUT\"\n"), 0o755))
	out := filepath.Join(dir, "frames.raw")
	t.Setenv("FAKE_FFMPEG_OUT", out)
	return script, out
}

func TestRecorderPipesFrames(t *testing.T) {
	script, raw := fakeFFmpeg(t)
	cfg := Config{Output: filepath.Join(t.TempDir(), "clip.mp4"), Width: 2, Height: 1, FPS: 25, FFmpegPath: script}
	r, err := New(cfg)
	require.NoError(t, err)

	frame := make([]byte, cfg.FrameSize())
	for i := 0; i < 5; i++ {
		for j := range frame {
			frame[j] = byte(i)
		}
		require.NoError(t, r.WriteFrame(frame))
	}
	assert.Error(t, r.WriteFrame(frame[:3]))
	assert.Equal(t, int64(5), r.Frames())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.WriteFrame(frame), ErrClosed)
	assert.ErrorIs(t, r.Close(), ErrClosed)

	got, err := os.ReadFile(raw)
	require.NoError(t, err)
	require.Len(t, got, 5*cfg.FrameSize())
	for i := 0; i < 5; i++ {
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 8), got[i*8:(i+1)*8])
	}
}

func TestRecorderReportsFFmpegFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	script := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 3\n"), 0o755))
	r, err := New(Config{Output: "x.mp4", Width: 1, Height: 1, FPS: 1, FFmpegPath: script})
	require.NoError(t, err)
	assert.Error(t, r.Close())
}
