package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshaderchain/backend/backendtest"
)

type fakeWindow struct {
	w, h       int
	now        float64
	frames     int
	closeAfter int
	title      string
	mouse      [4]float32
}

func (w *fakeWindow) MakeCurrent()                   {}
func (w *fakeWindow) Shutdown()                      {}
func (w *fakeWindow) ShouldClose() bool              { return w.frames >= w.closeAfter }
func (w *fakeWindow) GetFramebufferSize() (int, int) { return w.w, w.h }
func (w *fakeWindow) Time() float64                  { return w.now }
func (w *fakeWindow) GetMouseInput() [4]float32      { return w.mouse }
func (w *fakeWindow) SetTitle(title string)          { w.title = title }

func (w *fakeWindow) EndFrame() {
	w.frames++
	w.now += 1.0 / 60
}

func newTestRenderer(t *testing.T, win *fakeWindow, cfg SceneConfig, opts ...RendererOption) (*Renderer, *backendtest.Fake) {
	t.Helper()
	ctx, _, f := newTestContext(t)
	if cfg.MediaDir == "" {
		cfg.MediaDir = t.TempDir()
	}
	r, err := NewRenderer(win, ctx, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	return r, f
}

func TestRendererRequiresScene(t *testing.T) {
	r, _ := newTestRenderer(t, &fakeWindow{w: 4, h: 4}, SceneConfig{})
	assert.ErrorIs(t, r.RenderFrame(), ErrNoScene)
	_, _, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrNoScene)
}

func TestRendererDrawsImageToWindow(t *testing.T) {
	win := &fakeWindow{w: 16, h: 8, closeAfter: 3, mouse: [4]float32{1, 2, -3, -4}}
	r, f := newTestRenderer(t, win, SceneConfig{})
	require.NoError(t, r.Load(loadArgs(t)))
	assert.Equal(t, `"Scene" by tester`, win.title)

	require.NoError(t, r.Run(nil))
	assert.Equal(t, 3, win.frames)
	assert.Equal(t, 3, r.Frame())

	img, _ := r.Scene().Chain.Member("image")
	draws := drawsOf(t, f, img.Buffer())
	require.Len(t, draws, 3)
	assert.Zero(t, draws[2].Framebuffer)
	assert.Equal(t, [4]int32{0, 0, 16, 8}, draws[2].Viewport)

	prog := handleID(t, img.Buffer().Program().Handle())
	mouse, ok := f.Uniform(prog, "iMouse")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, -3, -4}, mouse)
	frame, _ := f.Uniform(prog, "iFrame")
	assert.Equal(t, []float32{2}, frame)

	// The image is already on screen: nothing is blitted.
	blit := handleID(t, r.blit.Handle())
	for _, d := range f.Draws {
		assert.NotEqual(t, blit, d.Program)
	}
}

func TestRendererFollowsWindowSize(t *testing.T) {
	win := &fakeWindow{w: 16, h: 8}
	r, f := newTestRenderer(t, win, SceneConfig{})
	require.NoError(t, r.Load(loadArgs(t)))
	require.NoError(t, r.RenderFrame())

	win.w = 32
	require.NoError(t, r.RenderFrame())
	a, _ := r.Scene().Chain.Member("A")
	draws := drawsOf(t, f, a.Buffer())
	require.Len(t, draws, 2)
	assert.Equal(t, [4]int32{0, 0, 32, 8}, draws[1].Viewport)
	assert.Equal(t, int32(32), f.Texture(draws[1].Target).Width)

	// A minimized window pauses without advancing the clock.
	win.w, win.h = 0, 0
	n := len(f.Draws)
	require.NoError(t, r.RenderFrame())
	assert.Len(t, f.Draws, n)
	assert.Equal(t, 2, r.Frame())
}

func TestRendererOffscreenFixedStep(t *testing.T) {
	win := &fakeWindow{w: 20, h: 10, closeAfter: 100}
	r, f := newTestRenderer(t, win, SceneConfig{Size: Size{4, 4}, Offscreen: true}, WithFixedStep(10))
	require.NoError(t, r.Load(loadArgs(t)))

	var frames int
	err := r.Run(func(r *Renderer) error {
		pixels, size, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, Size{4, 4}, size)
		assert.Len(t, pixels, 64)
		frames++
		if frames == 3 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Frame())

	img := r.Scene().Chain.Output()
	prog := handleID(t, img.Buffer().Program().Handle())
	tm, _ := f.Uniform(prog, "iTime")
	require.Len(t, tm, 1)
	assert.InDelta(t, 0.2, tm[0], 1e-6)
	dt, _ := f.Uniform(prog, "iTimeDelta")
	assert.InDelta(t, 0.1, dt[0], 1e-6)

	// The last draw copies the image output to the window.
	last := f.Draws[len(f.Draws)-1]
	assert.Equal(t, handleID(t, r.blit.Handle()), last.Program)
	assert.Zero(t, last.Framebuffer)
	assert.Equal(t, [4]int32{0, 0, 20, 10}, last.Viewport)
	imgDraws := drawsOf(t, f, img.Buffer())
	assert.Equal(t, imgDraws[len(imgDraws)-1].Target, last.Units[0])
}

func TestRendererHookError(t *testing.T) {
	win := &fakeWindow{w: 4, h: 4, closeAfter: 10}
	r, _ := newTestRenderer(t, win, SceneConfig{})
	require.NoError(t, r.Load(loadArgs(t)))
	boom := errors.New("boom")
	assert.ErrorIs(t, r.Run(func(*Renderer) error { return boom }), boom)
	assert.Equal(t, 0, win.frames)
}

func TestRendererReloadKeepsSceneOnFailure(t *testing.T) {
	logs := captureLogs(t)
	win := &fakeWindow{w: 4, h: 4}
	r, f := newTestRenderer(t, win, SceneConfig{})
	require.NoError(t, r.Load(loadArgs(t)))
	require.NoError(t, r.RenderFrame())
	old := r.Scene()

	f.FailCompile = "gain()"
	require.Error(t, r.Load(loadArgs(t)))
	assert.Same(t, old, r.Scene())
	assert.Equal(t, 1, r.Frame())
	assert.Contains(t, logs.String(), "keeping current scene")
	require.NoError(t, r.RenderFrame())

	f.FailCompile = ""
	require.NoError(t, r.Load(loadArgs(t)))
	assert.NotSame(t, old, r.Scene())
	assert.Equal(t, 0, r.Frame())
}
