package renderer

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/backend/backendtest"
	"github.com/richinsley/goshaderchain/inputs"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

const passCode = `void mainImage(out vec4 c, in vec2 p) {
    c = texture(iChannel0, p / iResolution.xy) + vec4(iTime);
}
`

func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *backend.Backend, *backendtest.Fake) {
	t.Helper()
	b, f := backendtest.NewBackend()
	ctx, err := NewContext(b, opts...)
	require.NoError(t, err)
	t.Cleanup(ctx.Release)
	return ctx, b, f
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logx.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { logx.SetLogger(nil) })
	return &buf
}

// drawsOf returns the draws of buf's program, in order.
func drawsOf(t *testing.T, f *backendtest.Fake, buf *Buffer) []backendtest.Draw {
	t.Helper()
	id := handleID(t, buf.Program().Handle())
	var out []backendtest.Draw
	for _, d := range f.Draws {
		if d.Program == id {
			out = append(out, d)
		}
	}
	return out
}

func renderFrames(t *testing.T, ctx *Context, chain *SwapChain, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, ctx.Render(chain, FrameInput{Time: float64(i) / 60, TimeDelta: 1.0 / 60, Frame: i}))
	}
}

func TestSelfFeedbackReadsPreviousFrame(t *testing.T) {
	ctx, _, f := newTestContext(t)
	a := NewBuffer("A", passCode)
	require.NoError(t, a.SetInput(0, inputs.NewBufferInput(nil, "A", "", nil)))
	chain := NewSwapChain(backend.None)
	_, err := chain.EmplaceBack(a, Size{8, 8}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))

	renderFrames(t, ctx, chain, 4)
	draws := drawsOf(t, f, a)
	require.Len(t, draws, 4)
	for i, d := range draws {
		assert.NotEqual(t, d.Target, d.Units[0], "frame %d samples its own write target", i)
		if i > 0 {
			assert.Equal(t, draws[i-1].Target, d.Units[0], "frame %d", i)
		}
		assert.Equal(t, [4]int32{0, 0, 8, 8}, d.Viewport)
		assert.Equal(t, int32(6), d.Count)
	}
	assert.Equal(t, draws[0].Target, draws[2].Target)
}

func TestChainPreviousFrameRead(t *testing.T) {
	for _, order := range [][]string{{"A", "B"}, {"B", "A"}} {
		t.Run(strings.Join(order, ""), func(t *testing.T) {
			ctx, _, f := newTestContext(t)
			bufs := map[string]*Buffer{
				"A": NewBuffer("A", passCode),
				"B": NewBuffer("B", passCode),
			}
			require.NoError(t, bufs["B"].SetInput(0, inputs.NewBufferInput(nil, "A", "", nil)))
			chain := NewSwapChain(backend.RGBA8)
			for _, id := range order {
				_, err := chain.EmplaceBack(bufs[id], Size{4, 4}, DoubleBuffer)
				require.NoError(t, err)
			}
			require.NoError(t, ctx.Init(chain))

			renderFrames(t, ctx, chain, 3)
			da, db := drawsOf(t, f, bufs["A"]), drawsOf(t, f, bufs["B"])
			require.Len(t, da, 3)
			require.Len(t, db, 3)
			for k := 1; k < 3; k++ {
				assert.Equal(t, da[k-1].Target, db[k].Units[0], "frame %d", k)
				assert.NotEqual(t, da[k].Target, db[k].Units[0], "frame %d", k)
			}
		})
	}
}

func TestSingleBufferReadsCurrentFrame(t *testing.T) {
	ctx, b, f := newTestContext(t)
	a, c := NewBuffer("A", passCode), NewBuffer("B", passCode)
	require.NoError(t, c.SetInput(0, inputs.NewBufferInput(nil, "A", "", nil)))
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{4, 4}, SingleBuffer)
	require.NoError(t, err)
	_, err = chain.EmplaceBack(c, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	live := b.Live(backend.KindTexture)
	require.NoError(t, ctx.Init(chain))
	assert.Equal(t, live+3, b.Live(backend.KindTexture))

	renderFrames(t, ctx, chain, 2)
	da, dc := drawsOf(t, f, a), drawsOf(t, f, c)
	for k := range da {
		assert.Equal(t, da[k].Target, dc[k].Units[0])
	}
}

func TestDefaultFramebufferMember(t *testing.T) {
	ctx, b, f := newTestContext(t)
	logs := captureLogs(t)
	a := NewBuffer("A", passCode)
	image := NewBuffer("image", passCode)
	require.NoError(t, image.SetInput(0, inputs.NewBufferInput(nil, "A", "", nil)))
	// Reading the presentation surface is a resolution failure.
	require.NoError(t, a.SetInput(1, inputs.NewBufferInput(nil, "image", "", nil)))

	vp := NewViewport(32, 16)
	chain := NewSwapChain(backend.None)
	live := b.Live(backend.KindTexture)
	_, err := chain.EmplaceBack(a, vp, DoubleBuffer)
	require.NoError(t, err)
	_, err = chain.EmplaceBack(image, vp, DefaultFramebuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	// Only A owns textures.
	assert.Equal(t, live+2, b.Live(backend.KindTexture))

	renderFrames(t, ctx, chain, 3)
	di := drawsOf(t, f, image)
	require.Len(t, di, 3)
	for _, d := range di {
		assert.Zero(t, d.Framebuffer)
		assert.Equal(t, [4]int32{0, 0, 32, 16}, d.Viewport)
	}

	errTex, err := ctx.ErrorInput().Use()
	require.NoError(t, err)
	for _, d := range drawsOf(t, f, a) {
		assert.Equal(t, handleID(t, errTex), d.Units[1])
	}
	assert.Equal(t, 1, strings.Count(logs.String(), "input unavailable"))

	m, _ := chain.Member("image")
	assert.Nil(t, m.OutputNames())
	_, err = m.OutputTexture(0)
	assert.ErrorIs(t, err, inputs.ErrNoOutputs)

	pixels, size, err := chain.ReadOutput(nil)
	require.NoError(t, err)
	assert.Equal(t, Size{32, 16}, size)
	assert.Equal(t, byte(0xFF), pixels[0])
}

func TestMipmappedInputKeepsOtherChannels(t *testing.T) {
	ctx, b, f := newTestContext(t)
	a, c := NewBuffer("A", passCode), NewBuffer("B", passCode)
	noise := inputs.NewNoise(b, 8, 8, 0, 1, nil)
	require.NoError(t, c.SetInput(0, noise))
	require.NoError(t, c.SetInput(1, inputs.NewBufferInput(nil, "A", "", inputs.ParseSampler("mipmap", "repeat"))))
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	_, err = chain.EmplaceBack(c, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))

	renderFrames(t, ctx, chain, 2)
	noiseTex, err := noise.Use()
	require.NoError(t, err)
	da, dc := drawsOf(t, f, a), drawsOf(t, f, c)
	require.Len(t, dc, 2)
	for k, d := range dc {
		assert.Equal(t, handleID(t, noiseTex), d.Units[0], "frame %d", k)
		assert.Equal(t, da[k].Target, d.Units[1], "frame %d", k)
	}
}

func TestImageOnlyChainOwnsNoTextures(t *testing.T) {
	ctx, b, f := newTestContext(t)
	image := NewBuffer("image", passCode)
	chain := NewSwapChain(backend.None)
	_, err := chain.EmplaceBack(image, NewViewport(16, 16), DefaultFramebuffer)
	require.NoError(t, err)
	live := b.Live(backend.KindTexture)
	require.NoError(t, ctx.Init(chain))
	assert.Equal(t, live, b.Live(backend.KindTexture))

	renderFrames(t, ctx, chain, 1)
	require.Len(t, f.Draws, 1)
	assert.Zero(t, f.Draws[0].Framebuffer)
	assert.Equal(t, live, b.Live(backend.KindTexture))
}

func TestRemovedMemberFailsNonFatally(t *testing.T) {
	ctx, _, f := newTestContext(t)
	logs := captureLogs(t)
	a, c := NewBuffer("A", passCode), NewBuffer("B", passCode)
	require.NoError(t, c.SetInput(0, inputs.NewBufferInput(nil, "A", "", nil)))
	chain := NewSwapChain(backend.RGBA8)
	ma, err := chain.EmplaceBack(a, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	_, err = chain.EmplaceBack(c, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	renderFrames(t, ctx, chain, 1)

	removed, ok := chain.Remove("A")
	require.True(t, ok)
	assert.Same(t, ma, removed)
	renderFrames(t, ctx, chain, 2)
	errTex, _ := ctx.ErrorInput().Use()
	dc := drawsOf(t, f, c)
	assert.Equal(t, handleID(t, errTex), dc[2].Units[0])
	assert.Equal(t, 1, strings.Count(logs.String(), "input unavailable"))

	require.NoError(t, chain.PushBack(removed))
	renderFrames(t, ctx, chain, 1)
	assert.Contains(t, logs.String(), "input recovered")
	dc = drawsOf(t, f, c)
	assert.NotEqual(t, handleID(t, errTex), dc[3].Units[0])
}

func TestNoErrorInputLeavesChannelUnbound(t *testing.T) {
	ctx, _, f := newTestContext(t, WithErrorInput(nil))
	c := NewBuffer("B", passCode)
	require.NoError(t, c.SetInput(0, inputs.NewBufferInput(nil, "missing", "", nil)))
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(c, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	renderFrames(t, ctx, chain, 1)
	_, bound := drawsOf(t, f, c)[0].Units[0]
	assert.False(t, bound)
}

func TestDuplicateMember(t *testing.T) {
	chain := NewSwapChain(backend.None)
	_, err := chain.EmplaceBack(NewBuffer("A", passCode), Size{1, 1}, DoubleBuffer)
	require.NoError(t, err)
	_, err = chain.EmplaceBack(NewBuffer("A", passCode), Size{1, 1}, DoubleBuffer)
	var de *DuplicateMemberError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "A", de.ID)
	assert.Equal(t, 1, chain.Len())
}

func TestInitStopsAtCompileError(t *testing.T) {
	ctx, b, f := newTestContext(t)
	f.FailCompile = "bogus_call"
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(NewBuffer("A", passCode), Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	bad := NewBuffer("B", "void mainImage(out vec4 c, in vec2 p) {\n    c = bogus_call();\n}\n")
	_, err = chain.EmplaceBack(bad, Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)
	_, err = chain.EmplaceBack(NewBuffer("C", passCode), Size{4, 4}, DoubleBuffer)
	require.NoError(t, err)

	err = ctx.Init(chain)
	var ce *shader.CompilationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), `buffer "B"`)
	assert.Contains(t, ce.Log, "user:2")
	assert.False(t, bad.Initialized())
	m, _ := chain.Member("C")
	assert.False(t, m.Buffer().Initialized())
	assert.ErrorIs(t, chain.Render(), ErrNotInitialized)

	chain.Release()
	assert.Equal(t, 0, b.Live(backend.KindProgram))
}

func TestResizeReallocates(t *testing.T) {
	ctx, b, f := newTestContext(t)
	vp := NewViewport(8, 8)
	a := NewBuffer("A", passCode, WithOutputs("color", "normal"))
	chain := NewSwapChain(backend.RGBA16F)
	m, err := chain.EmplaceBack(a, vp, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	assert.Equal(t, []string{"color", "normal"}, m.OutputNames())
	live := b.Live(backend.KindTexture)

	vp.Set(20, 10)
	renderFrames(t, ctx, chain, 1)
	assert.Equal(t, [4]int32{0, 0, 8, 8}, drawsOf(t, f, a)[0].Viewport)

	require.NoError(t, chain.Allocate())
	renderFrames(t, ctx, chain, 1)
	d := drawsOf(t, f, a)[1]
	assert.Equal(t, [4]int32{0, 0, 20, 10}, d.Viewport)
	tex := f.Texture(d.Target)
	assert.Equal(t, int32(20), tex.Width)
	assert.Equal(t, backend.RGBA16F, tex.Internal)
	assert.Equal(t, live, b.Live(backend.KindTexture))
	assert.Equal(t, [3]float32{20, 10, 1}, m.OutputResolution())

	vp.Set(0, 10)
	var ae *AllocationError
	require.ErrorAs(t, chain.Allocate(), &ae)
	assert.Equal(t, "A", ae.Member)
}

func TestFrameUniforms(t *testing.T) {
	date := time.Date(2024, time.March, 5, 1, 2, 3, 0, time.UTC)
	u := FrameInput{Time: 2, TimeDelta: 0.25, Frame: 7, Date: date, SampleRate: 44100}.Uniforms()
	assert.Equal(t, float32(4), u.FrameRate)
	assert.Equal(t, [4]float32{2024, 2, 5, 3723}, u.Date)
	assert.Equal(t, int32(7), u.Frame)
	assert.Zero(t, FrameInput{}.Uniforms().FrameRate)

	ctx, _, f := newTestContext(t)
	a := NewBuffer("A", passCode)
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{6, 3}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	require.NoError(t, ctx.Render(chain, FrameInput{Time: 2, TimeDelta: 0.25, Frame: 7, Mouse: [4]float32{1, 2, 3, 4}, Date: date}))

	id := handleID(t, a.Program().Handle())
	check := func(name string, want ...float32) {
		t.Helper()
		v, ok := f.Uniform(id, name)
		require.True(t, ok, name)
		assert.Equal(t, want, v, name)
	}
	check("iTime", 2)
	check("iTimeDelta", 0.25)
	check("iFrameRate", 4)
	check("iFrame", 7)
	check("iResolution", 6, 3, 1)
	check("iMouse", 1, 2, 3, 4)
	check("iDate", 2024, 2, 5, 3723)
	check("iChannel2", 2)
	assert.Equal(t, float32(2), a.Uniforms().Time)
	assert.Equal(t, int32(7), ctx.Frame().Frame)
}

func TestElapsedTime(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	a := NewBuffer("A", passCode)
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{2, 2}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))

	d, err := a.ElapsedTime()
	require.NoError(t, err)
	assert.Zero(t, d)

	renderFrames(t, ctx, chain, 1)
	d, err = a.ElapsedTime()
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, d)
}

func TestSetUniformBroadcast(t *testing.T) {
	ctx, _, f := newTestContext(t)
	withGain := "uniform float uGain;\n" + passCode
	a, c := NewBuffer("A", withGain), NewBuffer("B", passCode)
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{2, 2}, DoubleBuffer)
	require.NoError(t, err)

	n, err := chain.SetUniform("uGain", shader.Float(0.5))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = chain.EmplaceBack(c, Size{2, 2}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	v, ok := f.Uniform(handleID(t, a.Program().Handle()), "uGain")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5}, v)

	n, err = chain.SetUniform("uGain", shader.Float(2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := c.Uniform("uGain")
	assert.Equal(t, shader.Float(2), got)
}

func TestSamplerChangeRecompiles(t *testing.T) {
	ctx, b, f := newTestContext(t)
	a := NewBuffer("A", passCode)
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{2, 2}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	first := handleID(t, a.Program().Handle())

	faces := [6]string{}
	require.NoError(t, a.SetInput(2, inputs.NewCubemap(b, faces, nil)))
	renderFrames(t, ctx, chain, 1)
	second := handleID(t, a.Program().Handle())
	assert.NotEqual(t, first, second)
	assert.False(t, f.Alive(first))

	assert.Equal(t, 1, b.Live(backend.KindProgram))
}

func TestDrawStateSetupAndParts(t *testing.T) {
	ctx, _, f := newTestContext(t)
	a := NewBuffer("A", passCode,
		WithDrawState(func(s *backend.DrawState) error { return s.Enable(backend.DepthTest) }),
		WithParts(func(p *shader.Parts) error { return p.InsertBefore(shader.PartUser, "extra", "uniform float uExtra;\n") }),
	)
	chain := NewSwapChain(backend.RGBA8)
	_, err := chain.EmplaceBack(a, Size{2, 2}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	assert.True(t, a.Program().Has("uExtra"))
	assert.True(t, a.DrawState().Enabled(backend.DepthTest))
	renderFrames(t, ctx, chain, 1)
	assert.True(t, f.Enabled(backend.DepthTest))

	bad := NewBuffer("B", passCode, WithDrawState(func(s *backend.DrawState) error { return s.SetClearBits(backend.Enum(0x1)) }))
	chain2 := NewSwapChain(backend.RGBA8)
	_, err = chain2.EmplaceBack(bad, Size{2, 2}, DoubleBuffer)
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Init(chain2), backend.ErrInvalidValue)
	assert.False(t, bad.Initialized())
}

func TestReadOutputAndRelease(t *testing.T) {
	ctx, b, f := newTestContext(t)
	_, _, err := NewSwapChain(backend.None).ReadOutput(nil)
	assert.ErrorIs(t, err, ErrEmptyChain)

	a := NewBuffer("A", passCode)
	chain := NewSwapChain(backend.RGBA8)
	_, err = chain.EmplaceBack(a, Size{3, 2}, DoubleBuffer)
	require.NoError(t, err)
	require.NoError(t, ctx.Init(chain))
	renderFrames(t, ctx, chain, 1)

	pixels, size, err := chain.ReadOutput(make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, Size{3, 2}, size)
	require.Len(t, pixels, 3*2*4)
	assert.Equal(t, byte(drawsOf(t, f, a)[0].Target), pixels[0])

	chain.Release()
	assert.Equal(t, 0, b.Live(backend.KindProgram))
	assert.Equal(t, 0, b.Live(backend.KindFramebuffer))
	assert.Equal(t, 0, b.Live(backend.KindQuery))
}
