package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/backend/backendtest"
)

func TestDrawStateDefaults(t *testing.T) {
	b, _ := backendtest.NewBackend()
	s := b.MakeDrawState()

	assert.Equal(t, backend.FuncAdd, s.BlendModeRGB())
	assert.Equal(t, backend.FuncAdd, s.BlendModeAlpha())
	assert.Equal(t, backend.ColorBufferBit, s.ClearBits())
	assert.Equal(t, backend.Less, s.DepthFunc())
	assert.Equal(t, backend.Fill, s.PolygonMode())
	assert.Equal(t, 1.0, s.ClearDepth())
	assert.False(t, s.Enabled(backend.Blend))
}

func TestDrawStateValidation(t *testing.T) {
	tests := []struct {
		name  string
		set   func(*backend.DrawState) error
		check func(*testing.T, *backend.DrawState)
	}{
		{
			name: "clear bits outside mask",
			set:  func(s *backend.DrawState) error { return s.SetClearBits(backend.ColorBufferBit | 0x1) },
			check: func(t *testing.T, s *backend.DrawState) {
				assert.Equal(t, backend.ColorBufferBit|backend.DepthBufferBit, s.ClearBits())
			},
		},
		{
			name: "depth func not a comparison",
			set:  func(s *backend.DrawState) error { return s.SetDepthFunc(backend.Blend) },
			check: func(t *testing.T, s *backend.DrawState) {
				assert.Equal(t, backend.LEqual, s.DepthFunc())
			},
		},
		{
			name: "blend equation",
			set:  func(s *backend.DrawState) error { return s.SetBlendModeAlpha(backend.One) },
			check: func(t *testing.T, s *backend.DrawState) {
				assert.Equal(t, backend.Max, s.BlendModeAlpha())
			},
		},
		{
			name: "blend factor",
			set: func(s *backend.DrawState) error {
				return s.SetBlendFunc(backend.SrcAlpha, backend.Less, backend.One, backend.Zero)
			},
			check: func(t *testing.T, s *backend.DrawState) {
				src, dst, _, _ := s.BlendFunc()
				assert.Equal(t, backend.One, src)
				assert.Equal(t, backend.Zero, dst)
			},
		},
		{
			name: "capability",
			set:  func(s *backend.DrawState) error { return s.Enable(backend.Texture2D) },
			check: func(t *testing.T, s *backend.DrawState) {
				assert.False(t, s.Enabled(backend.Texture2D))
			},
		},
		{
			name: "polygon mode",
			set:  func(s *backend.DrawState) error { return s.SetPolygonMode(backend.Triangles) },
			check: func(t *testing.T, s *backend.DrawState) {
				assert.Equal(t, backend.Fill, s.PolygonMode())
			},
		},
		{
			name: "memory barrier",
			set:  func(s *backend.DrawState) error { return s.SetMemoryBarrier(0x10000) },
			check: func(t *testing.T, s *backend.DrawState) {
				assert.Equal(t, backend.None, s.MemoryBarrier())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := backendtest.NewBackend()
			s := b.MakeDrawState()
			require.NoError(t, s.SetClearBits(backend.ColorBufferBit|backend.DepthBufferBit))
			require.NoError(t, s.SetDepthFunc(backend.LEqual))
			require.NoError(t, s.SetBlendModeAlpha(backend.Max))

			err := tt.set(s)
			assert.ErrorIs(t, err, backend.ErrInvalidValue)
			tt.check(t, s)
		})
	}
}

func TestInvalidBlendModeFailsBeforeBackendCall(t *testing.T) {
	b, fake := backendtest.NewBackend()
	s := b.MakeDrawState()
	fake.ResetCalls()

	err := s.SetBlendModeRGB(0xDEAD)

	var vErr *backend.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, backend.Enum(0xDEAD), vErr.Value)
	assert.Equal(t, backend.FuncAdd, s.BlendModeRGB())
	assert.Empty(t, fake.Calls)
}

func TestDrawStateApply(t *testing.T) {
	b, fake := backendtest.NewBackend()
	s := b.MakeDrawState()
	require.NoError(t, s.Enable(backend.Blend))
	require.NoError(t, s.SetBlendFunc(backend.SrcAlpha, backend.OneMinusSrcAlpha, backend.One, backend.Zero))
	require.NoError(t, s.SetClearBits(backend.ColorBufferBit|backend.DepthBufferBit))
	require.NoError(t, s.SetMemoryBarrier(backend.TextureFetchBarrierBit))
	s.SetClearColor(0.25, 0.5, 0.75, 1)
	s.SetClearDepth(4)
	assert.Equal(t, 1.0, s.ClearDepth())
	fake.ResetCalls()

	require.NoError(t, s.Apply())
	assert.True(t, fake.Enabled(backend.Blend))
	assert.False(t, fake.Enabled(backend.DepthTest))
	assert.Equal(t, 1, fake.Count("MemoryBarrier"))
	assert.Equal(t, 1, fake.Count("BlendFuncSeparate"))
	assert.Zero(t, fake.Count("DepthFunc"))
	assert.Equal(t, 1, fake.Count("ClearDepth"))
	require.Equal(t, 1, fake.Count("Clear"))
	last := fake.Calls[len(fake.Calls)-1]
	assert.Equal(t, "Clear", last.Name)
	assert.Equal(t, []any{backend.ColorBufferBit | backend.DepthBufferBit}, last.Args)

	// Capabilities are tracked, so a second apply does not toggle them again.
	fake.ResetCalls()
	require.NoError(t, s.Apply())
	assert.Zero(t, fake.Count("Enable"))
	assert.Zero(t, fake.Count("Disable"))
}

func TestDrawStateNoClear(t *testing.T) {
	b, fake := backendtest.NewBackend()
	s := b.MakeDrawState()
	require.NoError(t, s.SetClearBits(0))
	require.NoError(t, s.Apply())
	assert.Zero(t, fake.Count("Clear"))
}
