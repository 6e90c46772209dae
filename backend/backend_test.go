package backend_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/backend/backendtest"
)

func TestHandleMoveKeepsSingleOwner(t *testing.T) {
	b, fake := backendtest.NewBackend()

	a, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	id, err := a.ID()
	require.NoError(t, err)

	c := a.Move()
	d := c.Move()

	for _, h := range []*backend.Handle{a, c} {
		assert.False(t, h.Present())
		_, err := h.ID()
		assert.ErrorIs(t, err, backend.ErrNullResource)
	}
	got, err := d.ID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	// Releasing moved-from handles must not free the object.
	a.Release()
	c.Release()
	assert.True(t, fake.Alive(id))
	assert.Equal(t, 1, b.Live(backend.KindTexture))

	d.Release()
	d.Release()
	assert.False(t, fake.Alive(id))
	assert.Equal(t, 0, b.Live(backend.KindTexture))
	assert.Equal(t, 1, fake.Count("Delete"))
}

func TestNullHandleOperations(t *testing.T) {
	b, fake := backendtest.NewBackend()
	tex, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	tex.Release()
	fake.ResetCalls()

	var nullErr *backend.NullResourceError
	err = tex.Parameter(backend.TextureMinFilter, int32(backend.Linear))
	require.ErrorAs(t, err, &nullErr)
	assert.Equal(t, backend.KindTexture, nullErr.Kind)

	assert.ErrorIs(t, tex.GenerateMipmap(), backend.ErrNullResource)
	assert.ErrorIs(t, b.BindTextureUnit(0, backend.Texture2D, tex), backend.ErrNullResource)

	var empty *backend.Handle
	assert.ErrorIs(t, empty.Bind(), backend.ErrNullResource)
	assert.False(t, empty.Move().Present())
	assert.Empty(t, fake.Calls)
}

func TestCheckedOperationReportsBackendError(t *testing.T) {
	b, fake := backendtest.NewBackend()
	tex, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer tex.Release()

	fake.FailOn("TexParameteri", backend.InvalidEnum)
	err = tex.Parameter(backend.TextureWrapS, 42)

	var opErr *backend.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, backend.InvalidEnum, opErr.Code)
	assert.NotEmpty(t, opErr.Cause)

	// The error state is drained; the next call succeeds.
	assert.NoError(t, tex.Parameter(backend.TextureWrapS, int32(backend.Repeat)))
}

func TestImageRejectsInvalidSize(t *testing.T) {
	b, _ := backendtest.NewBackend()
	tex, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer tex.Release()

	err = tex.Image2D(backend.Texture2D, 0, backend.RGBA8, 0, 16, backend.RGBA, backend.UnsignedByte, nil)
	var opErr *backend.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, backend.InvalidValue, opErr.Code)
}

func TestStateTrackingElidesRedundantBinds(t *testing.T) {
	b, fake := backendtest.NewBackend()
	tex, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer tex.Release()
	fb, err := b.MakeFramebuffer()
	require.NoError(t, err)
	defer fb.Release()
	fake.ResetCalls()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.BindTextureUnit(2, backend.Texture2D, tex))
		require.NoError(t, b.BindFramebuffer(fb))
		require.NoError(t, b.SetViewport(0, 0, 64, 64))
		require.NoError(t, b.SetCapability(backend.Blend, true))
	}
	assert.Equal(t, 1, fake.Count("ActiveTexture"))
	assert.Equal(t, 1, fake.Count("BindTexture"))
	assert.Equal(t, 1, fake.Count("BindFramebuffer"))
	assert.Equal(t, 1, fake.Count("Viewport"))
	assert.Equal(t, 1, fake.Count("Enable"))

	b.Invalidate()
	require.NoError(t, b.BindFramebuffer(fb))
	assert.Equal(t, 2, fake.Count("BindFramebuffer"))
}

func TestStateTrackingDisabledForwardsEverything(t *testing.T) {
	b, fake := backendtest.NewBackend(backend.WithStateTracking(false))
	assert.False(t, b.StateTracking())
	tex, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer tex.Release()
	fake.ResetCalls()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.BindTextureUnit(0, backend.Texture2D, tex))
		require.NoError(t, b.BindDefaultFramebuffer())
	}
	assert.Equal(t, 3, fake.Count("ActiveTexture"))
	assert.Equal(t, 3, fake.Count("BindTexture"))
	assert.Equal(t, 3, fake.Count("BindFramebuffer"))
}

func TestReleaseDropsCachedBinding(t *testing.T) {
	b, fake := backendtest.NewBackend()
	fb, err := b.MakeFramebuffer()
	require.NoError(t, err)
	require.NoError(t, b.BindFramebuffer(fb))
	fb.Release()
	fake.ResetCalls()

	// GL reverts to the default framebuffer when the bound one is deleted.
	require.NoError(t, b.BindDefaultFramebuffer())
	assert.Zero(t, fake.Count("BindFramebuffer"))
}

func TestTextureEditsKeepUnitBindings(t *testing.T) {
	b, fake := backendtest.NewBackend()
	a, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer a.Release()
	c, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer c.Release()
	idA, _ := a.ID()
	idC, _ := c.ID()

	require.NoError(t, b.BindTextureUnit(0, backend.Texture2D, a))
	require.NoError(t, c.Image2D(backend.Texture2D, 0, backend.RGBA8, 4, 4, backend.RGBA, backend.UnsignedByte, nil))
	require.NoError(t, c.Parameter(backend.TextureMinFilter, int32(backend.LinearMipmapLinear)))
	require.NoError(t, c.GenerateMipmap())
	require.NoError(t, c.SubImage2D(0, 0, 0, 1, 1, backend.RGBA, backend.UnsignedByte, make([]byte, 4)))

	assert.Equal(t, idA, fake.Bound(0, backend.Texture2D))
	scratch := uint32(fake.CapsValue.MaxTextureUnits - 1)
	assert.Equal(t, idC, fake.Bound(scratch, backend.Texture2D))

	// A later bind on unit 0 is still issued after the unit switch.
	require.NoError(t, b.BindTextureUnit(0, backend.Texture2D, c))
	assert.Equal(t, idC, fake.Bound(0, backend.Texture2D))
}

func TestTextureUnitRange(t *testing.T) {
	b, fake := backendtest.NewBackend()
	err := b.ActiveTexture(uint32(fake.CapsValue.MaxTextureUnits))
	var opErr *backend.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, backend.InvalidValue, opErr.Code)
}

func TestOptionalFeaturesAreFeatureTested(t *testing.T) {
	fake := backendtest.New()
	fake.CapsValue.Features = 0
	b := backend.New(fake)

	require.NoError(t, b.MemoryBarrier(backend.AllBarrierBits))
	require.NoError(t, b.PolygonMode(backend.Line))
	assert.Zero(t, fake.Count("MemoryBarrier"))
	assert.Zero(t, fake.Count("PolygonMode"))

	tex, err := b.MakeTexture(backend.Texture2D)
	require.NoError(t, err)
	defer tex.Release()
	require.NoError(t, tex.Image2D(backend.Texture2D, 0, backend.RGBA8, 4, 4, backend.RGBA, backend.UnsignedByte, nil))
	fb, err := b.MakeFramebuffer()
	require.NoError(t, err)
	defer fb.Release()

	require.NoError(t, b.ClearTexture(tex, fb))
	assert.Zero(t, fake.Count("ClearTexImage"))
	id, _ := tex.ID()
	assert.Equal(t, 1, fake.Texture(id).Cleared)
}

func TestQueryResult(t *testing.T) {
	b, fake := backendtest.NewBackend()
	fake.QueryPolls = 3
	q, err := b.MakeQuery(backend.TimeElapsed)
	require.NoError(t, err)
	defer q.Release()

	require.NoError(t, q.Begin())
	require.NoError(t, q.End())
	polls := 0
	for {
		ok, err := q.Available()
		require.NoError(t, err)
		polls++
		if ok {
			break
		}
	}
	assert.Equal(t, 3, polls)
	ns, err := q.Result()
	require.NoError(t, err)
	assert.Equal(t, fake.ElapsedNS, ns)
}

func TestKindMismatch(t *testing.T) {
	b, _ := backendtest.NewBackend()
	q, err := b.MakeQuery(backend.TimeElapsed)
	require.NoError(t, err)
	defer q.Release()

	err = q.GenerateMipmap()
	var opErr *backend.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, backend.InvalidOperation, opErr.Code)
}
