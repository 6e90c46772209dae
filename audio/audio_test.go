package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanDevice struct {
	ch      chan []float32
	starts  int
	stopped bool
}

func (d *chanDevice) Start() (<-chan []float32, error) {
	d.starts++
	return d.ch, nil
}

func (d *chanDevice) Stop() error {
	d.stopped = true
	return nil
}

func (d *chanDevice) SampleRate() int { return 48000 }

func TestHistoryLatest(t *testing.T) {
	h := NewHistory(4)
	assert.Equal(t, []float32{0, 0}, h.Latest(2))

	h.Write([]float32{1, 2, 3})
	assert.Equal(t, []float32{2, 3}, h.Latest(2))

	h.Write([]float32{4, 5, 6})
	assert.Equal(t, []float32{3, 4, 5, 6}, h.Latest(4))
	assert.Len(t, h.Latest(10), 4)
}

func TestHistoryDrain(t *testing.T) {
	h := NewHistory(8)
	ch := make(chan []float32, 2)
	ch <- []float32{1, 2}
	ch <- []float32{3}
	close(ch)
	h.Drain(ch)
	assert.Equal(t, []float32{1, 2, 3}, h.Latest(3))
}

func TestDownmixAndDecode(t *testing.T) {
	assert.Equal(t, []float32{0.5, 0}, DownmixStereoToMono([]float32{1, 0, 1, -1, 7}))

	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(-1))
	assert.Equal(t, []float32{0.25, -1}, DecodeF32LE(b))
}

func TestNullDevice(t *testing.T) {
	d := NewNullDevice(0)
	assert.Equal(t, DefaultSampleRate, d.SampleRate())
	ch, err := d.Start()
	require.NoError(t, err)
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
	_, ok := <-ch
	assert.False(t, ok)
}

func TestTeeBroadcastsAndStopsWithLastTap(t *testing.T) {
	src := &chanDevice{ch: make(chan []float32)}
	tee := NewTee(src)
	a, b := tee.Tap(), tee.Tap()
	assert.Equal(t, 48000, a.SampleRate())

	ca, err := a.Start()
	require.NoError(t, err)
	cb, err := b.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, src.starts)

	src.ch <- []float32{1, 2}
	select {
	case got := <-ca:
		assert.Equal(t, []float32{1, 2}, got)
	case <-time.After(time.Second):
		t.Fatal("tap a did not receive")
	}
	select {
	case got := <-cb:
		assert.Equal(t, []float32{1, 2}, got)
	case <-time.After(time.Second):
		t.Fatal("tap b did not receive")
	}

	require.NoError(t, a.Stop())
	assert.False(t, src.stopped)
	require.NoError(t, b.Stop())
	assert.True(t, src.stopped)
}
