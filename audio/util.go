package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// DownmixStereoToMono converts an interleaved stereo buffer to mono by
// averaging the left and right channels. A trailing odd sample is dropped.
func DownmixStereoToMono(stereo []float32) []float32 {
	mono := make([]float32, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) * 0.5
	}
	return mono
}

// DecodeF32LE converts little-endian float32 PCM bytes to samples.
func DecodeF32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// History keeps the most recent samples of a stream for analysis. It is
// safe for one writer and any number of readers.
type History struct {
	mu  sync.Mutex
	buf []float32
	pos int
}

func NewHistory(size int) *History {
	return &History{buf: make([]float32, size)}
}

// Write appends samples, overwriting the oldest.
func (h *History) Write(samples []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range samples {
		h.buf[h.pos] = s
		h.pos = (h.pos + 1) % len(h.buf)
	}
}

// Latest returns a copy of the n most recent samples, oldest first. Slots
// never written read as silence.
func (h *History) Latest(n int) []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	size := len(h.buf)
	if n > size {
		n = size
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = h.buf[(h.pos-n+i+size)%size]
	}
	return out
}

// Drain copies every chunk from ch into h until ch is closed.
func (h *History) Drain(ch <-chan []float32) {
	for samples := range ch {
		h.Write(samples)
	}
}
