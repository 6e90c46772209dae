package inputs

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/richinsley/goshaderchain/audio"
	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/logx"
)

// Audio texture layout: row 0 holds the spectrum, row 1 the waveform.
const (
	AudioWidth  = 512
	AudioHeight = 2

	// Shadertoy analyses 2048 samples, giving 1024 bins of which the first
	// 512 are kept.
	fftSize     = 2048
	historySize = fftSize * 4

	minDecibels = -100.0
	maxDecibels = -30.0
	smoothing   = 0.8
)

var blackman = blackmanWindow(fftSize)

// blackmanWindow generates a Blackman window, as used by Shadertoy.
func blackmanWindow(size int) []float64 {
	w := make([]float64, size)
	inv := 1.0 / float64(size-1)
	for i := range w {
		t := float64(i) * inv
		w[i] = 0.42 - 0.5*math.Cos(2*math.Pi*t) + 0.08*math.Cos(4*math.Pi*t)
	}
	return w
}

func newSmoothing() []float64 {
	prev := make([]float64, AudioWidth)
	for i := range prev {
		prev[i] = minDecibels
	}
	return prev
}

// Spectrum computes the audio texture rows from the latest fftSize samples.
// prev carries the smoothed decibel values between frames, starting at the
// silence floor, and is updated in place. The result is
// AudioWidth*AudioHeight RG32F texels.
func Spectrum(samples []float32, prev []float64) []float32 {
	if len(samples) < fftSize {
		padded := make([]float32, fftSize)
		copy(padded[fftSize-len(samples):], samples)
		samples = padded
	}
	samples = samples[len(samples)-fftSize:]
	windowed := make([]float64, fftSize)
	for i, s := range samples {
		windowed[i] = float64(s) * blackman[i]
	}
	bins := fft.FFTReal(windowed)

	out := make([]float32, AudioWidth*AudioHeight*2)
	for i := 0; i < AudioWidth; i++ {
		re, im := real(bins[i]), imag(bins[i])
		mag := math.Sqrt(re*re+im*im) * (2.0 / fftSize)
		db := 20 * math.Log10(mag+1e-9)
		prev[i] = smoothing*prev[i] + (1-smoothing)*db
		v := (prev[i] - minDecibels) / (maxDecibels - minDecibels)
		out[i*2] = float32(math.Min(1, math.Max(0, v)))
	}
	wave := samples[fftSize-AudioWidth:]
	for i, s := range wave {
		out[(AudioWidth+i)*2] = (s + 1) * 0.5
	}
	return out
}

// AudioInput exposes a device's spectrum and waveform as a 512x2 texture.
// Samples are collected by a goroutine; the texture is recomputed on every
// Use on the render thread.
type AudioInput struct {
	b       *backend.Backend
	dev     audio.Device
	sampler *Sampler

	history *audio.History
	started bool
	prev    []float64

	tex *backend.Handle
}

// NewAudio returns an input fed by dev. The device is started on first
// Load.
func NewAudio(b *backend.Backend, dev audio.Device, s *Sampler) *AudioInput {
	if s == nil {
		s = NewSampler()
	}
	if dev == nil {
		dev = audio.NewNullDevice(audio.DefaultSampleRate)
	}
	return &AudioInput{
		b:       b,
		dev:     dev,
		sampler: s,
		history: audio.NewHistory(historySize),
		prev:    newSmoothing(),
	}
}

// SampleRate returns the device sample rate, for iSampleRate.
func (in *AudioInput) SampleRate() int { return in.dev.SampleRate() }

func (in *AudioInput) Load() (backend.Enum, error) {
	if !in.started {
		ch, err := in.dev.Start()
		if err != nil {
			return backend.None, fmt.Errorf("start audio device: %w", err)
		}
		in.started = true
		go in.history.Drain(ch)
		logx.Logger().Info("inputs: audio listener started", "rate", in.dev.SampleRate())
	}
	if in.tex.Present() {
		return backend.RG32F, nil
	}
	tex, err := in.b.MakeTexture(backend.Texture2D)
	if err != nil {
		return backend.None, err
	}
	if err := tex.Image2D(backend.Texture2D, 0, backend.RG32F, AudioWidth, AudioHeight, backend.RG, backend.Float, nil); err != nil {
		tex.Release()
		return backend.None, err
	}
	if err := in.sampler.Apply(tex); err != nil {
		tex.Release()
		return backend.None, err
	}
	in.tex = tex
	return backend.RG32F, nil
}

func (in *AudioInput) Use() (*backend.Handle, error) {
	if _, err := in.Load(); err != nil {
		return nil, err
	}
	data := Spectrum(in.history.Latest(fftSize), in.prev)
	if err := in.tex.SubImage2D(0, 0, 0, AudioWidth, AudioHeight, backend.RG, backend.Float, float32Bytes(data)); err != nil {
		return nil, err
	}
	if err := refreshMipmaps(in.tex, in.sampler); err != nil {
		return nil, err
	}
	return in.tex, nil
}

// Reset releases the texture and stops the device.
func (in *AudioInput) Reset() {
	in.tex.Release()
	in.tex = nil
	if in.started {
		if err := in.dev.Stop(); err != nil {
			logx.Logger().Warn("inputs: stop audio device", "error", err)
		}
		in.started = false
	}
}

func (in *AudioInput) Sampler() *Sampler    { return in.sampler }
func (in *AudioInput) Target() backend.Enum { return backend.Texture2D }
func (in *AudioInput) SamplerType() string  { return samplerType(backend.Texture2D) }

func (in *AudioInput) Resolution() [3]float32 {
	return [3]float32{AudioWidth, AudioHeight, 1}
}
