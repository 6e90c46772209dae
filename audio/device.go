// Package audio provides the sample sources behind audio channel inputs.
//
// Live capture uses portaudio; files and capture devices that portaudio
// cannot open are decoded by an ffmpeg child process to mono f32le.
package audio

import "sync"

// DefaultSampleRate is used when a source does not report its own.
const DefaultSampleRate = 44100

// Device produces a stream of mono sample chunks.
type Device interface {
	// Start begins capture and returns a receive-only channel of chunks.
	// The channel is closed when the device stops or the input ends.
	Start() (<-chan []float32, error)
	// Stop terminates the stream and closes the channel.
	Stop() error
	// SampleRate returns the sample rate of the device.
	SampleRate() int
}

// NullDevice is a silent device. Its channel never delivers and is closed
// by Stop.
type NullDevice struct {
	rate int
	once sync.Once
	ch   chan []float32
}

func NewNullDevice(sampleRate int) *NullDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &NullDevice{rate: sampleRate, ch: make(chan []float32)}
}

func (d *NullDevice) Start() (<-chan []float32, error) {
	return d.ch, nil
}

func (d *NullDevice) Stop() error {
	d.once.Do(func() { close(d.ch) })
	return nil
}

func (d *NullDevice) SampleRate() int { return d.rate }
