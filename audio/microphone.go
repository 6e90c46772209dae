package audio

// portaudio needs the native library:
// macos:	brew install portaudio
// debian:	sudo apt-get install portaudio19-dev
// windows:	pacman -S mingw-w64-x86_64-portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/richinsley/goshaderchain/logx"
)

// Microphone captures mono audio from the default input device.
type Microphone struct {
	sampleRate int
	stream     *portaudio.Stream
	ch         chan []float32
	mu         sync.Mutex
	streaming  bool
	dropped    int
}

func NewMicrophone(sampleRate int) (*Microphone, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate}, nil
}

func (m *Microphone) callback(in []float32) {
	// portaudio reuses its buffer.
	data := make([]float32, len(in))
	copy(data, in)
	select {
	case m.ch <- data:
	default:
		m.dropped++
		if m.dropped%64 == 1 {
			logx.Logger().Warn("audio: microphone consumer is behind, dropping chunks", "dropped", m.dropped)
		}
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streaming {
		return nil, fmt.Errorf("microphone already started")
	}
	m.ch = make(chan []float32, 16)

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		close(m.ch)
		return nil, err
	}
	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.sampleRate)

	stream, err := portaudio.OpenStream(params, m.callback)
	if err != nil {
		close(m.ch)
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		close(m.ch)
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	m.stream = stream
	m.streaming = true
	logx.Logger().Info("audio: microphone started", "device", host.DefaultInputDevice.Name, "rate", m.sampleRate)
	return m.ch, nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.streaming {
		return nil
	}
	m.streaming = false
	err := m.stream.Close()
	close(m.ch)
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

func (m *Microphone) SampleRate() int { return m.sampleRate }
