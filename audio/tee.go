package audio

import (
	"sync"
)

// Tee fans one device out to several consumers. Each Tap is a Device of its
// own; the source is started by the first tap and stopped with the last.
//
// A single goroutine reads the source and copies each chunk to every tap.
// Sends do not block: a tap that is not keeping up loses chunks instead of
// stalling the others.
type Tee struct {
	src  Device
	mu   sync.Mutex
	taps map[*tap]chan []float32
}

func NewTee(src Device) *Tee {
	return &Tee{src: src, taps: make(map[*tap]chan []float32)}
}

// Tap returns a new consumer of the source.
func (t *Tee) Tap() Device {
	return &tap{tee: t}
}

func (t *Tee) subscribe(p *tap) (<-chan []float32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.taps[p]; ok {
		return ch, nil
	}
	if len(t.taps) == 0 {
		in, err := t.src.Start()
		if err != nil {
			return nil, err
		}
		go t.run(in)
	}
	ch := make(chan []float32, 16)
	t.taps[p] = ch
	return ch, nil
}

func (t *Tee) unsubscribe(p *tap) error {
	t.mu.Lock()
	ch, ok := t.taps[p]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.taps, p)
	close(ch)
	last := len(t.taps) == 0
	t.mu.Unlock()
	if last {
		return t.src.Stop()
	}
	return nil
}

func (t *Tee) run(in <-chan []float32) {
	for data := range in {
		t.mu.Lock()
		for _, ch := range t.taps {
			c := make([]float32, len(data))
			copy(c, data)
			select {
			case ch <- c:
			default:
			}
		}
		t.mu.Unlock()
	}
	t.mu.Lock()
	for p, ch := range t.taps {
		close(ch)
		delete(t.taps, p)
	}
	t.mu.Unlock()
}

type tap struct {
	tee *Tee
}

func (p *tap) Start() (<-chan []float32, error) { return p.tee.subscribe(p) }
func (p *tap) Stop() error                      { return p.tee.unsubscribe(p) }
func (p *tap) SampleRate() int                  { return p.tee.src.SampleRate() }
