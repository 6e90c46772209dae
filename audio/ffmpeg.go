package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/richinsley/goshaderchain/logx"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// chunkSamples is the number of samples delivered per channel send.
const chunkSamples = 1024

// FFmpegSource decodes audio through an ffmpeg child process. Input is a
// file path or, with Format set, a capture device name.
type FFmpegSource struct {
	Input string
	// Format forces the input demuxer (avfoundation, pulse, dshow, ...).
	Format string
	// Realtime paces file input at playback speed.
	Realtime   bool
	FFmpegPath string

	rate   int
	mu     sync.Mutex
	cmd    *exec.Cmd
	ch     chan []float32
	done   chan struct{}
	exited chan error
	pr     *io.PipeReader
}

// NewFileSource decodes the audio track of a media file.
func NewFileSource(path string, sampleRate int, realtime bool) *FFmpegSource {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FFmpegSource{Input: path, Realtime: realtime, rate: sampleRate}
}

// NewCaptureSource captures from a named device with the platform demuxer.
func NewCaptureSource(device string, sampleRate int) *FFmpegSource {
	s := NewFileSource(device, sampleRate, false)
	switch runtime.GOOS {
	case "darwin":
		s.Format = "avfoundation"
	case "windows":
		s.Format = "dshow"
	default:
		s.Format = "pulse"
	}
	return s
}

func (s *FFmpegSource) args() (ffmpeg.KwArgs, ffmpeg.KwArgs) {
	in := ffmpeg.KwArgs{}
	if s.Format != "" {
		in["f"] = s.Format
		in["fflags"] = "nobuffer"
	}
	if s.Realtime {
		in["re"] = ""
	}
	out := ffmpeg.KwArgs{
		"f":  "f32le",
		"ac": "1",
		"ar": strconv.Itoa(s.rate),
		"vn": "",
	}
	return in, out
}

func (s *FFmpegSource) Start() (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil, errors.New("ffmpeg source already started")
	}
	inArgs, outArgs := s.args()
	pr, pw := io.Pipe()
	stream := ffmpeg.Input(s.Input, inArgs).Output("pipe:", outArgs).WithOutput(pw)
	if s.FFmpegPath != "" {
		stream = stream.SetFfmpegPath(s.FFmpegPath)
	}
	cmd := stream.Compile()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	s.cmd = cmd
	s.pr = pr
	s.ch = make(chan []float32, 16)
	s.done = make(chan struct{})
	s.exited = make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.CloseWithError(io.EOF)
		s.exited <- err
	}()
	logx.Logger().Info("audio: ffmpeg source started", "input", s.Input, "format", s.Format, "rate", s.rate)
	go s.pump(pr, s.ch, s.done)
	return s.ch, nil
}

// pump converts ffmpeg output into chunks until EOF or Stop.
func (s *FFmpegSource) pump(r io.Reader, ch chan<- []float32, done <-chan struct{}) {
	defer close(ch)
	br := bufio.NewReaderSize(r, chunkSamples*4*4)
	buf := make([]byte, chunkSamples*4)
	for {
		n, err := io.ReadFull(br, buf)
		if n >= 4 {
			select {
			case ch <- DecodeF32LE(buf[:n-n%4]):
			case <-done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				logx.Logger().Warn("audio: ffmpeg read failed", "input", s.Input, "error", err)
			}
			return
		}
	}
}

func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	close(s.done)
	s.pr.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	err := <-s.exited
	s.cmd = nil
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		// Killed on purpose.
		return nil
	}
	return err
}

func (s *FFmpegSource) SampleRate() int { return s.rate }
