// Package encoder records RGBA frames read back from a swap chain by piping
// them into an ffmpeg child process.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/richinsley/goshaderchain/logx"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// queueDepth is the number of frames buffered between the render thread
// and the pipe writer.
const queueDepth = 3

// ErrClosed is returned when writing to a closed recorder.
var ErrClosed = errors.New("encoder: recorder closed")

// Config describes the encoded output.
type Config struct {
	Output string
	Width  int
	Height int
	FPS    int
	// Codec is "h264" or "hevc".
	Codec   string
	Bitrate string
	// HWAccel selects the platform hardware encoder.
	HWAccel bool
	// Format forces the container, e.g. "mpegts" for streaming.
	Format     string
	FFmpegPath string
}

func (c Config) validate() error {
	if c.Output == "" {
		return errors.New("encoder: no output")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("encoder: invalid size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("encoder: invalid frame rate %d", c.FPS)
	}
	return nil
}

// FrameSize is the byte length of one RGBA frame.
func (c Config) FrameSize() int { return c.Width * c.Height * 4 }

func (c Config) videoCodec() string {
	hevc := c.Codec == "hevc"
	if c.HWAccel {
		switch runtime.GOOS {
		case "linux":
			if hevc {
				return "hevc_nvenc"
			}
			return "h264_nvenc"
		case "darwin":
			if hevc {
				return "hevc_videotoolbox"
			}
			return "h264_videotoolbox"
		}
	}
	if hevc {
		return "libx265"
	}
	return "libx264"
}

// Args returns the ffmpeg input and output arguments for c. Frames arrive
// bottom row first, as read from the GPU, so the output is flipped.
func Args(c Config) (ffmpeg.KwArgs, ffmpeg.KwArgs) {
	in := ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", c.Width, c.Height),
		"r":       strconv.Itoa(c.FPS),
	}
	codec := c.videoCodec()
	out := ffmpeg.KwArgs{
		"c:v":     codec,
		"pix_fmt": "yuv420p",
		"vf":      "vflip",
	}
	if strings.HasSuffix(codec, "_nvenc") {
		out["preset"] = "p2"
	}
	bitrate := c.Bitrate
	if bitrate == "" {
		bitrate = "25M"
	}
	out["b:v"] = bitrate
	if c.Codec == "hevc" && strings.EqualFold(filepath.Ext(c.Output), ".mp4") {
		out["tag:v"] = "hvc1"
	}
	if c.Format != "" {
		out["f"] = c.Format
	}
	return in, out
}

// Recorder encodes frames through ffmpeg. WriteFrame is called from the
// render thread; a writer goroutine feeds the pipe.
type Recorder struct {
	cfg Config

	mu     sync.Mutex
	closed bool
	frames chan []byte
	free   chan []byte
	pw     *io.PipeWriter
	wrote  chan error
	ran    chan error
	count  int64
}

// New validates cfg and starts ffmpeg.
func New(cfg Config) (*Recorder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Recorder{
		cfg:    cfg,
		frames: make(chan []byte, queueDepth),
		free:   make(chan []byte, queueDepth+1),
		wrote:  make(chan error, 1),
		ran:    make(chan error, 1),
	}
	for i := 0; i < queueDepth+1; i++ {
		r.free <- make([]byte, cfg.FrameSize())
	}

	pr, pw := io.Pipe()
	r.pw = pw
	in, out := Args(cfg)
	stream := ffmpeg.Input("pipe:", in).
		Output(cfg.Output, out).
		OverWriteOutput().WithInput(pr).ErrorToStdOut()
	if cfg.FFmpegPath != "" {
		stream = stream.SetFfmpegPath(cfg.FFmpegPath)
	}
	go func() {
		err := stream.Run()
		pr.CloseWithError(io.ErrClosedPipe)
		r.ran <- err
	}()
	go r.write()

	logx.Logger().Info("encoder: recording", "output", cfg.Output, "size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", cfg.FPS, "codec", out["c:v"])
	return r, nil
}

func (r *Recorder) write() {
	var err error
	for frame := range r.frames {
		if err == nil {
			if _, werr := r.pw.Write(frame); werr != nil {
				err = fmt.Errorf("encoder: write frame: %w", werr)
				logx.Logger().Error("encoder: pipe closed", "error", werr)
			}
		}
		r.free <- frame
	}
	r.pw.Close()
	r.wrote <- err
}

// WriteFrame queues a copy of one RGBA frame. It blocks while the queue
// is full.
func (r *Recorder) WriteFrame(pixels []byte) error {
	if len(pixels) != r.cfg.FrameSize() {
		return fmt.Errorf("encoder: frame is %d bytes, want %d", len(pixels), r.cfg.FrameSize())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	buf := <-r.free
	copy(buf, pixels)
	r.frames <- buf
	r.count++
	return nil
}

// Frames returns the number of frames queued so far.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes the queued frames and waits for ffmpeg to finish.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.frames)
	r.mu.Unlock()

	werr := <-r.wrote
	rerr := <-r.ran
	if rerr != nil {
		rerr = fmt.Errorf("encoder: ffmpeg: %w", rerr)
	}
	logx.Logger().Info("encoder: finished", "output", r.cfg.Output, "frames", r.count)
	return errors.Join(werr, rerr)
}
