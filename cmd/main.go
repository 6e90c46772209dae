package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/goshaderchain/api"
	"github.com/richinsley/goshaderchain/audio"
	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/backend/opengl"
	"github.com/richinsley/goshaderchain/encoder"
	"github.com/richinsley/goshaderchain/glfwcontext"
	"github.com/richinsley/goshaderchain/graphics"
	"github.com/richinsley/goshaderchain/headless"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/options"
	"github.com/richinsley/goshaderchain/renderer"
	"github.com/richinsley/goshaderchain/shader"
	"github.com/richinsley/goshaderchain/translator"
)

func init() {
	runtime.LockOSThread()
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadShader reads the shader description from the local file, or fetches
// it by id.
func loadShader(ctx context.Context, o *options.ShaderOptions) (*api.ShaderArgs, error) {
	var (
		resp *api.ShadertoyResponse
		err  error
	)
	if o.File != "" {
		logx.Logger().Info("loading shader", "file", o.File)
		resp, err = api.Load(o.File)
	} else {
		logx.Logger().Info("fetching shader", "id", o.ShaderID)
		resp, err = api.NewClient(o.APIKey).Fetch(ctx, o.ShaderID)
	}
	if err != nil {
		return nil, err
	}
	args, err := api.ShaderArgsFromJSON(resp)
	if err != nil {
		return nil, fmt.Errorf("error processing shader JSON: %w", err)
	}
	if !args.Complete {
		logx.Logger().Warn("shader arguments may be incomplete (unsupported passes or inputs)", "title", args.Title)
	}
	return args, nil
}

func parseFormat(s string) backend.Enum {
	switch strings.ToLower(s) {
	case "rgba8":
		return backend.RGBA8
	case "rgba16f":
		return backend.RGBA16F
	default:
		return backend.RGBA32F
	}
}

func usesMicrophone(args *api.ShaderArgs) bool {
	for _, pass := range args.Buffers {
		for _, ch := range pass.Inputs {
			if ch != nil && ch.CType == "mic" {
				return true
			}
		}
	}
	return false
}

// newAudio returns the source shared by microphone inputs, nil for
// silence.
func newAudio(o *options.ShaderOptions, args *api.ShaderArgs) *audio.Tee {
	switch {
	case o.AudioInputFile != "":
		src := audio.NewFileSource(o.AudioInputFile, audio.DefaultSampleRate, true)
		src.FFmpegPath = o.FFmpegPath
		return audio.NewTee(src)
	case o.AudioInputDevice != "":
		src := audio.NewCaptureSource(o.AudioInputDevice, audio.DefaultSampleRate)
		src.FFmpegPath = o.FFmpegPath
		return audio.NewTee(src)
	case usesMicrophone(args):
		mic, err := audio.NewMicrophone(audio.DefaultSampleRate)
		if err != nil {
			logx.Logger().Warn("microphone unavailable, binding silence", "error", err)
			return nil
		}
		return audio.NewTee(mic)
	}
	return nil
}

// newWindow creates the context to render into and makes it current.
func newWindow(o *options.ShaderOptions, title string) (graphics.Context, func(), error) {
	if o.Headless {
		h, err := headless.New(o.Width, o.Height)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create headless context: %w", err)
		}
		return h, h.Shutdown, nil
	}
	if err := glfwcontext.InitGraphics(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize glfw: %w", err)
	}
	win, err := glfwcontext.New(o, title)
	if err != nil {
		glfwcontext.TerminateGraphics()
		return nil, nil, fmt.Errorf("failed to create window: %w", err)
	}
	win.MakeCurrent()
	return win, func() {
		win.Shutdown()
		glfwcontext.TerminateGraphics()
	}, nil
}

func newContext(o *options.ShaderOptions) (*renderer.Context, error) {
	b, err := opengl.NewBackend(backend.WithStateTracking(o.StateTracking))
	if err != nil {
		return nil, err
	}
	logx.Logger().Info("backend ready", "api", b.Caps().Name, "max_texture", b.Caps().MaxTextureSize)
	opts := []renderer.ContextOption{renderer.WithFormat(parseFormat(o.Format))}
	if o.Translate {
		tr, err := translator.New(false)
		if err != nil {
			return nil, err
		}
		opts = append(opts, renderer.WithTranslator(tr), renderer.WithVersion(tr.Version()))
	} else {
		opts = append(opts, renderer.WithVersion(shader.VersionGL410))
	}
	return renderer.NewContext(b, opts...)
}

func dumpBinaries(r *renderer.Renderer, dir string) {
	if dir == "" {
		return
	}
	if _, err := r.Scene().DumpBinaries(dir); err != nil {
		logx.Logger().Warn("cannot dump program binaries", "dir", dir, "error", err)
	}
}

// chainHooks runs hooks in order, stopping at the first error.
func chainHooks(hooks ...renderer.FrameHook) renderer.FrameHook {
	return func(r *renderer.Renderer) error {
		for _, h := range hooks {
			if err := h(r); err != nil {
				return err
			}
		}
		return nil
	}
}

// recordHook hands every rendered frame to rec and stops after total
// frames. A total of zero records until the window closes.
func recordHook(rec *encoder.Recorder, total, fps int) renderer.FrameHook {
	return func(r *renderer.Renderer) error {
		pixels, _, err := r.ReadFrame()
		if err != nil {
			return err
		}
		if err := rec.WriteFrame(pixels); err != nil {
			return err
		}
		n := r.Frame()
		if n%fps == 0 {
			logx.Logger().Info("recording", "frame", n, "of", total)
		}
		if total > 0 && n >= total {
			return renderer.ErrStop
		}
		return nil
	}
}

func runShadertoy(ctx context.Context, o *options.ShaderOptions) (err error) {
	args, err := loadShader(ctx, o)
	if err != nil {
		return err
	}
	logx.Logger().Info("successfully processed shader", "title", args.Title)

	win, closeWindow, err := newWindow(o, args.Title)
	if err != nil {
		return err
	}
	defer closeWindow()

	rctx, err := newContext(o)
	if err != nil {
		return err
	}
	defer rctx.Release()

	cfg := renderer.SceneConfig{
		MediaDir: o.MediaDir,
		Audio:    newAudio(o, args),
		Format:   parseFormat(o.Format),
	}
	var ropts []renderer.RendererOption
	if o.Recording() {
		cfg.Size = renderer.Size{Width: o.Width, Height: o.Height}
		cfg.Offscreen = true
		ropts = append(ropts, renderer.WithFixedStep(o.FPS))
	}
	r, err := renderer.NewRenderer(win, rctx, cfg, ropts...)
	if err != nil {
		return err
	}
	defer r.Shutdown()
	if err := r.Load(args); err != nil {
		return err
	}
	dumpBinaries(r, o.DumpBinary)
	if gw, ok := win.(*glfwcontext.Context); ok && o.DumpBinary != "" {
		gw.OnKey(glfw.KeyB, func() { dumpBinaries(r, o.DumpBinary) })
	}

	var hooks []renderer.FrameHook
	if o.Watch {
		fw, err := watchFile(o.File)
		if err != nil {
			return err
		}
		defer fw.Close()
		hooks = append(hooks, reloadHook(ctx, fw, o))
	}

	var rec *encoder.Recorder
	if o.Recording() {
		ecfg := encoder.Config{
			Output:     o.OutputFile,
			Width:      o.Width,
			Height:     o.Height,
			FPS:        o.FPS,
			Codec:      o.Codec,
			Bitrate:    o.Bitrate,
			HWAccel:    o.HWAccel,
			FFmpegPath: o.FFmpegPath,
		}
		total := int(o.Duration * float64(o.FPS))
		if o.Mode == options.ModeStream {
			ecfg.Format = "mpegts"
			total = 0
		}
		rec, err = encoder.New(ecfg)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, rec.Close())
		}()
		hooks = append(hooks, recordHook(rec, total, o.FPS))
		logx.Logger().Info("starting offscreen render loop", "frames", total)
	} else {
		logx.Logger().Info("starting interactive render loop")
	}
	return r.Run(chainHooks(hooks...))
}

func main() {
	o, err := options.Parse(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if o.Help {
		return
	}
	setupLogging(o.Verbose)

	if err := runShadertoy(context.Background(), o); err != nil {
		logx.Logger().Error("goshaderchain failed", "error", err)
		os.Exit(1)
	}
	if o.Recording() {
		logx.Logger().Info("successfully rendered", "output", o.OutputFile)
	}
}
