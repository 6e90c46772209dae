// Package options holds the command configuration. Values come from the
// defaults, then a TOML file, then command-line flags.
package options

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultFile is read when no -config flag is given and it exists.
const DefaultFile = "goshaderchain.toml"

// Modes.
const (
	ModeView   = "view"
	ModeRecord = "record"
	ModeStream = "stream"
)

type ShaderOptions struct {
	APIKey   string `toml:"api_key"`
	ShaderID string `toml:"shader"`
	// File is a local Shadertoy JSON description, used instead of ShaderID.
	File string `toml:"file"`
	Mode string `toml:"mode"`

	Duration float64 `toml:"duration"`
	FPS      int     `toml:"fps"`
	Width    int     `toml:"width"`
	Height   int     `toml:"height"`
	// Format is the buffer output format: rgba8, rgba16f or rgba32f.
	Format string `toml:"format"`

	OutputFile string `toml:"output"`
	Codec      string `toml:"codec"`
	Bitrate    string `toml:"bitrate"`
	HWAccel    bool   `toml:"hwaccel"`
	FFmpegPath string `toml:"ffmpeg"`

	MediaDir         string `toml:"media_dir"`
	AudioInputDevice string `toml:"audio_device"`
	AudioInputFile   string `toml:"audio_file"`

	// Translate compiles through the GLSL translator instead of rewriting
	// the version header.
	Translate     bool   `toml:"translate"`
	StateTracking bool   `toml:"state_tracking"`
	Watch         bool   `toml:"watch"`
	DumpBinary    string `toml:"dump_binary"`
	Verbose       bool   `toml:"verbose"`
	// Headless records through an EGL pbuffer instead of a hidden window.
	Headless bool `toml:"headless"`

	// Config is the file the options were loaded from, if any.
	Config string `toml:"-"`
	Help   bool   `toml:"-"`
}

// Default returns the built-in defaults.
func Default() *ShaderOptions {
	return &ShaderOptions{
		ShaderID:      "XlSSzV",
		Mode:          ModeView,
		Duration:      10,
		FPS:           60,
		Width:         1280,
		Height:        720,
		Format:        "rgba32f",
		OutputFile:    "output.mp4",
		Codec:         "h264",
		MediaDir:      ".",
		Translate:     true,
		StateTracking: true,
	}
}

// Load reads a TOML file over the defaults. Unknown keys are an error.
func Load(path string) (*ShaderOptions, error) {
	o := Default()
	if err := o.load(path); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *ShaderOptions) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(o); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%s: %s", path, strict.String())
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	o.Config = path
	return nil
}

// Save writes o as TOML.
func (o *ShaderOptions) Save(w io.Writer) error {
	return toml.NewEncoder(w).Encode(o)
}

// Flags registers one flag per option on fs, bound to o.
func (o *ShaderOptions) Flags(fs *flag.FlagSet) {
	fs.StringVar(&o.Config, "config", o.Config, "TOML configuration file (default "+DefaultFile+" if present)")
	fs.BoolVar(&o.Help, "help", o.Help, "Show help message")
	fs.StringVar(&o.APIKey, "apikey", o.APIKey, "Shadertoy API key (from SHADERTOY_KEY env var if not set)")
	fs.StringVar(&o.ShaderID, "shader", o.ShaderID, "Shadertoy shader ID or URL")
	fs.StringVar(&o.File, "file", o.File, "Local Shadertoy JSON file, used instead of -shader")
	fs.StringVar(&o.Mode, "mode", o.Mode, "Mode: view, record or stream")
	fs.Float64Var(&o.Duration, "duration", o.Duration, "Duration to record in seconds")
	fs.IntVar(&o.FPS, "fps", o.FPS, "Frames per second for recording")
	fs.IntVar(&o.Width, "width", o.Width, "Width of the output")
	fs.IntVar(&o.Height, "height", o.Height, "Height of the output")
	fs.StringVar(&o.Format, "format", o.Format, "Buffer format: rgba8, rgba16f or rgba32f")
	fs.StringVar(&o.OutputFile, "output", o.OutputFile, "Output file name for recording")
	fs.StringVar(&o.Codec, "codec", o.Codec, "Video codec: h264 or hevc")
	fs.StringVar(&o.Bitrate, "bitrate", o.Bitrate, "Video bitrate (default 25M)")
	fs.BoolVar(&o.HWAccel, "hwaccel", o.HWAccel, "Use the platform hardware encoder")
	fs.StringVar(&o.FFmpegPath, "ffmpeg", o.FFmpegPath, "Path to ffmpeg executable")
	fs.StringVar(&o.MediaDir, "media", o.MediaDir, "Directory that Shadertoy media paths (/media/a/...) are resolved against")
	fs.StringVar(&o.AudioInputDevice, "audio-device", o.AudioInputDevice, "FFmpeg capture device for microphone inputs")
	fs.StringVar(&o.AudioInputFile, "audio-file", o.AudioInputFile, "Audio file played into microphone inputs")
	fs.BoolVar(&o.Translate, "translate", o.Translate, "Compile through the GLSL translator")
	fs.BoolVar(&o.StateTracking, "state-tracking", o.StateTracking, "Skip redundant GL state calls")
	fs.BoolVar(&o.Watch, "watch", o.Watch, "Reload -file when it changes")
	fs.StringVar(&o.DumpBinary, "dump-binary", o.DumpBinary, "Write program binaries to this directory")
	fs.BoolVar(&o.Verbose, "v", o.Verbose, "Verbose logging")
	fs.BoolVar(&o.Headless, "headless", o.Headless, "Record without a window (EGL, linux only)")
}

// Parse builds the options from args: defaults, then the config file,
// then the flags set on the command line.
func Parse(name string, args []string) (*ShaderOptions, error) {
	cli := Default()
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	cli.Flags(set)
	if err := set.Parse(args); err != nil {
		return nil, err
	}
	if cli.Help {
		set.SetOutput(os.Stdout)
		fmt.Println("Shadertoy chain viewer/recorder")
		set.PrintDefaults()
		return cli, nil
	}

	o := Default()
	path := cli.Config
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := o.load(path); err != nil {
			return nil, err
		}
	}

	// Flags given on the command line win over the file.
	over := flag.NewFlagSet(name, flag.ContinueOnError)
	o.Flags(over)
	var errs []error
	set.Visit(func(f *flag.Flag) {
		if err := over.Set(f.Name, f.Value.String()); err != nil {
			errs = append(errs, err)
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return o, o.Validate()
}

// Validate checks option values that flags and TOML cannot.
func (o *ShaderOptions) Validate() error {
	switch o.Mode {
	case ModeView, ModeRecord, ModeStream:
	default:
		return fmt.Errorf("unknown mode %q", o.Mode)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	if o.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", o.FPS)
	}
	switch strings.ToLower(o.Format) {
	case "rgba8", "rgba16f", "rgba32f":
	default:
		return fmt.Errorf("unknown format %q", o.Format)
	}
	if o.Codec != "h264" && o.Codec != "hevc" {
		return fmt.Errorf("unknown codec %q", o.Codec)
	}
	if o.Watch && o.File == "" {
		return errors.New("-watch needs -file")
	}
	if o.Headless && !o.Recording() {
		return errors.New("-headless needs -mode record or stream")
	}
	return nil
}

// Recording reports whether frames go to the encoder instead of a window.
func (o *ShaderOptions) Recording() bool { return o.Mode != ModeView }
