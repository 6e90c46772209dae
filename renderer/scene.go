package renderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richinsley/goshaderchain/api"
	"github.com/richinsley/goshaderchain/audio"
	"github.com/richinsley/goshaderchain/backend"
	"github.com/richinsley/goshaderchain/inputs"
	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

// passOrder is the Shadertoy evaluation order.
var passOrder = []string{"A", "B", "C", "D", api.ImagePass}

// SceneConfig configures how a Shadertoy description becomes a chain.
type SceneConfig struct {
	// Size is the viewport every member renders at.
	Size Sizer
	// MediaDir is the directory media sources such as /media/a/x.png are
	// resolved against.
	MediaDir string
	// Audio feeds microphone inputs. Nil binds a silent device.
	Audio *audio.Tee
	// Offscreen renders the image pass into textures instead of the
	// default framebuffer, for recording.
	Offscreen bool
	// Format of the buffer outputs. None selects DefaultFormat.
	Format backend.Enum
}

// Scene is a chain built from a Shadertoy description plus the media
// inputs it owns.
type Scene struct {
	Title string
	Chain *SwapChain

	owned      []inputs.Input
	sampleRate int
}

// SampleRate returns the rate of the first audio input, or the default
// rate when the scene has none.
func (s *Scene) SampleRate() int {
	if s.sampleRate == 0 {
		return audio.DefaultSampleRate
	}
	return s.sampleRate
}

// Release releases the chain and every input the scene created.
func (s *Scene) Release() {
	if s == nil {
		return
	}
	logx.Logger().Info("renderer: destroying scene", "title", s.Title)
	for _, m := range s.Chain.Members() {
		for i := 0; i < shader.NumChannels; i++ {
			if in := m.Buffer().Input(i); in != nil {
				in.Sampler().Release()
			}
		}
	}
	s.Chain.Release()
	for _, in := range s.owned {
		in.Reset()
	}
	s.owned = nil
}

func (s *Scene) own(in inputs.Input) inputs.Input {
	s.owned = append(s.owned, in)
	return in
}

func mediaPath(dir, src string) string {
	return filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(src, "/")))
}

func channelSampler(s api.Sampler) *inputs.Sampler {
	smp := inputs.ParseSampler(s.Filter, s.Wrap)
	smp.VFlip = s.VFlip == "true"
	smp.SRGB = s.SRGB == "true"
	smp.Float = s.Internal == "float"
	return smp
}

// channelInput creates the input for one channel. It returns nil, with a
// warning, for channels that cannot be represented.
func (s *Scene) channelInput(b *backend.Backend, chain *SwapChain, pass string, ch *api.ShadertoyChannel, cfg SceneConfig) inputs.Input {
	smp := channelSampler(ch.Sampler)
	switch ch.CType {
	case "buffer":
		return inputs.NewBufferInput(chain, ch.BufferRef, "", smp)
	case "texture":
		return s.own(inputs.NewImage(b, mediaPath(cfg.MediaDir, ch.Src), smp))
	case "cubemap":
		return s.own(inputs.NewCubemap(b, inputs.CubemapFaces(mediaPath(cfg.MediaDir, ch.Src)), smp))
	case "volume":
		return s.own(inputs.NewVolume(b, mediaPath(cfg.MediaDir, ch.Src), smp))
	case "mic":
		var dev audio.Device
		if cfg.Audio != nil {
			dev = cfg.Audio.Tap()
		}
		return s.ownAudio(inputs.NewAudio(b, dev, smp))
	case "music", "musicstream":
		if ch.Src == "" {
			break
		}
		src := audio.NewFileSource(mediaPath(cfg.MediaDir, ch.Src), audio.DefaultSampleRate, true)
		return s.ownAudio(inputs.NewAudio(b, src, smp))
	}
	logx.Logger().Warn("renderer: unsupported channel, binding error input",
		"pass", pass, "channel", ch.Channel, "type", ch.CType)
	return nil
}

func (s *Scene) ownAudio(in *inputs.AudioInput) inputs.Input {
	if s.sampleRate == 0 {
		s.sampleRate = in.SampleRate()
	}
	return s.own(in)
}

// BuildChain turns a Shadertoy description into an uninitialized scene:
// buffers A to D become double-buffered members at the viewport size and
// the image pass becomes the terminal member. Channels that cannot be
// represented are bound to the context's error input.
func BuildChain(ctx *Context, args *api.ShaderArgs, cfg SceneConfig) (*Scene, error) {
	if args.Image() == nil {
		return nil, fmt.Errorf("shader %s has no image pass", args.Title)
	}
	b := ctx.Backend()
	scene := &Scene{Title: args.Title, Chain: NewSwapChain(cfg.Format)}
	for _, name := range passOrder {
		pass, ok := args.Buffers[name]
		if !ok {
			continue
		}
		buf := NewBuffer(name, pass.Code, WithCommon(args.CommonCode))
		for i, ch := range pass.Inputs {
			if ch == nil {
				continue
			}
			in := scene.channelInput(b, scene.Chain, name, ch, cfg)
			if in == nil {
				in = ctx.ErrorInput()
			}
			if in == nil {
				continue
			}
			if err := buf.SetInput(i, in, WithBindingName(ch.CType)); err != nil {
				scene.Release()
				return nil, err
			}
		}
		policy := DoubleBuffer
		if name == api.ImagePass && !cfg.Offscreen {
			policy = DefaultFramebuffer
		}
		if _, err := scene.Chain.EmplaceBack(buf, cfg.Size, policy); err != nil {
			scene.Release()
			return nil, err
		}
	}
	return scene, nil
}

// LoadScene builds and initializes a scene. On error nothing is leaked.
func LoadScene(ctx *Context, args *api.ShaderArgs, cfg SceneConfig) (*Scene, error) {
	scene, err := BuildChain(ctx, args, cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Init(scene.Chain); err != nil {
		scene.Release()
		return nil, fmt.Errorf("failed to load scene %s: %w", args.Title, err)
	}
	logx.Logger().Info("renderer: loaded scene", "title", scene.Title, "members", scene.Chain.Len())
	return scene, nil
}

// DumpBinaries writes the linked program binary of every member to dir as
// <member>.bin. Members whose binary is unavailable are skipped with a
// warning; the number written is returned.
func (s *Scene) DumpBinaries(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	n := 0
	for _, m := range s.Chain.Members() {
		prog := m.Buffer().Program()
		if prog == nil {
			continue
		}
		bin, err := prog.Binary()
		if err != nil {
			logx.Logger().Warn("renderer: no program binary", "member", m.ID(), "error", err)
			continue
		}
		name := filepath.Join(dir, m.ID()+".bin")
		if err := os.WriteFile(name, bin.Data, 0o644); err != nil {
			return n, err
		}
		logx.Logger().Info("renderer: wrote program binary", "member", m.ID(), "format", fmt.Sprintf("%#x", uint32(bin.Format)), "path", name)
		n++
	}
	return n, nil
}
