package shader

import (
	"fmt"
	"strings"
)

// Part names used by the templates. Extensions anchor on these.
const (
	PartVersion   = "version"
	PartPrecision = "precision"
	PartUniforms  = "uniforms"
	PartChannels  = "channels"
	PartHelpers   = "helpers"
	PartCommon    = "common"
	PartUser      = "user"
	PartMain      = "main"
)

// Version headers.
const (
	VersionWebGL2 = "#version 300 es"
	VersionGL410  = "#version 410 core"
)

// NumChannels is the number of iChannel samplers every buffer declares.
const NumChannels = 4

// DefaultOutput is the fragment output written by mainImage.
const DefaultOutput = "fragColor"

// ChannelDecl declares the sampler type of one iChannel.
type ChannelDecl struct {
	Index int
	Type  string
}

const precision = `precision highp float;
precision highp int;
precision mediump sampler3D;

#define HW_PERFORMANCE 1
`

// Uniforms is the Shadertoy uniform block.
const Uniforms = `uniform vec3  iResolution;
uniform float iTime;
uniform float iTimeDelta;
uniform float iFrameRate;
uniform int   iFrame;
uniform float iChannelTime[4];
uniform vec3  iChannelResolution[4];
uniform vec4  iMouse;
uniform vec4  iDate;
uniform float iSampleRate;
`

const helpers = `#define FAST_TANH_BODY(x) ((x) * (27.0 + (x)*(x)) / (27.0 + 9.0*(x)*(x)))
float fast_tanh(float x) { return FAST_TANH_BODY(x); }
vec2  fast_tanh(vec2  x) { return FAST_TANH_BODY(x); }
vec3  fast_tanh(vec3  x) { return FAST_TANH_BODY(x); }
vec4  fast_tanh(vec4  x) { return FAST_TANH_BODY(x); }
#define tanh fast_tanh
`

// ChannelDeclarations returns the iChannel sampler uniforms. Channels not
// listed are declared sampler2D.
func ChannelDeclarations(channels []ChannelDecl) string {
	types := [NumChannels]string{"sampler2D", "sampler2D", "sampler2D", "sampler2D"}
	for _, c := range channels {
		if c.Index >= 0 && c.Index < NumChannels && c.Type != "" {
			types[c.Index] = c.Type
		}
	}
	var sb strings.Builder
	for i, t := range types {
		fmt.Fprintf(&sb, "uniform %s iChannel%d;\n", t, i)
	}
	return sb.String()
}

func outputDeclarations(outputs []string) string {
	if len(outputs) == 0 {
		outputs = []string{DefaultOutput}
	}
	var sb strings.Builder
	for i, name := range outputs {
		fmt.Fprintf(&sb, "layout(location = %d) out vec4 %s;\n", i, name)
	}
	return sb.String()
}

// FragmentTemplate returns the parts of a Shadertoy fragment shader in
// WebGL2 GLSL. The first output receives mainImage's color; further
// outputs are written by user code directly.
func FragmentTemplate(channels []ChannelDecl, common, user string, outputs []string) *Parts {
	first := DefaultOutput
	if len(outputs) > 0 {
		first = outputs[0]
	}
	return NewParts(
		Part{PartVersion, VersionWebGL2},
		Part{PartPrecision, precision},
		Part{PartUniforms, Uniforms + "\nin vec2 frag_uv;\n" + outputDeclarations(outputs)},
		Part{PartChannels, ChannelDeclarations(channels)},
		Part{PartHelpers, helpers},
		Part{PartCommon, common},
		Part{PartUser, user},
		Part{PartMain, fmt.Sprintf("void main(void)\n{\n    mainImage(%s, gl_FragCoord.xy);\n}\n", first)},
	)
}

// VertexTemplate returns the full-screen quad vertex shader.
func VertexTemplate() *Parts {
	return NewParts(
		Part{PartVersion, VersionWebGL2},
		Part{PartMain, `layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`},
	)
}

// BlitTemplate returns a fragment shader that copies u_texture to the
// target, optionally flipping it vertically.
func BlitTemplate(flip bool) *Parts {
	uv := "frag_uv"
	if flip {
		uv = "vec2(frag_uv.x, 1.0 - frag_uv.y)"
	}
	return NewParts(
		Part{PartVersion, VersionWebGL2},
		Part{PartPrecision, "precision mediump float;\n"},
		Part{PartUniforms, "in vec2 frag_uv;\nout vec4 fragColor;\nuniform sampler2D u_texture;\n"},
		Part{PartMain, fmt.Sprintf("void main() { fragColor = texture(u_texture, %s); }\n", uv)},
	)
}
