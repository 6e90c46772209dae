// Package translator adapts goshadertranslator to shader.Translator.
package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"

	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/shader"
)

var (
	once       sync.Once
	translator *gst.ShaderTranslator
	initErr    error
)

// Shared returns the process wide translator instance. It is created on
// first use.
func Shared() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
		if initErr != nil {
			logx.Logger().Error("translator: init failed", "error", initErr)
		}
	})
	return translator, initErr
}

// Translator translates WebGL2 fragment shaders to desktop GLSL 4.10 or
// ESSL.
type Translator struct {
	tr *gst.ShaderTranslator
	es bool
}

var _ shader.Translator = (*Translator)(nil)

// New returns a translator over the shared instance. es selects ESSL
// output; otherwise GLSL 4.10 is produced.
func New(es bool) (*Translator, error) {
	tr, err := Shared()
	if err != nil {
		return nil, fmt.Errorf("create shader translator: %w", err)
	}
	return &Translator{tr: tr, es: es}, nil
}

// Version is the #version line to pair natively compiled stages with.
func (t *Translator) Version() string {
	if t.es {
		return shader.VersionWebGL2
	}
	return shader.VersionGL410
}

func (t *Translator) Translate(src string) (*shader.Translation, error) {
	format := gst.OutputFormatGLSL410
	if t.es {
		format = gst.OutputFormatESSL
	}
	out, err := t.tr.TranslateShader(src, "fragment", gst.ShaderSpecWebGL2, format)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.Variables))
	for name, v := range out.Variables {
		names[name] = v.MappedName
	}
	return &shader.Translation{Code: out.Code, Names: names}, nil
}
