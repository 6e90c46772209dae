// Package api reads Shadertoy shader descriptions, from the Shadertoy web
// API or from exported JSON files, and converts them to ShaderArgs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/richinsley/goshaderchain/logx"
)

const (
	shadertoyAPIURL = "https://www.shadertoy.com/api/v1"
	shadertoyRawURL = "https://www.shadertoy.com/shadertoy"

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv = "SHADERTOY_KEY"
)

// ErrNoAPIKey is returned by Fetch when no API key is configured.
var ErrNoAPIKey = errors.New(APIKeyEnv + " environment variable not set, see https://www.shadertoy.com/howto#q2")

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "goshaderchain")
	return t.Transport.RoundTrip(req)
}

// --- Structs for Shadertoy API Response ---

type ShadertoyResponse struct {
	Shader *Shader `json:"Shader"`
	Error  string  `json:"Error,omitempty"`
	IsAPI  bool    `json:"isAPI,omitempty"`
}

type Shader struct {
	Info       ShaderInfo   `json:"info"`
	RenderPass []RenderPass `json:"renderpass"`
}

type ShaderInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type RenderPass struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
}

type Input struct {
	ID      ResourceID `json:"id"`
	Channel int        `json:"channel"`
	CType   string     `json:"ctype"`
	Src     string     `json:"src"`
	Sampler Sampler    `json:"sampler"`
}

type Output struct {
	ID      ResourceID `json:"id"`
	Channel int        `json:"channel"`
}

type Sampler struct {
	Filter   string `json:"filter"`
	Wrap     string `json:"wrap"`
	VFlip    string `json:"vflip"`
	SRGB     string `json:"srgb"`
	Internal string `json:"internal"`
}

// raw shader data is ever so slightly different from the API response.
type rawShaderResponse []rawShader

type rawShader struct {
	Info          ShaderInfo      `json:"info"`
	RawRenderPass []rawRenderPass `json:"renderpass"`
}

type rawRenderPass struct {
	Inputs  []rawInput  `json:"inputs"`
	Outputs []rawOutput `json:"outputs"`
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Type    string      `json:"type"`
}

type rawInput struct {
	ID          ResourceID `json:"id"`
	Filepath    string     `json:"filepath"`
	PreviewFile string     `json:"previewfilepath"`
	Type        string     `json:"type"`
	Channel     int        `json:"channel"`
	Sampler     Sampler    `json:"sampler"`
	Published   int        `json:"published"`
}

type rawOutput struct {
	ID      ResourceID `json:"id"`
	Channel int        `json:"channel"`
}

// ResourceID is an input or output id. Shadertoy writes these as numbers,
// numeric strings or opaque hashes; hashes decode to -1.
type ResourceID int

func (id *ResourceID) UnmarshalJSON(b []byte) error {
	n, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		n = -1
	}
	*id = ResourceID(n)
	return nil
}

func rawShaderToShader(raw rawShader) *Shader {
	shader := &Shader{
		Info:       raw.Info,
		RenderPass: make([]RenderPass, len(raw.RawRenderPass)),
	}
	for i, rPass := range raw.RawRenderPass {
		pass := RenderPass{
			Inputs:  make([]Input, len(rPass.Inputs)),
			Outputs: make([]Output, len(rPass.Outputs)),
			Code:    rPass.Code,
			Name:    rPass.Name,
			Type:    rPass.Type,
		}
		for j, inp := range rPass.Inputs {
			pass.Inputs[j] = Input{
				ID:      inp.ID,
				Channel: inp.Channel,
				CType:   inp.Type,
				Src:     inp.Filepath,
				Sampler: inp.Sampler,
			}
		}
		for j, out := range rPass.Outputs {
			pass.Outputs[j] = Output{ID: out.ID, Channel: out.Channel}
		}
		shader.RenderPass[i] = pass
	}
	return shader
}

// --- Structs for Processed Shader Data ---

// ShadertoyChannel is one input channel of a pass. Media is referenced by
// Src and loaded by the renderer; buffer inputs name their pass in
// BufferRef.
type ShadertoyChannel struct {
	CType     string
	Channel   int
	Sampler   Sampler
	Src       string
	BufferRef string
}

// BufferRenderPass is a processed pass. Name is "A" to "D" for buffers and
// "image" for the image pass.
type BufferRenderPass struct {
	Name   string
	Code   string
	Inputs [4]*ShadertoyChannel
}

// ImagePass is the key of the image pass in ShaderArgs.Buffers.
const ImagePass = "image"

// ShaderArgs holds the processed passes of a shader.
type ShaderArgs struct {
	Title      string
	CommonCode string
	Buffers    map[string]*BufferRenderPass
	// Complete is false when some input or pass could not be represented.
	Complete bool
}

// Image returns the image pass, nil if the shader has none.
func (a *ShaderArgs) Image() *BufferRenderPass { return a.Buffers[ImagePass] }

// Client fetches shaders from Shadertoy.
type Client struct {
	HTTP   *http.Client
	APIURL string
	RawURL string
	// Key is the API key. Empty falls back to the SHADERTOY_KEY environment
	// variable.
	Key string
}

// NewClient returns a client for shadertoy.com.
func NewClient(key string) *Client {
	return &Client{
		HTTP: &http.Client{
			Transport: &headerTransport{Transport: http.DefaultTransport},
		},
		APIURL: shadertoyAPIURL,
		RawURL: shadertoyRawURL,
		Key:    key,
	}
}

func (c *Client) key() (string, error) {
	if c.Key != "" {
		return c.Key, nil
	}
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// ShaderID extracts the id from a shader id or view URL.
func ShaderID(idOrURL string) string {
	id := strings.TrimSuffix(idOrURL, "/")
	if strings.Contains(id, "/") {
		id = path.Base(id)
	}
	return id
}

// Fetch loads a shader by id or URL through the API. Shaders not published
// to the API are fetched through the site's raw endpoint instead.
func (c *Client) Fetch(ctx context.Context, idOrURL string) (*ShadertoyResponse, error) {
	key, err := c.key()
	if err != nil {
		return nil, err
	}
	shaderID := ShaderID(idOrURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/shaders/%s", c.APIURL, shaderID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Add("key", key)
	req.URL.RawQuery = q.Encode()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to shadertoy API failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load shader %s, status code: %d", shaderID, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %s: %w", shaderID, err)
	}

	var shaderResp ShadertoyResponse
	if err := json.Unmarshal(body, &shaderResp); err != nil {
		return nil, fmt.Errorf("failed to decode shader JSON: %w", err)
	}
	if shaderResp.Error != "" {
		logx.Logger().Warn("api: shader not available through the API, trying raw request",
			"shader", shaderID, "error", shaderResp.Error)
		raw, err := c.FetchRaw(ctx, shaderID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch raw shader data for %s: %w", shaderID, err)
		}
		shaderResp = ShadertoyResponse{Shader: raw}
	} else {
		shaderResp.IsAPI = true
	}
	if shaderResp.Shader == nil {
		return nil, fmt.Errorf("invalid JSON response: 'Shader' key is missing")
	}
	return &shaderResp, nil
}

// Parse decodes a shader description in any of the forms Shadertoy
// produces: an API response, a raw endpoint array or a bare shader object.
func Parse(data []byte) (*ShadertoyResponse, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw rawShaderResponse
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode raw shader JSON: %w", err)
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("raw shader response is empty")
		}
		return &ShadertoyResponse{Shader: rawShaderToShader(raw[0])}, nil
	}

	var resp ShadertoyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode shader JSON: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("shader has error: %s", resp.Error)
	}
	if resp.Shader == nil {
		var shader Shader
		if err := json.Unmarshal(data, &shader); err != nil || len(shader.RenderPass) == 0 {
			return nil, fmt.Errorf("invalid shader JSON: no 'Shader' key or render passes")
		}
		resp.Shader = &shader
	}
	resp.IsAPI = true
	return &resp, nil
}

// Load reads a shader description from a JSON file.
func Load(name string) (*ShadertoyResponse, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	resp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return resp, nil
}

// bufferRef maps a buffer input source such as /media/previz/buffer01.png
// to its pass name.
func bufferRef(src string) (string, bool) {
	name := strings.TrimSuffix(path.Base(src), path.Ext(src))
	if len(name) < 2 {
		return "", false
	}
	num, err := strconv.Atoi(name[len(name)-2:])
	if err != nil || num < 0 || num > 3 {
		return "", false
	}
	return string(rune('A' + num)), true
}

// bufferOutputIDs are the output ids Shadertoy assigns to buffers A to D.
var bufferOutputIDs = map[ResourceID]string{257: "A", 258: "B", 259: "C", 260: "D"}

func passChannels(inputs []Input) ([4]*ShadertoyChannel, bool) {
	var channels [4]*ShadertoyChannel
	complete := true
	for _, inp := range inputs {
		if inp.Channel < 0 || inp.Channel >= len(channels) {
			logx.Logger().Warn("api: input channel out of range", "channel", inp.Channel)
			complete = false
			continue
		}
		channel := &ShadertoyChannel{
			CType:   inp.CType,
			Channel: inp.Channel,
			Sampler: inp.Sampler,
			Src:     inp.Src,
		}
		switch inp.CType {
		case "texture", "cubemap", "volume", "mic", "music", "musicstream", "keyboard", "webcam", "video":
		case "buffer":
			ref, ok := bufferRef(inp.Src)
			if !ok {
				ref, ok = bufferOutputIDs[inp.ID]
			}
			if !ok {
				logx.Logger().Warn("api: invalid buffer reference", "src", inp.Src, "id", inp.ID)
				complete = false
				continue
			}
			channel.BufferRef = ref
		default:
			logx.Logger().Warn("api: unsupported input type", "type", inp.CType)
			complete = false
		}
		channels[inp.Channel] = channel
	}
	return channels, complete
}

// ShaderArgsFromJSON builds ShaderArgs from a shader description. Media is
// not fetched; channels keep their source paths.
func ShaderArgsFromJSON(shaderData *ShadertoyResponse) (*ShaderArgs, error) {
	if shaderData == nil || shaderData.Shader == nil {
		return nil, fmt.Errorf("shader data must have a 'Shader' key")
	}
	args := &ShaderArgs{
		Buffers:  map[string]*BufferRenderPass{},
		Complete: true,
	}
	for _, rPass := range shaderData.Shader.RenderPass {
		switch rPass.Type {
		case "image", "buffer":
			name := ImagePass
			if rPass.Type == "buffer" {
				// The buffer index ('A', 'B', 'C', 'D') is the last character of the name.
				if rPass.Name == "" {
					return nil, fmt.Errorf("buffer pass has no name, cannot determine index")
				}
				name = strings.ToUpper(rPass.Name[len(rPass.Name)-1:])
				if name < "A" || name > "D" {
					return nil, fmt.Errorf("buffer pass %q has no valid index", rPass.Name)
				}
			}
			channels, complete := passChannels(rPass.Inputs)
			args.Complete = args.Complete && complete
			args.Buffers[name] = &BufferRenderPass{Name: name, Code: rPass.Code, Inputs: channels}
		case "common":
			args.CommonCode = rPass.Code
		default:
			logx.Logger().Warn("api: unsupported render pass type", "type", rPass.Type)
			args.Complete = false
		}
	}
	if args.Image() == nil {
		return nil, fmt.Errorf("shader has no image pass")
	}
	info := shaderData.Shader.Info
	args.Title = fmt.Sprintf(`"%s" by %s`, info.Name, info.Username)
	return args, nil
}
