package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// FetchRaw fetches a shader through the site's own endpoint, which also
// serves shaders not published to the API. It sends a POST with
// browser-like headers.
func (c *Client) FetchRaw(ctx context.Context, shaderID string) (*Shader, error) {
	// The payload is a JSON string within a URL-encoded form value.
	// Example: s={"shaders":["4lSGRV"]}
	payload, err := json.Marshal(map[string][]string{"shaders": {shaderID}})
	if err != nil {
		return nil, err
	}
	data := url.Values{}
	data.Set("s", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RawURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "https://www.shadertoy.com")
	req.Header.Set("Referer", "https://www.shadertoy.com/browse")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad response status: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var raw rawShaderResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode raw shader JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("raw shader response is empty for %s", shaderID)
	}
	return rawShaderToShader(raw[0]), nil
}
