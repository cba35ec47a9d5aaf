package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/skininsight/backend/internal/infrastructure/config"
)

const messagesPath = "/v1/messages"

// AnalyzeRequest carries one image analysis call to the vendor.
// ImageBase64 is the raw base64 payload without a data URI prefix.
type AnalyzeRequest struct {
	ImageBase64 string
	MediaType   string
	Prompt      string
	Model       string
}

// Result is the vendor's verbatim answer. The service passes status and
// body through to the caller without reinterpreting them.
type Result struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// OK reports whether the vendor accepted the request.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs image analysis against the vision vendor.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error)
}

// AnthropicClient implements Client against the Anthropic messages API.
type AnthropicClient struct {
	cfg        config.VisionConfig
	httpClient *http.Client
}

// NewAnthropicClient creates a vendor client from vision configuration
func NewAnthropicClient(cfg config.VisionConfig) *AnthropicClient {
	return &AnthropicClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type messageContent struct {
	Type   string       `json:"type"`
	Source *imageSource `json:"source,omitempty"`
	Text   string       `json:"text,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

// Analyze sends the image and prompt to the vendor and returns its
// response verbatim. Non-2xx vendor statuses are returned as results,
// not errors; an error means the call itself failed.
func (c *AnthropicClient) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	payload := messagesRequest{
		Model:     model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []message{{
			Role: "user",
			Content: []messageContent{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: mediaType,
						Data:      req.ImageBase64,
					},
				},
				{
					Type: "text",
					Text: req.Prompt,
				},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vision: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", c.cfg.Version)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to read response: %w", err)
	}

	return &Result{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

var _ Client = (*AnthropicClient)(nil)
