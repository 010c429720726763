// Package inference is the HTTP client for the local model server that hosts
// the summarization, speech, language and style models.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/generate"
	"github.com/MikeSquared-Agency/lumen/internal/style"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx reply from the model server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("model server returned %d", e.Code)
	}
	return fmt.Sprintf("model server returned %d: %s", e.Code, e.Message)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Code: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			se.Message = errResp.Error
		} else {
			se.Message = strings.TrimSpace(string(respBody))
		}
		return se
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize implements summarize.Model.
func (c *Client) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	var resp summarizeResponse
	if err := c.post(ctx, "/v1/summarize", summarizeRequest{Text: text, MaxLength: maxLength, MinLength: minLength}, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

type transcribeRequest struct {
	Audio      []byte  `json:"audio"`
	Language   string  `json:"language"`
	AmbientRMS float64 `json:"ambient_rms"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Recognize implements transcribe.Recognizer. A 422 from the server means the
// clip held no recognizable speech.
func (c *Client) Recognize(ctx context.Context, clip transcribe.Clip, language string) (string, error) {
	var resp transcribeResponse
	err := c.post(ctx, "/v1/transcribe", transcribeRequest{Audio: clip.WAV, Language: language, AmbientRMS: clip.AmbientRMS}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity {
			return "", fmt.Errorf("window %d: %w", clip.Window.Index, apperr.ErrUnintelligible)
		}
		return "", err
	}
	return resp.Text, nil
}

type tokenizeRequest struct {
	Text string `json:"text"`
}

type tokensResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type textResponse struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Tokens       []int   `json:"tokens"`
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopK         int     `json:"top_k"`
	TopP         float64 `json:"top_p"`
}

// Encode implements generate.Model.
func (c *Client) Encode(ctx context.Context, text string) ([]int, error) {
	var resp tokensResponse
	if err := c.post(ctx, "/v1/tokenize", tokenizeRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Decode implements generate.Model.
func (c *Client) Decode(ctx context.Context, tokens []int) (string, error) {
	var resp textResponse
	if err := c.post(ctx, "/v1/detokenize", detokenizeRequest{Tokens: tokens}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Generate implements generate.Model. The server returns the full sequence,
// prompt included.
func (c *Client) Generate(ctx context.Context, tokens []int, maxNew int, s generate.Sampling) ([]int, error) {
	var resp tokensResponse
	req := generateRequest{
		Tokens:       tokens,
		MaxNewTokens: maxNew,
		Temperature:  s.Temperature,
		TopK:         s.TopK,
		TopP:         s.TopP,
	}
	if err := c.post(ctx, "/v1/generate", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

type styleRequest struct {
	ContentPath   string  `json:"content_path"`
	StylePath     string  `json:"style_path"`
	OutputPath    string  `json:"output_path"`
	Steps         int     `json:"steps"`
	StyleWeight   float64 `json:"style_weight"`
	ContentWeight float64 `json:"content_weight"`
	ImageSize     int     `json:"image_size"`
}

type styleResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Progress []style.Step `json:"progress"`
}

// Stylize implements style.Backend. Paths are shared with the model server.
func (c *Client) Stylize(ctx context.Context, req style.Request) (style.Outcome, error) {
	var resp styleResponse
	err := c.post(ctx, "/v1/style-transfer", styleRequest{
		ContentPath:   req.ContentPath,
		StylePath:     req.StylePath,
		OutputPath:    req.OutputPath,
		Steps:         req.Params.Steps,
		StyleWeight:   req.Params.StyleWeight,
		ContentWeight: req.Params.ContentWeight,
		ImageSize:     req.Params.ImageSize,
	}, &resp)
	if err != nil {
		return style.Outcome{}, err
	}
	return style.Outcome{
		Success:  resp.Success,
		Message:  resp.Message,
		Progress: style.Progress{Steps: resp.Progress},
	}, nil
}
