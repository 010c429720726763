// Package openai adapts the hosted OpenAI chat and Whisper endpoints to the
// summarization and transcription model interfaces.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	oai "github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/transcribe"
)

const (
	DefaultChatModel       = oai.GPT4oMini
	DefaultTranscribeModel = oai.Whisper1
)

// NewAPIClient builds a go-openai client. An empty baseURL keeps the public API.
func NewAPIClient(apiKey, baseURL string) *oai.Client {
	cfg := oai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return oai.NewClientWithConfig(cfg)
}

const summarySystemPrompt = `You summarize text. Reply with the summary only, no preamble.
Keep the key facts, names and numbers. Do not add information that is not in the text.`

type Summarizer struct {
	client *oai.Client
	model  string
}

func NewSummarizer(client *oai.Client, model string) *Summarizer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Summarizer{client: client, model: model}
}

// Summarize implements summarize.Model. Lengths are requested in words.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: s.model,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: oai.ChatMessageRoleUser, Content: fmt.Sprintf("Summarize in %d to %d words:\n\n%s", minLength, maxLength, text)},
		},
		MaxTokens:   maxLength * 2,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type Recognizer struct {
	client *oai.Client
	model  string
}

func NewRecognizer(client *oai.Client, model string) *Recognizer {
	if model == "" {
		model = DefaultTranscribeModel
	}
	return &Recognizer{client: client, model: model}
}

// NoisyAmbientRMS is the calibration level (int16 scale, about -30 dBFS)
// above which a window is sent with noisePrompt.
const NoisyAmbientRMS = 1000

const noisePrompt = "Recording with background noise. Transcribe only clearly spoken words."

// Recognize implements transcribe.Recognizer. Whisper takes an ISO-639-1
// code, so region suffixes are dropped. Whisper has no energy threshold, so
// the window's ambient level only selects the prompt.
func (r *Recognizer) Recognize(ctx context.Context, clip transcribe.Clip, language string) (string, error) {
	req := oai.AudioRequest{
		Model:    r.model,
		FilePath: fmt.Sprintf("window-%03d.wav", clip.Window.Index),
		Reader:   bytes.NewReader(clip.WAV),
		Language: languageCode(language),
		Format:   oai.AudioResponseFormatJSON,
	}
	if clip.AmbientRMS >= NoisyAmbientRMS {
		req.Prompt = noisePrompt
	}
	resp, err := r.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("window %d: %w", clip.Window.Index, apperr.ErrUnintelligible)
	}
	return text, nil
}

func languageCode(tag string) string {
	code, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(code)
}
