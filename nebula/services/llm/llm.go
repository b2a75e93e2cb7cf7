package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nebula/nebula/config"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Inline is an attachment sent to the model, already base64 encoded.
type Inline struct {
	MediaType string
	Base64    string
}

// Part is either text or an inline attachment.
type Part struct {
	Text   string
	Inline *Inline
}

func TextPart(s string) Part {
	return Part{Text: s}
}

func InlinePart(mediaType, b64 string) Part {
	return Part{Inline: &Inline{MediaType: mediaType, Base64: b64}}
}

type Turn struct {
	Role  Role
	Parts []Part
}

// Text joins the text parts of the turn.
func (t Turn) Text() string {
	var texts []string
	for _, p := range t.Parts {
		if p.Inline == nil && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Gateway produces the model reply for an ordered conversation.
type Gateway interface {
	Generate(ctx context.Context, turns []Turn) (string, error)
}

type ImageResult struct {
	Text     string
	ImageURL string
}

// ImageGateway renders a prompt to an image and returns its durable URL.
type ImageGateway interface {
	GenerateImage(ctx context.Context, prompt string) (ImageResult, error)
}

// NewGateway picks the text backend named by cfg.LLMProvider.
func NewGateway(cfg config.Config) (Gateway, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewGPTClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case "groq":
		return NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel), nil
	case "anthropic":
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, int64(cfg.AnthropicMaxTokens)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func isImage(mediaType string) bool {
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}

func attachmentMarker(mediaType string) string {
	return fmt.Sprintf("[attachment: %s]", mediaType)
}
