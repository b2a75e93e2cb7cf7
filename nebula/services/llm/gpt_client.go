package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/logging"
)

// GPTClient speaks the OpenAI chat completions protocol, so it also serves
// Groq and Ollama through their OpenAI-compatible endpoints.
type GPTClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGPTClient(baseURL, apiKey, model string) *GPTClient {
	return &GPTClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
}

type gptChatRequest struct {
	Model    string       `json:"model"`
	Messages []gptMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

// Content is a string for text-only turns and a part list otherwise.
type gptMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type gptContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *gptImageURL `json:"image_url,omitempty"`
}

type gptImageURL struct {
	URL string `json:"url"`
}

type gptResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func toGPTMessages(turns []Turn) []gptMessage {
	msgs := make([]gptMessage, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == RoleModel {
			role = "assistant"
		}

		hasInline := false
		for _, p := range t.Parts {
			if p.Inline != nil {
				hasInline = true
				break
			}
		}
		if !hasInline {
			msgs = append(msgs, gptMessage{Role: role, Content: t.Text()})
			continue
		}

		parts := make([]gptContentPart, 0, len(t.Parts))
		for _, p := range t.Parts {
			switch {
			case p.Inline == nil:
				parts = append(parts, gptContentPart{Type: "text", Text: p.Text})
			case isImage(p.Inline.MediaType):
				parts = append(parts, gptContentPart{
					Type:     "image_url",
					ImageURL: &gptImageURL{URL: fmt.Sprintf("data:%s;base64,%s", p.Inline.MediaType, p.Inline.Base64)},
				})
			default:
				parts = append(parts, gptContentPart{Type: "text", Text: attachmentMarker(p.Inline.MediaType)})
			}
		}
		msgs = append(msgs, gptMessage{Role: role, Content: parts})
	}
	return msgs
}

// Generate executes a single non-streaming completion.
func (c *GPTClient) Generate(ctx context.Context, turns []Turn) (string, error) {
	defer logging.LogDuration(ctx, "gpt_service_run")()

	req := gptChatRequest{
		Model:    c.model,
		Messages: toGPTMessages(turns),
		Stream:   false,
	}
	var parsed gptResponse
	if err := httputils.PostJSONWithAuth(ctx, c.httpClient, c.baseURL+"/chat/completions", c.apiKey, req, &parsed); err != nil {
		return "", fmt.Errorf("GPT request failed: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}
