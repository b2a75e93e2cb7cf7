package llm

import (
	"context"
	"fmt"
	"strings"

	"nebula/nebula/utils/logging"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient disables SDK retries; a failed call fails the turn.
func NewAnthropicClient(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func toAnthropicBlocks(t Turn) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.Parts))
	for _, p := range t.Parts {
		switch {
		case p.Inline == nil:
			if p.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			}
		case isImage(p.Inline.MediaType):
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.Inline.MediaType, p.Inline.Base64))
		default:
			blocks = append(blocks, anthropic.NewTextBlock(attachmentMarker(p.Inline.MediaType)))
		}
	}
	return blocks
}

// toAnthropicMessages merges consecutive turns of the same role and drops
// turns without content.
func toAnthropicMessages(turns []Turn) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	var lastRole Role
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if lastRole == RoleModel {
			msgs = append(msgs, anthropic.NewAssistantMessage(pending...))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(pending...))
		}
		pending = nil
	}

	for _, t := range turns {
		blocks := toAnthropicBlocks(t)
		if len(blocks) == 0 {
			continue
		}
		if t.Role != lastRole {
			flush()
			lastRole = t.Role
		}
		pending = append(pending, blocks...)
	}
	flush()
	return msgs
}

func (c *AnthropicClient) Generate(ctx context.Context, turns []Turn) (string, error) {
	defer logging.LogDuration(ctx, "anthropic_service_run")()

	msgs := toAnthropicMessages(turns)
	if len(msgs) == 0 {
		return "", fmt.Errorf("no content to send")
	}
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
