package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nebula/nebula/config"
	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/logging"
)

var ErrEmptyText = errors.New("text cannot be empty")

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// New picks the embedder named by cfg.EmbeddingProvider.
func New(cfg config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return NewOpenAIEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions), nil
	case "hash":
		return NewHashEmbedder(cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// OpenAIEmbedder talks to any OpenAI-compatible /embeddings endpoint (OpenAI, Ollama, vLLM).
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	defer logging.LogDuration(ctx, "OpenAIEmbedder.Embed")()

	var resp embeddingResponse
	err := httputils.PostJSONWithAuth(ctx, e.httpClient, e.baseURL+"/embeddings", e.apiKey,
		embeddingRequest{Model: e.model, Input: text}, &resp)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	emb := resp.Data[0].Embedding
	if e.dimensions > 0 && len(emb) != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(emb), e.dimensions)
	}
	return emb, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}
