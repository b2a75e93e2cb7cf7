package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	httputils "nebula/nebula/utils/http"
	"nebula/nebula/utils/logging"
)

const imageMediaType = "image/png"

// uploader is the part of the attachment relay the image client needs.
type uploader interface {
	Store(ctx context.Context, data []byte, mediaType string) (string, error)
}

// HFImageClient renders prompts with a HuggingFace text-to-image model and
// hands the PNG to the relay for a durable URL.
type HFImageClient struct {
	baseURL    string
	token      string
	model      string
	steps      int
	relay      uploader
	httpClient *http.Client
}

func NewHFImageClient(baseURL, token, model string, relay uploader) *HFImageClient {
	return &HFImageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		model:      model,
		steps:      20,
		relay:      relay,
		httpClient: &http.Client{},
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	NumInferenceSteps int `json:"num_inference_steps"`
}

func (c *HFImageClient) GenerateImage(ctx context.Context, prompt string) (ImageResult, error) {
	defer logging.LogDuration(ctx, "hf_text_to_image")()

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req := hfRequest{Inputs: prompt, Parameters: hfParameters{NumInferenceSteps: c.steps}}
	data, contentType, err := httputils.PostForBytes(ctx, c.httpClient, url, c.token, req, imageMediaType)
	if err != nil {
		return ImageResult{}, fmt.Errorf("text to image: %w", err)
	}
	if len(data) == 0 {
		return ImageResult{}, ErrEmptyResponse
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return ImageResult{}, fmt.Errorf("text to image: unexpected content type %q", contentType)
	}

	imageURL, err := c.relay.Store(ctx, data, imageMediaType)
	if err != nil {
		return ImageResult{}, fmt.Errorf("upload image: %w", err)
	}
	return ImageResult{Text: prompt, ImageURL: imageURL}, nil
}
