package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"nebula/nebula/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_DeterministicUnitVector(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	c, err := e.Embed(context.Background(), "goodbye")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)

	_, err = e.Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, "hi there", req.Input)
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/v1/", "sk-test", "text-embedding-3-small", 3)
	got, err := e.Embed(context.Background(), " hi there ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)
	assert.Equal(t, 3, e.Dimensions())
}

func TestOpenAIEmbedder_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down/embeddings":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		case "/empty/embeddings":
			w.Write([]byte(`{"data":[]}`))
		default:
			w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
		}
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder(srv.URL+"/down", "", "m", 0).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "503")
	_, err = NewOpenAIEmbedder(srv.URL+"/empty", "", "m", 0).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "empty embedding")
	_, err = NewOpenAIEmbedder(srv.URL+"/dims", "", "m", 3).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "expected 3")
	_, err = NewOpenAIEmbedder(srv.URL, "", "m", 0).Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNew(t *testing.T) {
	cfg := config.Defaults()
	cfg.EmbeddingProvider = "hash"
	cfg.EmbeddingDimensions = 8
	e, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())

	cfg.EmbeddingProvider = "nope"
	_, err = New(cfg)
	assert.Error(t, err)
}
