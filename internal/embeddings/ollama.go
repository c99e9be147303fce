package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaService generates embeddings via a local Ollama server. Ollama has
// no batch endpoint, so EmbedDocuments issues one request per text.
type OllamaService struct {
	config    Config
	client    *http.Client
	dimension int
}

// NewOllamaService creates an Ollama-backed embedding provider.
func NewOllamaService(config Config) (*OllamaService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if config.Model == "" {
		config.Model = DefaultOllamaModel
	}
	return &OllamaService{
		config:    config,
		client:    &http.Client{Timeout: 60 * time.Second},
		dimension: detectDimensionFromModel(config.Model),
	}, nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedQuery generates an embedding for a single text.
func (s *OllamaService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	body, err := json.Marshal(ollamaRequest{Model: s.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", ErrEmbeddingFailed)
	}
	return out.Embedding, nil
}

// EmbedDocuments generates embeddings for multiple texts, one request each.
func (s *OllamaService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := s.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Healthy reports whether the Ollama server responds.
func (s *OllamaService) Healthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Dimension returns the embedding dimension based on the configured model.
func (s *OllamaService) Dimension() int { return s.dimension }

// Close is a no-op; the service is plain HTTP.
func (s *OllamaService) Close() error { return nil }
