package embeddings

import "context"

// Embedder generates embeddings for texts. Repeated calls on identical text
// yield near-identical vectors (cosine similarity ~1), not necessarily
// bit-identical ones.
type Embedder interface {
	// EmbedQuery generates an embedding for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for multiple texts, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is an Embedder with lifecycle and model introspection.
type Provider interface {
	Embedder

	// Dimension returns the embedding dimension for the configured model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}
