package provider

import "context"

// EmbeddingProvider converts text into a fixed-dimension vector. The caller
// supplies the model identifier; implementations return whatever
// dimensionality that model produces and the core serializes it as-is.
// Retry and caching policy, when wanted, belong to the implementation, not
// to the indexing or search layers.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string, model string) ([]float32, error)
}
