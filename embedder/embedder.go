// Package embedder defines the text embedding contract consumed by the
// retrieval pipeline.
//
// Implementations:
//   - mock: deterministic hash-based vectors for tests and offline wiring
//   - openai: API embeddings (text-embedding-3-small by default)
//   - onnx: local all-MiniLM-L6-v2 via ONNX Runtime (build tag "onnx")
//   - cached: a ristretto-backed decorator for any of the above
package embedder

import "context"

// Embedder converts text to a fixed-length vector. Implementations must be
// deterministic for identical input text and model version.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
