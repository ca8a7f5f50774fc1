// Package kb holds the knowledge-base side of the pipeline: incremental
// ingestion of statute sections into the vector index, and similarity search
// over what has been indexed.
package kb

import (
	"context"
	"fmt"
	"sort"

	"github.com/vakeel-labs/vakeel/embedder"
	"github.com/vakeel-labs/vakeel/vecstore"
)

// Candidate is one retrieved knowledge-base chunk.
//
// Score is 1 - cosine distance. Because cosine distance spans [0,2], the
// score may range over [-1,1]; it is deliberately left unclamped so callers
// can still order by it, and it must not be read as a probability.
type Candidate struct {
	Content string
	Meta    map[string]string
	Score   float64
}

// Retriever answers nearest-neighbor queries against the KB index. It never
// mutates the index.
type Retriever struct {
	idx  vecstore.Index
	emb  embedder.Embedder
	topK int
}

// NewRetriever creates a retriever with a default result count of topK.
func NewRetriever(idx vecstore.Index, emb embedder.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{idx: idx, emb: emb, topK: topK}
}

// Search returns up to topK chunks ranked by descending similarity. A
// non-positive topK falls back to the retriever default. An empty index
// yields an empty slice, not an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Candidate, error) {
	k := topK
	if k <= 0 {
		k = r.topK
	}

	qEmb, err := r.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.idx.Query(ctx, qEmb, k, nil)
	if err != nil {
		return nil, fmt.Errorf("query knowledge base: %w", err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, Candidate{
			Content: h.Content,
			Meta:    h.Metadata,
			Score:   1 - float64(h.Distance),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
