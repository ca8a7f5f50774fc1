// Package vecstore defines the narrow contract this system needs from a
// nearest-neighbor search service: add records with precomputed embeddings,
// query nearest neighbors with a metadata filter, enumerate, and delete.
//
// Keeping the surface this small lets the scoring and budgeting logic run
// against deterministic in-memory fakes in tests while production uses an
// embedded vector database.
package vecstore

import "context"

// Record is one entry to be indexed. The embedding is always supplied by the
// caller; the index never embeds on its own.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Result is a nearest-neighbor hit.
//
// Distance is the cosine distance between the query and the hit, in [0,2].
// Retrieval code derives similarity as 1-Distance, which may therefore range
// over [-1,1]; callers must not assume a [0,1] bound. This is the single
// similarity convention for the whole system.
type Result struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float32
}

// Index is one logical collection of records (the knowledge base and the
// conversational memory live in separate Index instances).
type Index interface {
	// Add indexes the given records. Records with an existing ID replace
	// the previous entry.
	Add(ctx context.Context, recs []Record) error

	// Query returns up to n nearest records, optionally restricted to
	// records whose metadata matches every key/value in where. An empty
	// index yields an empty result, not an error.
	Query(ctx context.Context, embedding []float32, n int, where map[string]string) ([]Result, error)

	// List returns every record matching where, in no particular order.
	List(ctx context.Context, where map[string]string) ([]Result, error)

	// Delete removes the records with the given IDs. When no IDs are
	// given, it removes every record matching where instead.
	Delete(ctx context.Context, where map[string]string, ids ...string) error

	// Count returns the number of records in the index.
	Count() int
}
