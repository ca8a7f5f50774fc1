// Package chromem adapts chromem-go, a pure Go embedded vector database, to
// the vecstore.Index contract.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/vakeel-labs/vakeel/vecstore"
)

// Store owns one chromem database and hands out named collections as
// vecstore.Index instances.
type Store struct {
	db          *chromem.DB
	dims        int
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an in-memory store. dims is the embedding vector size; it is
// only used to build probe vectors for enumeration.
func New(dims int) *Store {
	return &Store{
		db:          chromem.NewDB(),
		dims:        dims,
		collections: make(map[string]*chromem.Collection),
	}
}

// NewPersistent creates a store backed by an on-disk chromem database, so
// indexed content survives restarts.
func NewPersistent(path string, dims int) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store at %s: %w", path, err)
	}
	return &Store{
		db:          db,
		dims:        dims,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// Index returns the named collection, creating it on first use.
func (s *Store) Index(name string) vecstore.Index {
	return &index{store: s, name: name}
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock.
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	// No embedding func: callers always provide embeddings explicitly.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

type index struct {
	store *Store
	name  string
}

func (ix *index) Add(ctx context.Context, recs []vecstore.Record) error {
	col, err := ix.store.collection(ix.name)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata:  rec.Metadata,
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s to %s: %w", rec.ID, ix.name, err)
		}
	}
	return nil
}

func (ix *index) Query(ctx context.Context, embedding []float32, n int, where map[string]string) ([]vecstore.Result, error) {
	col, err := ix.store.collection(ix.name)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if total := col.Count(); n > total {
		if total == 0 {
			return nil, nil
		}
		n = total
	}

	// chromem requires nResults <= the number of matching documents, which
	// we cannot know up front when filtering. Retry with smaller limits.
	var results []chromem.Result
	for limit := n; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				log.Printf("[CHROMEM] No documents match filter in %s", ix.name)
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query %s: %w", ix.name, err)
	}

	out := make([]vecstore.Result, 0, len(results))
	for _, res := range results {
		out = append(out, vecstore.Result{
			ID:       res.ID,
			Content:  res.Content,
			Metadata: res.Metadata,
			// chromem reports cosine similarity; the system-wide
			// convention is cosine distance.
			Distance: 1 - res.Similarity,
		})
	}
	return out, nil
}

func (ix *index) List(ctx context.Context, where map[string]string) ([]vecstore.Result, error) {
	col, err := ix.store.collection(ix.name)
	if err != nil {
		return nil, err
	}
	total := col.Count()
	if total == 0 {
		return nil, nil
	}

	// chromem has no scan operation, so enumerate by querying the whole
	// collection with a fixed probe vector. Cosine distance against the
	// probe is meaningless here; callers only use content and metadata.
	probe := make([]float32, ix.store.dims)
	probe[0] = 1
	return ix.Query(ctx, probe, total, where)
}

func (ix *index) Delete(ctx context.Context, where map[string]string, ids ...string) error {
	col, err := ix.store.collection(ix.name)
	if err != nil {
		return err
	}
	if col.Count() == 0 {
		return nil
	}
	if len(ids) > 0 {
		err = col.Delete(ctx, nil, nil, ids...)
	} else {
		err = col.Delete(ctx, where, nil)
	}
	if err != nil {
		return fmt.Errorf("delete from %s: %w", ix.name, err)
	}
	return nil
}

func (ix *index) Count() int {
	col, err := ix.store.collection(ix.name)
	if err != nil {
		return 0
	}
	return col.Count()
}

// isInsufficientDocsError checks if a query failed only because it asked for
// more results than the collection holds.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
