package cli

import (
	"fmt"
	"log"

	"github.com/vakeel-labs/vakeel/config"
	"github.com/vakeel-labs/vakeel/embedder"
	"github.com/vakeel-labs/vakeel/embedder/cached"
	"github.com/vakeel-labs/vakeel/embedder/mock"
	openaiemb "github.com/vakeel-labs/vakeel/embedder/openai"
	"github.com/vakeel-labs/vakeel/engine"
	"github.com/vakeel-labs/vakeel/generator"
	"github.com/vakeel-labs/vakeel/kb"
	"github.com/vakeel-labs/vakeel/memory"
	"github.com/vakeel-labs/vakeel/normalizer"
	"github.com/vakeel-labs/vakeel/registry"
	"github.com/vakeel-labs/vakeel/vecstore"
	"github.com/vakeel-labs/vakeel/vecstore/chromem"
)

// app bundles the wired components each command needs. Commands build only
// what they use; nothing here opens network connections until first call.
type app struct {
	cfg      *config.Config
	store    *chromem.Store
	emb      embedder.Embedder
	kbIndex  vecstore.Index
	memIndex vecstore.Index
	closers  []func()
}

// newApp loads configuration and opens the persistent vector store.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := chromem.NewPersistent(cfg.VectorDir, cfg.EmbedDims)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		kbIndex:  store.Index(cfg.KBCollection),
		memIndex: store.Index(cfg.MemoryCollection),
	}

	a.emb, err = a.buildEmbedder()
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		fn()
	}
}

// buildEmbedder selects the embedding provider and wraps it in the
// in-process cache so repeated queries skip the API.
func (a *app) buildEmbedder() (embedder.Embedder, error) {
	var (
		inner embedder.Embedder
		err   error
	)
	switch a.cfg.EmbedProvider {
	case "openai":
		inner, err = openaiemb.New(openaiemb.Config{
			APIKey:     a.cfg.OpenAIAPIKey,
			Model:      a.cfg.EmbedModel,
			Dimensions: a.cfg.EmbedDims,
		})
	case "onnx":
		inner, err = a.buildONNXEmbedder()
	case "mock":
		log.Printf("[APP] Using mock embedder (%d dims), results are not meaningful", a.cfg.EmbedDims)
		inner = mock.New(a.cfg.EmbedDims)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, onnx, mock)", a.cfg.EmbedProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s embedder: %w", a.cfg.EmbedProvider, err)
	}

	c, err := cached.New(inner, 0)
	if err != nil {
		return nil, fmt.Errorf("wrap embedding cache: %w", err)
	}
	return c, nil
}

func (a *app) retriever() *kb.Retriever {
	return kb.NewRetriever(a.kbIndex, a.emb, a.cfg.KBTop)
}

func (a *app) memoryStore() (*memory.Store, error) {
	return memory.NewStore(a.memIndex, a.emb, a.cfg.MemoryScoring())
}

func (a *app) ingestor() (*kb.Ingestor, *registry.Registry, error) {
	chunker, err := normalizer.NewChunker(a.cfg.ChunkMaxChars, a.cfg.ChunkOverlap)
	if err != nil {
		return nil, nil, fmt.Errorf("build chunker: %w", err)
	}
	reg := registry.Open(a.cfg.RegistryPath)
	ing := kb.NewIngestor(a.kbIndex, a.emb, reg, chunker, a.cfg.ProcessedDir, a.cfg.NotesDir)
	return ing, reg, nil
}

func (a *app) engine() (*engine.Engine, error) {
	mem, err := a.memoryStore()
	if err != nil {
		return nil, err
	}

	key := a.cfg.AnthropicAPIKey
	if a.cfg.GenProvider == "openai" {
		key = a.cfg.OpenAIAPIKey
	}
	gen, err := generator.NewFromConfig(generator.Config{
		Provider:  a.cfg.GenProvider,
		APIKey:    key,
		Model:     a.cfg.GenModel,
		MaxTokens: a.cfg.GenMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}

	return engine.New(a.retriever(), mem, gen,
		engine.WithKBTop(a.cfg.KBTop),
		engine.WithMemoryTop(a.cfg.MemoryTop),
		engine.WithBudget(a.cfg.BudgetChars),
	), nil
}
