// Package engine orchestrates a single question/answer turn: retrieve from
// the knowledge base and conversation memory in parallel, assemble a
// budgeted prompt, generate the answer, then persist the exchange.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"github.com/vakeel-labs/vakeel/generator"
	"github.com/vakeel-labs/vakeel/kb"
	"github.com/vakeel-labs/vakeel/memory"
	"github.com/vakeel-labs/vakeel/promptctx"
)

// Engine runs the answer pipeline.
type Engine struct {
	retriever *kb.Retriever
	memory    *memory.Store
	gen       generator.Generator

	kbTop  int
	memTop int
	budget int
}

// Option configures the engine.
type Option func(*Engine)

// WithKBTop sets how many knowledge-base hits go into the prompt.
func WithKBTop(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.kbTop = n
		}
	}
}

// WithMemoryTop sets how many memory hits go into the prompt.
func WithMemoryTop(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.memTop = n
		}
	}
}

// WithBudget sets the context budget in characters.
func WithBudget(chars int) Option {
	return func(e *Engine) {
		if chars > 0 {
			e.budget = chars
		}
	}
}

// New creates an engine over the given retriever, memory store, and generator.
func New(retriever *kb.Retriever, mem *memory.Store, gen generator.Generator, opts ...Option) *Engine {
	e := &Engine{
		retriever: retriever,
		memory:    mem,
		gen:       gen,
		kbTop:     5,
		memTop:    4,
		budget:    6000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one answered question.
type Result struct {
	// Answer is the generated response text.
	Answer string

	// KBHits are the knowledge-base candidates offered to the prompt builder.
	KBHits []kb.Candidate

	// MemoryHits are the top memTop scored memory candidates offered to the
	// builder; the wider retrieval pool is not exposed.
	MemoryHits []memory.Scored

	// PromptChars is the assembled prompt's length in runes.
	PromptChars int
}

// Answer runs the full pipeline for one user question. The user and
// assistant turns are persisted to memory only after generation succeeds,
// so a failed API call leaves no half-written exchange behind.
func (e *Engine) Answer(ctx context.Context, userID, sessionID, query string) (*Result, error) {
	var (
		wg      sync.WaitGroup
		kbHits  []kb.Candidate
		memHits []memory.Scored
		kbErr   error
		memErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		kbHits, kbErr = e.retriever.Search(ctx, query, e.kbTop)
	}()
	go func() {
		defer wg.Done()
		memHits, memErr = e.memory.SearchRelevant(ctx, userID, sessionID, query, 0)
	}()
	wg.Wait()

	if kbErr != nil {
		return nil, fmt.Errorf("kb retrieval: %w", kbErr)
	}
	if memErr != nil {
		return nil, fmt.Errorf("memory retrieval: %w", memErr)
	}

	if len(memHits) > e.memTop {
		memHits = memHits[:e.memTop]
	}

	blocks := promptctx.BuildBlocks(kbSources(kbHits), memSources(memHits), e.kbTop, e.memTop, e.budget)
	prompt := promptctx.Render(query, blocks)

	log.Printf("[ENGINE] user=%s session=%s kb_hits=%d mem_hits=%d blocks=%d prompt_chars=%d",
		userID, sessionID, len(kbHits), len(memHits), len(blocks), utf8.RuneCountInString(prompt))

	answer, err := e.gen.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := e.memory.SaveMessage(ctx, userID, sessionID, memory.RoleUser, query); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}
	if _, err := e.memory.SaveMessage(ctx, userID, sessionID, memory.RoleAssistant, answer); err != nil {
		return nil, fmt.Errorf("persist assistant turn: %w", err)
	}

	return &Result{
		Answer:      answer,
		KBHits:      kbHits,
		MemoryHits:  memHits,
		PromptChars: utf8.RuneCountInString(prompt),
	}, nil
}

func kbSources(hits []kb.Candidate) []promptctx.Source {
	out := make([]promptctx.Source, len(hits))
	for i, h := range hits {
		out[i] = promptctx.Source{Content: h.Content, Meta: h.Meta}
	}
	return out
}

func memSources(hits []memory.Scored) []promptctx.Source {
	out := make([]promptctx.Source, len(hits))
	for i, h := range hits {
		out[i] = promptctx.Source{Content: h.Content, Meta: h.Meta}
	}
	return out
}
