package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/vakeel-labs/vakeel/kb"
	"github.com/vakeel-labs/vakeel/memory"
	"github.com/vakeel-labs/vakeel/vecstore"
)

type fakeIndex struct {
	recs []vecstore.Record
}

func (f *fakeIndex) Add(ctx context.Context, recs []vecstore.Record) error {
	f.recs = append(f.recs, recs...)
	return nil
}

func metaMatches(meta, where map[string]string) bool {
	for k, v := range where {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func cosDist(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func (f *fakeIndex) Query(ctx context.Context, embedding []float32, n int, where map[string]string) ([]vecstore.Result, error) {
	var out []vecstore.Result
	for _, rec := range f.recs {
		if !metaMatches(rec.Metadata, where) {
			continue
		}
		out = append(out, vecstore.Result{
			ID:       rec.ID,
			Content:  rec.Content,
			Metadata: rec.Metadata,
			Distance: cosDist(embedding, rec.Embedding),
		})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Distance < out[j-1].Distance; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeIndex) List(ctx context.Context, where map[string]string) ([]vecstore.Result, error) {
	var out []vecstore.Result
	for _, rec := range f.recs {
		if metaMatches(rec.Metadata, where) {
			out = append(out, vecstore.Result{ID: rec.ID, Content: rec.Content, Metadata: rec.Metadata})
		}
	}
	return out, nil
}

func (f *fakeIndex) Delete(ctx context.Context, where map[string]string, ids ...string) error {
	keep := f.recs[:0]
	for _, rec := range f.recs {
		drop := false
		if len(ids) > 0 {
			for _, id := range ids {
				if rec.ID == id {
					drop = true
				}
			}
		} else if metaMatches(rec.Metadata, where) {
			drop = true
		}
		if !drop {
			keep = append(keep, rec)
		}
	}
	f.recs = keep
	return nil
}

func (f *fakeIndex) Count() int { return len(f.recs) }

type fixedEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fixedEmbedder) Dimensions() int { return len(f.fallback) }

type fakeGenerator struct {
	answer string
	err    error

	calls   int
	prompts []string
}

func (g *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *fakeGenerator) Name() string { return "fake" }

func unit(i, dims int) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	return v
}

// newTestEngine builds an engine over one KB chunk that matches the query
// exactly and an empty memory store.
func newTestEngine(t *testing.T, gen *fakeGenerator, opts ...Option) (*Engine, *fakeIndex) {
	t.Helper()

	emb := &fixedEmbedder{
		vectors: map[string][]float32{
			"what is theft": unit(0, 8),
			"theft chunk":   unit(0, 8),
		},
		fallback: unit(7, 8),
	}

	kbIdx := &fakeIndex{}
	err := kbIdx.Add(context.Background(), []vecstore.Record{{
		ID:        "sha:abc",
		Content:   "theft chunk",
		Embedding: unit(0, 8),
		Metadata:  map[string]string{"act": "Indian Penal Code", "section_number": "378", "section_title": "Theft"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	memIdx := &fakeIndex{}
	store, err := memory.NewStore(memIdx, emb, nil)
	if err != nil {
		t.Fatal(err)
	}

	retr := kb.NewRetriever(kbIdx, emb, 5)
	return New(retr, store, gen, opts...), memIdx
}

func TestAnswerPersistsBothTurns(t *testing.T) {
	gen := &fakeGenerator{answer: "Theft is covered by IPC section 378."}
	eng, memIdx := newTestEngine(t, gen)

	res, err := eng.Answer(context.Background(), "u1", "s1", "what is theft")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer != gen.answer {
		t.Errorf("answer = %q", res.Answer)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}

	recs, err := memIdx.List(context.Background(), map[string]string{"user_id": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("persisted %d turns, want 2", len(recs))
	}
	roles := map[string]bool{}
	for _, r := range recs {
		roles[r.Metadata["role"]] = true
		if r.Metadata["session_id"] != "s1" {
			t.Errorf("session_id = %q", r.Metadata["session_id"])
		}
	}
	if !roles[memory.RoleUser] || !roles[memory.RoleAssistant] {
		t.Errorf("persisted roles %v, want user and assistant", roles)
	}
}

func TestAnswerGenerationFailureWritesNothing(t *testing.T) {
	wantErr := errors.New("api down")
	gen := &fakeGenerator{err: wantErr}
	eng, memIdx := newTestEngine(t, gen)

	_, err := eng.Answer(context.Background(), "u1", "s1", "what is theft")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
	if memIdx.Count() != 0 {
		t.Errorf("memory holds %d records after failed generation, want 0", memIdx.Count())
	}
}

func TestAnswerPromptContainsRetrievedChunk(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	eng, _ := newTestEngine(t, gen)

	res, err := eng.Answer(context.Background(), "u1", "s1", "what is theft")
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("captured %d prompts", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"[KB 1] Indian Penal Code §378 Theft", "theft chunk", "User question: what is theft"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if len(res.KBHits) != 1 {
		t.Errorf("KBHits = %d, want 1", len(res.KBHits))
	}
	if res.PromptChars == 0 {
		t.Error("PromptChars not populated")
	}
}

func TestAnswerMemoryHitsCappedAtMemTop(t *testing.T) {
	emb := &fixedEmbedder{
		vectors:  map[string][]float32{"what is theft": unit(0, 8)},
		fallback: unit(0, 8),
	}
	memIdx := &fakeIndex{}
	store, err := memory.NewStore(memIdx, emb, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if _, err := store.SaveMessage(ctx, "u1", "s0", memory.RoleUser, fmt.Sprintf("earlier question %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	gen := &fakeGenerator{answer: "ok"}
	eng := New(kb.NewRetriever(&fakeIndex{}, emb, 5), store, gen, WithMemoryTop(4))

	res, err := eng.Answer(ctx, "u1", "s1", "what is theft")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.MemoryHits) != 4 {
		t.Errorf("MemoryHits = %d, want the mem-top cap of 4", len(res.MemoryHits))
	}
	if strings.Contains(gen.prompts[0], "[MEM 5]") {
		t.Error("prompt carries more memory blocks than mem-top allows")
	}
}

func TestAnswerBudgetOptionClipsPrompt(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	eng, _ := newTestEngine(t, gen, WithBudget(5))

	if _, err := eng.Answer(context.Background(), "u1", "s1", "what is theft"); err != nil {
		t.Fatal(err)
	}
	// "theft chunk" is 11 runes; a 5-rune budget keeps only its prefix.
	if strings.Contains(gen.prompts[0], "theft chunk") {
		t.Error("prompt carries the full chunk despite the budget")
	}
	if !strings.Contains(gen.prompts[0], "theft") {
		t.Error("prompt lost the truncated chunk prefix")
	}
}
