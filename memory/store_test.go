package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vakeel-labs/vakeel/vecstore"
)

// fakeIndex mirrors the vector service contract in memory, with exact
// cosine distance so tests can dictate similarity via the embeddings.
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
	err      error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fixedEmbedder) Dimensions() int { return len(f.fallback) }

func newTestStore(t *testing.T, idx vecstore.Index, emb *fixedEmbedder) *Store {
	t.Helper()
	s, err := NewStore(idx, emb, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// advanceClock replaces the store clock with one that steps forward on
// every call, giving each write a distinct, increasing timestamp.
func advanceClock(s *Store, start time.Time, step time.Duration) {
	current := start
	s.now = func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestSaveMessageRecord(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})

	id, err := s.SaveMessage(ctx, "u1", "sess1", RoleUser, "what is section 420?")
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if id == "" {
		t.Error("SaveMessage returned empty id")
	}
	if len(idx.recs) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(idx.recs))
	}

	meta := idx.recs[0].Metadata
	if meta["user_id"] != "u1" || meta["session_id"] != "sess1" || meta["role"] != RoleUser {
		t.Errorf("record metadata wrong: %v", meta)
	}
	if _, err := time.Parse(time.RFC3339, meta["timestamp"]); err != nil {
		t.Errorf("timestamp %q does not parse: %v", meta["timestamp"], err)
	}
}

func TestTimestampsNonDecreasing(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})

	for i := 0; i < 5; i++ {
		if _, err := s.SaveMessage(ctx, "u1", "sess1", RoleUser, "message"); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < len(idx.recs); i++ {
		if idx.recs[i].Metadata["timestamp"] < idx.recs[i-1].Metadata["timestamp"] {
			t.Errorf("timestamps went backwards at write %d", i)
		}
	}
}

func TestUserIsolation(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	emb := &fixedEmbedder{fallback: []float32{1, 0}}
	s := newTestStore(t, idx, emb)

	if _, err := s.SaveMessage(ctx, "alice", "s1", RoleUser, "my landlord refuses repairs"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "bob", "s2", RoleUser, "my landlord refuses repairs"); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchRelevant(ctx, "alice", "s1", "landlord repairs", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits for alice, want exactly her 1 record", len(hits))
	}
	if hits[0].Meta["user_id"] != "alice" {
		t.Errorf("leaked a record owned by %q", hits[0].Meta["user_id"])
	}
}

func TestFreshUserEmptyNotError(t *testing.T) {
	s := newTestStore(t, &fakeIndex{}, &fixedEmbedder{fallback: []float32{1, 0}})
	hits, err := s.SearchRelevant(context.Background(), "nobody", "s", "any query", 10)
	if err != nil {
		t.Fatalf("fresh user must not be an error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected empty result, got %d", len(hits))
	}
}

func TestSameSessionRanksAboveOtherSession(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	emb := &fixedEmbedder{fallback: []float32{1, 0}}
	s := newTestStore(t, idx, emb)
	advanceClock(s, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), 0)

	// Identical content and age; only the session differs.
	if _, err := s.SaveMessage(ctx, "u1", "other", RoleUser, "bail procedure"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "u1", "current", RoleUser, "bail procedure"); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchRelevant(ctx, "u1", "current", "bail", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Meta["session_id"] != "current" {
		t.Errorf("same-session record should rank first, got session %q", hits[0].Meta["session_id"])
	}
	if hits[0].Scores.Session <= hits[1].Scores.Session {
		t.Errorf("session signal not reflected in breakdown: %+v vs %+v", hits[0].Scores, hits[1].Scores)
	}
}

func TestAssistantRanksAboveUserAllElseEqual(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})
	advanceClock(s, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), 0)

	if _, err := s.SaveMessage(ctx, "u1", "s1", RoleUser, "identical words"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveMessage(ctx, "u1", "s1", RoleAssistant, "identical words"); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchRelevant(ctx, "u1", "s1", "identical words", 10)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Meta["role"] != RoleAssistant {
		t.Errorf("assistant record should rank first, got %q", hits[0].Meta["role"])
	}
}

func TestTrimKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})
	advanceClock(s, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), time.Minute)

	contents := []string{"first", "second", "third", "fourth", "fifth"}
	for _, c := range contents {
		if _, err := s.SaveMessage(ctx, "u1", "s1", RoleUser, c); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.TrimUser(ctx, "u1", 3); err != nil {
		t.Fatalf("TrimUser failed: %v", err)
	}

	left, err := s.idx.List(ctx, map[string]string{"user_id": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 3 {
		t.Fatalf("kept %d records, want 3", len(left))
	}
	want := map[string]bool{"third": true, "fourth": true, "fifth": true}
	for _, rec := range left {
		if !want[rec.Content] {
			t.Errorf("trim kept %q instead of a most-recent record", rec.Content)
		}
	}
}

// RFC3339Nano drops trailing fractional zeros, so a whole-second stamp
// compares lexicographically after a later fractional stamp in the same
// second. Ordering must come from parsed times, not raw strings.
func TestTrimOrdersParsedTimesNotStrings(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})

	stamps := []struct{ id, ts string }{
		{"older", "2026-08-28T10:00:00Z"},
		{"newer", "2026-08-28T10:00:00.5Z"},
	}
	for _, rec := range stamps {
		err := idx.Add(ctx, []vecstore.Record{{
			ID:        rec.id,
			Content:   rec.id,
			Embedding: []float32{1, 0},
			Metadata: map[string]string{
				"user_id": "u1", "session_id": "s1", "role": RoleUser, "timestamp": rec.ts,
			},
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := s.TrimUser(ctx, "u1", 1); err != nil {
		t.Fatal(err)
	}

	left, err := idx.List(ctx, map[string]string{"user_id": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Fatalf("kept %d records, want 1", len(left))
	}
	if left[0].ID != "newer" {
		t.Errorf("trim kept %q; the fractional-second stamp is the more recent record", left[0].ID)
	}
}

func TestTrimUnderCapIsNoop(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})

	if _, err := s.SaveMessage(ctx, "u1", "s1", RoleUser, "only one"); err != nil {
		t.Fatal(err)
	}
	if err := s.TrimUser(ctx, "u1", 3); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Errorf("no-op trim changed record count to %d", idx.Count())
	}
}

func TestDeleteUserComplete(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})

	for i := 0; i < 3; i++ {
		if _, err := s.SaveMessage(ctx, "u1", "s1", RoleUser, "to erase"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.SaveMessage(ctx, "u2", "s2", RoleUser, "to keep"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	hits, err := s.SearchRelevant(ctx, "u1", "s1", "to erase", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("search after deletion returned %d records", len(hits))
	}
	if idx.Count() != 1 {
		t.Errorf("deletion touched another user's records: %d left, want 1", idx.Count())
	}

	// Deleting a user with no records is a no-op, not an error.
	if err := s.DeleteUser(ctx, "ghost"); err != nil {
		t.Errorf("DeleteUser on unknown user: %v", err)
	}
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})
	advanceClock(s, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := s.SaveMessage(ctx, "u1", "old", RoleUser, "m"); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := s.SaveMessage(ctx, "u1", "new", RoleUser, "m"); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := s.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].SessionID != "new" || sessions[0].Count != 3 {
		t.Errorf("most recent session first: got %+v", sessions[0])
	}
	if sessions[1].SessionID != "old" || sessions[1].Count != 2 {
		t.Errorf("older session second: got %+v", sessions[1])
	}
}

func TestListSessionsOrdersParsedTimesNotStrings(t *testing.T) {
	ctx := context.Background()
	idx := &fakeIndex{}
	s := newTestStore(t, idx, &fixedEmbedder{fallback: []float32{1, 0}})

	// "….5Z" sorts before "…Z" as a string but is the later instant.
	stamps := []struct{ session, ts string }{
		{"newer", "2026-08-28T10:00:00.5Z"},
		{"older", "2026-08-28T10:00:00Z"},
	}
	for _, rec := range stamps {
		err := idx.Add(ctx, []vecstore.Record{{
			ID:        rec.session,
			Content:   "m",
			Embedding: []float32{1, 0},
			Metadata: map[string]string{
				"user_id": "u1", "session_id": rec.session, "role": RoleUser, "timestamp": rec.ts,
			},
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := s.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].SessionID != "newer" {
		t.Errorf("first session = %q, want the fractional-second (later) one", sessions[0].SessionID)
	}
}

func TestEmbeddingFaultPropagates(t *testing.T) {
	ctx := context.Background()
	fault := errors.New("embedding service down")
	s := newTestStore(t, &fakeIndex{}, &fixedEmbedder{fallback: []float32{1, 0}, err: fault})

	if _, err := s.SaveMessage(ctx, "u1", "s1", RoleUser, "msg"); !errors.Is(err, fault) {
		t.Errorf("SaveMessage error = %v, want wrapped fault", err)
	}
	if _, err := s.SearchRelevant(ctx, "u1", "s1", "q", 5); !errors.Is(err, fault) {
		t.Errorf("SearchRelevant error = %v, want wrapped fault", err)
	}
}
