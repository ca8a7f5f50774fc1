package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vakeel-labs/vakeel/embedder"
	"github.com/vakeel-labs/vakeel/vecstore"
)

// Store owns the conversational memory index. No other component writes to
// it. Reads and writes for different users need no coordination (every
// query carries a hard user filter); writes for the same user are
// serialized so timestamps within a session are non-decreasing.
type Store struct {
	idx vecstore.Index
	emb embedder.Embedder
	cfg *Config
	now func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewStore validates cfg (nil means defaults) and wires the store.
func NewStore(idx vecstore.Index, emb embedder.Embedder, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Store{
		idx:       idx,
		emb:       emb,
		cfg:       cfg,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// SaveMessage embeds content and writes one immutable record stamped with
// the current UTC time. It returns the new record's id. Embedding and
// storage faults propagate to the caller; there are no silent retries here —
// retry policy belongs to the caller.
func (s *Store) SaveMessage(ctx context.Context, userID, sessionID, role, content string) (string, error) {
	vec, err := s.emb.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed message: %w", err)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	id := uuid.New().String()
	rec := vecstore.Record{
		ID:        id,
		Content:   content,
		Embedding: vec,
		Metadata: map[string]string{
			"user_id":    userID,
			"session_id": sessionID,
			"role":       role,
			// Nanosecond precision keeps rapid writes within a session
			// ordered; RFC 3339 so the registry stays human-readable.
			"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := s.idx.Add(ctx, []vecstore.Record{rec}); err != nil {
		return "", fmt.Errorf("store message: %w", err)
	}
	return id, nil
}

// SearchRelevant returns up to nCandidates records of the given user,
// ranked by the composite score. Other users' records are never considered.
// A fresh user simply gets an empty result.
func (s *Store) SearchRelevant(ctx context.Context, userID, sessionID, query string, nCandidates int) ([]Scored, error) {
	if nCandidates <= 0 {
		nCandidates = s.cfg.Candidates
	}

	qEmb, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.idx.Query(ctx, qEmb, nCandidates, map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	now := s.now()
	scored := make([]Scored, 0, len(hits))
	for _, h := range hits {
		sim := 1 - float64(h.Distance)
		scored = append(scored, Scored{
			ID:      h.ID,
			Content: h.Content,
			Meta:    h.Metadata,
			Scores: s.cfg.score(
				sim,
				s.cfg.recencyScore(h.Metadata["timestamp"], now),
				s.cfg.roleScore(h.Metadata["role"]),
				s.cfg.sessionBonus(h.Metadata["session_id"], sessionID),
			),
		})
	}

	// Stable: ties keep their retrieval (similarity) order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Scores.Final > scored[j].Scores.Final
	})
	return scored, nil
}

// DeleteUser irrevocably removes every record of a user, for erasure
// requests. Deleting a user with no records is a no-op.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.idx.Delete(ctx, map[string]string{"user_id": userID}); err != nil {
		return fmt.Errorf("delete user memory: %w", err)
	}
	log.Printf("[MEMORY] Erased all records for user %s", userID)
	return nil
}

// TrimUser keeps only the keepLast most recent records of a user, dropping
// the oldest first. A user at or under the cap is left untouched.
func (s *Store) TrimUser(ctx context.Context, userID string, keepLast int) error {
	if keepLast < 0 {
		keepLast = 0
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	recs, err := s.idx.List(ctx, map[string]string{"user_id": userID})
	if err != nil {
		return fmt.Errorf("list user memory: %w", err)
	}
	if len(recs) <= keepLast {
		return nil
	}

	// Compare parsed times, not the raw strings: RFC3339Nano drops trailing
	// fractional zeros, so whole-second stamps would sort after fractional
	// ones within the same second.
	sort.SliceStable(recs, func(i, j int) bool {
		return parseStamp(recs[i].Metadata["timestamp"]).Before(parseStamp(recs[j].Metadata["timestamp"]))
	})

	drop := make([]string, 0, len(recs)-keepLast)
	for _, rec := range recs[:len(recs)-keepLast] {
		drop = append(drop, rec.ID)
	}
	if err := s.idx.Delete(ctx, nil, drop...); err != nil {
		return fmt.Errorf("trim user memory: %w", err)
	}
	log.Printf("[MEMORY] Trimmed %d records for user %s (kept %d)", len(drop), userID, keepLast)
	return nil
}

// ListSessions returns the user's sessions, newest activity first, with the
// number of stored messages in each.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	recs, err := s.idx.List(ctx, map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list user memory: %w", err)
	}

	byID := make(map[string]*SessionInfo)
	latest := make(map[string]time.Time)
	for _, rec := range recs {
		sid := rec.Metadata["session_id"]
		info, ok := byID[sid]
		if !ok {
			info = &SessionInfo{SessionID: sid}
			byID[sid] = info
		}
		info.Count++
		if t := parseStamp(rec.Metadata["timestamp"]); t.After(latest[sid]) {
			latest[sid] = t
			info.LastActive = rec.Metadata["timestamp"]
		}
	}

	out := make([]SessionInfo, 0, len(byID))
	for _, info := range byID {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		return latest[out[i].SessionID].After(latest[out[j].SessionID])
	})
	return out, nil
}

// parseStamp parses a record timestamp for ordering. Unparsable stamps get
// the zero time, which sorts them as oldest.
func parseStamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
