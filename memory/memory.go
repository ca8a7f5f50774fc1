// Package memory stores conversational history per user and retrieves it
// ranked by a composite of semantic similarity, recency, speaker role, and
// session continuity.
//
// Records are immutable once written: every user query and every generated
// answer becomes one record, and records only ever leave the store through
// user-initiated erasure or age-based pruning.
package memory

import (
	"fmt"
	"time"
)

// Speaker roles. Unknown roles are tolerated on read and scored with
// Config.DefaultRoleScore.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Scores is the per-signal breakdown behind a candidate's ranking.
//
// Sim is 1 - cosine distance and may be negative; the other signals sit in
// [0,1] bands. Final is their weighted blend and is NOT a probability — the
// weights are not required to sum to 1, only relative order matters.
type Scores struct {
	Sim     float64
	Recency float64
	Role    float64
	Session float64
	Final   float64
}

// Scored is one retrieved memory candidate. It lives only for the duration
// of a single answer-generation call.
type Scored struct {
	ID      string
	Content string
	Meta    map[string]string
	Scores  Scores
}

// SessionInfo summarizes one conversation session of a user.
type SessionInfo struct {
	SessionID  string
	Count      int
	LastActive string
}

// Config holds the scoring knobs. All weights must be non-negative;
// negative weights would invert the "prioritize" semantics of each signal.
type Config struct {
	// Blend weights for the composite score.
	// Defaults: 0.55 / 0.20 / 0.15 / 0.10.
	SimWeight     float64
	RecencyWeight float64
	RoleWeight    float64
	SessionWeight float64

	// RecencyHalfLife is the age at which the recency signal halves.
	// Non-positive values disable decay (every record scores a neutral
	// 0.5). Default: 72h.
	RecencyHalfLife time.Duration

	// RoleScores maps speaker roles to fixed scores; assistant messages
	// rank slightly above user messages because prior answers are already
	// condensed, validated context. Roles not in the map score
	// DefaultRoleScore. Defaults: assistant 1.0, user 0.9, other 0.8.
	RoleScores       map[string]float64
	DefaultRoleScore float64

	// Session continuity bonuses: a candidate from the current session
	// gets SameSessionBonus, anything else OtherSessionBonus.
	// Defaults: 1.0 / 0.6.
	SameSessionBonus  float64
	OtherSessionBonus float64

	// Candidates is the retrieval pool size for SearchRelevant when the
	// caller does not specify one. Default: 12.
	Candidates int
}

// DefaultConfig returns the documented default scoring configuration.
func DefaultConfig() *Config {
	return &Config{
		SimWeight:       0.55,
		RecencyWeight:   0.20,
		RoleWeight:      0.15,
		SessionWeight:   0.10,
		RecencyHalfLife: 72 * time.Hour,
		RoleScores: map[string]float64{
			RoleAssistant: 1.0,
			RoleUser:      0.9,
		},
		DefaultRoleScore:  0.8,
		SameSessionBonus:  1.0,
		OtherSessionBonus: 0.6,
		Candidates:        12,
	}
}

func (c *Config) validate() error {
	if c.SimWeight < 0 || c.RecencyWeight < 0 || c.RoleWeight < 0 || c.SessionWeight < 0 {
		return fmt.Errorf("memory scoring weights must be non-negative")
	}
	if c.Candidates <= 0 {
		return fmt.Errorf("memory candidate pool must be positive, got %d", c.Candidates)
	}
	return nil
}
