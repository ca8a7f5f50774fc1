package memory

import (
	"math"
	"time"
)

// neutralScore is used when a signal cannot be computed (unparsable
// timestamp, disabled decay). A bad record should rank average, not sink
// the whole search.
const neutralScore = 0.5

// recencyScore maps a record's age onto (0,1] with exponential half-life
// decay: 1 when fresh, halving every RecencyHalfLife.
func (c *Config) recencyScore(timestamp string, now time.Time) float64 {
	if c.RecencyHalfLife <= 0 {
		return neutralScore
	}
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return neutralScore
	}
	ageHours := now.UTC().Sub(t.UTC()).Hours()
	decay := math.Pow(0.5, ageHours/c.RecencyHalfLife.Hours())
	return clamp01(decay)
}

// roleScore looks up the fixed score for a speaker role.
func (c *Config) roleScore(role string) float64 {
	if s, ok := c.RoleScores[role]; ok {
		return s
	}
	return c.DefaultRoleScore
}

// sessionBonus rewards continuity with the current session while still
// allowing discounted cross-session recall.
func (c *Config) sessionBonus(recordSession, currentSession string) float64 {
	if recordSession == currentSession {
		return c.SameSessionBonus
	}
	return c.OtherSessionBonus
}

// score blends the four signals into the final ranking value.
func (c *Config) score(sim, recency, role, session float64) Scores {
	return Scores{
		Sim:     sim,
		Recency: recency,
		Role:    role,
		Session: session,
		Final: c.SimWeight*sim +
			c.RecencyWeight*recency +
			c.RoleWeight*role +
			c.SessionWeight*session,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
