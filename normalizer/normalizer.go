// Package normalizer cleans raw statute text and splits it into bounded,
// overlapping chunks suitable for embedding and indexing.
//
// All functions are pure: identical input always yields identical output,
// which keeps chunk fingerprints stable across ingestion runs.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBadChunking indicates invalid chunking parameters. This is a
// configuration fault and should abort startup, not be retried.
var ErrBadChunking = errors.New("chunk overlap must be smaller than max chunk size")

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes raw extracted text: strips null bytes, collapses runs of
// horizontal whitespace to a single space, collapses three or more
// consecutive newlines to exactly two, and trims surrounding whitespace.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = horizontalWS.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Fingerprint returns the hex SHA-256 digest of the UTF-8 bytes of s.
// Identical text always produces the same fingerprint, so it serves as the
// dedup key and stable identifier for indexed chunks.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Chunker splits text into a sliding window of overlapping chunks.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker validates the window parameters. Overlap must be strictly
// smaller than maxChars or the window would never advance.
func NewChunker(maxChars, overlap int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d: %w", maxChars, ErrBadChunking)
	}
	if overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("overlap %d with max chunk size %d: %w", overlap, maxChars, ErrBadChunking)
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// Split cuts text into chunks of at most maxChars characters, each window
// starting maxChars-overlap characters after the previous one. Text that
// already fits is returned as a single chunk. Sizes are measured in runes so
// multi-byte scripts are not cut mid-character.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.maxChars {
		return []string{text}
	}

	step := c.maxChars - c.overlap
	var chunks []string
	for i := 0; ; i += step {
		end := i + c.maxChars
		if end >= len(runes) {
			// Final window reaches the end of the text; anything past it
			// would be fully contained in the overlap already emitted.
			chunks = append(chunks, string(runes[i:]))
			return chunks
		}
		chunks = append(chunks, string(runes[i:end]))
	}
}
