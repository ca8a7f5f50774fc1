// Package promptctx assembles retrieved knowledge-base chunks and memory
// records into a bounded, deterministic prompt.
//
// Everything here is pure: the same inputs always render the same bytes,
// which makes prompts cacheable and the packing logic trivially testable.
package promptctx

import (
	"fmt"
	"strings"
)

// BlockType tags where a context block came from.
type BlockType string

const (
	BlockKB     BlockType = "kb"
	BlockMemory BlockType = "memory"
)

// Source is one retrieval hit offered to the builder. Callers pass KB hits
// and memory hits already ranked by their respective stores.
type Source struct {
	Content string
	Meta    map[string]string
}

// Block is one unit of assembled prompt material. Content may be a
// truncated prefix of the source when the budget ran out.
type Block struct {
	Type    BlockType
	Content string
	Meta    map[string]string
}

// BuildBlocks selects the first kbTop KB hits and the first memTop memory
// hits, places all KB blocks before all memory blocks (the statute text is
// authoritative, memory is personalization — fixed priority, never merged
// by score across sources), and enforces budgetChars greedily: blocks are
// taken whole while they fit; the first block that overflows is truncated
// to exactly the remaining budget and nothing after it is included.
//
// The sum of the returned blocks' lengths never exceeds budgetChars.
func BuildBlocks(kbHits, memHits []Source, kbTop, memTop, budgetChars int) []Block {
	if kbTop > len(kbHits) {
		kbTop = len(kbHits)
	}
	if memTop > len(memHits) {
		memTop = len(memHits)
	}
	if kbTop < 0 {
		kbTop = 0
	}
	if memTop < 0 {
		memTop = 0
	}

	blocks := make([]Block, 0, kbTop+memTop)
	for _, h := range kbHits[:kbTop] {
		blocks = append(blocks, Block{Type: BlockKB, Content: h.Content, Meta: h.Meta})
	}
	for _, h := range memHits[:memTop] {
		blocks = append(blocks, Block{Type: BlockMemory, Content: h.Content, Meta: h.Meta})
	}

	return clipToBudget(blocks, budgetChars)
}

// clipToBudget is a greedy, order-preserving, single-pass allocator — not
// an optimal packing. Sizes are in runes to match the chunker.
func clipToBudget(blocks []Block, budget int) []Block {
	total := 0
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		runes := []rune(b.Content)
		if total+len(runes) <= budget {
			out = append(out, b)
			total += len(runes)
			continue
		}
		if remaining := budget - total; remaining > 0 {
			out = append(out, Block{Type: b.Type, Content: string(runes[:remaining]), Meta: b.Meta})
		}
		break
	}
	return out
}

const promptHeader = "You are a helpful legal assistant specialized in Indian law.\n" +
	"Use ONLY the provided context blocks (laws + prior conversation) to answer.\n" +
	"If the answer is not present in the context, say you cannot answer based on the given sources.\n" +
	"Cite Act name and section/article when possible.\n\n"

const promptRules = "\nResponse rules:\n" +
	"1) Be concise and accurate.\n" +
	"2) Quote section/article numbers where relevant.\n" +
	"3) If unsure, say so and suggest contacting the appropriate Legal Services Authority.\n" +
	"4) Include a brief list of which [KB x] blocks you used.\n"

// Render composes the final prompt: fixed header, the blocks in the order
// received, the user's question, and fixed response rules. One continuous
// 1-based counter runs across all blocks regardless of type, so with two KB
// blocks the first memory block is labelled [MEM 3]. Block order matters —
// labels feed citation numbering.
func Render(query string, blocks []Block) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)

	for i, b := range blocks {
		switch b.Type {
		case BlockKB:
			title := strings.TrimSpace(fmt.Sprintf("%s §%s %s",
				metaOr(b.Meta, "act", "Law"), b.Meta["section_number"], b.Meta["section_title"]))
			fmt.Fprintf(&sb, "[KB %d] %s\n%s\n\n", i+1, title, b.Content)
		default:
			fmt.Fprintf(&sb, "[MEM %d] (%s) %s\n\n", i+1, metaOr(b.Meta, "role", "user"), b.Content)
		}
	}

	fmt.Fprintf(&sb, "\nUser question: %s\n", query)
	sb.WriteString(promptRules)
	return sb.String()
}

func metaOr(meta map[string]string, key, fallback string) string {
	if v := meta[key]; v != "" {
		return v
	}
	return fallback
}
