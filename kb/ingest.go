package kb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vakeel-labs/vakeel/embedder"
	"github.com/vakeel-labs/vakeel/normalizer"
	"github.com/vakeel-labs/vakeel/registry"
	"github.com/vakeel-labs/vakeel/vecstore"
)

// sectionRecord is one line of a processed statute JSONL file.
type sectionRecord struct {
	Act           string `json:"act"`
	SectionNumber string `json:"section_number"`
	SectionTitle  string `json:"section_title"`
	Content       string `json:"content"`
	Text          string `json:"text"`
}

// Stats summarizes one ingestion run.
type Stats struct {
	Scanned int // chunks produced from source documents
	Skipped int // chunks already registered (or repeated within the run)
	Indexed int // chunks newly written to the index
}

// Ingestor walks the processed statute files and manual notes, chunks them,
// and indexes everything not yet covered by the state registry. Running it
// repeatedly over unchanged sources is a no-op.
//
// The registry is only persisted after every index write has succeeded, so
// it never claims coverage the index lacks. It is built for a single
// ingestion process at a time: Save replaces the whole persisted state.
type Ingestor struct {
	idx          vecstore.Index
	emb          embedder.Embedder
	reg          *registry.Registry
	chunker      *normalizer.Chunker
	processedDir string
	notesDir     string
	now          func() time.Time
}

// NewIngestor wires an ingestion pipeline. notesDir may be empty if there
// are no manual notes.
func NewIngestor(idx vecstore.Index, emb embedder.Embedder, reg *registry.Registry, chunker *normalizer.Chunker, processedDir, notesDir string) *Ingestor {
	return &Ingestor{
		idx:          idx,
		emb:          emb,
		reg:          reg,
		chunker:      chunker,
		processedDir: processedDir,
		notesDir:     notesDir,
		now:          time.Now,
	}
}

type chunkDoc struct {
	text string
	meta map[string]string
}

// Run performs one incremental ingestion pass.
func (ing *Ingestor) Run(ctx context.Context) (*Stats, error) {
	docs, err := ing.collect()
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	addedAt := ing.now().UTC().Format(time.RFC3339)

	var recs []vecstore.Record
	pending := make(map[string]map[string]string)

	for _, doc := range docs {
		stats.Scanned++

		fp := normalizer.Fingerprint(doc.text)
		if ing.reg.Has(fp) || pending[fp] != nil {
			stats.Skipped++
			continue
		}

		vec, err := ing.emb.Embed(ctx, doc.text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk: %w", err)
		}

		meta := make(map[string]string, len(doc.meta)+2)
		for k, v := range doc.meta {
			meta[k] = v
		}
		meta["chunk_sha"] = fp
		meta["added_at"] = addedAt

		recs = append(recs, vecstore.Record{
			// Fingerprint-derived ID: stable across runs, unique per content.
			ID:        "sha:" + fp[:32],
			Content:   doc.text,
			Embedding: vec,
			Metadata:  meta,
		})
		pending[fp] = doc.meta
	}

	if len(recs) == 0 {
		log.Printf("[INGEST] No new or changed chunks, index is up to date (%d scanned)", stats.Scanned)
		return stats, nil
	}

	log.Printf("[INGEST] Indexing %d new chunks (%d scanned, %d already known)", len(recs), stats.Scanned, stats.Skipped)
	if err := ing.idx.Add(ctx, recs); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	// Register only now that the index writes succeeded.
	for fp, meta := range pending {
		ing.reg.Add(fp, meta)
	}
	if err := ing.reg.Save(); err != nil {
		return nil, fmt.Errorf("save state registry: %w", err)
	}

	stats.Indexed = len(recs)
	return stats, nil
}

// collect yields normalized, chunked documents from the statute JSONL files
// and the manual notes directory, in deterministic order.
func (ing *Ingestor) collect() ([]chunkDoc, error) {
	var docs []chunkDoc

	files, err := filepath.Glob(filepath.Join(ing.processedDir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("list processed files: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		fileDocs, err := ing.collectJSONL(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}

	if ing.notesDir != "" {
		noteDocs, err := ing.collectNotes()
		if err != nil {
			return nil, err
		}
		docs = append(docs, noteDocs...)
	}

	return docs, nil
}

func (ing *Ingestor) collectJSONL(path string) ([]chunkDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var docs []chunkDoc
	base := filepath.Base(path)
	fallbackAct := strings.TrimSuffix(base, ".jsonl")

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec sectionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", base, line, err)
		}

		content := rec.Content
		if content == "" {
			content = rec.Text
		}
		content = normalizer.Clean(content)
		if content == "" {
			continue
		}

		act := rec.Act
		if act == "" {
			act = fallbackAct
		}

		docs = append(docs, ing.chunk(content, map[string]string{
			"act":            act,
			"section_number": strings.TrimSpace(rec.SectionNumber),
			"section_title":  strings.TrimSpace(rec.SectionTitle),
			"source_file":    base,
		})...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", base, err)
	}
	return docs, nil
}

// collectNotes ingests manual markdown notes as "Procedural Guide" entries,
// titled after the file name.
func (ing *Ingestor) collectNotes() ([]chunkDoc, error) {
	paths, err := filepath.Glob(filepath.Join(ing.notesDir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	sort.Strings(paths)

	var docs []chunkDoc
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read note %s: %w", path, err)
		}
		content := normalizer.Clean(string(raw))
		if content == "" {
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(path), ".md")
		docs = append(docs, ing.chunk(content, map[string]string{
			"act":            "Procedural Guide",
			"section_number": "",
			"section_title":  titleCase(strings.ReplaceAll(stem, "_", " ")),
			"source_file":    filepath.Base(path),
		})...)
	}
	return docs, nil
}

// chunk sub-chunks long content and stamps each piece with its position.
func (ing *Ingestor) chunk(content string, meta map[string]string) []chunkDoc {
	pieces := ing.chunker.Split(content)
	docs := make([]chunkDoc, 0, len(pieces))
	for i, piece := range pieces {
		m := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			m[k] = v
		}
		m["sub_index"] = fmt.Sprintf("%d", i)
		docs = append(docs, chunkDoc{text: piece, meta: m})
	}
	return docs
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
