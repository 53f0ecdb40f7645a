// Package keyword provides an in-memory BM25 keyword index. Postings are
// rebuilt from the durable document store on startup, so the index itself
// needs no persistence.
package keyword

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.KeywordIndex = (*Index)(nil)

// BM25 parameters. k1 controls term-frequency saturation, b controls length
// normalisation.
const (
	k1 = 1.2
	b  = 0.75
)

var tokenPattern = regexp.MustCompile(`\p{L}[\p{L}\p{N}]*`)

type posting struct {
	// tf maps passage id to term frequency.
	tf map[string]int
}

type passageStats struct {
	sourceID string
	length   int
	seq      int
}

// Index is an inverted index with BM25 scoring.
type Index struct {
	mu        sync.RWMutex
	postings  map[string]*posting
	passages  map[string]*passageStats
	totalLen  int
	nextSeq   int
	stopwords map[string]struct{}
}

// New creates an empty keyword index.
func New() *Index {
	return &Index{
		postings:  make(map[string]*posting),
		passages:  make(map[string]*passageStats),
		stopwords: defaultStopwords(),
	}
}

// Index adds or replaces a passage.
func (idx *Index) Index(_ context.Context, p domain.Passage) error {
	terms := idx.tokenize(p.Text)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.passages[p.ID]; ok {
		idx.removeLocked(p.ID, old)
	}

	stats := &passageStats{
		sourceID: p.SourceID,
		length:   len(terms),
		seq:      idx.nextSeq,
	}
	idx.nextSeq++
	idx.passages[p.ID] = stats
	idx.totalLen += stats.length

	for _, term := range terms {
		pl, ok := idx.postings[term]
		if !ok {
			pl = &posting{tf: make(map[string]int)}
			idx.postings[term] = pl
		}
		pl.tf[p.ID]++
	}
	return nil
}

// Search scores passages against the query terms with BM25 and returns up to
// k hits, best first. Ties break by insertion order for determinism.
func (idx *Index) Search(_ context.Context, query string, k int) ([]driven.KeywordHit, error) {
	if k <= 0 {
		return nil, nil
	}
	terms := idx.tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.passages)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(idx.totalLen) / float64(n)

	scores := make(map[string]float64)
	seen := make(map[string]struct{})
	for _, term := range dedupe(terms) {
		pl, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := len(pl.tf)
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for id, tf := range pl.tf {
			stats := idx.passages[id]
			norm := 1 - b + b*float64(stats.length)/avgLen
			scores[id] += idf * float64(tf) * (k1 + 1) / (float64(tf) + k1*norm)
			seen[id] = struct{}{}
		}
	}

	hits := make([]driven.KeywordHit, 0, len(seen))
	for id := range seen {
		if scores[id] <= 0 {
			continue
		}
		hits = append(hits, driven.KeywordHit{PassageID: id, Score: scores[id]})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idx.passages[hits[i].PassageID].seq < idx.passages[hits[j].PassageID].seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteSource drops all postings for a document's passages.
func (idx *Index) DeleteSource(_ context.Context, sourceID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, stats := range idx.passages {
		if stats.sourceID == sourceID {
			idx.removeLocked(id, stats)
		}
	}
	return nil
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

func (idx *Index) removeLocked(id string, stats *passageStats) {
	for term, pl := range idx.postings {
		if _, ok := pl.tf[id]; ok {
			delete(pl.tf, id)
			if len(pl.tf) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	idx.totalLen -= stats.length
	delete(idx.passages, id)
}

func (idx *Index) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := idx.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if",
		"in", "into", "is", "it", "no", "not", "of", "on", "or", "such",
		"that", "the", "their", "then", "there", "these", "they", "this",
		"to", "was", "will", "with",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
