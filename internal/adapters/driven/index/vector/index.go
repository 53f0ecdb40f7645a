// Package vector provides a brute-force in-memory vector index with
// cosine similarity. It is rebuilt from the durable store on startup.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	id       string
	sourceID string
	vec      []float32
	norm     float64
	seq      int
}

// Index holds passage embeddings and answers nearest-neighbour queries by
// exhaustive scan. Adequate for collections up to the tens of thousands of
// passages this system targets.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq int
	dims    int // set by the first insert, reset when the index empties
}

// New creates an empty vector index.
func New() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// Index adds or replaces a passage embedding. Replacing keeps the original
// insertion position so repeated indexing does not reshuffle tie-breaks.
func (idx *Index) Index(_ context.Context, p domain.Passage) error {
	if len(p.Embedding) == 0 {
		return fmt.Errorf("passage %s has no embedding: %w", p.ID, domain.ErrInvalidInput)
	}

	vec := make([]float32, len(p.Embedding))
	copy(vec, p.Embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// All entries must share one dimension; a mismatch means the embedding
	// came from a different model than the rest of the index.
	if idx.dims == 0 {
		idx.dims = len(vec)
	} else if len(vec) != idx.dims {
		return fmt.Errorf("passage %s embedding has %d dimensions, index has %d: %w",
			p.ID, len(vec), idx.dims, domain.ErrInvalidInput)
	}

	seq := idx.nextSeq
	if old, ok := idx.entries[p.ID]; ok {
		seq = old.seq
	} else {
		idx.nextSeq++
	}
	idx.entries[p.ID] = &entry{
		id:       p.ID,
		sourceID: p.SourceID,
		vec:      vec,
		norm:     l2norm(vec),
		seq:      seq,
	}
	return nil
}

// Search returns the k most similar passages by cosine similarity, best
// first. Ties break by insertion order.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	qnorm := l2norm(query)
	if qnorm == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return nil, nil
	}
	// A query of the wrong dimension cannot match anything; failing loudly
	// lets the caller degrade instead of serving silent misses.
	if len(query) != idx.dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), idx.dims, domain.ErrInvalidInput)
	}

	type scored struct {
		hit driven.VectorHit
		seq int
	}
	candidates := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		if e.norm == 0 {
			continue
		}
		sim := dot(query, e.vec) / (qnorm * e.norm)
		candidates = append(candidates, scored{
			hit: driven.VectorHit{PassageID: e.id, Similarity: sim},
			seq: e.seq,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Similarity != candidates[j].hit.Similarity {
			return candidates[i].hit.Similarity > candidates[j].hit.Similarity
		}
		return candidates[i].seq < candidates[j].seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]driven.VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits, nil
}

// DeleteSource drops all embeddings belonging to a document.
func (idx *Index) DeleteSource(_ context.Context, sourceID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, e := range idx.entries {
		if e.sourceID == sourceID {
			delete(idx.entries, id)
		}
	}
	if len(idx.entries) == 0 {
		idx.dims = 0
	}
	return nil
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func l2norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
