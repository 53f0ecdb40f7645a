package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/core/ports/driving"
	"github.com/tessera-labs/recall/internal/logger"
)

var _ driving.RetrieverService = (*Retriever)(nil)

// defaultK is the result count when the caller does not specify one.
const defaultK = 10

// Retriever fuses semantic and keyword rankings into one result list.
// When one index is unavailable it degrades to the other instead of
// failing the query.
type Retriever struct {
	embedder driven.EmbeddingService // nil disables the semantic side
	vector   driven.VectorIndex
	keyword  driven.KeywordIndex
	docs     driven.DocumentStore
}

// NewRetriever creates a hybrid retriever. The embedder may be nil, in
// which case every query runs keyword-only and is marked degraded.
func NewRetriever(
	embedder driven.EmbeddingService,
	vector driven.VectorIndex,
	keyword driven.KeywordIndex,
	docs driven.DocumentStore,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		vector:   vector,
		keyword:  keyword,
		docs:     docs,
	}
}

// Retrieve runs both sub-queries in parallel, normalises each score set to
// [0,1], fuses them by weighted sum and returns the top results in a
// deterministic order.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) (*domain.RetrievalSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty: %w", domain.ErrInvalidInput)
	}

	k := opts.K
	if k <= 0 {
		k = defaultK
	}
	weights := opts.Weights
	if weights.Zero() {
		weights = domain.DefaultWeights()
	}
	oversample := opts.Oversample
	if oversample <= 0 {
		oversample = domain.DefaultOversample
	}
	// Each sub-index is queried for more than k candidates so fusion can
	// promote passages that only one side ranks highly.
	kStar := k * oversample

	logger.Section("retrieval")
	logger.Debug("retriever: query=%q k=%d k*=%d weights=%.2f/%.2f",
		query, k, kStar, weights.Semantic, weights.Keyword)

	var (
		wg          sync.WaitGroup
		vectorHits  []driven.VectorHit
		keywordHits []driven.KeywordHit
		vectorErr   error
		keywordErr  error
	)

	semanticEnabled := r.embedder != nil
	if semanticEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			embedding, err := r.embedder.Embed(ctx, query)
			if err != nil {
				vectorErr = fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
				return
			}
			vectorHits, vectorErr = r.vector.Search(ctx, embedding, kStar)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = r.keyword.Search(ctx, query, kStar)
	}()

	wg.Wait()

	semanticOK := semanticEnabled && vectorErr == nil
	keywordOK := keywordErr == nil
	if !semanticOK && !keywordOK {
		return nil, fmt.Errorf("%w: semantic: %v, keyword: %v",
			domain.ErrIndexUnavailable, vectorErr, keywordErr)
	}
	if semanticEnabled && vectorErr != nil {
		logger.Warn("retriever: semantic side unavailable: %v", vectorErr)
	}
	if keywordErr != nil {
		logger.Warn("retriever: keyword side unavailable: %v", keywordErr)
	}

	degraded := !semanticOK || !keywordOK

	fused := make(map[string]*domain.RetrievalResult)
	if semanticOK {
		scores := make([]float64, len(vectorHits))
		for i, h := range vectorHits {
			scores[i] = h.Similarity
		}
		normalize(scores)
		for i, h := range vectorHits {
			fused[h.PassageID] = &domain.RetrievalResult{
				PassageID:     h.PassageID,
				SemanticScore: scores[i],
				FromSemantic:  true,
			}
		}
	}
	if keywordOK {
		scores := make([]float64, len(keywordHits))
		for i, h := range keywordHits {
			scores[i] = h.Score
		}
		normalize(scores)
		for i, h := range keywordHits {
			res, ok := fused[h.PassageID]
			if !ok {
				res = &domain.RetrievalResult{PassageID: h.PassageID}
				fused[h.PassageID] = res
			}
			res.KeywordScore = scores[i]
			res.FromKeyword = true
		}
	}

	for _, res := range fused {
		res.Score = weights.Semantic*res.SemanticScore + weights.Keyword*res.KeywordScore
	}

	ranked, err := r.rank(ctx, fused)
	if err != nil {
		return nil, err
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	logger.Debug("retriever: %d results (degraded=%t)", len(ranked), degraded)
	return &domain.RetrievalSet{Results: ranked, Degraded: degraded}, nil
}

// passagePosition locates a passage for tie-breaking.
type passagePosition struct {
	sourceSeq int64
	offset    int
}

// rank orders fused results by score, then by source insertion order,
// passage offset and finally passage id. Positions come from the durable
// store; passages the store no longer knows are dropped.
func (r *Retriever) rank(ctx context.Context, fused map[string]*domain.RetrievalResult) ([]domain.RetrievalResult, error) {
	positions := make(map[string]passagePosition, len(fused))
	seqBySource := make(map[string]int64)

	results := make([]domain.RetrievalResult, 0, len(fused))
	for id, res := range fused {
		passage, err := r.docs.GetPassage(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("retriever: passage %s missing from store, dropping", id)
				continue
			}
			return nil, fmt.Errorf("resolving passage %s: %w", id, err)
		}

		seq, ok := seqBySource[passage.SourceID]
		if !ok {
			doc, err := r.docs.GetDocument(ctx, passage.SourceID)
			if err != nil {
				return nil, fmt.Errorf("resolving document %s: %w", passage.SourceID, err)
			}
			seq = doc.Seq
			seqBySource[passage.SourceID] = seq
		}

		positions[id] = passagePosition{sourceSeq: seq, offset: passage.Offset}
		results = append(results, *res)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := positions[results[i].PassageID], positions[results[j].PassageID]
		if pi.sourceSeq != pj.sourceSeq {
			return pi.sourceSeq < pj.sourceSeq
		}
		if pi.offset != pj.offset {
			return pi.offset < pj.offset
		}
		return results[i].PassageID < results[j].PassageID
	})

	return results, nil
}

// normalize rescales scores to [0,1] in place with min-max normalisation.
// A uniform score set maps to 1.0 everywhere.
func normalize(scores []float64) {
	if len(scores) == 0 {
		return
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	if max == min {
		for i := range scores {
			scores[i] = 1.0
		}
		return
	}
	for i := range scores {
		scores[i] = (scores[i] - min) / (max - min)
	}
}
