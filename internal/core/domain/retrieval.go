package domain

// DefaultOversample is the factor applied to each sub-index query so that
// fusion has enough candidates to work with.
const DefaultOversample = 2

// Weights holds the fusion weights for hybrid retrieval. The balance is
// carried through options rather than hard-coded so callers can tune it.
type Weights struct {
	// Semantic is the weight applied to the normalised vector-index score.
	Semantic float64

	// Keyword is the weight applied to the normalised keyword-index score.
	Keyword float64
}

// DefaultWeights returns the equal weighting used when a caller does not
// specify one.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Keyword: 0.5}
}

// Zero reports whether no weight is set.
func (w Weights) Zero() bool {
	return w.Semantic == 0 && w.Keyword == 0
}

// RetrievalOptions configures a retrieval query.
type RetrievalOptions struct {
	// K is the maximum number of results. Defaults to 10.
	K int

	// Weights are the fusion weights. Zero value means DefaultWeights.
	Weights Weights

	// Oversample multiplies K for each sub-index query.
	// Zero means DefaultOversample.
	Oversample int
}

// RetrievalResult is one ranked passage from hybrid retrieval.
type RetrievalResult struct {
	// PassageID identifies the matched passage.
	PassageID string

	// Score is the fused relevance score; higher is more relevant.
	Score float64

	// SemanticScore is the normalised vector-index contribution.
	SemanticScore float64

	// KeywordScore is the normalised keyword-index contribution.
	KeywordScore float64

	// FromSemantic marks that the vector index proposed this passage.
	FromSemantic bool

	// FromKeyword marks that the keyword index proposed this passage.
	FromKeyword bool
}

// RetrievalSet is the ordered outcome of one retrieval call.
type RetrievalSet struct {
	// Results are ordered by fused score, deterministically tie-broken.
	Results []RetrievalResult

	// Degraded is true when one sub-index was unavailable and ranking fell
	// back to the other index alone.
	Degraded bool
}

// PassageIDs returns the result passage ids in rank order.
func (s *RetrievalSet) PassageIDs() []string {
	ids := make([]string, len(s.Results))
	for i, r := range s.Results {
		ids[i] = r.PassageID
	}
	return ids
}

// AnswerBundle is what the orchestrator hands to the external completion
// caller: ranked evidence, formatted citations and the conversation context
// that shaped the query.
type AnswerBundle struct {
	// Retrieved is the ranked evidence set.
	Retrieved []RetrievalResult

	// Citations are formatted source citations, deduplicated by source.
	Citations []string

	// ContextUsed are the prior turns consulted, most recent first.
	ContextUsed []Turn

	// EffectiveQuery is the query after optional context-aware rewriting.
	EffectiveQuery string

	// Degraded is true when retrieval ran in single-index mode.
	Degraded bool
}
