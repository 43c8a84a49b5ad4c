package retrieval

import (
	"fmt"
	"strings"
)

// Grounding method labels
const (
	MethodBackendReranker   = "backend_reranker"
	MethodHeuristicDistance = "heuristic_distance"
)

// Validator decides, per result, whether the retrieved snippet plausibly
// supports the query, and produces human-readable justification. Downstream
// billing and quality metrics depend on the pass decision being meaningful,
// so it is never unconditionally true.
type Validator struct {
	// baseline is the protocol-level minimum grounding score used for the
	// pass decision when the caller requested no threshold
	baseline float64
}

// NewValidator creates a validator with the configured baseline
func NewValidator(baseline float64) *Validator {
	return &Validator{baseline: baseline}
}

// Validate computes the grounding decision for one normalized item.
// queryTerms are the extracted terms of the processed query; threshold is the
// caller-requested relevance threshold (0 when none was requested).
// The returned matches feed the result's explainability block.
func (v *Validator) Validate(item *NormalizedItem, queryTerms []string, threshold float64) (GroundingValidation, []string) {
	var (
		score   float64
		method  string
		reasons []string
		matches []string
	)

	if item.HasRerank {
		// The backend's own reranking signal is authoritative when present
		score = item.RerankScore
		method = MethodBackendReranker
		reasons = append(reasons,
			fmt.Sprintf("Backend reranker scored this snippet %.2f for the query.", score))
		matches = matchTerms(queryTerms, item.Result.Snippet)
	} else {
		if item.HasDistance {
			score = DistanceToScore(item.Distance)
		} else {
			score = clamp01(item.Result.Score)
		}
		method = MethodHeuristicDistance

		matches = matchTerms(queryTerms, item.Result.Snippet)
		reasons = append(reasons,
			fmt.Sprintf("No reranking signal present; grounding derived from the similarity distance (score %.2f).", score))
		reasons = append(reasons,
			fmt.Sprintf("%d of %d query terms matched the snippet literally.", len(matches), len(queryTerms)))
	}

	effective := threshold
	if effective <= 0 {
		effective = v.baseline
		reasons = append(reasons,
			fmt.Sprintf("No relevance threshold requested; compared against the protocol minimum of %.2f.", effective))
	}

	passed := score >= effective
	if threshold > 0 {
		if passed {
			reasons = append(reasons,
				fmt.Sprintf("Score meets the requested relevance threshold of %.2f.", threshold))
		} else {
			reasons = append(reasons,
				fmt.Sprintf("Score falls below the requested relevance threshold of %.2f.", threshold))
		}
	}

	return GroundingValidation{
		Passed:  passed,
		Score:   clamp01(score),
		Reasons: reasons,
		Method:  method,
	}, matches
}

// matchTerms returns the query terms found in the snippet, case-insensitive,
// preserving query-term order
func matchTerms(queryTerms []string, snippet string) []string {
	if snippet == "" || len(queryTerms) == 0 {
		return nil
	}

	snippetTokens := make(map[string]bool)
	for _, tok := range tokenize(snippet) {
		snippetTokens[tok] = true
	}

	var matches []string
	for _, term := range queryTerms {
		if snippetTokens[strings.ToLower(term)] {
			matches = append(matches, term)
		}
	}
	return matches
}
