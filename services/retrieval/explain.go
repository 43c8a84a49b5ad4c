package retrieval

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/upb/semantic-retrieval/services/backends"
)

// Query intent labels, derived from keyword heuristics only
const (
	IntentLookup          = "lookup"
	IntentComparison      = "comparison"
	IntentTroubleshooting = "troubleshooting"
)

// Optimization labels reported in the retrieval strategy block
const (
	OptCacheLookup       = "cache_lookup"
	OptThresholdFilter   = "threshold_filter"
	OptClientSideRanking = "client_side_ranking"
)

// stopWords are removed from extracted terms; deliberately small, matching
// only high-frequency function words
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "will": true,
	"with": true,
}

// comparisonKeywords signal a comparison intent
var comparisonKeywords = []string{"vs", "versus", "compare", "comparison", "difference", "better"}

// troubleshootingKeywords signal a troubleshooting intent
var troubleshootingKeywords = []string{"error", "fail", "failed", "broken", "fix", "issue", "problem", "not working"}

// Composer assembles the explainability blocks attached to the response and
// each result. Deterministic given the same inputs: no randomness, no I/O.
type Composer struct {
	removeStopWords bool
}

// NewComposer creates a composer. When removeStopWords is false the extracted
// terms keep function words, which widens literal term matching.
func NewComposer(removeStopWords bool) *Composer {
	return &Composer{removeStopWords: removeStopWords}
}

// AnalyzeQuery builds the query-analysis block and the term list reused by
// the grounding validator's literal matching
func (c *Composer) AnalyzeQuery(query string) QueryAnalysis {
	processed := strings.ToLower(strings.TrimSpace(query))

	terms := tokenize(processed)
	if c.removeStopWords {
		kept := terms[:0]
		for _, t := range terms {
			if !stopWords[t] {
				kept = append(kept, t)
			}
		}
		terms = kept
	}

	return QueryAnalysis{
		OriginalQuery:  query,
		ProcessedQuery: processed,
		ExtractedTerms: terms,
		QueryIntent:    classifyIntent(processed),
	}
}

// Strategy builds the retrieval-strategy block for a served protocol
func (c *Composer) Strategy(protocol backends.Protocol, req *Request, sorted bool) RetrievalStrategy {
	optimizations := []string{OptCacheLookup}
	if req.RelevanceThreshold > 0 {
		optimizations = append(optimizations, OptThresholdFilter)
	}
	if sorted {
		optimizations = append(optimizations, OptClientSideRanking)
	}

	return RetrievalStrategy{
		Algorithm:     protocol.Algorithm(),
		Parameters:    effectiveParameters(req),
		Optimizations: optimizations,
	}
}

// FailureStrategy builds the strategy block for a terminal failure, carrying
// the causal error text so operators can distinguish failure modes
func (c *Composer) FailureStrategy(req *Request, errText string) RetrievalStrategy {
	params := effectiveParameters(req)
	params["error"] = errText

	return RetrievalStrategy{
		Algorithm:     "failed_retrieval",
		Parameters:    params,
		Optimizations: []string{OptCacheLookup},
	}
}

// ExplainResult builds the per-result explainability block. The retrieval
// reason is rendered for direct UI display: never empty, no internal field
// names.
func (c *Composer) ExplainResult(item *NormalizedItem, validation GroundingValidation, matches []string, req *Request) ResultExplainability {
	methodLabel := "a lexical-overlap heuristic"
	if validation.Method == MethodBackendReranker {
		methodLabel = "the backend reranker"
	}

	filterClause := ""
	if len(req.DocumentTypes) > 0 {
		filterClause = fmt.Sprintf(", restricted to %s documents", canonicalDocumentTypes(req.DocumentTypes))
	}

	reason := fmt.Sprintf("Retrieved with %.0f%% contextual relevance, graded by %s%s.",
		validation.Score*100, methodLabel, filterClause)

	return ResultExplainability{
		QueryTermMatches:    matches,
		SemanticSimilarity:  item.Result.Score,
		ContextualRelevance: validation.Score,
		RetrievalReason:     reason,
	}
}

// effectiveParameters reports the request parameters after defaulting
func effectiveParameters(req *Request) map[string]interface{} {
	params := map[string]interface{}{
		"query":               req.Query,
		"tenant_id":           req.TenantID,
		"limit":               req.Limit,
		"relevance_threshold": req.RelevanceThreshold,
		"include_metadata":    req.IncludeMetadata,
	}
	if len(req.DocumentTypes) > 0 {
		params["document_types"] = canonicalDocumentTypes(req.DocumentTypes)
	}
	return params
}

// classifyIntent assigns a coarse intent label from keyword heuristics
func classifyIntent(processed string) string {
	for _, kw := range comparisonKeywords {
		if containsWord(processed, kw) {
			return IntentComparison
		}
	}
	for _, kw := range troubleshootingKeywords {
		if strings.Contains(processed, kw) {
			return IntentTroubleshooting
		}
	}
	return IntentLookup
}

// containsWord reports whether the text contains kw as a whole token
func containsWord(text, kw string) bool {
	for _, tok := range tokenize(text) {
		if tok == kw {
			return true
		}
	}
	return false
}

// tokenize splits text into lowercase alphanumeric tokens
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
