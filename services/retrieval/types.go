package retrieval

// Request is the caller-supplied retrieval query. Immutable once constructed;
// the tenant ID arrives already authenticated from the layer above.
type Request struct {
	// Query is the natural-language query text
	Query string

	// TenantID is the opaque tenant scope
	TenantID string

	// Limit bounds the result count (defaulted when zero)
	Limit int

	// RelevanceThreshold in [0,1]; zero means "no filtering"
	RelevanceThreshold float64

	// DocumentTypes optionally filters by document type
	DocumentTypes []string

	// IncludeMetadata requests the per-result metadata mapping
	IncludeMetadata bool
}

// GroundingValidation records the per-result grounding decision
type GroundingValidation struct {
	// Passed is the grounding pass/fail decision
	Passed bool `json:"passed"`

	// Score is the grounding score in [0,1]
	Score float64 `json:"score"`

	// Reasons lists human-readable justifications; never empty once computed
	Reasons []string `json:"reasons"`

	// Method names the signal used: "backend_reranker" or "heuristic_distance"
	Method string `json:"method"`
}

// ResultExplainability is the per-result explanation block consumed by the UI
type ResultExplainability struct {
	// QueryTermMatches lists query terms found literally in the snippet
	QueryTermMatches []string `json:"query_term_matches"`

	// SemanticSimilarity is the backend-native similarity score
	SemanticSimilarity float64 `json:"semantic_similarity"`

	// ContextualRelevance is the grounding score in [0,1]
	ContextualRelevance float64 `json:"contextual_relevance"`

	// RetrievalReason is a templated sentence for display; never empty
	RetrievalReason string `json:"retrieval_reason"`
}

// Result is one canonical matched item. Created once during normalization and
// never mutated afterward.
type Result struct {
	ID                  string                 `json:"id"`
	Snippet             string                 `json:"snippet"`
	Score               float64                `json:"score"`
	Confidence          float64                `json:"confidence"`
	DocumentType        string                 `json:"document_type"`
	SourceURI           string                 `json:"source_uri,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	GroundingPass       bool                   `json:"grounding_pass"`
	GroundingValidation GroundingValidation    `json:"grounding_validation"`
	Explainability      ResultExplainability   `json:"explainability"`
}

// QueryAnalysis describes how the query was interpreted
type QueryAnalysis struct {
	// OriginalQuery as supplied by the caller
	OriginalQuery string `json:"original_query"`

	// ProcessedQuery after trimming and lowercasing for matching
	ProcessedQuery string `json:"processed_query"`

	// ExtractedTerms after tokenization and stop-word removal
	ExtractedTerms []string `json:"extracted_terms"`

	// QueryIntent is a coarse keyword-heuristic label (e.g. "lookup")
	QueryIntent string `json:"query_intent"`
}

// RetrievalStrategy describes which protocol served the request and how
type RetrievalStrategy struct {
	// Algorithm is "structured_query", "procedural_predict" or "failed_retrieval"
	Algorithm string `json:"algorithm"`

	// Parameters are the effective request parameters after defaulting;
	// failure responses carry the causal error text under "error"
	Parameters map[string]interface{} `json:"parameters"`

	// Optimizations lists applied optimizations such as "cache_lookup"
	Optimizations []string `json:"optimizations"`
}

// APIMetrics captures live-call measurements; absent on cache hits
type APIMetrics struct {
	ResponseTimeMs int64  `json:"response_time_ms"`
	ResultCount    int    `json:"result_count"`
	ProtocolUsed   string `json:"protocol_used"`
	CacheStatus    string `json:"cache_status"`
}

// ResponseExplainability is the top-level explanation block
type ResponseExplainability struct {
	QueryAnalysis     QueryAnalysis     `json:"query_analysis"`
	RetrievalStrategy RetrievalStrategy `json:"retrieval_strategy"`
	APIMetrics        *APIMetrics       `json:"api_metrics,omitempty"`
}

// Response is the scored, explainable result set returned to the caller.
// Result ordering is backend rank order unless the serving protocol is
// configured as unordered, in which case results were stable-sorted by score.
type Response struct {
	Results               []Result               `json:"results"`
	TotalFound            int                    `json:"total_found"`
	QueryProcessingTimeMs int64                  `json:"query_processing_time_ms"`
	CacheHit              bool                   `json:"cache_hit"`
	Explainability        ResponseExplainability `json:"explainability"`
}
