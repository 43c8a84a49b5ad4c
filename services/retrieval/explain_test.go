package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/upb/semantic-retrieval/services/backends"
)

func TestAnalyzeQuery_Normalization(t *testing.T) {
	c := NewComposer(true)

	analysis := c.AnalyzeQuery("  How DO Refunds Work?  ")

	assert.Equal(t, "  How DO Refunds Work?  ", analysis.OriginalQuery)
	assert.Equal(t, "how do refunds work?", analysis.ProcessedQuery)
	assert.Equal(t, []string{"do", "refunds", "work"}, analysis.ExtractedTerms)
	assert.Equal(t, IntentLookup, analysis.QueryIntent)
}

func TestAnalyzeQuery_StopWordsKept(t *testing.T) {
	c := NewComposer(false)

	analysis := c.AnalyzeQuery("how is the refund")
	assert.Equal(t, []string{"how", "is", "the", "refund"}, analysis.ExtractedTerms)
}

func TestAnalyzeQuery_IntentClassification(t *testing.T) {
	c := NewComposer(true)

	tests := []struct {
		query  string
		intent string
	}{
		{"refund policy details", IntentLookup},
		{"stripe vs adyen fees", IntentComparison},
		{"compare payout schedules", IntentComparison},
		{"difference between refund and void", IntentComparison},
		{"payment failed with error 402", IntentTroubleshooting},
		{"checkout is broken", IntentTroubleshooting},
		{"integration not working", IntentTroubleshooting},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.intent, c.AnalyzeQuery(tt.query).QueryIntent)
		})
	}
}

func TestAnalyzeQuery_Deterministic(t *testing.T) {
	c := NewComposer(true)

	a := c.AnalyzeQuery("why did my payment fail")
	b := c.AnalyzeQuery("why did my payment fail")
	assert.Equal(t, a, b)
}

func TestStrategy_Optimizations(t *testing.T) {
	c := NewComposer(true)

	t.Run("cache lookup always reported", func(t *testing.T) {
		s := c.Strategy(backends.ProtocolProcedural, &Request{Query: "q", TenantID: "t", Limit: 5}, false)
		assert.Equal(t, "procedural_predict", s.Algorithm)
		assert.Equal(t, []string{OptCacheLookup}, s.Optimizations)
	})

	t.Run("threshold filter reported when requested", func(t *testing.T) {
		s := c.Strategy(backends.ProtocolStructured, &Request{Query: "q", TenantID: "t", Limit: 5, RelevanceThreshold: 0.5}, false)
		assert.Equal(t, "structured_query", s.Algorithm)
		assert.Contains(t, s.Optimizations, OptThresholdFilter)
	})

	t.Run("client side ranking reported when sorted", func(t *testing.T) {
		s := c.Strategy(backends.ProtocolStructured, &Request{Query: "q", TenantID: "t", Limit: 5}, true)
		assert.Contains(t, s.Optimizations, OptClientSideRanking)
	})
}

func TestStrategy_EffectiveParameters(t *testing.T) {
	c := NewComposer(true)

	s := c.Strategy(backends.ProtocolStructured, &Request{
		Query:              "refunds",
		TenantID:           "tenant-a",
		Limit:              10,
		RelevanceThreshold: 0.4,
		DocumentTypes:      []string{"policy", "faq"},
	}, false)

	assert.Equal(t, "refunds", s.Parameters["query"])
	assert.Equal(t, "tenant-a", s.Parameters["tenant_id"])
	assert.Equal(t, 10, s.Parameters["limit"])
	assert.Equal(t, 0.4, s.Parameters["relevance_threshold"])
	assert.Equal(t, "faq,policy", s.Parameters["document_types"])
}

func TestFailureStrategy(t *testing.T) {
	c := NewComposer(true)

	s := c.FailureStrategy(&Request{Query: "q", TenantID: "t", Limit: 5},
		"structured (timeout); procedural (connection refused)")

	assert.Equal(t, "failed_retrieval", s.Algorithm)
	assert.Equal(t, "structured (timeout); procedural (connection refused)", s.Parameters["error"])
	assert.NotEmpty(t, s.Optimizations)
}

func TestExplainResult_ReasonRendered(t *testing.T) {
	c := NewComposer(true)

	item := &NormalizedItem{Result: Result{Snippet: "refunds take days", Score: 0.8}}
	validation := GroundingValidation{Passed: true, Score: 0.75, Method: MethodHeuristicDistance}

	explain := c.ExplainResult(item, validation, []string{"refunds"}, &Request{Query: "refunds", TenantID: "t", Limit: 5})

	assert.Equal(t, []string{"refunds"}, explain.QueryTermMatches)
	assert.Equal(t, 0.8, explain.SemanticSimilarity)
	assert.Equal(t, 0.75, explain.ContextualRelevance)
	assert.NotEmpty(t, explain.RetrievalReason)
	assert.Contains(t, explain.RetrievalReason, "75%")
	assert.Contains(t, explain.RetrievalReason, "lexical-overlap heuristic")
}

func TestExplainResult_RerankerLabel(t *testing.T) {
	c := NewComposer(true)

	item := &NormalizedItem{Result: Result{Snippet: "x", Score: 0.9}}
	validation := GroundingValidation{Passed: true, Score: 0.9, Method: MethodBackendReranker}

	explain := c.ExplainResult(item, validation, nil, &Request{Query: "q", TenantID: "t", Limit: 5})
	assert.Contains(t, explain.RetrievalReason, "backend reranker")
}

func TestExplainResult_DocumentTypeFilterMentioned(t *testing.T) {
	c := NewComposer(true)

	item := &NormalizedItem{Result: Result{Snippet: "x", Score: 0.9}}
	validation := GroundingValidation{Score: 0.9, Method: MethodHeuristicDistance}

	explain := c.ExplainResult(item, validation, nil, &Request{
		Query: "q", TenantID: "t", Limit: 5, DocumentTypes: []string{"faq"},
	})
	assert.Contains(t, explain.RetrievalReason, "faq")
}

func TestExplainResult_NoInternalFieldNames(t *testing.T) {
	c := NewComposer(true)

	item := &NormalizedItem{Result: Result{Snippet: "x", Score: 0.9}}
	validation := GroundingValidation{Score: 0.42, Method: MethodHeuristicDistance}

	explain := c.ExplainResult(item, validation, nil, &Request{Query: "q", TenantID: "t", Limit: 5})

	for _, internal := range []string{"rerank_score", "grounding_score", "tenant_id", "document_id"} {
		assert.False(t, strings.Contains(explain.RetrievalReason, internal),
			"reason leaked internal field name %q", internal)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"why", "did", "payment", "x", "fail"}, tokenize("Why did payment-x fail?"))
}
