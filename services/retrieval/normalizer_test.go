package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/services"
	"github.com/upb/semantic-retrieval/services/backends"
)

func newTestNormalizer(preordered map[backends.Protocol]bool) *Normalizer {
	if preordered == nil {
		preordered = map[backends.Protocol]bool{
			backends.ProtocolStructured: false,
			backends.ProtocolProcedural: true,
		}
	}
	return NewNormalizer(preordered, zap.NewNop())
}

func TestDistanceToScore(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		expected float64
	}{
		{"zero distance", 0, 1},
		{"unit distance", 1, 0.5},
		{"large distance", 3, 0.25},
		{"negative clamped to zero", -2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DistanceToScore(tt.distance), 1e-9)
		})
	}
}

func TestNormalize_StructuredRows(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolStructured,
		Body: map[string]interface{}{
			"rows": []interface{}{
				map[string]interface{}{
					"document_id":   "doc-1",
					"content":       "Refunds are processed in 5 days",
					"distance":      0.2,
					"document_type": "faq",
					"source_uri":    "kb://faq/42",
					"metadata":      map[string]interface{}{"lang": "en"},
				},
			},
			"total_found": 1,
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)

	item := out.Items[0]
	assert.Equal(t, "doc-1", item.Result.ID)
	assert.Equal(t, "Refunds are processed in 5 days", item.Result.Snippet)
	assert.True(t, item.HasDistance)
	assert.InDelta(t, 0.2, item.Distance, 1e-9)
	// No explicit score, so the distance transform supplies it
	assert.InDelta(t, 1.0/1.2, item.Result.Score, 1e-9)
	assert.Equal(t, "faq", item.Result.DocumentType)
	assert.Equal(t, "kb://faq/42", item.Result.SourceURI)
	assert.Equal(t, "en", item.Result.Metadata["lang"])
	assert.Equal(t, 1, out.TotalFound)
}

func TestNormalize_ProceduralAlternateFieldNames(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body: map[string]interface{}{
			"matches": []interface{}{
				map[string]interface{}{
					"doc_id":           "doc-9",
					"text":             "Chargebacks take longer",
					"relevance_score":  0.8,
					"confidence_score": 0.9,
				},
			},
			"total_results": 7,
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)

	item := out.Items[0]
	assert.Equal(t, "doc-9", item.Result.ID)
	assert.Equal(t, "Chargebacks take longer", item.Result.Snippet)
	assert.InDelta(t, 0.8, item.Result.Score, 1e-9)
	assert.InDelta(t, 0.9, item.Result.Confidence, 1e-9)
	assert.Equal(t, 7, out.TotalFound)
}

func TestNormalize_MissingFieldsDefaulted(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body: map[string]interface{}{
			"results": []interface{}{
				map[string]interface{}{},
			},
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)

	item := out.Items[0]
	assert.Equal(t, "", item.Result.ID)
	assert.Equal(t, "", item.Result.Snippet)
	assert.Equal(t, 0.0, item.Result.Score)
	assert.Equal(t, 0.0, item.Result.Confidence)
	assert.False(t, item.HasDistance)
	assert.False(t, item.HasRerank)

	// Every substituted default produced a warning
	assert.NotEmpty(t, out.Warnings)
	assert.Equal(t, 1, out.TotalFound)
}

func TestNormalize_ConfidenceClamped(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body: map[string]interface{}{
			"results": []interface{}{
				map[string]interface{}{"id": "a", "snippet": "x", "score": 0.5, "confidence": 1.7},
				map[string]interface{}{"id": "b", "snippet": "y", "score": 0.4, "confidence": -0.3},
			},
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, 1.0, out.Items[0].Result.Confidence)
	assert.Equal(t, 0.0, out.Items[1].Result.Confidence)
}

func TestNormalize_UnrecognizablePayload(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body:     map[string]interface{}{"unexpected": "shape"},
	}

	_, err := n.Normalize(payload)
	require.Error(t, err)
	assert.True(t, services.IsNormalizationError(err))
}

func TestNormalize_NilPayload(t *testing.T) {
	n := newTestNormalizer(nil)

	_, err := n.Normalize(nil)
	require.Error(t, err)
	assert.True(t, services.IsNormalizationError(err))
}

func TestNormalize_UnorderedProtocolSorted(t *testing.T) {
	n := newTestNormalizer(map[backends.Protocol]bool{
		backends.ProtocolStructured: false,
	})

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolStructured,
		Body: map[string]interface{}{
			"rows": []interface{}{
				map[string]interface{}{"document_id": "low", "content": "a", "score": 0.2},
				map[string]interface{}{"document_id": "high", "content": "b", "score": 0.9},
				map[string]interface{}{"document_id": "mid", "content": "c", "score": 0.5},
			},
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	assert.True(t, out.Sorted)
	assert.Equal(t, "high", out.Items[0].Result.ID)
	assert.Equal(t, "mid", out.Items[1].Result.ID)
	assert.Equal(t, "low", out.Items[2].Result.ID)
}

func TestNormalize_PreorderedProtocolKeepsOrder(t *testing.T) {
	n := newTestNormalizer(map[backends.Protocol]bool{
		backends.ProtocolProcedural: true,
	})

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body: map[string]interface{}{
			"results": []interface{}{
				map[string]interface{}{"id": "first", "snippet": "a", "score": 0.2},
				map[string]interface{}{"id": "second", "snippet": "b", "score": 0.9},
			},
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	assert.False(t, out.Sorted)
	assert.Equal(t, "first", out.Items[0].Result.ID)
	assert.Equal(t, "second", out.Items[1].Result.ID)
}

func TestNormalize_RerankSignalExtracted(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body: map[string]interface{}{
			"results": []interface{}{
				map[string]interface{}{"id": "a", "snippet": "x", "score": 0.5, "rerank_score": 0.85},
			},
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.True(t, out.Items[0].HasRerank)
	assert.InDelta(t, 0.85, out.Items[0].RerankScore, 1e-9)
}

func TestNormalize_NonObjectItemsSkipped(t *testing.T) {
	n := newTestNormalizer(nil)

	payload := &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body: map[string]interface{}{
			"results": []interface{}{
				"not an object",
				map[string]interface{}{"id": "a", "snippet": "x", "score": 0.5},
			},
			"total_found": 2,
		},
	}

	out, err := n.Normalize(payload)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "a", out.Items[0].Result.ID)
	// Backend-reported total wins even when items were skipped
	assert.Equal(t, 2, out.TotalFound)
}
