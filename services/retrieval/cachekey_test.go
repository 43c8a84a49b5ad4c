package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/upb/semantic-retrieval/services/backends"
)

func TestComputeCacheKey_Deterministic(t *testing.T) {
	req := &Request{
		Query:              "how do refunds work",
		TenantID:           "tenant-a",
		Limit:              10,
		RelevanceThreshold: 0.5,
		DocumentTypes:      []string{"faq", "policy"},
		IncludeMetadata:    true,
	}

	k1 := ComputeCacheKey(backends.ProtocolStructured, req)
	k2 := ComputeCacheKey(backends.ProtocolStructured, req)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1.String(), 64)
}

func TestComputeCacheKey_ProtocolScoped(t *testing.T) {
	req := &Request{Query: "refunds", TenantID: "tenant-a", Limit: 10}

	structured := ComputeCacheKey(backends.ProtocolStructured, req)
	procedural := ComputeCacheKey(backends.ProtocolProcedural, req)
	assert.NotEqual(t, structured, procedural)
}

func TestComputeCacheKey_FieldSensitivity(t *testing.T) {
	base := Request{
		Query:              "refunds",
		TenantID:           "tenant-a",
		Limit:              10,
		RelevanceThreshold: 0.5,
		DocumentTypes:      []string{"faq"},
		IncludeMetadata:    false,
	}
	baseKey := ComputeCacheKey(backends.ProtocolStructured, &base)

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"query", func(r *Request) { r.Query = "chargebacks" }},
		{"tenant", func(r *Request) { r.TenantID = "tenant-b" }},
		{"limit", func(r *Request) { r.Limit = 20 }},
		{"threshold", func(r *Request) { r.RelevanceThreshold = 0.7 }},
		{"document types", func(r *Request) { r.DocumentTypes = []string{"policy"} }},
		{"include metadata", func(r *Request) { r.IncludeMetadata = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.DocumentTypes = append([]string(nil), base.DocumentTypes...)
			tt.mutate(&req)
			assert.NotEqual(t, baseKey, ComputeCacheKey(backends.ProtocolStructured, &req))
		})
	}
}

func TestComputeCacheKey_DocumentTypeOrderIrrelevant(t *testing.T) {
	a := &Request{Query: "refunds", TenantID: "t", Limit: 5, DocumentTypes: []string{"faq", "policy"}}
	b := &Request{Query: "refunds", TenantID: "t", Limit: 5, DocumentTypes: []string{"policy", "faq"}}

	assert.Equal(t,
		ComputeCacheKey(backends.ProtocolProcedural, a),
		ComputeCacheKey(backends.ProtocolProcedural, b))
}

func TestComputeCacheKey_BoundaryForgeryResistant(t *testing.T) {
	// Content containing the separator must not collide with a request
	// where the boundary sits elsewhere
	a := &Request{Query: "refunds|tenant-a", TenantID: "x", Limit: 5}
	b := &Request{Query: "refunds", TenantID: "tenant-a|x", Limit: 5}

	assert.NotEqual(t,
		ComputeCacheKey(backends.ProtocolStructured, a),
		ComputeCacheKey(backends.ProtocolStructured, b))
}

func TestCacheKey_Short(t *testing.T) {
	key := ComputeCacheKey(backends.ProtocolStructured, &Request{Query: "q", TenantID: "t", Limit: 1})
	assert.Len(t, key.Short(), 12)
	assert.Equal(t, key.String()[:12], key.Short())
}
