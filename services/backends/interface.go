package backends

import (
	"context"
)

// Protocol identifies which of the backend's two query surfaces a client speaks
type Protocol string

const (
	// ProtocolStructured is the declarative filter-query surface
	ProtocolStructured Protocol = "structured"

	// ProtocolProcedural is the direct predictor-invocation surface
	ProtocolProcedural Protocol = "procedural"
)

// Algorithm returns the retrieval-strategy label reported for this protocol
func (p Protocol) Algorithm() string {
	switch p {
	case ProtocolStructured:
		return "structured_query"
	case ProtocolProcedural:
		return "procedural_predict"
	default:
		return string(p)
	}
}

// Query carries the logical retrieval parameters shared by both protocols
type Query struct {
	// Text is the natural-language query
	Text string

	// TenantID scopes the search to one tenant's corpus
	TenantID string

	// Limit bounds the number of candidate rows requested
	Limit int

	// Threshold is the caller-requested relevance threshold, 0 for none
	Threshold float64

	// DocumentTypes optionally restricts matches by document type
	DocumentTypes []string

	// IncludeMetadata requests the metadata blob per match
	IncludeMetadata bool
}

// RawPayload is the backend-specific response shape. Both clients produce a
// generic decoded form; only the response normalizer looks inside it.
type RawPayload struct {
	// Protocol that produced this payload
	Protocol Protocol

	// Body is the decoded top-level object. Field names vary across
	// backend versions, hence the normalizer's candidate-path tables.
	Body map[string]interface{}
}

// Backend is a protocol client for the external retrieval backend
type Backend interface {
	// Name returns the client name (e.g., "structured-sql", "predictor-http")
	Name() string

	// Protocol returns which query surface this client speaks
	Protocol() Protocol

	// Search executes the query and returns the raw backend payload.
	// Transport failures and timeouts are reported as DomainError with
	// ErrorTypeTransport so the orchestrator can fall back.
	Search(ctx context.Context, q *Query) (*RawPayload, error)
}
