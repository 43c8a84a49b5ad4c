package structured

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/services"
	"github.com/upb/semantic-retrieval/services/backends"
)

// documentsRelation is the per-tenant resource exposed by the backend's
// declarative surface. Tenancy is a predicate, not a separate relation.
const documentsRelation = "corpus_documents"

// Config holds structured client configuration
type Config struct {
	// Timeout bounds each query
	Timeout time.Duration

	// Preordered records whether the backend relation is documented to
	// return rows pre-ranked. When false, the normalizer sorts client-side.
	Preordered bool
}

// Client speaks the backend's declarative filter-query surface over its SQL
// interface. It issues equality/pattern predicates plus the backend's
// semantic-similarity function and returns rows as a generic payload.
type Client struct {
	db     *sql.DB
	config Config
	logger *zap.Logger
}

// NewClient creates a new structured-protocol client
func NewClient(db *sql.DB, config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Name returns the client name
func (c *Client) Name() string {
	return "structured-sql"
}

// Protocol returns the structured protocol tag
func (c *Client) Protocol() backends.Protocol {
	return backends.ProtocolStructured
}

// Preordered reports whether the backend returns pre-ranked rows
func (c *Client) Preordered() bool {
	return c.config.Preordered
}

// Search executes a declarative query against the per-tenant relation.
// The semantic_distance function is evaluated by the backend; this client
// never handles embeddings itself.
func (c *Client) Search(ctx context.Context, q *backends.Query) (*backends.RawPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	query := `SELECT document_id, content, document_type, source_uri, metadata, semantic_distance($1, content) AS distance FROM ` + documentsRelation + ` WHERE tenant_id = $2`
	args := []interface{}{q.Text, q.TenantID}

	if len(q.DocumentTypes) > 0 {
		args = append(args, pq.Array(q.DocumentTypes))
		query += fmt.Sprintf(" AND document_type = ANY($%d)", len(args))
	}

	// A relevance threshold t on the 1/(1+d) score is a distance ceiling of
	// 1/t - 1; pushing it into the predicate keeps the row budget for
	// candidates that can actually survive filtering
	if q.Threshold > 0 {
		args = append(args, 1/q.Threshold-1)
		query += fmt.Sprintf(" AND semantic_distance($1, content) <= $%d", len(args))
	}

	// Without backend-documented ranking, LIMIT alone would truncate an
	// arbitrary subset before the nearest documents are ever fetched
	if !c.config.Preordered {
		query += " ORDER BY distance ASC"
	}

	args = append(args, q.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.WrapTransport("structured query timed out", ctx.Err())
		}
		return nil, services.WrapTransport("structured query failed", err)
	}
	defer rows.Close()

	payloadRows := make([]interface{}, 0, q.Limit)
	for rows.Next() {
		var (
			documentID   string
			content      sql.NullString
			documentType sql.NullString
			sourceURI    sql.NullString
			metadata     []byte
			distance     sql.NullFloat64
		)

		if err := rows.Scan(&documentID, &content, &documentType, &sourceURI, &metadata, &distance); err != nil {
			return nil, services.WrapTransport("failed to scan structured row", err)
		}

		row := map[string]interface{}{
			"document_id": documentID,
		}
		if content.Valid {
			row["content"] = content.String
		}
		if documentType.Valid {
			row["document_type"] = documentType.String
		}
		if sourceURI.Valid {
			row["source_uri"] = sourceURI.String
		}
		if distance.Valid {
			row["distance"] = distance.Float64
		}
		if q.IncludeMetadata && len(metadata) > 0 {
			row["metadata"] = decodeMetadata(metadata, c.logger)
		}

		payloadRows = append(payloadRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, services.WrapTransport("structured row iteration failed", err)
	}

	c.logger.Debug("structured query completed",
		zap.String("tenant_id", q.TenantID),
		zap.Int("rows", len(payloadRows)))

	return &backends.RawPayload{
		Protocol: backends.ProtocolStructured,
		Body: map[string]interface{}{
			"rows":        payloadRows,
			"total_found": len(payloadRows),
		},
	}, nil
}

// decodeMetadata decodes the metadata blob, falling back to the raw text
// when the backend hands back something that is not a JSON object.
func decodeMetadata(raw []byte, logger *zap.Logger) interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Warn("metadata blob is not a JSON object", zap.Error(err))
		return string(raw)
	}
	return m
}
