package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/app"
	"github.com/upb/semantic-retrieval/middleware"
	"github.com/upb/semantic-retrieval/services/retrieval"
	"github.com/upb/semantic-retrieval/utils"
)

// searchRequest is the request body for the retrieval search endpoint
type searchRequest struct {
	Query              string   `json:"query" validate:"required"`
	Limit              int      `json:"limit" validate:"gte=0,lte=100"`
	RelevanceThreshold float64  `json:"relevance_threshold" validate:"gte=0,lte=1"`
	DocumentTypes      []string `json:"document_types" validate:"omitempty,dive,required"`
	IncludeMetadata    bool     `json:"include_metadata"`
}

// SearchHandler handles retrieval search requests.
// The tenant comes from the authenticated context, never from the body.
func SearchHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tenantID := middleware.GetTenantIDFromContext(ctx)
		if tenantID == "" {
			_ = utils.WriteUnauthorized(w, "Tenant identification required")
			return
		}

		var body searchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
			return
		}

		if err := utils.ValidateStruct(&body); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		req := &retrieval.Request{
			Query:              body.Query,
			TenantID:           tenantID,
			Limit:              body.Limit,
			RelevanceThreshold: body.RelevanceThreshold,
			DocumentTypes:      body.DocumentTypes,
			IncludeMetadata:    body.IncludeMetadata,
		}

		// Retrieve never fails; degraded outcomes are encoded in the response
		resp := deps.Retrieval.Retrieve(ctx, req)

		if err := utils.WriteOK(w, resp); err != nil {
			deps.Logger.Error("failed to write search response", zap.Error(err))
		}
	}
}

// CacheStatsHandler reports retrieval cache statistics
func CacheStatsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := utils.WriteOK(w, deps.Cache.Stats()); err != nil {
			deps.Logger.Error("failed to write cache stats response", zap.Error(err))
		}
	}
}
