package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/services"
	"github.com/upb/semantic-retrieval/services/backends"
)

// ServiceConfig holds orchestrator configuration
type ServiceConfig struct {
	// DefaultLimit applied when the request leaves limit unset
	DefaultLimit int

	// DefaultThreshold applied when the request leaves the threshold unset
	DefaultThreshold float64

	// TTLs are the protocol-specific cache lifetimes
	TTLs map[backends.Protocol]time.Duration
}

// Service is the fallback orchestrator: the public entry point that
// coordinates cache lookup, protocol selection, fallback on failure,
// normalization, grounding validation, explainability composition and cache
// population. Its contract never surfaces an error to the caller; every
// failure path resolves to a well-formed Response.
type Service struct {
	registry   *backends.Registry
	cache      Store
	normalizer *Normalizer
	validator  *Validator
	composer   *Composer
	config     ServiceConfig
	logger     *zap.Logger
}

// NewService creates a new retrieval service with all dependencies
func NewService(
	registry *backends.Registry,
	cache Store,
	normalizer *Normalizer,
	validator *Validator,
	composer *Composer,
	config ServiceConfig,
	logger *zap.Logger,
) *Service {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}

	return &Service{
		registry:   registry,
		cache:      cache,
		normalizer: normalizer,
		validator:  validator,
		composer:   composer,
		config:     config,
		logger:     logger,
	}
}

// Retrieve executes one retrieval request end to end. It never returns an
// error: transport and normalization failures fall back to the secondary
// protocol, and a total failure yields an empty, clearly-labeled response
// carrying both causal error texts.
func (s *Service) Retrieve(ctx context.Context, req *Request) *Response {
	start := time.Now()
	requestID := uuid.New()

	effective := s.applyDefaults(req)

	s.logger.Info("starting retrieval",
		zap.String("request_id", requestID.String()),
		zap.String("tenant_id", effective.TenantID),
		zap.Int("limit", effective.Limit),
		zap.Float64("relevance_threshold", effective.RelevanceThreshold))

	analysis := s.composer.AnalyzeQuery(effective.Query)

	if err := validateRequest(effective); err != nil {
		s.logger.Warn("invalid retrieval request",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return s.failureResponse(effective, analysis, err.Error(), start)
	}

	primary, err := s.registry.Primary()
	if err != nil {
		s.logger.Error("no primary backend registered",
			zap.String("request_id", requestID.String()))
		return s.failureResponse(effective, analysis, "no retrieval backend registered", start)
	}

	s.logger.Debug("attempting primary protocol",
		zap.String("request_id", requestID.String()),
		zap.String("protocol", string(primary.Protocol())))

	resp, primaryErr := s.attempt(ctx, primary, effective, analysis, start)
	if primaryErr == nil {
		s.logResult(requestID, resp)
		return resp
	}

	// Only transport and normalization failures are worth retrying over a
	// different protocol; anything else would fail the same way again
	if !services.IsRecoverable(primaryErr) {
		s.logger.Error("primary protocol failed with non-recoverable error",
			zap.String("request_id", requestID.String()),
			zap.String("protocol", string(primary.Protocol())),
			zap.Error(primaryErr))
		return s.failureResponse(effective, analysis,
			fmt.Sprintf("%s (%v)", primary.Protocol(), primaryErr), start)
	}

	s.logger.Warn("primary protocol failed, falling back",
		zap.String("request_id", requestID.String()),
		zap.String("protocol", string(primary.Protocol())),
		zap.Error(primaryErr))

	secondary, err := s.registry.Secondary()
	if err != nil {
		combined := fmt.Sprintf("%s (%v); no fallback protocol registered",
			primary.Protocol(), primaryErr)
		return s.failureResponse(effective, analysis, combined, start)
	}

	s.logger.Debug("attempting secondary protocol",
		zap.String("request_id", requestID.String()),
		zap.String("protocol", string(secondary.Protocol())))

	resp, secondaryErr := s.attempt(ctx, secondary, effective, analysis, start)
	if secondaryErr == nil {
		s.logResult(requestID, resp)
		return resp
	}

	// Both protocols down; keep both error texts so operators can tell
	// "primary down" from "both down"
	combined := fmt.Sprintf("%s (%v); %s (%v)",
		primary.Protocol(), primaryErr, secondary.Protocol(), secondaryErr)

	s.logger.Error("all retrieval protocols failed",
		zap.String("request_id", requestID.String()),
		zap.String("errors", combined))

	return s.failureResponse(effective, analysis, combined, start)
}

// attempt runs one protocol end to end: protocol-scoped cache lookup, the
// backend call, normalization, grounding, explainability, cache write.
func (s *Service) attempt(ctx context.Context, backend backends.Backend, req *Request, analysis QueryAnalysis, start time.Time) (*Response, error) {
	key := ComputeCacheKey(backend.Protocol(), req)

	cached, err := s.cache.Get(key)
	if err != nil {
		// Cache unavailability degrades to a miss, never aborts
		s.logger.Warn("cache lookup failed, proceeding without cache",
			zap.String("key", key.Short()),
			zap.Error(err))
	}
	if cached != nil {
		return cacheHitResponse(cached), nil
	}

	callStart := time.Now()
	payload, err := backend.Search(ctx, toBackendQuery(req))
	if err != nil {
		return nil, err
	}
	callElapsed := time.Since(callStart)

	normalized, err := s.normalizer.Normalize(payload)
	if err != nil {
		return nil, err
	}

	results := s.buildResults(normalized, analysis, req)

	resp := &Response{
		Results:               results,
		TotalFound:            normalized.TotalFound,
		QueryProcessingTimeMs: time.Since(start).Milliseconds(),
		CacheHit:              false,
		Explainability: ResponseExplainability{
			QueryAnalysis:     analysis,
			RetrievalStrategy: s.composer.Strategy(backend.Protocol(), req, normalized.Sorted),
			APIMetrics: &APIMetrics{
				ResponseTimeMs: callElapsed.Milliseconds(),
				ResultCount:    len(results),
				ProtocolUsed:   string(backend.Protocol()),
				CacheStatus:    "miss",
			},
		},
	}

	if err := s.cache.Set(key, resp, s.ttlFor(backend.Protocol())); err != nil {
		s.logger.Warn("cache store failed, response served uncached",
			zap.String("key", key.Short()),
			zap.Error(err))
	}

	return resp, nil
}

// buildResults validates grounding per item, applies the requested threshold
// filter, and truncates to the limit. Backend rank order is preserved; any
// client-side sort already happened in the normalizer.
func (s *Service) buildResults(normalized *NormalizedPayload, analysis QueryAnalysis, req *Request) []Result {
	results := make([]Result, 0, min(len(normalized.Items), req.Limit))

	for i := range normalized.Items {
		item := &normalized.Items[i]

		validation, matches := s.validator.Validate(item, analysis.ExtractedTerms, req.RelevanceThreshold)

		// Explicit filtering contract: only an affirmatively requested
		// threshold removes results
		if req.RelevanceThreshold > 0 && validation.Score < req.RelevanceThreshold {
			continue
		}

		result := item.Result
		result.GroundingPass = validation.Passed
		result.GroundingValidation = validation
		result.Explainability = s.composer.ExplainResult(item, validation, matches, req)

		results = append(results, result)
		if len(results) >= req.Limit {
			break
		}
	}

	return results
}

// failureResponse is the terminal both-failed outcome: empty results with the
// causal error text carried structurally, never an exception
func (s *Service) failureResponse(req *Request, analysis QueryAnalysis, errText string, start time.Time) *Response {
	return &Response{
		Results:               []Result{},
		TotalFound:            0,
		QueryProcessingTimeMs: time.Since(start).Milliseconds(),
		CacheHit:              false,
		Explainability: ResponseExplainability{
			QueryAnalysis:     analysis,
			RetrievalStrategy: s.composer.FailureStrategy(req, errText),
		},
	}
}

// cacheHitResponse returns a shallow copy of the cached response marked as a
// hit. Timing is not recomputed and live-call metrics are absent; the cached
// value itself is never mutated.
func cacheHitResponse(cached *Response) *Response {
	resp := *cached
	resp.CacheHit = true
	resp.Explainability.APIMetrics = nil
	return &resp
}

// applyDefaults returns a defaulted copy; the caller's request is immutable
func (s *Service) applyDefaults(req *Request) *Request {
	effective := *req
	if effective.Limit <= 0 {
		effective.Limit = s.config.DefaultLimit
	}
	if effective.RelevanceThreshold == 0 {
		effective.RelevanceThreshold = s.config.DefaultThreshold
	}
	return &effective
}

// validateRequest enforces the request invariants
func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if strings.TrimSpace(req.TenantID) == "" {
		return fmt.Errorf("tenant identifier cannot be empty")
	}
	if req.RelevanceThreshold < 0 || req.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance threshold must be in [0,1]")
	}
	return nil
}

// ttlFor returns the protocol-specific cache TTL
func (s *Service) ttlFor(protocol backends.Protocol) time.Duration {
	if ttl, ok := s.config.TTLs[protocol]; ok {
		return ttl
	}
	return time.Minute
}

// toBackendQuery maps the effective request onto the shared protocol query
func toBackendQuery(req *Request) *backends.Query {
	return &backends.Query{
		Text:            req.Query,
		TenantID:        req.TenantID,
		Limit:           req.Limit,
		Threshold:       req.RelevanceThreshold,
		DocumentTypes:   req.DocumentTypes,
		IncludeMetadata: req.IncludeMetadata,
	}
}

// logResult logs one completed retrieval
func (s *Service) logResult(requestID uuid.UUID, resp *Response) {
	s.logger.Info("retrieval completed",
		zap.String("request_id", requestID.String()),
		zap.String("algorithm", resp.Explainability.RetrievalStrategy.Algorithm),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Int("results", len(resp.Results)),
		zap.Int64("latency_ms", resp.QueryProcessingTimeMs))
}
