package retrieval

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/services"
	"github.com/upb/semantic-retrieval/services/backends"
)

// DistanceToScore converts a "lower is better" distance into a "higher is
// better" score. This is the single canonical transform; the grounding
// validator's heuristic path reuses it rather than deriving its own.
func DistanceToScore(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// clamp01 bounds a value to [0,1]. Out-of-range inputs are a normalization
// bug in the upstream payload, clamped silently.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// fieldPaths maps a canonical field to its ordered candidate extraction
// paths. The first present, correctly-typed candidate wins. Backend-version
// drift is a one-line table edit.
type fieldPaths map[string][]string

var structuredPaths = fieldPaths{
	"results":      {"rows", "results"},
	"id":           {"document_id", "id", "doc_id"},
	"snippet":      {"content", "snippet", "text"},
	"score":        {"score", "similarity", "relevance"},
	"distance":     {"distance", "vector_distance"},
	"confidence":   {"confidence", "probability"},
	"documentType": {"document_type", "doc_type", "type"},
	"sourceUri":    {"source_uri", "uri", "url"},
	"metadata":     {"metadata", "meta", "attributes"},
	"rerank":       {"rerank_score", "grounding_score", "reranker_confidence"},
	"totalFound":   {"total_found", "total", "count"},
}

var proceduralPaths = fieldPaths{
	"results":      {"results", "matches", "predictions", "documents"},
	"id":           {"id", "document_id", "doc_id", "chunk_id"},
	"snippet":      {"snippet", "content", "text", "chunk"},
	"score":        {"score", "similarity", "relevance_score", "relevance"},
	"distance":     {"distance", "vector_distance"},
	"confidence":   {"confidence", "probability", "confidence_score"},
	"documentType": {"document_type", "doc_type", "type"},
	"sourceUri":    {"source_uri", "source", "uri", "url"},
	"metadata":     {"metadata", "meta", "attributes"},
	"rerank":       {"rerank_score", "grounding_score", "reranker_confidence"},
	"totalFound":   {"total_found", "total_results", "total", "count"},
}

// pathsFor returns the candidate table for a protocol
func pathsFor(protocol backends.Protocol) fieldPaths {
	if protocol == backends.ProtocolStructured {
		return structuredPaths
	}
	return proceduralPaths
}

// NormalizedItem is one candidate result plus the numeric signals the
// grounding validator needs before the Result is finalized
type NormalizedItem struct {
	Result      Result
	Distance    float64
	HasDistance bool
	RerankScore float64
	HasRerank   bool
}

// NormalizedPayload is the canonical form of one raw backend payload
type NormalizedPayload struct {
	Items      []NormalizedItem
	TotalFound int

	// Warnings records field defaults substituted for missing values,
	// counted for backend-drift detection; never surfaced to the caller
	Warnings []string

	// Sorted is true when the normalizer applied a client-side ranking
	Sorted bool
}

// Normalizer turns raw backend payloads into canonical results, tolerating
// the backend returning the same logical field under different names across
// protocols and versions.
type Normalizer struct {
	preordered map[backends.Protocol]bool
	logger     *zap.Logger
}

// NewNormalizer creates a normalizer. The preordered map declares, per
// protocol, whether the backend returns results pre-ranked; unordered
// protocols get a stable client-side sort by descending score.
func NewNormalizer(preordered map[backends.Protocol]bool, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		preordered: preordered,
		logger:     logger,
	}
}

// Normalize converts one raw payload. A payload whose structural shape is
// unrecognizable (no results list under any candidate path) yields a
// normalization error, which the orchestrator treats like a transport
// failure.
func (n *Normalizer) Normalize(payload *backends.RawPayload) (*NormalizedPayload, error) {
	if payload == nil || payload.Body == nil {
		return nil, services.WrapNormalization("empty backend payload", nil)
	}

	paths := pathsFor(payload.Protocol)

	rawItems, found := firstList(payload.Body, paths["results"])
	if !found {
		return nil, services.NewDomainError(services.ErrorTypeNormalization,
			"backend payload structurally unrecognizable", nil).
			WithDetail("protocol", string(payload.Protocol))
	}

	out := &NormalizedPayload{
		Items: make([]NormalizedItem, 0, len(rawItems)),
	}

	for i, raw := range rawItems {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			out.warn(fmt.Sprintf("item %d is not an object, skipped", i))
			continue
		}
		out.Items = append(out.Items, n.normalizeItem(obj, paths, out))
	}

	if total, ok := firstFloat(payload.Body, paths["totalFound"]); ok && total >= 0 {
		out.TotalFound = int(total)
	} else {
		out.TotalFound = len(out.Items)
		out.warn("total count missing, defaulted to item count")
	}

	// Declared-unordered protocols get a stable descending sort by score
	if !n.preordered[payload.Protocol] {
		sort.SliceStable(out.Items, func(i, j int) bool {
			return out.Items[i].Result.Score > out.Items[j].Result.Score
		})
		out.Sorted = true
	}

	if len(out.Warnings) > 0 {
		n.logger.Warn("backend payload required field defaults",
			zap.String("protocol", string(payload.Protocol)),
			zap.Int("substitutions", len(out.Warnings)),
			zap.Strings("warnings", out.Warnings))
	}

	return out, nil
}

// normalizeItem extracts one canonical result from one raw item
func (n *Normalizer) normalizeItem(obj map[string]interface{}, paths fieldPaths, out *NormalizedPayload) NormalizedItem {
	item := NormalizedItem{}

	id, ok := firstString(obj, paths["id"])
	if !ok {
		out.warn("result identifier missing, defaulted to empty")
	}
	item.Result.ID = id

	snippet, ok := firstString(obj, paths["snippet"])
	if !ok {
		out.warn("snippet missing, defaulted to empty")
	}
	item.Result.Snippet = snippet

	if distance, ok := firstFloat(obj, paths["distance"]); ok {
		item.Distance = distance
		item.HasDistance = true
	}

	if score, ok := firstFloat(obj, paths["score"]); ok {
		item.Result.Score = score
	} else if item.HasDistance {
		// Only a distance is available; apply the canonical transform
		item.Result.Score = DistanceToScore(item.Distance)
	} else {
		out.warn("score and distance both missing, score defaulted to 0")
	}

	if confidence, ok := firstFloat(obj, paths["confidence"]); ok {
		item.Result.Confidence = clamp01(confidence)
	} else {
		out.warn("confidence missing, defaulted to 0")
	}

	if rerank, ok := firstFloat(obj, paths["rerank"]); ok {
		item.RerankScore = clamp01(rerank)
		item.HasRerank = true
	}

	item.Result.DocumentType, _ = firstString(obj, paths["documentType"])
	item.Result.SourceURI, _ = firstString(obj, paths["sourceUri"])

	if meta, ok := firstMap(obj, paths["metadata"]); ok {
		item.Result.Metadata = meta
	}

	return item
}

func (p *NormalizedPayload) warn(msg string) {
	p.Warnings = append(p.Warnings, msg)
}

// Extraction helpers: try each candidate path in order and take the first
// present, correctly-typed value.

func firstString(obj map[string]interface{}, paths []string) (string, bool) {
	for _, p := range paths {
		if v, ok := obj[p]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func firstFloat(obj map[string]interface{}, paths []string) (float64, bool) {
	for _, p := range paths {
		v, ok := obj[p]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}

func firstMap(obj map[string]interface{}, paths []string) (map[string]interface{}, bool) {
	for _, p := range paths {
		if v, ok := obj[p]; ok {
			if m, ok := v.(map[string]interface{}); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func firstList(obj map[string]interface{}, paths []string) ([]interface{}, bool) {
	for _, p := range paths {
		if v, ok := obj[p]; ok {
			if l, ok := v.([]interface{}); ok {
				return l, true
			}
		}
	}
	return nil, false
}
