package procedural

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/semantic-retrieval/services"
	"github.com/upb/semantic-retrieval/services/backends"
)

// Config holds procedural client configuration
type Config struct {
	// BaseURL of the backend's predictor surface
	BaseURL string

	// Capability names the per-tenant capability endpoint to invoke
	Capability string

	// Timeout bounds each call
	Timeout time.Duration

	// MaxRetries for transient failures
	MaxRetries int

	// RetryDelay between retries
	RetryDelay time.Duration
}

// predictRequest is the wire body of a predictor invocation
type predictRequest struct {
	Query                  string   `json:"query"`
	Limit                  int      `json:"limit"`
	Threshold              float64  `json:"threshold"`
	IncludeMetadata        bool     `json:"include_metadata"`
	DocumentTypes          []string `json:"document_types,omitempty"`
	MerchantID             string   `json:"merchant_id"`
	ResponseFormat         string   `json:"response_format"`
	IncludeConfidence      bool     `json:"include_confidence"`
	IncludeGroundingReason bool     `json:"include_grounding_reasons"`
}

// Client speaks the backend's predictor-invocation surface: an HTTP POST to a
// per-tenant, per-capability endpoint. The response's top-level shape varies
// across backend versions, so the body is decoded generically and left for
// the response normalizer.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new procedural-protocol client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Capability == "" {
		config.Capability = "semantic-retrieval"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Name returns the client name
func (c *Client) Name() string {
	return "predictor-http"
}

// Protocol returns the procedural protocol tag
func (c *Client) Protocol() backends.Protocol {
	return backends.ProtocolProcedural
}

// Search invokes the predictor endpoint for the query's tenant
func (c *Client) Search(ctx context.Context, q *backends.Query) (*backends.RawPayload, error) {
	body := predictRequest{
		Query:                  q.Text,
		Limit:                  q.Limit,
		Threshold:              q.Threshold,
		IncludeMetadata:        q.IncludeMetadata,
		DocumentTypes:          q.DocumentTypes,
		MerchantID:             q.TenantID,
		ResponseFormat:         "json",
		IncludeConfidence:      true,
		IncludeGroundingReason: true,
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, services.WrapInternal("failed to marshal predict request", err)
	}

	endpoint := fmt.Sprintf("%s/v1/tenants/%s/capabilities/%s:predict",
		c.config.BaseURL, q.TenantID, c.config.Capability)

	var respBody []byte
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, services.WrapTransport("predict call canceled", ctx.Err())
			}
		}

		respBody, lastErr = c.doRequest(ctx, endpoint, reqBody)
		if lastErr == nil {
			break
		}

		c.logger.Warn("predict call attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	if lastErr != nil {
		return nil, lastErr
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, services.WrapNormalization("predict response is not a JSON object", err)
	}

	c.logger.Debug("predict call completed",
		zap.String("tenant_id", q.TenantID),
		zap.Int("body_bytes", len(respBody)))

	return &backends.RawPayload{
		Protocol: backends.ProtocolProcedural,
		Body:     decoded,
	}, nil
}

// doRequest performs a single HTTP attempt
func (c *Client) doRequest(ctx context.Context, endpoint string, reqBody []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, services.WrapInternal("failed to create predict request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.WrapTransport("predict call timed out", ctx.Err())
		}
		return nil, services.WrapTransport("predict call failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, services.WrapTransport("failed to read predict response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, services.WrapTransport(
			fmt.Sprintf("predict call returned status %d", httpResp.StatusCode), nil)
	}

	return respBody, nil
}
