package ups

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const ratePath = "/api/rating/v1/Rate"

// HTTPAPIClient is the production implementation of APIClient.
type HTTPAPIClient struct {
	baseURL        string
	transactionSrc string
	timeout        time.Duration
	tokens         TokenSource
	doer           transport.Doer
	logger         *otelzap.Logger
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL        string
	TransactionSrc string
	Timeout        time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig, tokens TokenSource, doer transport.Doer, logger *otelzap.Logger) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transactionSrc := cfg.TransactionSrc
	if transactionSrc == "" {
		transactionSrc = defaultTransactionSrc
	}

	return &HTTPAPIClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		transactionSrc: transactionSrc,
		timeout:        timeout,
		tokens:         tokens,
		doer:           doer,
		logger:         logger,
	}
}

// Rate posts a rating request. A 401 clears the cached token and the call is
// retried exactly once with a freshly acquired token.
func (c *HTTPAPIClient) Rate(ctx context.Context, req *RateRequestEnvelope) (*RateResponseEnvelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, shipper.NewCarrierError(carrierName, shipper.KindInvalidRequest,
			"failed to encode rate request").WithCause(err)
	}

	resp, err := c.dispatch(ctx, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Ctx(ctx).Warn("UPS rejected access token, re-authenticating",
			zap.Int("status_code", resp.StatusCode),
		)
		c.tokens.ClearToken()

		resp, err = c.dispatch(ctx, body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, shipper.NewCarrierError(carrierName, shipper.KindAuthFailed,
				"rate request unauthorized after re-authentication").WithStatusCode(resp.StatusCode)
		}
	}

	return decodeRateResponse(resp)
}

// dispatch sends one attempt with a freshly fetched token.
func (c *HTTPAPIClient) dispatch(ctx context.Context, body []byte) (*transport.Response, error) {
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		if _, classified := shipper.AsCarrierError(err); classified {
			return nil, err
		}
		return nil, shipper.NewCarrierError(carrierName, shipper.KindAuthFailed,
			"failed to obtain access token").WithCause(err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("transId", newTransactionID())
	header.Set("transactionSrc", c.transactionSrc)

	resp, err := c.doer.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + ratePath,
		Header:  header,
		Body:    body,
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

func classifyTransportError(err error) error {
	if _, classified := shipper.AsCarrierError(err); classified {
		return err
	}
	if transport.IsTimeout(err) {
		return shipper.NewCarrierError(carrierName, shipper.KindTimeout, "rate request timed out").WithCause(err)
	}
	return shipper.NewCarrierError(carrierName, shipper.KindNetworkError, "rate request failed").WithCause(err)
}

// decodeRateResponse classifies a non-401 response.
func decodeRateResponse(resp *transport.Response) (*RateResponseEnvelope, error) {
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, statusError(shipper.KindRateLimited, resp)
	case resp.StatusCode >= 500:
		return nil, statusError(shipper.KindCarrierUnavailable, resp)
	default:
		return nil, statusError(shipper.KindInvalidRequest, resp)
	}

	var envelope RateResponseEnvelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, shipper.NewCarrierError(carrierName, shipper.KindMalformedResponse,
			"rate response is not valid JSON").WithCause(err)
	}
	return &envelope, nil
}

func statusError(kind shipper.ErrorKind, resp *transport.Response) *shipper.CarrierError {
	message := fmt.Sprintf("rate request failed with status %d", resp.StatusCode)
	if detail := errorDetail(resp); detail != "" {
		message += ": " + detail
	}
	return shipper.NewCarrierError(carrierName, kind, message).WithStatusCode(resp.StatusCode)
}

// errorDetail extracts the first UPS error message, falling back to raw text.
func errorDetail(resp *transport.Response) string {
	var body struct {
		Response struct {
			Errors []struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"response"`
	}
	if resp.IsJSON() {
		if err := resp.DecodeJSON(&body); err == nil && len(body.Response.Errors) > 0 {
			return body.Response.Errors[0].Message
		}
	}
	text := strings.TrimSpace(resp.Text())
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// newTransactionID returns a 32-character correlation id.
func newTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
