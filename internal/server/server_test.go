package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/ratebridge/internal/server"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const validBody = `{
	"origin": {"lines": ["123 Main St"], "city": "New York", "stateProvince": "NY", "postalCode": "10001", "countryCode": "US"},
	"destination": {"lines": ["456 Sunset Blvd"], "city": "Los Angeles", "stateProvince": "CA", "postalCode": "90028", "countryCode": "US"},
	"packages": [{"weight": 5, "dimensions": {"length": 10, "width": 8, "height": 6}}]
}`

func newTestServer(t *testing.T, carriers ...shipper.Carrier) *server.Server {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	if len(carriers) == 0 {
		carriers = []shipper.Carrier{mock.New("test-shipper")}
	}
	registry, err := shipper.NewRegistry(logger, carriers...)
	require.NoError(t, err)

	return server.New(server.Config{Port: 8080}, registry, logger, prometheus.NewRegistry())
}

func do(t *testing.T, srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) server.ErrorBody {
	t.Helper()
	var resp server.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, mock.New("alpha"), mock.New("beta"))

	rec := do(t, srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","carriers":["alpha","beta"]}`, rec.Body.String())
}

func TestServer_Rates(t *testing.T) {
	srv := newTestServer(t, mock.New("alpha"), mock.New("beta"))

	rec := do(t, srv, http.MethodPost, "/v1/rates", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp server.RatesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Quotes, 4)
	assert.Equal(t, "alpha", resp.Quotes[0].Carrier)
	assert.Equal(t, "STANDARD", resp.Quotes[0].ServiceCode)
	assert.Equal(t, "15.82", resp.Quotes[0].TotalCost)
	assert.Equal(t, "beta", resp.Quotes[3].Carrier)
	require.NotNil(t, resp.Quotes[1].EstimatedDays)
	assert.Equal(t, 2, *resp.Quotes[1].EstimatedDays)
}

func TestServer_Rates_FailingCarrierIsSkipped(t *testing.T) {
	failing := mock.NewFailing("broken",
		shipper.NewCarrierError("broken", shipper.KindTimeout, "too slow"))
	srv := newTestServer(t, failing, mock.New("alpha"))

	rec := do(t, srv, http.MethodPost, "/v1/rates", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp server.RatesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Quotes, 2)
}

func TestServer_Rates_EmptyResultIsArray(t *testing.T) {
	srv := newTestServer(t, mock.NewFailing("broken", shipper.ErrNetwork))

	rec := do(t, srv, http.MethodPost, "/v1/rates", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"quotes":[]}`, rec.Body.String())
}

func TestServer_Rates_InvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/rates", "invalid json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Kind)
}

func TestServer_Rates_ValidationFailure(t *testing.T) {
	carrier := mock.New("alpha")
	srv := newTestServer(t, carrier)

	rec := do(t, srv, http.MethodPost, "/v1/rates", `{"origin":{},"destination":{},"packages":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INVALID_REQUEST", body.Kind)
	assert.NotEmpty(t, body.Message)
	assert.Zero(t, carrier.Calls())
}

func TestServer_Rates_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/rates", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_CarrierRates(t *testing.T) {
	srv := newTestServer(t, mock.New("alpha"), mock.New("beta"))

	rec := do(t, srv, http.MethodPost, "/v1/rates/BETA", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp server.RatesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Quotes, 2)
	assert.Equal(t, "beta", resp.Quotes[0].Carrier)
}

func TestServer_CarrierRates_UnknownCarrier(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/rates/fedex", validBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CARRIER_UNAVAILABLE", decodeError(t, rec).Kind)
}

func TestServer_CarrierRates_ErrorStatus(t *testing.T) {
	tests := []struct {
		kind   shipper.ErrorKind
		status int
	}{
		{shipper.KindInvalidRequest, http.StatusBadRequest},
		{shipper.KindRateLimited, http.StatusTooManyRequests},
		{shipper.KindCarrierUnavailable, http.StatusServiceUnavailable},
		{shipper.KindTimeout, http.StatusGatewayTimeout},
		{shipper.KindAuthFailed, http.StatusBadGateway},
		{shipper.KindMalformedResponse, http.StatusBadGateway},
		{shipper.KindNetworkError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			srv := newTestServer(t, mock.NewFailing("alpha",
				shipper.NewCarrierError("alpha", tt.kind, "carrier said no")))

			rec := do(t, srv, http.MethodPost, "/v1/rates/alpha", validBody)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, string(tt.kind), body.Kind)
			assert.Equal(t, "carrier said no", body.Message)
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, mock.NewFailing("alpha",
		shipper.NewCarrierError("alpha", shipper.KindTimeout, "slow")))

	do(t, srv, http.MethodPost, "/v1/rates/alpha", validBody)
	do(t, srv, http.MethodPost, "/v1/rates/unknown", validBody)
	rec := do(t, srv, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ratebridge_requests_total{carrier="alpha",operation="get_rates_from_carrier",status="error"} 1`)
	assert.Contains(t, body, `ratebridge_carrier_errors_total{carrier="alpha",error_kind="TIMEOUT"} 1`)
	assert.NotContains(t, body, `ratebridge_carrier_errors_total{carrier="unknown"`)
	assert.Contains(t, body, "ratebridge_request_duration_seconds")
}

func TestServer_Run_ShutsDownOnCancel(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	registry, err := shipper.NewRegistry(logger, mock.New("alpha"))
	require.NoError(t, err)
	srv := server.New(server.Config{Port: 0, ShutdownTimeout: time.Second}, registry, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDecodeRateRequest(t *testing.T) {
	req, err := server.DecodeRateRequest(strings.NewReader(validBody))

	require.NoError(t, err)
	assert.Equal(t, []string{"123 Main St"}, req.Origin.Lines)
	assert.Equal(t, "CA", req.Destination.StateProvince)
	require.Len(t, req.Packages, 1)
	assert.Equal(t, 5.0, req.Packages[0].Weight)
	require.NotNil(t, req.Packages[0].Dimensions)
	assert.Equal(t, 8.0, req.Packages[0].Dimensions.Width)
	assert.NoError(t, shipper.Validate(req))
}

func TestDecodeRateRequest_Malformed(t *testing.T) {
	_, err := server.DecodeRateRequest(strings.NewReader(`{"packages": "nope"}`))

	assert.ErrorIs(t, err, shipper.ErrInvalidRequest)
}
