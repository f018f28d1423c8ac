package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/enrollhq/leadscore/internal/bundle"
	"github.com/enrollhq/leadscore/internal/predict"
)

type stubPredictor struct {
	lastIDs       []string
	lastRequestID string
	result        *predict.BatchResult
	err           error
}

func (p *stubPredictor) PredictBatchWithRequestID(_ context.Context, ids []string, requestID string) (*predict.BatchResult, error) {
	p.lastIDs = ids
	p.lastRequestID = requestID
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type stubHealth struct {
	health bundle.Health
}

func (h *stubHealth) Health() bundle.Health { return h.health }

func okResult() *predict.BatchResult {
	return &predict.BatchResult{
		Predictions: []predict.Result{{
			LeadID: "L1", Prediction: true, Probability: 0.81,
			Confidence: 0.7, ModelVersion: "1.2.0", FeatureCoverage: 1,
		}},
		Failures:   []predict.Failure{{LeadID: "L2", Kind: predict.FailureLeadNotFound}},
		ModelUsed:  "1.2.0",
		Total:      2,
		Successful: 1,
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPredictionsBareArrayBody(t *testing.T) {
	p := &stubPredictor{result: okResult()}
	srv := New(p, &stubHealth{}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predictions", `["L1","L2"]`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(p.lastIDs) != 2 || p.lastIDs[0] != "L1" {
		t.Fatalf("ids not forwarded: %v", p.lastIDs)
	}

	var res predict.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Total != 2 || res.Successful != 1 || res.ModelUsed != "1.2.0" {
		t.Fatalf("unexpected body: %+v", res)
	}
}

func TestPredictionsObjectBody(t *testing.T) {
	p := &stubPredictor{result: okResult()}
	srv := New(p, &stubHealth{}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predictions", `{"lead_ids": ["L1","L2"]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(p.lastIDs) != 2 {
		t.Fatalf("ids not forwarded: %v", p.lastIDs)
	}
}

func TestPredictionsMalformedBody(t *testing.T) {
	srv := New(&stubPredictor{result: okResult()}, &stubHealth{}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predictions", `{"lead_ids": "L1"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "INVALID_REQUEST" {
		t.Fatalf("error code = %q", body["error"])
	}
	if body["request_id"] == "" {
		t.Fatal("request_id missing from error envelope")
	}
}

func TestPredictionsErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty batch", predict.ErrEmptyBatch, http.StatusBadRequest, "INVALID_REQUEST"},
		{"too large", predict.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"no model", bundle.ErrModelUnavailable, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE"},
		{"cancelled", context.Canceled, http.StatusRequestTimeout, "REQUEST_CANCELLED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := New(&stubPredictor{err: tc.err}, &stubHealth{}, nil)
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predictions", `["L1"]`, nil)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("error = %q, want %q", body["error"], tc.wantCode)
			}
		})
	}
}

func TestRequestIDHonouredAndGenerated(t *testing.T) {
	p := &stubPredictor{result: okResult()}
	srv := New(p, &stubHealth{}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predictions", `["L1"]`,
		map[string]string{"X-Request-ID": "req-42"})
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("inbound id not echoed: %q", got)
	}
	if p.lastRequestID != "req-42" {
		t.Fatalf("id not forwarded to predictor: %q", p.lastRequestID)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/predictions", `["L1"]`, nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("no request id generated")
	}
}

func TestReadyGatedOnModelLoad(t *testing.T) {
	h := &stubHealth{}
	srv := New(&stubPredictor{result: okResult()}, h, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unloaded readyz = %d", rec.Code)
	}

	h.health = bundle.Health{Loaded: true, Version: "1.2.0", FeatureCount: 20, LoadedAt: time.Now()}
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("loaded readyz = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "1.2.0") {
		t.Fatalf("model version missing: %s", rec.Body.String())
	}
}

func TestHealthAlwaysOK(t *testing.T) {
	srv := New(&stubPredictor{}, &stubHealth{}, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestModelEndpoint(t *testing.T) {
	h := &stubHealth{}
	srv := New(&stubPredictor{}, h, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/model", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unloaded model = %d", rec.Code)
	}

	h.health = bundle.Health{Loaded: true, Version: "2.0.1", Checksum: "abc123", FeatureCount: 22}
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/model", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("loaded model = %d", rec.Code)
	}
	var body bundle.Health
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Version != "2.0.1" || body.FeatureCount != 22 {
		t.Fatalf("unexpected health: %+v", body)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := New(&stubPredictor{}, &stubHealth{}, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}
