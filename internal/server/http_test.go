package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikesmullin/perception-voice/internal/config"
	"github.com/mikesmullin/perception-voice/internal/store"
)

func newTestHTTPServer(t *testing.T, pipelineStats PipelineStats) *HTTPServer {
	t.Helper()

	st := store.New(30*time.Minute, nil)
	st.Add("hello")

	// An unstarted socket server is enough for the stats snapshot.
	socketSrv := NewSocketServer("", 1024, st, testLogger(), nil)

	return NewHTTPServer(config.HTTPConfig{Address: "127.0.0.1", Port: 0},
		testLogger(), st, socketSrv, pipelineStats)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHTTPServer(t, nil)

	rec := httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected status %v", body["status"])
	}

	rec = httptest.NewRecorder()
	h.handleHealth(rec, httptest.NewRequest("POST", "/healthz", nil))
	if rec.Code != 405 {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	pipeline := func() map[string]interface{} {
		return map[string]interface{}{"chunks_processed": uint64(42)}
	}
	h := newTestHTTPServer(t, pipeline)

	rec := httptest.NewRecorder()
	h.handleStats(rec, httptest.NewRequest("GET", "/stats", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid stats JSON: %v", err)
	}
	if _, ok := body["store"]; !ok {
		t.Error("stats missing store section")
	}
	if _, ok := body["pipeline"]; !ok {
		t.Error("stats missing pipeline section")
	}
}
