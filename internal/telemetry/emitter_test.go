package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func testEvent(id string) *Event {
	return &Event{
		EventID:      id,
		Timestamp:    time.Now(),
		ModelVersion: "1.0.0",
		BatchSize:    2,
		Successful:   1,
		Failed:       1,
		FailureKinds: map[string]int{"lead_not_found": 1},
		CacheHit:     true,
		LatencyMS:    12.5,
		CoverageMean: 0.9,
		CoverageMin:  0.8,
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}

	if err := sink.Deliver(context.Background(), testEvent("ev-1")); err != nil {
		t.Fatalf("deliver 1: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("ev-2")); err != nil {
		t.Fatalf("deliver 2: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if decoded.EventID != "ev-1" || decoded.ModelVersion != "1.0.0" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

type blockingSink struct {
	mu       sync.Mutex
	release  chan struct{}
	received []string
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(_ context.Context, ev *Event) error {
	<-s.release
	s.mu.Lock()
	s.received = append(s.received, ev.EventID)
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func TestEmitNeverBlocksWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: 100 * time.Millisecond}, []Sink{sink}, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			em.Emit(testEvent("flood"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked with a full queue")
	}

	close(sink.release)
	em.Close(context.Background())

	c := em.CountersSnapshot()
	if c.Dropped() == 0 {
		t.Fatalf("expected drops with a size-1 queue, counters=%+v", c)
	}
	if c.Enqueued()+c.Dropped() != 50 {
		t.Fatalf("accounting mismatch: enqueued=%d dropped=%d", c.Enqueued(), c.Dropped())
	}
}

func TestEmitterDeliversToWebhook(t *testing.T) {
	var mu sync.Mutex
	var got []Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Token": "t"}, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	em := NewEmitter(EmitterConfig{QueueSize: 10, Workers: 2}, []Sink{sink}, nil)

	em.Emit(testEvent("ev-1"))
	em.Emit(testEvent("ev-2"))
	em.Close(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 webhook deliveries, got %d", len(got))
	}

	c := em.CountersSnapshot()
	if c.SinkSuccess(sink.Name()) != 2 {
		t.Fatalf("expected 2 sink successes, got %d", c.SinkSuccess(sink.Name()))
	}
}

func TestEmitAfterCloseDrops(t *testing.T) {
	em := NewEmitter(EmitterConfig{QueueSize: 10}, nil, nil)
	em.Close(context.Background())

	em.Emit(testEvent("late"))
	c := em.CountersSnapshot()
	if c.Dropped() != 1 {
		t.Fatalf("expected 1 drop after close, got %d", c.Dropped())
	}
}

func TestMetricsSinkObservesEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewMetricsSink(reg)

	if err := sink.Deliver(context.Background(), testEvent("ev-1")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"leadscore_batches_total",
		"leadscore_predictions_total",
		"leadscore_failures_total",
		"leadscore_registry_lookups_total",
		"leadscore_batch_latency_seconds",
		"leadscore_feature_coverage",
	} {
		if !found[name] {
			t.Fatalf("metric %s not gathered; got %v", name, found)
		}
	}
}
