package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveInferenceCountsByOutcome(t *testing.T) {
	r := NewRecorder()
	r.ObserveInference("m", "ok", 2*time.Second)
	r.ObserveInference("m", "ok", 3*time.Second)
	r.ObserveInference("m", "http_error", time.Second)

	if got := testutil.ToFloat64(r.inferenceTotal.WithLabelValues("m", "ok")); got != 2 {
		t.Fatalf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(r.inferenceTotal.WithLabelValues("m", "http_error")); got != 1 {
		t.Fatalf("expected 1 failed request, got %v", got)
	}
	if n := testutil.CollectAndCount(r.inferenceLatency); n != 2 {
		t.Fatalf("expected 2 latency series, got %d", n)
	}
}

func TestObservePhase(t *testing.T) {
	r := NewRecorder()
	r.Observe(context.Background(), "register", true, time.Second)
	r.Observe(context.Background(), "register", false, time.Second)
	r.Observe(context.Background(), "", true, time.Second)
	r.AddAdvisories("register", 3)
	r.AddAdvisories("register", 0)

	if got := testutil.ToFloat64(r.phaseTotal.WithLabelValues("register", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(r.phaseTotal.WithLabelValues("register", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(r.phaseTotal); n != 2 {
		t.Fatalf("empty phase should be ignored, got %d series", n)
	}
	if got := testutil.ToFloat64(r.advisories.WithLabelValues("register")); got != 3 {
		t.Fatalf("expected 3 advisories, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveInference("deepseek/deepseek-chat-v3-0324", "ok", 4*time.Second)
	path := filepath.Join(t.TempDir(), "prereg.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `prereg_inference_requests_total{model="deepseek/deepseek-chat-v3-0324",outcome="ok"} 1`) {
		t.Fatalf("unexpected textfile contents:\n%s", data)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveInference("m", "ok", time.Second)
	r.Observe(context.Background(), "compare", true, time.Second)
	r.AddAdvisories("compare", 1)
	if err := r.WriteTextfile("/nonexistent/dir/file.prom"); err != nil {
		t.Fatalf("nil recorder should not write: %v", err)
	}
}
