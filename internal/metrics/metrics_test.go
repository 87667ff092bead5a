package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"coachflow/internal/logging"
)

func TestObserveRun(t *testing.T) {
	r := NewRecorder()
	at := time.Unix(1700000000, 0)

	r.ObserveRun("poll", ResultSuccess, map[string]int{"checked": 3, "completed": 1, "idle": 0}, at)
	r.ObserveRun("poll", ResultPartial, map[string]int{"checked": 2}, at.Add(time.Hour))

	if got := testutil.ToFloat64(r.runs.WithLabelValues("poll", ResultSuccess)); got != 1 {
		t.Fatalf("success runs = %v", got)
	}
	if got := testutil.ToFloat64(r.items.WithLabelValues("poll", "checked")); got != 5 {
		t.Fatalf("checked items = %v", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess.WithLabelValues("poll")); got != float64(at.Unix()) {
		t.Fatalf("last success = %v, partial runs must not advance it", got)
	}
	if n := testutil.CollectAndCount(r.items); n != 2 {
		t.Fatalf("item series = %d, zero counts must not create series", n)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun("discover", ResultSuccess, map[string]int{"submitted": 2}, time.Now())

	srv := httptest.NewServer(Router(r))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `coachflow_stage_items_total{outcome="submitted",stage="discover"} 2`) {
		t.Fatalf("metrics body missing item counter:\n%s", body)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", NewRecorder(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
