package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionLifecycleCounters(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed("done", 3*time.Second)
	m.SessionSkipped("not_applicable")

	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Fatalf("active sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsTotal.WithLabelValues("done")); got != 1 {
		t.Fatalf("done sessions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsTotal.WithLabelValues("not_applicable")); got != 1 {
		t.Fatalf("not_applicable sessions = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionOpened()
	m.SessionClosed("cancelled", time.Second)
	m.Command("up")
	m.Thumbnail("get")
	m.Update("callback")
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Command("swap")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `encoderbot_audioselect_commands_total{verb="swap"} 1`) {
		t.Fatalf("metrics output missing swap counter:\n%s", body)
	}
}
