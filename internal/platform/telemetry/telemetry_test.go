package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func counterValue(t *testing.T, m *PipelineMetrics, name string) float64 {
	t.Helper()
	families, err := m.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestPipelineMetrics_Counters(t *testing.T) {
	m := NewPipelineMetrics()

	m.Processed.Inc()
	m.Processed.Inc()
	m.Archived.Inc()
	m.ObsErrors.Inc()

	if got := counterValue(t, m, "hl7_queue_entries_processed_total"); got != 2 {
		t.Errorf("processed = %v, want 2", got)
	}
	if got := counterValue(t, m, "hl7_queue_entries_archived_total"); got != 1 {
		t.Errorf("archived = %v, want 1", got)
	}
	if got := counterValue(t, m, "hl7_queue_entries_errored_total"); got != 0 {
		t.Errorf("errored = %v, want 0", got)
	}
}

func TestPipelineMetrics_IndependentRegistries(t *testing.T) {
	a := NewPipelineMetrics()
	b := NewPipelineMetrics()

	a.Errored.Inc()

	if got := counterValue(t, b, "hl7_queue_entries_errored_total"); got != 0 {
		t.Errorf("registries leak between instances: %v", got)
	}
}

func TestPipelineMetrics_Handler(t *testing.T) {
	m := NewPipelineMetrics()
	m.Proposals.Inc()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := m.Handler()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hl7_concept_proposals_total 1") {
		t.Errorf("exposition missing proposal counter:\n%s", rec.Body.String())
	}
}
