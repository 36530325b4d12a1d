package hl7

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newHandlerFixture() (*fixture, *Handler) {
	f := newFixture()
	return f, NewHandler(f.repo, f.processor)
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestEnqueue(t *testing.T) {
	f, h := newHandlerFixture()

	body := `{"source":"LAB","source_key":"MSG9","data":"MSH|^~\\&|LAB||||1||ORU^R01|MSG9|P|2.5"}`
	rec := doJSON(t, h.Enqueue, http.MethodPost, "/hl7/queue", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(f.repo.queue) != 1 {
		t.Fatalf("expected one queued entry, got %d", len(f.repo.queue))
	}
	if f.repo.queue[0].SourceKey != "MSG9" {
		t.Errorf("source key lost: %+v", f.repo.queue[0])
	}
}

func TestEnqueue_RequiresData(t *testing.T) {
	_, h := newHandlerFixture()
	rec := doJSON(t, h.Enqueue, http.MethodPost, "/hl7/queue", `{"source":"LAB"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestProcessQueueEndpoint(t *testing.T) {
	f, h := newHandlerFixture()
	f.enqueue(t, buildMessage("OBX|1|NM|5089^W||98.6"))
	f.enqueue(t, buildMessage("OBX|1|ST|5089^W||note"))

	rec := doJSON(t, h.ProcessQueue, http.MethodPost, "/hl7/queue/process", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["processed"] != 2 {
		t.Errorf("processed = %d, want 2", resp["processed"])
	}
	if len(f.repo.archives) != 2 {
		t.Errorf("expected both entries archived, got %d", len(f.repo.archives))
	}
}

func TestListErrorsEndpoint(t *testing.T) {
	f, h := newHandlerFixture()
	f.enqueue(t, "garbage")
	if _, err := f.processor.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	rec := doJSON(t, h.ListErrors, http.MethodGet, "/hl7/errors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), StageParsed) {
		t.Errorf("expected a parse-stage error in %s", rec.Body.String())
	}
}

func TestListArchivesEndpoint(t *testing.T) {
	f, h := newHandlerFixture()
	f.enqueue(t, buildMessage("OBX|1|NM|5089^W||98.6"))
	if _, err := f.processor.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	rec := doJSON(t, h.ListArchives, http.MethodGet, "/hl7/archive", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "MSH") {
		t.Errorf("expected archived message content in %s", rec.Body.String())
	}
}

func TestParseEndpoint(t *testing.T) {
	_, h := newHandlerFixture()

	body, _ := json.Marshal(map[string]string{"data": buildMessage()})
	rec := doJSON(t, h.ParseMessage, http.MethodPost, "/hl7/parse", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp parseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "2.5" || resp.Type != "ORU" {
		t.Errorf("unexpected header: %+v", resp)
	}
	if len(resp.Segments) == 0 || resp.Segments[0].Code != "MSH" {
		t.Errorf("unexpected segments: %+v", resp.Segments)
	}
}

func TestParseEndpoint_RejectsMalformed(t *testing.T) {
	_, h := newHandlerFixture()
	rec := doJSON(t, h.ParseMessage, http.MethodPost, "/hl7/parse", `{"data":"garbage"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
}
