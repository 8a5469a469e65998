package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coremailer/coremail/internal/corestate"
	"github.com/coremailer/coremail/internal/jmap"
)

func testCore() *corestate.CoreState {
	return corestate.New(&corestate.Snapshot{
		Protocol: corestate.ProtocolConfig{JMAPLimits: jmap.DefaultLimits},
	}, nil)
}

func TestHandleHealth(t *testing.T) {
	s := New(":0", Handlers{Core: testCore()}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleJMAPEcho(t *testing.T) {
	s := New(":0", Handlers{Core: testCore()}, nil)
	body := []byte(`{
		"using": ["urn:ietf:params:jmap:core"],
		"methodCalls": [["Core/echo", {"hello": "world"}, "c1"]]
	}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jmap", bytes.NewReader(body))
	s.handleJMAP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp jmapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.MethodResponses) != 1 {
		t.Fatalf("expected 1 method response, got %d", len(resp.MethodResponses))
	}
	if resp.MethodResponses[0][0] != "Core/echo" {
		t.Fatalf("expected Core/echo response, got %v", resp.MethodResponses[0][0])
	}
}

func TestHandleJMAPUnknownMethodIsPerCallError(t *testing.T) {
	s := New(":0", Handlers{Core: testCore()}, nil)
	body := []byte(`{"methodCalls": [["Bogus/thing", {}, "c1"]]}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jmap", bytes.NewReader(body))
	s.handleJMAP(rec, req)

	var resp jmapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MethodResponses[0][0] != "error" {
		t.Fatalf("expected error response for unknown method, got %v", resp.MethodResponses[0][0])
	}
}

func TestHandleJMAPOversizeRequest(t *testing.T) {
	core := corestate.New(&corestate.Snapshot{
		Protocol: corestate.ProtocolConfig{JMAPLimits: jmap.Limits{MaxSizeRequest: 10, MaxCallsInRequest: 16}},
	}, nil)
	s := New(":0", Handlers{Core: core}, nil)
	body := []byte(`{"methodCalls": [["Core/echo", {}, "c1"]]}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jmap", bytes.NewReader(body))
	s.handleJMAP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
