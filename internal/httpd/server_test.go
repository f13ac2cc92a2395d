package httpd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/route-beacon/bgp-speaker/internal/fsm"
)

type mockPeer struct {
	state fsm.State
}

func (m *mockPeer) State() fsm.State { return m.state }

type mockDBChecker struct {
	err error
}

func (m *mockDBChecker) Ping(_ context.Context) error { return m.err }

func newTestServer(state fsm.State) *Server {
	logger := zap.NewNop()
	return NewServer(":0", nil, &mockPeer{state: state}, logger)
}

func TestHealthz_AlwaysOK(t *testing.T) {
	s := newTestServer(fsm.Idle)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", body["status"])
	}
}

func TestReadyz_NoDBConfigured_StillReady(t *testing.T) {
	s := newTestServer(fsm.Established)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("expected status 'ready', got '%v'", body["status"])
	}

	checks := body["checks"].(map[string]any)
	if checks["peer_state"] != "Established" {
		t.Errorf("expected peer_state 'Established', got '%v'", checks["peer_state"])
	}
	if checks["postgres"] != "skipped" {
		t.Errorf("expected postgres 'skipped', got '%v'", checks["postgres"])
	}
}

func TestReadyz_ReportsIdlePeerButStaysReady(t *testing.T) {
	s := newTestServer(fsm.Idle)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 (idle peer does not fail readiness), got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	checks := body["checks"].(map[string]any)
	if checks["peer_state"] != "Idle" {
		t.Errorf("expected peer_state 'Idle', got '%v'", checks["peer_state"])
	}
}

func TestReadyz_DBDown(t *testing.T) {
	s := newTestServer(fsm.Established)
	s.dbChecker = &mockDBChecker{err: context.DeadlineExceeded}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Errorf("expected status 'not_ready', got '%v'", body["status"])
	}

	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "error" {
		t.Errorf("expected postgres 'error', got '%v'", checks["postgres"])
	}
}

func TestReadyz_DBUp(t *testing.T) {
	s := newTestServer(fsm.Established)
	s.dbChecker = &mockDBChecker{err: nil}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "ok" {
		t.Errorf("expected postgres 'ok', got '%v'", checks["postgres"])
	}
}

func TestReadyz_NoPeerConfigured(t *testing.T) {
	s := NewServer(":0", nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
