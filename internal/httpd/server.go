// Package httpd exposes the operational HTTP surface spec.md §4.6 names
// as an external interface: liveness, readiness and Prometheus metrics.
// Adapted from the teacher's internal/http, swapping its dual Kafka
// consumer-group checks for a single peer's FSM state and keeping its
// DBChecker pattern for the optional RIB sink.
package httpd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/route-beacon/bgp-speaker/internal/fsm"
)

// PeerStatus reports the live FSM state of the one session this
// instance maintains. Backed by *fsm.Peer in production.
type PeerStatus interface {
	State() fsm.State
}

// DBChecker abstracts the RIB sink's health check for testability.
type DBChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	srv       *http.Server
	dbChecker DBChecker
	peer      PeerStatus
	logger    *zap.Logger
}

// NewServer wires the health/readiness/metrics mux. dbChecker may be
// nil when no RIB sink is configured — readyz then reports postgres as
// skipped rather than failing the check.
func NewServer(addr string, dbChecker DBChecker, peer PeerStatus, logger *zap.Logger) *Server {
	s := &Server{
		dbChecker: dbChecker,
		peer:      peer,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReadyz reports the peer's FSM state unconditionally (it is
// diagnostic, not gating — a peer legitimately spends most of its life
// outside Established) and fails the check only on a broken RIB sink,
// since that is the one dependency capable of silently dropping routes.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.peer != nil {
		checks["peer_state"] = s.peer.State().String()
	} else {
		checks["peer_state"] = "unconfigured"
		allOK = false
	}

	if s.dbChecker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbChecker.Ping(ctx); err != nil {
			checks["postgres"] = "error"
			allOK = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "skipped"
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
