package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"mintrunner/internal/chain"
	"mintrunner/internal/journal"
	"mintrunner/internal/progress"
)

// Server exposes metrics and health for the duration of a run.
type Server struct {
	httpServer  *http.Server
	metrics     *Metrics
	journal     *journal.Journal
	rpcHealthFn func(context.Context) error
	now         func() time.Time
}

func NewServer(addr string, metrics *Metrics, j *journal.Journal, rpc chain.HealthChecker) *Server {
	s := &Server{
		metrics: metrics,
		journal: j,
		now:     time.Now,
	}
	if rpc != nil {
		s.rpcHealthFn = rpc.Ping
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Infof("Metrics listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type rpcHealth struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type sessionHealth struct {
	ID            string  `json:"id"`
	Requested     int     `json:"requested"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	StoppedEarly  bool    `json:"stopped_early"`
	StopReason    string  `json:"stop_reason,omitempty"`
	Finished      bool    `json:"finished"`
	RatePerSecond float64 `json:"rate_per_second"`
}

type healthResponse struct {
	Status             string         `json:"status"`
	RPC                rpcHealth      `json:"rpc"`
	Session            *sessionHealth `json:"session,omitempty"`
	FailuresByCategory map[string]int `json:"failures_by_category,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "healthy"}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			resp.RPC.Error = err.Error()
			resp.Status = "degraded"
		} else {
			resp.RPC.Connected = true
			resp.RPC.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		resp.RPC.Connected = true
	}

	if s.journal != nil {
		if sess, ok := s.journal.Session(); ok {
			resp.Session = &sessionHealth{
				ID:            sess.ID,
				Requested:     sess.Requested,
				Successful:    sess.Successful,
				Failed:        sess.Failed,
				StoppedEarly:  sess.StoppedEarly,
				StopReason:    sess.StopReason,
				Finished:      s.journal.Finished(),
				RatePerSecond: progress.Compute(sess, s.now()).RatePerSecond,
			}
		}
		if byCat := s.journal.FailuresByCategory(); len(byCat) > 0 {
			resp.FailuresByCategory = make(map[string]int, len(byCat))
			for cat, n := range byCat {
				resp.FailuresByCategory[cat.String()] = n
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
