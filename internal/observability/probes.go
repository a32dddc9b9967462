package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readinessReport is the body of the readiness probe.
type readinessReport struct {
	Ready  bool              `json:"ready"`
	Status map[string]string `json:"status"`
}

// liveness responds with 200 OK if the HTTP server is running.
// It never consults dependencies: a stale snapshot is still servable.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness checks all registered dependencies in parallel, each under its
// own ProbeTimeout. Returns 200 OK only if all checkers pass.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report := readinessReport{
		Ready:  true,
		Status: make(map[string]string, len(s.checkers)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.probeTimeout())
			err := c.Check(checkCtx)
			cancel()

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// WARN: the orchestrator retries, so failures are expected noise.
				s.logger.Warn("health probe failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				report.Status[c.Name()] = fmt.Sprintf("down: %v", err)
				report.Ready = false
				return
			}
			report.Status[c.Name()] = "up"
		}(checker)
	}

	wg.Wait()

	w.Header().Set("Content-Type", "application/json")
	if report.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	// The status code is already written; the body is for humans.
	_ = json.NewEncoder(w).Encode(report)
}

func (s *Server) probeTimeout() time.Duration {
	if s.cfg.ProbeTimeout > 0 {
		return s.cfg.ProbeTimeout
	}
	return s.cfg.Timeout
}
