package server

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/jonathan/job-autopilot/internal/types"
)

// withCronAuth admits a request carrying the cron secret, either verbatim
// (bearer token, X-Cron-Secret header or ?secret= query) or as a signed
// short-lived token.
func (s *Server) withCronAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CronSecret == "" {
			log.Printf("[cron] rejecting %s: no cron secret configured", r.URL.Path)
			s.jsonResponse(w, http.StatusUnauthorized, types.APIResponse{Error: "Unauthorized", Code: "unauthorized"})
			return
		}
		if !s.cronAuthorized(r) {
			s.jsonResponse(w, http.StatusUnauthorized, types.APIResponse{Error: "Unauthorized", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cronAuthorized(r *http.Request) bool {
	var candidates []string
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Fields(h)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			candidates = append(candidates, parts[1])
		}
	}
	if h := r.Header.Get("X-Cron-Secret"); h != "" {
		candidates = append(candidates, h)
	}
	if q := r.URL.Query().Get("secret"); q != "" {
		candidates = append(candidates, q)
	}

	secret := []byte(s.cfg.CronSecret)
	for _, c := range candidates {
		if subtle.ConstantTimeCompare([]byte(c), secret) == 1 {
			return true
		}
		if strings.Count(c, ".") == 2 && validateCronToken(c, s.cfg.CronSecret, s.cfg.CronTokenMaxAge) == nil {
			return true
		}
	}
	return false
}

// handleCronTask runs a batch task and renders its result. A failed batch
// answers 500 so the scheduler records it; skipped and partial answer 200.
func (s *Server) handleCronTask(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Tasks == nil {
			s.fail(w, errTaskRunnerMissing)
			return
		}
		res, err := s.deps.Tasks.Run(r.Context(), name)
		if err != nil {
			s.fail(w, err)
			return
		}
		status := http.StatusOK
		if res.Status == types.BatchFailed {
			status = http.StatusInternalServerError
		}
		s.jsonResponse(w, status, res)
	})
}

// handleCronHealth reports recent batch activity. An unhealthy report
// answers 503.
func (s *Server) handleCronHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	report, err := s.deps.Health(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.jsonResponse(w, status, report)
}
