// Package server exposes the cron, webhook and user endpoints of the
// autopilot over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/drafting"
	"github.com/jonathan/job-autopilot/internal/maintenance"
	"github.com/jonathan/job-autopilot/internal/readiness"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/sending"
	"github.com/jonathan/job-autopilot/internal/server/middleware"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
	"github.com/jonathan/job-autopilot/internal/types"
)

// TaskRunner runs a named batch task.
type TaskRunner interface {
	Run(ctx context.Context, name string) (*types.BatchResult, error)
}

// ReadinessChecker evaluates a user's readiness.
type ReadinessChecker interface {
	Check(ctx context.Context, userID uuid.UUID) (*readiness.Report, error)
}

// Drafter drafts one application on demand.
type Drafter interface {
	DraftApplication(ctx context.Context, userID, userJobID uuid.UUID, templateHint string) (*drafting.Result, error)
}

// Applications performs user actions on applications and handles bounces.
type Applications interface {
	Approve(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error)
	Cancel(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error)
	Retry(ctx context.Context, userID, appID uuid.UUID) (*db.JobApplication, error)
	HandleBounce(ctx context.Context, ev sending.BounceEvent) (*sending.BounceResult, error)
}

// Scanner matches recent postings for one user.
type Scanner interface {
	MatchUser(ctx context.Context, userID uuid.UUID) (*types.BatchResult, error)
}

// ResumeUploader stores an uploaded résumé.
type ResumeUploader interface {
	Upload(ctx context.Context, up resumes.Upload) (*db.Resume, error)
}

// UserJobLister lists a user's matched postings and records what the user
// does with them.
type UserJobLister interface {
	ListUserJobs(ctx context.Context, userID uuid.UUID, limit int) ([]db.UserJobWithJob, error)
	DismissUserJob(ctx context.Context, userID, id uuid.UUID) (bool, error)
	RecordFollowUp(ctx context.Context, userID, id uuid.UUID) (*db.UserJob, error)
}

// HealthFunc reports recent pipeline activity.
type HealthFunc func(ctx context.Context) (*maintenance.HealthReport, error)

// Deps are the services behind the endpoints.
type Deps struct {
	Tasks        TaskRunner
	Readiness    ReadinessChecker
	Drafts       Drafter
	Applications Applications
	Scanner      Scanner
	Resumes      ResumeUploader
	UserJobs     UserJobLister
	Health       HealthFunc
	Tokens       middleware.TokenValidator
	Actions      *ratelimit.ActionLimiter
}

// Config holds server configuration.
type Config struct {
	Port int
	// CronSecret authorizes the cron endpoints. Without it they reject every call.
	CronSecret      string
	CronTokenMaxAge time.Duration
	// WebhookSecret enables signature checks on the email webhook.
	WebhookSecret string
	RateLimit     *ratelimit.Config
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         Config
	deps        Deps
	rateLimiter *ratelimit.Limiter
}

// New creates a server and its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.CronTokenMaxAge <= 0 {
		cfg.CronTokenMaxAge = 5 * time.Minute
	}
	if deps.Actions == nil {
		deps.Actions = ratelimit.NewActionLimiter(ratelimit.NewMemoryStore(5*time.Minute), nil)
	}
	s := &Server{cfg: cfg, deps: deps}
	s.rateLimiter = ratelimit.NewLimiter(cfg.RateLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Scheduled tasks
	for _, task := range []string{"scrape", "match", "auto-draft", "send", "sweep"} {
		h := s.withCronAuth(s.handleCronTask(task))
		mux.Handle("POST /cron/"+task, h)
		mux.Handle("GET /cron/"+task, h)
	}
	mux.Handle("GET /cron/health", s.withCronAuth(http.HandlerFunc(s.handleCronHealth)))

	// Provider callbacks
	mux.HandleFunc("POST /webhooks/email", s.handleEmailWebhook)

	// User actions
	auth := middleware.AuthMiddleware(deps.Tokens)
	mux.Handle("GET /me/readiness", auth(http.HandlerFunc(s.handleReadiness)))
	mux.Handle("POST /me/scan", auth(http.HandlerFunc(s.handleScan)))
	mux.Handle("GET /me/user-jobs", auth(http.HandlerFunc(s.handleListUserJobs)))
	mux.Handle("POST /me/user-jobs/{id}/draft", auth(http.HandlerFunc(s.handleDraft)))
	mux.Handle("POST /me/user-jobs/{id}/dismiss", auth(http.HandlerFunc(s.handleDismiss)))
	mux.Handle("POST /me/user-jobs/{id}/follow-up", auth(http.HandlerFunc(s.handleFollowUp)))
	mux.Handle("POST /me/applications/{id}/approve", auth(http.HandlerFunc(s.handleApprove)))
	mux.Handle("POST /me/applications/{id}/cancel", auth(http.HandlerFunc(s.handleCancel)))
	mux.Handle("POST /me/applications/{id}/retry", auth(http.HandlerFunc(s.handleRetry)))
	mux.Handle("POST /me/resumes", auth(http.HandlerFunc(s.handleUploadResume)))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // batch tasks run inside the request
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the per-client request limits.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		}
		if !info.Allowed {
			s.tooManyRequests(w, "rate_limit_exceeded", info.RetryAfter)
			log.Printf("[rate-limit] %s %s from %s rejected (limit %d)", r.Method, r.URL.Path, s.extractClientID(r), info.Limit)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// extractClientID uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// success writes the envelope of a successful mutating call.
func (s *Server) success(w http.ResponseWriter, status int, data any) {
	s.jsonResponse(w, status, types.APIResponse{Success: true, Data: data})
}

// fail writes the envelope of a failed call with a status derived from err.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] request failed: %v", err)
	}
	if retry, ok := retryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retry)))
	}
	s.jsonResponse(w, status, types.APIResponse{Success: false, Error: err.Error(), Code: ErrorCode(err)})
}

// tooManyRequests writes a 429 with a Retry-After header.
func (s *Server) tooManyRequests(w http.ResponseWriter, code string, wait time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
	s.jsonResponse(w, http.StatusTooManyRequests, types.APIResponse{
		Success: false,
		Error:   "Rate limit exceeded. Please try again later.",
		Code:    code,
	})
}

func retrySeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
