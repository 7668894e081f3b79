package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/config"
	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/drafting"
	"github.com/jonathan/job-autopilot/internal/maintenance"
	"github.com/jonathan/job-autopilot/internal/pipeline/steps"
	"github.com/jonathan/job-autopilot/internal/readiness"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/sending"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
	"github.com/jonathan/job-autopilot/internal/types"
)

const (
	testCronSecret    = "cron-secret-for-tests"
	testWebhookSecret = "webhook-secret-for-tests"
	testJWTSecret     = "test-secret-key-for-jwt-signing-minimum-32-bytes"
)

type fakeTasks struct {
	mu      sync.Mutex
	calls   []string
	results map[string]*types.BatchResult
}

func (f *fakeTasks) Run(_ context.Context, name string) (*types.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := steps.TaskRegistry[name]; !ok {
		return nil, &steps.UnknownTaskError{Name: name}
	}
	f.calls = append(f.calls, name)
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return types.NewBatchResult(name).Finish(), nil
}

type fakeApps struct {
	apps    map[uuid.UUID]*db.JobApplication
	bounces []sending.BounceEvent
	err     error
}

func (f *fakeApps) action(userID, appID uuid.UUID, from, to db.ApplicationStatus) (*db.JobApplication, error) {
	if f.err != nil {
		return nil, f.err
	}
	app, ok := f.apps[appID]
	if !ok || app.UserID != userID {
		return nil, &db.ErrNotFound{Entity: "application", ID: appID}
	}
	if app.Status != from {
		return nil, &sending.ErrInvalidTransition{ID: appID, From: app.Status, To: to}
	}
	app.Status = to
	return app, nil
}

func (f *fakeApps) Approve(_ context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	return f.action(userID, appID, db.StatusDraft, db.StatusReady)
}

func (f *fakeApps) Cancel(_ context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	return f.action(userID, appID, db.StatusReady, db.StatusCancelled)
}

func (f *fakeApps) Retry(_ context.Context, userID, appID uuid.UUID) (*db.JobApplication, error) {
	return f.action(userID, appID, db.StatusFailed, db.StatusReady)
}

func (f *fakeApps) HandleBounce(_ context.Context, ev sending.BounceEvent) (*sending.BounceResult, error) {
	f.bounces = append(f.bounces, ev)
	if !sending.IsBounceEvent(ev.Event) {
		return &sending.BounceResult{Outcome: sending.BounceIgnored}, nil
	}
	return &sending.BounceResult{Outcome: sending.BounceApplied}, nil
}

type fakeReadiness struct{}

func (fakeReadiness) Check(_ context.Context, userID uuid.UUID) (*readiness.Report, error) {
	return &readiness.Report{UserID: userID, Mode: db.ModeManual, Ready: true}, nil
}

type fakeDrafts struct {
	err  error
	hint string
}

func (f *fakeDrafts) DraftApplication(_ context.Context, userID, userJobID uuid.UUID, hint string) (*drafting.Result, error) {
	f.hint = hint
	if f.err != nil {
		return nil, f.err
	}
	return &drafting.Result{Application: &db.JobApplication{ID: uuid.New(), UserID: userID, UserJobID: userJobID, Status: db.StatusDraft}}, nil
}

type fakeScanner struct{ calls int }

func (f *fakeScanner) MatchUser(_ context.Context, _ uuid.UUID) (*types.BatchResult, error) {
	f.calls++
	return types.NewBatchResult("match:user").Finish(), nil
}

type fakeResumes struct {
	uploads []resumes.Upload
}

func (f *fakeResumes) Upload(_ context.Context, up resumes.Upload) (*db.Resume, error) {
	f.uploads = append(f.uploads, up)
	if len(up.Data) < 10 {
		return nil, &resumes.ErrEmptyResume{Filename: up.Filename, Chars: len(up.Data)}
	}
	return &db.Resume{ID: uuid.New(), UserID: up.UserID, Name: up.Name, Language: "en", IsDefault: true}, nil
}

func intPtr(v int) *int { return &v }

type fakeUserJobs struct {
	limit     int
	owned     map[uuid.UUID]*db.UserJob
	dismissed []uuid.UUID
}

func (f *fakeUserJobs) DismissUserJob(_ context.Context, userID, id uuid.UUID) (bool, error) {
	uj, ok := f.owned[id]
	if !ok || uj.UserID != userID {
		return false, nil
	}
	uj.Dismissed = true
	f.dismissed = append(f.dismissed, id)
	return true, nil
}

func (f *fakeUserJobs) RecordFollowUp(_ context.Context, userID, id uuid.UUID) (*db.UserJob, error) {
	uj, ok := f.owned[id]
	if !ok || uj.UserID != userID || uj.Dismissed {
		return nil, nil
	}
	if uj.Stage != db.StageApplied && uj.Stage != db.StageInterview {
		return nil, nil
	}
	uj.FollowUpCount++
	return uj, nil
}

func (f *fakeUserJobs) ListUserJobs(_ context.Context, userID uuid.UUID, limit int) ([]db.UserJobWithJob, error) {
	f.limit = limit
	return []db.UserJobWithJob{{UserJob: db.UserJob{ID: uuid.New(), UserID: userID, Score: intPtr(80), Stage: db.StageSaved}}}, nil
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	tasks   *fakeTasks
	apps    *fakeApps
	drafts  *fakeDrafts
	scanner *fakeScanner
	resumes *fakeResumes
	jobs    *fakeUserJobs
	jwt     *JWTService
	health  *maintenance.HealthReport
}

func newTestEnv(t *testing.T, rl *ratelimit.Config) *testEnv {
	t.Helper()
	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	env := &testEnv{
		tasks:   &fakeTasks{results: map[string]*types.BatchResult{}},
		apps:    &fakeApps{apps: map[uuid.UUID]*db.JobApplication{}},
		drafts:  &fakeDrafts{},
		scanner: &fakeScanner{},
		resumes: &fakeResumes{},
		jobs:    &fakeUserJobs{owned: map[uuid.UUID]*db.UserJob{}},
		jwt:     NewJWTService(&config.JWTConfig{Secret: testJWTSecret, Issuer: config.DefaultJWTIssuer, ExpirationHours: 1}),
		health:  &maintenance.HealthReport{Healthy: true},
	}
	env.srv = New(Config{
		CronSecret:    testCronSecret,
		WebhookSecret: testWebhookSecret,
		RateLimit:     rl,
	}, Deps{
		Tasks:        env.tasks,
		Readiness:    fakeReadiness{},
		Drafts:       env.drafts,
		Applications: env.apps,
		Scanner:      env.scanner,
		Resumes:      env.resumes,
		UserJobs:     env.jobs,
		Health:       func(context.Context) (*maintenance.HealthReport, error) { return env.health, nil },
		Tokens:       env.jwt.AsTokenValidator(),
		Actions:      ratelimit.NewActionLimiter(ratelimit.NewMemoryStore(0), nil),
	})
	t.Cleanup(env.srv.rateLimiter.Stop)
	env.handler = env.srv.Handler()
	return env
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(userID)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) asUser(t *testing.T, userID uuid.UUID, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	return e.do(req)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) types.APIResponse {
	t.Helper()
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}
