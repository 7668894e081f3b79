package sending

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/lock"
	"github.com/jonathan/job-autopilot/internal/mailer"
	"github.com/jonathan/job-autopilot/internal/readiness"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memStore struct {
	mu       sync.Mutex
	clock    *clock
	users    map[uuid.UUID]*db.User
	userJobs map[uuid.UUID]*db.UserJob
	apps     map[uuid.UUID]*db.JobApplication
	logs     []db.SystemLog
	cleared  []uuid.UUID
	sends    map[uuid.UUID]int
}

func newMemStore(c *clock) *memStore {
	return &memStore{
		clock:    c,
		users:    map[uuid.UUID]*db.User{},
		userJobs: map[uuid.UUID]*db.UserJob{},
		apps:     map[uuid.UUID]*db.JobApplication{},
		sends:    map[uuid.UUID]int{},
	}
}

func (m *memStore) addUser() *db.User {
	u := &db.User{ID: uuid.New(), Name: "Ada Lovelace", Email: "ada@example.com", SenderEmail: "ada@example.com", SenderVerified: true}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addApp(user *db.User, status db.ApplicationStatus) *db.JobApplication {
	uj := &db.UserJob{ID: uuid.New(), UserID: user.ID, GlobalJobID: uuid.New(), Stage: db.StageSaved}
	m.userJobs[uj.ID] = uj
	a := &db.JobApplication{
		ID:             uuid.New(),
		UserID:         user.ID,
		UserJobID:      uj.ID,
		RecipientEmail: "jobs@acme.test",
		SenderEmail:    user.SenderEmail,
		Subject:        "Application: Backend Engineer",
		Body:           "Hello,\n\nI would like to apply.",
		Status:         status,
		CreatedAt:      m.clock.Now().Add(time.Duration(len(m.apps)) * time.Second),
	}
	m.apps[a.ID] = a
	return a
}

func (m *memStore) app(id uuid.UUID) db.JobApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.apps[id]
}

func (m *memStore) logsOf(logType string) []db.SystemLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.SystemLog
	for _, l := range m.logs {
		if l.Type == logType {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) GetUserJob(_ context.Context, id uuid.UUID) (*db.UserJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userJobs[id], nil
}

func (m *memStore) UpdateUserJobStage(_ context.Context, id uuid.UUID, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	uj, ok := m.userJobs[id]
	if !ok {
		return &db.ErrNotFound{Entity: "user job", ID: id}
	}
	uj.Stage = stage
	return nil
}

func (m *memStore) ClearCompanyEmail(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, jobID)
	return nil
}

func (m *memStore) GetApplication(_ context.Context, id uuid.UUID) (*db.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetApplicationByMessageID(_ context.Context, messageID string) (*db.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if messageID == "" {
		return nil, nil
	}
	for _, a := range m.apps {
		if a.MessageID == messageID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetLatestSentToRecipient(_ context.Context, email string) (*db.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *db.JobApplication
	for _, a := range m.apps {
		if a.RecipientEmail != email || (a.Status != db.StatusSent && a.Status != db.StatusBounced) || a.SentAt == nil {
			continue
		}
		if best == nil || a.SentAt.After(*best.SentAt) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memStore) TransitionApplication(_ context.Context, id uuid.UUID, from []db.ApplicationStatus, to db.ApplicationStatus, upd db.TransitionUpdate) (*db.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, nil
	}
	matched := false
	for _, f := range from {
		if a.Status == f {
			matched = true
		}
	}
	if !matched {
		return nil, nil
	}
	a.Status = to
	if upd.ErrorMessage != nil {
		a.ErrorMessage = *upd.ErrorMessage
	}
	if upd.MessageID != nil {
		a.MessageID = *upd.MessageID
	}
	if upd.ScheduledSendAt != nil {
		a.ScheduledSendAt = upd.ScheduledSendAt
	}
	if upd.SentAt != nil {
		a.SentAt = upd.SentAt
	}
	if upd.ResetRetries {
		a.RetryCount = 0
		a.ErrorMessage = ""
	}
	if upd.IncrementRetry {
		a.RetryCount++
	}
	if to == db.StatusSent {
		m.sends[a.UserID]++
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListDueApplications(_ context.Context, now time.Time, limit int) ([]db.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.JobApplication
	for _, a := range m.apps {
		if a.Status == db.StatusReady && (a.ScheduledSendAt == nil || !a.ScheduledSendAt.After(now)) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSendsSince ignores the window; tests seed counts directly.
func (m *memStore) CountSendsSince(_ context.Context, userID uuid.UUID, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends[userID], nil
}

func (m *memStore) CountSystemLogs(_ context.Context, logType, source string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.logs {
		if l.Type == logType && l.Source == source && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertSystemLog(_ context.Context, entry db.SystemLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.clock.Now()
	}
	m.logs = append(m.logs, entry)
	return nil
}

type fakeLocker struct {
	held bool
	runs int
}

func (f *fakeLocker) Run(ctx context.Context, name string, _ time.Duration, fn func(ctx context.Context) error) error {
	if f.held {
		return &lock.ErrLockHeld{Name: name}
	}
	f.runs++
	return fn(ctx)
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	err    error
	onSend func()
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (*mailer.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return &mailer.Receipt{MessageID: fmt.Sprintf("msg-%d", len(f.sent))}, nil
}

type fakeChecker struct {
	notReady map[uuid.UUID]bool
}

func (f *fakeChecker) Check(_ context.Context, userID uuid.UUID) (*readiness.Report, error) {
	if f.notReady[userID] {
		return &readiness.Report{UserID: userID, Mode: db.ModeManual, Checks: []readiness.Check{
			{Name: readiness.CheckSenderVerified, Required: true},
		}}, nil
	}
	return &readiness.Report{UserID: userID, Mode: db.ModeManual, Ready: true}, nil
}

type fakeNotifier struct {
	calls []string
}

func (f *fakeNotifier) NotifyBounce(_ context.Context, user *db.User, app *db.JobApplication, reason string) error {
	f.calls = append(f.calls, user.ID.String()+"|"+app.ID.String()+"|"+reason)
	return nil
}

type fixture struct {
	clock    *clock
	store    *memStore
	locker   *fakeLocker
	sender   *fakeSender
	checker  *fakeChecker
	notifier *fakeNotifier
	svc      *Service
}

func newFixture(opts Options) *fixture {
	c := newClock()
	f := &fixture{
		clock:    c,
		store:    newMemStore(c),
		locker:   &fakeLocker{},
		sender:   &fakeSender{},
		checker:  &fakeChecker{notReady: map[uuid.UUID]bool{}},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.store, f.locker, f.sender, f.checker, f.notifier, opts)
	f.svc.now = c.Now
	return f
}

func fastOptions() Options {
	o := DefaultOptions()
	o.Pacing = 0
	return o
}
