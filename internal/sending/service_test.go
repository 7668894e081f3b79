package sending

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/db"
)

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("draft becomes ready now", func(t *testing.T) {
		f := newFixture(fastOptions())
		u := f.store.addUser()
		a := f.store.addApp(u, db.StatusDraft)
		a.RetryCount = 2
		a.ErrorMessage = "old"

		got, err := f.svc.Approve(ctx, u.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, db.StatusReady, got.Status)
		assert.Zero(t, got.RetryCount)
		assert.Empty(t, got.ErrorMessage)
		require.NotNil(t, got.ScheduledSendAt)
		assert.Equal(t, f.clock.Now(), *got.ScheduledSendAt)
		assert.Len(t, f.store.logsOf(db.LogActivity), 1)
	})

	t.Run("other user's application is not found", func(t *testing.T) {
		f := newFixture(fastOptions())
		u := f.store.addUser()
		a := f.store.addApp(u, db.StatusDraft)

		_, err := f.svc.Approve(ctx, uuid.New(), a.ID)
		var nf *db.ErrNotFound
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, db.StatusDraft, f.store.app(a.ID).Status)
	})

	t.Run("missing recipient", func(t *testing.T) {
		f := newFixture(fastOptions())
		u := f.store.addUser()
		a := f.store.addApp(u, db.StatusDraft)
		a.RecipientEmail = " "

		_, err := f.svc.Approve(ctx, u.ID, a.ID)
		var mr *ErrMissingRecipient
		require.ErrorAs(t, err, &mr)
	})

	for _, status := range []db.ApplicationStatus{db.StatusReady, db.StatusSent, db.StatusCancelled} {
		t.Run("rejects "+string(status), func(t *testing.T) {
			f := newFixture(fastOptions())
			u := f.store.addUser()
			a := f.store.addApp(u, status)

			_, err := f.svc.Approve(ctx, u.ID, a.ID)
			var it *ErrInvalidTransition
			require.ErrorAs(t, err, &it)
			assert.Equal(t, status, it.From)
			assert.Equal(t, status, f.store.app(a.ID).Status)
		})
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		status db.ApplicationStatus
		ok     bool
	}{
		{db.StatusDraft, true},
		{db.StatusReady, true},
		{db.StatusSending, false},
		{db.StatusSent, false},
		{db.StatusFailed, false},
		{db.StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture(fastOptions())
			u := f.store.addUser()
			a := f.store.addApp(u, tt.status)

			got, err := f.svc.Cancel(ctx, u.ID, a.ID)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, db.StatusCancelled, got.Status)
				return
			}
			var it *ErrInvalidTransition
			require.ErrorAs(t, err, &it)
			assert.Equal(t, tt.status, f.store.app(a.ID).Status)
		})
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("failed goes back to ready", func(t *testing.T) {
		f := newFixture(fastOptions())
		u := f.store.addUser()
		a := f.store.addApp(u, db.StatusFailed)
		a.RetryCount = 1

		got, err := f.svc.Retry(ctx, u.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, db.StatusReady, got.Status)
		assert.Equal(t, 1, got.RetryCount)
	})

	t.Run("retry limit", func(t *testing.T) {
		f := newFixture(fastOptions())
		u := f.store.addUser()
		a := f.store.addApp(u, db.StatusFailed)
		a.RetryCount = 3

		_, err := f.svc.Retry(ctx, u.ID, a.ID)
		var rl *ErrRetryLimit
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 3, rl.Max)
		assert.Equal(t, db.StatusFailed, f.store.app(a.ID).Status)
	})

	t.Run("only failed applications", func(t *testing.T) {
		f := newFixture(fastOptions())
		u := f.store.addUser()
		a := f.store.addApp(u, db.StatusSent)

		_, err := f.svc.Retry(ctx, u.ID, a.ID)
		var it *ErrInvalidTransition
		require.ErrorAs(t, err, &it)
	})
}
