// Package lock runs work under a durable named lock so only one process in
// the cluster does it at a time.
package lock

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld means another holder is running under the lock and has not timed out.
type ErrLockHeld struct {
	Name string
}

func (e *ErrLockHeld) Error() string {
	return fmt.Sprintf("lock %s is held by another run", e.Name)
}

// Store is the durable lock table.
type Store interface {
	AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, holder string) error
}

// Runner acquires locks on behalf of this process.
type Runner struct {
	store  Store
	holder string
}

// NewRunner creates a runner with a holder id unique to this process.
func NewRunner(store Store) *Runner {
	host, _ := os.Hostname()
	return &Runner{store: store, holder: fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString()[:8])}
}

// Holder returns the id written into lock rows.
func (r *Runner) Holder() string {
	return r.holder
}

// Run calls fn while holding the named lock. A lock whose holder crashed is
// reclaimed once its timeout passes; there is no heartbeat, so timeout must
// exceed fn's worst-case duration. The lock is released even if fn fails or
// panics.
func (r *Runner) Run(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ok, err := r.store.AcquireLock(ctx, name, r.holder, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return &ErrLockHeld{Name: name}
	}

	defer func() {
		// Release even when the caller's context is already done.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.store.ReleaseLock(releaseCtx, name, r.holder); err != nil {
			log.Printf("[lock] failed to release %s, it can be reclaimed after %s: %v", name, timeout, err)
		}
	}()

	return fn(ctx)
}
