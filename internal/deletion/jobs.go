package deletion

import (
	"context"
	"log/slog"
	"time"

	"github.com/courtchamps/courtchamps/internal/identity"
	"github.com/courtchamps/courtchamps/internal/profile"
)

const (
	reconcileBatchSize   = 100
	reconcileMaxAttempts = 12
	reconcileBaseBackoff = time.Minute
	reconcileMaxBackoff  = 6 * time.Hour
)

// Reconciler retries profile deletions that failed after their account was
// already removed. Deleting a profile that is already gone is a no-op, so a
// cleanup can be retried any number of times. Failed cleanups back off
// exponentially and are left for an operator after reconcileMaxAttempts.
type Reconciler struct {
	queue    CleanupQueue
	profiles profile.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler builds a reconciler over queue.
func NewReconciler(queue CleanupQueue, profiles profile.Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{queue: queue, profiles: profiles, logger: logger, now: time.Now}
}

// Run processes one batch of due cleanups and reports how many were resolved.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	now := r.now().UTC()
	pending, err := r.queue.Pending(ctx, now, reconcileMaxAttempts, reconcileBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, c := range pending {
		account := identity.Account{ID: c.AccountID, Email: c.Email}
		if err := r.profiles.DeleteFor(ctx, account); err != nil {
			attempts := c.Attempts + 1
			logger := r.logger.With(
				slog.String("account_id", c.AccountID),
				slog.Int("attempts", attempts),
				slog.Any("error", err),
			)
			if attempts >= reconcileMaxAttempts {
				logger.Error("reconcile: giving up on profile cleanup")
			} else {
				logger.Warn("reconcile: profile delete failed")
			}
			if qErr := r.queue.RecordFailure(ctx, c.ID, err, now.Add(retryBackoff(attempts))); qErr != nil {
				return resolved, qErr
			}
			continue
		}
		if err := r.queue.Resolve(ctx, c.ID); err != nil {
			return resolved, err
		}
		resolved++
	}

	if len(pending) > 0 {
		r.logger.Info("reconcile completed", slog.Int("pending", len(pending)), slog.Int("resolved", resolved))
	}
	return resolved, nil
}

// retryBackoff is the delay after the given number of failed attempts.
func retryBackoff(attempts int) time.Duration {
	d := reconcileBaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= reconcileMaxBackoff {
			return reconcileMaxBackoff
		}
	}
	return d
}

// TokenSweeper purges expired tokens from stores that do not expire them on
// their own. Confirmation never relies on it: expiry is checked on every read.
type TokenSweeper struct {
	store  ExpiredPurger
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenSweeper builds a sweeper over store.
func NewTokenSweeper(store ExpiredPurger, logger *slog.Logger) *TokenSweeper {
	return &TokenSweeper{store: store, logger: logger, now: time.Now}
}

// Run deletes every token expired at the current time.
func (s *TokenSweeper) Run(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("expired deletion tokens purged", slog.Int64("count", n))
	return n, nil
}
