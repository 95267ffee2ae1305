package deletion

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtchamps/courtchamps/internal/identity"
	"github.com/courtchamps/courtchamps/internal/logging"
	"github.com/courtchamps/courtchamps/internal/notification"
	"github.com/courtchamps/courtchamps/internal/profile"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (n *captureNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *captureNotifier) last() notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type flakyDirectory struct {
	identity.Repository
	lookups   atomic.Int32
	deleteErr error
}

func (d *flakyDirectory) FindByEmail(ctx context.Context, email string) (identity.Account, error) {
	d.lookups.Add(1)
	return d.Repository.FindByEmail(ctx, email)
}

func (d *flakyDirectory) Delete(ctx context.Context, id string) error {
	if d.deleteErr != nil {
		return d.deleteErr
	}
	return d.Repository.Delete(ctx, id)
}

type flakyProfiles struct {
	*profile.MemoryRepository
	err error
}

func (p *flakyProfiles) DeleteFor(ctx context.Context, account identity.Account) error {
	if p.err != nil {
		return p.err
	}
	return p.MemoryRepository.DeleteFor(ctx, account)
}

type fixture struct {
	svc       *Service
	directory *flakyDirectory
	profiles  *flakyProfiles
	tokens    TokenStore
	notifier  *captureNotifier
	cleanups  CleanupQueue
	now       time.Time
}

func newFixture(t *testing.T, channel Channel) *fixture {
	t.Helper()
	f := &fixture{
		directory: &flakyDirectory{Repository: identity.NewMemoryRepository()},
		profiles:  &flakyProfiles{MemoryRepository: profile.NewMemoryRepository(profile.ByAccountID)},
		tokens:    NewMemoryStore(),
		notifier:  &captureNotifier{},
		cleanups:  NewMemoryCleanupQueue(),
		now:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(Deps{
		Directory: f.directory,
		Profiles:  f.profiles,
		Tokens:    f.tokens,
		Notifier:  f.notifier,
		Cleanups:  f.cleanups,
		Logger:    logging.Discard(),
	}, Options{
		Channel:         channel,
		ConfirmationURL: "https://courtchamps.com/accounts/delete-account",
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return f.now }
	f.svc = svc
	return f
}

func (f *fixture) seed(t *testing.T, email string) identity.Account {
	t.Helper()
	ctx := context.Background()
	account, err := identity.NewService(f.directory.Repository).Register(ctx, email)
	require.NoError(t, err)
	require.NoError(t, f.profiles.Create(ctx, profile.Profile{AccountID: account.ID, Email: account.Email, CreatedAt: f.now}))
	return account
}

func TestRequestUnknownAccount(t *testing.T) {
	f := newFixture(t, ChannelDirect)

	_, err := f.svc.Request(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, NotFound)
	assert.Equal(t, MsgAccountNotFound, clientMessage(err, ""))

	_, err = f.tokens.Get(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, ChannelDirect)

	_, err := f.svc.Request(context.Background(), "   ")
	require.ErrorIs(t, err, ValidationError)
	assert.Equal(t, MsgEmailRequired, clientMessage(err, ""))

	_, err = f.svc.Request(context.Background(), "not-an-email")
	require.ErrorIs(t, err, ValidationError)
	assert.Equal(t, MsgInvalidEmail, clientMessage(err, ""))

	assert.Zero(t, f.directory.lookups.Load(), "directory must not be contacted for invalid input")
}

func TestRequestDirectIssuesToken(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	f.seed(t, "user@example.com")

	res, err := f.svc.Request(context.Background(), "User@Example.com ")
	require.NoError(t, err)
	require.Len(t, res.SecureToken, SecretLength)
	assert.Regexp(t, `^[0-9a-f]+$`, res.SecureToken)
	assert.Empty(t, f.notifier.sent)

	token, err := f.tokens.Get(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, HashSecret(res.SecureToken), token.SecretHash)
	assert.Equal(t, f.now.Add(30*time.Minute), token.ExpiresAt)
}

func TestRequestEmailChannelSendsLink(t *testing.T) {
	f := newFixture(t, ChannelEmail)
	f.seed(t, "user@example.com")

	res, err := f.svc.Request(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, res.SecureToken)
	assert.Equal(t, MsgEmailSent, res.Message)

	msg := f.notifier.last()
	assert.Equal(t, "user@example.com", msg.Destination)
	assert.Equal(t, notification.KindDeletionConfirmation, msg.Kind)

	link := extractLink(t, msg.Body)
	assert.Contains(t, msg.HTML, link)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", u.Query().Get("email"))
	secret := u.Query().Get("securetoken")
	require.Len(t, secret, SecretLength)

	require.NoError(t, f.svc.Confirm(context.Background(), u.Query().Get("email"), secret))
}

func TestRequestDispatchFailure(t *testing.T) {
	f := newFixture(t, ChannelEmail)
	f.seed(t, "user@example.com")
	f.notifier.err = errors.New("smtp down")

	_, err := f.svc.Request(context.Background(), "user@example.com")
	require.ErrorIs(t, err, DependencyFailure)
	assert.Equal(t, MsgDispatchFailed, clientMessage(err, ""))
}

func TestRequestReplacesPreviousToken(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	f.seed(t, "user@example.com")
	ctx := context.Background()

	first, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)
	second, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first.SecureToken, second.SecureToken)

	require.ErrorIs(t, f.svc.Confirm(ctx, "user@example.com", first.SecureToken), InvalidOrExpiredToken)
	require.NoError(t, f.svc.Confirm(ctx, "user@example.com", second.SecureToken))
}

func TestConfirmDeletesEverythingOnce(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	account := f.seed(t, "user@example.com")
	ctx := context.Background()

	res, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)

	require.NoError(t, f.svc.Confirm(ctx, "user@example.com", res.SecureToken))

	_, err = f.directory.FindByEmail(ctx, "user@example.com")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.Equal(t, 0, f.profiles.Count(account))
	_, err = f.tokens.Get(ctx, "user@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	err = f.svc.Confirm(ctx, "user@example.com", res.SecureToken)
	require.ErrorIs(t, err, InvalidOrExpiredToken)
	assert.Equal(t, MsgInvalidToken, clientMessage(err, ""))
}

func TestConfirmWrongSecretLeavesAccount(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	f.seed(t, "user@example.com")
	ctx := context.Background()

	res, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Confirm(ctx, "user@example.com", "0123456789abcdef0123456789abcdef"), InvalidOrExpiredToken)
	require.ErrorIs(t, f.svc.Confirm(ctx, "user@example.com", ""), InvalidOrExpiredToken)
	require.ErrorIs(t, f.svc.Confirm(ctx, "other@example.com", res.SecureToken), InvalidOrExpiredToken)

	_, err = f.directory.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)

	// A failed attempt does not burn the token.
	require.NoError(t, f.svc.Confirm(ctx, "user@example.com", res.SecureToken))
}

func TestConfirmExpiredToken(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	f.seed(t, "user@example.com")
	ctx := context.Background()

	res, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	err = f.svc.Confirm(ctx, "user@example.com", res.SecureToken)
	require.ErrorIs(t, err, InvalidOrExpiredToken)
	assert.Equal(t, MsgInvalidToken, clientMessage(err, ""))

	_, err = f.directory.FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
}

func TestConfirmRequiresEmail(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	err := f.svc.Confirm(context.Background(), "", "abc")
	require.ErrorIs(t, err, ValidationError)
	assert.Equal(t, MsgEmailRequired, clientMessage(err, ""))
}

func TestConfirmAccountDeleteFailureReinstatesToken(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	f.seed(t, "user@example.com")
	ctx := context.Background()

	res, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)

	f.directory.deleteErr = errors.New("directory unavailable")
	err = f.svc.Confirm(ctx, "user@example.com", res.SecureToken)
	require.ErrorIs(t, err, DependencyFailure)
	assert.Equal(t, MsgDeleteFailed, clientMessage(err, ""))

	_, err = f.tokens.Get(ctx, "user@example.com")
	require.NoError(t, err, "token should be reinstated")

	f.directory.deleteErr = nil
	require.NoError(t, f.svc.Confirm(ctx, "user@example.com", res.SecureToken))
}

func TestConfirmProfileFailureIsQueued(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	account := f.seed(t, "user@example.com")
	ctx := context.Background()

	res, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)

	f.profiles.err = errors.New("document store unavailable")
	require.NoError(t, f.svc.Confirm(ctx, "user@example.com", res.SecureToken))

	pending, err := f.cleanups.Pending(ctx, f.now, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, account.ID, pending[0].AccountID)
	assert.Contains(t, pending[0].LastError, "document store unavailable")

	reconciler := NewReconciler(f.cleanups, f.profiles, logging.Discard())
	reconciler.now = func() time.Time { return f.now }
	resolved, err := reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, resolved)

	// Not due again until the backoff has passed.
	pending, _ = f.cleanups.Pending(ctx, f.now, 0, 10)
	assert.Empty(t, pending)
	pending, _ = f.cleanups.Pending(ctx, f.now.Add(time.Minute), 0, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	f.profiles.err = nil
	f.now = f.now.Add(time.Minute)
	resolved, err = reconciler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, f.profiles.Count(account))
	pending, _ = f.cleanups.Pending(ctx, f.now.Add(time.Hour), 0, 10)
	assert.Empty(t, pending)
}

// stuckProfiles fails for every account except healthy.
type stuckProfiles struct {
	*profile.MemoryRepository
	healthy string
}

func (p *stuckProfiles) DeleteFor(ctx context.Context, account identity.Account) error {
	if account.ID != p.healthy {
		return errors.New("profile locked")
	}
	return p.MemoryRepository.DeleteFor(ctx, account)
}

func TestReconcilerFailingBacklogDoesNotStarveNewCleanups(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryCleanupQueue()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < reconcileBatchSize+5; i++ {
		require.NoError(t, queue.Enqueue(ctx, PendingCleanup{
			AccountID: "stuck-" + strconv.Itoa(i),
			CreatedAt: start.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, queue.Enqueue(ctx, PendingCleanup{
		AccountID: "healthy",
		CreatedAt: start.Add(time.Hour),
	}))

	profiles := &stuckProfiles{MemoryRepository: profile.NewMemoryRepository(profile.ByAccountID), healthy: "healthy"}
	require.NoError(t, profiles.Create(ctx, profile.Profile{AccountID: "healthy"}))

	now := start.Add(2 * time.Hour)
	reconciler := NewReconciler(queue, profiles, logging.Discard())
	reconciler.now = func() time.Time { return now }

	resolved := 0
	for run := 0; run < 3; run++ {
		n, err := reconciler.Run(ctx)
		require.NoError(t, err)
		resolved += n
		now = now.Add(30 * time.Second)
	}
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, profiles.Count(identity.Account{ID: "healthy"}))
}

func TestReconcilerStopsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryCleanupQueue()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, queue.Enqueue(ctx, PendingCleanup{AccountID: "stuck", CreatedAt: now}))

	profiles := &stuckProfiles{MemoryRepository: profile.NewMemoryRepository(profile.ByAccountID)}
	reconciler := NewReconciler(queue, profiles, logging.Discard())
	reconciler.now = func() time.Time { return now }

	for i := 0; i < reconcileMaxAttempts+3; i++ {
		_, err := reconciler.Run(ctx)
		require.NoError(t, err)
		now = now.Add(reconcileMaxBackoff)
	}

	pending, err := queue.Pending(ctx, now, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, reconcileMaxAttempts, pending[0].Attempts)
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, retryBackoff(1))
	assert.Equal(t, 2*time.Minute, retryBackoff(2))
	assert.Equal(t, 8*time.Minute, retryBackoff(4))
	assert.Equal(t, reconcileMaxBackoff, retryBackoff(40))
}

func TestConfirmConcurrentAttemptsSucceedOnce(t *testing.T) {
	f := newFixture(t, ChannelDirect)
	f.seed(t, "user@example.com")
	ctx := context.Background()

	res, err := f.svc.Request(ctx, "user@example.com")
	require.NoError(t, err)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.Confirm(ctx, "user@example.com", res.SecureToken); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, successes.Load())
}

func TestNewServiceRejectsBadOptions(t *testing.T) {
	deps := Deps{
		Directory: identity.NewMemoryRepository(),
		Profiles:  profile.NewMemoryRepository(profile.ByAccountID),
		Tokens:    NewMemoryStore(),
	}
	_, err := NewService(deps, Options{Channel: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = NewService(deps, Options{Channel: ChannelEmail, ConfirmationURL: "https://courtchamps.com"})
	assert.Error(t, err, "email channel without notifier")

	_, err = NewService(Deps{}, Options{Channel: ChannelDirect})
	assert.Error(t, err)
}

func TestSweeperPurgesExpiredTokens(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Put(ctx, Token{Email: "old@example.com", SecretHash: "a", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Put(ctx, Token{Email: "new@example.com", SecretHash: "b", ExpiresAt: now.Add(time.Minute)}))

	sweeper := NewTokenSweeper(store.(ExpiredPurger), logging.Discard())
	sweeper.now = func() time.Time { return now }
	n, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.Get(ctx, "old@example.com")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = store.Get(ctx, "new@example.com")
	assert.NoError(t, err)
}

func extractLink(t *testing.T, body string) string {
	t.Helper()
	const marker = "open this link: "
	_, rest, found := strings.Cut(body, marker)
	require.True(t, found, "link not found in body")
	link, _, _ := strings.Cut(rest, "\n")
	return link
}
