package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/courtchamps/courtchamps/internal/identity"
	"github.com/courtchamps/courtchamps/internal/notification"
	"github.com/courtchamps/courtchamps/internal/profile"
)

// Channel is how an issued secret reaches the user.
type Channel string

const (
	// ChannelDirect returns the secret in the request response.
	ChannelDirect Channel = "direct"
	// ChannelEmail mails a confirmation link and returns only a message.
	ChannelEmail Channel = "email"
)

// DefaultTokenTTL is the lifetime of a deletion token.
const DefaultTokenTTL = 30 * time.Minute

// Options tune the workflow.
type Options struct {
	Channel         Channel
	TokenTTL        time.Duration
	ConfirmationURL string
	AppName         string
}

// Deps are the capabilities the workflow orchestrates. Notifier and Cleanups
// may be nil.
type Deps struct {
	Directory identity.Repository
	Profiles  profile.Repository
	Tokens    TokenStore
	Notifier  notification.Notifier
	Cleanups  CleanupQueue
	Logger    *slog.Logger
}

// Service runs the request/confirm deletion handshake.
type Service struct {
	deps     Deps
	opts     Options
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds a deletion workflow.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Directory == nil || deps.Profiles == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("directory, profiles and tokens are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	switch opts.Channel {
	case "":
		opts.Channel = ChannelEmail
	case ChannelDirect, ChannelEmail:
	default:
		return nil, fmt.Errorf("unknown confirmation channel %q", opts.Channel)
	}
	if opts.Channel == ChannelEmail {
		if deps.Notifier == nil {
			return nil, fmt.Errorf("email channel requires a notifier")
		}
		if _, err := url.Parse(opts.ConfirmationURL); err != nil || opts.ConfirmationURL == "" {
			return nil, fmt.Errorf("email channel requires a valid confirmation url")
		}
	}
	return &Service{deps: deps, opts: opts, validate: validator.New(), now: time.Now}, nil
}

// Channel reports the configured confirmation channel.
func (s *Service) Channel() Channel { return s.opts.Channel }

// Request issues a deletion token for email and delivers it over the
// configured channel. Any previous token for the email is replaced.
func (s *Service) Request(ctx context.Context, email string) (RequestResult, error) {
	channel := s.opts.Channel
	email = NormalizeEmail(email)
	if email == "" {
		return RequestResult{}, newError(ValidationError, MsgEmailRequired, nil)
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return RequestResult{}, newError(ValidationError, MsgInvalidEmail, err)
	}

	logger := s.deps.Logger.With(slog.String("email", email))

	if _, err := s.deps.Directory.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return RequestResult{}, newError(NotFound, MsgAccountNotFound, err)
		}
		logger.Error("deletion request: account lookup failed", slog.Any("error", err))
		return RequestResult{}, newError(DependencyFailure, MsgStoreFailed, err)
	}

	secret, err := NewSecret()
	if err != nil {
		return RequestResult{}, newError(Unknown, MsgStoreFailed, err)
	}
	token := Token{
		Email:      email,
		SecretHash: HashSecret(secret),
		ExpiresAt:  s.now().Add(s.opts.TokenTTL).UTC(),
	}
	if err := s.deps.Tokens.Put(ctx, token); err != nil {
		logger.Error("deletion request: store token failed", slog.Any("error", err))
		return RequestResult{}, newError(DependencyFailure, MsgStoreFailed, err)
	}

	if channel == ChannelDirect {
		logger.Info("deletion token issued", slog.String("channel", string(channel)))
		return RequestResult{SecureToken: secret}, nil
	}

	if s.deps.Notifier == nil {
		return RequestResult{}, newError(DependencyFailure, MsgDispatchFailed, errors.New("no notifier configured"))
	}
	msg, err := s.confirmationMessage(email, secret, token.ExpiresAt)
	if err != nil {
		return RequestResult{}, newError(Unknown, MsgStoreFailed, err)
	}
	if err := s.deps.Notifier.Send(ctx, msg); err != nil {
		logger.Error("deletion request: send confirmation failed", slog.Any("error", err))
		return RequestResult{}, newError(DependencyFailure, MsgDispatchFailed, err)
	}

	logger.Info("deletion token issued", slog.String("channel", string(channel)))
	return RequestResult{Message: MsgEmailSent}, nil
}

// Confirm consumes the token for email and, if secret matches an unexpired
// token, deletes the account and its profile.
func (s *Service) Confirm(ctx context.Context, email, secret string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return newError(ValidationError, MsgEmailRequired, nil)
	}
	if secret == "" {
		return errInvalidToken
	}

	logger := s.deps.Logger.With(slog.String("email", email))

	token, err := s.deps.Tokens.Consume(ctx, email, HashSecret(secret), s.now())
	if err != nil {
		if errors.Is(err, InvalidOrExpiredToken) {
			return errInvalidToken
		}
		logger.Error("deletion confirm: consume token failed", slog.Any("error", err))
		return newError(DependencyFailure, MsgDeleteFailed, err)
	}

	account, err := s.deps.Directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return newError(NotFound, MsgAccountNotFound, err)
		}
		s.reinstate(ctx, logger, token)
		logger.Error("deletion confirm: account lookup failed", slog.Any("error", err))
		return newError(DependencyFailure, MsgDeleteFailed, err)
	}
	logger = logger.With(slog.String("account_id", account.ID))

	if err := s.deps.Directory.Delete(ctx, account.ID); err != nil {
		s.reinstate(ctx, logger, token)
		logger.Error("deletion confirm: delete account failed", slog.Any("error", err))
		return newError(DependencyFailure, MsgDeleteFailed, err)
	}

	// The account is gone; from here on failures are repaired asynchronously.
	if err := s.deps.Profiles.DeleteFor(ctx, account); err != nil {
		logger.Error("deletion confirm: delete profile failed; queued for reconciliation", slog.Any("error", err))
		s.enqueueCleanup(ctx, logger, account, err)
	}

	logger.Info("account deleted")
	return nil
}

// reinstate puts back a consumed token after the account could not be
// deleted, so the emailed link keeps working until it expires.
func (s *Service) reinstate(ctx context.Context, logger *slog.Logger, token Token) {
	if err := s.deps.Tokens.Put(context.WithoutCancel(ctx), token); err != nil {
		logger.Warn("deletion confirm: reinstate token failed", slog.Any("error", err))
	}
}

func (s *Service) enqueueCleanup(ctx context.Context, logger *slog.Logger, account identity.Account, cause error) {
	if s.deps.Cleanups == nil {
		return
	}
	err := s.deps.Cleanups.Enqueue(context.WithoutCancel(ctx), PendingCleanup{
		AccountID: account.ID,
		Email:     account.Email,
		LastError: cause.Error(),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		logger.Error("deletion confirm: enqueue cleanup failed", slog.Any("error", err))
	}
}

func (s *Service) confirmationMessage(email, secret string, expiresAt time.Time) (notification.Message, error) {
	link, err := ConfirmationLink(s.opts.ConfirmationURL, email, secret)
	if err != nil {
		return notification.Message{}, err
	}
	appName := s.opts.AppName
	if appName == "" {
		appName = "CourtChamps"
	}
	minutes := int(s.opts.TokenTTL.Minutes())
	return notification.Message{
		Kind:        notification.KindDeletionConfirmation,
		Destination: email,
		Subject:     appName + " - Confirm Account Deletion",
		Body:        fmt.Sprintf(confirmationEmailText, appName, link, minutes),
		HTML:        fmt.Sprintf(confirmationEmailHTML, appName, link, minutes, expiresAt.Year()),
	}, nil
}

// ConfirmationLink appends the email and secret to base as the query
// parameters read by the web landing page.
func ConfirmationLink(base, email, secret string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("securetoken", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
