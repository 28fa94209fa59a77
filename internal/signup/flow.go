package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marocdeals/marocdeals_api/internal/account"
	"github.com/marocdeals/marocdeals_api/internal/logging"
	"github.com/marocdeals/marocdeals_api/internal/notification"
	"github.com/marocdeals/marocdeals_api/internal/verification"
)

// State is where an identity stands in the signup flow.
type State int

const (
	AwaitingCode State = iota
	AwaitingVerification
	Verified
)

func (s State) String() string {
	switch s {
	case AwaitingCode:
		return "awaiting_code"
	case AwaitingVerification:
		return "awaiting_verification"
	case Verified:
		return "verified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrDeliveryFailed means the code was issued but could not be sent. The code
	// stays valid; the caller should ask the user to try again.
	ErrDeliveryFailed = errors.New("verification code delivery failed")
	// ErrNotVerified means CreateAccount was called without a live verification.
	ErrNotVerified = errors.New("email verification required before account creation")
)

// Recorder receives flow events, typically for metrics.
type Recorder interface {
	CodeIssued()
	CodeChecked(outcome string)
	DeliveryFailed()
	AccountCreated()
}

type nopRecorder struct{}

func (nopRecorder) CodeIssued()        {}
func (nopRecorder) CodeChecked(string) {}
func (nopRecorder) DeliveryFailed()    {}
func (nopRecorder) AccountCreated()    {}

// Options configures a Flow. Zero values select defaults.
type Options struct {
	// CodeTTL is quoted in the email and bounds how long AwaitingVerification is tracked.
	CodeTTL  time.Duration
	// GrantTTL is how long a successful verification may be turned into an account.
	GrantTTL time.Duration
	Clock    verification.Clock
	Logger   *slog.Logger
	Recorder Recorder
	// Grants, when set, shares Verified grants between instances so signup can
	// complete on any of them. Nil keeps grants in this Flow only.
	Grants   Grants
}

type progress struct {
	state State
	since time.Time
}

// Flow sequences code issuance, verification and account creation per identity.
// It never retries on its own; every retry is driven by the caller.
type Flow struct {
	store    verification.Store
	notifier notification.Notifier
	accounts *account.Service
	opts     Options

	mu     sync.Mutex
	states map[string]progress
}

// NewFlow wires a Flow.
func NewFlow(store verification.Store, notifier notification.Notifier, accounts *account.Service, opts Options) *Flow {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = verification.DefaultTTL
	}
	if opts.GrantTTL <= 0 {
		opts.GrantTTL = 15 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = verification.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Flow{
		store:    store,
		notifier: notifier,
		accounts: accounts,
		opts:     opts,
		states:   make(map[string]progress),
	}
}

// State reports the current state for identity.
func (f *Flow) State(identity string) State {
	key := verification.NormalizeIdentity(identity)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked(key, f.opts.Clock.Now())
}

func (f *Flow) stateLocked(key string, now time.Time) State {
	p, ok := f.states[key]
	if !ok {
		return AwaitingCode
	}
	if p.state == Verified && now.After(p.since.Add(f.opts.GrantTTL)) {
		delete(f.states, key)
		return AwaitingCode
	}
	return p.state
}

func (f *Flow) set(key string, s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s == AwaitingCode {
		delete(f.states, key)
		return
	}
	f.states[key] = progress{state: s, since: f.opts.Clock.Now()}
}

// keepPending records AwaitingVerification without restarting its clock.
func (f *Flow) keepPending(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.states[key]; ok && p.state == AwaitingVerification {
		return
	}
	f.states[key] = progress{state: AwaitingVerification, since: f.opts.Clock.Now()}
}

// RequestCode issues a code and sends it to identity. Issuance and delivery are
// not transactional: when delivery fails the issued code stays valid and
// ErrDeliveryFailed is returned.
func (f *Flow) RequestCode(ctx context.Context, identity string) error {
	key := verification.NormalizeIdentity(identity)
	log := f.opts.Logger.With(slog.String("identity", logging.RedactEmail(key)))

	code, err := f.store.Issue(ctx, key)
	if err != nil {
		log.Error("verification.issue failed", slog.Any("error", err))
		return err
	}
	f.set(key, AwaitingVerification)
	f.revoke(ctx, key, log)
	f.opts.Recorder.CodeIssued()

	if err := f.notifier.Send(ctx, notification.VerificationCodeMessage(key, code, f.opts.CodeTTL)); err != nil {
		f.opts.Recorder.DeliveryFailed()
		log.Error("verification.delivery failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	log.Info("verification.code sent")
	return nil
}

// SubmitCode checks code for identity. On success the identity becomes Verified;
// on a mismatch it stays AwaitingVerification; on any terminal outcome it goes
// back to AwaitingCode and a new code must be requested.
func (f *Flow) SubmitCode(ctx context.Context, identity, code string) error {
	key := verification.NormalizeIdentity(identity)
	log := f.opts.Logger.With(slog.String("identity", logging.RedactEmail(key)))

	err := f.store.Check(ctx, key, code)
	switch {
	case err == nil:
		f.set(key, Verified)
		if f.opts.Grants != nil {
			if gerr := f.opts.Grants.Grant(ctx, key, f.opts.GrantTTL); gerr != nil {
				log.Error("signup.grant store failed, grant kept on this instance only", slog.Any("error", gerr))
			}
		}
		f.opts.Recorder.CodeChecked("ok")
		log.Info("verification.code verified")
		return nil
	case errors.Is(err, verification.ErrUnavailable):
		log.Error("verification.check failed", slog.Any("error", err))
		return err
	case verification.Retryable(err):
		f.keepPending(key)
	default:
		f.set(key, AwaitingCode)
	}
	reason := verification.Reason(err)
	f.opts.Recorder.CodeChecked(reason)
	log.Info("verification.code rejected", slog.String("reason", reason))
	return err
}

// Credentials are the account details chosen by the user at signup.
type Credentials struct {
	Username string
	Password string
}

// CreateAccount persists a verified account for identity. It requires a live
// Verified state; the grant is consumed only when the account is created.
func (f *Flow) CreateAccount(ctx context.Context, identity string, creds Credentials) (account.Account, error) {
	key := verification.NormalizeIdentity(identity)

	verified, err := f.verified(ctx, key)
	if err != nil {
		return account.Account{}, err
	}
	if !verified {
		return account.Account{}, ErrNotVerified
	}

	acc, err := f.accounts.Register(ctx, account.NewAccount{
		Username: creds.Username,
		Email:    key,
		Password: creds.Password,
		Verified: true,
	})
	if err != nil {
		return account.Account{}, err
	}

	f.set(key, AwaitingCode)
	f.revoke(ctx, key, f.opts.Logger)
	f.opts.Recorder.AccountCreated()
	f.opts.Logger.Info("signup.account created",
		slog.String("account_id", acc.ID),
		slog.String("identity", logging.RedactEmail(key)),
	)
	return acc, nil
}

// verified reports whether identity holds a live grant, here or in the shared
// Grants. A grant consumed on another instance may still be live locally; the
// unique email in the account repository keeps that from creating a second account.
func (f *Flow) verified(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	local := f.stateLocked(key, f.opts.Clock.Now()) == Verified
	f.mu.Unlock()
	if local || f.opts.Grants == nil {
		return local, nil
	}

	ok, err := f.opts.Grants.Granted(ctx, key)
	if err != nil {
		f.opts.Logger.Error("signup.grant lookup failed", slog.Any("error", err))
		return false, fmt.Errorf("%w: %v", verification.ErrUnavailable, err)
	}
	return ok, nil
}

func (f *Flow) revoke(ctx context.Context, key string, log *slog.Logger) {
	if f.opts.Grants == nil {
		return
	}
	if err := f.opts.Grants.Revoke(ctx, key); err != nil {
		log.Warn("signup.grant revoke failed", slog.Any("error", err))
	}
}

// Sweep drops flow state nobody can use any more: verified grants past GrantTTL
// and pending verifications whose code has expired.
func (f *Flow) Sweep() int {
	now := f.opts.Clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for key, p := range f.states {
		ttl := f.opts.CodeTTL
		if p.state == Verified {
			ttl = f.opts.GrantTTL
		}
		if now.After(p.since.Add(ttl)) {
			delete(f.states, key)
			removed++
		}
	}
	return removed
}
