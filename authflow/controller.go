// Package authflow runs the four authentication flows of one client:
// standard login, standard signup with email confirmation, company SSO
// initiation and SSO verification.
package authflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jrsteele09/go-agent-chat/credstore"
	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	msgCheckEmail      = "Please check your email for verification code"
	msgAccountVerified = "Account verified! Please sign in."
	msgSSOCodeSent     = "Verification code sent to your email"
)

// PendingSSOStore is the client-scoped holder of in-flight SSO secrets.
type PendingSSOStore interface {
	SavePendingSSO(ctx context.Context, pending credstore.PendingSSO) error
	PendingSSO(ctx context.Context) (*credstore.PendingSSO, error)
	ClearPendingSSO(ctx context.Context) error
}

// Refresher materializes the Session after a successful sign in.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// PendingSignup is held between signup submission and confirmation.
type PendingSignup struct {
	Email    string
	Username string
	Password string
}

// SignupForm is what the user submits on the signup surface.
type SignupForm struct {
	Email           string
	Name            string
	Password        string
	ConfirmPassword string
}

// Outcome is the result of one controller call.
type Outcome struct {
	Flow    Flow
	State   State
	Reason  Reason
	Message string
	// Email is the address to display on verification screens.
	Email string
	// RestartSSO tells the caller to go back to SSO initiation.
	RestartSSO bool
}

// Failed reports whether the outcome carries a failure reason.
func (o Outcome) Failed() bool {
	return o.Reason != ReasonNone
}

// TransitionHook observes every state change.
type TransitionHook func(flow Flow, from, to State, reason Reason)

type Controller struct {
	gateway identity.Gateway
	pending PendingSSOStore
	session Refresher
	domains VerifiedDomains
	limiter *rate.Limiter
	hooks   []TransitionHook

	newUsername func() string
	newPassword func() (string, error)

	busy sync.Mutex // held for the duration of a gateway-calling entry point

	mu     sync.Mutex
	states map[Flow]State
	signup *PendingSignup
}

type Option func(*Controller)

// WithAttemptLimiter bounds how often gateway-calling entry points run.
func WithAttemptLimiter(l *rate.Limiter) Option {
	return func(c *Controller) {
		c.limiter = l
	}
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, hook)
	}
}

// WithGenerators replaces the username and password sources (primarily for testing)
func WithGenerators(username func() string, password func() (string, error)) Option {
	return func(c *Controller) {
		if username != nil {
			c.newUsername = username
		}
		if password != nil {
			c.newPassword = password
		}
	}
}

func New(gateway identity.Gateway, pending PendingSSOStore, session Refresher, domains VerifiedDomains, options ...Option) *Controller {
	c := &Controller{
		gateway:     gateway,
		pending:     pending,
		session:     session,
		domains:     domains,
		newUsername: NewUsername,
		newPassword: GeneratePassword,
		states:      make(map[Flow]State),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// State returns the current state of flow.
func (c *Controller) State(flow Flow) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[flow]
}

// SSOEnabled reports whether any verified domain is configured.
func (c *Controller) SSOEnabled() bool {
	return c.domains.Enabled()
}

// PendingSignupEmail returns the email awaiting confirmation, if any.
func (c *Controller) PendingSignupEmail() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signup == nil {
		return "", false
	}
	return c.signup.Email, true
}

// PendingSSOEmail returns the email of an outstanding SSO verification.
func (c *Controller) PendingSSOEmail(ctx context.Context) (string, bool) {
	p, err := c.pending.PendingSSO(ctx)
	if err != nil {
		return "", false
	}
	return p.Email, true
}

func (c *Controller) transition(flow Flow, to State, reason Reason) {
	c.mu.Lock()
	from := c.states[flow]
	c.states[flow] = to
	c.mu.Unlock()

	for _, hook := range c.hooks {
		hook(flow, from, to, reason)
	}
}

func (c *Controller) fail(flow Flow, state State, reason Reason) Outcome {
	c.transition(flow, state, reason)
	return Outcome{Flow: flow, State: state, Reason: reason, Message: reason.Message()}
}

// guard is taken by entry points that reach the gateway. It rejects
// concurrent submissions and enforces the attempt limiter without touching
// the flow state.
func (c *Controller) guard(flow Flow) (release func(), rejected *Outcome) {
	if !c.busy.TryLock() {
		return nil, &Outcome{Flow: flow, State: c.State(flow), Reason: ReasonBusy, Message: ReasonBusy.Message()}
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.busy.Unlock()
		return nil, &Outcome{Flow: flow, State: c.State(flow), Reason: ReasonRateLimited, Message: ReasonRateLimited.Message()}
	}
	return c.busy.Unlock, nil
}

// Login runs Standard Login: Idle -> Submitting -> {Authenticated | Failed}.
func (c *Controller) Login(ctx context.Context, email, password string) Outcome {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return c.fail(FlowLogin, StateFailed, ReasonMissingFields)
	}

	release, rejected := c.guard(FlowLogin)
	if rejected != nil {
		return *rejected
	}
	defer release()

	c.transition(FlowLogin, StateSubmitting, ReasonNone)
	res, err := c.gateway.SignIn(ctx, email, password)
	if err != nil {
		reason := loginReason(identity.KindOf(err))
		log.Info().Str("reason", reason.String()).Err(err).Msg("authflow: login rejected")
		return c.fail(FlowLogin, StateFailed, reason)
	}
	if !res.SignedIn {
		return c.fail(FlowLogin, StateFailed, ReasonSignInIncomplete)
	}
	if err := c.session.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("authflow: signed in but session could not be loaded")
		return c.fail(FlowLogin, StateFailed, ReasonSignInIncomplete)
	}

	c.transition(FlowLogin, StateAuthenticated, ReasonNone)
	return Outcome{Flow: FlowLogin, State: StateAuthenticated, Email: email}
}

// Signup runs Standard Signup: Idle -> Submitting -> {AwaitingConfirmation |
// Failed | Complete}. A provider that confirms immediately goes through
// Complete to an auto sign in. A submission that reaches the provider
// discards any earlier PendingSignup.
func (c *Controller) Signup(ctx context.Context, form SignupForm) Outcome {
	email := strings.TrimSpace(form.Email)
	name := strings.TrimSpace(form.Name)
	if email == "" || name == "" || form.Password == "" || form.ConfirmPassword == "" {
		return c.fail(FlowSignup, StateFailed, ReasonMissingFields)
	}
	if form.Password != form.ConfirmPassword {
		return c.fail(FlowSignup, StateFailed, ReasonPasswordMismatch)
	}

	release, rejected := c.guard(FlowSignup)
	if rejected != nil {
		return *rejected
	}
	defer release()

	c.mu.Lock()
	c.signup = nil
	c.mu.Unlock()
	pending := &PendingSignup{Email: email, Username: c.newUsername(), Password: form.Password}

	c.transition(FlowSignup, StateSubmitting, ReasonNone)
	res, err := c.gateway.CreateAccount(ctx, pending.Username, pending.Password, identity.Attributes{Email: email, Name: name})
	if err != nil {
		reason := signupReason(identity.KindOf(err))
		log.Info().Str("reason", reason.String()).Err(err).Msg("authflow: signup rejected")
		out := c.fail(FlowSignup, StateFailed, reason)
		if msg := identity.MessageOf(err); reason == ReasonInvalidAttributes && msg != "" {
			out.Message = msg
		}
		return out
	}

	if !res.ConfirmationRequired {
		c.transition(FlowSignup, StateComplete, ReasonNone)
		return c.autoLogin(ctx, pending)
	}

	c.mu.Lock()
	c.signup = pending
	c.mu.Unlock()

	c.transition(FlowSignup, StateAwaitingConfirmation, ReasonNone)
	return Outcome{Flow: FlowSignup, State: StateAwaitingConfirmation, Email: email, Message: msgCheckEmail}
}

// ConfirmSignup submits the emailed code for the PendingSignup. The
// confirmation uses the generated username, never the email. On success it
// signs in with the captured password; a failed sign in resolves to
// CompleteManualLogin. PendingSignup is kept on code errors so the user can
// retry, and discarded once confirmation succeeds.
func (c *Controller) ConfirmSignup(ctx context.Context, code string) Outcome {
	code = strings.TrimSpace(code)

	c.mu.Lock()
	pending := c.signup
	c.mu.Unlock()
	if pending == nil {
		return c.fail(FlowSignup, StateFailed, ReasonNoPendingSignup)
	}
	if code == "" {
		out := c.fail(FlowSignup, StateAwaitingConfirmation, ReasonMissingFields)
		out.Email = pending.Email
		return out
	}

	release, rejected := c.guard(FlowSignup)
	if rejected != nil {
		return *rejected
	}
	defer release()

	c.transition(FlowSignup, StateSubmitting, ReasonNone)
	if err := c.gateway.ConfirmAccount(ctx, pending.Username, code); err != nil {
		reason := confirmReason(identity.KindOf(err))
		log.Info().Str("reason", reason.String()).Err(err).Msg("authflow: confirmation rejected")
		out := c.fail(FlowSignup, StateFailed, reason)
		out.Email = pending.Email
		return out
	}

	c.mu.Lock()
	if c.signup == pending {
		c.signup = nil
	}
	c.mu.Unlock()

	c.transition(FlowSignup, StateComplete, ReasonNone)
	return c.autoLogin(ctx, pending)
}

func (c *Controller) autoLogin(ctx context.Context, pending *PendingSignup) Outcome {
	res, err := c.gateway.SignIn(ctx, pending.Email, pending.Password)
	if err == nil && res.SignedIn {
		err = c.session.Refresh(ctx)
		if err == nil {
			c.transition(FlowSignup, StateAuthenticated, ReasonNone)
			return Outcome{Flow: FlowSignup, State: StateAuthenticated, Email: pending.Email}
		}
	}
	if err != nil {
		log.Info().Err(err).Msg("authflow: auto sign in after signup failed")
	}

	c.transition(FlowSignup, StateCompleteManualLogin, ReasonNone)
	return Outcome{Flow: FlowSignup, State: StateCompleteManualLogin, Email: pending.Email, Message: msgAccountVerified}
}

// CancelSignup discards the PendingSignup.
func (c *Controller) CancelSignup() {
	c.mu.Lock()
	c.signup = nil
	c.mu.Unlock()
	c.transition(FlowSignup, StateIdle, ReasonNone)
}

// InitiateSSO runs SSO Initiation: Idle -> DomainCheck -> {Rejected |
// Submitting -> {AwaitingVerification | Failed}}. The domain check is a UX
// gate only; the provider validates the email itself.
func (c *Controller) InitiateSSO(ctx context.Context, email string) Outcome {
	email = strings.TrimSpace(email)
	if email == "" {
		return c.fail(FlowSSOInitiation, StateFailed, ReasonMissingFields)
	}

	c.transition(FlowSSOInitiation, StateDomainCheck, ReasonNone)
	if !c.domains.IsVerified(email) {
		return c.fail(FlowSSOInitiation, StateRejected, ReasonDomainNotVerified)
	}

	release, rejected := c.guard(FlowSSOInitiation)
	if rejected != nil {
		return *rejected
	}
	defer release()

	username := c.newUsername()
	password, err := c.newPassword()
	if err != nil {
		log.Err(err).Msg("authflow: failed to generate sso password")
		return c.fail(FlowSSOInitiation, StateFailed, ReasonSSOFailed)
	}

	c.transition(FlowSSOInitiation, StateSubmitting, ReasonNone)
	res, err := c.gateway.CreateAccount(ctx, username, password, identity.Attributes{Email: email})
	if err != nil {
		reason := ssoInitiationReason(identity.KindOf(err))
		log.Info().Str("reason", reason.String()).Err(err).Msg("authflow: sso initiation rejected")
		return c.fail(FlowSSOInitiation, StateFailed, reason)
	}

	if !res.ConfirmationRequired {
		return c.ssoSignIn(ctx, FlowSSOInitiation, email, username, password)
	}

	pending := credstore.PendingSSO{Email: email, Username: username, Password: password}
	if err := c.pending.SavePendingSSO(ctx, pending); err != nil {
		log.Err(err).Msg("authflow: failed to store pending sso")
		return c.fail(FlowSSOInitiation, StateFailed, ReasonSSOFailed)
	}

	c.transition(FlowSSOInitiation, StateAwaitingVerification, ReasonNone)
	c.transition(FlowSSOVerification, StateAwaitingVerification, ReasonNone)
	return Outcome{Flow: FlowSSOInitiation, State: StateAwaitingVerification, Email: email, Message: msgSSOCodeSent}
}

// VerifySSO runs SSO Verification: AwaitingVerification -> Submitting ->
// {Authenticated | Failed}. Without a PendingSSO it fails with
// SessionExpired before any gateway call.
func (c *Controller) VerifySSO(ctx context.Context, code string) Outcome {
	code = strings.TrimSpace(code)

	pending, err := c.pending.PendingSSO(ctx)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			log.Err(err).Msg("authflow: pending sso unreadable")
		}
		out := c.fail(FlowSSOVerification, StateFailed, ReasonSessionExpired)
		out.RestartSSO = true
		return out
	}
	if code == "" {
		out := c.fail(FlowSSOVerification, StateAwaitingVerification, ReasonMissingFields)
		out.Email = pending.Email
		return out
	}

	release, rejected := c.guard(FlowSSOVerification)
	if rejected != nil {
		return *rejected
	}
	defer release()

	c.transition(FlowSSOVerification, StateSubmitting, ReasonNone)
	if err := c.gateway.ConfirmAccount(ctx, pending.Username, code); err != nil {
		reason := ssoVerificationReason(identity.KindOf(err))
		log.Info().Str("reason", reason.String()).Err(err).Msg("authflow: sso verification rejected")
		out := c.fail(FlowSSOVerification, StateFailed, reason)
		out.Email = pending.Email
		out.RestartSSO = reason == ReasonCodeExpired || reason == ReasonNotAuthorized
		return out
	}

	return c.ssoSignIn(ctx, FlowSSOVerification, pending.Email, pending.Username, pending.Password)
}

// ssoSignIn signs in with the generated credentials. The PendingSSO is
// erased as soon as the provider accepts them.
func (c *Controller) ssoSignIn(ctx context.Context, flow Flow, email, username, password string) Outcome {
	res, err := c.gateway.SignIn(ctx, email, password)
	if err != nil {
		reason := ssoVerificationReason(identity.KindOf(err))
		log.Info().Str("reason", reason.String()).Str("username", username).Err(err).Msg("authflow: sso sign in rejected")
		out := c.fail(flow, StateFailed, reason)
		out.Email = email
		out.RestartSSO = true
		return out
	}
	if !res.SignedIn {
		return c.fail(flow, StateFailed, ReasonSignInIncomplete)
	}

	if err := c.pending.ClearPendingSSO(ctx); err != nil {
		log.Warn().Err(err).Msg("authflow: failed to clear pending sso")
	}
	if err := c.session.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("authflow: signed in but session could not be loaded")
		return c.fail(flow, StateFailed, ReasonSignInIncomplete)
	}

	c.transition(flow, StateAuthenticated, ReasonNone)
	return Outcome{Flow: flow, State: StateAuthenticated, Email: email}
}

// ClearPending discards PendingSignup and PendingSSO and returns every flow
// to Idle. Called on sign out.
func (c *Controller) ClearPending(ctx context.Context) error {
	c.mu.Lock()
	c.signup = nil
	c.mu.Unlock()

	for _, flow := range Flows() {
		if c.State(flow) != StateIdle {
			c.transition(flow, StateIdle, ReasonNone)
		}
	}
	return c.pending.ClearPendingSSO(ctx)
}
