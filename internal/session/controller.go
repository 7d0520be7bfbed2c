package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"sports-analytics/internal/api"
	"sports-analytics/internal/logger"
	"sports-analytics/internal/metrics"
)

const (
	DefaultRefreshLead    = 60 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryDelay     = 5 * time.Second
)

// errSuperseded is returned by a refresh whose session was logged out or
// replaced while the backend call was in flight.
var errSuperseded = fmt.Errorf("%w: session changed during refresh", ErrUnauthorized)

// Backend is the part of the analytics backend the session needs.
type Backend interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
}

// Options tune a Controller. Zero values take defaults.
type Options struct {
	RefreshLead    time.Duration // Refresh this long before exp
	RequestTimeout time.Duration // Bound on one refresh call
	RetryDelay     time.Duration // Minimum wait before refreshing the same token again
	Routes         *RoutePolicy
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// Controller owns one session: its tokens, its snapshot, its refresh timer.
type Controller struct {
	id      string
	store   TokenStore
	backend Backend
	lead    time.Duration
	timeout time.Duration
	retry   time.Duration
	routes  RoutePolicy
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	// writeMu orders token writes (refresh results, login, clear) so a
	// logout cannot be overwritten by a refresh that started before it.
	writeMu sync.Mutex

	mu         sync.Mutex
	gen        uint64 // Bumped when the session is cleared or replaced
	tokens     Tokens
	snap       Snapshot
	listeners  map[int]func(Snapshot)
	nextID     int
	timer      *time.Timer
	timerToken string
	stopWatch  func()
	closed     bool
}

// NewController creates a controller in the Loading state. Call Start to
// evaluate the stored tokens.
func NewController(store TokenStore, backend Backend, opts Options) *Controller {
	c := &Controller{
		id:        uuid.NewString(),
		store:     store,
		backend:   backend,
		lead:      opts.RefreshLead,
		timeout:   opts.RequestTimeout,
		retry:     opts.RetryDelay,
		routes:    DefaultRoutePolicy(),
		metrics:   opts.Metrics,
		now:       opts.Now,
		snap:      Snapshot{State: Loading, Subscription: SubscriptionUnknown},
		listeners: map[int]func(Snapshot){},
	}
	if c.lead < 0 {
		c.lead = 0
	} else if c.lead == 0 {
		c.lead = DefaultRefreshLead
	}
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}
	if c.retry <= 0 {
		c.retry = DefaultRetryDelay
	}
	if opts.Routes != nil {
		c.routes = *opts.Routes
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// ID identifies this controller as a store writer.
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn for every snapshot change. fn runs outside the
// controller lock and may call Snapshot, but not Login, Logout or Refresh.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Start loads the stored tokens, resolves the initial state and begins
// watching the store for changes made elsewhere.
func (c *Controller) Start(ctx context.Context) error {
	stop, err := c.store.Watch(c.reconcile)
	if err != nil {
		logger.Warn("session: watching token store: %v", err)
	} else {
		c.mu.Lock()
		c.stopWatch = stop
		c.mu.Unlock()
	}

	tokens, err := c.store.Load(ctx)
	if err != nil {
		c.setAnonymous()
		return fmt.Errorf("loading tokens: %w", err)
	}
	c.evaluate(ctx, tokens, "startup")
	return nil
}

// Close stops the refresh timer and the store watch. The snapshot is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	stop := c.stopWatch
	c.stopWatch = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Admit decides whether path may be shown in the current state.
func (c *Controller) Admit(path string) Decision {
	d := c.routes.Decide(c.Snapshot().State, path)
	c.metrics.RecordAdmission(d.Verdict.String())
	return d
}

// Login authenticates with the backend and persists the new tokens.
func (c *Controller) Login(ctx context.Context, username, password string) (Snapshot, error) {
	resp, err := c.backend.Login(ctx, username, password)
	if err != nil {
		return c.Snapshot(), err
	}

	claims, err := ParseAccessClaims(resp.Access)
	if err != nil {
		return c.Snapshot(), err
	}

	sub := ParseSubscription(resp.SubscriptionStatus)
	if !sub.Known() && resp.SubscriptionActive != nil {
		sub = SubscriptionInactive
		if *resp.SubscriptionActive {
			sub = SubscriptionActive
		}
	}

	t := Tokens{Access: resp.Access, Refresh: resp.Refresh, Subscription: sub, Writer: c.id}

	c.writeMu.Lock()
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	if err := c.store.Save(ctx, t); err != nil {
		logger.Warn("session: persisting login tokens: %v", err)
	}
	c.apply(t, claims)
	c.writeMu.Unlock()
	logger.Info("session: logged in (%s)", c.Snapshot().State)
	return c.Snapshot(), nil
}

// Logout clears the tokens and returns where to send the visitor.
func (c *Controller) Logout(ctx context.Context) string {
	c.clear(ctx)
	logger.Info("session: logged out")
	return c.routes.Login
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers share one backend request, which is not cancelled by any one
// caller's context.
func (c *Controller) Refresh(ctx context.Context) (Snapshot, error) {
	if _, err := c.refresh(ctx, "manual"); err != nil {
		return c.Snapshot(), err
	}
	return c.Snapshot(), nil
}

func (c *Controller) refresh(ctx context.Context, trigger string) (string, error) {
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.doRefresh(ctx, trigger)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Controller) doRefresh(ctx context.Context, trigger string) (string, error) {
	c.mu.Lock()
	current, gen := c.tokens, c.gen
	c.mu.Unlock()

	// Store writes get their own deadline: the refresh deadline may already
	// have passed when a timed-out refresh has to clear the session.
	detached := context.WithoutCancel(ctx)

	if current.Refresh == "" {
		c.metrics.RecordRefresh(trigger, "no_token", 0)
		c.clear(detached)
		return "", ErrNoRefreshToken
	}

	rctx, cancel := context.WithTimeout(detached, c.timeout)
	defer cancel()

	start := time.Now()
	access, err := c.backend.Refresh(rctx, current.Refresh)
	elapsed := time.Since(start).Seconds()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	superseded := c.gen != gen
	c.mu.Unlock()
	if superseded {
		c.metrics.RecordRefresh(trigger, "superseded", elapsed)
		logger.Debug("session: %s refresh result dropped, session changed", trigger)
		return "", errSuperseded
	}

	wctx, wcancel := context.WithTimeout(detached, c.timeout)
	defer wcancel()

	if err != nil {
		c.metrics.RecordRefresh(trigger, "failure", elapsed)
		logger.Warn("session: %s refresh failed: %v", trigger, err)
		c.clearLocked(wctx)
		return "", fmt.Errorf("refreshing session: %w", err)
	}

	claims, err := ParseAccessClaims(access)
	if err != nil {
		c.metrics.RecordRefresh(trigger, "failure", elapsed)
		logger.Warn("session: %s refresh returned an unreadable token: %v", trigger, err)
		c.clearLocked(wctx)
		return "", fmt.Errorf("refreshing session: %w", err)
	}

	sub := current.Subscription
	if claims.Subscription.Known() {
		sub = claims.Subscription
	}
	t := Tokens{Access: access, Refresh: current.Refresh, Subscription: sub, Writer: c.id}
	if err := c.store.Save(wctx, t); err != nil {
		logger.Warn("session: persisting refreshed token: %v", err)
	}
	c.apply(t, claims)

	c.metrics.RecordRefresh(trigger, "success", elapsed)
	logger.Debug("session: %s refresh ok, expires %s", trigger, claims.ExpiresAt.Format(time.RFC3339))
	return access, nil
}

// evaluate resolves the state for a set of stored tokens. A failed refresh
// leaves the session Anonymous.
func (c *Controller) evaluate(ctx context.Context, t Tokens, trigger string) {
	if t.Empty() {
		c.setAnonymous()
		return
	}

	if t.Access != "" {
		claims, err := ParseAccessClaims(t.Access)
		if err == nil && claims.ExpiresAt.After(c.now()) {
			c.apply(t, claims)
			return
		}
		if err != nil {
			logger.Debug("session: stored access token unreadable: %v", err)
		}
	}

	if t.Refresh == "" {
		c.clear(ctx)
		return
	}

	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()

	// Failures are logged and counted inside refresh.
	_, _ = c.refresh(ctx, trigger)
}

// reconcile handles a store change. Own writes are ignored; anything else
// wins over the in-memory tokens.
func (c *Controller) reconcile(t Tokens) {
	c.mu.Lock()
	if c.closed || (t.Writer != "" && t.Writer == c.id) || (t.sameTokens(c.tokens) && c.snap.State != Loading) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	logger.Debug("session: token store changed externally")
	c.evaluate(context.Background(), t, "external")
}

func (c *Controller) apply(t Tokens, claims AccessClaims) {
	sub := resolveSubscription(claims.Subscription, t.Subscription)
	snap := Snapshot{
		State:        stateFor(sub),
		Subscription: sub,
		AccessToken:  t.Access,
		ExpiresAt:    claims.ExpiresAt,
	}

	c.mu.Lock()
	c.tokens = t
	c.armTimerLocked(t.Access, claims.ExpiresAt)
	c.setSnapshotLocked(snap)
}

func (c *Controller) setAnonymous() {
	c.mu.Lock()
	c.gen++
	c.tokens = Tokens{}
	c.stopTimerLocked()
	c.setSnapshotLocked(anonymousSnapshot())
}

func (c *Controller) clear(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.clearLocked(ctx)
}

// clearLocked is clear with writeMu held.
func (c *Controller) clearLocked(ctx context.Context) {
	c.setAnonymous()
	if err := c.store.Clear(ctx); err != nil {
		logger.Warn("session: clearing token store: %v", err)
	}
}

// setSnapshotLocked must be called with c.mu held; it releases the lock
// before notifying listeners.
func (c *Controller) setSnapshotLocked(snap Snapshot) {
	prev := c.snap
	if prev.equal(snap) {
		c.mu.Unlock()
		return
	}
	c.snap = snap
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if prev.State != snap.State {
		c.metrics.RecordTransition(snap.State.String())
		logger.Info("session: %s -> %s", prev.State, snap.State)
	}
	for _, fn := range fns {
		fn(snap)
	}
}

// armTimerLocked schedules the proactive refresh for token. It is a no-op
// when a pending timer already belongs to token. Re-arming for the token
// whose timer just fired waits at least the retry delay.
func (c *Controller) armTimerLocked(token string, exp time.Time) {
	if c.closed || (c.timer != nil && c.timerToken == token) {
		return
	}
	fired := c.timer == nil && c.timerToken == token
	c.stopTimerLocked()

	delay := exp.Sub(c.now()) - c.lead
	if delay < 0 {
		delay = 0
	}
	if fired && delay < c.retry {
		delay = c.retry
	}
	c.timerToken = token
	c.timer = time.AfterFunc(delay, func() { c.onTimer(token) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = nil
	c.timerToken = ""
}

func (c *Controller) onTimer(token string) {
	c.mu.Lock()
	if c.closed || c.timerToken != token {
		c.mu.Unlock()
		return
	}
	// The timer is spent; a refresh returning the same token must re-arm.
	c.timer = nil
	c.mu.Unlock()

	if _, err := c.refresh(context.Background(), "proactive"); err != nil {
		logger.Debug("session: proactive refresh: %v", err)
	}
}
