package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the steady-state poll period.
const DefaultInterval = time.Second

// Errors returned by the coordinator.
var (
	ErrPollInFlight   = errors.New("coordinator: poll already in flight")
	ErrNotReady       = errors.New("coordinator: setup has not completed")
	ErrAlreadyStarted = errors.New("coordinator: already started")
	ErrNoSession      = errors.New("coordinator: session is required")
)

// Session events reported through Options.OnSessionEvent.
const (
	EventConnected   = "connect"
	EventSetupFailed = "setup_failed"
)

// State is the coordinator lifecycle state.
type State string

// Lifecycle states.
const (
	StateUninitialized  State = "uninitialized"
	StateAuthenticating State = "authenticating"
	StatePolling        State = "polling"
)

// Session is the part of the panel client the coordinator drives.
// *comfortclick.Client satisfies it.
type Session interface {
	Connect(ctx context.Context) error
	InitializeState(ctx context.Context) error
	Poll(ctx context.Context) error
}

// Listener is notified after every successful poll.
type Listener interface {
	HandleUpdate()
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func()

// HandleUpdate calls f.
func (f ListenerFunc) HandleUpdate() { f() }

// Logger is the logging surface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Coordinator.
type Options struct {
	// Session is required.
	Session Session

	// Interval defaults to DefaultInterval.
	Interval time.Duration

	// CacheLen reports the cache size for metrics. Optional.
	CacheLen func() int

	Logger  Logger
	Metrics *Metrics

	// OnAvailabilityChange fires when polls start or stop succeeding.
	OnAvailabilityChange func(available bool)

	// OnSessionEvent fires after setup succeeds or fails.
	OnSessionEvent func(event string, err error)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State               State     `json:"state"`
	Available           bool      `json:"available"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Interval            string    `json:"interval"`
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// Coordinator owns the poll schedule for one panel session.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Coordinator struct {
	opts     Options
	interval time.Duration
	now      func() time.Time

	polling atomic.Bool
	started atomic.Bool

	mu           sync.RWMutex
	state        State
	lastSuccess  time.Time
	lastErr      error
	failures     int
	available    bool
	availKnown   bool
	listeners    []listenerEntry
	nextListener uint64

	// Shutdown coordination (stopOnce prevents double-close panics)
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a coordinator in StateUninitialized.
func New(opts Options) (*Coordinator, error) {
	if opts.Session == nil {
		return nil, ErrNoSession
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		opts:     opts,
		interval: interval,
		now:      now,
		state:    StateUninitialized,
	}, nil
}

// AddListener registers l and returns a function that removes it.
func (c *Coordinator) AddListener(l Listener) (remove func()) {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listenerEntry{id: id, l: l})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.listeners {
			if e.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start runs setup and the first refresh, then launches the poll loop.
// Both belong to the setup phase: their errors are returned, the state
// falls back to StateUninitialized and no loop is started. Start holds the
// poll guard throughout, so a concurrent Refresh gets ErrPollInFlight.
//
// Parameters:
//   - ctx: Cancelling it stops the poll loop as Stop does
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if !c.polling.CompareAndSwap(false, true) {
		c.started.Store(false)
		return ErrPollInFlight
	}

	err := c.setup(ctx)
	c.polling.Store(false)
	if err != nil {
		c.started.Store(false)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(loopCtx)

	c.logInfo("polling started", "interval", c.interval.String())
	return nil
}

// setup connects, loads the initial state and runs the first poll.
// The caller holds the poll guard.
func (c *Coordinator) setup(ctx context.Context) error {
	c.setState(StateAuthenticating)

	if err := c.opts.Session.Connect(ctx); err != nil {
		c.recordFailure(err)
		return c.setupFailed("connect", err)
	}
	if err := c.opts.Session.InitializeState(ctx); err != nil {
		c.recordFailure(err)
		return c.setupFailed("initialize state", err)
	}
	if err := c.poll(ctx); err != nil {
		return c.setupFailed("first refresh", err)
	}

	c.setState(StatePolling)
	c.sessionEvent(EventConnected, nil)
	c.notify()
	return nil
}

func (c *Coordinator) setupFailed(step string, err error) error {
	c.setState(StateUninitialized)
	c.sessionEvent(EventSetupFailed, err)
	c.logError("panel setup failed", "step", step, "error", err)
	return fmt.Errorf("coordinator: setup: %s: %w", step, err)
}

// Refresh runs one poll and notifies listeners on success.
//
// Returns:
//   - ErrPollInFlight: another poll or setup is running; nothing was done
//   - ErrNotReady: setup has not completed
//   - the poll error otherwise
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.polling.CompareAndSwap(false, true) {
		c.opts.Metrics.recordSkip()
		return ErrPollInFlight
	}
	defer c.polling.Store(false)

	if c.State() != StatePolling {
		return ErrNotReady
	}

	if err := c.poll(ctx); err != nil {
		return err
	}
	c.notify()
	return nil
}

// poll runs one Session.Poll and records its outcome. The caller holds the
// poll guard and notifies listeners.
func (c *Coordinator) poll(ctx context.Context) error {
	start := c.now()
	err := c.opts.Session.Poll(ctx)
	c.opts.Metrics.observePoll(c.now().Sub(start), err)

	if err != nil {
		c.recordFailure(err)
		return err
	}
	c.recordSuccess()
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
// Safe to call multiple times and before Start.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mu.RLock()
		cancel := c.cancel
		c.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
		c.wg.Wait()
		c.logInfo("polling stopped")
	})
}

// Status returns the current lifecycle and health snapshot.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		State:               c.state,
		Available:           c.available,
		LastSuccess:         c.lastSuccess,
		ConsecutiveFailures: c.failures,
		Interval:            c.interval.String(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.Refresh(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrPollInFlight):
				c.logDebug("poll skipped, previous poll still running")
			case ctx.Err() != nil:
				return
			default:
				c.logWarn("poll failed", "error", err, "consecutive_failures", c.Status().ConsecutiveFailures)
			}
		}
	}
}

func (c *Coordinator) notify() {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	for i, e := range c.listeners {
		listeners[i] = e.l
	}
	c.mu.RUnlock()

	for _, l := range listeners {
		l.HandleUpdate()
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) recordSuccess() {
	c.mu.Lock()
	c.lastSuccess = c.now()
	c.lastErr = nil
	c.failures = 0
	changed := !c.availKnown || !c.available
	c.available, c.availKnown = true, true
	lastSuccess := c.lastSuccess
	c.mu.Unlock()

	c.opts.Metrics.recordHealth(lastSuccess, 0, c.cacheLen())
	if changed {
		c.logInfo("panel available")
		c.availabilityChanged(true)
	}
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.failures++
	failures := c.failures
	changed := !c.availKnown || c.available
	c.available, c.availKnown = false, true
	lastSuccess := c.lastSuccess
	c.mu.Unlock()

	c.opts.Metrics.recordHealth(lastSuccess, failures, -1)
	if changed {
		c.availabilityChanged(false)
	}
}

func (c *Coordinator) cacheLen() int {
	if c.opts.CacheLen == nil {
		return -1
	}
	return c.opts.CacheLen()
}

func (c *Coordinator) availabilityChanged(available bool) {
	if c.opts.OnAvailabilityChange != nil {
		c.opts.OnAvailabilityChange(available)
	}
}

func (c *Coordinator) sessionEvent(event string, err error) {
	if c.opts.OnSessionEvent != nil {
		c.opts.OnSessionEvent(event, err)
	}
}

func (c *Coordinator) logDebug(msg string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Debug(msg, args...)
	}
}

func (c *Coordinator) logInfo(msg string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Info(msg, args...)
	}
}

func (c *Coordinator) logWarn(msg string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Warn(msg, args...)
	}
}

func (c *Coordinator) logError(msg string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Error(msg, args...)
	}
}
