package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// fakeSession records calls and can block or fail polls.
type fakeSession struct {
	mu         sync.Mutex
	calls      []string
	connectErr error
	initErr    error
	pollErr    error

	// pollGate, when set, blocks Poll until it receives a value.
	pollGate chan struct{}
	polls    atomic.Int32
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *fakeSession) Connect(context.Context) error {
	s.record("connect")
	return s.connectErr
}

func (s *fakeSession) InitializeState(context.Context) error {
	s.record("initialize")
	return s.initErr
}

func (s *fakeSession) Poll(ctx context.Context) error {
	s.record("poll")
	s.polls.Add(1)
	if s.pollGate != nil {
		select {
		case <-s.pollGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollErr
}

func (s *fakeSession) setPollErr(err error) {
	s.mu.Lock()
	s.pollErr = err
	s.mu.Unlock()
}

func (s *fakeSession) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newTestCoordinator(t *testing.T, s Session, opts Options) *Coordinator {
	t.Helper()
	opts.Session = s
	if opts.Interval == 0 {
		opts.Interval = time.Hour // tests drive Refresh by hand
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestNew_RequiresSession(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoSession) {
		t.Errorf("New() error = %v, want ErrNoSession", err)
	}
}

func TestStart_SetupThenFirstRefresh(t *testing.T) {
	s := &fakeSession{}
	var notified atomic.Int32
	var events []string
	c := newTestCoordinator(t, s, Options{
		OnSessionEvent: func(event string, err error) { events = append(events, event) },
	})
	c.AddListener(ListenerFunc(func() { notified.Add(1) }))

	if c.State() != StateUninitialized {
		t.Fatalf("initial state = %s", c.State())
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got := s.callLog()
	want := []string{"connect", "initialize", "poll"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
	if notified.Load() != 1 {
		t.Errorf("listeners notified %d times, want 1", notified.Load())
	}
	if c.State() != StatePolling {
		t.Errorf("state = %s, want polling", c.State())
	}
	if len(events) != 1 || events[0] != EventConnected {
		t.Errorf("session events = %v", events)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v", err)
	}
}

func TestStart_SetupFailurePropagates(t *testing.T) {
	tests := []struct {
		name    string
		session *fakeSession
		calls   int
	}{
		{"connect fails", &fakeSession{connectErr: errors.New("login refused")}, 1},
		{"initialize fails", &fakeSession{initErr: errors.New("status 500")}, 2},
		{"first poll fails", &fakeSession{pollErr: errors.New("timeout")}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var available []bool
			c := newTestCoordinator(t, tt.session, Options{
				OnAvailabilityChange: func(a bool) { available = append(available, a) },
			})
			var notified int
			c.AddListener(ListenerFunc(func() { notified++ }))

			if err := c.Start(context.Background()); err == nil {
				t.Fatal("Start() error = nil")
			}
			if n := len(tt.session.callLog()); n != tt.calls {
				t.Errorf("calls = %v, want %d", tt.session.callLog(), tt.calls)
			}
			if notified != 0 {
				t.Error("listeners notified after failed setup")
			}
			if len(available) != 1 || available[0] {
				t.Errorf("availability callbacks = %v, want [false]", available)
			}
			if st := c.Status(); st.ConsecutiveFailures != 1 || st.LastError == "" {
				t.Errorf("status = %+v", st)
			}
			if c.State() != StateUninitialized {
				t.Errorf("state = %s, want uninitialized", c.State())
			}
		})
	}
}

func TestStart_FirstRefreshFailureStaysInSetup(t *testing.T) {
	s := &fakeSession{pollErr: errors.New("poll down")}
	var events []string
	c := newTestCoordinator(t, s, Options{
		OnSessionEvent: func(event string, err error) { events = append(events, event) },
	})
	var notified int
	c.AddListener(ListenerFunc(func() { notified++ }))

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want first refresh failure")
	}
	if c.State() != StateUninitialized {
		t.Errorf("state = %s, want uninitialized", c.State())
	}
	if len(events) != 1 || events[0] != EventSetupFailed {
		t.Errorf("session events = %v, want [setup_failed]", events)
	}

	// A manual refresh must not reach the panel before setup is redone.
	s.setPollErr(nil)
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Refresh() error = %v, want ErrNotReady", err)
	}
	if n := s.polls.Load(); n != 1 {
		t.Errorf("polls = %d, want 1", n)
	}
	if notified != 0 || c.Status().Available {
		t.Errorf("notified = %d, available = %v after failed setup", notified, c.Status().Available)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("retried Start() error = %v", err)
	}
	if c.State() != StatePolling {
		t.Errorf("state = %s, want polling", c.State())
	}
	if len(events) != 2 || events[1] != EventConnected {
		t.Errorf("session events = %v, want [setup_failed connect]", events)
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}
}

func TestStart_HoldsPollGuardDuringSetup(t *testing.T) {
	s := &fakeSession{pollGate: make(chan struct{})}
	c := newTestCoordinator(t, s, Options{})

	started := make(chan error, 1)
	go func() { started <- c.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.polls.Load() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("setup never reached the first poll")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrPollInFlight) {
		t.Errorf("Refresh() during setup error = %v, want ErrPollInFlight", err)
	}
	if n := s.polls.Load(); n != 1 {
		t.Errorf("polls = %d, concurrent poll must not start", n)
	}

	s.pollGate <- struct{}{}
	if err := <-started; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestRefresh_BeforeSetup(t *testing.T) {
	c := newTestCoordinator(t, &fakeSession{}, Options{})
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Refresh() error = %v, want ErrNotReady", err)
	}
}

func TestRefresh_AtMostOneInFlight(t *testing.T) {
	s := &fakeSession{}
	metrics := NewMetrics()
	c := newTestCoordinator(t, s, Options{Metrics: metrics})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.pollGate = make(chan struct{})
	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Refresh(context.Background()) }()

	// Wait for the first poll to be inside Poll.
	deadline := time.Now().Add(2 * time.Second)
	for s.polls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("first refresh never reached Poll")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrPollInFlight) {
		t.Errorf("concurrent Refresh() error = %v, want ErrPollInFlight", err)
	}
	if s.polls.Load() != 2 {
		t.Errorf("polls = %d, concurrent poll must not start", s.polls.Load())
	}

	s.pollGate <- struct{}{}
	if err := <-firstDone; err != nil {
		t.Errorf("first Refresh() error = %v", err)
	}
	if got := counterValue(t, metrics.skipped); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}

func TestRefresh_FailureThenRecovery(t *testing.T) {
	s := &fakeSession{}
	var mu sync.Mutex
	var available []bool
	metrics := NewMetrics()
	c := newTestCoordinator(t, s, Options{
		Metrics:  metrics,
		CacheLen: func() int { return 42 },
		OnAvailabilityChange: func(a bool) {
			mu.Lock()
			available = append(available, a)
			mu.Unlock()
		},
	})
	var notified atomic.Int32
	c.AddListener(ListenerFunc(func() { notified.Add(1) }))
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}

	s.setPollErr(errors.New("status 502"))
	for i := 0; i < 2; i++ {
		if err := c.Refresh(ctx); err == nil {
			t.Fatal("Refresh() error = nil")
		}
	}
	if st := c.Status(); st.Available || st.ConsecutiveFailures != 2 || st.State != StatePolling {
		t.Errorf("status after failures = %+v", st)
	}

	s.setPollErr(nil)
	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.Status(); !st.Available || st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Errorf("status after recovery = %+v", st)
	}
	if notified.Load() != 2 {
		t.Errorf("notified %d times, want 2 (failed polls do not notify)", notified.Load())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true}
	if len(available) != len(want) {
		t.Fatalf("availability = %v, want %v", available, want)
	}
	for i := range want {
		if available[i] != want[i] {
			t.Fatalf("availability = %v, want %v", available, want)
		}
	}

	if got := counterValue(t, metrics.polls.WithLabelValues(resultError)); got != 2 {
		t.Errorf("error polls = %v, want 2", got)
	}
	if got := gaugeValue(t, metrics.cacheEntries); got != 42 {
		t.Errorf("cache entries gauge = %v, want 42", got)
	}
}

func TestLoop_PollsOnInterval(t *testing.T) {
	s := &fakeSession{}
	c := newTestCoordinator(t, s, Options{Interval: 5 * time.Millisecond})
	var notified atomic.Int32
	c.AddListener(ListenerFunc(func() { notified.Add(1) }))

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for notified.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop notified only %d times", notified.Load())
		}
		time.Sleep(2 * time.Millisecond)
	}

	c.Stop()
	after := s.polls.Load()
	time.Sleep(20 * time.Millisecond)
	if s.polls.Load() != after {
		t.Error("polling continued after Stop")
	}
	for _, call := range s.callLog() {
		if call == "disconnect" {
			t.Error("Stop must not log out")
		}
	}
}

func TestAddListener_Remove(t *testing.T) {
	s := &fakeSession{}
	c := newTestCoordinator(t, s, Options{})
	var a, b int
	removeA := c.AddListener(ListenerFunc(func() { a++ }))
	c.AddListener(ListenerFunc(func() { b++ }))

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	removeA()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a != 1 || b != 2 {
		t.Errorf("listener calls a=%d b=%d, want 1 and 2", a, b)
	}
}

func TestStop_BeforeStart(t *testing.T) {
	c := newTestCoordinator(t, &fakeSession{}, Options{})
	c.Stop()
	c.Stop()
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	for _, col := range NewMetrics().Collectors() {
		if err := reg.Register(col); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	var nilMetrics *Metrics
	nilMetrics.recordSkip()
	nilMetrics.observePoll(time.Second, nil)
	nilMetrics.recordHealth(time.Now(), 0, 1)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}
