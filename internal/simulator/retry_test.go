package simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordLogger keeps every log line for assertions.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

func (l *recordLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args) }
func (l *recordLogger) Info(msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *recordLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *recordLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }

// messages returns the messages logged at level, in order. An empty level
// matches all.
func (l *recordLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if level == "" || e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

func (l *recordLogger) count(msg string) int {
	n := 0
	for _, m := range l.messages("") {
		if m == msg {
			n++
		}
	}
	return n
}

func TestConnectWithRetry_SucceedsAfterFailures(t *testing.T) {
	for _, k := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("failures=%d", k), func(t *testing.T) {
			errs := make([]error, k)
			for i := range errs {
				errs[i] = errors.New("connection refused")
			}
			ft := &fakeTransport{connectErrs: errs}
			m := NewConnectionManager(ft, nil)
			var transitions transitionLog
			m.OnStateChange(transitions.observe)

			var seen []int
			attempts, err := ConnectWithRetry(context.Background(), m, RetryPolicy{
				Delay:     time.Millisecond,
				OnAttempt: func(n int, _ error) { seen = append(seen, n) },
			})
			if err != nil {
				t.Fatalf("ConnectWithRetry() error = %v", err)
			}
			if attempts != k+1 {
				t.Errorf("attempts = %d, want %d", attempts, k+1)
			}
			if len(seen) != k+1 {
				t.Errorf("OnAttempt calls = %d, want %d", len(seen), k+1)
			}
			if n := transitions.count(StateConnected); n != 1 {
				t.Errorf("Connected transitions = %d, want 1", n)
			}
			if !m.IsConnected() {
				t.Errorf("State() = %v, want connected", m.State())
			}
		})
	}
}

func TestConnectWithRetry_NoPublishBeforeConnected(t *testing.T) {
	ft := &fakeTransport{connectErrs: []error{errors.New("down"), errors.New("down")}}
	m := NewConnectionManager(ft, nil)

	var rejected int
	_, err := ConnectWithRetry(context.Background(), m, RetryPolicy{
		Delay: time.Millisecond,
		OnAttempt: func(_ int, err error) {
			if err == nil {
				return
			}
			if _, perr := m.Publish(context.Background(), "t", nil); errors.Is(perr, ErrNotConnected) {
				rejected++
			}
		},
	})
	if err != nil {
		t.Fatalf("ConnectWithRetry() error = %v", err)
	}
	if rejected != 2 {
		t.Errorf("rejected publishes = %d, want 2", rejected)
	}
	if n := len(ft.published()); n != 0 {
		t.Errorf("transport publishes = %d, want 0", n)
	}
}

func TestConnectWithRetry_LogsFailures(t *testing.T) {
	ft := &fakeTransport{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	m := NewConnectionManager(ft, nil)
	logger := &recordLogger{}

	if _, err := ConnectWithRetry(context.Background(), m, RetryPolicy{
		Delay:  time.Millisecond,
		Target: "localhost:1883",
		Logger: logger,
	}); err != nil {
		t.Fatalf("ConnectWithRetry() error = %v", err)
	}

	warns := logger.messages("WARN")
	if len(warns) != 2 {
		t.Fatalf("warnings = %v, want 2 connect failures", warns)
	}
	for _, w := range warns {
		if !strings.Contains(w, "could not connect") {
			t.Errorf("warning = %q, want connect failure", w)
		}
	}
	infos := logger.messages("INFO")
	if infos[len(infos)-1] != "connected to broker" {
		t.Errorf("last info = %q, want %q", infos[len(infos)-1], "connected to broker")
	}
}

func TestConnectWithRetry_CancelDuringWait(t *testing.T) {
	ft := &fakeTransport{connectErrs: []error{errors.New("refused")}}
	m := NewConnectionManager(ft, nil)

	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		Delay: time.Hour,
		OnAttempt: func(int, error) {
			// Cancel once the first attempt has failed and the wait begins.
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
		},
	}

	start := time.Now()
	attempts, err := ConnectWithRetry(ctx, m, policy)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("ConnectWithRetry() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if elapsed > 5*time.Second {
		t.Errorf("returned after %v, want prompt return on cancellation", elapsed)
	}
	if m.IsConnected() {
		t.Error("connected after cancellation")
	}
}

func TestConnectWithRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := ConnectWithRetry(ctx, m, RetryPolicy{Delay: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ConnectWithRetry() error = %v, want context.Canceled", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if ft.connectCount() != 0 {
		t.Errorf("transport connects = %d, want 0", ft.connectCount())
	}
}

func TestConnectWithRetry_FixedDelay(t *testing.T) {
	ft := &fakeTransport{connectErrs: []error{errors.New("a"), errors.New("b")}}
	m := NewConnectionManager(ft, nil)

	var stamps []time.Time
	delay := 30 * time.Millisecond
	_, err := ConnectWithRetry(context.Background(), m, RetryPolicy{
		Delay:     delay,
		OnAttempt: func(int, error) { stamps = append(stamps, time.Now()) },
	})
	if err != nil {
		t.Fatalf("ConnectWithRetry() error = %v", err)
	}
	if len(stamps) != 3 {
		t.Fatalf("attempts = %d, want 3", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < delay {
			t.Errorf("gap between attempt %d and %d = %v, want >= %v", i, i+1, gap, delay)
		}
	}
}
