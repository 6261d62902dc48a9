package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a scripted Transport. connectErrs are consumed one per
// Connect call; once exhausted, Connect succeeds.
type fakeTransport struct {
	mu sync.Mutex

	connectErrs   []error
	publishErr    error
	disconnectErr error
	ack           int

	connected     bool
	connects      int
	disconnects   int
	publishes     []fakePublish
	publishedDown int
	lostHandler   func(error)

	// onConnect runs inside Connect, before it returns.
	onConnect func()
}

type fakePublish struct {
	topic   string
	payload []byte
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	var err error
	if len(f.connectErrs) > 0 {
		err = f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
	}
	if err == nil {
		f.connected = true
	}
	hook := f.onConnect
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		f.publishedDown++
	}
	if f.publishErr != nil {
		return 0, f.publishErr
	}
	f.publishes = append(f.publishes, fakePublish{topic: topic, payload: append([]byte(nil), payload...)})
	return f.ack, nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return f.disconnectErr
}

func (f *fakeTransport) SetConnectionLostHandler(fn func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostHandler = fn
}

// drop simulates the broker going away and notifies the loss handler.
func (f *fakeTransport) drop(cause error) {
	f.mu.Lock()
	f.connected = false
	fn := f.lostHandler
	f.mu.Unlock()
	if fn != nil {
		fn(cause)
	}
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeTransport) published() []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePublish(nil), f.publishes...)
}

// transitionLog records state changes.
type transitionLog struct {
	mu      sync.Mutex
	changes [][2]ConnectionState
}

func (l *transitionLog) observe(from, to ConnectionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, [2]ConnectionState{from, to})
}

func (l *transitionLog) count(to ConnectionState) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.changes {
		if c[1] == to {
			n++
		}
	}
	return n
}

// =============================================================================
// State
// =============================================================================

func TestConnectionState_String(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnecting, "disconnecting"},
		{ConnectionState(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewConnectionManager_InitialState(t *testing.T) {
	m := NewConnectionManager(&fakeTransport{}, nil)

	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
	select {
	case <-m.Ready():
		t.Error("Ready() closed before connect")
	default:
	}
}

// =============================================================================
// Connect
// =============================================================================

func TestConnect_Success(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)
	var log transitionLog
	m.OnStateChange(log.observe)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !m.IsConnected() {
		t.Errorf("State() = %v, want connected", m.State())
	}
	select {
	case <-m.Ready():
	default:
		t.Error("Ready() not closed after connect")
	}

	want := [][2]ConnectionState{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateConnected},
	}
	if len(log.changes) != len(want) {
		t.Fatalf("transitions = %v, want %v", log.changes, want)
	}
	for i := range want {
		if log.changes[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, log.changes[i], want[i])
		}
	}
}

func TestConnect_FailureStaysDisconnected(t *testing.T) {
	refused := errors.New("connection refused")
	ft := &fakeTransport{connectErrs: []error{refused}}
	m := NewConnectionManager(ft, nil)

	err := m.Connect(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Errorf("Connect() error = %v, want ErrConnect", err)
	}
	if !errors.Is(err, refused) {
		t.Errorf("Connect() error = %v, want wrapped cause", err)
	}
	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
	if ft.connectCount() != 1 {
		t.Errorf("transport connects = %d, want 1 (no internal retry)", ft.connectCount())
	}
}

func TestConnect_WhenConnectedIsNoop(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if ft.connectCount() != 1 {
		t.Errorf("transport connects = %d, want 1", ft.connectCount())
	}
}

func TestConnect_LostDuringConnect(t *testing.T) {
	ft := &fakeTransport{}
	ft.onConnect = func() { ft.drop(errors.New("reset")) }
	m := NewConnectionManager(ft, nil)

	if err := m.Connect(context.Background()); !errors.Is(err, ErrConnect) {
		t.Errorf("Connect() error = %v, want ErrConnect", err)
	}
	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
}

// =============================================================================
// Publish
// =============================================================================

func TestPublish_NotConnected(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)

	_, err := m.Publish(context.Background(), "t", []byte("x"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if len(ft.published()) != 0 {
		t.Error("transport received a publish while disconnected")
	}
}

func TestPublish_Success(t *testing.T) {
	ft := &fakeTransport{ack: 0}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ack, err := m.Publish(context.Background(), "sim/device/1/telemetry", []byte(`{"temp":20}`))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if ack != 0 {
		t.Errorf("ack = %d, want 0", ack)
	}
	got := ft.published()
	if len(got) != 1 || got[0].topic != "sim/device/1/telemetry" {
		t.Errorf("published = %v, want one message on sim/device/1/telemetry", got)
	}
}

func TestPublish_TransportError(t *testing.T) {
	sendErr := errors.New("write: broken pipe")
	ft := &fakeTransport{publishErr: sendErr}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	_, err := m.Publish(context.Background(), "t", nil)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Publish() error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, sendErr) {
		t.Errorf("Publish() error = %v, want wrapped cause", err)
	}
	if !m.IsConnected() {
		t.Error("transport error forced a disconnect")
	}
}

func TestPublish_AfterDisconnect(t *testing.T) {
	ft := &fakeTransport{publishErr: errors.New("should not be reached")}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Disconnect()

	for i := 0; i < 3; i++ {
		_, err := m.Publish(context.Background(), "t", nil)
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("Publish() error = %v, want ErrNotConnected", err)
		}
		if errors.Is(err, ErrTransport) {
			t.Errorf("Publish() returned a transport error after disconnect")
		}
	}
}

// =============================================================================
// Disconnect
// =============================================================================

func TestDisconnect_SwallowsError(t *testing.T) {
	ft := &fakeTransport{disconnectErr: errors.New("already closed")}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.Disconnect()

	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
	if ft.disconnectCount() != 1 {
		t.Errorf("transport disconnects = %d, want 1", ft.disconnectCount())
	}
}

func TestDisconnect_WhenDisconnected(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)

	m.Disconnect()
	m.Disconnect()

	if ft.disconnectCount() != 0 {
		t.Errorf("transport disconnects = %d, want 0", ft.disconnectCount())
	}
}

func TestDisconnect_ReadyReset(t *testing.T) {
	m := NewConnectionManager(&fakeTransport{}, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Disconnect()

	select {
	case <-m.Ready():
		t.Error("Ready() still closed after disconnect")
	default:
	}
}

func TestOnStateChange_EveryObserverNotified(t *testing.T) {
	m := NewConnectionManager(&fakeTransport{}, nil)

	var first, second transitionLog
	m.OnStateChange(first.observe)
	m.OnStateChange(second.observe)

	// An observer registered while notifying only sees later transitions.
	var late transitionLog
	registered := false
	m.OnStateChange(func(_, to ConnectionState) {
		if to == StateConnected && !registered {
			registered = true
			m.OnStateChange(late.observe)
		}
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Disconnect()

	want := [][2]ConnectionState{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateConnected},
		{StateConnected, StateDisconnecting},
		{StateDisconnecting, StateDisconnected},
	}
	for name, log := range map[string]*transitionLog{"first": &first, "second": &second} {
		if len(log.changes) != len(want) {
			t.Fatalf("%s transitions = %v, want %v", name, log.changes, want)
		}
		for i := range want {
			if log.changes[i] != want[i] {
				t.Errorf("%s transition[%d] = %v, want %v", name, i, log.changes[i], want[i])
			}
		}
	}
	if got := late.count(StateConnected); got != 0 {
		t.Errorf("late observer connected transitions = %d, want 0", got)
	}
	if got := late.count(StateDisconnected); got != 1 {
		t.Errorf("late observer disconnected transitions = %d, want 1", got)
	}
}

// =============================================================================
// Asynchronous loss
// =============================================================================

func TestConnectionLost(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	cause := errors.New("EOF")
	ft.drop(cause)

	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
	select {
	case err := <-m.Lost():
		if !errors.Is(err, cause) {
			t.Errorf("Lost() = %v, want %v", err, cause)
		}
	case <-time.After(time.Second):
		t.Fatal("no loss notification")
	}

	if _, err := m.Publish(context.Background(), "t", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestConnectionLost_StaleHandlerIgnored(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	ft.mu.Lock()
	stale := ft.lostHandler
	ft.mu.Unlock()

	m.Disconnect()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}

	stale(errors.New("old connection"))

	if !m.IsConnected() {
		t.Errorf("State() = %v, stale loss notification was applied", m.State())
	}
}

func TestConnectionLost_AfterDisconnectIgnored(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.Disconnect()
	ft.drop(errors.New("late"))

	select {
	case err := <-m.Lost():
		t.Errorf("Lost() delivered %v after disconnect", err)
	default:
	}
}

func TestConnectionManager_ConcurrentPublishAndLoss(t *testing.T) {
	ft := &fakeTransport{}
	m := NewConnectionManager(ft, nil)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := m.Publish(context.Background(), "t", nil)
				if err != nil && !errors.Is(err, ErrNotConnected) {
					t.Errorf("Publish() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ft.drop(errors.New("EOF"))
	}()
	wg.Wait()

	if got := m.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
}
