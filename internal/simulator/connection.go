package simulator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ConnectionState is the lifecycle state of the broker connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// String returns the state name used in logs and metrics.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// errLostDuringConnect is reported when the transport signals loss before
// the connect attempt that produced it has been committed.
var errLostDuringConnect = errors.New("connection lost during connect")

// ConnectionManager owns the lifecycle of the broker connection.
//
// State machine:
//
//	Disconnected --Connect ok--> Connected
//	Disconnected --Connect failed--> Disconnected
//	Connected --Disconnect--> Disconnected
//	Connected --transport loss--> Disconnected
//
// Connecting and Disconnecting are visible while the transport call is in
// progress. Connect and Disconnect are serialised by transMu; every state
// write happens under mu. Publish holds mu shared for the duration of the
// transport call, so no transition can complete under an in-flight publish.
type ConnectionManager struct {
	transport Transport
	logger    Logger

	transMu sync.Mutex

	mu        sync.RWMutex
	state     ConnectionState
	epoch     uint64
	lostEarly bool
	ready     chan struct{}
	observers []func(from, to ConnectionState)

	lost chan error
}

// NewConnectionManager creates a manager in the Disconnected state.
func NewConnectionManager(transport Transport, logger Logger) *ConnectionManager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ConnectionManager{
		transport: transport,
		logger:    logger,
		state:     StateDisconnected,
		ready:     make(chan struct{}),
		lost:      make(chan error, 1),
	}
}

// OnStateChange registers fn to be called after every state change.
// Observers run on the goroutine that made the change, outside the lock.
func (m *ConnectionManager) OnStateChange(fn func(from, to ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// State returns the current connection state.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the state is Connected.
func (m *ConnectionManager) IsConnected() bool {
	return m.State() == StateConnected
}

// Ready returns a channel that is closed while the manager is Connected.
// A fresh channel is issued each time the connection is lost or closed.
func (m *ConnectionManager) Ready() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Lost delivers the cause of an asynchronous connection loss. At most one
// notification is buffered.
func (m *ConnectionManager) Lost() <-chan error {
	return m.lost
}

// Connect performs a single connection attempt. It does not retry.
// Calling Connect while Connected is a no-op.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	epoch := m.epoch
	m.lostEarly = false
	notify := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	notify()

	m.transport.SetConnectionLostHandler(func(err error) {
		m.handleLost(epoch, err)
	})

	err := m.transport.Connect(ctx)

	m.mu.Lock()
	if err == nil && m.lostEarly {
		err = errLostDuringConnect
	}
	if err != nil {
		notify = m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		notify()
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	notify = m.setStateLocked(StateConnected)
	m.mu.Unlock()
	notify()

	return nil
}

// Publish submits payload to topic. It fails fast with ErrNotConnected
// unless the state is Connected; transport failures wrap ErrTransport.
func (m *ConnectionManager) Publish(ctx context.Context, topic string, payload []byte) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StateConnected {
		return 0, ErrNotConnected
	}

	ack, err := m.transport.Publish(ctx, topic, payload)
	if err != nil {
		return ack, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return ack, nil
}

// Disconnect closes the connection. It is best-effort: transport errors are
// logged, never returned. Safe to call in any state and more than once.
func (m *ConnectionManager) Disconnect() {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	// Supersede the current connection's loss handler.
	m.epoch++
	notify := m.setStateLocked(StateDisconnecting)
	m.mu.Unlock()
	notify()

	if err := m.transport.Disconnect(); err != nil {
		m.logger.Warn("disconnect failed", "error", err)
	}

	m.mu.Lock()
	notify = m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	notify()
}

// handleLost applies an asynchronous loss notification. Notifications from
// superseded connections are ignored.
func (m *ConnectionManager) handleLost(epoch uint64, cause error) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	switch m.state {
	case StateConnecting:
		m.lostEarly = true
		m.mu.Unlock()
		return
	case StateConnected:
	default:
		m.mu.Unlock()
		return
	}
	notify := m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	notify()

	m.logger.Warn("connection lost", "error", cause)

	select {
	case m.lost <- cause:
	default:
	}
}

// setStateLocked records a transition and returns a function that notifies
// observers. Caller holds mu and must call the result after releasing it.
func (m *ConnectionManager) setStateLocked(to ConnectionState) func() {
	from := m.state
	if from == to {
		return func() {}
	}
	m.state = to

	if to == StateConnected {
		close(m.ready)
	} else if from == StateConnected {
		m.ready = make(chan struct{})
	}

	observers := slices.Clone(m.observers)
	return func() {
		for _, fn := range observers {
			fn(from, to)
		}
	}
}
