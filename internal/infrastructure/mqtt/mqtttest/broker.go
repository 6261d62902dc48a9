// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Message is a publish received by the broker.
type Message struct {
	ClientID string
	Topic    string
	Payload  []byte
	Retain   bool
}

// Broker is an embedded mochi-mqtt broker listening on a free local port.
type Broker struct {
	Host string
	Port int

	server    *mochi.Server
	hook      *captureHook
	closeOnce sync.Once
}

// NewBroker starts a broker and registers its shutdown with t.Cleanup.
//
// The listener is bound before NewBroker returns, and Serve has already
// started accepting, so Close never overlaps listener startup.
func NewBroker(t testing.TB) *Broker {
	t.Helper()

	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding allow hook: %v", err)
	}
	hook := &captureHook{}
	if err := server.AddHook(hook, nil); err != nil {
		t.Fatalf("adding capture hook: %v", err)
	}

	listener := listeners.NewTCP(listeners.Config{
		ID:      "devicesim-test",
		Address: "127.0.0.1:0",
	})
	if err := server.AddListener(listener); err != nil {
		t.Fatalf("adding listener: %v", err)
	}

	host, port, err := splitAddr(listener.Address())
	if err != nil {
		_ = server.Close()
		t.Fatalf("reading listener address: %v", err)
	}

	// Serve returns once every listener is accepting.
	if err := server.Serve(); err != nil {
		_ = server.Close()
		t.Fatalf("starting broker: %v", err)
	}

	b := &Broker{Host: host, Port: port, server: server, hook: hook}
	t.Cleanup(b.Close)
	return b
}

// Addr returns host:port.
func (b *Broker) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// Close stops the broker. Safe to call more than once.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		_ = b.server.Close()
	})
}

// Messages returns every publish received so far, in arrival order.
func (b *Broker) Messages() []Message {
	return b.hook.snapshot()
}

// MessagesOn returns the publishes received on topic.
func (b *Broker) MessagesOn(topic string) []Message {
	var out []Message
	for _, m := range b.hook.snapshot() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// WaitForMessages blocks until at least n publishes have arrived or timeout
// passes, and returns what arrived.
func (b *Broker) WaitForMessages(n int, timeout time.Duration) []Message {
	deadline := time.Now().Add(timeout)
	for {
		msgs := b.hook.snapshot()
		if len(msgs) >= n || time.Now().After(deadline) {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// DropClient closes the network connection of the named client, as a broker
// restart or network failure would.
func (b *Broker) DropClient(clientID string) error {
	cl, ok := b.server.Clients.Get(clientID)
	if !ok {
		return fmt.Errorf("client %q not connected", clientID)
	}
	cl.Stop(errors.New("dropped by test"))
	return nil
}

// ClientConnected reports whether the broker holds a live session for
// clientID.
func (b *Broker) ClientConnected(clientID string) bool {
	cl, ok := b.server.Clients.Get(clientID)
	return ok && !cl.Closed()
}

// captureHook records every inbound publish.
type captureHook struct {
	mochi.HookBase

	mu       sync.Mutex
	messages []Message
}

func (h *captureHook) ID() string {
	return "capture-hook"
}

func (h *captureHook) Provides(b byte) bool {
	return bytes.Contains([]byte{mochi.OnPublish}, []byte{b})
}

func (h *captureHook) OnPublish(cl *mochi.Client, pk packets.Packet) (packets.Packet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{
		ClientID: cl.ID,
		Topic:    pk.TopicName,
		Payload:  append([]byte(nil), pk.Payload...),
		Retain:   pk.FixedHeader.Retain,
	})
	return pk, nil
}

func (h *captureHook) snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", portStr, err)
	}
	return host, port, nil
}
