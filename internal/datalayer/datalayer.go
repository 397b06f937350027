// Package datalayer defines the peer-to-peer messaging substrate between a phone and its
// paired watch: connection lifecycle, peer (node) discovery, point-to-point messages and
// data item change notifications.
package datalayer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
)

// Well-known paths.
const (
	PathWeatherUpdate    = "/weatherUpdate"
	PathDataItemReceived = "/data-item-received"
	PathCount            = "/count"
)

// URIScheme prefixes data item locators: wear://<origin node id><path>.
const URIScheme = "wear"

var (
	ErrNotConnected = errors.New("data layer client is not connected")
	ErrUnknownNode  = errors.New("node is not connected")
)

// Node is one reachable device.
type Node struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// MessageEvent is a message delivered to this node.
type MessageEvent struct {
	SourceNodeID string
	Path         string
	Data         []byte
}

// DataEvent describes a data item some node published or updated.
type DataEvent struct {
	URI  string
	Data []byte
}

// ItemURI builds the locator of the data item at path owned by nodeID.
func ItemURI(nodeID, path string) string {
	u := url.URL{Scheme: URIScheme, Host: nodeID, Path: path}
	return u.String()
}

// ParseItemURI splits a locator into origin node id and path.
func ParseItemURI(raw string) (nodeID, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != URIScheme || u.Host == "" {
		return "", "", fmt.Errorf("not a data item uri: %q", raw)
	}
	return u.Host, u.Path, nil
}

// Callbacks receive substrate events. Nil funcs are skipped. Callbacks run on a substrate
// goroutine, one event at a time in arrival order, and must not block on a later event.
type Callbacks struct {
	PeerConnected    func(Node)
	PeerDisconnected func(Node)
	MessageReceived  func(MessageEvent)
	DataChanged      func([]DataEvent)
}

// Client is one node's handle on the data layer.
type Client interface {
	LocalNode() Node

	// Connect blocks until the client is connected or ctx is done.
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// ConnectedNodes lists the other nodes currently reachable.
	ConnectedNodes(ctx context.Context) ([]Node, error)

	// SendMessage delivers data to nodeID on path. The returned error is the send result.
	SendMessage(ctx context.Context, nodeID, path string, data []byte) error

	// PutDataItem publishes a data item owned by this node; peers see a DataChanged event.
	PutDataItem(ctx context.Context, path string, data []byte) error

	AddListener(cb Callbacks) (remove func())
}

// Listeners is a set of registered Callbacks, usable by Client implementations.
type Listeners struct {
	mu   sync.RWMutex
	next int
	set  map[int]Callbacks
}

// Add registers cb. The returned func removes it and is safe to call more than once.
func (l *Listeners) Add(cb Callbacks) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.set == nil {
		l.set = make(map[int]Callbacks)
	}
	id := l.next
	l.next++
	l.set[id] = cb

	return func() {
		l.mu.Lock()
		delete(l.set, id)
		l.mu.Unlock()
	}
}

func (l *Listeners) snapshot() []Callbacks {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Callbacks, 0, len(l.set))
	for _, cb := range l.set {
		out = append(out, cb)
	}
	return out
}

func (l *Listeners) PeerConnected(n Node) {
	for _, cb := range l.snapshot() {
		if cb.PeerConnected != nil {
			cb.PeerConnected(n)
		}
	}
}

func (l *Listeners) PeerDisconnected(n Node) {
	for _, cb := range l.snapshot() {
		if cb.PeerDisconnected != nil {
			cb.PeerDisconnected(n)
		}
	}
}

func (l *Listeners) MessageReceived(ev MessageEvent) {
	for _, cb := range l.snapshot() {
		if cb.MessageReceived != nil {
			cb.MessageReceived(ev)
		}
	}
}

func (l *Listeners) DataChanged(events []DataEvent) {
	for _, cb := range l.snapshot() {
		if cb.DataChanged != nil {
			cb.DataChanged(events)
		}
	}
}

// Mailbox runs posted funcs one at a time in post order on a goroutine of its own, started
// on demand. Post never blocks, so a substrate read loop can hand events to it and keep
// reading while a callback issues requests. The zero value is ready to use.
type Mailbox struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// Post queues fn behind everything posted before it.
func (m *Mailbox) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.drain()
}

func (m *Mailbox) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.running = false
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
	}
}
