package datalayer

import (
	"context"
	"sort"
	"sync"
)

// Network is an in-process data layer: every client created from the same Network can see
// and message the others while connected. Each client receives its events in send order.
type Network struct {
	mu      sync.RWMutex
	clients map[string]*localClient
}

// NewNetwork creates an empty Network.
func NewNetwork() *Network {
	return &Network{clients: make(map[string]*localClient)}
}

// NewClient returns a disconnected client for node.
func (n *Network) NewClient(node Node) Client {
	return &localClient{network: n, node: node}
}

func (n *Network) join(c *localClient) []*localClient {
	n.mu.Lock()
	defer n.mu.Unlock()

	// A node id seen again replaces the older registration.
	n.clients[c.node.ID] = c
	return n.peersLocked(c.node.ID)
}

func (n *Network) leave(c *localClient) []*localClient {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.clients[c.node.ID] != c {
		return nil
	}
	delete(n.clients, c.node.ID)
	return n.peersLocked(c.node.ID)
}

func (n *Network) peers(self string) []*localClient {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peersLocked(self)
}

func (n *Network) peersLocked(self string) []*localClient {
	out := make([]*localClient, 0, len(n.clients))
	for id, c := range n.clients {
		if id != self {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].node.ID < out[j].node.ID })
	return out
}

func (n *Network) lookup(id string) (*localClient, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.clients[id]
	return c, ok
}

type localClient struct {
	network   *Network
	node      Node
	mu        sync.Mutex
	connected bool
	listeners Listeners
	inbox     Mailbox
}

func (c *localClient) LocalNode() Node { return c.node }

func (c *localClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = true
	c.mu.Unlock()

	for _, p := range c.network.join(c) {
		p := p
		node := c.node
		p.inbox.Post(func() { p.listeners.PeerConnected(node) })
	}
	return nil
}

func (c *localClient) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()

	for _, p := range c.network.leave(c) {
		p := p
		node := c.node
		p.inbox.Post(func() { p.listeners.PeerDisconnected(node) })
	}
	return nil
}

func (c *localClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *localClient) ConnectedNodes(ctx context.Context) ([]Node, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peers := c.network.peers(c.node.ID)
	nodes := make([]Node, 0, len(peers))
	for _, p := range peers {
		nodes = append(nodes, p.node)
	}
	return nodes, nil
}

func (c *localClient) SendMessage(ctx context.Context, nodeID, path string, data []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, ok := c.network.lookup(nodeID)
	if !ok || nodeID == c.node.ID {
		return ErrUnknownNode
	}

	ev := MessageEvent{SourceNodeID: c.node.ID, Path: path, Data: append([]byte(nil), data...)}
	target.inbox.Post(func() { target.listeners.MessageReceived(ev) })
	return nil
}

func (c *localClient) PutDataItem(ctx context.Context, path string, data []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	events := []DataEvent{{URI: ItemURI(c.node.ID, path), Data: append([]byte(nil), data...)}}
	for _, p := range c.network.peers(c.node.ID) {
		p := p
		p.inbox.Post(func() { p.listeners.DataChanged(events) })
	}
	return nil
}

func (c *localClient) AddListener(cb Callbacks) func() {
	return c.listeners.Add(cb)
}
