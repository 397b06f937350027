package datalayer

import (
	"context"
	"sync"
)

// Handle is a Client view over a shared base client. Disconnecting a handle drops the
// listeners registered through it and fails its later calls, but leaves base connected.
type Handle struct {
	base Client

	mu        sync.Mutex
	connected bool
	removers  []func()
}

var _ Client = (*Handle)(nil)

// NewHandle returns a disconnected handle over base.
func NewHandle(base Client) *Handle {
	return &Handle{base: base}
}

func (h *Handle) LocalNode() Node { return h.base.LocalNode() }

func (h *Handle) Connect(ctx context.Context) error {
	if err := h.base.Connect(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()
	return nil
}

func (h *Handle) Disconnect() error {
	h.mu.Lock()
	removers := h.removers
	h.removers = nil
	h.connected = false
	h.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	return nil
}

func (h *Handle) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected && h.base.IsConnected()
}

func (h *Handle) ConnectedNodes(ctx context.Context) ([]Node, error) {
	if !h.IsConnected() {
		return nil, ErrNotConnected
	}
	return h.base.ConnectedNodes(ctx)
}

func (h *Handle) SendMessage(ctx context.Context, nodeID, path string, data []byte) error {
	if !h.IsConnected() {
		return ErrNotConnected
	}
	return h.base.SendMessage(ctx, nodeID, path, data)
}

func (h *Handle) PutDataItem(ctx context.Context, path string, data []byte) error {
	if !h.IsConnected() {
		return ErrNotConnected
	}
	return h.base.PutDataItem(ctx, path, data)
}

// AddListener registers cb on the base client until it is removed or the handle disconnects.
func (h *Handle) AddListener(cb Callbacks) func() {
	var once sync.Once
	baseRemove := h.base.AddListener(cb)
	remove := func() { once.Do(baseRemove) }

	h.mu.Lock()
	h.removers = append(h.removers, remove)
	h.mu.Unlock()
	return remove
}
