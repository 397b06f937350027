package wearsync

import (
	"context"
	"sync"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
)

type sentMessage struct {
	NodeID string
	Path   string
	Data   []byte
}

// fakeClient is a scripted datalayer.Client. Callbacks fire synchronously through fire*.
type fakeClient struct {
	node       datalayer.Node
	connectErr error
	nodes      []datalayer.Node
	nodesErr   error
	sendErr    error

	// hooks run without the lock held
	afterQuery func(*fakeClient)
	onSend     func(*fakeClient)

	listeners datalayer.Listeners

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	sent        []sentMessage
	items       []sentMessage
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{node: datalayer.Node{ID: id}}
}

func (f *fakeClient) LocalNode() datalayer.Node { return f.node }

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) ConnectedNodes(ctx context.Context) ([]datalayer.Node, error) {
	nodes, err := f.nodes, f.nodesErr
	if f.afterQuery != nil {
		f.afterQuery(f)
	}
	return nodes, err
}

func (f *fakeClient) SendMessage(ctx context.Context, nodeID, path string, data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{NodeID: nodeID, Path: path, Data: data})
	f.mu.Unlock()

	if f.onSend != nil {
		f.onSend(f)
	}
	return f.sendErr
}

func (f *fakeClient) PutDataItem(ctx context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return datalayer.ErrNotConnected
	}
	f.items = append(f.items, sentMessage{NodeID: f.node.ID, Path: path, Data: data})
	return nil
}

func (f *fakeClient) AddListener(cb datalayer.Callbacks) func() {
	return f.listeners.Add(cb)
}

func (f *fakeClient) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeClient) putItems() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.items...)
}

func (f *fakeClient) setConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *fakeClient) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeClient) firePeerConnected(id string) {
	f.listeners.PeerConnected(datalayer.Node{ID: id})
}

func (f *fakeClient) fireMessage(source, path string, data []byte) {
	f.listeners.MessageReceived(datalayer.MessageEvent{SourceNodeID: source, Path: path, Data: data})
}

func (f *fakeClient) fireDataChanged(events ...datalayer.DataEvent) {
	f.listeners.DataChanged(events)
}
