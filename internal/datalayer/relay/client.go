package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
)

var errUnexpectedWelcome = errors.New("relay did not send a welcome envelope")

// Client is a datalayer.Client backed by a websocket connection to a relay Server.
type Client struct {
	url    string
	node   datalayer.Node
	dialer *websocket.Dialer
	logger *zap.Logger

	listeners datalayer.Listeners
	inbox     datalayer.Mailbox

	// connectMu serializes dials; the relay replaces a node's older registration.
	connectMu sync.Mutex

	mu      sync.Mutex
	conn    *clientConn
	pending map[string]chan Envelope
}

type clientConn struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

var _ datalayer.Client = (*Client)(nil)

// NewClient returns a disconnected client that will register as node on the relay at rawURL.
func NewClient(rawURL string, node datalayer.Node, logger *zap.Logger) *Client {
	return &Client{
		url:     rawURL,
		node:    node,
		dialer:  websocket.DefaultDialer,
		logger:  logger.Named("relay_client").With(zap.String("node", node.ID)),
		pending: make(map[string]chan Envelope),
	}
}

func (c *Client) LocalNode() datalayer.Node { return c.node }

// Connect dials the relay and waits for its welcome.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("node", c.node.ID)
	if c.node.DisplayName != "" {
		q.Set("name", c.node.DisplayName)
	}
	u.RawQuery = q.Encode()

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	deadline := time.Now().Add(pongWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ws.SetReadDeadline(deadline)

	var welcome Envelope
	if err := ws.ReadJSON(&welcome); err != nil {
		ws.Close()
		return fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != typeWelcome {
		ws.Close()
		return errUnexpectedWelcome
	}

	conn := &clientConn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writePump(conn)
	go c.readPump(conn)

	c.logger.Info("connected to relay", zap.String("url", c.url), zap.Int("peers", len(welcome.Nodes)))
	return nil
}

// Disconnect closes the connection. Outstanding requests fail with datalayer.ErrNotConnected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.close()
	c.failPending()
	c.logger.Info("disconnected from relay")
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) ConnectedNodes(ctx context.Context) ([]datalayer.Node, error) {
	res, err := c.request(ctx, Envelope{Type: typeListNodes})
	if err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

func (c *Client) SendMessage(ctx context.Context, nodeID, path string, data []byte) error {
	res, err := c.request(ctx, Envelope{Type: typeSend, Target: nodeID, Path: path, Data: data})
	if err != nil {
		return err
	}
	return resultError(res.Error)
}

func (c *Client) PutDataItem(ctx context.Context, path string, data []byte) error {
	res, err := c.request(ctx, Envelope{Type: typePutData, Path: path, Data: data})
	if err != nil {
		return err
	}
	return resultError(res.Error)
}

func (c *Client) AddListener(cb datalayer.Callbacks) func() {
	return c.listeners.Add(cb)
}

func resultError(text string) error {
	switch text {
	case "":
		return nil
	case datalayer.ErrUnknownNode.Error():
		return datalayer.ErrUnknownNode
	default:
		return errors.New(text)
	}
}

func (c *Client) request(ctx context.Context, env Envelope) (Envelope, error) {
	env.ID = uuid.NewString()
	reply := make(chan Envelope, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return Envelope{}, datalayer.ErrNotConnected
	}
	c.pending[env.ID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
	}()

	b, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, err
	}

	select {
	case conn.send <- b:
	case <-conn.done:
		return Envelope{}, datalayer.ErrNotConnected
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}

	select {
	case res, ok := <-reply:
		if !ok {
			return Envelope{}, datalayer.ErrNotConnected
		}
		return res, nil
	case <-conn.done:
		return Envelope{}, datalayer.ErrNotConnected
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (c *Client) resolve(env Envelope) {
	c.mu.Lock()
	reply, ok := c.pending[env.ID]
	delete(c.pending, env.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping result for unknown request", zap.String("id", env.ID))
		return
	}
	reply <- env
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, reply := range c.pending {
		close(reply)
		delete(c.pending, id)
	}
}

// dispatch queues events for listeners off the read goroutine so callbacks may issue
// requests. Events reach listeners in the order the relay sent them.
func (c *Client) dispatch(env Envelope) {
	switch env.Type {
	case typeMessage:
		ev := datalayer.MessageEvent{SourceNodeID: env.Source, Path: env.Path, Data: env.Data}
		c.inbox.Post(func() { c.listeners.MessageReceived(ev) })
	case typeDataChanged:
		events := []datalayer.DataEvent{{URI: env.URI, Data: env.Data}}
		c.inbox.Post(func() { c.listeners.DataChanged(events) })
	case typeNodeConnected:
		if env.Node != nil {
			node := *env.Node
			c.inbox.Post(func() { c.listeners.PeerConnected(node) })
		}
	case typeNodeDisconnected:
		if env.Node != nil {
			node := *env.Node
			c.inbox.Post(func() { c.listeners.PeerDisconnected(node) })
		}
	default:
		c.logger.Warn("unsupported envelope type", zap.String("type", env.Type))
	}
}

// connectionLost clears conn if it is still current.
func (c *Client) connectionLost(conn *clientConn) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.close()
	if current {
		c.failPending()
		c.logger.Warn("relay connection lost")
	}
}

func (c *Client) readPump(conn *clientConn) {
	defer c.connectionLost(conn)

	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			select {
			case <-conn.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Warn("websocket read error", zap.Error(err))
				}
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("invalid envelope", zap.Error(err))
			continue
		}

		switch env.Type {
		case typeNodes, typeSendResult, typePutDataResult:
			c.resolve(env)
		default:
			c.dispatch(env)
		}
	}
}

func (c *Client) writePump(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case <-conn.done:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write envelope", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
