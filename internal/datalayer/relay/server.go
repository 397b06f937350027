package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
)

var errSendBufferFull = errors.New("send buffer full")

// ServerMetrics tracks relay activity.
type ServerMetrics struct {
	Connections prometheus.Gauge
	Routed      *prometheus.CounterVec
}

// NewServerMetrics creates relay metrics and registers them with reg when it is not nil.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sunshine_wear",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of nodes currently connected to the relay",
		}),
		Routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunshine_wear",
			Subsystem: "relay",
			Name:      "envelopes_total",
			Help:      "Envelopes handled by the relay, by type and result",
		}, []string{"type", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Routed)
	}
	return m
}

// Server routes envelopes between connected nodes.
type Server struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *ServerMetrics

	mu    sync.RWMutex
	conns map[string]*serverConn
}

// NewServer creates a relay. metrics may be nil.
func NewServer(logger *zap.Logger, metrics *ServerMetrics) *Server {
	if metrics == nil {
		metrics = NewServerMetrics(nil)
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Devices connect directly, not from browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.Named("relay"),
		metrics: metrics,
		conns:   make(map[string]*serverConn),
	}
}

type serverConn struct {
	server    *Server
	node      datalayer.Node
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// ServeHTTP upgrades the request and registers the node named by the "node" query parameter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	node := datalayer.Node{
		ID:          r.URL.Query().Get("node"),
		DisplayName: r.URL.Query().Get("name"),
	}
	if node.ID == "" {
		http.Error(w, "missing node query parameter", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err), zap.String("remoteAddr", r.RemoteAddr))
		return
	}

	c := &serverConn{
		server: s,
		node:   node,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: s.logger.With(zap.String("node", node.ID)),
	}

	peers := s.register(c)
	for _, p := range peers {
		p.enqueue(Envelope{Type: typeNodeConnected, Node: &c.node})
	}

	go c.writePump()
	go c.readPump()

	c.logger.Info("node connected", zap.String("name", node.DisplayName), zap.String("remoteAddr", r.RemoteAddr))
}

// Nodes lists the connected nodes ordered by id.
func (s *Server) Nodes() []datalayer.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]datalayer.Node, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close drops every connection.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// register publishes c and queues its welcome under the same lock, so the welcome is the
// first envelope c sends whatever peers route to it concurrently.
func (s *Server) register(c *serverConn) []*serverConn {
	s.mu.Lock()
	old := s.conns[c.node.ID]
	s.conns[c.node.ID] = c
	peers := s.peersLocked(c.node.ID)
	c.enqueue(Envelope{Type: typeWelcome, Node: &c.node, Nodes: nodesOf(peers)})
	s.mu.Unlock()

	if old != nil {
		c.logger.Info("replacing previous connection for node")
		old.close()
	} else {
		s.metrics.Connections.Inc()
	}
	return peers
}

func (s *Server) unregister(c *serverConn) {
	s.mu.Lock()
	if s.conns[c.node.ID] != c {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c.node.ID)
	peers := s.peersLocked(c.node.ID)
	s.mu.Unlock()

	s.metrics.Connections.Dec()
	for _, p := range peers {
		p.enqueue(Envelope{Type: typeNodeDisconnected, Node: &c.node})
	}
	c.logger.Info("node disconnected")
}

func (s *Server) peersLocked(self string) []*serverConn {
	out := make([]*serverConn, 0, len(s.conns))
	for id, c := range s.conns {
		if id != self {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].node.ID < out[j].node.ID })
	return out
}

func (s *Server) lookup(id string) (*serverConn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

func (s *Server) peers(self string) []*serverConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peersLocked(self)
}

func nodesOf(conns []*serverConn) []datalayer.Node {
	out := make([]datalayer.Node, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.node)
	}
	return out
}

func (c *serverConn) handle(env Envelope) {
	s := c.server
	switch env.Type {
	case typeListNodes:
		c.enqueue(Envelope{Type: typeNodes, ID: env.ID, Nodes: nodesOf(s.peers(c.node.ID))})
		s.metrics.Routed.WithLabelValues(env.Type, "ok").Inc()

	case typeSend:
		result := Envelope{Type: typeSendResult, ID: env.ID}
		target, ok := s.lookup(env.Target)
		switch {
		case !ok || env.Target == c.node.ID:
			result.Error = datalayer.ErrUnknownNode.Error()
		default:
			msg := Envelope{Type: typeMessage, Source: c.node.ID, Path: env.Path, Data: env.Data}
			if err := target.enqueue(msg); err != nil {
				result.Error = err.Error()
			}
		}
		c.enqueue(result)
		s.metrics.Routed.WithLabelValues(env.Type, resultLabel(result.Error)).Inc()

	case typePutData:
		changed := Envelope{Type: typeDataChanged, Source: c.node.ID, URI: datalayer.ItemURI(c.node.ID, env.Path), Data: env.Data}
		for _, p := range s.peers(c.node.ID) {
			_ = p.enqueue(changed)
		}
		c.enqueue(Envelope{Type: typePutDataResult, ID: env.ID})
		s.metrics.Routed.WithLabelValues(env.Type, "ok").Inc()

	default:
		c.logger.Warn("unsupported envelope type", zap.String("type", env.Type))
		s.metrics.Routed.WithLabelValues("unknown", "error").Inc()
	}
}

func resultLabel(errText string) string {
	if errText != "" {
		return "error"
	}
	return "ok"
}

func (c *serverConn) enqueue(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return datalayer.ErrUnknownNode
	case c.send <- b:
		return nil
	default:
		c.logger.Warn("dropping envelope, send buffer full", zap.String("type", env.Type))
		return errSendBufferFull
	}
}

func (c *serverConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// readPump pumps envelopes from the websocket connection to the relay
func (c *serverConn) readPump() {
	defer func() {
		c.server.unregister(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("invalid envelope", zap.Error(err))
			continue
		}
		c.handle(env)
	}
}

// writePump pumps envelopes from the relay to the websocket connection
func (c *serverConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write envelope", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
