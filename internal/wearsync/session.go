// Package wearsync implements the phone-to-watch weather synchronization channel: a one-shot
// sender Session, the long-lived receiving Listener and the /count Beacon.
package wearsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
	"github.com/i474232898/sunshine-wear/internal/weather"
)

var (
	ErrConnection      = errors.New("data layer connection failed")
	ErrPeerUnavailable = errors.New("no peer node became available")
	ErrSend            = errors.New("weather update send failed")

	errSessionUsed = errors.New("session already ran")
)

// DefaultPeerTimeout bounds how long a session waits for a peer.
const DefaultPeerTimeout = 30 * time.Second

// State is a session lifecycle stage. States only move forward.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StatePeerResolving
	StateSending
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StatePeerResolving:
		return "peer_resolving"
	case StateSending:
		return "sending"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session pushes the local snapshot to one peer, once. A Session is single use.
type Session struct {
	client      datalayer.Client
	store       weather.Store
	peerTimeout time.Duration
	logger      *zap.Logger
	metrics     *Metrics

	used    atomic.Bool
	state   atomic.Int32
	claimed atomic.Bool
	target  chan string

	mu   sync.Mutex
	peer string
}

// NewSession creates an idle session. A non-positive peerTimeout means DefaultPeerTimeout;
// metrics may be nil.
func NewSession(client datalayer.Client, store weather.Store, peerTimeout time.Duration, logger *zap.Logger, metrics *Metrics) *Session {
	if peerTimeout <= 0 {
		peerTimeout = DefaultPeerTimeout
	}
	return &Session{
		client:      client,
		store:       store,
		peerTimeout: peerTimeout,
		logger:      logger.Named("session"),
		metrics:     metrics,
		target:      make(chan string, 1),
	}
}

// State reports the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Peer returns the most recently seen peer id.
func (s *Session) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *Session) advance(to State) {
	for {
		cur := s.state.Load()
		if State(cur) >= to {
			return
		}
		if s.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

func (s *Session) retain(nodeID string) {
	s.mu.Lock()
	s.peer = nodeID
	s.mu.Unlock()
}

// claim hands nodeID to Run if no other peer got there first.
func (s *Session) claim(nodeID string) {
	if s.claimed.CompareAndSwap(false, true) {
		s.advance(StatePeerResolving)
		s.target <- nodeID
	}
}

// Run connects, resolves a peer, sends the stored snapshot on /weatherUpdate and
// disconnects. Nothing is retried.
func (s *Session) Run(ctx context.Context) (err error) {
	if s.used.Swap(true) {
		return errSessionUsed
	}

	start := time.Now()
	defer func() {
		if err != nil {
			s.advance(StateFailed)
			s.logger.Warn("weather sync failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		}
		if s.metrics != nil {
			s.metrics.Sessions.WithLabelValues(sessionResult(err)).Inc()
		}
	}()

	s.advance(StateConnecting)
	remove := s.client.AddListener(datalayer.Callbacks{
		PeerConnected: func(n datalayer.Node) {
			s.logger.Debug("peer connected", zap.String("peer", n.ID))
			s.retain(n.ID)
			s.claim(n.ID)
		},
		PeerDisconnected: func(n datalayer.Node) {
			s.logger.Debug("peer disconnected", zap.String("peer", n.ID))
		},
	})

	// Every path from here on disconnects.
	defer func() {
		remove()
		if derr := s.client.Disconnect(); derr != nil {
			s.logger.Warn("disconnect failed", zap.Error(derr))
		}
		s.advance(StateDisconnected)
	}()

	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s.advance(StateConnected)

	nodes, err := s.client.ConnectedNodes(ctx)
	if err != nil {
		s.logger.Warn("peer list query failed, waiting for a peer", zap.Error(err))
	}
	if len(nodes) > 0 {
		s.retain(nodes[0].ID)
		s.claim(nodes[0].ID)
	}

	timer := time.NewTimer(s.peerTimeout)
	defer timer.Stop()

	var peer string
	select {
	case peer = <-s.target:
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrPeerUnavailable, s.peerTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPeerUnavailable, ctx.Err())
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load snapshot: %v", ErrSend, err)
	}

	s.advance(StateSending)
	if err := s.client.SendMessage(ctx, peer, datalayer.PathWeatherUpdate, weather.Encode(snap)); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	s.logger.Info("weather update sent",
		zap.String("peer", peer),
		zap.Int("conditionCode", snap.ConditionCode),
		zap.String("lastUpdated", snap.LastUpdated),
	)
	return nil
}

// Sender starts a brand-new Session, with its own client, per push.
type Sender struct {
	newClient   func() datalayer.Client
	store       weather.Store
	peerTimeout time.Duration
	logger      *zap.Logger
	metrics     *Metrics
}

func NewSender(newClient func() datalayer.Client, store weather.Store, peerTimeout time.Duration, logger *zap.Logger, metrics *Metrics) *Sender {
	return &Sender{
		newClient:   newClient,
		store:       store,
		peerTimeout: peerTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Push runs one session to completion.
func (s *Sender) Push(ctx context.Context) error {
	return NewSession(s.newClient(), s.store, s.peerTimeout, s.logger, s.metrics).Run(ctx)
}
