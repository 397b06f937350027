package wearsync

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
)

const maxAcked = 32

// Beacon publishes the phone's /count data item and logs the watch's acknowledgements.
// It republishes whenever a peer connects so late joiners see it too.
type Beacon struct {
	client  datalayer.Client
	logger  *zap.Logger
	metrics *Metrics

	count atomic.Int64
	// stale is set while the peers may not have seen the latest count.
	stale atomic.Bool

	mu     sync.Mutex
	remove func()
	acked  []string
}

// NewBeacon creates a beacon over client. metrics may be nil.
func NewBeacon(client datalayer.Client, logger *zap.Logger, metrics *Metrics) *Beacon {
	return &Beacon{
		client:  client,
		logger:  logger.Named("beacon"),
		metrics: metrics,
	}
}

// Start binds the callbacks and publishes the first count. Callbacks stay bound when the
// publish fails; KeepPublished retries it once the client is connected.
func (b *Beacon) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.remove == nil {
		b.remove = b.client.AddListener(datalayer.Callbacks{
			PeerConnected: func(n datalayer.Node) {
				if err := b.Publish(context.Background()); err != nil {
					b.logger.Warn("failed to publish count for new peer", zap.String("peer", n.ID), zap.Error(err))
				}
			},
			MessageReceived: b.onMessage,
		})
	}
	b.mu.Unlock()

	return b.Publish(ctx)
}

// Stop unbinds the callbacks.
func (b *Beacon) Stop() {
	b.mu.Lock()
	remove := b.remove
	b.remove = nil
	b.mu.Unlock()

	if remove != nil {
		remove()
	}
}

// Publish increments the counter and puts it on /count.
func (b *Beacon) Publish(ctx context.Context) error {
	n := b.count.Add(1)
	if err := b.client.PutDataItem(ctx, datalayer.PathCount, []byte(strconv.FormatInt(n, 10))); err != nil {
		b.stale.Store(true)
		return err
	}
	b.stale.Store(false)
	b.logger.Debug("published count", zap.Int64("count", n))
	return nil
}

// KeepPublished checks the client every interval until ctx is done. A disconnected client
// is reconnected, and the count is published again after any outage, whoever reconnected.
func (b *Beacon) KeepPublished(ctx context.Context, interval, connectTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.check(ctx, connectTimeout)
		}
	}
}

func (b *Beacon) check(ctx context.Context, connectTimeout time.Duration) {
	if !b.client.IsConnected() {
		b.stale.Store(true)

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := b.client.Connect(connectCtx)
		cancel()
		if err != nil {
			b.logger.Debug("data layer still unavailable", zap.Error(err))
			return
		}
		b.logger.Info("reconnected to data layer")
	}

	if !b.stale.Load() {
		return
	}
	if err := b.Publish(ctx); err != nil {
		b.logger.Warn("failed to republish count", zap.Error(err))
	}
}

// Acknowledged returns the most recently acknowledged data item locators.
func (b *Beacon) Acknowledged() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.acked...)
}

func (b *Beacon) onMessage(ev datalayer.MessageEvent) {
	if ev.Path != datalayer.PathDataItemReceived {
		return
	}

	uri := string(ev.Data)
	b.mu.Lock()
	b.acked = append(b.acked, uri)
	if len(b.acked) > maxAcked {
		b.acked = b.acked[len(b.acked)-maxAcked:]
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.Acks.WithLabelValues("received").Inc()
	}
	b.logger.Info("data item acknowledged", zap.String("peer", ev.SourceNodeID), zap.String("uri", uri))
}
