package wearsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
	"github.com/i474232898/sunshine-wear/internal/weather"
)

// DefaultConnectTimeout bounds blocking connects made by the Listener.
const DefaultConnectTimeout = 30 * time.Second

// Listener receives weather updates on the watch and writes them to the store. It also
// acknowledges /count data items back to the node that published them.
type Listener struct {
	client         datalayer.Client
	store          weather.Store
	connectTimeout time.Duration
	logger         *zap.Logger
	metrics        *Metrics

	mu     sync.Mutex
	remove func()
}

// NewListener creates a listener. metrics may be nil.
func NewListener(client datalayer.Client, store weather.Store, connectTimeout time.Duration, logger *zap.Logger, metrics *Metrics) *Listener {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Listener{
		client:         client,
		store:          store,
		connectTimeout: connectTimeout,
		logger:         logger.Named("listener"),
		metrics:        metrics,
	}
}

// Start binds the listener callbacks and connects with a bounded wait. A connection failure is
// logged and returned; callbacks stay bound, and the next data change reconnects.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.remove == nil {
		l.remove = l.client.AddListener(datalayer.Callbacks{
			MessageReceived: l.onMessage,
			DataChanged:     l.onDataChanged,
		})
	}
	l.mu.Unlock()

	if err := l.ensureConnected(ctx); err != nil {
		return err
	}
	l.logger.Info("listening for weather updates", zap.String("node", l.client.LocalNode().ID))
	return nil
}

// Stop unbinds the callbacks and disconnects.
func (l *Listener) Stop() error {
	l.mu.Lock()
	remove := l.remove
	l.remove = nil
	l.mu.Unlock()

	if remove != nil {
		remove()
	}
	return l.client.Disconnect()
}

// KeepConnected retries the connection every interval until ctx is done.
func (l *Listener) KeepConnected(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.client.IsConnected() {
				continue
			}
			if err := l.ensureConnected(ctx); err == nil {
				l.logger.Info("reconnected to data layer")
			}
		}
	}
}

func (l *Listener) ensureConnected(ctx context.Context) error {
	if l.client.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.connectTimeout)
	defer cancel()

	if err := l.client.Connect(ctx); err != nil {
		l.logger.Error("failed to connect to data layer", zap.Error(err), zap.Duration("timeout", l.connectTimeout))
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

func (l *Listener) onDataChanged(events []datalayer.DataEvent) {
	ctx := context.Background()
	if err := l.ensureConnected(ctx); err != nil {
		return
	}

	for _, ev := range events {
		origin, path, err := datalayer.ParseItemURI(ev.URI)
		if err != nil {
			l.logger.Warn("ignoring data item with bad uri", zap.String("uri", ev.URI), zap.Error(err))
			continue
		}
		if path != datalayer.PathCount {
			continue
		}

		if err := l.client.SendMessage(ctx, origin, datalayer.PathDataItemReceived, []byte(ev.URI)); err != nil {
			l.logger.Warn("failed to acknowledge data item", zap.String("uri", ev.URI), zap.Error(err))
			continue
		}
		if l.metrics != nil {
			l.metrics.Acks.WithLabelValues("sent").Inc()
		}
		l.logger.Debug("acknowledged data item", zap.String("uri", ev.URI), zap.String("origin", origin))
	}
}

func (l *Listener) onMessage(ev datalayer.MessageEvent) {
	if ev.Path != datalayer.PathWeatherUpdate {
		return
	}

	snap, err := weather.Decode(ev.Data)
	if err != nil {
		l.logger.Warn("dropping weather update", zap.String("source", ev.SourceNodeID), zap.Error(err))
		l.count("malformed")
		return
	}

	if err := l.store.Replace(context.Background(), snap); err != nil {
		l.logger.Error("failed to store weather update", zap.Error(err))
		l.count("store_error")
		return
	}
	l.count("stored")
	l.logger.Info("weather update stored",
		zap.String("source", ev.SourceNodeID),
		zap.Int("conditionCode", snap.ConditionCode),
		zap.String("high", snap.HighTemp),
		zap.String("low", snap.LowTemp),
	)
}

func (l *Listener) count(result string) {
	if l.metrics != nil {
		l.metrics.Messages.WithLabelValues(result).Inc()
	}
}

