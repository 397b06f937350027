package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/datalayer"
)

func startRelay(t *testing.T) (*Server, string) {
	t.Helper()

	srv := NewServer(zap.NewNop(), NewServerMetrics(prometheus.NewRegistry()))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func connect(t *testing.T, url string, node datalayer.Node) *Client {
	t.Helper()

	c := NewClient(url, node, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func TestConnectedNodesExcludesSelf(t *testing.T) {
	srv, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone", DisplayName: "Pixel"})
	connect(t, url, datalayer.Node{ID: "watch", DisplayName: "Watch"})

	require.Eventually(t, func() bool { return len(srv.Nodes()) == 2 }, 2*time.Second, 10*time.Millisecond)

	nodes, err := phone.ConnectedNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []datalayer.Node{{ID: "watch", DisplayName: "Watch"}}, nodes)
	assert.Equal(t, float64(2), testutil.ToFloat64(srv.metrics.Connections))
}

func TestSendMessageDeliversToTarget(t *testing.T) {
	_, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone"})
	watch := connect(t, url, datalayer.Node{ID: "watch"})

	got := make(chan datalayer.MessageEvent, 1)
	watch.AddListener(datalayer.Callbacks{MessageReceived: func(ev datalayer.MessageEvent) { got <- ev }})

	payload := []byte("500,25,16,21:42 - JUL 31 2016")
	require.NoError(t, phone.SendMessage(context.Background(), "watch", datalayer.PathWeatherUpdate, payload))

	select {
	case ev := <-got:
		assert.Equal(t, "phone", ev.SourceNodeID)
		assert.Equal(t, datalayer.PathWeatherUpdate, ev.Path)
		assert.Equal(t, payload, ev.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestSendMessageToUnknownNode(t *testing.T) {
	_, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone"})

	err := phone.SendMessage(context.Background(), "nobody", datalayer.PathWeatherUpdate, []byte("x"))
	assert.ErrorIs(t, err, datalayer.ErrUnknownNode)
}

func TestPutDataItemNotifiesPeers(t *testing.T) {
	_, url := startRelay(t)
	watch := connect(t, url, datalayer.Node{ID: "watch"})
	phone := connect(t, url, datalayer.Node{ID: "phone"})

	got := make(chan []datalayer.DataEvent, 1)
	phone.AddListener(datalayer.Callbacks{DataChanged: func(evs []datalayer.DataEvent) { got <- evs }})

	require.NoError(t, watch.PutDataItem(context.Background(), datalayer.PathCount, []byte{1}))

	select {
	case evs := <-got:
		require.Len(t, evs, 1)
		assert.Equal(t, []byte{1}, evs[0].Data)
		assert.Equal(t, "wear://watch/count", evs[0].URI)
	case <-time.After(2 * time.Second):
		t.Fatal("data change was not delivered")
	}
}

func TestPeerLifecycleEvents(t *testing.T) {
	_, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone"})

	connected := make(chan datalayer.Node, 1)
	disconnected := make(chan datalayer.Node, 1)
	phone.AddListener(datalayer.Callbacks{
		PeerConnected:    func(n datalayer.Node) { connected <- n },
		PeerDisconnected: func(n datalayer.Node) { disconnected <- n },
	})

	watch := connect(t, url, datalayer.Node{ID: "watch"})
	select {
	case n := <-connected:
		assert.Equal(t, "watch", n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("peer connected event missing")
	}

	require.NoError(t, watch.Disconnect())
	select {
	case n := <-disconnected:
		assert.Equal(t, "watch", n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("peer disconnected event missing")
	}
}

func TestRequestsFailAfterDisconnect(t *testing.T) {
	_, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone"})

	require.NoError(t, phone.Disconnect())
	assert.False(t, phone.IsConnected())

	_, err := phone.ConnectedNodes(context.Background())
	assert.ErrorIs(t, err, datalayer.ErrNotConnected)
}

func TestConnectRequiresNodeID(t *testing.T) {
	_, url := startRelay(t)
	c := NewClient(url, datalayer.Node{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, c.Connect(ctx))
	assert.False(t, c.IsConnected())
}

func TestWelcomeArrivesFirstUnderPeerTraffic(t *testing.T) {
	_, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			_ = phone.PutDataItem(ctx, datalayer.PathCount, []byte("1"))
		}
	}()

	for i := 0; i < 20; i++ {
		watch := NewClient(url, datalayer.Node{ID: "watch"}, zap.NewNop())
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, watch.Connect(connectCtx), "attempt %d", i)
		connectCancel()
		require.NoError(t, watch.Disconnect())
	}
}

func TestConcurrentConnectKeepsOneRegistration(t *testing.T) {
	srv, url := startRelay(t)
	phone := connect(t, url, datalayer.Node{ID: "phone"})

	watch := NewClient(url, datalayer.Node{ID: "watch"}, zap.NewNop())
	t.Cleanup(func() { _ = watch.Disconnect() })

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			errs <- watch.Connect(ctx)
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	got := make(chan datalayer.MessageEvent, 1)
	watch.AddListener(datalayer.Callbacks{MessageReceived: func(ev datalayer.MessageEvent) { got <- ev }})

	require.Eventually(t, func() bool { return len(srv.Nodes()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, phone.SendMessage(context.Background(), "watch", datalayer.PathWeatherUpdate, []byte("x")))
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered to the live connection")
	}
}
