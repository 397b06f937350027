package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/render"
	"github.com/i474232898/sunshine-wear/internal/store"
	"github.com/i474232898/sunshine-wear/internal/wearsync"
	"github.com/i474232898/sunshine-wear/internal/weather"
)

type stubPusher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *stubPusher) Push(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *stubPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubDisplay struct {
	visible, ambient bool
	frame            *render.Frame
}

func (d *stubDisplay) SetVisible(v bool) { d.visible = v }
func (d *stubDisplay) SetAmbient(a bool) { d.ambient = a }
func (d *stubDisplay) Mode() (bool, bool) { return d.visible, d.ambient }
func (d *stubDisplay) LastFrame() (render.Frame, bool) {
	if d.frame == nil {
		return render.Frame{}, false
	}
	return *d.frame, true
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func newPhoneApp(t *testing.T, pusher Pusher) (*weather.Service, *fiber.App) {
	t.Helper()

	app := NewApp("sunshine-wear-phone", prometheus.NewRegistry())
	svc := weather.NewService(store.NewMemoryStore(), nil, zap.NewNop())
	RegisterPhoneRoutes(app, svc, pusher, zap.NewNop())
	return svc, app
}

func TestHealthAndMetrics(t *testing.T) {
	_, app := newPhoneApp(t, &stubPusher{})

	resp, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = do(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPhoneCurrentDefaults(t *testing.T) {
	_, app := newPhoneApp(t, &stubPusher{})

	resp, body := do(t, app, http.MethodGet, "/api/v1/weather/current", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(800), body["conditionCode"])
	assert.Equal(t, "clear", body["icon"])
}

func TestPhoneUpdateStoresAndPushes(t *testing.T) {
	pusher := &stubPusher{}
	svc, app := newPhoneApp(t, pusher)

	resp, body := do(t, app, http.MethodPut, "/api/v1/weather",
		`{"conditionCode":500,"highTemp":"25","lowTemp":"16","lastUpdated":"21:42 - JUL 31 2016"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rain", body["icon"])

	got, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "25", got.HighTemp)

	require.Eventually(t, func() bool { return pusher.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPhoneUpdateRejectsDelimiter(t *testing.T) {
	_, app := newPhoneApp(t, &stubPusher{})

	resp, body := do(t, app, http.MethodPut, "/api/v1/weather",
		`{"conditionCode":500,"highTemp":"25","lowTemp":"16","lastUpdated":"JUL 31, 2016"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, true, body["error"])

	resp, _ = do(t, app, http.MethodPut, "/api/v1/weather", `{"conditionCode":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPhoneSync(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"sent", nil, http.StatusOK},
		{"no peer", wearsync.ErrPeerUnavailable, http.StatusGatewayTimeout},
		{"no connection", wearsync.ErrConnection, http.StatusServiceUnavailable},
		{"send failed", wearsync.ErrSend, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, app := newPhoneApp(t, &stubPusher{err: tc.err})
			resp, _ := do(t, app, http.MethodPost, "/api/v1/sync?wait=true", "")
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	pusher := &stubPusher{}
	_, app := newPhoneApp(t, pusher)
	resp, body := do(t, app, http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "started", body["status"])
	require.Eventually(t, func() bool { return pusher.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatchRoutes(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Replace(context.Background(), weather.Snapshot{ConditionCode: 601, HighTemp: "1", LowTemp: "-3", LastUpdated: "x"}))
	display := &stubDisplay{visible: true}

	app := NewApp("sunshine-wear-watch", prometheus.NewRegistry())
	RegisterWatchRoutes(app, st, display)

	resp, body := do(t, app, http.MethodGet, "/api/v1/weather/current", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "snow", body["icon"])

	resp, _ = do(t, app, http.MethodGet, "/api/v1/frame", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	frame := render.Compose(time.Date(2016, 7, 31, 21, 42, 0, 0, time.UTC), weather.DefaultSnapshot(), false)
	display.frame = &frame

	resp, body = do(t, app, http.MethodGet, "/api/v1/frame", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "21:42", body["time"])

	resp, _ = do(t, app, http.MethodGet, "/api/v1/frame?format=png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, body = do(t, app, http.MethodPost, "/api/v1/display", `{"ambient":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ambient"])
	assert.Equal(t, true, body["visible"])

	resp, _ = do(t, app, http.MethodPost, "/api/v1/display", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
