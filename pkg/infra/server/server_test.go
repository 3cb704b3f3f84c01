package server

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/sentinel-rag/pkg/options/http"
)

// mockRunnable implements Runnable for testing.
type mockRunnable struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
	mu       *sync.Mutex
}

func (r *mockRunnable) Name() string {
	return r.name
}

func (r *mockRunnable) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.events = append(*r.events, event)
}

func (r *mockRunnable) Start(context.Context) error {
	r.record("start " + r.name)
	return r.startErr
}

func (r *mockRunnable) Stop(context.Context) error {
	r.record("stop " + r.name)
	return r.stopErr
}

func testHTTPOptions() *options.Options {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Mode = gin.TestMode
	opts.ShutdownTimeout = time.Second
	return opts
}

func newRecorder() (*[]string, *sync.Mutex) {
	return &[]string{}, &sync.Mutex{}
}

func TestManager_StartStopOrder(t *testing.T) {
	events, mu := newRecorder()
	m := NewManager(testHTTPOptions())
	m.AddServer(&mockRunnable{name: "a", events: events, mu: mu})
	m.AddServer(&mockRunnable{name: "b", events: events, mu: mu})

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx), "second start must fail")
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx), "stop is idempotent")

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, *events)
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	events, mu := newRecorder()
	m := NewManager(testHTTPOptions())
	m.AddServer(&mockRunnable{name: "ok", events: events, mu: mu})
	m.AddServer(&mockRunnable{name: "bad", startErr: errors.New("boom"), events: events, mu: mu})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"start ok", "start bad", "stop ok"}, *events)
}

func TestManager_StopAggregatesErrors(t *testing.T) {
	events, mu := newRecorder()
	m := NewManager(testHTTPOptions())
	m.AddServer(&mockRunnable{name: "x", stopErr: errors.New("stuck"), events: events, mu: mu})

	require.NoError(t, m.Start(context.Background()))
	err := m.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")
}

func TestManager_ServesRoutes(t *testing.T) {
	m := NewManager(testHTTPOptions())
	m.HTTPServer().Engine().GET("/ping", func(c *gin.Context) { c.String(nethttp.StatusOK, "pong") })

	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	resp, err := nethttp.Get("http://" + m.HTTPServer().Addr() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	notFound, err := nethttp.Get("http://" + m.HTTPServer().Addr() + "/nope")
	require.NoError(t, err)
	defer notFound.Body.Close()
	assert.Equal(t, nethttp.StatusNotFound, notFound.StatusCode)
}

func TestManager_RunStopsOnContextCancel(t *testing.T) {
	events, mu := newRecorder()
	m := NewManager(testHTTPOptions())
	m.AddServer(&mockRunnable{name: "worker", events: events, mu: mu})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*events) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"start worker", "stop worker"}, *events)
}
