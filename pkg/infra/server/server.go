package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-rag/pkg/infra/server/transport/http"
	options "github.com/kart-io/sentinel-rag/pkg/options/http"
)

// Manager runs the HTTP server and custom runnables with a unified lifecycle.
type Manager struct {
	opts       *options.Options
	httpServer *http.Server
	servers    []Runnable
	started    []Runnable
	mu         sync.Mutex
	running    bool
}

// NewManager creates a new server manager with the given HTTP options.
func NewManager(opts *options.Options) *Manager {
	if opts == nil {
		opts = options.NewOptions()
	}
	return &Manager{
		opts:       opts,
		httpServer: http.NewServer(opts),
	}
}

// HTTPServer returns the HTTP server.
func (m *Manager) HTTPServer() *http.Server {
	return m.httpServer
}

// AddServer adds a custom runnable, started after the HTTP server.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts the HTTP server and then every custom runnable.
// When one fails the already started ones are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("server manager already started")
	}

	all := append([]Runnable{m.httpServer}, m.servers...)
	for _, srv := range all {
		if err := srv.Start(ctx); err != nil {
			m.stopStarted(ctx)
			return fmt.Errorf("failed to start server %s: %w", srv.Name(), err)
		}
		m.started = append(m.started, srv)
		if srv == Runnable(m.httpServer) {
			logger.Infow("HTTP server started", "addr", m.httpServer.Addr())
		} else {
			logger.Infow("Custom server started", "name", srv.Name())
		}
	}

	m.running = true
	return nil
}

// Stop stops all servers in reverse start order.
// 先停止消费者等后台任务, 最后关闭 HTTP 服务。
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	return m.stopStarted(ctx)
}

func (m *Manager) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		srv := m.started[i]
		if err := srv.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", srv.Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", srv.Name())
	}
	m.started = nil
	return utilerrors.NewAggregate(errs)
}

// Run starts all servers and blocks until ctx is done or SIGINT/SIGTERM arrives,
// then shuts down within the configured shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ShutdownTimeout)
	defer cancel()
	return m.Stop(shutdownCtx)
}
