// Package connections owns the process-scoped cache of database
// handles, one per distinct connection string.
package connections

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// ConnectFunc establishes a new client for a connection string
type ConnectFunc func(ctx context.Context, uri string) (domain.DatabaseClient, error)

// Manager caches one client per distinct connection string. Concurrent
// first use of the same string is collapsed into a single connection
// attempt so no handle is ever discarded.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]domain.DatabaseClient
	group   singleflight.Group
	allow   *regexp.Regexp
	connect ConnectFunc
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithAllowPattern restricts connection strings to those matching the
// pattern. Any URI not matching fails closed before any connection
// attempt.
func WithAllowPattern(pattern *regexp.Regexp) ManagerOption {
	return func(m *Manager) {
		m.allow = pattern
	}
}

// WithConnectFunc overrides how clients are established
func WithConnectFunc(fn ConnectFunc) ManagerOption {
	return func(m *Manager) {
		m.connect = fn
	}
}

// NewManager creates a connection manager. By default it dials MongoDB.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		clients: make(map[string]domain.DatabaseClient),
		connect: ConnectMongo,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetClient returns the cached client for uri, establishing it on first
// use. Handle lifetime spans the process; callers never tear down.
func (m *Manager) GetClient(ctx context.Context, uri string) (domain.DatabaseClient, error) {
	if uri == "" {
		return nil, &domain.ConfigurationError{Reason: "connection URI is required"}
	}
	if m.allow != nil && !m.allow.MatchString(uri) {
		return nil, &domain.ConfigurationError{Reason: "connection URI is not allowed by the configured pattern"}
	}

	m.mu.RLock()
	client, ok := m.clients[uri]
	m.mu.RUnlock()
	if ok {
		return client, nil
	}

	v, err, _ := m.group.Do(uri, func() (interface{}, error) {
		// re-check under the flight: another caller may have stored one
		m.mu.RLock()
		cached, ok := m.clients[uri]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}

		c, err := m.connect(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to target: %w", err)
		}

		m.mu.Lock()
		m.clients[uri] = c
		m.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.DatabaseClient), nil
}

// Close disconnects every cached client. Called once at shutdown.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uri, client := range m.clients {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("WARN: Failed to disconnect client: %v", err)
		}
		delete(m.clients, uri)
	}
}
