package postgres

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/logger"
)

const (
	DefaultIdleTTL         = 15 * time.Minute
	DefaultCleanupInterval = 1 * time.Minute
	healthCheckTimeout     = 5 * time.Second
	healthCheckInterval    = 30 * time.Second
)

// Dialer opens a handle for a connection config. New is the production dialer.
type Dialer func(ctx context.Context, cfg *database.Config) (database.Handle, error)

func dialPostgres(ctx context.Context, cfg *database.Config) (database.Handle, error) {
	return New(ctx, cfg)
}

// ConnectionManager keeps one cached handle per logical connection id.
// Handles are opened lazily on first use, health-checked on reuse, and
// closed after sitting idle for longer than the TTL.
//
// mu guards the maps only. Dials and pings run outside it, and concurrent
// callers for one id share a single attempt through group.
type ConnectionManager struct {
	mu         sync.Mutex
	configs    map[string]*database.Config
	clients    map[string]*managedClient
	closed     bool
	group      singleflight.Group
	dial       Dialer
	ttl        time.Duration
	checkEvery time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
	log        *logger.Logger
}

type managedClient struct {
	handle   database.Handle
	lastUsed time.Time
	checked  time.Time
}

// ManagerOption customises a ConnectionManager.
type ManagerOption func(*ConnectionManager)

// WithDialer replaces the dialer (tests use an in-memory handle).
func WithDialer(d Dialer) ManagerOption {
	return func(m *ConnectionManager) { m.dial = d }
}

// WithIdleTTL sets how long an unused handle is kept open. Zero disables the sweep.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *ConnectionManager) { m.ttl = ttl }
}

// WithHealthCheckInterval sets how long a successful ping is trusted before
// the next reuse pings again. Zero pings on every reuse.
func WithHealthCheckInterval(d time.Duration) ManagerOption {
	return func(m *ConnectionManager) { m.checkEvery = d }
}

// NewConnectionManager creates a manager. When the idle TTL is positive a
// background sweep runs until Close is called.
func NewConnectionManager(log *logger.Logger, opts ...ManagerOption) *ConnectionManager {
	m := &ConnectionManager{
		configs:    make(map[string]*database.Config),
		clients:    make(map[string]*managedClient),
		dial:       dialPostgres,
		ttl:        DefaultIdleTTL,
		checkEvery: healthCheckInterval,
		stopChan:   make(chan struct{}),
		log:        logger.OrNop(log),
	}
	for _, o := range opts {
		o(m)
	}
	if m.ttl > 0 {
		go m.sweep(DefaultCleanupInterval)
	}
	return m
}

// Register makes a connection id known. Re-registering an id closes any
// cached handle so the next Client call dials with the new config.
func (m *ConnectionManager) Register(connectionID string, cfg *database.Config) error {
	if connectionID == "" {
		return errs.New(errs.ErrKindInvalidInput, "connection id must not be empty")
	}
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "connection "+connectionID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[connectionID] = cfg
	m.log.With().Str("connection", connectionID).Str("dsn", cfg.Redacted()).Logger().Debug("connection registered")
	if mc, ok := m.clients[connectionID]; ok {
		mc.handle.Close()
		delete(m.clients, connectionID)
	}
	return nil
}

// Connections returns the registered connection ids.
func (m *ConnectionManager) Connections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	return ids
}

// Client returns the live handle for connectionID, dialing on first use.
// It returns nil when the id is unknown or the server cannot be reached;
// the failure is logged, not returned.
func (m *ConnectionManager) Client(ctx context.Context, connectionID string) database.Handle {
	h, err := m.Acquire(ctx, connectionID)
	if err != nil {
		m.log.With().Str("connection", connectionID).Err(err).Logger().Warn("connection unavailable")
		return nil
	}
	return h
}

// Acquire is Client with the reason for an unavailable connection.
func (m *ConnectionManager) Acquire(ctx context.Context, connectionID string) (database.Handle, error) {
	m.mu.Lock()
	cfg, ok := m.configs[connectionID]
	mc := m.clients[connectionID]
	if ok && mc != nil && time.Since(mc.checked) < m.checkEvery {
		mc.lastUsed = time.Now()
		m.mu.Unlock()
		return mc.handle, nil
	}
	m.mu.Unlock()
	if !ok {
		return nil, errs.NotConnected(connectionID)
	}

	v, err, _ := m.group.Do(connectionID, func() (any, error) {
		return m.refresh(ctx, connectionID, cfg, mc)
	})
	if err != nil {
		return nil, err
	}
	return v.(database.Handle), nil
}

// refresh pings mc when there is one and dials cfg when that fails. The maps
// are re-checked after every blocking call since Register, Remove and the
// idle sweep may have run in the meantime.
func (m *ConnectionManager) refresh(ctx context.Context, id string, cfg *database.Config, mc *managedClient) (database.Handle, error) {
	if mc != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := mc.handle.Ping(pingCtx)
		cancel()

		m.mu.Lock()
		current := m.clients[id] == mc
		if current {
			if err == nil {
				now := time.Now()
				mc.lastUsed, mc.checked = now, now
				m.mu.Unlock()
				return mc.handle, nil
			}
			delete(m.clients, id)
		}
		m.mu.Unlock()
		if current {
			m.log.With().Str("connection", id).Err(err).Logger().Warn("connection unhealthy, recreating")
			mc.handle.Close()
		}
	}

	h, err := m.dial(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionUnavailable, "not connected: "+id, err)
	}

	m.mu.Lock()
	latest, ok := m.configs[id]
	switch {
	case m.closed || !ok:
		m.mu.Unlock()
		h.Close()
		return nil, errs.NotConnected(id)
	case latest != cfg:
		m.mu.Unlock()
		h.Close()
		m.log.With().Str("connection", id).Logger().Debug("connection re-registered while dialing")
		return m.refresh(ctx, id, latest, nil)
	}
	if existing, ok := m.clients[id]; ok {
		existing.lastUsed = time.Now()
		m.mu.Unlock()
		h.Close()
		return existing.handle, nil
	}
	now := time.Now()
	m.clients[id] = &managedClient{handle: h, lastUsed: now, checked: now}
	m.mu.Unlock()

	m.log.With().Str("connection", id).Logger().Info("connection opened")
	return h, nil
}

// Remove closes and forgets a connection.
func (m *ConnectionManager) Remove(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mc, ok := m.clients[connectionID]; ok {
		mc.handle.Close()
		delete(m.clients, connectionID)
	}
	delete(m.configs, connectionID)
}

// Close stops the sweep and closes every cached handle.
func (m *ConnectionManager) Close() {
	m.stopOnce.Do(func() { close(m.stopChan) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, mc := range m.clients {
		mc.handle.Close()
		delete(m.clients, id)
	}
}

func (m *ConnectionManager) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case now := <-ticker.C:
			m.closeIdle(now)
		}
	}
}

func (m *ConnectionManager) closeIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mc := range m.clients {
		if now.Sub(mc.lastUsed) > m.ttl {
			mc.handle.Close()
			delete(m.clients, id)
			m.log.With().Str("connection", id).Logger().Debug("idle connection closed")
		}
	}
}

var _ database.ClientProvider = (*ConnectionManager)(nil)
