package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/example/food-cart/internal/identity"
	"github.com/example/food-cart/internal/infrastructure/store"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// AnonymousService is the anonymous cart backend that also hands out cart ids.
type AnonymousService interface {
	cart.AnonymousBackend
	identity.IDGenerator
}

type Config struct {
	RequireLogin  bool
	MergeStrategy cart.MergeStrategy
	ExtendDays    int
}

// Session is the cart state of one browser session. Its persisted state lives
// in the shared store under the session id.
type Session struct {
	ID        string
	Resolver  *identity.Resolver
	Container *cart.Container
	Merger    *cart.MergeCoordinator

	lastSeen time.Time
}

// Manager creates sessions lazily and keeps the live ones in memory.
type Manager struct {
	store     store.Store
	anon      AnonymousService
	user      cart.UserBackend
	publisher cart.Publisher
	catalog   cart.Catalog
	cfg       Config
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type Option func(*Manager)

func WithPublisher(p cart.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithCatalog(c cart.Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(st store.Store, anon AnonymousService, user cart.UserBackend, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		anon:     anon,
		user:     user,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session for id, restoring it from the store on first use.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.lastSeen = m.now()
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Restore reads the store; other sessions must not wait on it.
	s := m.build(id)
	if err := s.Container.Restore(ctx); err != nil {
		log.Printf("[Session] Failed to restore session %s, starting empty: %v", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		existing.lastSeen = m.now()
		return existing, nil
	}
	s.lastSeen = m.now()
	m.sessions[id] = s
	return s, nil
}

func (m *Manager) build(id string) *Session {
	st := store.Namespaced(m.store, "session:"+id)
	resolver := identity.NewResolver(st, m.anon, !m.cfg.RequireLogin)

	var opts []cart.Option
	if m.publisher != nil {
		opts = append(opts, cart.WithPublisher(m.publisher))
	}
	if m.catalog != nil {
		opts = append(opts, cart.WithCatalog(m.catalog))
	}
	container := cart.NewContainer(resolver, m.anon, m.user, st, opts...)

	return &Session{
		ID:        id,
		Resolver:  resolver,
		Container: container,
		Merger:    cart.NewMergeCoordinator(resolver, m.anon, container, m.cfg.MergeStrategy),
	}
}

// ExtendDays is the default expiry extension for anonymous carts.
func (m *Manager) ExtendDays() int {
	if m.cfg.ExtendDays <= 0 {
		return cart.DefaultExtendDays
	}
	return m.cfg.ExtendDays
}

// Evict drops sessions idle for longer than idle. Their state stays in the
// store and is restored on the next request.
func (m *Manager) Evict(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	evicted := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// RunEviction evicts idle sessions every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(idle); n > 0 {
				log.Printf("[Session] Evicted %d idle sessions", n)
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
