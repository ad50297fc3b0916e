package workflow

import (
	"sync"

	"github.com/codeloom/site-builder/agent-gateway/internal/tools"
)

// Manager hands out one engine per session so concurrent users never share
// sequencing state or interleave snapshot mutations.
type Manager struct {
	mu       sync.Mutex
	registry *tools.Registry
	verifier Verifier
	opts     []Option
	engines  map[string]*Engine
}

// NewManager builds a session manager. Every engine it creates shares the
// same registry, verifier and options.
func NewManager(registry *tools.Registry, verifier Verifier, opts ...Option) *Manager {
	return &Manager{
		registry: registry,
		verifier: verifier,
		opts:     opts,
		engines:  make(map[string]*Engine),
	}
}

// Engine returns the engine for a session, creating it on first use.
func (m *Manager) Engine(sessionID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, ok := m.engines[sessionID]; ok {
		return engine
	}
	engine := NewEngine(m.registry, m.verifier, m.opts...)
	m.engines[sessionID] = engine
	return engine
}

// Lookup returns the engine for a session without creating one.
func (m *Manager) Lookup(sessionID string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, ok := m.engines[sessionID]
	return engine, ok
}
