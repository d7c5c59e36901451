package session

import (
	"sort"
	"sync"

	"github.com/nidhogg/loreweaver/internal/embedding"
	"github.com/nidhogg/loreweaver/internal/events"
	"github.com/nidhogg/loreweaver/internal/extract"
	"github.com/nidhogg/loreweaver/internal/memory"
	"github.com/nidhogg/loreweaver/internal/retrieval"
	"go.uber.org/zap"
)

// Manager lazily constructs one session per conversation key (an HTTP
// session ID or a chat-platform channel). Each session keeps the single
// writer for its own state; the manager's lock only guards the map.
type Manager struct {
	cfg       Config
	embedder  embedding.Provider
	bonuses   retrieval.BonusTable
	generator Generator
	extractor extract.Extractor
	publisher events.Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. extractor and publisher may be nil.
func NewManager(cfg Config, embedder embedding.Provider, bonuses retrieval.BonusTable,
	generator Generator, extractor extract.Extractor, publisher events.Publisher,
	logger *zap.Logger) *Manager {

	return &Manager{
		cfg:       cfg,
		embedder:  embedder,
		bonuses:   bonuses,
		generator: generator,
		extractor: extractor,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session for key, creating it on first use.
func (m *Manager) Get(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}
	store := memory.NewStore(m.embedder, m.logger)
	ranker := retrieval.NewRanker(m.embedder, store, m.bonuses, m.logger)
	s := New(key, m.cfg, store, ranker, m.generator, m.extractor, m.publisher, m.logger)
	m.sessions[key] = s
	m.logger.Info("session created", zap.String("session", key))
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Keys returns all session keys, sorted.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
