package embedder

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Lazy defers provider construction until the first embedding is needed and
// memoizes the outcome. Concurrent first-callers share the same in-flight
// initialization instead of racing duplicate inits, and a failed init
// permanently degrades to "no embedder": it is logged once, never retried,
// never raised.
type Lazy struct {
	cfg    Config
	logger *slog.Logger

	once  sync.Once
	emb   Embedder
	ready atomic.Bool
}

// NewLazy creates a lazily initializing embedder handle.
func NewLazy(cfg Config, logger *slog.Logger) *Lazy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lazy{cfg: cfg, logger: logger}
}

// Get returns the memoized embedder, initializing it on first call.
// ok is false when embeddings are unavailable (disabled or failed init).
func (l *Lazy) Get() (Embedder, bool) {
	l.once.Do(func() {
		emb, err := New(l.cfg)
		if err != nil {
			l.logger.Warn("embeddings unavailable, degrading to lexical-only search",
				slog.String("provider", l.cfg.Provider),
				slog.String("error", err.Error()))
			return
		}
		l.logger.Info("embedding provider initialized",
			slog.String("provider", emb.Provider()),
			slog.Int("dimension", emb.Dimension()))
		l.emb = emb
		l.ready.Store(true)
	})
	return l.emb, l.emb != nil
}

// Available reports whether an embedder has been successfully initialized.
// It never triggers initialization.
func (l *Lazy) Available() bool {
	return l.ready.Load()
}

// Close releases the underlying provider, if one was ever initialized.
func (l *Lazy) Close() error {
	if l.ready.Load() {
		return l.emb.Close()
	}
	return nil
}
