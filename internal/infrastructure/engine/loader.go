package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

// Factory performs the expensive load of one engine kind.
type Factory func(ctx context.Context) (ports.EngineHandle, error)

// LoadObserver is told about every real load attempt.
type LoadObserver func(kind domain.EngineKind, duration time.Duration, err error)

// Loader caches engines per kind. Concurrent callers share one in-flight load,
// and failed loads are not cached so the next call retries.
type Loader struct {
	factories map[domain.EngineKind]Factory
	observer  LoadObserver
	logger    *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	loaded map[domain.EngineKind]ports.EngineHandle
	loads  map[domain.EngineKind]int
}

type Option func(*Loader)

func WithObserver(observer LoadObserver) Option {
	return func(l *Loader) {
		l.observer = observer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLoader(factories map[domain.EngineKind]Factory, opts ...Option) *Loader {
	l := &Loader{
		factories: make(map[domain.EngineKind]Factory, len(factories)),
		logger:    slog.Default(),
		loaded:    make(map[domain.EngineKind]ports.EngineHandle),
		loads:     make(map[domain.EngineKind]int),
	}
	for kind, factory := range factories {
		l.factories[kind] = factory
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) EnsureLoaded(ctx context.Context, kind domain.EngineKind, progress domain.ProgressFunc) (ports.EngineHandle, error) {
	if handle, ok := l.cached(kind); ok {
		return handle, nil
	}

	factory, ok := l.factories[kind]
	if !ok {
		return nil, domain.WrapError(domain.ErrEngineLoad, "ensure engine loaded", fmt.Errorf("no engine registered for %q", kind))
	}

	progress.Emit(domain.StageLoading, 0.02, fmt.Sprintf("Loading %s engine...", kind.DisplayName()))
	// The shared load outlives any single caller; each caller stops waiting on its own context.
	loadCtx := context.WithoutCancel(ctx)
	results := l.group.DoChan(string(kind), func() (any, error) {
		if handle, ok := l.cached(kind); ok {
			return handle, nil
		}
		return l.load(loadCtx, kind, factory)
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, domain.WrapError(domain.ErrEngineLoad, "load "+string(kind)+" engine", ctx.Err())
	}
	if res.Err != nil {
		return nil, domain.WrapError(domain.ErrEngineLoad, "load "+string(kind)+" engine", res.Err)
	}
	progress.Emit(domain.StageLoading, 0.1, fmt.Sprintf("%s engine ready", kind.DisplayName()))
	return res.Val.(ports.EngineHandle), nil
}

func (l *Loader) load(ctx context.Context, kind domain.EngineKind, factory Factory) (ports.EngineHandle, error) {
	l.mu.Lock()
	l.loads[kind]++
	l.mu.Unlock()

	started := time.Now()
	handle, err := factory(ctx)
	if err == nil && handle == nil {
		err = fmt.Errorf("factory returned no engine")
	}
	elapsed := time.Since(started)
	if l.observer != nil {
		l.observer(kind, elapsed, err)
	}
	if err != nil {
		l.logger.Warn("engine_load_failed", "kind", kind, "duration_ms", elapsed.Milliseconds(), "error", err)
		return nil, err
	}

	l.mu.Lock()
	l.loaded[kind] = handle
	l.mu.Unlock()
	l.logger.Info("engine_loaded", "kind", kind, "duration_ms", elapsed.Milliseconds())
	return handle, nil
}

func (l *Loader) cached(kind domain.EngineKind) (ports.EngineHandle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	handle, ok := l.loaded[kind]
	return handle, ok
}

// Loaded reports whether kind is cached.
func (l *Loader) Loaded(kind domain.EngineKind) bool {
	_, ok := l.cached(kind)
	return ok
}

// LoadCount reports how many real loads were attempted for kind.
func (l *Loader) LoadCount(kind domain.EngineKind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loads[kind]
}
