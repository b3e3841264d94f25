package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

type engineFake struct {
	kind domain.EngineKind
}

func (e engineFake) Kind() domain.EngineKind { return e.kind }

type loaderFake struct {
	mu    sync.Mutex
	errs  map[domain.EngineKind]error
	loads map[domain.EngineKind]int
}

func newLoaderFake() *loaderFake {
	return &loaderFake{
		errs:  map[domain.EngineKind]error{},
		loads: map[domain.EngineKind]int{},
	}
}

func (l *loaderFake) EnsureLoaded(_ context.Context, kind domain.EngineKind, progress domain.ProgressFunc) (ports.EngineHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.errs[kind]; err != nil {
		return nil, err
	}
	if l.loads[kind] == 0 {
		progress.Emit(domain.StageLoading, 0.02, "Loading engine...")
		progress.Emit(domain.StageLoading, 0.1, "Engine loaded")
	}
	l.loads[kind]++
	return engineFake{kind: kind}, nil
}

type extractorFake struct {
	kind   domain.EngineKind
	stage  domain.Stage
	text   string
	err    error
	events []domain.ExtractProgress

	started chan string
	release chan struct{}

	mu    sync.Mutex
	names []string
}

func (f *extractorFake) Kind() domain.EngineKind { return f.kind }

func (f *extractorFake) Extract(ctx context.Context, file domain.SourceFile, engine ports.EngineHandle, progress domain.ProgressFunc) (string, error) {
	if engine.Kind() != f.kind {
		return "", errors.New("wrong engine")
	}
	f.mu.Lock()
	f.names = append(f.names, file.Name)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- file.Name
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	progress.Emit(domain.StageReading, 0.05, "")
	for _, event := range f.events {
		progress(event)
	}
	if f.err != nil {
		return "", f.err
	}
	progress.Emit(f.stage, 0.9, "")
	progress.Emit(domain.StageDone, 1, "")
	return f.text, nil
}

func (f *extractorFake) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

type cacheFake struct {
	mu      sync.Mutex
	values  map[string]string
	putErrs map[string]error
}

func newCacheFake() *cacheFake {
	return &cacheFake{values: map[string]string{}, putErrs: map[string]error{}}
}

func (c *cacheFake) Put(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.putErrs[key]; err != nil {
		return err
	}
	c.values[key] = value
	return nil
}

func (c *cacheFake) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *cacheFake) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *cacheFake) value(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// libraryFake merges the analysis flag on upsert like jsonfile.Store.
type libraryFake struct {
	mu        sync.Mutex
	items     map[string]domain.LibraryItem
	summaries map[string]string
	err       error

	// upsertAfterAnalysis holds UpsertItem until MarkAnalyzed has run.
	upsertAfterAnalysis bool
	analyzed            chan struct{}
	analyzedOnce        sync.Once
}

func newLibraryFake() *libraryFake {
	return &libraryFake{
		items:     map[string]domain.LibraryItem{},
		summaries: map[string]string{},
		analyzed:  make(chan struct{}),
	}
}

func (l *libraryFake) UpsertItem(ctx context.Context, item domain.LibraryItem) error {
	if l.upsertAfterAnalysis {
		select {
		case <-l.analyzed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if existing, ok := l.items[item.ID]; ok {
		item.HasAnalysis = item.HasAnalysis || existing.HasAnalysis
	}
	l.items[item.ID] = item
	return nil
}

func (l *libraryFake) SaveSummary(_ context.Context, id, summary string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries[id] = summary
	return nil
}

func (l *libraryFake) MarkAnalyzed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	item := l.items[id]
	item.ID = id
	item.HasAnalysis = true
	l.items[id] = item
	l.analyzedOnce.Do(func() { close(l.analyzed) })
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	uploads []domain.BinaryUpload
}

func (s *storageFake) UploadBinary(_ context.Context, upload domain.BinaryUpload) (domain.BinaryRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, upload)
	return domain.BinaryRef{Path: upload.ID + ".pdf"}, nil
}

type recordsFake struct {
	mu      sync.Mutex
	records map[string]domain.FileRecord
	packs   map[string]domain.StudyPack
	err     error
}

func newRecordsFake() *recordsFake {
	return &recordsFake{records: map[string]domain.FileRecord{}, packs: map[string]domain.StudyPack{}}
}

func (r *recordsFake) UpsertFileRecord(_ context.Context, rec domain.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *recordsFake) SaveStudyPack(_ context.Context, fileID string, pack domain.StudyPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs[fileID] = pack
	return nil
}

type generatorFake struct {
	pack  domain.StudyPack
	err   error
	panic bool

	mu       sync.Mutex
	requests []domain.StudyPackRequest
}

func (g *generatorFake) RequestStudyPack(_ context.Context, req domain.StudyPackRequest) (domain.StudyPack, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.panic {
		panic("generator exploded")
	}
	if g.err != nil {
		return domain.StudyPack{}, g.err
	}
	return g.pack, nil
}

type notifierFake struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (n *notifierFake) Notify(_ context.Context, notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *notifierFake) byLevel(level domain.NoticeLevel) []domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notice
	for _, notice := range n.notices {
		if notice.Level == level {
			out = append(out, notice)
		}
	}
	return out
}
