package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

// ExtractionOrchestrator routes a file to its extractor and enforces the progress protocol.
type ExtractionOrchestrator struct {
	loader     ports.EngineLoader
	extractors map[domain.EngineKind]ports.Extractor
}

func NewExtractionOrchestrator(loader ports.EngineLoader, extractors ...ports.Extractor) *ExtractionOrchestrator {
	byKind := make(map[domain.EngineKind]ports.Extractor, len(extractors))
	for _, extractor := range extractors {
		byKind[extractor.Kind()] = extractor
	}
	return &ExtractionOrchestrator{
		loader:     loader,
		extractors: byKind,
	}
}

// Extract returns normalized text. Every call ends with exactly one done or error event.
func (o *ExtractionOrchestrator) Extract(
	ctx context.Context,
	format domain.Format,
	file domain.SourceFile,
	onProgress domain.ProgressFunc,
) (string, error) {
	guard := newProgressGuard(onProgress)

	text, err := o.extract(ctx, format, file, guard.emit)
	if err != nil {
		guard.emit(domain.ExtractProgress{Stage: domain.StageError, Message: domain.UserMessage(err)})
		return "", err
	}
	guard.emit(domain.ExtractProgress{Stage: domain.StageDone, Progress01: 1})
	return text, nil
}

func (o *ExtractionOrchestrator) extract(
	ctx context.Context,
	format domain.Format,
	file domain.SourceFile,
	progress domain.ProgressFunc,
) (string, error) {
	if format == domain.FormatDOC {
		return "", domain.WrapError(domain.ErrNotYetExtractable, "extract "+file.Name, errors.New("legacy .doc files are not supported yet"))
	}
	kind, ok := format.EngineKind()
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract "+file.Name, fmt.Errorf("format %q", format))
	}
	extractor, ok := o.extractors[kind]
	if !ok {
		return "", domain.WrapError(domain.ErrEngineLoad, "extract "+file.Name, fmt.Errorf("no extractor registered for %s", kind))
	}

	engine, err := o.loader.EnsureLoaded(ctx, kind, progress)
	if err != nil {
		if domain.IsKind(err, domain.ErrEngineLoad) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrEngineLoad, "load "+string(kind)+" engine", err)
	}

	text, err := extractor.Extract(ctx, file, engine, progress)
	if err != nil {
		if domain.IsKind(err, domain.ErrEngineLoad) || domain.IsKind(err, domain.ErrExtraction) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrExtraction, "extract "+file.Name, err)
	}
	return NormalizeText(text), nil
}

// NormalizeText unifies line endings, drops NUL bytes and trims surrounding whitespace.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

// progressGuard keeps progress monotonic, stages ordered and drops events after a terminal one.
type progressGuard struct {
	mu       sync.Mutex
	sink     domain.ProgressFunc
	last     float64
	rank     int
	finished bool
}

func newProgressGuard(sink domain.ProgressFunc) *progressGuard {
	return &progressGuard{sink: sink, rank: -1}
}

func (g *progressGuard) emit(p domain.ExtractProgress) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finished {
		return
	}
	rank := p.Stage.Rank()
	if rank < 0 || rank < g.rank {
		return
	}

	switch {
	case math.IsNaN(p.Progress01) || p.Progress01 < 0:
		p.Progress01 = 0
	case p.Progress01 > 1:
		p.Progress01 = 1
	}
	if p.Stage == domain.StageDone {
		p.Progress01 = 1
	}
	if p.Progress01 < g.last {
		p.Progress01 = g.last
	}

	g.last = p.Progress01
	g.rank = rank
	g.finished = p.Stage.Terminal()
	if g.sink != nil {
		g.sink(p)
	}
}
