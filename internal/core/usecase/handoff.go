package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

const (
	HandoffLibrary  = "library"
	HandoffRemote   = "remote"
	HandoffAnalysis = "analysis"

	defaultSummaryChars   = 1500
	defaultHandoffTimeout = 2 * time.Minute
)

type HandoffConfig struct {
	SummaryChars  int
	QuestionCount int
	Timeout       time.Duration
}

// HandoffDependencies lists the downstream collaborators. Nil members are skipped.
type HandoffDependencies struct {
	Cache     ports.SessionCache
	Library   ports.LibraryStore
	Storage   ports.BinaryStorage
	Records   ports.FileRecordRepository
	Generator ports.StudyPackGenerator
	Notifier  ports.Notifier
	Metrics   ports.PipelineMetrics
	Logger    *slog.Logger
}

// Completion is a successfully extracted item handed to downstream collaborators.
type Completion struct {
	Item domain.UploadItem
	Text string
}

// HandoffDispatcher runs best-effort follow-up work after an extraction succeeds.
// Failures become notices and never touch the upload item.
type HandoffDispatcher struct {
	deps HandoffDependencies
	cfg  HandoffConfig
	now  func() time.Time
	wg   sync.WaitGroup
}

func NewHandoffDispatcher(cfg HandoffConfig, deps HandoffDependencies) *HandoffDispatcher {
	if cfg.SummaryChars <= 0 {
		cfg.SummaryChars = defaultSummaryChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHandoffTimeout
	}
	cfg.QuestionCount = domain.ClampQuestionCount(cfg.QuestionCount)
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	return &HandoffDispatcher{
		deps: deps,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch starts all hand-offs concurrently and returns immediately.
func (d *HandoffDispatcher) Dispatch(ctx context.Context, c Completion) {
	base := context.WithoutCancel(ctx)
	d.start(base, HandoffLibrary, c, d.toLibrary)
	d.start(base, HandoffRemote, c, d.toRemote)
	d.start(base, HandoffAnalysis, c, d.toAnalysis)
}

// Wait blocks until every dispatched hand-off has finished.
func (d *HandoffDispatcher) Wait() {
	d.wg.Wait()
}

func (d *HandoffDispatcher) start(ctx context.Context, name string, c Completion, fn func(context.Context, Completion) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, name, c, fn)
	}()
}

func (d *HandoffDispatcher) run(ctx context.Context, name string, c Completion, fn func(context.Context, Completion) error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx, c)
	}()
	d.deps.Metrics.ObserveHandoff(name, err)
	if err == nil {
		return
	}

	err = domain.WrapError(domain.ErrHandoff, name+" hand-off", err)
	d.deps.Logger.Warn("handoff_failed", "handoff", name, "item_id", c.Item.ID, "error", err)
	d.notify(ctx, domain.Notice{
		Level:   domain.NoticeWarning,
		ItemID:  c.Item.ID,
		Message: fmt.Sprintf("Text extracted from %s, but %s failed: %v", c.Item.File.Name, handoffLabel(name), err),
	})
}

func (d *HandoffDispatcher) toLibrary(ctx context.Context, c Completion) error {
	if d.deps.Library == nil {
		return nil
	}
	entry := domain.LibraryItem{
		ID:             c.Item.ID,
		FileName:       c.Item.File.Name,
		UploadedAt:     d.now(),
		ExtractedChars: c.Item.ExtractedChars,
	}
	if err := d.deps.Library.UpsertItem(ctx, entry); err != nil {
		return fmt.Errorf("upsert library item: %w", err)
	}

	summary := Summarize(c.Text, d.cfg.SummaryChars)
	if err := d.deps.Library.SaveSummary(ctx, c.Item.ID, summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if d.deps.Cache != nil {
		if err := d.deps.Cache.Put(ctx, SummaryKey(c.Item.ID), summary); err != nil {
			return fmt.Errorf("cache summary: %w", err)
		}
	}
	return nil
}

func (d *HandoffDispatcher) toRemote(ctx context.Context, c Completion) error {
	if d.deps.Records == nil {
		return nil
	}

	var ref domain.BinaryRef
	if d.deps.Storage != nil {
		var err error
		ref, err = d.deps.Storage.UploadBinary(ctx, domain.BinaryUpload{
			ID:       c.Item.ID,
			Filename: c.Item.File.Name,
			MimeType: c.Item.File.MimeType,
			Data:     c.Item.File.Data,
		})
		if err != nil {
			return fmt.Errorf("upload binary: %w", err)
		}
	}

	now := d.now()
	record := domain.FileRecord{
		ID:         c.Item.ID,
		Name:       c.Item.File.Name,
		MimeType:   c.Item.File.MimeType,
		SizeBytes:  c.Item.File.Size,
		Content:    c.Text,
		Summary:    Summarize(c.Text, d.cfg.SummaryChars),
		BinaryPath: ref.Path,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := d.deps.Records.UpsertFileRecord(ctx, record); err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}
	return nil
}

func (d *HandoffDispatcher) toAnalysis(ctx context.Context, c Completion) error {
	if d.deps.Generator == nil || strings.TrimSpace(c.Text) == "" {
		return nil
	}

	pack, err := d.deps.Generator.RequestStudyPack(ctx, domain.StudyPackRequest{
		FileID:        c.Item.ID,
		FileName:      c.Item.File.Name,
		Text:          c.Text,
		QuestionCount: d.cfg.QuestionCount,
	})
	if err != nil {
		return fmt.Errorf("request study pack: %w", err)
	}

	if d.deps.Records != nil {
		if err := d.deps.Records.SaveStudyPack(ctx, c.Item.ID, pack); err != nil {
			return fmt.Errorf("save study pack: %w", err)
		}
	}
	if d.deps.Cache != nil {
		payload, err := json.Marshal(pack)
		if err != nil {
			return fmt.Errorf("marshal study pack: %w", err)
		}
		if err := d.deps.Cache.Put(ctx, AnalysisKey(c.Item.ID), string(payload)); err != nil {
			return fmt.Errorf("cache study pack: %w", err)
		}
	}
	if d.deps.Library != nil {
		if err := d.deps.Library.MarkAnalyzed(ctx, c.Item.ID); err != nil {
			return fmt.Errorf("mark library item analyzed: %w", err)
		}
	}

	d.notify(ctx, domain.Notice{
		Level:   domain.NoticeSuccess,
		ItemID:  c.Item.ID,
		Message: fmt.Sprintf("Study pack ready for %s (%d questions)", c.Item.File.Name, len(pack.Questions)),
	})
	return nil
}

func (d *HandoffDispatcher) notify(ctx context.Context, notice domain.Notice) {
	if d.deps.Notifier == nil {
		return
	}
	d.deps.Notifier.Notify(ctx, notice)
}

// Summarize returns the first limit characters of text.
func Summarize(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func handoffLabel(name string) string {
	switch name {
	case HandoffLibrary:
		return "saving to the library"
	case HandoffRemote:
		return "cloud upload"
	case HandoffAnalysis:
		return "study pack generation"
	default:
		return name
	}
}

type noopMetrics struct{}

func (noopMetrics) StartExtraction() {}
func (noopMetrics) FinishExtraction(domain.Format, time.Duration, error) {}
func (noopMetrics) SetQueueDepth(int) {}
func (noopMetrics) ObserveHandoff(string, error) {}
