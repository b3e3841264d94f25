package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

// UploadQueueUseCase accepts uploads and extracts them one at a time, oldest first.
type UploadQueueUseCase struct {
	store        *ItemStore
	orchestrator *ExtractionOrchestrator
	cache        ports.SessionCache
	handoffs     *HandoffDispatcher
	notices      *NoticeBoard
	publisher    ports.EventPublisher
	metrics      ports.PipelineMetrics
	logger       *slog.Logger
	newID        func(domain.SourceFile) string

	wake    chan struct{}
	filesMu sync.Mutex
}

type QueueOption func(*UploadQueueUseCase)

func WithEventPublisher(publisher ports.EventPublisher) QueueOption {
	return func(uc *UploadQueueUseCase) {
		uc.publisher = publisher
	}
}

func WithQueueMetrics(metrics ports.PipelineMetrics) QueueOption {
	return func(uc *UploadQueueUseCase) {
		if metrics != nil {
			uc.metrics = metrics
		}
	}
}

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(uc *UploadQueueUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

func WithIDGenerator(fn func(domain.SourceFile) string) QueueOption {
	return func(uc *UploadQueueUseCase) {
		if fn != nil {
			uc.newID = fn
		}
	}
}

func NewUploadQueueUseCase(
	store *ItemStore,
	orchestrator *ExtractionOrchestrator,
	cache ports.SessionCache,
	handoffs *HandoffDispatcher,
	notices *NoticeBoard,
	opts ...QueueOption,
) *UploadQueueUseCase {
	uc := &UploadQueueUseCase{
		store:        store,
		orchestrator: orchestrator,
		cache:        cache,
		handoffs:     handoffs,
		notices:      notices,
		metrics:      noopMetrics{},
		logger:       slog.Default(),
		newID:        newItemID,
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Add runs the detector over files. Unsupported files are rejected, the rest are queued.
func (uc *UploadQueueUseCase) Add(ctx context.Context, files []domain.SourceFile) (domain.AddResult, error) {
	if len(files) == 0 {
		return domain.AddResult{}, domain.WrapError(domain.ErrInvalidInput, "add uploads", errors.New("no files provided"))
	}

	result := domain.AddResult{
		Accepted: []domain.UploadItem{},
		Rejected: []domain.Rejection{},
	}
	for _, file := range files {
		if file.Size == 0 {
			file.Size = int64(len(file.Data))
		}
		format := DetectFormat(file)
		if !format.Supported() {
			result.Rejected = append(result.Rejected, domain.Rejection{
				Name:     file.Name,
				MimeType: file.MimeType,
				Reason:   "unsupported file type",
			})
			continue
		}
		result.Accepted = append(result.Accepted, uc.store.Insert(uc.newID(file), file, format))
	}

	if len(result.Rejected) > 0 {
		names := make([]string, 0, len(result.Rejected))
		for _, rejected := range result.Rejected {
			names = append(names, rejected.Name)
		}
		uc.notices.Notify(ctx, domain.Notice{
			Level:   domain.NoticeError,
			Message: fmt.Sprintf("Unsupported file type: %s. Upload PDF, image or Word files.", strings.Join(names, ", ")),
		})
	}
	if len(result.Accepted) == 0 {
		return result, domain.WrapError(domain.ErrUnsupportedFormat, "add uploads", fmt.Errorf("%d file(s) rejected", len(result.Rejected)))
	}

	uc.metrics.SetQueueDepth(uc.store.QueuedCount())
	uc.signal()
	return result, nil
}

// Run is the single extraction worker. It returns when ctx is cancelled.
func (uc *UploadQueueUseCase) Run(ctx context.Context) error {
	if uc.publisher != nil {
		events, unsubscribe := uc.store.Subscribe()
		defer unsubscribe()
		go uc.forwardEvents(ctx, events)
	}

	for {
		for ctx.Err() == nil && uc.processNext(ctx) {
		}
		select {
		case <-ctx.Done():
			return nil
		case <-uc.wake:
		}
	}
}

func (uc *UploadQueueUseCase) processNext(ctx context.Context) bool {
	item, ok := uc.store.PromoteNext()
	if !ok {
		return false
	}
	uc.metrics.SetQueueDepth(uc.store.QueuedCount())
	uc.logger.Info("item_promoted", "item_id", item.ID, "file", item.File.Name, "format", item.Format, "seq", item.Seq)

	uc.metrics.StartExtraction()
	started := time.Now()
	text, err := uc.orchestrator.Extract(ctx, item.Format, item.File, func(p domain.ExtractProgress) {
		uc.store.ApplyProgress(item.ID, p)
	})
	uc.metrics.FinishExtraction(item.Format, time.Since(started), err)

	if err != nil {
		uc.handleFailure(ctx, item, err)
		return true
	}
	uc.handleSuccess(ctx, item, text)
	return true
}

func (uc *UploadQueueUseCase) handleFailure(ctx context.Context, item domain.UploadItem, extractErr error) {
	message := domain.UserMessage(extractErr)
	if _, ok := uc.store.Fail(item.ID, message); !ok {
		uc.logger.Info("extraction_discarded", "item_id", item.ID, "error", extractErr)
		return
	}
	uc.logger.Warn("extraction_failed", "item_id", item.ID, "file", item.File.Name, "format", item.Format, "error", extractErr)
	uc.notices.Notify(ctx, domain.Notice{
		Level:   domain.NoticeError,
		ItemID:  item.ID,
		Message: fmt.Sprintf("%s: %s", item.File.Name, message),
	})
}

func (uc *UploadQueueUseCase) handleSuccess(ctx context.Context, item domain.UploadItem, text string) {
	if !uc.store.Exists(item.ID) {
		uc.logger.Info("extraction_discarded", "item_id", item.ID)
		return
	}

	chars := utf8.RuneCountInString(text)
	if err := uc.cache.Put(ctx, ExtractedTextKey(item.ID), text); err != nil {
		uc.logger.Warn("handoff_failed", "handoff", "cache", "item_id", item.ID, "error", err)
		uc.notices.Notify(ctx, domain.Notice{
			Level:   domain.NoticeWarning,
			ItemID:  item.ID,
			Message: fmt.Sprintf("Text extracted from %s, but saving it locally failed: %v", item.File.Name, err),
		})
	}
	if err := uc.recordSessionFile(ctx, item, chars); err != nil {
		uc.logger.Warn("handoff_failed", "handoff", "session_files", "item_id", item.ID, "error", err)
	}

	done, ok := uc.store.Complete(item.ID, chars)
	if !ok {
		uc.forget(ctx, item.ID)
		uc.logger.Info("extraction_discarded", "item_id", item.ID)
		return
	}
	uc.logger.Info("extraction_completed", "item_id", item.ID, "format", item.Format, "chars", chars)
	uc.notices.Notify(ctx, domain.Notice{
		Level:   domain.NoticeSuccess,
		ItemID:  item.ID,
		Message: fmt.Sprintf("Text extracted from %s (%d chars). Ready for analysis.", item.File.Name, chars),
	})
	uc.handoffs.Dispatch(ctx, Completion{Item: done, Text: text})
}

// Remove deletes the item in any status. An in-flight extraction keeps running and its result is discarded.
func (uc *UploadQueueUseCase) Remove(ctx context.Context, id string) error {
	item, ok := uc.store.Remove(id)
	if !ok {
		return domain.WrapError(domain.ErrItemNotFound, "remove upload", fmt.Errorf("id %q", id))
	}
	uc.forget(ctx, id)
	uc.metrics.SetQueueDepth(uc.store.QueuedCount())
	uc.logger.Info("item_removed", "item_id", id, "status", item.Status)
	return nil
}

func (uc *UploadQueueUseCase) List() []domain.UploadItem {
	return uc.store.List()
}

func (uc *UploadQueueUseCase) Get(id string) (domain.UploadItem, error) {
	item, ok := uc.store.Get(id)
	if !ok {
		return domain.UploadItem{}, domain.WrapError(domain.ErrItemNotFound, "get upload", fmt.Errorf("id %q", id))
	}
	return item, nil
}

func (uc *UploadQueueUseCase) ExtractedText(ctx context.Context, id string) (string, error) {
	text, ok, err := uc.cache.Get(ctx, ExtractedTextKey(id))
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "read extracted text", err)
	}
	if !ok {
		return "", domain.WrapError(domain.ErrItemNotFound, "read extracted text", fmt.Errorf("no extracted text for %q", id))
	}
	return text, nil
}

func (uc *UploadQueueUseCase) Subscribe() (<-chan domain.ItemEvent, func()) {
	return uc.store.Subscribe()
}

func (uc *UploadQueueUseCase) Notices(limit int) []domain.Notice {
	return uc.notices.Recent(limit)
}

// SessionFiles returns the cached listing of files extracted in this session.
func (uc *UploadQueueUseCase) SessionFiles(ctx context.Context) ([]domain.SessionFile, error) {
	uc.filesMu.Lock()
	defer uc.filesMu.Unlock()
	return uc.loadSessionFiles(ctx)
}

func (uc *UploadQueueUseCase) signal() {
	select {
	case uc.wake <- struct{}{}:
	default:
	}
}

func (uc *UploadQueueUseCase) forget(ctx context.Context, id string) {
	for _, key := range []string{ExtractedTextKey(id), SummaryKey(id), AnalysisKey(id)} {
		if err := uc.cache.Remove(ctx, key); err != nil {
			uc.logger.Debug("cache_remove_failed", "key", key, "error", err)
		}
	}
	if err := uc.dropSessionFile(ctx, id); err != nil {
		uc.logger.Debug("cache_remove_failed", "key", SessionFilesKey, "error", err)
	}
}

func (uc *UploadQueueUseCase) recordSessionFile(ctx context.Context, item domain.UploadItem, chars int) error {
	uc.filesMu.Lock()
	defer uc.filesMu.Unlock()

	files, err := uc.loadSessionFiles(ctx)
	if err != nil {
		return err
	}
	entry := domain.SessionFile{
		ID:             item.ID,
		Name:           item.File.Name,
		Size:           item.File.Size,
		Type:           item.File.MimeType,
		ExtractedChars: chars,
		UploadedAt:     time.Now().UTC(),
	}
	next := []domain.SessionFile{entry}
	for _, f := range files {
		if f.ID != item.ID {
			next = append(next, f)
		}
	}
	return uc.saveSessionFiles(ctx, next)
}

func (uc *UploadQueueUseCase) dropSessionFile(ctx context.Context, id string) error {
	uc.filesMu.Lock()
	defer uc.filesMu.Unlock()

	files, err := uc.loadSessionFiles(ctx)
	if err != nil {
		return err
	}
	next := make([]domain.SessionFile, 0, len(files))
	for _, f := range files {
		if f.ID != id {
			next = append(next, f)
		}
	}
	if len(next) == len(files) {
		return nil
	}
	return uc.saveSessionFiles(ctx, next)
}

func (uc *UploadQueueUseCase) loadSessionFiles(ctx context.Context) ([]domain.SessionFile, error) {
	raw, ok, err := uc.cache.Get(ctx, SessionFilesKey)
	if err != nil {
		return nil, fmt.Errorf("read session files: %w", err)
	}
	if !ok || raw == "" {
		return []domain.SessionFile{}, nil
	}
	var files []domain.SessionFile
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return []domain.SessionFile{}, nil
	}
	return files, nil
}

func (uc *UploadQueueUseCase) saveSessionFiles(ctx context.Context, files []domain.SessionFile) error {
	payload, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal session files: %w", err)
	}
	if err := uc.cache.Put(ctx, SessionFilesKey, string(payload)); err != nil {
		return fmt.Errorf("write session files: %w", err)
	}
	return nil
}

func (uc *UploadQueueUseCase) forwardEvents(ctx context.Context, events <-chan domain.ItemEvent) {
	for event := range events {
		if err := uc.publisher.PublishItemEvent(ctx, event); err != nil {
			uc.logger.Warn("event_publish_failed", "type", event.Type, "error", err)
		}
	}
}

func newItemID(file domain.SourceFile) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%d-%s", file.Name, file.Size, time.Now().UnixMilli(), suffix)
}
