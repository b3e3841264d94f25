package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

const defaultNoticeLimit = 100

// NoticeBoard keeps the most recent notices and fans them out to queue observers.
type NoticeBoard struct {
	mu      sync.Mutex
	notices []domain.Notice
	limit   int
	store   *ItemStore
	logger  *slog.Logger
}

func NewNoticeBoard(store *ItemStore, logger *slog.Logger) *NoticeBoard {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoticeBoard{
		limit:  defaultNoticeLimit,
		store:  store,
		logger: logger,
	}
}

func (b *NoticeBoard) Notify(ctx context.Context, notice domain.Notice) {
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now().UTC()
	}

	b.mu.Lock()
	b.notices = append(b.notices, notice)
	if overflow := len(b.notices) - b.limit; overflow > 0 {
		b.notices = append([]domain.Notice(nil), b.notices[overflow:]...)
	}
	b.mu.Unlock()

	level := slog.LevelInfo
	switch notice.Level {
	case domain.NoticeWarning:
		level = slog.LevelWarn
	case domain.NoticeError:
		level = slog.LevelError
	}
	b.logger.Log(ctx, level, "notice", "level", notice.Level, "item_id", notice.ItemID, "message", notice.Message)

	if b.store != nil {
		b.store.PublishNotice(notice)
	}
}

// Recent returns up to limit notices, newest first.
func (b *NoticeBoard) Recent(limit int) []domain.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > len(b.notices) {
		limit = len(b.notices)
	}
	out := make([]domain.Notice, 0, limit)
	for i := len(b.notices) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.notices[i])
	}
	return out
}
