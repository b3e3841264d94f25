package ports

import (
	"context"
	"time"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

// EngineHandle is a loaded decoding engine. Extractors assert the concrete type they need.
type EngineHandle interface {
	Kind() domain.EngineKind
}

// EngineLoader lazily loads and caches decoding engines.
type EngineLoader interface {
	EnsureLoaded(ctx context.Context, kind domain.EngineKind, progress domain.ProgressFunc) (EngineHandle, error)
}

// Extractor turns a file into plain text using an already loaded engine.
type Extractor interface {
	Kind() domain.EngineKind
	Extract(ctx context.Context, file domain.SourceFile, engine EngineHandle, progress domain.ProgressFunc) (string, error)
}

// SessionCache is the fast local read path for extracted text and session metadata.
type SessionCache interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Remove(ctx context.Context, key string) error
}

// LibraryStore keeps the local library of extracted files.
type LibraryStore interface {
	UpsertItem(ctx context.Context, item domain.LibraryItem) error
	SaveSummary(ctx context.Context, id, summary string) error
	MarkAnalyzed(ctx context.Context, id string) error
}

// BinaryStorage stores original file bytes.
type BinaryStorage interface {
	UploadBinary(ctx context.Context, upload domain.BinaryUpload) (domain.BinaryRef, error)
}

// FileRecordRepository persists extracted files and study packs remotely.
type FileRecordRepository interface {
	UpsertFileRecord(ctx context.Context, rec domain.FileRecord) error
	SaveStudyPack(ctx context.Context, fileID string, pack domain.StudyPack) error
}

// StudyPackGenerator produces an analysis and question set from extracted text.
type StudyPackGenerator interface {
	RequestStudyPack(ctx context.Context, req domain.StudyPackRequest) (domain.StudyPack, error)
}

// Notifier delivers user-visible notices.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// EventPublisher forwards queue events to external observers.
type EventPublisher interface {
	PublishItemEvent(ctx context.Context, event domain.ItemEvent) error
}

// PipelineMetrics records queue and extraction telemetry.
type PipelineMetrics interface {
	StartExtraction()
	FinishExtraction(format domain.Format, duration time.Duration, err error)
	SetQueueDepth(depth int)
	ObserveHandoff(name string, err error)
}
