package ports

import (
	"context"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

// UploadQueue is the inbound contract for the ingestion queue.
type UploadQueue interface {
	Add(ctx context.Context, files []domain.SourceFile) (domain.AddResult, error)
	Remove(ctx context.Context, id string) error
	List() []domain.UploadItem
	Get(id string) (domain.UploadItem, error)
	ExtractedText(ctx context.Context, id string) (string, error)
	Subscribe() (<-chan domain.ItemEvent, func())
	Notices(limit int) []domain.Notice
	SessionFiles(ctx context.Context) ([]domain.SessionFile, error)
}

// FileReader is the read model over remotely persisted files.
type FileReader interface {
	ListFiles(ctx context.Context, limit int) ([]domain.FileRecord, error)
	GetFile(ctx context.Context, id string) (*domain.FileRecord, error)
	GetStudyPack(ctx context.Context, fileID string) (*domain.StudyPack, error)
}
