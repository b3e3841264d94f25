package httpadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

type queueFake struct {
	mu      sync.Mutex
	added   []domain.SourceFile
	items   map[string]domain.UploadItem
	texts   map[string]string
	notices []domain.Notice
	session []domain.SessionFile
	removed []string
	events  chan domain.ItemEvent
}

func newQueueFake() *queueFake {
	return &queueFake{
		items:  map[string]domain.UploadItem{},
		texts:  map[string]string{},
		events: make(chan domain.ItemEvent, 8),
	}
}

func (f *queueFake) Add(_ context.Context, files []domain.SourceFile) (domain.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(files) == 0 {
		return domain.AddResult{}, domain.WrapError(domain.ErrInvalidInput, "add", fmt.Errorf("empty"))
	}
	f.added = append(f.added, files...)
	result := domain.AddResult{Accepted: []domain.UploadItem{}, Rejected: []domain.Rejection{}}
	for i, file := range files {
		if file.Name == "sheet.xlsx" {
			result.Rejected = append(result.Rejected, domain.Rejection{Name: file.Name, Reason: "unsupported file type"})
			continue
		}
		item := domain.UploadItem{ID: fmt.Sprintf("%s-%d", file.Name, i), File: file, Status: domain.StatusQueued}
		f.items[item.ID] = item
		result.Accepted = append(result.Accepted, item)
	}
	if len(result.Accepted) == 0 {
		return result, domain.WrapError(domain.ErrUnsupportedFormat, "add", fmt.Errorf("all rejected"))
	}
	return result, nil
}

func (f *queueFake) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return domain.WrapError(domain.ErrItemNotFound, "remove", fmt.Errorf("id %q", id))
	}
	delete(f.items, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *queueFake) List() []domain.UploadItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.UploadItem, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	return out
}

func (f *queueFake) Get(id string) (domain.UploadItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.UploadItem{}, domain.WrapError(domain.ErrItemNotFound, "get", fmt.Errorf("id %q", id))
	}
	return item, nil
}

func (f *queueFake) ExtractedText(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.texts[id]
	if !ok {
		return "", domain.WrapError(domain.ErrItemNotFound, "text", fmt.Errorf("id %q", id))
	}
	return text, nil
}

func (f *queueFake) Subscribe() (<-chan domain.ItemEvent, func()) {
	return f.events, func() {}
}

func (f *queueFake) Notices(limit int) []domain.Notice {
	if limit < len(f.notices) {
		return f.notices[:limit]
	}
	return f.notices
}

func (f *queueFake) SessionFiles(context.Context) ([]domain.SessionFile, error) {
	return f.session, nil
}

type filesFake struct {
	records []domain.FileRecord
	packs   map[string]domain.StudyPack
	err     error
}

func (f filesFake) ListFiles(_ context.Context, limit int) ([]domain.FileRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f filesFake) GetFile(_ context.Context, id string) (*domain.FileRecord, error) {
	for _, rec := range f.records {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, domain.WrapError(domain.ErrFileNotFound, "get file", fmt.Errorf("id %q", id))
}

func (f filesFake) GetStudyPack(_ context.Context, id string) (*domain.StudyPack, error) {
	pack, ok := f.packs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFileNotFound, "get study pack", fmt.Errorf("id %q", id))
	}
	return &pack, nil
}
