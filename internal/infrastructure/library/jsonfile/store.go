package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

type libraryData struct {
	Items     []domain.LibraryItem `json:"items"`
	Summaries map[string]string    `json:"summaries"`
}

// Store is the local library persisted as a single JSON document.
type Store struct {
	mu   sync.RWMutex
	path string
	data libraryData
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create library directory: %w", err)
	}

	store := &Store{path: filepath.Join(baseDir, "library.json")}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = libraryData{Items: []domain.LibraryItem{}, Summaries: map[string]string{}}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open library file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode library file: %w", err)
	}
	if s.data.Items == nil {
		s.data.Items = []domain.LibraryItem{}
	}
	if s.data.Summaries == nil {
		s.data.Summaries = map[string]string{}
	}
	return nil
}

// UpsertItem puts the item first, replacing any entry with the same id.
func (s *Store) UpsertItem(_ context.Context, item domain.LibraryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.LibraryItem, 0, len(s.data.Items)+1)
	items = append(items, item)
	for _, existing := range s.data.Items {
		if existing.ID == item.ID {
			item.HasAnalysis = item.HasAnalysis || existing.HasAnalysis
			items[0] = item
			continue
		}
		items = append(items, existing)
	}
	s.data.Items = items
	return s.saveLocked()
}

func (s *Store) SaveSummary(_ context.Context, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Summaries[id] = summary
	return s.saveLocked()
}

// MarkAnalyzed flags the item. Hand-offs run concurrently, so an unknown id gets a
// placeholder entry that the library upsert later fills in.
func (s *Store) MarkAnalyzed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Items {
		if s.data.Items[i].ID == id {
			s.data.Items[i].HasAnalysis = true
			return s.saveLocked()
		}
	}
	s.data.Items = append([]domain.LibraryItem{{ID: id, HasAnalysis: true}}, s.data.Items...)
	return s.saveLocked()
}

func (s *Store) Items() []domain.LibraryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LibraryItem(nil), s.data.Items...)
}

func (s *Store) Summary(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.data.Summaries[id]
	return summary, ok
}

func (s *Store) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "library-*.json")
	if err != nil {
		return fmt.Errorf("create temp library: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp library: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace library file: %w", err)
	}
	return nil
}
