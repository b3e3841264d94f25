package localfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

var safeExtensions = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"webp": true,
	"docx": true,
	"doc":  true,
}

// Storage keeps original uploads on the local filesystem.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// UploadBinary writes the file as <id>.<ext> and returns its storage key.
func (s *Storage) UploadBinary(ctx context.Context, upload domain.BinaryUpload) (domain.BinaryRef, error) {
	if strings.TrimSpace(upload.ID) == "" {
		return domain.BinaryRef{}, domain.WrapError(domain.ErrInvalidInput, "upload binary", fmt.Errorf("empty id"))
	}
	key := sanitizeKey(upload.ID) + "." + binaryExtension(upload.Filename)
	if err := s.save(ctx, key, bytes.NewReader(upload.Data)); err != nil {
		return domain.BinaryRef{}, err
	}
	return domain.BinaryRef{Path: key}, nil
}

func (s *Storage) save(_ context.Context, key string, data io.Reader) error {
	path := filepath.Join(s.basePath, key)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func binaryExtension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if safeExtensions[ext] {
		return ext
	}
	return "bin"
}

func sanitizeKey(id string) string {
	base := filepath.Base(id)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "upload"
	}
	return base
}
