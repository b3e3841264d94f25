package bootstrap

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/study-assistant/internal/config"
	"github.com/kirillkom/study-assistant/internal/core/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		CacheBackend:    "memory",
		LibraryPath:     filepath.Join(dir, "library"),
		StoragePath:     filepath.Join(dir, "storage"),
		AIProvider:      "ollama",
		AIQuestionCount: 10,
		SummaryChars:    1500,
		HandoffTimeout:  5 * time.Second,
		OCRBinary:       "tesseract",
		OCRLanguage:     "ara",
		OCRPageSegMode:  6,
	}
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		doc += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	doc += `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestNewWiresLocalPipeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(context.Background(), testConfig(t), "study-api-test", logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Queue == nil || app.HTTPMetrics == nil {
		t.Fatalf("expected queue and metrics to be wired")
	}
	if app.Files != nil {
		t.Fatalf("file reader must stay nil while the remote store is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.Queue.Run(ctx) }()

	result, err := app.Queue.Add(ctx, []domain.SourceFile{{
		Name:     "notes.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:     buildDocx(t, "Chapter one", "Photosynthesis"),
	}})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	id := result.Accepted[0].ID

	deadline := time.Now().Add(3 * time.Second)
	var item domain.UploadItem
	for time.Now().Before(deadline) {
		item, err = app.Queue.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item.Status == domain.StatusDone || item.Status == domain.StatusError {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if item.Status != domain.StatusDone || item.Progress != 100 {
		t.Fatalf("expected done item, got %+v", item)
	}

	text, err := app.Queue.ExtractedText(ctx, id)
	if err != nil {
		t.Fatalf("ExtractedText() error = %v", err)
	}
	if text != "Chapter one\n\nPhotosynthesis" {
		t.Fatalf("unexpected text %q", text)
	}

	app.Handoffs.Wait()
	if _, err := os.Stat(filepath.Join(app.Config.LibraryPath, "library.json")); err != nil {
		t.Fatalf("expected library file: %v", err)
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheBackend = "redis"
	cfg.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := New(ctx, cfg, "study-api-test", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected redis connection error")
	}
}
