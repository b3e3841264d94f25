package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

const (
	readingAllowance = 0.1
	recognitionBand  = 0.9
)

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Kind() domain.EngineKind {
	return domain.EngineOCR
}

// Extract runs recognition in a scoped worker that is terminated on every path.
func (e *Extractor) Extract(ctx context.Context, file domain.SourceFile, handle ports.EngineHandle, progress domain.ProgressFunc) (text string, err error) {
	engine, ok := handle.(*Engine)
	if !ok {
		return "", domain.WrapError(domain.ErrEngineLoad, "extract image", fmt.Errorf("unexpected engine %T", handle))
	}

	progress.Emit(domain.StageReading, 0.05, "Reading image")
	worker, err := engine.NewWorker(ctx)
	if err != nil {
		return "", domain.WrapError(domain.ErrEngineLoad, "start ocr worker", err)
	}
	defer func() {
		if termErr := worker.Terminate(); termErr != nil {
			e.logger.Warn("ocr_worker_terminate_failed", "file", file.Name, "error", termErr)
		}
	}()

	raw, err := worker.Recognize(ctx, file.Data, func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		progress.Emit(domain.StageOCR, readingAllowance+recognitionBand*fraction, "OCR on image")
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "recognize image", err)
	}

	text = strings.TrimSpace(raw)
	progress.Emit(domain.StageDone, 1, fmt.Sprintf("Text extracted (%d chars)", len([]rune(text))))
	return text, nil
}
