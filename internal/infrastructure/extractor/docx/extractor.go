package docx

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Kind() domain.EngineKind {
	return domain.EngineDOCX
}

func (e *Extractor) Extract(ctx context.Context, file domain.SourceFile, handle ports.EngineHandle, progress domain.ProgressFunc) (string, error) {
	engine, ok := handle.(*Engine)
	if !ok {
		return "", domain.WrapError(domain.ErrEngineLoad, "extract docx", fmt.Errorf("unexpected engine %T", handle))
	}

	progress.Emit(domain.StageReading, 0.1, "Reading Word file")
	if err := ctx.Err(); err != nil {
		return "", err
	}
	progress.Emit(domain.StageDOCX, 0.5, "Extracting Word")

	raw, err := engine.RawText(file.Data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract docx", err)
	}

	text := strings.TrimSpace(raw)
	progress.Emit(domain.StageDone, 1, fmt.Sprintf("Text extracted (%d chars)", len([]rune(text))))
	return text, nil
}
