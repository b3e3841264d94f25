package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

const (
	openAllowance = 0.08
	pageBand      = 0.9
	pageCeiling   = 0.98
)

// Extractor reads pages strictly in order and separates them with a page marker.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Kind() domain.EngineKind {
	return domain.EnginePDF
}

func (e *Extractor) Extract(ctx context.Context, file domain.SourceFile, handle ports.EngineHandle, progress domain.ProgressFunc) (string, error) {
	engine, ok := handle.(*Engine)
	if !ok {
		return "", domain.WrapError(domain.ErrEngineLoad, "extract pdf", fmt.Errorf("unexpected engine %T", handle))
	}

	progress.Emit(domain.StageReading, 0.02, "Reading file")
	progress.Emit(domain.StagePDF, openAllowance, "Analysing PDF")

	doc, err := engine.open(file.Data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}

	total := doc.NumPages()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.PageText(i)
		if err != nil {
			return "", domain.WrapError(domain.ErrExtraction, "extract pdf", err)
		}
		fmt.Fprintf(&b, "\n\n---\nPage %d/%d\n", i, total)
		b.WriteString(text)

		p := openAllowance + float64(i)/float64(total)*pageBand
		if p > pageCeiling {
			p = pageCeiling
		}
		progress.Emit(domain.StagePDF, p, fmt.Sprintf("Extracting PDF (page %d/%d)", i, total))
	}

	out := strings.TrimSpace(b.String())
	progress.Emit(domain.StageDone, 1, fmt.Sprintf("Text extracted (%d chars)", len([]rune(out))))
	return out, nil
}
