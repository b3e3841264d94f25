package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	godocx "github.com/fumiama/go-docx"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

const documentPart = "word/document.xml"

// Engine reads raw text from WordprocessingML packages, transitional or strict.
type Engine struct{}

func LoadEngine(context.Context) (ports.EngineHandle, error) {
	return &Engine{}, nil
}

func (e *Engine) Kind() domain.EngineKind {
	return domain.EngineDOCX
}

// RawText returns paragraph and table text separated by blank lines.
func (e *Engine) RawText(data []byte) (string, error) {
	if err := requireDocumentPart(data); err != nil {
		return "", err
	}
	doc, err := godocx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx package: %w", err)
	}

	out := make([]string, 0, len(doc.Document.Body.Items))
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *godocx.Paragraph:
			out = append(out, strings.TrimRight(block.String(), " \t"))
		case *godocx.Table:
			if text := block.String(); text != "" {
				out = append(out, text)
			}
		}
	}
	return strings.Join(out, "\n\n"), nil
}

// go-docx yields an empty body for a package without a main document part.
func requireDocumentPart(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open docx package: %w", err)
	}
	for _, f := range zr.File {
		if f.Name == documentPart {
			return nil
		}
	}
	return errors.New("docx package has no " + documentPart)
}
