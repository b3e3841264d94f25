package pdf

import (
	"bytes"
	"context"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

type document interface {
	NumPages() int
	PageText(index int) (string, error)
}

// Engine opens PDF documents held in memory.
type Engine struct {
	open func(data []byte) (document, error)
}

// LoadEngine is the engine factory for PDF files.
func LoadEngine(context.Context) (ports.EngineHandle, error) {
	return &Engine{open: openDocument}, nil
}

func (e *Engine) Kind() domain.EngineKind {
	return domain.EnginePDF
}

type libDocument struct {
	reader *pdflib.Reader
}

func openDocument(data []byte) (doc document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf reader: %w", err)
	}
	return &libDocument{reader: reader}, nil
}

func (d *libDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *libDocument) PageText(index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page %d: %v", index, r)
		}
	}()

	page := d.reader.Page(index)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("decode page %d: %w", index, err)
	}
	return text, nil
}
