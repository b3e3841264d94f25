package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

type documentFake struct {
	pages []string
	err   error
}

func (d *documentFake) NumPages() int { return len(d.pages) }

func (d *documentFake) PageText(index int) (string, error) {
	if d.err != nil && index == len(d.pages) {
		return "", d.err
	}
	return d.pages[index-1], nil
}

func engineWith(doc document, err error) *Engine {
	return &Engine{open: func([]byte) (document, error) { return doc, err }}
}

func TestExtractorJoinsPagesInOrder(t *testing.T) {
	var events []domain.ExtractProgress
	text, err := NewExtractor().Extract(
		context.Background(),
		domain.SourceFile{Name: "a.pdf"},
		engineWith(&documentFake{pages: []string{"Alpha", "Beta", "Gamma"}}, nil),
		func(p domain.ExtractProgress) { events = append(events, p) },
	)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := "---\nPage 1/3\nAlpha\n\n---\nPage 2/3\nBeta\n\n---\nPage 3/3\nGamma"
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", text, want)
	}

	if events[0].Stage != domain.StageReading || events[1].Stage != domain.StagePDF {
		t.Fatalf("unexpected leading events: %+v", events[:2])
	}
	last := events[len(events)-1]
	if last.Stage != domain.StageDone || last.Progress01 != 1 {
		t.Fatalf("unexpected last event: %+v", last)
	}
	for _, e := range events[:len(events)-1] {
		if e.Progress01 > pageCeiling {
			t.Fatalf("page progress exceeded ceiling: %+v", e)
		}
	}
}

func TestExtractorPageFailure(t *testing.T) {
	_, err := NewExtractor().Extract(
		context.Background(),
		domain.SourceFile{Name: "a.pdf"},
		engineWith(&documentFake{pages: []string{"Alpha", "Beta"}, err: errors.New("bad xref")}, nil),
		nil,
	)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestExtractorOpenFailure(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), domain.SourceFile{Name: "a.pdf"}, engineWith(nil, errors.New("not a pdf")), nil)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestExtractorRejectsForeignEngine(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), domain.SourceFile{Name: "a.pdf"}, nil, nil)
	if !domain.IsKind(err, domain.ErrEngineLoad) {
		t.Fatalf("expected engine load error, got %v", err)
	}
}

func TestExtractorReadsRealDocument(t *testing.T) {
	handle, err := LoadEngine(context.Background())
	if err != nil {
		t.Fatalf("LoadEngine() error = %v", err)
	}

	text, err := NewExtractor().Extract(
		context.Background(),
		domain.SourceFile{Name: "lecture.pdf", Data: buildPDF("Alpha", "Beta", "Gamma")},
		handle,
		nil,
	)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	a, b, g := strings.Index(text, "Alpha"), strings.Index(text, "Beta"), strings.Index(text, "Gamma")
	if a < 0 || b < a || g < b {
		t.Fatalf("pages missing or out of order: %q", text)
	}
	if !strings.Contains(text, "Page 3/3") {
		t.Fatalf("missing page marker: %q", text)
	}
}

func TestOpenDocumentRejectsGarbage(t *testing.T) {
	if _, err := openDocument([]byte("definitely not a pdf")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

// buildPDF writes a minimal PDF with one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	var objects []string
	pageCount := len(pages)
	fontID := 3 + 2*pageCount

	kids := make([]string, 0, pageCount)
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount),
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
