package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Heading</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">First </w:t></w:r><w:r><w:t>line</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>
    <w:p><w:r><w:t>Before</w:t><w:br/><w:t>After</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestExtractorReadsParagraphs(t *testing.T) {
	data := buildDocx(t, map[string]string{"word/document.xml": documentXML})

	var stages []domain.Stage
	text, err := NewExtractor().Extract(context.Background(), domain.SourceFile{Name: "a.docx", Data: data}, &Engine{},
		func(p domain.ExtractProgress) { stages = append(stages, p.Stage) })
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := "Heading\n\nFirst line\ttabbed\n\nBefore\nAfter"
	if text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", text, want)
	}
	if len(stages) != 3 || stages[0] != domain.StageReading || stages[1] != domain.StageDOCX || stages[2] != domain.StageDone {
		t.Fatalf("unexpected stages: %v", stages)
	}
}

func TestExtractorReadsStrictNamespace(t *testing.T) {
	strict := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://purl.oclc.org/ooxml/wordprocessingml/main" w:conformance="strict">
  <w:body><w:p><w:r><w:t>Hello strict</w:t></w:r></w:p></w:body>
</w:document>`
	data := buildDocx(t, map[string]string{"word/document.xml": strict})

	text, err := (&Engine{}).RawText(data)
	if err != nil {
		t.Fatalf("RawText() error = %v", err)
	}
	if text != "Hello strict" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractorReadsTables(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Intro</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
  </w:body>
</w:document>`
	data := buildDocx(t, map[string]string{"word/document.xml": doc})

	text, err := (&Engine{}).RawText(data)
	if err != nil {
		t.Fatalf("RawText() error = %v", err)
	}
	if !strings.HasPrefix(text, "Intro\n\n") || !strings.Contains(text, "Cell") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractorMissingDocumentPart(t *testing.T) {
	data := buildDocx(t, map[string]string{"xl/workbook.xml": "<workbook/>"})

	_, err := NewExtractor().Extract(context.Background(), domain.SourceFile{Name: "a.docx", Data: data}, &Engine{}, nil)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestExtractorCorruptArchive(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), domain.SourceFile{Name: "a.docx", Data: []byte("not a zip")}, &Engine{}, nil)
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}
