package usecase

import (
	"archive/zip"
	"bytes"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/richardlehane/mscfb"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

const (
	mimePDF     = "application/pdf"
	mimeDOCX    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC     = "application/msword"
	mimeOctet   = "application/octet-stream"
	sniffLength = 512
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// DetectFormat classifies a file by MIME type with an extension fallback.
// When the MIME type is missing or generic, the leading bytes decide.
func DetectFormat(file domain.SourceFile) domain.Format {
	mimeType := normalizeMime(file.MimeType)
	ext := strings.ToLower(filepath.Ext(file.Name))

	switch {
	case mimeType == mimePDF || ext == ".pdf":
		return domain.FormatPDF
	case strings.HasPrefix(mimeType, "image/") || imageExtensions[ext]:
		return domain.FormatImage
	case mimeType == mimeDOCX || ext == ".docx":
		return domain.FormatDOCX
	case mimeType == mimeDOC || ext == ".doc":
		return domain.FormatDOC
	}

	if mimeType == "" || mimeType == mimeOctet {
		return sniffFormat(file.Data)
	}
	return domain.FormatUnsupported
}

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

func sniffFormat(data []byte) domain.Format {
	if len(data) == 0 {
		return domain.FormatUnsupported
	}
	if bytes.HasPrefix(data, oleSignature) {
		if isWordBinary(data) {
			return domain.FormatDOC
		}
		return domain.FormatUnsupported
	}

	head := data
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	detected := normalizeMime(http.DetectContentType(head))
	switch {
	case detected == mimePDF:
		return domain.FormatPDF
	case strings.HasPrefix(detected, "image/"):
		return domain.FormatImage
	case detected == "application/zip" && isWordPackage(data):
		return domain.FormatDOCX
	default:
		return domain.FormatUnsupported
	}
}

// isWordBinary reports whether a compound file carries the WordDocument stream.
// Legacy Excel and PowerPoint files share the OLE2 header but not this stream.
func isWordBinary(data []byte) bool {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return false
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name == "WordDocument" {
			return true
		}
	}
	return false
}

func isWordPackage(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return true
		}
	}
	return false
}
