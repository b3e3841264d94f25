package domain

// Format is the extraction route chosen for an uploaded file.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatImage       Format = "image"
	FormatDOCX        Format = "docx"
	FormatDOC         Format = "doc"
	FormatUnsupported Format = "unsupported"
)

// Supported reports whether the file may enter the upload queue.
func (f Format) Supported() bool {
	switch f {
	case FormatPDF, FormatImage, FormatDOCX, FormatDOC:
		return true
	default:
		return false
	}
}

// Extractable reports whether an extractor exists for the format today.
func (f Format) Extractable() bool {
	_, ok := f.EngineKind()
	return ok
}

// EngineKind maps an extractable format to the engine it needs.
func (f Format) EngineKind() (EngineKind, bool) {
	switch f {
	case FormatPDF:
		return EnginePDF, true
	case FormatImage:
		return EngineOCR, true
	case FormatDOCX:
		return EngineDOCX, true
	default:
		return "", false
	}
}

// EngineKind names a lazily loaded decoding engine.
type EngineKind string

const (
	EnginePDF  EngineKind = "pdf"
	EngineOCR  EngineKind = "ocr"
	EngineDOCX EngineKind = "docx"
)

// DisplayName is used in progress messages.
func (k EngineKind) DisplayName() string {
	switch k {
	case EnginePDF:
		return "PDF"
	case EngineOCR:
		return "OCR"
	case EngineDOCX:
		return "Word"
	default:
		return string(k)
	}
}
