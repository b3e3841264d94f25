package domain

// Stage is a step of the extraction progress protocol.
type Stage string

const (
	StageLoading Stage = "loading"
	StageReading Stage = "reading"
	StagePDF     Stage = "pdf"
	StageOCR     Stage = "ocr"
	StageDOCX    Stage = "docx"
	StageDone    Stage = "done"
	StageError   Stage = "error"
)

// Rank orders stages within a single extraction attempt.
func (s Stage) Rank() int {
	switch s {
	case StageLoading:
		return 0
	case StageReading:
		return 1
	case StagePDF, StageOCR, StageDOCX:
		return 2
	case StageDone, StageError:
		return 3
	default:
		return -1
	}
}

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Label is the default stage text shown next to an item.
func (s Stage) Label() string {
	switch s {
	case StageLoading:
		return "Loading analysis engines..."
	case StageReading:
		return "Reading file"
	case StagePDF:
		return "Extracting PDF"
	case StageOCR:
		return "OCR on image"
	case StageDOCX:
		return "Extracting Word"
	case StageDone:
		return "Text extracted"
	case StageError:
		return "Failed"
	default:
		return string(s)
	}
}

type ExtractProgress struct {
	Stage      Stage   `json:"stage"`
	Progress01 float64 `json:"progress01"`
	Message    string  `json:"message,omitempty"`
}

// ProgressFunc receives extraction progress events.
type ProgressFunc func(ExtractProgress)

// Emit calls fn when it is set.
func (fn ProgressFunc) Emit(stage Stage, progress01 float64, message string) {
	if fn == nil {
		return
	}
	fn(ExtractProgress{Stage: stage, Progress01: progress01, Message: message})
}
