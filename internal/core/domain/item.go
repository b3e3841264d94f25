package domain

import (
	"fmt"
	"math"
	"time"
)

type ItemStatus string

const (
	StatusQueued     ItemStatus = "queued"
	StatusExtracting ItemStatus = "extracting"
	StatusDone       ItemStatus = "done"
	StatusError      ItemStatus = "error"
)

const QueuedLabel = "Waiting in queue"

// SourceFile is an uploaded file held in memory for the session.
type SourceFile struct {
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified,omitempty"`
	Data         []byte    `json:"-"`
}

type UploadItem struct {
	ID             string     `json:"id"`
	Seq            uint64     `json:"seq"`
	File           SourceFile `json:"file"`
	Format         Format     `json:"format"`
	Status         ItemStatus `json:"status"`
	Progress       int        `json:"progress"`
	StageLabel     string     `json:"stage_label"`
	Error          string     `json:"error,omitempty"`
	ExtractedChars int        `json:"extracted_chars,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewUploadItem(id string, seq uint64, file SourceFile, format Format, now time.Time) UploadItem {
	return UploadItem{
		ID:         id,
		Seq:        seq,
		File:       file,
		Format:     format,
		Status:     StatusQueued,
		StageLabel: QueuedLabel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (it *UploadItem) StartExtraction(now time.Time) error {
	if it.Status != StatusQueued {
		return it.transitionError(StatusExtracting)
	}
	it.Status = StatusExtracting
	it.Progress = 0
	it.StageLabel = "Starting text extraction"
	it.UpdatedAt = now
	return nil
}

// ApplyProgress folds a progress event into the item. Progress never decreases.
func (it *UploadItem) ApplyProgress(p ExtractProgress, now time.Time) error {
	if it.Status != StatusExtracting {
		return it.transitionError(it.Status)
	}
	percent := int(math.Round(clamp01(p.Progress01) * 100))
	if percent > it.Progress {
		it.Progress = percent
	}
	if p.Message != "" {
		it.StageLabel = p.Message
	} else {
		it.StageLabel = p.Stage.Label()
	}
	it.UpdatedAt = now
	return nil
}

func (it *UploadItem) Complete(chars int, now time.Time) error {
	if it.Status != StatusExtracting {
		return it.transitionError(StatusDone)
	}
	it.Status = StatusDone
	it.Progress = 100
	it.ExtractedChars = chars
	it.StageLabel = fmt.Sprintf("Text extracted (%d chars)", chars)
	it.Error = ""
	it.UpdatedAt = now
	return nil
}

// Fail keeps the progress reached so far.
func (it *UploadItem) Fail(message string, now time.Time) error {
	if it.Status != StatusExtracting {
		return it.transitionError(StatusError)
	}
	it.Status = StatusError
	it.Error = message
	it.StageLabel = StageError.Label()
	it.UpdatedAt = now
	return nil
}

func (it *UploadItem) Terminal() bool {
	return it.Status == StatusDone || it.Status == StatusError
}

func (it *UploadItem) transitionError(to ItemStatus) error {
	return WrapError(ErrInvalidTransition, "upload item "+it.ID, fmt.Errorf("%s -> %s", it.Status, to))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Rejection describes a file the detector refused.
type Rejection struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Reason   string `json:"reason"`
}

type AddResult struct {
	Accepted []UploadItem `json:"accepted"`
	Rejected []Rejection  `json:"rejected"`
}
