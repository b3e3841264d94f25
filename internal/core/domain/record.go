package domain

import "time"

// FileRecord is the remote copy of an extracted file.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Content    string    `json:"content,omitempty"`
	Summary    string    `json:"summary"`
	BinaryPath string    `json:"binary_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BinaryUpload struct {
	ID       string
	Filename string
	MimeType string
	Data     []byte
}

type BinaryRef struct {
	Path string `json:"path"`
}

// LibraryItem is the local library entry written after a successful extraction.
type LibraryItem struct {
	ID             string    `json:"id"`
	FileName       string    `json:"fileName"`
	UploadedAt     time.Time `json:"uploadedAt"`
	ExtractedChars int       `json:"extractedChars"`
	HasAnalysis    bool      `json:"hasAnalysis"`
}

// SessionFile is the cached per-session listing entry.
type SessionFile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Size           int64     `json:"size"`
	Type           string    `json:"type"`
	ExtractedChars int       `json:"extractedChars"`
	UploadedAt     time.Time `json:"uploadedAt"`
}
