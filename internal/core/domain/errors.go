package domain

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound      = errors.New("upload item not found")
	ErrFileNotFound      = errors.New("file record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid item state transition")
	ErrTemporary         = errors.New("temporary failure")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNotYetExtractable = errors.New("format recognised but not yet extractable")
	ErrEngineLoad        = errors.New("engine load failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrHandoff           = errors.New("hand-off failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage renders a failure as the short text stored on an upload item.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrNotYetExtractable):
		return "Word extraction is not available for legacy .doc files yet. Save the document as .docx or PDF and upload it again."
	case IsKind(err, ErrUnsupportedFormat):
		return "Unsupported file type. Upload PDF, image or Word files."
	case IsKind(err, ErrEngineLoad):
		return "Could not load the analysis engine: " + causeOf(err)
	case IsKind(err, ErrExtraction):
		return "Text extraction failed: " + causeOf(err)
	default:
		return "Text extraction failed: " + err.Error()
	}
}

// causeOf returns the message of the wrapped cause of a WrapError value.
func causeOf(err error) string {
	multi, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return err.Error()
	}
	errs := multi.Unwrap()
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[len(errs)-1].Error()
}
