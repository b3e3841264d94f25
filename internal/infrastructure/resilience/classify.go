package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

var (
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	ignored   = ErrorClassification{}
)

// Transient builds a classifier for a downstream client. Cancellation is ignored,
// an open breaker and errors matched by isTransient are retryable, anything else
// counts as a permanent failure. Errors matched by isCallerFault are not recorded
// against the breaker.
func Transient(isTransient, isCallerFault func(error) bool) ErrorClassifier {
	return func(err error) ErrorClassification {
		switch {
		case err == nil:
			return ignored
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ignored
		case IsCircuitOpen(err):
			return transient
		case isTransient != nil && isTransient(err):
			return transient
		case isCallerFault != nil && isCallerFault(err):
			return ignored
		default:
			return permanent
		}
	}
}

// MarkTemporary tags err as domain.ErrTemporary when classifier deems it retryable.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || (classifier != nil && classifier(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
