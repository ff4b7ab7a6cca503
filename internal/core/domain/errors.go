package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrRetrievalUnavailable marks a failed dense pass (embedding service or
	// vector store down). It is surfaced to the caller, never hidden behind an
	// empty result set.
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")

	// ErrEmptyContext marks the valid terminal state where no candidate
	// survived filtering; callers answer "no relevant documents" instead of
	// invoking the model ungrounded.
	ErrEmptyContext = errors.New("no relevant context")
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
