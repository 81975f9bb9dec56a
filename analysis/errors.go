package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the request boundary can decide what to tell the user.
type Kind int

const (
	KindCollaboration Kind = iota
	KindEmptyResult
	KindMissingInput
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindEmptyResult:
		return "empty_result"
	case KindMissingInput:
		return "missing_input"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "collaboration"
	}
}

var (
	ErrEmptyResult   = errors.New("no usable frames")
	ErrMissingInput  = errors.New("no audio attached")
	ErrUnauthorized  = errors.New("audio not owned by requester")
	ErrCollaboration = errors.New("collaborator failed")
)

var sentinels = map[Kind]error{
	KindCollaboration: ErrCollaboration,
	KindEmptyResult:   ErrEmptyResult,
	KindMissingInput:  ErrMissingInput,
	KindUnauthorized:  ErrUnauthorized,
}

// Error is a typed failure with optional text meant for the end user.
type Error struct {
	Kind     Kind
	UserText string
	Err      error
}

// NewError builds an Error of the given kind with user-facing text.
func NewError(kind Kind, userText string) *Error {
	return &Error{Kind: kind, UserText: userText}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, err error, userText string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, UserText: userText, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.UserText != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.UserText)
		}
		return sentinels[e.Kind].Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf reports the kind of err; untyped errors count as collaboration failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCollaboration
}

// UserText returns the first user-facing text found in err's chain.
func UserText(err error) string {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return ""
		}
		if e.UserText != "" {
			return e.UserText
		}
		err = e.Err
	}
	return ""
}

// Collaboration wraps err as a collaboration failure unless it is already typed.
func Collaboration(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(KindCollaboration, fmt.Errorf("%s: %w", what, err), "")
}
