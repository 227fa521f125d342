package common

import (
	"errors"
	"fmt"
)

// Kind tags the cause of a scoring failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInputShape: len(text parts) != len(candidate lists)+1.
	KindInputShape
	// KindForbiddenToken: caller text or candidate holds a reserved token.
	KindForbiddenToken
	// KindMaskCount: a constructed sequence does not hold exactly one mask.
	KindMaskCount
	// KindCandidateTooLong: candidate exceeds the candidate token cap.
	KindCandidateTooLong
	// KindInvalidCandidates: fewer than two, duplicate or empty candidates.
	KindInvalidCandidates
	// KindMalformedInput: the gap marker collided with literal text.
	KindMalformedInput
	// KindModel: the inference backend failed.
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindInputShape:
		return "input_shape"
	case KindForbiddenToken:
		return "forbidden_token"
	case KindMaskCount:
		return "mask_count"
	case KindCandidateTooLong:
		return "candidate_too_long"
	case KindInvalidCandidates:
		return "invalid_candidates"
	case KindMalformedInput:
		return "malformed_input"
	case KindModel:
		return "model"
	default:
		return "unknown"
	}
}

// NoGap marks an Error that is not tied to a single gap.
const NoGap = -1

// Error is the error type returned by every scoring component.
type Error struct {
	Kind   Kind
	Gap    int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Reason
	if e.Gap != NoGap {
		msg = fmt.Sprintf("%s (gap %d)", msg, e.Gap)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrMaskCount) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Reason == "" && t.Err == nil
}

// Sentinels for errors.Is
var (
	ErrInputShape        = &Error{Kind: KindInputShape, Gap: NoGap}
	ErrForbiddenToken    = &Error{Kind: KindForbiddenToken, Gap: NoGap}
	ErrMaskCount         = &Error{Kind: KindMaskCount, Gap: NoGap}
	ErrCandidateTooLong  = &Error{Kind: KindCandidateTooLong, Gap: NoGap}
	ErrInvalidCandidates = &Error{Kind: KindInvalidCandidates, Gap: NoGap}
	ErrMalformedInput    = &Error{Kind: KindMalformedInput, Gap: NoGap}
	ErrModel             = &Error{Kind: KindModel, Gap: NoGap}
)

// Errorf builds an *Error for a gap (or NoGap).
func Errorf(kind Kind, gap int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Gap: gap, Reason: fmt.Sprintf(format, args...)}
}

// WrapModelError tags a backend failure.
func WrapModelError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindModel, Gap: NoGap, Reason: fmt.Sprintf(message, args...), Err: err}
}

// KindOf reports the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInputError reports whether err should be answered as a bad request.
// MaskCount counts as input: it only arises from malformed gap text.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindInputShape, KindForbiddenToken, KindMaskCount, KindCandidateTooLong,
		KindInvalidCandidates, KindMalformedInput:
		return true
	default:
		return false
	}
}
