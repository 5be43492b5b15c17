package svg

import "errors"

var (
	ErrMissingSource = errors.New("must specify src or File")
	ErrResolve       = errors.New("could not convert arguments to image object")
	ErrNotSVGFile    = errors.New("must provide an svg file")
	ErrEmptySource   = errors.New("svg file must not be empty")
	ErrTooLarge      = errors.New("svg file exceeds the size limit")
)

// InputError reports a problem with what the caller asked to render. Content
// problems never produce an InputError; they render as an empty string.
type InputError struct {
	Kind  error
	Cause error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return e.Kind.Error() + ": " + e.Cause.Error()
	}
	return e.Kind.Error()
}

func (e *InputError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func inputError(kind error, cause error) error {
	return &InputError{Kind: kind, Cause: cause}
}
