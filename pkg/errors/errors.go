package errors

import "errors"

// Kind classifies a business error and decides its HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindState
	KindConflict
	KindCapacity
	KindAuthorization
	KindNotFound
	KindUpstream
	KindUnauthenticated
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindState:
		return "state_error"
	case KindConflict:
		return "conflict_error"
	case KindCapacity:
		return "capacity_error"
	case KindAuthorization:
		return "authorization_error"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_error"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal_error"
	}
}

// FieldError carries field-level validation detail.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a business error carrying a kind, a stable numeric code and an
// optional list of field errors. Two errors are equal under errors.Is when
// their codes match, so package-level sentinels survive WithMessage/Wrap.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Fields  []FieldError
	cause   error
}

// New creates a business error.
func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code int, message string) *Error { return New(KindValidation, code, message) }
func State(code int, message string) *Error      { return New(KindState, code, message) }
func Conflict(code int, message string) *Error   { return New(KindConflict, code, message) }
func Capacity(code int, message string) *Error   { return New(KindCapacity, code, message) }
func Forbidden(code int, message string) *Error  { return New(KindAuthorization, code, message) }
func NotFound(code int, message string) *Error   { return New(KindNotFound, code, message) }
func Upstream(code int, message string) *Error   { return New(KindUpstream, code, message) }

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) clone() *Error {
	cp := *e
	if len(e.Fields) > 0 {
		cp.Fields = append([]FieldError(nil), e.Fields...)
	}
	return &cp
}

// WithFields returns a copy carrying additional field errors.
func (e *Error) WithFields(fields ...FieldError) *Error {
	cp := e.clone()
	cp.Fields = append(cp.Fields, fields...)
	return cp
}

// WithMessage returns a copy with a more specific message.
func (e *Error) WithMessage(message string) *Error {
	cp := e.clone()
	cp.Message = message
	return cp
}

// Wrap returns a copy that records cause for logging.
func (e *Error) Wrap(cause error) *Error {
	cp := e.clone()
	cp.cause = cause
	return cp
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Field is shorthand for a FieldError literal.
func Field(field, message string) FieldError {
	return FieldError{Field: field, Message: message}
}

// ErrOptimisticLock is returned when a versioned update matched no row.
var ErrOptimisticLock = Conflict(10009, "record was modified by another request, reload and retry")
