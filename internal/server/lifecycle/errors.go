package lifecycle

import "errors"

// Error kinds. Check with errors.Is(err, lifecycle.ErrConflict).
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrConflict       = errors.New("conflict")
	ErrCrypto         = errors.New("crypto error")
	ErrNotFound       = errors.New("not found")
	ErrBadRequest     = errors.New("bad request")
	ErrProvisioning   = errors.New("provisioning error")
	ErrInternal       = errors.New("internal error")
)

// InvalidCredentialsMessage is the only message an authentication failure carries
const InvalidCredentialsMessage = "invalid credentials"

// Error is returned by every Service operation.
// Message is safe to show to the caller, Err is for logs only.
type Error struct {
	Kind    error
	Err     error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// KindOf returns the kind of a lifecycle error, ErrInternal for anything else
func KindOf(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ErrInternal
}

func newError(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func authError() *Error {
	return &Error{Kind: ErrAuthentication, Message: InvalidCredentialsMessage}
}

func internalError(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal server error", Err: err}
}
