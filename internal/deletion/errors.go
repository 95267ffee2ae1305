package deletion

// Kind classifies workflow failures. Kinds are errors so callers can test
// with errors.Is(err, deletion.NotFound).
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ValidationError       Kind = "validation error"
	NotFound              Kind = "not found"
	InvalidOrExpiredToken Kind = "invalid or expired token"
	DependencyFailure     Kind = "dependency failure"
	Unknown               Kind = "unknown failure"
)

// Messages returned to clients. The web client matches on substrings of
// these, so they are part of the HTTP contract.
const (
	MsgEmailRequired   = "Email is required"
	MsgInvalidEmail    = "Invalid email format"
	MsgInvalidBody     = "Invalid request body"
	MsgAccountNotFound = "No account found with this email"
	MsgInvalidToken    = "Invalid or expired token"
	MsgDispatchFailed  = "Failed to send confirmation email"
	MsgStoreFailed     = "Failed to store deletion token"
	MsgDeleteFailed    = "Failed to delete account"
	MsgEmailSent       = "Verification email sent"
	MsgDeleted         = "Account deleted successfully"
)

// Error is a workflow failure carrying the message shown to the caller and
// the underlying cause, which is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

var errInvalidToken = newError(InvalidOrExpiredToken, MsgInvalidToken, nil)
