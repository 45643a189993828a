package session

import "fmt"

// Error codes for session lifecycle failures.
const (
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeNotConnected  = "NOT_CONNECTED"
	ErrCodeTabClosed     = "TAB_CLOSED"
	ErrCodeSessionClosed = "SESSION_CLOSED"
	ErrCodeInitialize    = "INITIALIZE"
	ErrCodePathTraversal = "PATH_TRAVERSAL"
	ErrCodeLogout        = "LOGOUT"
	ErrCodeDestroy       = "DESTROY"
	ErrCodeFolderDelete  = "FOLDER_DELETE"
)

// SessionError is a coded lifecycle error.
type SessionError struct {
	Code    string
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// newError builds a SessionError with an optional cause.
func newError(code, message string, cause error) *SessionError {
	return &SessionError{Code: code, Message: message, Err: cause}
}
