package domain

import "errors"

// ErrNoActiveSession is returned when an operation runs without a resolvable session.
var ErrNoActiveSession = errors.New("no active session")

// SessionContext identifies the session and user every read and write is scoped to.
type SessionContext struct {
	SessionUUID string
	UserUUID    string
}

// Valid reports whether both identifiers are set.
func (s SessionContext) Valid() bool {
	return s.SessionUUID != "" && s.UserUUID != ""
}
