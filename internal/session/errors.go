package session

import "errors"

var (
	ErrInvalidState = errors.New("operation not allowed in current session state")
	ErrEnded        = errors.New("session ended")
	ErrRoleConflict = errors.New("session already holds the other transfer side")
)
