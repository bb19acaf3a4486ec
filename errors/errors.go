package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
	ErrSessionClosed = fmt.Errorf("session is closed")
	ErrOutboxFull    = fmt.Errorf("session outbox is full")
	ErrNotActive     = fmt.Errorf("session is not active")
)
