package model

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialRequired = errors.New("credential required")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrPathEscapesRoot    = errors.New("path escapes download root")
	ErrReportNotFound     = errors.New("report not found")
	ErrRPCTimeout         = errors.New("rpc timeout")
)

// BackendError - неуспешный ответ бэкенда (статус + тело ответа).
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Body)
}
