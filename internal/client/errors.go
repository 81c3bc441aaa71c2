package client

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote call failed.
type Kind int

const (
	KindTransport Kind = iota + 1 // request never produced a response
	KindDecode                    // response body was not a user collection
	KindStatus                    // endpoint answered with a non-2xx status
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Op         string // "fetch_all" or "create"
	Kind       Kind
	StatusCode int // set for KindStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 when err is not a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
