package service

import (
	"errors"
	"fmt"
)

// Service errors.
var (
	ErrUnknownMethod = errors.New("unknown service method")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrPoweredOff    = errors.New("device is powered off")
)

// UnknownMethodError is returned by Invoke for a method the endpoint does not
// advertise. No request is sent.
type UnknownMethodError struct {
	Endpoint string
	Method   string
	Version  string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("Unknown Service Method: %s.%s (version %s)", e.Endpoint, e.Method, e.Version)
}

// Is matches ErrUnknownMethod.
func (e *UnknownMethodError) Is(target error) bool {
	return target == ErrUnknownMethod
}
