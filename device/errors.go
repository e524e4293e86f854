package device

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfMemory = errors.New("device out of memory")
	ErrTransfer    = errors.New("device transfer failed")
	ErrCompile     = errors.New("kernel compilation failed")
	ErrInvalid     = errors.New("invalid device argument")
	ErrNotFound    = errors.New("no such platform or device")
)

// Error records the device operation that failed and the code the backend
// reported for it.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s returned %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s returned %d: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type CompileError struct {
	Entry string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s failed:\n%s", e.Entry, e.Log)
}

func (e *CompileError) Unwrap() error { return ErrCompile }

func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}
