package kernel

import (
	"errors"
	"fmt"
)

// Status is the closed set of status codes the kernel returns, with stable
// wire values suitable for diagnostic dumps (spec §6/§7).
type Status int

const (
	StatusOk                   Status = 0x00
	StatusErrorResource        Status = 0x80
	StatusErrorParameter       Status = 0x81
	StatusErrorResourceBusy    Status = 0x82
	StatusErrorTimeoutResource Status = 0x83
	StatusErrorValue           Status = 0x84
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusErrorResource:
		return "ErrorResource"
	case StatusErrorParameter:
		return "ErrorParameter"
	case StatusErrorResourceBusy:
		return "ErrorResourceBusy"
	case StatusErrorTimeoutResource:
		return "ErrorTimeoutResource"
	case StatusErrorValue:
		return "ErrorValue"
	default:
		return "Unknown"
	}
}

// KernelError wraps a Status with the operation that produced it and an
// optional human-readable reason. It implements Is so errors.Is(err,
// ErrParameter) style matching compares only the Status of the two
// *KernelError values, mirroring the teacher's AggregateError.Is pattern in
// eventloop/errors.go.
type KernelError struct {
	Op     string
	Status Status
	Reason string
}

func (e *KernelError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("kernel: %s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("kernel: %s: %s: %s", e.Op, e.Status, e.Reason)
}

// Is reports whether target is a *KernelError with the same Status,
// allowing callers to write errors.Is(err, kernel.ErrParameter).
func (e *KernelError) Is(target error) bool {
	var other *KernelError
	if errors.As(target, &other) {
		return other.Status == e.Status
	}
	return false
}

// Sentinel errors usable with errors.Is; only Status is compared.
var (
	ErrResource        = &KernelError{Status: StatusErrorResource}
	ErrParameter       = &KernelError{Status: StatusErrorParameter}
	ErrResourceBusy    = &KernelError{Status: StatusErrorResourceBusy}
	ErrTimeoutResource = &KernelError{Status: StatusErrorTimeoutResource}
	ErrValue           = &KernelError{Status: StatusErrorValue}
)

func errResource(op, reason string) error {
	return &KernelError{Op: op, Status: StatusErrorResource, Reason: reason}
}

func errParameter(op, reason string) error {
	return &KernelError{Op: op, Status: StatusErrorParameter, Reason: reason}
}

func errResourceBusy(op, reason string) error {
	return &KernelError{Op: op, Status: StatusErrorResourceBusy, Reason: reason}
}

func errTimeoutResource(op, reason string) error {
	return &KernelError{Op: op, Status: StatusErrorTimeoutResource, Reason: reason}
}

func errValue(op, reason string) error {
	return &KernelError{Op: op, Status: StatusErrorValue, Reason: reason}
}

// StatusOf extracts the Status from err, or StatusOk if err is nil, or
// StatusErrorValue if err is not a *KernelError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOk
	}
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Status
	}
	return StatusErrorValue
}
