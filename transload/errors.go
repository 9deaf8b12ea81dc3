package transload

import (
	"errors"
	"fmt"
)

// ErrorKind ...
type ErrorKind int

// Failure kinds reported by a transfer.
const (
	BadSourceStatus ErrorKind = iota + 1
	NetworkFailure
	UploadFailure
	MissingLocation
)

// Sentinels to match a *TransferError by kind with errors.Is.
var (
	ErrBadSourceStatus = errors.New("request item did not respond with HTTP 200")
	ErrNetworkFailure  = errors.New("request item could not be fetched")
	ErrUploadFailure   = errors.New("upload to object storage failed")
	ErrMissingLocation = errors.New("uploaded object location not found")
)

func (k ErrorKind) String() string {
	switch k {
	case BadSourceStatus:
		return "BadSourceStatus"
	case NetworkFailure:
		return "NetworkFailure"
	case UploadFailure:
		return "UploadFailure"
	case MissingLocation:
		return "MissingLocation"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case BadSourceStatus:
		return ErrBadSourceStatus
	case NetworkFailure:
		return ErrNetworkFailure
	case UploadFailure:
		return ErrUploadFailure
	case MissingLocation:
		return ErrMissingLocation
	default:
		return nil
	}
}

// TransferError is the terminal failure of a transfer.
// StatusCode is only set for BadSourceStatus.
type TransferError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer failed (%s)", e.Kind)
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, e.Err)
}

// Unwrap ...
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind.
func (e *TransferError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// KindOf returns the kind of the first *TransferError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return transferErr.Kind
	}
	return 0
}

func newTransferError(kind ErrorKind, err error) *TransferError {
	return &TransferError{Kind: kind, Err: err}
}
