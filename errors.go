package sharedpages

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ErrMalformedMapping is returned when a line of /proc/PID/maps does
// not match the kernel's format. Line holds the offending text verbatim.
type ErrMalformedMapping struct {
	Line   string
	Reason string
}

func (e ErrMalformedMapping) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed mapping line %q", e.Line)
	}
	return fmt.Sprintf("malformed mapping line %q: %s", e.Line, e.Reason)
}

// ErrorKind classifies why a process could not be scanned.
type ErrorKind string

const (
	// KindParse means the kernel produced output we could not parse.
	KindParse ErrorKind = "parse"
	// KindExited means the process went away before or during the scan.
	KindExited ErrorKind = "exited"
	// KindPermission means the caller lacks privilege to inspect the process.
	KindPermission ErrorKind = "permission"
	// KindIO covers every other read failure.
	KindIO ErrorKind = "io"
)

// ErrProcessExited marks a read failure that was traced back to the
// process exiting, or turning into a zombie, part way through a scan.
var ErrProcessExited = errors.New("process exited")

// Classify maps an error from reading a process's memory state to an
// ErrorKind. A bare EOF is an io failure: it is only attributed to an
// exit once the caller has wrapped it with ErrProcessExited.
func Classify(err error) ErrorKind {
	var malformed ErrMalformedMapping
	switch {
	case errors.As(err, &malformed):
		return KindParse
	case errors.Is(err, ErrProcessExited), errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ESRCH):
		return KindExited
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	default:
		return KindIO
	}
}

// ErrProcessScan is returned when one process could not be scanned.
// It scopes the failure to PID so the caller can decide whether the
// rest of the run continues.
type ErrProcessScan struct {
	PID  PID
	Kind ErrorKind
	Err  error
}

// NewProcessScanError wraps err for pid, classifying it.
func NewProcessScanError(pid PID, err error) ErrProcessScan {
	return ErrProcessScan{PID: pid, Kind: Classify(err), Err: err}
}

func (e ErrProcessScan) Error() string {
	return fmt.Sprintf("pid %d: %s: %v", e.PID, e.Kind, e.Err)
}

func (e ErrProcessScan) Unwrap() error {
	return e.Err
}
