// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch reports that a mirror served bytes whose digest
	// differs from the declared checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrTransfer reports a failed transfer from one mirror.
	ErrTransfer = errors.New("transfer failed")

	// ErrExhaustedMirrors reports that every mirror of a task failed.
	ErrExhaustedMirrors = errors.New("all mirrors failed")

	// ErrUnsupportedAlgorithm reports an unknown checksum algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")

	// ErrUnsafePath reports a destination path that escapes its root.
	ErrUnsafePath = errors.New("unsafe destination path")
)

// ChecksumMismatchError records a digest mismatch for one mirror.
type ChecksumMismatchError struct {
	URL  string
	Want string
	Got  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s from %s: want %s, got %s", ErrChecksumMismatch.Error(), e.URL, e.Want, e.Got)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// TransferError records a non-success status or connection failure for one mirror.
type TransferError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d from %s", ErrTransfer.Error(), e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransfer.Error(), e.URL, e.Err)
}

// Unwrap exposes both the ErrTransfer kind and the underlying cause.
func (e *TransferError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransfer}
	}
	return []error{ErrTransfer, e.Err}
}
