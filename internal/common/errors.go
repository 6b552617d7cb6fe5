// Package common defines the sentinel errors shared by the backup workflows.
// Callers should use errors.Is to classify failures.
package common

import "errors"

var (
	// Gateway-level errors.
	ErrEncryption = errors.New("encryption failed")
	ErrDecryption = errors.New("decryption failed")
	ErrTransfer   = errors.New("transfer failed")
	ErrIO         = errors.New("local i/o failed")

	// Workflow-level errors.
	ErrVerification = errors.New("upload verification failed")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
)
