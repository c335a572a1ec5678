package services

import (
	"errors"
	"fmt"

	"github.com/mcalverley/studypipeline/internal/normalize"
)

// ErrClaimLost signals that another invocation already claimed the entity.
// It is a normal outcome of at-least-once event delivery, not an error:
// triggers log it and exit cleanly.
var ErrClaimLost = errors.New("entity already claimed by another processor")

// ErrInvalidArgument marks synchronous input-validation failures. They are
// reported to the caller with a specific message and never retried.
var ErrInvalidArgument = errors.New("invalid argument")

// Persisted error messages are short; full detail stays in logs only.
const maxStoredErrorLen = 500

// SectionBlobPath is the deterministic location of a section's text blob.
func SectionBlobPath(ownerID, fileID string, index int) string {
	return fmt.Sprintf("users/%s/derived/sections/%s_s%d.txt", ownerID, fileID, index)
}

// storedError truncates an error for persistence on a document.
func storedError(err error) string {
	if err == nil {
		return ""
	}
	return normalize.Truncate(err.Error(), maxStoredErrorLen)
}
