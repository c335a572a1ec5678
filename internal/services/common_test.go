package services

import (
	"errors"
	"strings"
	"testing"
)

func TestSectionBlobPath(t *testing.T) {
	got := SectionBlobPath("user-1", "file-2", 7)
	want := "users/user-1/derived/sections/file-2_s7.txt"
	if got != want {
		t.Fatalf("SectionBlobPath = %q, want %q", got, want)
	}
}

func TestStoredErrorTruncates(t *testing.T) {
	if got := storedError(nil); got != "" {
		t.Fatalf("expected empty string for nil error, got %q", got)
	}
	long := errors.New(strings.Repeat("x", 2000))
	if got := storedError(long); len(got) != maxStoredErrorLen {
		t.Fatalf("expected %d chars, got %d", maxStoredErrorLen, len(got))
	}
}
