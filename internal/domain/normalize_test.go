package domain

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims edges", "  hello world  ", "hello world"},
		{"collapses inner runs", "hello \t\n  world", "hello world"},
		{"whitespace only", " \t\n ", ""},
		{"empty", "", ""},
		{"already normalized", "hello world", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFingerprint_StableForEquivalentContent(t *testing.T) {
	a := Fingerprint(Normalize("hello   world"))
	b := Fingerprint(Normalize("  hello world\n"))
	if a != b {
		t.Errorf("equivalent content produced different fingerprints: %s vs %s", a, b)
	}

	c := Fingerprint(Normalize("hello there"))
	if a == c {
		t.Error("different content produced the same fingerprint")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrEmbeddingBackend) {
		t.Error("ErrEmbeddingBackend should be retryable")
	}
	if !Retryable(ErrStoreUnavailable) {
		t.Error("ErrStoreUnavailable should be retryable")
	}
	for _, err := range []error{
		ErrInvalidInput, ErrCollectionNotFound, ErrCollectionConflict, ErrVectorDimMismatch,
	} {
		if Retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}
