package version

import (
	"strings"
	"testing"
)

func TestStringHasDefault(t *testing.T) {
	if String() == "" {
		t.Error("String() should have a default value")
	}
	if !strings.Contains(Colored(), Number) {
		t.Error("Colored() should contain the version number")
	}
}

func TestLdflagsOverride(t *testing.T) {
	origNumber, origCommit, origDate := Number, Commit, Date
	defer func() {
		Number, Commit, Date = origNumber, origCommit, origDate
	}()

	Number = "1.2.3"
	Commit = "abc123def456"
	Date = "2026-01-15T10:30:00Z"

	if String() != "1.2.3" {
		t.Errorf("String() = %q, want %q", String(), "1.2.3")
	}
	if Commit != "abc123def456" || Date != "2026-01-15T10:30:00Z" {
		t.Errorf("Commit/Date not overridable: %q %q", Commit, Date)
	}
}
