package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateUUID(t *testing.T) {
	a := GenerateUUID()
	b := GenerateUUID()

	if a == b {
		t.Error("Expected distinct UUIDs")
	}
	if !IsUUID(a) {
		t.Errorf("Generated value %q does not parse as UUID", a)
	}
	if IsUUID("not-a-uuid") {
		t.Error("Expected invalid UUID to be rejected")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.wav")
	dst := filepath.Join(dir, "nested", "b.wav")

	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := MakeDir(filepath.Dir(dst)); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("Expected destination to exist: %v", err)
	}
	if err := DeleteFile(dst); err != nil {
		t.Errorf("DeleteFile failed: %v", err)
	}
}

func TestIsWAV(t *testing.T) {
	tests := map[string]bool{
		"trace.wav":     true,
		"TRACE.WAV":     true,
		"trace.wav.bak": false,
		"trace":         false,
	}
	for in, want := range tests {
		if got := IsWAV(in); got != want {
			t.Errorf("IsWAV(%q) = %v, expected %v", in, got, want)
		}
	}
}
