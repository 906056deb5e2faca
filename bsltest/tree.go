// Copyright © 2024 The ELPS authors

// Package bsltest contains helpers for testing packages that read module
// dumps.
package bsltest

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree writes files, keyed by slash separated paths relative to a new
// temporary directory, and returns the directory.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteFiles(t, dir, files)
	return dir
}

// WriteFiles writes files into dir, creating parent directories.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, text := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}
