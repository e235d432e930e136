// Package testutil provides helper functions for testing.
package testutil

import (
	"archive/zip"
	"bytes"
	"testing"
)

// ZipEntry is one file of an archive built by BuildZip.
type ZipEntry struct {
	Name    string
	Content string
}

// BuildZip returns the bytes of a zip archive holding entries in the given
// order. A name ending in "/" is written as a directory entry.
func BuildZip(t *testing.T, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", e.Name, err)
		}
		if e.Content == "" {
			continue
		}
		if _, err := w.Write([]byte(e.Content)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}

	return buf.Bytes()
}
