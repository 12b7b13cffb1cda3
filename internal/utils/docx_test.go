package utils

import (
	"archive/zip"
	"bytes"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("Failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXToText(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Opening</w:t></w:r><w:r><w:t xml:space="preserve"> hours</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Mon-Fri</w:t></w:r><w:r><w:tab/><w:t>9-17</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`</w:body></w:document>`

	got, err := DOCXToText(buildDOCX(t, xml))
	if err != nil {
		t.Fatalf("DOCXToText failed: %v", err)
	}
	want := "Opening hours\n\nMon-Fri 9-17"
	if got != want {
		t.Errorf("DOCXToText() = %q, want %q", got, want)
	}
}

func TestDOCXToText_Invalid(t *testing.T) {
	if _, err := DOCXToText([]byte("not a zip")); err == nil {
		t.Error("Expected error for non-zip input")
	}
}
