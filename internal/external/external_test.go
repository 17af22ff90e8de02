package external

import (
	"strings"
	"testing"

	"github.com/northbound-policy/ingest/internal/model"
)

func TestCredentialCipherRoundTrip(t *testing.T) {
	c, err := newCredentialCipher("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	if err != nil {
		t.Fatalf("newCredentialCipher: %v", err)
	}
	enc, err := c.encrypt("s3cret-password")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(string(enc), "s3cret-password") {
		t.Fatalf("ciphertext leaks plaintext")
	}
	got, err := c.decrypt(enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "s3cret-password" {
		t.Fatalf("decrypt = %q, want s3cret-password", got)
	}
}

func TestCredentialCipherRejectsWrongKeyLength(t *testing.T) {
	if _, err := newCredentialCipher("deadbeef"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestCredentialCipherRejectsTruncatedCiphertext(t *testing.T) {
	c, err := newCredentialCipher("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	if err != nil {
		t.Fatalf("newCredentialCipher: %v", err)
	}
	if _, err := c.decrypt([]byte("short")); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
}

func TestBuildSelectIncludesMetadataColumns(t *testing.T) {
	src := model.ExternalDataSource{
		Table: "circulars", FileColumn: "file_blob", FilenameColumn: "filename",
		MetadataColumns: []string{"title", "department"},
	}
	q, err := buildSelect(src, 10)
	if err != nil {
		t.Fatalf("buildSelect: %v", err)
	}
	for _, want := range []string{"file_blob", "filename", "title", "department", "circulars", "LIMIT 10"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query %q missing %q", q, want)
		}
	}
}

func TestBuildSelectRejectsSuspiciousIdentifiers(t *testing.T) {
	src := model.ExternalDataSource{Table: "circulars; DROP TABLE x", FileColumn: "f", FilenameColumn: "n"}
	if _, err := buildSelect(src, 0); err == nil {
		t.Fatal("expected rejection of suspicious table name")
	}
}

func TestMergeMetadataColumnOnlyKnownFields(t *testing.T) {
	meta := model.DocumentMetadata{}
	mergeMetadataColumn(&meta, "title", "Fee Circular 2024")
	mergeMetadataColumn(&meta, "department", []byte("Finance"))
	mergeMetadataColumn(&meta, "unknown_column", "ignored")

	if meta.Title != "Fee Circular 2024" {
		t.Fatalf("Title = %q", meta.Title)
	}
	if meta.Department != "Finance" {
		t.Fatalf("Department = %q", meta.Department)
	}
}

func TestFileExt(t *testing.T) {
	cases := map[string]string{
		"circular.PDF":  "pdf",
		"notice.docx":   "docx",
		"no-extension":  "bin",
		"trailing.dot.": "bin",
	}
	for in, want := range cases {
		if got := fileExt(in); got != want {
			t.Errorf("fileExt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAsStringAndAsBytes(t *testing.T) {
	if asString(nil) != "" {
		t.Fatal("asString(nil) should be empty")
	}
	if asString([]byte("hi")) != "hi" {
		t.Fatal("asString([]byte) mismatch")
	}
	if asBytes("hi") == nil || string(asBytes("hi")) != "hi" {
		t.Fatal("asBytes(string) mismatch")
	}
	if asBytes(42) != nil {
		t.Fatal("asBytes(int) should be nil")
	}
}

func TestIndexRow(t *testing.T) {
	row := indexRow([]string{"a", "b"}, []interface{}{"x", 1})
	if row["a"] != "x" || row["b"] != 1 {
		t.Fatalf("unexpected row: %v", row)
	}
}
