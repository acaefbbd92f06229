package filestore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := zerolog.Nop()
	return NewStore(t.TempDir(), &log)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		mime    string
		wantErr error
	}{
		{"pdf within limit", 1024, "application/pdf", nil},
		{"jpeg within limit", 1024, "image/jpeg", nil},
		{"png within limit", 1024, "image/png", nil},
		{"too large", MaxDocumentBytes + 1, "application/pdf", ErrFileTooLarge},
		{"unsupported type", 1024, "application/zip", ErrUnsupportedFileType},
		{"empty mime", 1024, "", ErrUnsupportedFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.size, tt.mime); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndRemove(t *testing.T) {
	s := newTestStore(t)
	data := bytes.Repeat([]byte("x"), 128)

	doc, err := s.Save(42, "paper.pdf", "application/pdf", data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if doc.Name != "paper.pdf" || doc.Mime != "application/pdf" {
		t.Errorf("unexpected document record: %+v", doc)
	}
	if !strings.Contains(doc.Path, string(filepath.Separator)+"42"+string(filepath.Separator)) {
		t.Errorf("path %q not namespaced by event id", doc.Path)
	}
	if filepath.Ext(doc.Path) != ".pdf" {
		t.Errorf("path %q missing extension", doc.Path)
	}

	got, err := s.Read(doc.Path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("stored bytes differ from input")
	}

	s.Remove(doc.Path)
	if _, err := os.Stat(doc.Path); !os.IsNotExist(err) {
		t.Error("Remove left the file behind")
	}
}

func TestSaveRandomizesFilenames(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Save(1, "same.png", "image/png", []byte("a"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := s.Save(1, "same.png", "image/png", []byte("b"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.Path == b.Path {
		t.Error("two uploads with the same original name must not collide")
	}
}

func TestSaveRejectsOversize(t *testing.T) {
	s := newTestStore(t)
	data := make([]byte, MaxDocumentBytes+1)
	if _, err := s.Save(1, "big.pdf", "application/pdf", data); err != ErrFileTooLarge {
		t.Errorf("Save oversize = %v, want ErrFileTooLarge", err)
	}
}
