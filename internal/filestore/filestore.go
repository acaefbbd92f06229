package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const MaxDocumentBytes = 10 << 20 // 10 MiB

var (
	ErrFileTooLarge        = errors.New("document exceeds maximum size")
	ErrUnsupportedFileType = errors.New("document type is not supported")
)

var extByMime = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Document is a stored supporting paper.
type Document struct {
	Path       string
	Mime       string
	Name       string
	UploadedAt time.Time
}

// Store writes uploaded supporting documents under a base directory,
// namespaced by event id with a random filename so paths cannot collide or
// be enumerated.
type Store struct {
	baseDir string
	log     *zerolog.Logger
}

func NewStore(baseDir string, log *zerolog.Logger) *Store {
	return &Store{baseDir: baseDir, log: log}
}

// Validate checks size and MIME type before anything touches disk.
func Validate(size int64, mime string) error {
	if size > MaxDocumentBytes {
		return ErrFileTooLarge
	}
	if _, ok := extByMime[mime]; !ok {
		return ErrUnsupportedFileType
	}
	return nil
}

// Save persists the document bytes and returns its record. The caller must
// call Remove on failure paths after Save succeeded (compensating delete:
// the file write is not part of the database transaction).
func (s *Store) Save(eventID int64, originalName, mime string, data []byte) (*Document, error) {
	if err := Validate(int64(len(data)), mime); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.baseDir, strconv.FormatInt(eventID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+extByMime[mime])
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	return &Document{
		Path:       path,
		Mime:       mime,
		Name:       originalName,
		UploadedAt: time.Now(),
	}, nil
}

// Remove deletes a stored document. Best effort: a failure is logged, not
// returned, because it runs on error paths that already carry an error.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to remove orphaned document")
	}
}

// Read returns the stored document bytes.
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}
