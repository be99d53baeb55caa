package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/claim-service/internal/domain"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// ReceiptStore abstracts receipt blob storage. The claim workflow only
// ever holds the returned reference, never file bytes.
type ReceiptStore interface {
	Save(file *multipart.FileHeader) (*domain.Attachment, string, error)
	Remove(ref string) error
	Resolve(fileName string) (string, error)
}

var safeFileName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type localReceiptStore struct {
	dir     string
	maxSize int64
}

// NewLocalReceiptStore creates the uploads directory if needed and
// returns a disk-backed store.
func NewLocalReceiptStore(dir string, maxSize int64) (ReceiptStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &localReceiptStore{dir: dir, maxSize: maxSize}, nil
}

// Save validates and persists an uploaded receipt, returning its
// metadata and the stored reference. Only images and PDFs are accepted.
func (s *localReceiptStore) Save(file *multipart.FileHeader) (*domain.Attachment, string, error) {
	if file == nil {
		return nil, "", apperrors.NewValidationError("receipt file is required", nil)
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, "", apperrors.NewValidationError("receipt file too large", map[string]any{
			"max_bytes": s.maxSize,
		})
	}
	mimeType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return nil, "", apperrors.NewValidationError("only image or PDF receipts allowed", map[string]any{
			"mime_type": mimeType,
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	storedName := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	dest := filepath.Join(s.dir, storedName)

	src, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return nil, "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		_ = os.Remove(dest)
		return nil, "", err
	}

	att := &domain.Attachment{
		OriginalName: file.Filename,
		FileName:     storedName,
		MimeType:     mimeType,
		SizeBytes:    file.Size,
	}
	return att, filepath.ToSlash(dest), nil
}

// Remove deletes a stored receipt by its reference. Missing files are
// not an error; removal is best effort.
func (s *localReceiptStore) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	name := filepath.Base(filepath.FromSlash(ref))
	if !safeFileName.MatchString(name) {
		return apperrors.NewValidationError("invalid file name", nil)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Resolve maps a stored file name to a servable path, rejecting names
// that could escape the uploads directory.
func (s *localReceiptStore) Resolve(fileName string) (string, error) {
	if !safeFileName.MatchString(fileName) {
		return "", apperrors.NewValidationError("invalid file name", nil)
	}
	path := filepath.Join(s.dir, fileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewNotFound("file", map[string]any{"file": fileName})
		}
		return "", err
	}
	return path, nil
}
