package quizforge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore moves a completed quiz's source document to long-term
// storage (SPEC_FULL §6). A cloud-backed implementation is out of scope
// per §1; LocalBlobStore is the only variant this module ships.
type BlobStore interface {
	UploadFile(localPath, name, mime string) (url string, id string, err error)
	DeleteFile(id string) (bool, error)
}

// LocalBlobStore copies files into a fixed directory instead of an
// external object store, mirroring the teacher's upload-to-tempdir
// handling in cmd/server/handlers.go.
type LocalBlobStore struct {
	dir string
}

func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

// UploadFile copies localPath into the store's directory under a
// collision-resistant name and returns a file:// URL plus that name as
// the blob ID. Two uploads sharing an original basename get distinct
// blobs: the first claims the bare name, later ones get a numbered
// suffix instead of silently overwriting an existing blob.
func (b *LocalBlobStore) UploadFile(localPath, name, mime string) (string, string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", "", fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	safeName := filepath.Base(name)
	ext := filepath.Ext(safeName)
	stem := strings.TrimSuffix(safeName, ext)

	var dst *os.File
	var candidate string
	for attempt := 0; ; attempt++ {
		candidate = safeName
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		}
		dst, err = os.OpenFile(filepath.Join(b.dir, candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) || attempt >= 1000 {
			return "", "", fmt.Errorf("creating blob destination: %w", err)
		}
	}

	dest := filepath.Join(b.dir, candidate)
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dest)
		return "", "", fmt.Errorf("copying to blob storage: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", "", fmt.Errorf("closing blob destination: %w", err)
	}

	return "file://" + dest, candidate, nil
}

// DeleteFile removes a previously uploaded blob by its ID (the filename
// returned from UploadFile).
func (b *LocalBlobStore) DeleteFile(id string) (bool, error) {
	path := filepath.Join(b.dir, filepath.Base(id))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
