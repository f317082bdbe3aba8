package quizforge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalBlobStoreUploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	blobs, err := NewLocalBlobStore(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}

	src := filepath.Join(dir, "quiz.txt")
	if err := os.WriteFile(src, []byte("hello"), 0644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}

	url, id, err := blobs.UploadFile(src, "quiz.txt", "text/plain")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if id != "quiz.txt" {
		t.Errorf("id = %q, want quiz.txt", id)
	}
	if url == "" {
		t.Error("url is empty")
	}

	ok, err := blobs.DeleteFile(id)
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if !ok {
		t.Error("DeleteFile returned false for an existing blob")
	}

	ok, err = blobs.DeleteFile(id)
	if err != nil {
		t.Fatalf("DeleteFile (second call): %v", err)
	}
	if ok {
		t.Error("DeleteFile returned true for an already-deleted blob")
	}
}

func TestLocalBlobStoreUploadHandlesNameCollisions(t *testing.T) {
	dir := t.TempDir()
	blobs, err := NewLocalBlobStore(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}

	srcA := filepath.Join(dir, "a.txt")
	srcB := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(srcA, []byte("first"), 0644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	if err := os.WriteFile(srcB, []byte("second"), 0644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}

	_, idA, err := blobs.UploadFile(srcA, "quiz.txt", "text/plain")
	if err != nil {
		t.Fatalf("first UploadFile: %v", err)
	}
	_, idB, err := blobs.UploadFile(srcB, "quiz.txt", "text/plain")
	if err != nil {
		t.Fatalf("second UploadFile: %v", err)
	}

	if idA == idB {
		t.Fatalf("expected distinct blob ids for colliding names, got %q twice", idA)
	}

	contentA, err := os.ReadFile(filepath.Join(dir, "archive", idA))
	if err != nil {
		t.Fatalf("reading first blob: %v", err)
	}
	contentB, err := os.ReadFile(filepath.Join(dir, "archive", idB))
	if err != nil {
		t.Fatalf("reading second blob: %v", err)
	}
	if string(contentA) != "first" || string(contentB) != "second" {
		t.Errorf("blob contents = %q, %q; want %q, %q", contentA, contentB, "first", "second")
	}
}

func TestLocalBlobStoreUploadSanitizesName(t *testing.T) {
	dir := t.TempDir()
	blobs, err := NewLocalBlobStore(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}

	src := filepath.Join(dir, "quiz.txt")
	if err := os.WriteFile(src, []byte("hello"), 0644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}

	_, id, err := blobs.UploadFile(src, "../../etc/passwd", "text/plain")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if id != "passwd" {
		t.Errorf("id = %q, want sanitized basename passwd", id)
	}
}
