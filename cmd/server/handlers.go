package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brunobiangulo/quizforge"
	"github.com/google/uuid"
)

const maxUploadSize = 50 << 20 // 50 MiB, per SPEC_FULL §6

var allowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".txt": true,
	".rtf": true, ".odt": true, ".xlsx": true,
}

type handler struct {
	svc *quizforge.Service
}

func newHandler(svc *quizforge.Service) *handler {
	return &handler{svc: svc}
}

// POST /quizzes
// Accepts a multipart file upload, validates its extension and magic
// bytes, stores it locally, and hands it to the Service for
// hash/dedup/enqueue.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field")
		return
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(safeName))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("quizforge-upload-%s-%s", uuid.New().String(), safeName))
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		slog.Error("creating temp file", "error", err)
		return
	}

	written, err := io.Copy(dst, io.LimitReader(file, maxUploadSize+1))
	dst.Close()
	if err != nil {
		os.Remove(tmpPath)
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	if written > maxUploadSize {
		os.Remove(tmpPath)
		writeError(w, http.StatusBadRequest, "file exceeds 50MiB limit")
		return
	}

	if !hasValidMagicBytes(tmpPath, ext) {
		os.Remove(tmpPath)
		writeError(w, http.StatusBadRequest, "file content does not match its extension")
		return
	}

	outcome, err := h.svc.Upload(r.Context(), tmpPath, safeName)
	if err != nil {
		os.Remove(tmpPath)
		writePipelineError(w, err)
		return
	}

	if outcome.IsDuplicate() {
		os.Remove(tmpPath)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"duplicate": true,
			"quiz_id":   outcome.DuplicateOf,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, outcome.Quiz)
}

// GET /quizzes/{id}
func (h *handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz id")
		return
	}

	quiz, err := h.svc.GetQuiz(r.Context(), id)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// GET /quizzes
func (h *handler) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.svc.ListQuizzes(r.Context())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

// DELETE /quizzes/{id}
func (h *handler) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz id")
		return
	}

	if err := h.svc.DeleteQuiz(r.Context(), id); err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// hasValidMagicBytes checks the uploaded file's leading bytes match what
// its extension claims (SPEC_FULL §6 "must validate file magic bytes
// before enqueuing"). Text-like formats (txt, rtf) have no reliable
// binary signature and are accepted as-is.
func hasValidMagicBytes(path, ext string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 8)
	n, _ := f.Read(buf)
	buf = buf[:n]

	switch ext {
	case ".pdf":
		return strings.HasPrefix(string(buf), "%PDF")
	case ".docx", ".xlsx", ".odt":
		return len(buf) >= 4 && buf[0] == 'P' && buf[1] == 'K' && buf[2] == 0x03 && buf[3] == 0x04
	case ".doc":
		return len(buf) >= 8 && buf[0] == 0xD0 && buf[1] == 0xCF && buf[2] == 0x11 && buf[3] == 0xE0
	default:
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError unwraps a quizforge.PipelineError to its declared
// HTTP status, falling back to 500 for anything else.
func writePipelineError(w http.ResponseWriter, err error) {
	var pe *quizforge.PipelineError
	if errors.As(err, &pe) {
		writeJSON(w, pe.Status(), pe)
		return
	}
	slog.Error("unhandled error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
