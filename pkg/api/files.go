// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// maxUploadSize bounds a single file upload (spec.md §7 "Resource: file
// size").
const maxUploadSize = 25 << 20

// safeFilename strips directory separators and leading dots so the stored
// name can never escape its job's file directory (spec.md §6 "Persisted
// state layout").
func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.deps.Store.ListFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list files", err))
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	job, err := s.deps.Store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "job not found"))
		return
	}

	uploader, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if uploader != job.Buyer && uploader != job.Seller {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not a job participant"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "file too large or malformed upload"))
		return
	}
	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "missing file field"))
		return
	}
	defer upload.Close()

	fileID := uuid.NewString()
	filename := safeFilename(header.Filename)
	jobDir := filepath.Join(s.deps.FilesDir, jobID)
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "create job file directory", err))
		return
	}
	dest := filepath.Join(jobDir, fileID+"-"+filename)
	if rel, err := filepath.Rel(s.deps.FilesDir, dest); err != nil || strings.HasPrefix(rel, "..") {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "invalid filename"))
		return
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "open destination file", err))
		return
	}
	defer out.Close()

	hasher := sha256.New()
	sniff := make([]byte, 512)
	n, _ := io.ReadFull(io.TeeReader(upload, io.MultiWriter(out, hasher)), sniff)
	mimeType := http.DetectContentType(sniff[:n])
	written, err := io.Copy(io.MultiWriter(out, hasher), upload)
	if err != nil {
		os.Remove(dest)
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "write upload", err))
		return
	}

	file := &storage.JobFile{
		ID:        fileID,
		JobID:     jobID,
		Uploader:  uploader,
		Filename:  filename,
		MIME:      mimeType,
		Size:      int64(n) + written,
		Checksum:  hex.EncodeToString(hasher.Sum(nil)),
		Handle:    dest,
		CreatedAt: time.Now(),
	}
	if err := s.deps.Store.CreateFile(r.Context(), file); err != nil {
		os.Remove(dest)
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "create file record", err))
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), notifyFileUploaded(job, file))
	}
	writeJSON(w, http.StatusCreated, file)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file, err := s.deps.Store.GetFile(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "file not found"))
		return
	}
	uploader, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if uploader != file.Uploader {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "only the uploader may delete this file"))
		return
	}
	if err := s.deps.Store.DeleteFile(r.Context(), id); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "delete file", err))
		return
	}
	_ = os.Remove(file.Handle)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
