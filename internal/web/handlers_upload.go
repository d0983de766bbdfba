package web

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/logging"
	"github.com/USFAkbari/Excel-Tools/internal/web/templates"
)

// multipartOverhead is allowed on top of the file size limit for the
// multipart envelope.
const multipartOverhead = 1 << 20

// multipartMemory is held in memory while parsing; larger parts spill to
// temporary files.
const multipartMemory = 32 << 20

// handleUpload stores a multipart "file" part as a new root version.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, dataset.Validationf("upload", "file too large: exceeds limit of %d bytes", maxSize))
			return
		}
		respondError(w, r, dataset.Validationf("upload", "no file provided: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, dataset.Validationf("upload", "no file provided"))
		return
	}
	defer file.Close()

	res, err := s.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(),
		"file_id", res.FileID,
		"filename", header.Filename,
	).Info("upload completed", "size", header.Size)
	writeJSON(w, http.StatusOK, res)
}

// handlePreview returns the first rows of a version as JSON.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	maxRows, err := parseMaxRows(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	data, err := s.service.Preview(r.Context(), chi.URLParam(r, "fileID"), maxRows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// handlePreviewPage renders the preview as an HTML table.
func (s *Server) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	maxRows, err := parseMaxRows(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	data, err := s.service.Preview(r.Context(), chi.URLParam(r, "fileID"), maxRows)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.PreviewPage(s.cfg.App.Name, data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render preview failed", "error", err)
	}
}

// handleDownload serves a version as an xlsx (default) or csv attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	export, err := s.service.Download(r.Context(), chi.URLParam(r, "fileID"), r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		logging.FromContext(r.Context()).Warn("download write failed", "error", err)
	}
}

// handleVersion returns lineage metadata for a version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Version(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleVersions lists stored versions, newest first.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, dataset.Validationf("versions", "limit must be a positive integer, got %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": s.service.Versions(limit)})
}

// parseMaxRows reads the optional max_rows query parameter; 0 means the
// configured default.
func parseMaxRows(r *http.Request) (int, error) {
	v := r.URL.Query().Get("max_rows")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, dataset.Validationf("preview", "max_rows must be an integer, got %q", v)
	}
	return n, nil
}
