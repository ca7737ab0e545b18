package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize limits multipart uploads; phone photos rarely exceed a few MB
const maxUploadSize = int64(50 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSONError writes {"error": message}
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// contentTypeFor guesses a MIME type from the file extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleHealth reports liveness and sheet connectivity
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sheet := "connected"
	if err := s.service.SheetStatus(r.Context()); err != nil {
		sheet = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"sheet":  sheet,
	})
}

// handleScanLedger runs the full pipeline on an uploaded ledger photo
func (s *Server) handleScanLedger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB.")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSONError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	batch, err := s.service.ProcessPhoto(r.Context(), Upload{
		Filename:    header.Filename,
		Data:        data,
		ContentType: contentType,
	})
	if err != nil {
		slog.Error("Error processing ledger", "filename", header.Filename, "error", err)
		if errors.Is(err, ErrRecognition) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Error processing ledger. Please try again.")
		return
	}

	if len(batch.Transactions) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":    "no transactions detected",
			"raw_text": batch.RawText,
		})
		return
	}

	writeJSON(w, http.StatusCreated, batch)
}

// handleListLedgers returns all processed batches
func (s *Server) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches()
	if err != nil {
		slog.Error("Error listing batches", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if batches == nil {
		batches = []*Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleGetLedger returns a single batch
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.GetBatch(r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Ledger not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting batch", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// handleGetLedgerPhoto returns the archived photo of a batch
func (s *Server) handleGetLedgerPhoto(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetBatchPhoto(r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Photo not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error getting batch photo", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleResyncLedger retries the sheet append for a batch
func (s *Server) handleResyncLedger(w http.ResponseWriter, r *http.Request) {
	batch, err := s.service.ResyncBatch(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		corsError(w, "Ledger not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrAlreadySynced):
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, ErrSheetNotConfigured):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		slog.Error("Error resyncing batch", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !batch.SheetSynced {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, batch)
}
