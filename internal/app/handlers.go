package app

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/tnishida/keihi-scan/internal/expense"
	"github.com/tnishida/keihi-scan/internal/ledger"
	"github.com/tnishida/keihi-scan/internal/scanning"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleExtractReceipt accepts a receipt upload and returns the extracted,
// still-unconfirmed record. Nothing is written to the workbook here.
func (s *Server) handleExtractReceipt(w http.ResponseWriter, r *http.Request) {
	// Slightly above the 10MiB image cap so the pre-flight check, not the
	// form parser, reports oversized uploads.
	maxFormSize := int64(12 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".heic":
			contentType = "image/heic"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	record, err := s.service.ExtractReceipt(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error extracting receipt", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), scanStatusCode(err))
		return
	}

	response := map[string]any{
		"record":      record,
		"source_file": header.Filename,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// scanStatusCode maps the scan failure taxonomy onto HTTP statuses.
func scanStatusCode(err error) int {
	var scanErr *scanning.ScanError
	if errors.As(err, &scanErr) {
		switch scanErr.Kind {
		case scanning.KindTransport:
			return http.StatusBadGateway
		case scanning.KindParse:
			return http.StatusBadGateway
		default:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// handleCommitEntry appends a user-confirmed record to the workbook
func (s *Server) handleCommitEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		expense.Record
		SourceFile string `json:"source_file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	row, total, err := s.service.CommitEntry(req.Record, req.SourceFile)
	if err != nil {
		slog.Error("Error committing entry", "error", err)
		code := http.StatusBadRequest
		if errors.Is(err, ledger.ErrTableFull) {
			code = http.StatusConflict
		}
		jsonError(w, err.Error(), code)
		return
	}

	response := map[string]any{
		"row":   row,
		"total": total,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListEntries returns the occupied detail rows, the running total and
// how many rows remain
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, total, err := s.service.ListEntries()
	if err != nil {
		slog.Error("Error listing entries", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"entries":   entries,
		"total":     total,
		"remaining": ledger.Capacity - len(entries),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleListHistory returns the commit log
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	commits, err := s.service.ListHistory()
	if err != nil {
		slog.Error("Error listing history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if commits == nil {
		commits = []*Commit{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(commits); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
