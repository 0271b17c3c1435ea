package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cleared-dev/recon/internal/extract"
	"github.com/cleared-dev/recon/internal/ingest"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/strategy"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.opts.Version})
}

// handleExtract reads a multipart upload and runs it through the chain.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "bad_form", "invalid multipart form")
		return
	}

	mode, err := parseMode(r.FormValue("mode"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "unknown_mode", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing_file", "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "read_failed", "failed to read file")
		return
	}

	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		format = ingest.Detect(header.Filename, data)
	}
	if !ingest.Known(format) {
		s.respondError(w, http.StatusBadRequest, "unknown_format", "unknown format "+format)
		return
	}

	s.run(w, r, strategy.Input{
		Data:     data,
		Format:   format,
		Mode:     mode,
		Filename: header.Filename,
	})
}

type pasteRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

// handlePaste extracts from text pasted into a form.
func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var req pasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "too_large", "body exceeds size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "unknown_mode", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "empty_text", "no text provided")
		return
	}

	s.run(w, r, strategy.Input{
		Data:   []byte(req.Text),
		Format: ingest.FormatText,
		Mode:   mode,
		Pasted: true,
	})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, in strategy.Input) {
	out, err := s.runner.Run(r.Context(), in)
	if err != nil {
		status, code := classify(err)
		s.logger.Warn("extraction failed", "status", status, "code", code, "format", in.Format, "err", err)
		s.respondError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// parseMode defaults an empty mode to reconciliation.
func parseMode(s string) (model.Mode, error) {
	if strings.TrimSpace(s) == "" {
		return model.Reconciliation, nil
	}
	return model.ParseMode(s)
}

// classify maps an extraction error to a status and machine code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrUnknownMode):
		return http.StatusBadRequest, "unknown_mode"
	case errors.Is(err, ingest.ErrUnknownFormat):
		return http.StatusBadRequest, "unknown_format"
	case errors.Is(err, extract.ErrEmptySheet):
		return http.StatusUnprocessableEntity, "empty_sheet"
	case errors.Is(err, strategy.ErrNoStrategySucceeded):
		return http.StatusUnprocessableEntity, "no_result"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
