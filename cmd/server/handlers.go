package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope"
	"github.com/himanishpuri/SoundScope/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service soundscope.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	DBPath          string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	LogRequests     bool
	ShutdownTimeout time.Duration
}

// NewServer creates a new server instance
func NewServer(service soundscope.Service, config *ServerConfig) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Minute
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, soundscope.ErrUnsupportedFormat),
		errors.Is(err, soundscope.ErrMissingPrimary),
		errors.Is(err, soundscope.ErrConflictingReference):
		return http.StatusBadRequest
	case errors.Is(err, soundscope.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "SoundScope API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"analyze":         "POST /api/analyze",
			"presets":         "GET /api/presets",
			"references":      "GET /api/references",
			"saveReference":   "POST /api/references",
			"getReference":    "GET /api/references/{id}",
			"deleteReference": "DELETE /api/references/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.ReferenceCount()
	if err != nil {
		s.log.Errorf("Failed to count references: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		ReferenceCount: count,
		Pool:           s.service.Stats(),
	})
}

// handlePresets handles GET /api/presets
func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	presets := s.service.Presets()
	s.respondJSON(w, http.StatusOK, PresetsResponse{Presets: presets, Count: len(presets)})
}

// handleAnalyze handles POST /api/analyze (multipart: userMix, reference,
// preset, referenceId)
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxMemoryBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	primary, cleanup, err := s.stageFormFile(r, "userMix")
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if primary == nil {
		s.respondError(w, http.StatusBadRequest, "userMix file is required")
		return
	}
	defer cleanup()

	reference, cleanupRef, err := s.stageFormFile(r, "reference")
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if reference != nil {
		defer cleanupRef()
	}

	req := soundscope.Request{
		Primary:     *primary,
		Reference:   reference,
		ReferenceID: strings.TrimSpace(r.FormValue("referenceId")),
		PresetID:    strings.TrimSpace(r.FormValue("preset")),
	}

	s.log.Infof("Analyzing %s (reference=%v, preset=%q)", primary.Name, reference != nil || req.ReferenceID != "", req.PresetID)
	result, err := s.service.Analyze(ctx, req)
	if err != nil {
		s.log.Errorf("Analysis failed: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, newAnalyzeResponse(result))
}

// stageFormFile copies an optional upload field into the temp directory. It
// returns a nil track when the field is absent.
func (s *Server) stageFormFile(r *http.Request, field string) (*models.Track, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", field, err)
	}
	defer file.Close()

	track, err := s.service.StageUpload(header.Filename, file)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", field, err)
	}
	return &track, func() {
		if err := utils.DeleteFile(track.Path); err != nil {
			s.log.Warnf("Failed to remove %s: %v", track.Path, err)
		}
	}, nil
}

// handleListReferences handles GET /api/references
func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	refs, err := s.service.ListReferences()
	if err != nil {
		s.log.Errorf("Failed to list references: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve references")
		return
	}

	dtos := make([]ReferenceDTO, len(refs))
	for i, ref := range refs {
		dtos[i] = toReferenceDTO(ref)
	}
	s.respondJSON(w, http.StatusOK, ListReferencesResponse{References: dtos, Count: len(dtos)})
}

// handleSaveReference handles POST /api/references (multipart: reference, name)
func (s *Server) handleSaveReference(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxMemoryBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	track, cleanup, err := s.stageFormFile(r, "reference")
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if track == nil {
		s.respondError(w, http.StatusBadRequest, "reference file is required")
		return
	}
	defer cleanup()

	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		name = track.Name
	}

	saved, err := s.service.SaveReference(ctx, *track, name)
	if err != nil {
		s.log.Errorf("Failed to save reference: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to save reference: %v", err))
		return
	}
	s.respondJSON(w, http.StatusCreated, toReferenceDTO(*saved))
}

// handleGetReference handles GET /api/references/{id}
func (s *Server) handleGetReference(w http.ResponseWriter, r *http.Request, id string) {
	ref, err := s.service.GetReference(id)
	if err != nil {
		s.log.Warnf("Reference lookup failed for %s: %v", id, err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Reference %s not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, toReferenceDTO(*ref))
}

// handleDeleteReference handles DELETE /api/references/{id}
func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteReference(id); err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			s.respondError(w, status, fmt.Sprintf("Reference %s not found", id))
			return
		}
		s.log.Errorf("Failed to delete reference %s: %v", id, err)
		s.respondError(w, status, "Failed to delete reference")
		return
	}

	s.log.Infof("Deleted reference %s", id)
	s.respondJSON(w, http.StatusOK, DeleteReferenceResponse{
		Message: "Reference deleted successfully",
		ID:      id,
	})
}

// handleReferences routes requests to /api/references
func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListReferences(w, r)
	case http.MethodPost:
		s.handleSaveReference(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleReference routes requests to /api/references/{id}
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/references/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Reference ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetReference(w, r, id)
	case http.MethodDelete:
		s.handleDeleteReference(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
