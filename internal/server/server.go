package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"deepstitch/internal/compositor"
	"deepstitch/pkg/deepzoom"
)

// ReconstructRequest is the body of POST /reconstruct.
type ReconstructRequest struct {
	URL string `json:"url"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int       `json:"uptime"`
	Version   string    `json:"version"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	Stage     string `json:"stage,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Server exposes the reconstruction engine over HTTP.
type Server struct {
	startTime  time.Time
	version    string
	compositor *compositor.Compositor
}

// NewServer creates a new server instance around the given compositor.
func NewServer(version string, comp *compositor.Compositor) *Server {
	return &Server{
		startTime:  time.Now(),
		version:    version,
		compositor: comp,
	}
}

// Routes registers the API endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Post("/reconstruct", s.CreateReconstruction)
}

// GetHealth implements the health check endpoint.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Version:   s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// CreateReconstruction implements the main reconstruction endpoint. The body
// names one collection-item URL; the answer is the composed image as JPEG.
func (s *Server) CreateReconstruction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = generateRequestID()
	}

	var req ReconstructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", requestID, nil)
		return
	}

	if req.URL == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
			"url is required", requestID, nil)
		return
	}

	result, err := s.compositor.Reconstruct(r.Context(), req.URL)
	if err != nil {
		s.handleReconstructionError(w, err, requestID)
		return
	}

	var buf bytes.Buffer
	if err := compositor.Encode(&buf, result.Image, "jpg"); err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "ENCODE_ERROR",
			fmt.Sprintf("failed to encode output image: %v", err), requestID, nil)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Image-Width", strconv.Itoa(result.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(result.Height))

	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// handleReconstructionError maps pipeline errors to HTTP answers. Input
// problems are the caller's fault; descriptor, level and tile problems are
// upstream failures.
func (s *Server) handleReconstructionError(w http.ResponseWriter, err error, requestID string) {
	var identErr *deepzoom.IdentifierError
	if errors.As(err, &identErr) {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_ITEM_URL",
			err.Error(), requestID, &ErrorResponse{URL: identErr.URL})
		return
	}

	var descErr *deepzoom.DescriptorError
	if errors.As(err, &descErr) {
		s.writeErrorResponse(w, http.StatusBadGateway, "DESCRIPTOR_ERROR",
			err.Error(), requestID, &ErrorResponse{URL: descErr.URL, Stage: descErr.Stage})
		return
	}

	var levelErr *deepzoom.LevelNotFoundError
	if errors.As(err, &levelErr) {
		s.writeErrorResponse(w, http.StatusBadGateway, "LEVEL_NOT_FOUND",
			err.Error(), requestID, nil)
		return
	}

	var tileErr *deepzoom.TileError
	if errors.As(err, &tileErr) {
		s.writeErrorResponse(w, http.StatusBadGateway, "TILE_SERVER_ERROR",
			err.Error(), requestID, &ErrorResponse{URL: tileErr.URL, Stage: tileErr.Stage})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "TILE_SERVER_TIMEOUT",
			"Upstream requests timed out", requestID, nil)
		return
	}

	s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"Internal server error", requestID, nil)
}

// writeErrorResponse writes a standard error response. detail, when non-nil,
// contributes the URL and stage fields.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message, requestID string, detail *ErrorResponse) {
	response := ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: requestID,
	}
	if detail != nil {
		response.URL = detail.URL
		response.Stage = detail.Stage
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}

// generateRequestID generates a unique request ID for requests that bypass
// the RequestID middleware.
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
