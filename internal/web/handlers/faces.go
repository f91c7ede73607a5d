package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/registry"
	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/rs/zerolog"
)

// Registry is the face registry used by the handlers.
type Registry interface {
	Register(ctx context.Context, req registry.RegisterRequest) (*store.Record, error)
	Recognize(ctx context.Context, req registry.RecognizeRequest) (registry.Match, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Similar(ctx context.Context, name string, k int) ([]registry.Similar, error)
}

// FacesHandler handles the face registry endpoints.
type FacesHandler struct {
	registry Registry
	logger   zerolog.Logger
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(reg Registry, logger zerolog.Logger) *FacesHandler {
	return &FacesHandler{
		registry: reg,
		logger:   logger,
	}
}

// RegisterRequest is the body of POST /register_face.
type RegisterRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Model string `json:"model"`
}

// RecognizeRequest is the body of POST /recognize_face.
type RecognizeRequest struct {
	Image string `json:"image"`
	Model string `json:"model"`
}

// RecognizeResponse is the body of a recognition answer.
type RecognizeResponse struct {
	Success    bool     `json:"success"`
	Recognized bool     `json:"recognized"`
	Name       string   `json:"name,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Message    string   `json:"message"`
}

// ListResponse is the body of GET /get_registered_faces.
type ListResponse struct {
	Success bool     `json:"success"`
	Faces   []string `json:"faces"`
	Count   int      `json:"count"`
}

// SimilarFace is one entry of a similar faces answer.
type SimilarFace struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// SimilarResponse is the body of GET /similar_faces/{name}.
type SimilarResponse struct {
	Success bool          `json:"success"`
	Name    string        `json:"name"`
	Similar []SimilarFace `json:"similar"`
	Count   int           `json:"count"`
}

// Register stores a new face under a name.
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.registry.Register(r.Context(), registry.RegisterRequest{
		Name:  req.Name,
		Image: req.Image,
		Model: req.Model,
	})
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Face registered successfully for %s", rec.Name),
	})
}

// Recognize finds the registered face closest to the submitted image.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	match, err := h.registry.Recognize(r.Context(), registry.RecognizeRequest{
		Image: req.Image,
		Model: req.Model,
	})
	if errors.Is(err, registry.ErrNoRegisteredFaces) {
		respondJSON(w, http.StatusNotFound, RecognizeResponse{
			Success:    false,
			Recognized: false,
			Message:    "No registered faces found",
		})
		return
	}
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}

	if !match.Recognized {
		respondJSON(w, http.StatusOK, RecognizeResponse{
			Success: true,
			Message: "Face not recognized",
		})
		return
	}

	confidence := match.Confidence
	respondJSON(w, http.StatusOK, RecognizeResponse{
		Success:    true,
		Recognized: true,
		Name:       match.Name,
		Confidence: &confidence,
		Message:    fmt.Sprintf("Face recognized as %s", match.Name),
	})
}

// List returns the names registered in any pipeline.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.registry.List(r.Context())
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Success: true,
		Faces:   names,
		Count:   len(names),
	})
}

// Delete removes a name from every pipeline.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	if err := h.registry.Delete(r.Context(), name); err != nil {
		h.respondRegistryError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Face %s deleted successfully", name),
	})
}

// Similar lists the registered faces closest to the named one.
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	k := registry.DefaultSimilarK
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > constants.MaxSimilarK {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("k must be between 1 and %d", constants.MaxSimilarK))
			return
		}
		k = n
	}

	similar, err := h.registry.Similar(r.Context(), name, k)
	if err != nil {
		h.respondRegistryError(w, err)
		return
	}

	out := make([]SimilarFace, len(similar))
	for i, s := range similar {
		out[i] = SimilarFace{Name: s.Name, Distance: s.Distance}
	}
	respondJSON(w, http.StatusOK, SimilarResponse{
		Success: true,
		Name:    name,
		Similar: out,
		Count:   len(out),
	})
}

// nameParam reads the {name} path segment. chi matches on the escaped
// path when the client escaped reserved characters, so the segment is
// unescaped here.
func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid name")
		return "", false
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return "", false
	}
	return name, true
}

// respondRegistryError maps registry errors to status codes and messages.
func (h *FacesHandler) respondRegistryError(w http.ResponseWriter, err error) {
	status, message := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	} else {
		h.logger.Debug().Str("reason", sanitizeForLog(message)).Int("status", status).Msg("request rejected")
	}
	respondError(w, status, message)
}

func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrNameAndImageRequired):
		return http.StatusBadRequest, "Name and image are required"
	case errors.Is(err, registry.ErrImageRequired):
		return http.StatusBadRequest, "Image is required"
	case errors.Is(err, registry.ErrUnknownModel):
		return http.StatusBadRequest, "Unknown model. Use 'embedding' or 'verification'."
	case errors.Is(err, registry.ErrInvalidImage):
		return http.StatusBadRequest, "Invalid image format"
	case errors.Is(err, registry.ErrDuplicateName):
		return http.StatusBadRequest, "Name already registered"
	case errors.Is(err, faceapi.ErrNoFace):
		return http.StatusBadRequest, "No face detected in the image"
	case errors.Is(err, faceapi.ErrMultipleFaces):
		return http.StatusBadRequest, "Multiple faces detected. Please use an image with only one face."
	case errors.Is(err, registry.ErrNoRegisteredFaces):
		return http.StatusNotFound, "No registered faces found"
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, "Face not found"
	case errors.Is(err, registry.ErrIncomparable):
		return http.StatusUnprocessableEntity, "Face embedding dimension differs from the other registered faces"
	}
	return http.StatusInternalServerError, "Error: " + err.Error()
}
