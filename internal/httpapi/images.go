package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/book-expert/voice-service/internal/imagegen"
	"github.com/book-expert/voice-service/internal/objectstore"
	"github.com/go-chi/chi/v5"
)

const (
	msgPromptRequired   = "Prompt is required"
	msgImageFailed      = "Image generation failed"
	msgImageNotFound    = "Image not found"
	imageCacheControl   = "public, max-age=31536000, immutable"
	logFmtImageNotFound = "Image %s not served: %v"
)

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type imageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	imageURL, err := s.deps.Images.Generate(r.Context(), req.Prompt)

	switch {
	case errors.Is(err, imagegen.ErrPromptRequired):
		writeJSON(w, http.StatusBadRequest, imageResponse{Message: msgPromptRequired})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, imageResponse{Message: msgImageFailed})
	default:
		writeJSON(w, http.StatusOK, imageResponse{Success: true, Data: imageURL})
	}
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	obj, err := s.deps.Images.Image(r.Context(), key)
	if err != nil {
		s.logger.Warn(logFmtImageNotFound, key, err)

		if errors.Is(err, objectstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgImageNotFound, "")

			return
		}

		writeError(w, http.StatusInternalServerError, msgSomethingWrong, "")

		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.Data)
	}

	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(obj.Data)))
	header.Set("Cache-Control", imageCacheControl)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
