package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/book-expert/voice-service/internal/tts"
)

const (
	msgNotConfigured      = "Google Cloud TTS not configured"
	msgNotConfiguredHint  = "Service account key missing on server."
	msgTextRequired       = "Text is required"
	msgSpeechFailed       = "Failed to synthesize speech"
	msgFileRequired       = "Either fileData or introText is required"
	msgInvalidFileData    = "fileData must be base64 encoded"
	msgExtractionFailed   = "Text extraction failed"
	msgNotEnoughText      = "Could not extract enough readable text from this file."
	msgConversionFailed   = "Voice conversion failed"
	dataURLBase64Marker   = ";base64,"
	defaultLanguageCode   = "en-US"
	defaultRequestGender  = tts.GenderFemale
	logFmtSynthesisFailed = "Synthesis request failed: %v"
)

type synthesizeRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
	Gender       string `json:"gender"`
	Tone         string `json:"tone"`
}

type synthesizeFileRequest struct {
	FileData     string `json:"fileData"`
	MimeType     string `json:"mimeType"`
	LanguageCode string `json:"languageCode"`
	Gender       string `json:"gender"`
	IntroText    string `json:"introText"`
}

type synthesisErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Stage      string `json:"stage,omitempty"`
	ChunkIndex *int   `json:"chunkIndex,omitempty"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	req := synthesizeRequest{LanguageCode: defaultLanguageCode, Gender: defaultRequestGender}
	if !decodeJSON(w, r, &req) {
		return
	}

	if !s.deps.Pipeline.Available() {
		writeError(w, http.StatusForbidden, msgNotConfigured, msgNotConfiguredHint)

		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, msgTextRequired, "")

		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.deps.Pipeline.SynthesizeSpeech(ctx, tts.SpeechRequest{
		Text:         req.Text,
		LanguageCode: req.LanguageCode,
		Gender:       req.Gender,
		Tone:         req.Tone,
	})
	if err != nil {
		s.logger.Error(logFmtSynthesisFailed, err)
		s.writeSynthesisError(w, err, msgTextRequired, msgSpeechFailed)

		return
	}

	writeAudio(w, result)
}

func (s *Server) handleSynthesizeFile(w http.ResponseWriter, r *http.Request) {
	var req synthesizeFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !s.deps.Pipeline.Available() {
		writeError(w, http.StatusForbidden, msgNotConfigured, msgNotConfiguredHint)

		return
	}

	if req.FileData == "" && strings.TrimSpace(req.IntroText) == "" {
		writeError(w, http.StatusBadRequest, msgFileRequired, "")

		return
	}

	fileData, mimeType, err := decodeFileData(req.FileData, req.MimeType)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidFileData, err.Error())

		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.deps.Pipeline.SynthesizeDocument(ctx, tts.DocumentRequest{
		FileData:     fileData,
		MimeType:     mimeType,
		LanguageCode: req.LanguageCode,
		Gender:       req.Gender,
		IntroText:    req.IntroText,
	})
	if err != nil {
		s.logger.Error(logFmtSynthesisFailed, err)
		s.writeSynthesisError(w, err, msgFileRequired, msgConversionFailed)

		return
	}

	writeAudio(w, result)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := s.cfg.RequestTimeout()
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}

	return context.WithTimeout(r.Context(), timeout)
}

// writeSynthesisError maps a pipeline error kind to a status code and message.
func (s *Server) writeSynthesisError(w http.ResponseWriter, err error, invalidMessage, failureMessage string) {
	resp := synthesisErrorResponse{Details: err.Error()}

	var pipelineErr *tts.PipelineError
	if errors.As(err, &pipelineErr) {
		resp.Stage = string(pipelineErr.Stage)
	}

	var synthErr *tts.SynthesisError
	if errors.As(err, &synthErr) {
		index := synthErr.Index
		resp.ChunkIndex = &index
	}

	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, tts.ErrSynthesisUnavailable):
		code = http.StatusForbidden
		resp.Error = msgNotConfigured
		resp.Details = msgNotConfiguredHint
	case errors.Is(err, tts.ErrInvalidInput):
		code = http.StatusBadRequest
		resp.Error = invalidMessage
	case errors.Is(err, tts.ErrInsufficientText):
		code = http.StatusBadRequest
		resp.Error = msgNotEnoughText
	case errors.Is(err, tts.ErrExtractionFailure):
		resp.Error = msgExtractionFailed
	case errors.Is(err, tts.ErrSynthesisFailure):
		resp.Error = failureMessage
		resp.Details = ""
	default:
		resp.Error = failureMessage
	}

	writeJSON(w, code, resp)
}

func writeAudio(w http.ResponseWriter, result *tts.SynthesisResult) {
	header := w.Header()
	header.Set("Content-Type", result.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(result.Audio)))
	header.Set(headerTextLength, strconv.Itoa(result.TextLength))
	header.Set(headerChunkCount, strconv.Itoa(result.ChunkCount))

	if result.LikelyScanned {
		header.Set(headerLikelyScanned, "true")
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

// decodeFileData decodes standard or unpadded base64, with or without a data URL
// prefix. A data URL supplies the MIME type when none is given.
func decodeFileData(encoded, mimeType string) ([]byte, string, error) {
	if encoded == "" {
		return nil, mimeType, nil
	}

	if prefix, payload, found := strings.Cut(encoded, dataURLBase64Marker); found && strings.HasPrefix(prefix, "data:") {
		if mimeType == "" {
			mimeType = strings.TrimPrefix(prefix, "data:")
		}

		encoded = payload
	}

	encoded = strings.TrimSpace(encoded)

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, mimeType, err
		}
	}

	return data, mimeType, nil
}
