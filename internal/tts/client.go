// Package tts turns documents and text into speech: it plans chunks, picks voices
// and fans synthesis calls out to a core.Synthesizer in bounded batches.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts/audio"
)

// API endpoints and paths.
const (
	apiSynthesizeSpeech = "/v1/synthesize"
	apiHealth           = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected %s, got %s"
	errFmtServiceErrorWithCode  = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "TTS service returned non-OK status: %s, body: %s"
)

// Static errors for the HTTP synthesizer.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrReceivedEmptyAudio = errors.New("received empty audio data")
)

// HTTPClient is a core.Synthesizer backed by a standalone TTS HTTP service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// Request is the JSON payload of a synthesis call.
type Request struct {
	Text          string  `json:"text"`
	LanguageCode  string  `json:"language_code"`
	VoiceName     string  `json:"voice_name,omitempty"`
	Gender        string  `json:"gender,omitempty"`
	AudioEncoding string  `json:"audio_encoding"`
	SpeakingRate  float64 `json:"speaking_rate"`
	Pitch         float64 `json:"pitch"`
	VolumeGainDB  float64 `json:"volume_gain_db"`
}

// ErrorResponse is a structured error from the TTS service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the TTS service at baseURL
// (e.g. "http://localhost:8000"). The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SynthesizeSpeech implements core.Synthesizer.
func (c *HTTPClient) SynthesizeSpeech(
	ctx context.Context,
	text string,
	voice core.Voice,
	audioConfig core.AudioConfig,
) ([]byte, error) {
	return c.GenerateSpeech(ctx, Request{
		Text:          text,
		LanguageCode:  voice.LanguageCode,
		VoiceName:     voice.Name,
		Gender:        voice.Gender,
		AudioEncoding: audioConfig.Encoding,
		SpeakingRate:  audioConfig.SpeakingRate,
		Pitch:         audioConfig.Pitch,
		VolumeGainDB:  audioConfig.VolumeGainDB,
	})
}

// GenerateSpeech sends one synthesis request and returns the raw audio.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSynthesizeSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	expectedType := audio.Format(req.AudioEncoding).ContentType()

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, expectedType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to TTS service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != expectedType {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, expectedType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is running.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the raw body.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(
		errFmtServiceNonOKStatus,
		resp.Status,
		string(body),
	)
}
