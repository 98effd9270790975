package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	pathSynthesize     = "/synthesize"
	pathSynthesizeFile = "/synthesize-file"
	pathHealth         = "/health"
	pathGenerateImage  = "/api/image/generate"
	maxErrorBodyBytes  = 64 << 10
)

var errImageRejected = errors.New("image generation rejected")

// APIError is a non-2xx answer from the voice service.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("voice service returned %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("voice service returned %d: %s (%s)", e.StatusCode, e.Message, e.Details)
}

// speechRequest mirrors the /synthesize body.
type speechRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Tone         string `json:"tone,omitempty"`
}

// documentRequest mirrors the /synthesize-file body.
type documentRequest struct {
	FileData     string `json:"fileData,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
	Gender       string `json:"gender,omitempty"`
	IntroText    string `json:"introText,omitempty"`
}

// audioResult is the audio and the synthesis details the service reports in headers.
type audioResult struct {
	Audio         []byte
	ContentType   string
	TextLength    int
	ChunkCount    int
	LikelyScanned bool
}

// HealthStatus is the /health body.
type HealthStatus struct {
	Status    string            `json:"status"`
	Synthesis bool              `json:"synthesis"`
	Checks    map[string]string `json:"checks"`
}

type imageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// apiClient talks to a running voice service.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) synthesize(ctx context.Context, req speechRequest) (*audioResult, error) {
	return c.postForAudio(ctx, pathSynthesize, req)
}

func (c *apiClient) synthesizeFile(ctx context.Context, data []byte, req documentRequest) (*audioResult, error) {
	if len(data) > 0 {
		req.FileData = base64.StdEncoding.EncodeToString(data)
	}

	return c.postForAudio(ctx, pathSynthesizeFile, req)
}

func (c *apiClient) health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, pathHealth, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status HealthStatus

	decodeErr := json.NewDecoder(resp.Body).Decode(&status)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", decodeErr)
	}

	if resp.StatusCode != http.StatusOK {
		return &status, &APIError{StatusCode: resp.StatusCode, Message: status.Status}
	}

	return &status, nil
}

func (c *apiClient) generateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, pathGenerateImage, map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body imageResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode image response: %w", decodeErr)
	}

	if !body.Success {
		return "", fmt.Errorf("%w: %s", errImageRejected, body.Message)
	}

	return body.Data, nil
}

func (c *apiClient) postForAudio(ctx context.Context, path string, payload any) (*audioResult, error) {
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	textLength, _ := strconv.Atoi(resp.Header.Get("X-Text-Length"))
	chunkCount, _ := strconv.Atoi(resp.Header.Get("X-Chunk-Count"))

	return &audioResult{
		Audio:         audio,
		ContentType:   resp.Header.Get("Content-Type"),
		TextLength:    textLength,
		ChunkCount:    chunkCount,
		LikelyScanned: resp.Header.Get("X-Likely-Scanned") == "true",
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	body := io.Reader(http.NoBody)

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach voice service at %s: %w", c.baseURL, err)
	}

	return resp, nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	return apiErr
}
