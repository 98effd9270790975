// Package imagegen generates images from text prompts through an HTTP image provider
// and keeps them in the object store so they can be served back by key.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fileutil"
	"github.com/book-expert/voice-service/internal/metrics"
	"github.com/google/uuid"
)

const (
	keyPrefix      = "gen_"
	imageRoute     = "/api/image/"
	maxImageBytes  = 20 << 20
	headerAccept   = "Accept"
	acceptImages   = "image/*"
	logFmtGenerate = "Generating image for prompt: %q"
	logFmtStored   = "Image for prompt %q stored as %s (%d bytes)"
	logFmtFailed   = "Image generation failed for prompt %q: %v"
)

var (
	// ErrPromptRequired is returned for an empty prompt.
	ErrPromptRequired = errors.New("prompt is required")
	// ErrNotAnImage is returned when the provider answers with something other than an image.
	ErrNotAnImage = errors.New("provider did not return an image")
	// ErrEmptyImage is returned when the provider answers with no bytes.
	ErrEmptyImage = errors.New("provider returned an empty image")
)

// HTTPFetcher is a core.ImageFetcher for providers that render the prompt found at the
// end of a URL path, such as https://image.pollinations.ai/prompt/<prompt>.
type HTTPFetcher struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPFetcher creates a fetcher for baseURL. The timeout covers one image.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/") + "/",
	}
}

// Fetch implements core.ImageFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, prompt string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+url.PathEscape(prompt), http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	req.Header.Set(headerAccept, acceptImages)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to reach image provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image provider returned %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%w: content type %q", ErrNotAnImage, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	return data, contentType, nil
}

// Generator fetches images and stores them under generated keys.
type Generator struct {
	fetcher       core.ImageFetcher
	store         core.ObjectStore
	publicBaseURL string
	clock         func() time.Time
	logger        *logger.Logger
}

// NewGenerator creates a generator. publicBaseURL prefixes the returned image URLs; an
// empty value yields root-relative URLs.
func NewGenerator(fetcher core.ImageFetcher, store core.ObjectStore, publicBaseURL string, log *logger.Logger) *Generator {
	return &Generator{
		fetcher:       fetcher,
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		clock:         time.Now,
		logger:        log,
	}
}

// Generate renders a prompt, stores the image and returns the URL it is served at.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrPromptRequired
	}

	g.logger.Info(logFmtGenerate, prompt)

	key, err := g.generate(ctx, prompt)

	metrics.RecordImage(err == nil)

	if err != nil {
		g.logger.Error(logFmtFailed, prompt, err)

		return "", err
	}

	return g.publicBaseURL + imageRoute + key, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	data, contentType, err := g.fetcher.Fetch(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}

	key := fmt.Sprintf("%s%d_%s%s", keyPrefix, g.clock().UnixMilli(), uuid.NewString()[:8], fileutil.ExtensionFor(contentType))

	err = g.store.Upload(ctx, core.Object{Key: key, ContentType: contentType, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	g.logger.Info(logFmtStored, prompt, key, len(data))

	return key, nil
}

// Image returns a stored image by key.
func (g *Generator) Image(ctx context.Context, key string) (*core.Object, error) {
	obj, err := g.store.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", key, err)
	}

	return obj, nil
}
