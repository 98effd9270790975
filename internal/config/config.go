// Package config provides the configuration structure for the voice-service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Default values applied when the configuration document leaves a field unset.
const (
	DefaultListenAddr           = ":5000"
	DefaultMaxBodyBytes         = 50 << 20
	DefaultRequestTimeout       = 300
	DefaultBatchSize            = 15
	DefaultCallTimeout          = 30
	DefaultLanguage             = "en-US"
	DefaultSecondaryLanguage    = "hi-IN"
	DefaultAudioEncoding        = "MP3"
	DefaultDensityThreshold     = 0.05
	DefaultCountThreshold       = 15
	DefaultChunkSize            = 4000
	DefaultSecondaryChunkSize   = 1400
	DefaultExtractionTimeout    = 120
	DefaultMinPDFTextLength     = 50
	DefaultTesseractBinary      = "tesseract"
	DefaultOCRLanguages         = "eng+hin"
	DefaultNATSPort             = 4222
	DefaultDocumentSubject      = "voice.document.submitted"
	DefaultObjectStoreBucket    = "VOICE_FILES"
	DefaultImageProviderURL     = "https://image.pollinations.ai/prompt/"
	DefaultPaymentHost          = "securegw.paytm.in"
	DefaultPaymentStagingHost   = "securegw-stage.paytm.in"
	DefaultPaymentWebsite       = "WEBSTAGING"
	DefaultPaymentCallbackURL   = "http://localhost:5173/payment/verify"
	DefaultPaymentTimeout       = 10
	DefaultDatabasePath         = "data/voice-service.db"
	DefaultSynthesisProvider    = ProviderGoogle
	DefaultSynthesisServiceURL  = "http://127.0.0.1:8000"
	DefaultLogsDir              = "logs"
	defaultStagingMerchantToken = "SrctYa"
)

// Supported synthesis providers.
const (
	ProviderGoogle = "google"
	ProviderHTTP   = "http"
)

var (
	// ErrUnknownProvider indicates an unsupported synthesis provider name.
	ErrUnknownProvider = errors.New("unknown synthesis provider")
	// ErrChunkSizeRange indicates a chunk size below one character.
	ErrChunkSizeRange = errors.New("chunk sizes must be at least 1")
	// ErrBatchSizeRange indicates a batch size below one chunk.
	ErrBatchSizeRange = errors.New("batch size must be at least 1")
	// ErrDensityRange indicates a density threshold outside [0, 1].
	ErrDensityRange = errors.New("density threshold must be between 0.0 and 1.0")
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	ListenAddr            string   `toml:"listen_addr"`
	MaxBodyBytes          int64    `toml:"max_body_bytes"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	AllowedOrigins        []string `toml:"allowed_origins"`
}

// SynthesisConfig holds the speech synthesis capability configuration.
type SynthesisConfig struct {
	Provider           string `toml:"provider"`
	ServiceURL         string `toml:"service_url"`
	BatchSize          int    `toml:"batch_size"`
	CallTimeoutSeconds int    `toml:"call_timeout_seconds"`
	DefaultLanguage    string `toml:"default_language"`
	SecondaryLanguage  string `toml:"secondary_language"`
	AudioEncoding      string `toml:"audio_encoding"`
}

// LanguageConfig holds the script-density heuristic and the per-language chunk ceilings.
//
// The secondary (Devanagari) ceiling is lower because the upstream limit is counted in
// bytes and a Devanagari rune takes three bytes in UTF-8.
type LanguageConfig struct {
	DensityThreshold   float64 `toml:"density_threshold"`
	CountThreshold     int     `toml:"count_threshold"`
	DefaultChunkSize   int     `toml:"default_chunk_size"`
	SecondaryChunkSize int     `toml:"secondary_chunk_size"`
}

// ExtractionConfig holds the document extraction configuration.
type ExtractionConfig struct {
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MinPDFTextLength int    `toml:"min_pdf_text_length"`
	TesseractBinary  string `toml:"tesseract_binary"`
	OCRLanguages     string `toml:"ocr_languages"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL               string `toml:"url"`
	Embedded          bool   `toml:"embedded"`
	Port              int    `toml:"port"`
	StoreDir          string `toml:"store_dir"`
	DocumentSubject   string `toml:"document_subject"`
	ObjectStoreBucket string `toml:"object_store_bucket"`
}

// ImagesConfig holds the image generation configuration.
type ImagesConfig struct {
	ProviderURL   string `toml:"provider_url"`
	PublicBaseURL string `toml:"public_base_url"`
}

// PaymentConfig holds the payment gateway configuration.
type PaymentConfig struct {
	GatewayHost    string `toml:"gateway_host"`
	StagingHost    string `toml:"staging_host"`
	Website        string `toml:"website"`
	CallbackURL    string `toml:"callback_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DatabaseConfig holds the SQLite database configuration.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Synthesis  SynthesisConfig  `toml:"synthesis"`
	Language   LanguageConfig   `toml:"language"`
	Extraction ExtractionConfig `toml:"extraction"`
	NATS       NATSConfig       `toml:"nats"`
	Images     ImagesConfig     `toml:"images"`
	Payment    PaymentConfig    `toml:"payment"`
	Database   DatabaseConfig   `toml:"database"`
	Paths      PathsConfig      `toml:"paths"`
}

// Secrets holds credentials that never live in the configuration document.
type Secrets struct {
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	GoogleCredentials  string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	PaymentMerchantID  string `envconfig:"PAYTM_MERCHANT_ID"`
	PaymentMerchantKey string `envconfig:"PAYTM_MERCHANT_KEY"`
	PaymentWebsite     string `envconfig:"PAYTM_WEBSITE"`
	PaymentCallbackURL string `envconfig:"PAYTM_CALLBACK_URL"`
}

// Load loads the configuration for the voice-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// LoadSecrets reads credentials from the environment, loading a .env file first when present.
func LoadSecrets() (*Secrets, error) {
	// A missing .env file is the normal case in containers.
	_ = godotenv.Load()

	var secrets Secrets

	err := envconfig.Process("", &secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}

	return &secrets, nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	setString(&c.Server.ListenAddr, DefaultListenAddr)
	setInt64(&c.Server.MaxBodyBytes, DefaultMaxBodyBytes)
	setInt(&c.Server.RequestTimeoutSeconds, DefaultRequestTimeout)

	setString(&c.Synthesis.Provider, DefaultSynthesisProvider)
	setString(&c.Synthesis.ServiceURL, DefaultSynthesisServiceURL)
	setInt(&c.Synthesis.BatchSize, DefaultBatchSize)
	setInt(&c.Synthesis.CallTimeoutSeconds, DefaultCallTimeout)
	setString(&c.Synthesis.DefaultLanguage, DefaultLanguage)
	setString(&c.Synthesis.SecondaryLanguage, DefaultSecondaryLanguage)
	setString(&c.Synthesis.AudioEncoding, DefaultAudioEncoding)

	if c.Language.DensityThreshold == 0 {
		c.Language.DensityThreshold = DefaultDensityThreshold
	}

	setInt(&c.Language.CountThreshold, DefaultCountThreshold)
	setInt(&c.Language.DefaultChunkSize, DefaultChunkSize)
	setInt(&c.Language.SecondaryChunkSize, DefaultSecondaryChunkSize)

	setInt(&c.Extraction.TimeoutSeconds, DefaultExtractionTimeout)
	setInt(&c.Extraction.MinPDFTextLength, DefaultMinPDFTextLength)
	setString(&c.Extraction.TesseractBinary, DefaultTesseractBinary)
	setString(&c.Extraction.OCRLanguages, DefaultOCRLanguages)

	setInt(&c.NATS.Port, DefaultNATSPort)
	setString(&c.NATS.DocumentSubject, DefaultDocumentSubject)
	setString(&c.NATS.ObjectStoreBucket, DefaultObjectStoreBucket)

	setString(&c.Images.ProviderURL, DefaultImageProviderURL)

	setString(&c.Payment.GatewayHost, DefaultPaymentHost)
	setString(&c.Payment.StagingHost, DefaultPaymentStagingHost)
	setString(&c.Payment.Website, DefaultPaymentWebsite)
	setString(&c.Payment.CallbackURL, DefaultPaymentCallbackURL)
	setInt(&c.Payment.TimeoutSeconds, DefaultPaymentTimeout)

	setString(&c.Database.Path, DefaultDatabasePath)
	setString(&c.Paths.BaseLogsDir, DefaultLogsDir)
}

// Validate checks the values that the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.Synthesis.Provider {
	case ProviderGoogle, ProviderHTTP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Synthesis.Provider)
	}

	if c.Synthesis.BatchSize < 1 {
		return fmt.Errorf("%w: got %d", ErrBatchSizeRange, c.Synthesis.BatchSize)
	}

	if c.Language.DefaultChunkSize < 1 || c.Language.SecondaryChunkSize < 1 {
		return fmt.Errorf("%w: got %d and %d", ErrChunkSizeRange,
			c.Language.DefaultChunkSize, c.Language.SecondaryChunkSize)
	}

	if c.Language.DensityThreshold < 0 || c.Language.DensityThreshold > 1 {
		return fmt.Errorf("%w: got %f", ErrDensityRange, c.Language.DensityThreshold)
	}

	return nil
}

// RequestTimeout returns the per-request deadline for the HTTP handlers.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// CallTimeout returns the deadline applied to each synthesis call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Synthesis.CallTimeoutSeconds) * time.Second
}

// ExtractionTimeout returns the deadline applied to text extraction.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

// PaymentTimeout returns the deadline applied to each payment gateway call.
func (c *Config) PaymentTimeout() time.Duration {
	return time.Duration(c.Payment.TimeoutSeconds) * time.Second
}

// IsStagingMerchant reports whether the merchant id or website points at the gateway sandbox.
func IsStagingMerchant(merchantID, website string) bool {
	return strings.HasPrefix(merchantID, defaultStagingMerchantToken) || website == DefaultPaymentWebsite
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

func setInt64(field *int64, value int64) {
	if *field == 0 {
		*field = value
	}
}
