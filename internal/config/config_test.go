// Package config_test tests the configuration loading for the voice-service.
package config_test

import (
	"testing"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
listen_addr = ":8080"
allowed_origins = ["http://localhost:5173"]

[synthesis]
provider = "http"
service_url = "http://tts.internal:8000"
batch_size = 10
call_timeout_seconds = 20

[language]
density_threshold = 0.1
count_threshold = 20
default_chunk_size = 3000
secondary_chunk_size = 1000

[extraction]
tesseract_binary = "/usr/local/bin/tesseract"
ocr_languages = "eng+hin+mar"

[nats]
url = "nats://127.0.0.1:4222"
document_subject = "voice.document.submitted"
object_store_bucket = "VOICE_FILES"

[paths]
base_logs_dir = "/var/log/voice"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, config.ProviderHTTP, cfg.Synthesis.Provider)
	assert.Equal(t, "http://tts.internal:8000", cfg.Synthesis.ServiceURL)
	assert.Equal(t, 10, cfg.Synthesis.BatchSize)
	assert.Equal(t, 20, cfg.Synthesis.CallTimeoutSeconds)
	assert.InEpsilon(t, 0.1, cfg.Language.DensityThreshold, 0.001)
	assert.Equal(t, 20, cfg.Language.CountThreshold)
	assert.Equal(t, 3000, cfg.Language.DefaultChunkSize)
	assert.Equal(t, 1000, cfg.Language.SecondaryChunkSize)
	assert.Equal(t, "/usr/local/bin/tesseract", cfg.Extraction.TesseractBinary)
	assert.Equal(t, "eng+hin+mar", cfg.Extraction.OCRLanguages)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "VOICE_FILES", cfg.NATS.ObjectStoreBucket)
	assert.Equal(t, "/var/log/voice", cfg.Paths.BaseLogsDir)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, config.DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, int64(config.DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
	assert.Equal(t, config.ProviderGoogle, cfg.Synthesis.Provider)
	assert.Equal(t, 15, cfg.Synthesis.BatchSize)
	assert.InEpsilon(t, 0.05, cfg.Language.DensityThreshold, 0.001)
	assert.Equal(t, 15, cfg.Language.CountThreshold)
	assert.Equal(t, 4000, cfg.Language.DefaultChunkSize)
	assert.Equal(t, 1400, cfg.Language.SecondaryChunkSize)
	assert.Equal(t, "eng+hin", cfg.Extraction.OCRLanguages)
	assert.Equal(t, 10, cfg.Payment.TimeoutSeconds)
	assert.Equal(t, "hi-IN", cfg.Synthesis.SecondaryLanguage)
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.Synthesis.Provider = "polly"
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrUnknownProvider)
}

func TestValidate_RejectsNegativeChunkSize(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.Language.SecondaryChunkSize = -1
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrChunkSizeRange)
}

func TestIsStagingMerchant(t *testing.T) {
	t.Parallel()

	assert.True(t, config.IsStagingMerchant("SrctYa12345", "DEFAULT"))
	assert.True(t, config.IsStagingMerchant("LIVE0001", "WEBSTAGING"))
	assert.False(t, config.IsStagingMerchant("LIVE0001", "DEFAULT"))
}
