package audio_test

import (
	"strings"
	"testing"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTone(t *testing.T) {
	t.Parallel()

	long := len(strings.Repeat("a", 501))

	assert.Equal(t, audio.TONE_NARRATIVE, audio.ResolveTone("narrative", 10))
	assert.Equal(t, audio.TONE_CONVERSATIONAL, audio.ResolveTone("conversational", long))
	assert.Equal(t, audio.TONE_NARRATIVE, audio.ResolveTone("", long))
	assert.Equal(t, audio.TONE_CONVERSATIONAL, audio.ResolveTone("", 500))
	assert.Equal(t, audio.TONE_NARRATIVE, audio.ResolveTone("NARRATIVE", 1))
}

func TestSpeechConfig(t *testing.T) {
	t.Parallel()

	narrative := audio.SpeechConfig(audio.FORMAT_MP3, audio.TONE_NARRATIVE)
	assert.InEpsilon(t, 0.95, narrative.SpeakingRate, 0.001)
	assert.InEpsilon(t, 1.0, narrative.VolumeGainDB, 0.001)
	assert.Equal(t, "MP3", narrative.Encoding)

	conversational := audio.SpeechConfig(audio.FORMAT_MP3, audio.TONE_CONVERSATIONAL)
	assert.InEpsilon(t, 1.0, conversational.SpeakingRate, 0.001)

	require.NoError(t, audio.Validate(narrative))
	require.NoError(t, audio.Validate(conversational))
}

func TestDocumentConfig(t *testing.T) {
	t.Parallel()

	cfg := audio.DocumentConfig(audio.FORMAT_MP3)
	assert.InEpsilon(t, 0.95, cfg.SpeakingRate, 0.001)
	assert.InEpsilon(t, 2.0, cfg.VolumeGainDB, 0.001)
	require.NoError(t, audio.Validate(cfg))
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	valid := audio.DocumentConfig(audio.FORMAT_MP3)

	tests := []struct {
		name   string
		mutate func(cfg *core.AudioConfig)
	}{
		{name: "unknown encoding", mutate: func(cfg *core.AudioConfig) { cfg.Encoding = "FLAC" }},
		{name: "rate too low", mutate: func(cfg *core.AudioConfig) { cfg.SpeakingRate = 0.1 }},
		{name: "rate too high", mutate: func(cfg *core.AudioConfig) { cfg.SpeakingRate = 4.5 }},
		{name: "pitch too low", mutate: func(cfg *core.AudioConfig) { cfg.Pitch = -21 }},
		{name: "volume too high", mutate: func(cfg *core.AudioConfig) { cfg.VolumeGainDB = 17 }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			testCase.mutate(&cfg)

			err := audio.Validate(cfg)
			require.ErrorIs(t, err, audio.ErrInvalidAudioConfig)
		})
	}
}

func TestFormat_ContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audio/mpeg", audio.FORMAT_MP3.ContentType())
	assert.Equal(t, "audio/wav", audio.FORMAT_LINEAR16.ContentType())
	assert.Equal(t, "audio/ogg", audio.FORMAT_OGG_OPUS.ContentType())
}
