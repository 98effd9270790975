// Package audio provides the audio settings sent with every synthesis call and
// their validation.
//
// NOTE: Ranges follow the limits published for the Cloud Text-to-Speech AudioConfig.
package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
)

// Prosody limits accepted by the synthesis API.
const (
	MIN_SPEAKING_RATE = 0.25
	MAX_SPEAKING_RATE = 4.0
	MAX_PITCH         = 20.0
	MIN_VOLUME_GAIN   = -96.0
	MAX_VOLUME_GAIN   = 16.0
)

// Tone-specific prosody.
const (
	NARRATIVE_SPEAKING_RATE      = 0.95
	CONVERSATIONAL_SPEAKING_RATE = 1.0
	SPEECH_VOLUME_GAIN           = 1.0
	DOCUMENT_VOLUME_GAIN         = 2.0
	NEUTRAL_PITCH                = 0.0
)

// NARRATIVE_LENGTH is the text length above which an untoned request is read as narration.
const NARRATIVE_LENGTH = 500

// Constants for error messages and formats.
const (
	ERR_FMT_SPEAKING_RATE_RANGE = "%w: speaking rate must be between %.2f and %.1f"
	ERR_FMT_PITCH_RANGE         = "%w: pitch must be between -%.1f and %.1f"
	ERR_FMT_VOLUME_RANGE        = "%w: volume gain must be between %.1f and %.1f dB"
	ERR_FMT_ENCODING            = "%w: unsupported encoding %q"
)

// Common errors for the audio package.
var (
	ErrInvalidAudioConfig = errors.New("invalid audio config")
)

// Format represents supported audio encodings.
type Format string

const (
	FORMAT_MP3      Format = "MP3"
	FORMAT_LINEAR16 Format = "LINEAR16"
	FORMAT_OGG_OPUS Format = "OGG_OPUS"
	FORMAT_MULAW    Format = "MULAW"
	FORMAT_ALAW     Format = "ALAW"
)

// ContentType returns the HTTP media type for the encoding.
func (f Format) ContentType() string {
	switch f {
	case FORMAT_LINEAR16:
		return "audio/wav"
	case FORMAT_OGG_OPUS:
		return "audio/ogg"
	case FORMAT_MULAW, FORMAT_ALAW:
		return "audio/basic"
	default:
		return "audio/mpeg"
	}
}

// Tone selects the reading style of a live speech request.
type Tone string

const (
	TONE_NARRATIVE      Tone = "narrative"
	TONE_CONVERSATIONAL Tone = "conversational"
)

// ResolveTone picks narration for an explicit narrative tone, or for long text when no
// conversational tone was requested.
func ResolveTone(requested string, textLength int) Tone {
	switch Tone(strings.ToLower(requested)) {
	case TONE_NARRATIVE:
		return TONE_NARRATIVE
	case TONE_CONVERSATIONAL:
		return TONE_CONVERSATIONAL
	}

	if textLength > NARRATIVE_LENGTH {
		return TONE_NARRATIVE
	}

	return TONE_CONVERSATIONAL
}

// SpeechConfig returns the audio settings for a live speech request.
func SpeechConfig(encoding Format, tone Tone) core.AudioConfig {
	rate := CONVERSATIONAL_SPEAKING_RATE
	if tone == TONE_NARRATIVE {
		rate = NARRATIVE_SPEAKING_RATE
	}

	return core.AudioConfig{
		Encoding:     string(encoding),
		SpeakingRate: rate,
		Pitch:        NEUTRAL_PITCH,
		VolumeGainDB: SPEECH_VOLUME_GAIN,
	}
}

// DocumentConfig returns the audio settings for reading a whole document.
func DocumentConfig(encoding Format) core.AudioConfig {
	return core.AudioConfig{
		Encoding:     string(encoding),
		SpeakingRate: NARRATIVE_SPEAKING_RATE,
		Pitch:        NEUTRAL_PITCH,
		VolumeGainDB: DOCUMENT_VOLUME_GAIN,
	}
}

// Validate checks that audio settings are within the limits of the synthesis API.
func Validate(cfg core.AudioConfig) error {
	encodingErr := validateEncoding(cfg.Encoding)
	if encodingErr != nil {
		return encodingErr
	}

	rateErr := validateSpeakingRate(cfg.SpeakingRate)
	if rateErr != nil {
		return rateErr
	}

	pitchErr := validatePitch(cfg.Pitch)
	if pitchErr != nil {
		return pitchErr
	}

	volumeErr := validateVolumeGain(cfg.VolumeGainDB)
	if volumeErr != nil {
		return volumeErr
	}

	return nil
}

//
// Validation Helpers
//

func validateEncoding(encoding string) error {
	switch Format(encoding) {
	case FORMAT_MP3, FORMAT_LINEAR16, FORMAT_OGG_OPUS, FORMAT_MULAW, FORMAT_ALAW:
		return nil
	default:
		return fmt.Errorf(ERR_FMT_ENCODING, ErrInvalidAudioConfig, encoding)
	}
}

func validateSpeakingRate(rate float64) error {
	if rate < MIN_SPEAKING_RATE || rate > MAX_SPEAKING_RATE {
		return fmt.Errorf(
			ERR_FMT_SPEAKING_RATE_RANGE,
			ErrInvalidAudioConfig,
			MIN_SPEAKING_RATE,
			MAX_SPEAKING_RATE,
		)
	}

	return nil
}

func validatePitch(pitch float64) error {
	if pitch < -MAX_PITCH || pitch > MAX_PITCH {
		return fmt.Errorf(ERR_FMT_PITCH_RANGE, ErrInvalidAudioConfig, MAX_PITCH, MAX_PITCH)
	}

	return nil
}

func validateVolumeGain(gain float64) error {
	if gain < MIN_VOLUME_GAIN || gain > MAX_VOLUME_GAIN {
		return fmt.Errorf(ERR_FMT_VOLUME_RANGE, ErrInvalidAudioConfig, MIN_VOLUME_GAIN, MAX_VOLUME_GAIN)
	}

	return nil
}
