package tts

import (
	"context"
	"errors"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/book-expert/voice-service/internal/core"
	"google.golang.org/api/option"
)

// ErrUnknownEncoding indicates an audio encoding the API does not define.
var ErrUnknownEncoding = errors.New("unknown audio encoding")

// GoogleSynthesizer calls the Cloud Text-to-Speech API. One client is shared by
// every request; the client is safe for concurrent use.
type GoogleSynthesizer struct {
	client *texttospeech.Client
}

// NewGoogleSynthesizer creates the API client with application default credentials.
// A non-empty projectID is billed as the quota project.
func NewGoogleSynthesizer(ctx context.Context, projectID string) (*GoogleSynthesizer, error) {
	client, err := texttospeech.NewClient(ctx, clientOptions(projectID)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	return &GoogleSynthesizer{client: client}, nil
}

// SynthesizeSpeech implements core.Synthesizer.
func (g *GoogleSynthesizer) SynthesizeSpeech(
	ctx context.Context,
	text string,
	voice core.Voice,
	audio core.AudioConfig,
) ([]byte, error) {
	req, err := buildSpeechRequest(text, voice, audio)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text-to-speech request failed: %w", err)
	}

	return resp.GetAudioContent(), nil
}

// Close releases the API connection.
func (g *GoogleSynthesizer) Close() error {
	err := g.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close text-to-speech client: %w", err)
	}

	return nil
}

func clientOptions(projectID string) []option.ClientOption {
	if projectID == "" {
		return nil
	}

	return []option.ClientOption{option.WithQuotaProject(projectID)}
}

func buildSpeechRequest(
	text string,
	voice core.Voice,
	audio core.AudioConfig,
) (*texttospeechpb.SynthesizeSpeechRequest, error) {
	encoding, found := texttospeechpb.AudioEncoding_value[audio.Encoding]
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, audio.Encoding)
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: voice.LanguageCode,
			Name:         voice.Name,
			SsmlGender:   ssmlGender(voice.Gender),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding(encoding),
			SpeakingRate:  audio.SpeakingRate,
			Pitch:         audio.Pitch,
			VolumeGainDb:  audio.VolumeGainDB,
		},
	}, nil
}

func ssmlGender(gender string) texttospeechpb.SsmlVoiceGender {
	if NormalizeGender(gender) == GenderMale {
		return texttospeechpb.SsmlVoiceGender_MALE
	}

	return texttospeechpb.SsmlVoiceGender_FEMALE
}
