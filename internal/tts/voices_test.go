package tts_test

import (
	"testing"

	"github.com/book-expert/voice-service/internal/tts"
	"github.com/stretchr/testify/assert"
)

func TestSelectVoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		language string
		gender   string
		expected string
	}{
		{language: "hi-IN", gender: "FEMALE", expected: "hi-IN-Neural2-D"},
		{language: "hi-IN", gender: "MALE", expected: "hi-IN-Wavenet-B"},
		{language: "en-US", gender: "FEMALE", expected: "en-US-Neural2-F"},
		{language: "en-US", gender: "male", expected: "en-US-Neural2-D"},
		{language: "en-IN", gender: "", expected: "en-IN-Neural2-D"},
		{language: "en-IN", gender: "MALE", expected: "en-IN-Wavenet-B"},
		{language: "fr-FR", gender: "FEMALE", expected: "fr-FR-Neural2-A"},
		{language: "fr-FR", gender: "MALE", expected: "fr-FR-Neural2-D"},
	}

	for _, testCase := range tests {
		t.Run(testCase.language+"/"+testCase.gender, func(t *testing.T) {
			t.Parallel()

			voice := tts.SelectVoice(testCase.language, testCase.gender)
			assert.Equal(t, testCase.expected, voice.Name)
			assert.Equal(t, testCase.language, voice.LanguageCode)
		})
	}
}

func TestNormalizeGender(t *testing.T) {
	t.Parallel()

	assert.Equal(t, tts.GenderMale, tts.NormalizeGender(" Male "))
	assert.Equal(t, tts.GenderFemale, tts.NormalizeGender(""))
	assert.Equal(t, tts.GenderFemale, tts.NormalizeGender("NEUTRAL"))
}

func TestLanguageFamilies(t *testing.T) {
	t.Parallel()

	assert.True(t, tts.IsHindi("hi-IN"))
	assert.False(t, tts.IsHindi("en-IN"))
	assert.True(t, tts.IsEnglish("en-GB"))
	assert.False(t, tts.IsEnglish("hi-IN"))
}
