package tts

import (
	"strings"

	"github.com/book-expert/voice-service/internal/core"
)

// Voice genders accepted by the synthesis API.
const (
	GenderFemale = "FEMALE"
	GenderMale   = "MALE"
)

// Fallback voice name suffixes for languages without a mapped voice.
const (
	fallbackFemaleSuffix = "-Neural2-A"
	fallbackMaleSuffix   = "-Neural2-D"
)

// voiceNames maps a language code to its voice per gender.
var voiceNames = map[string]map[string]string{
	"hi-IN": {
		GenderFemale: "hi-IN-Neural2-D",
		GenderMale:   "hi-IN-Wavenet-B",
	},
	"en-US": {
		GenderFemale: "en-US-Neural2-F",
		GenderMale:   "en-US-Neural2-D",
	},
	"en-IN": {
		GenderFemale: "en-IN-Neural2-D",
		GenderMale:   "en-IN-Wavenet-B",
	},
}

// NormalizeGender returns MALE or FEMALE. Anything that is not male reads as female.
func NormalizeGender(gender string) string {
	if strings.EqualFold(strings.TrimSpace(gender), GenderMale) {
		return GenderMale
	}

	return GenderFemale
}

// SelectVoice returns the voice for a language and gender.
func SelectVoice(languageCode, gender string) core.Voice {
	normalized := NormalizeGender(gender)

	name, found := voiceNames[languageCode][normalized]
	if !found {
		suffix := fallbackFemaleSuffix
		if normalized == GenderMale {
			suffix = fallbackMaleSuffix
		}

		name = languageCode + suffix
	}

	return core.Voice{
		LanguageCode: languageCode,
		Name:         name,
		Gender:       normalized,
	}
}

// IsHindi reports whether a language code names Hindi.
func IsHindi(languageCode string) bool {
	return strings.HasPrefix(strings.ToLower(languageCode), "hi")
}

// IsEnglish reports whether a language code names English.
func IsEnglish(languageCode string) bool {
	return strings.HasPrefix(strings.ToLower(languageCode), "en")
}
