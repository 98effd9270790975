package text

import "unicode/utf8"

// Devanagari block bounds.
const (
	devanagariFirst = 0x0900
	devanagariLast  = 0x097F
)

// Script is the writing system that dominates a text.
type Script int

const (
	// ScriptDefault is Latin or any script without its own voice.
	ScriptDefault Script = iota
	// ScriptDevanagari is Hindi and related languages.
	ScriptDevanagari
)

func (s Script) String() string {
	if s == ScriptDevanagari {
		return "devanagari"
	}

	return "default"
}

// Detection is the outcome of script classification.
type Detection struct {
	Script          Script
	DevanagariCount int
	TotalLength     int
}

// Detector classifies text by Devanagari character density.
type Detector struct {
	densityThreshold float64
	countThreshold   int
}

// NewDetector creates a Detector. Text is Devanagari when the share of Devanagari
// characters exceeds densityThreshold or their count exceeds countThreshold.
func NewDetector(densityThreshold float64, countThreshold int) *Detector {
	return &Detector{
		densityThreshold: densityThreshold,
		countThreshold:   countThreshold,
	}
}

// Detect classifies text.
func (d *Detector) Detect(text string) Detection {
	total := utf8.RuneCountInString(text)
	devanagari := 0

	for _, r := range text {
		if r >= devanagariFirst && r <= devanagariLast {
			devanagari++
		}
	}

	detection := Detection{
		Script:          ScriptDefault,
		DevanagariCount: devanagari,
		TotalLength:     total,
	}

	if total == 0 {
		return detection
	}

	density := float64(devanagari) / float64(total)
	if density > d.densityThreshold || devanagari > d.countThreshold {
		detection.Script = ScriptDevanagari
	}

	return detection
}
