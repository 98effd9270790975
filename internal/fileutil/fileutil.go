// Package fileutil maps between file names and content types and formats file
// details for display.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Common constants.
const (
	defaultDirPermissions  = 0o750
	dot                    = "."
	invalidCharReplacement = "_"
	mimeOctetStream        = "application/octet-stream"
	extBinary              = ".bin"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

// Content types the service reads or writes.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeODT  = "application/vnd.oasis.opendocument.text"
	MimeText = "text/plain"
	MimeMD   = "text/markdown"
	MimeHTML = "text/html"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
	MimeTIFF = "image/tiff"
	MimeMP3  = "audio/mpeg"
	MimeWAV  = "audio/wav"
	MimeOGG  = "audio/ogg"
)

var mimeByExtension = map[string]string{
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".doc":  MimeDOC,
	".pptx": MimePPTX,
	".odt":  MimeODT,
	".txt":  MimeText,
	".md":   MimeMD,
	".htm":  MimeHTML,
	".html": MimeHTML,
	".png":  MimePNG,
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
	".webp": MimeWebP,
	".tif":  MimeTIFF,
	".tiff": MimeTIFF,
	".mp3":  MimeMP3,
	".wav":  MimeWAV,
	".ogg":  MimeOGG,
}

var extensionByMime = map[string]string{
	MimePNG:  ".png",
	MimeJPEG: ".jpg",
	MimeWebP: ".webp",
	MimeTIFF: ".tiff",
	MimeMP3:  ".mp3",
	MimeWAV:  ".wav",
	MimeOGG:  ".ogg",
	MimePDF:  ".pdf",
	MimeText: ".txt",
}

// MimeTypeFor returns the content type for a file name, or application/octet-stream
// when the extension is unknown.
func MimeTypeFor(filename string) string {
	mimeType, ok := mimeByExtension[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return mimeOctetStream
	}

	return mimeType
}

// ExtensionFor returns the file extension, with its dot, for a content type. Parameters
// such as "; charset=utf-8" are ignored. Unknown types map to ".bin".
func ExtensionFor(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")

	ext, ok := extensionByMime[strings.ToLower(strings.TrimSpace(base))]
	if !ok {
		return extBinary
	}

	return ext
}

// IsAudioFile checks if a filename has an audio extension the service produces.
func IsAudioFile(filename string) bool {
	return strings.HasPrefix(MimeTypeFor(filename), "audio/")
}

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, mkdirErr)
		}
	}

	return nil
}

// AudioFileName derives an output name from a document name: "Report v2.pdf" becomes
// "Report v2.mp3" with unsafe characters replaced.
func AudioFileName(documentName, audioExt string) string {
	base := strings.TrimSuffix(filepath.Base(documentName), filepath.Ext(documentName))
	if base == "" || base == dot {
		base = "speech"
	}

	return SanitizeFilename(base) + audioExt
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatFileSize formats a file size in a human-readable string (e.g., "1.2 GB", "500.5
// MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}
