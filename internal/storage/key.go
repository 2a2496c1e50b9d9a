package storage

import (
	"regexp"
	"strings"
)

var (
	// The resumable-upload transport prefixes stored filenames with a random
	// 32-hex-char identifier; it is stripped so the canonical name matches
	// what the uploader submitted.
	transportIDPrefix = regexp.MustCompile(`^[0-9a-f]{32}[+_-]`)

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)
)

// GenerateKey derives the canonical storage key for an upload. It is the
// single normalization point for both backends: unsafe characters are
// replaced and the transport's randomized identifier prefix is removed.
func GenerateKey(clientCode, projectName, filename string) string {
	return sanitizeSegment(clientCode) + "/" + sanitizeSegment(projectName) + "/" + SanitizeFilename(filename)
}

// SanitizeFilename strips the transport id prefix and unsafe characters from
// an uploaded filename
func SanitizeFilename(filename string) string {
	name := transportIDPrefix.ReplaceAllString(filename, "")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "unnamed"
	}
	return name
}

func sanitizeSegment(segment string) string {
	s := unsafeChars.ReplaceAllString(segment, "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.Trim(s, "._")
	if s == "" {
		s = "unknown"
	}
	return s
}
