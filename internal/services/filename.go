package services

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeFilename makes a provider-supplied filename safe for a
// Content-Disposition header and a zip entry. The name is NFC-normalized and
// every rune outside [A-Za-z0-9._-] becomes '_'. Only an empty name falls
// back to subtitle_<fileID>.srt; whitespace is sanitized like anything else.
func SanitizeFilename(name string, fileID int64) string {
	if name == "" {
		return "subtitle_" + strconv.FormatInt(fileID, 10) + ".srt"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, norm.NFC.String(name))
}

// redactKey keeps the first three characters of a caller-supplied key.
func redactKey(key string) string {
	runes := []rune(key)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes) + "***"
}
