// AngelaMos | 2026
// validation.go

package validation

import (
	"regexp"
	"strings"
)

var (
	emailPattern   = regexp.MustCompile(`(?i)^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	addressPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	urlPattern     = regexp.MustCompile(`(?i)https?://\S+`)
	scriptProtocol = regexp.MustCompile(`(?i)javascript:`)
	storeHandler   = regexp.MustCompile(`(?i)on\w+\s*=`)
	displayHandler = regexp.MustCompile(`(?i)on\w+=`)
)

// IsEmail reports whether s looks like a deliverable address with a TLD of
// at least two characters.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsAddress is the looser check used for broadcast recipients: something,
// an @, and a dotted domain.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

func HasMarkup(s string) bool {
	return tagPattern.MatchString(s)
}

func HasURL(s string) bool {
	return urlPattern.MatchString(s)
}

// HasRepeatedRun reports whether any character appears n or more times in a
// row.
func HasRepeatedRun(s string, n int) bool {
	if n <= 1 {
		return s != ""
	}

	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}

	return false
}

// Strip removes markup and script vectors from text bound for storage.
func Strip(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = scriptProtocol.ReplaceAllString(s, "")
	s = storeHandler.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Escape prepares text for display. Angle brackets are entity-escaped
// instead of removed.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = scriptProtocol.ReplaceAllString(s, "")
	s = displayHandler.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
