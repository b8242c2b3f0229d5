// internal/words/words.go
//
// Text rules for answers, guesses and display names.
//
// Responsibilities:
//   - Normalize answers and guesses to the stored uppercase form.
//   - Check the letters-only answer pattern (^[A-Za-z]+$).
//   - Check the display-name pattern (^[\w\s-]+$) and length cap.
//
// Constraints:
//   • Answers are ASCII letters only; comparison is case-insensitive.
//   • Lengths are counted in runes.

package words

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxWordLength caps answers and guesses.
	MaxWordLength = 50
	// MaxDisplayNameLength caps player display names.
	MaxDisplayNameLength = 50
	// MaxHintLength caps hint text.
	MaxHintLength = 500
)

var displayNamePattern = regexp.MustCompile(`^[\w\s-]+$`)

// Normalize trims and uppercases a word so it can be compared with stored answers.
func Normalize(w string) string {
	return strings.ToUpper(strings.TrimSpace(w))
}

// IsLetters reports whether w is non-empty and made only of ASCII letters.
func IsLetters(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// ValidAnswer reports whether a raw answer is acceptable before normalization.
func ValidAnswer(w string) bool {
	return IsLetters(w) && utf8.RuneCountInString(w) <= MaxWordLength
}

// NormalizeDisplayName trims surrounding whitespace from a display name.
func NormalizeDisplayName(name string) string {
	return strings.TrimSpace(name)
}

// ValidDisplayName enforces the display-name pattern and length cap.
func ValidDisplayName(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return false
	}
	return displayNamePattern.MatchString(name)
}
