package domain

import (
	"strings"
	"unicode"
)

const maxPlayerNameLen = 50

// NormalizePlayerName validates and normalizes a raw player name. The name
// must be 1-50 characters after trimming, contain at least one letter, and
// consist only of letters, spaces, hyphens, apostrophes, and periods.
// Accepted names have whitespace runs collapsed to single spaces and each
// word title-cased. The function is pure and idempotent, so a client can
// compute the same preview the server stores.
func NormalizePlayerName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 || len(trimmed) > maxPlayerNameLen {
		return "", ErrInvalidPlayerName
	}

	hasLetter := false
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == ' ', r == '\t', r == '-', r == '\'', r == '.':
		default:
			return "", ErrInvalidPlayerName
		}
	}
	if !hasLetter {
		return "", ErrInvalidPlayerName
	}

	words := strings.Fields(trimmed)
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " "), nil
}

// titleCase uppercases the first character and lowercases the rest.
func titleCase(word string) string {
	runes := []rune(word)
	runes[0] = unicode.ToUpper(runes[0])
	for i := 1; i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
