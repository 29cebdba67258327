// Package validate checks user-supplied text before it reaches storage.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrInvalidUTF8       = errors.New("string is not valid UTF-8")
)

// StringConstraints defines validation constraints for a string.
// Lengths count runes, not bytes. Zero means no bound.
type StringConstraints struct {
	MinLength  int
	MaxLength  int
	AllowEmpty bool
	TrimSpace  bool

	// AllowNewlines permits \n, \r and \t. Every other control rune is rejected.
	AllowNewlines bool
}

// String validates s against c and returns the (optionally trimmed) value.
func String(s string, c StringConstraints) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, c.MaxLength)
	}

	for _, r := range s {
		if !unicode.IsControl(r) {
			continue
		}
		if c.AllowNewlines && (r == '\n' || r == '\r' || r == '\t') {
			continue
		}
		return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
	}
	return s, nil
}

// PostContent validates post text: required, trimmed, at most maxLength
// characters, multi-line allowed.
func PostContent(content string, maxLength int) (string, error) {
	return String(content, StringConstraints{
		MinLength:     1,
		MaxLength:     maxLength,
		TrimSpace:     true,
		AllowNewlines: true,
	})
}
