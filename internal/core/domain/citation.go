package domain

import (
	"fmt"
	"strings"
)

// CitationStyle selects a bibliographic format.
type CitationStyle string

const (
	// StyleAPA is American Psychological Association style.
	StyleAPA CitationStyle = "apa"
	// StyleMLA is Modern Language Association style.
	StyleMLA CitationStyle = "mla"
	// StyleChicago is Chicago Manual of Style.
	StyleChicago CitationStyle = "chicago"
)

// Valid reports whether the style is supported.
func (s CitationStyle) Valid() bool {
	switch s {
	case StyleAPA, StyleMLA, StyleChicago:
		return true
	}
	return false
}

// ParseStyle normalises a style name. Matching is case-insensitive.
func ParseStyle(s string) (CitationStyle, error) {
	style := CitationStyle(strings.ToLower(strings.TrimSpace(s)))
	if !style.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCitationStyle, s)
	}
	return style, nil
}
