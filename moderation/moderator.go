// Package moderation masks censored words in message bodies before they
// are persisted or fanned out.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// TextMapping links a normalized rune stream back to positions in the
// original text, so masking survives casing and separator tricks.
type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

// NewModerator initializes the Aho-Corasick automaton with a normalized version of the provided censored words list.
func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor identifies forbidden patterns and replaces the original characters
// with the censor rune while preserving spacing. It returns the sanitized
// text and the matched words.
func (m *Moderator) Censor(original string) (string, []string) {
	mapping := m.normalize(original)
	if len(mapping.Normalized) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	spans := m.matcher.MultiPatternSearch(mapping.Normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	var found []string
	for _, span := range spans {
		normStart := int(span.Pos)
		normEnd := normStart + len(span.Word)

		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}

		origStart := mapping.OrigIdx[normStart]
		lastCharOrigIdx := mapping.OrigIdx[normEnd-1]
		origEnd := lastCharOrigIdx + 1

		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		found = append(found, string(span.Word))
	}

	return string(origRunes), found
}

// normalize lowercases the text and strips separators, keeping a mapping
// from each normalized rune to its original index.
func (m *Moderator) normalize(original string) TextMapping {
	runes := []rune(original)
	mapping := TextMapping{
		Normalized: make([]rune, 0, len(runes)),
		OrigIdx:    make([]int, 0, len(runes)),
	}
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			mapping.Normalized = append(mapping.Normalized, unicode.ToLower(r))
			mapping.OrigIdx = append(mapping.OrigIdx, i)
		}
	}
	return mapping
}

func normalizeRunes(word []rune) []rune {
	normalized := make([]rune, 0, len(word))
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			normalized = append(normalized, unicode.ToLower(r))
		}
	}
	return normalized
}
