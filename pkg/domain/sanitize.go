package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputSize bounds each text field of a turn request, in bytes.
const DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeText rejects text over limit bytes or with invalid UTF-8 and
// strips control characters other than newline, tab and carriage return.
// A limit of zero or less means DefaultMaxInputSize.
func SanitizeText(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	// Reject rather than truncate, so the stored state is deterministic.
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// Sanitize cleans the raw text, utterances and slot values in place.
func (r *TurnRequest) Sanitize(limit int) error {
	var err error
	if r.Text, err = SanitizeText(r.Text, limit); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	for i := range r.Hypotheses {
		h := &r.Hypotheses[i]
		if h.Utterance, err = SanitizeText(h.Utterance, limit); err != nil {
			return fmt.Errorf("hypotheses[%d].utterance: %w", i, err)
		}
		for j := range h.Slots {
			if h.Slots[j].Value, err = SanitizeText(h.Slots[j].Value, limit); err != nil {
				return fmt.Errorf("hypotheses[%d].slots[%s]: %w", i, h.Slots[j].Name, err)
			}
		}
	}
	return nil
}
