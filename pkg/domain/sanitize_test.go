package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
		err   error
	}{
		{name: "clean", input: "book a table", want: "book a table"},
		{name: "keeps whitespace controls", input: "a\tb\r\nc", want: "a\tb\r\nc"},
		{name: "strips ansi and bell", input: "\x1b[31mred\x1b[0m\a", want: "[31mred[0m"},
		{name: "strips null", input: "a\x00b", want: "ab"},
		{name: "unicode", input: "olá 👋", want: "olá 👋"},
		{name: "invalid utf8", input: "bad \xff", err: ErrInvalidUTF8},
		{name: "too large", input: strings.Repeat("a", 11), limit: 10, err: ErrInputTooLarge},
		{name: "default limit", input: strings.Repeat("a", DefaultMaxInputSize+1), err: ErrInputTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeText(tt.input, tt.limit)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTurnRequest_Sanitize(t *testing.T) {
	req := TurnRequest{
		Text: "hi\x07",
		Hypotheses: []Hypothesis{{
			Domain: "d", Intent: "i",
			Utterance: "\x1bhi",
			Slots:     []Slot{{Name: "city", Value: "Lis\x00bon"}},
		}},
	}
	require.NoError(t, req.Sanitize(0))
	assert.Equal(t, "hi", req.Text)
	assert.Equal(t, "hi", req.Hypotheses[0].Utterance)
	assert.Equal(t, "Lisbon", req.Hypotheses[0].Slots[0].Value)

	req.Hypotheses[0].Slots[0].Value = strings.Repeat("x", 20)
	err := req.Sanitize(10)
	assert.ErrorIs(t, err, ErrInputTooLarge)
	assert.ErrorContains(t, err, "slots[city]")
}
