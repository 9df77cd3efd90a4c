package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUtterance(t *testing.T) {
	hyps, err := ParseUtterance("booking.book party_size=4 @0.8 | weather.forecast city=Lisbon")
	require.NoError(t, err)
	require.Len(t, hyps, 2)

	assert.Equal(t, domain.Hypothesis{
		Domain:     "booking",
		Intent:     "book",
		Confidence: 0.8,
		Slots:      []domain.Slot{{Name: "party_size", Value: "4"}},
		Source:     "chat",
	}, hyps[0])
	assert.Equal(t, "weather", hyps[1].Domain)
	assert.Equal(t, 1.0, hyps[1].Confidence)
}

func TestParseUtterance_Errors(t *testing.T) {
	for _, line := range []string{
		"book",
		".book",
		"booking.",
		"booking.book party_size",
		"booking.book @high",
		"booking.book @1.5",
		"booking.book |",
	} {
		_, err := ParseUtterance(line)
		assert.Error(t, err, line)
	}
}

func TestChat_Run(t *testing.T) {
	ctx := context.Background()
	dir, _ := writeHandler(t)
	eng, err := parley.New(ctx, dir)
	require.NoError(t, err)
	defer eng.Close(ctx)

	in := strings.NewReader(strings.Join([]string{
		"/handlers",
		"booking.book party_size=4",
		"booking.set_time time=8pm",
		"not-a-hypothesis",
		"/new",
		"/quit",
		"booking.book",
	}, "\n"))
	var out bytes.Buffer

	chat := &Chat{
		Proc:   eng,
		Client: domain.ClientContext{UserID: "u1", ClientID: "terminal"},
		Wait:   eng.Wait,
	}
	require.NoError(t, chat.Run(ctx, in, &out))

	got := out.String()
	assert.Contains(t, got, "`booking@1.0` (booking)")
	assert.Contains(t, got, "What time?")
	assert.Contains(t, got, "next: locked")
	assert.Contains(t, got, "Booked for 4 at 8pm.")
	assert.Contains(t, got, "expected domain.intent")
	assert.Contains(t, got, "new conversation")
	assert.Equal(t, 1, strings.Count(got, "What time?"), "input after /quit is not read")
}

func TestChat_RunEOF(t *testing.T) {
	var out bytes.Buffer
	chat := &Chat{Proc: nopProcessor{}}
	require.NoError(t, chat.Run(context.Background(), strings.NewReader(""), &out))
	assert.Equal(t, "> \n", out.String())
}

type nopProcessor struct{}

func (nopProcessor) Process(context.Context, domain.TurnRequest) (*domain.TurnResult, error) {
	return &domain.TurnResult{}, nil
}

func (nopProcessor) Handlers() []ports.HandlerMetadata { return nil }
