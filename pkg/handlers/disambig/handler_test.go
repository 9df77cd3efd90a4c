package disambig_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/handlers/disambig"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frozenSession(t *testing.T, boosted ...string) *domain.DataStore {
	t.Helper()
	var hyps []*domain.RankedHypothesis
	for _, k := range boosted {
		d, i, ok := domain.SplitDomainIntent(k)
		require.True(t, ok)
		r := domain.NewRanked(domain.Hypothesis{Domain: d, Intent: i, Confidence: 0.9})
		r.Priority = domain.PriorityBoosted
		hyps = append(hyps, r)
	}
	hyps = append(hyps, domain.NewRanked(domain.Hypothesis{Domain: "music", Intent: "play", Confidence: 0.95}))

	store := domain.NewDataStore()
	require.NoError(t, (&domain.FrozenTurn{Hypotheses: hyps}).Freeze(store))
	return store
}

func services(session *domain.DataStore) *ports.Services {
	return &ports.Services{Logger: logging.NewNop(), Session: session}
}

func TestHandler_AsksThenSelects(t *testing.T) {
	h := disambig.New()
	svc := services(frozenSession(t, "weather/forecast", "timer/start"))
	ctx := context.Background()

	res, err := h.Execute(ctx, ports.Input{Hypothesis: domain.Hypothesis{Domain: "system", Intent: "disambiguate"}}, svc)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuccess, res.Code)
	assert.Equal(t, domain.TurnContinuesLocked, res.NextTurn.Mode)
	assert.Equal(t, disambig.ContinuationSelect, res.ContinuationName)
	assert.Equal(t, "Did you mean (1) weather forecast or (2) timer start?", res.Response.Text)

	res, err = h.Execute(ctx, ports.Input{
		Continuation: disambig.ContinuationSelect,
		Hypothesis:   domain.Hypothesis{Domain: "common", Intent: "side_speech", Utterance: "the second one"},
	}, svc)
	require.NoError(t, err)
	require.NotNil(t, res.InvokedAction)
	assert.Equal(t, "system", res.InvokedAction.Domain)
	assert.Equal(t, domain.IntentDisambiguationCallback, res.InvokedAction.Intent)
	assert.Equal(t, []domain.Slot{{Name: domain.SlotDisambiguatedDomainIntent, Value: "timer/start"}}, res.InvokedAction.Slots)
}

func TestHandler_GivesUpAfterMaxAttempts(t *testing.T) {
	h := disambig.New(disambig.WithMaxAttempts(2))
	svc := services(frozenSession(t, "weather/forecast", "timer/start"))
	ctx := context.Background()

	_, err := h.Execute(ctx, ports.Input{}, svc)
	require.NoError(t, err)

	garbled := ports.Input{
		Continuation: disambig.ContinuationSelect,
		Hypothesis:   domain.Hypothesis{Domain: "common", Intent: "side_speech", Utterance: "banana"},
	}
	res, err := h.Execute(ctx, garbled, svc)
	require.NoError(t, err)
	assert.Equal(t, disambig.ContinuationSelect, res.ContinuationName)
	assert.Contains(t, res.Response.Text, "Sorry")

	res, err = h.Execute(ctx, garbled, svc)
	require.NoError(t, err)
	assert.Equal(t, domain.BehaviorNone, res.NextTurn)
	assert.Nil(t, res.InvokedAction)
}

func TestHandler_SkipsWithoutCandidates(t *testing.T) {
	res, err := disambig.New().Execute(context.Background(), ports.Input{}, services(frozenSession(t, "weather/forecast")))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSkip, res.Code)
}

func TestHandler_Metadata(t *testing.T) {
	meta := disambig.New(disambig.WithDomain("sys")).Metadata()
	assert.Equal(t, "sys", meta.Domain)
	assert.Equal(t, disambig.ID, meta.Identity.ID)
	assert.Nil(t, meta.Graph)
}

func TestMatch(t *testing.T) {
	keys := []string{"weather/forecast", "timer/start"}
	tests := []struct {
		name   string
		answer domain.Hypothesis
		text   string
		want   string
		ok     bool
	}{
		{"recognized intent", domain.Hypothesis{Domain: "timer", Intent: "start"}, "", "timer/start", true},
		{"number", domain.Hypothesis{}, "1", "weather/forecast", true},
		{"ordinal", domain.Hypothesis{}, "The second, please.", "timer/start", true},
		{"domain name", domain.Hypothesis{Utterance: "the weather one"}, "", "weather/forecast", true},
		{"out of range", domain.Hypothesis{}, "3", "", false},
		{"nothing", domain.Hypothesis{Utterance: "hmm"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := disambig.Match(keys, tt.answer, tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
