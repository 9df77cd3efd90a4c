package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booking() *dsl.Builder {
	b := dsl.New("booking", "1.2").Describe("Booking", "Table reservations")
	b.Start("book", "ask_time", "start")
	b.Add("ask_time").
		On("set_time", "", "confirm").
		Handoff("weather", "weather", "forecast", "handoff").
		Retry("reprompt")
	return b.
		Respond("start", dsl.Say("What time?").Locked().Slot("party_size", "int").Remember("party", "{{.party_size}}")).
		Respond("confirm", dsl.Say("Booked for {{.session.party}} at {{.time}}.")).
		Respond("reprompt", dsl.Say("Sorry, what time?").Locked()).
		Respond("handoff", dsl.Skip())
}

func TestBuilder_Definition(t *testing.T) {
	def := booking().Definition()

	assert.Equal(t, "booking", def.Domain)
	assert.Equal(t, domain.Version{Major: 1, Minor: 2}, def.Version)
	assert.Equal(t, "Booking", def.Info.Name)
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, "reprompt", def.Nodes[0].RetryHandler)
	require.Len(t, def.Nodes[0].Edges, 2)
	assert.Equal(t, domain.ScopeExternal, def.Nodes[0].Edges[1].Scope)
	assert.Equal(t, "skip", def.Responses["handoff"].Code)
	assert.NoError(t, def.Validate())

	g := def.Graph()
	require.NotNil(t, g)
	assert.True(t, g.HasStartNode("booking", "book"))
	assert.Equal(t, "confirm", g.NextContinuation("ask_time", "booking", "set_time"))
}

func TestBuilder_AddReturnsExistingNode(t *testing.T) {
	b := dsl.New("n", "1")
	b.Add("a").On("x", "", "c")
	b.Add("a").On("y", "", "c")

	def := b.Definition()
	require.Len(t, def.Nodes, 1)
	assert.Len(t, def.Nodes[0].Edges, 2)
}

func TestBuilder_Errors(t *testing.T) {
	_, err := dsl.New("bad", "one").Build()
	assert.ErrorContains(t, err, "invalid version")

	_, err = dsl.New("broken", "1.0").Start("go", "missing", "run").Build()
	assert.ErrorContains(t, err, "failed to build handler")

	_, err = dsl.New("tmpl", "1.0").
		Start("go", "", "run").
		Respond("run", dsl.Say("{{.unclosed")).
		Build()
	assert.Error(t, err)
}

func TestBuilder_DrivesEngine(t *testing.T) {
	h, err := booking().Build()
	require.NoError(t, err)

	ctx := context.Background()
	eng, err := parley.New(ctx, "", parley.WithHandlers(h))
	require.NoError(t, err)
	defer eng.Close(ctx)

	client := domain.ClientContext{UserID: "u1", ClientID: "c1"}
	res, err := eng.Process(ctx, domain.TurnRequest{Client: client, Hypotheses: []domain.Hypothesis{{
		Domain: "booking", Intent: "book", Confidence: 0.9,
		Slots: []domain.Slot{{Name: "party_size", Value: "3"}},
	}}})
	require.NoError(t, err)
	eng.Wait()
	assert.Equal(t, "What time?", res.Response.Text)
	assert.Equal(t, "booking@1.2", res.Handler.String())

	res, err = eng.Process(ctx, domain.TurnRequest{Client: client, Hypotheses: []domain.Hypothesis{{
		Domain: "booking", Intent: "set_time", Confidence: 0.9,
		Slots: []domain.Slot{{Name: "time", Value: "7pm"}},
	}}})
	require.NoError(t, err)
	eng.Wait()
	assert.Equal(t, "Booked for 3 at 7pm.", res.Response.Text)
}
