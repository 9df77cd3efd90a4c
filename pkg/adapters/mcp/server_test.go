package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	got domain.TurnRequest
	res *domain.TurnResult
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	f.got = req
	if f.res != nil {
		f.res.TraceID = req.TraceID
	}
	return f.res, f.err
}

func (f *fakeProcessor) Handlers() []ports.HandlerMetadata {
	return []ports.HandlerMetadata{{
		Identity: domain.HandlerIdentity{ID: "weather", Version: domain.Version{Major: 1, Minor: 1}},
		Domain:   "weather",
		Info:     ports.HandlerInfo{Name: "Weather"},
	}}
}

func TestRouteTurn_SingleHypothesis(t *testing.T) {
	proc := &fakeProcessor{res: &domain.TurnResult{
		Code:     domain.ResultSuccess,
		Response: domain.Response{Text: "Sunny in Lisbon."},
		Handler:  domain.HandlerIdentity{ID: "weather", Version: domain.Version{Major: 1, Minor: 1}},
		NextTurn: domain.BehaviorLocked,
	}}
	s := NewServer(proc)

	out, err := s.handleRouteTurn(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"user_id": "u1",
		"text":    "weather in lisbon",
		"domain":  "weather",
		"intent":  "forecast",
		"slots":   `{"city": "Lisbon", "day": "today"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "success", out.Code)
	assert.Equal(t, "Sunny in Lisbon.", out.Text)
	assert.Equal(t, "weather@1.1", out.Handler)
	assert.Equal(t, "locked", out.NextTurn)
	assert.NotEmpty(t, out.TraceID)

	assert.Equal(t, domain.ClientContext{UserID: "u1", ClientID: "mcp"}, proc.got.Client)
	assert.Equal(t, domain.InputProgrammatic, proc.got.InputMethod)
	require.Len(t, proc.got.Hypotheses, 1)
	assert.Equal(t, []domain.Slot{{Name: "city", Value: "Lisbon"}, {Name: "day", Value: "today"}}, proc.got.Hypotheses[0].Slots)
}

func TestRouteTurn_Hypotheses(t *testing.T) {
	proc := &fakeProcessor{res: &domain.TurnResult{Code: domain.ResultSkip}}
	s := NewServer(proc)

	out, err := s.handleRouteTurn(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"user_id":          "u1",
		"client_id":        "car",
		"new_conversation": true,
		"domain":           "ignored",
		"intent":           "ignored",
		"hypotheses":       `[{"domain":"music","intent":"play","confidence":0.7},{"domain":"radio","intent":"tune","confidence":0.6}]`,
	})
	require.NoError(t, err)

	assert.Equal(t, "skip", out.Code)
	assert.Empty(t, out.Handler)
	assert.True(t, proc.got.NewConversation)
	assert.Equal(t, "car", proc.got.Client.ClientID)
	require.Len(t, proc.got.Hypotheses, 2)
	assert.Equal(t, "radio", proc.got.Hypotheses[1].Domain)
}

func TestRouteTurn_Errors(t *testing.T) {
	s := NewServer(&fakeProcessor{err: errors.New("boom")})
	ctx := context.Background()

	_, err := s.handleRouteTurn(ctx, mcp.CallToolRequest{}, map[string]interface{}{})
	assert.ErrorContains(t, err, "user_id is required")

	_, err = s.handleRouteTurn(ctx, mcp.CallToolRequest{}, map[string]interface{}{"user_id": "u", "hypotheses": "[{"})
	assert.ErrorContains(t, err, "invalid hypotheses")

	_, err = s.handleRouteTurn(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"user_id": "u", "domain": "d", "intent": "i", "slots": "nope",
	})
	assert.ErrorContains(t, err, "invalid slots")

	_, err = s.handleRouteTurn(ctx, mcp.CallToolRequest{}, map[string]interface{}{"user_id": "u", "text": "\xff"})
	assert.ErrorIs(t, err, domain.ErrInvalidUTF8)

	_, err = s.handleRouteTurn(ctx, mcp.CallToolRequest{}, map[string]interface{}{"user_id": "u"})
	assert.ErrorContains(t, err, "boom")
}

func TestReadHandlers(t *testing.T) {
	s := NewServer(&fakeProcessor{})

	contents, err := s.readHandlers(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, HandlersURI, text.URI)

	var got []HandlerInfo
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	assert.Equal(t, []HandlerInfo{{ID: "weather", Version: "1.1", Domain: "weather", Name: "Weather"}}, got)
}
