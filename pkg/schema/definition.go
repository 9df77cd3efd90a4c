package schema

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition is a handler described in YAML: its identity, conversation
// graph, and what it says at each continuation.
type Definition struct {
	ID      string            `mapstructure:"id"`
	Version domain.Version    `mapstructure:"version"`
	Domain  string            `mapstructure:"domain"`
	Info    ports.HandlerInfo `mapstructure:"info"`

	// Start edges open a conversation. An edge without a domain belongs to
	// the handler's own domain.
	Start []domain.Edge `mapstructure:"start"`
	Nodes []domain.Node `mapstructure:"nodes"`

	// Responses are keyed by continuation name.
	Responses   map[string]ResponseSpec `mapstructure:"responses"`
	Triggers    []TriggerSpec           `mapstructure:"triggers"`
	CrossDomain CrossDomainSpec         `mapstructure:"cross_domain"`
}

// ResponseSpec is what the handler does when a continuation runs.
// String fields are text/template sources.
type ResponseSpec struct {
	// Code is success, skip or failure. Empty means success.
	Code         string `mapstructure:"code"`
	Text         string `mapstructure:"text"`
	SSML         string `mapstructure:"ssml"`
	ErrorMessage string `mapstructure:"error_message"`

	NextTurn       domain.TurnMode `mapstructure:"next_turn"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	Continuation   string          `mapstructure:"continuation"`
	ResultNode     string          `mapstructure:"result_node"`

	// Slots the continuation needs, with their types. When one is missing
	// the handler skips, saying Missing if set.
	Slots   map[string]string `mapstructure:"slots"`
	Missing string            `mapstructure:"missing"`

	Session map[string]string `mapstructure:"session"`
	Profile map[string]string `mapstructure:"profile"`
	Invoke  *ActionSpec       `mapstructure:"invoke"`
}

// ResultCode parses Code.
func (r ResponseSpec) ResultCode() (domain.ResultCode, error) {
	if r.Code == "" {
		return domain.ResultSuccess, nil
	}
	var c domain.ResultCode
	if err := c.UnmarshalText([]byte(r.Code)); err != nil {
		return domain.ResultSkip, err
	}
	return c, nil
}

// Behavior returns the declared next-turn behavior.
func (r ResponseSpec) Behavior() domain.MultiTurnBehavior {
	return domain.MultiTurnBehavior{Mode: r.NextTurn, TimeoutSeconds: r.TimeoutSeconds}
}

// ActionSpec is an invoked dialog action.
type ActionSpec struct {
	Domain string            `mapstructure:"domain"`
	Intent string            `mapstructure:"intent"`
	Slots  map[string]string `mapstructure:"slots"`
}

// TriggerSpec bids on an ambiguous turn.
type TriggerSpec struct {
	Intent string             `mapstructure:"intent"`
	Signal domain.BoostSignal `mapstructure:"signal"`
	// RequireSlot, when set, only bids if the hypothesis carries the slot.
	RequireSlot string `mapstructure:"require_slot"`
	// Session values are prepared speculatively and reach Execute if the
	// handler wins.
	Session map[string]string `mapstructure:"session"`
}

// CrossDomainSpec describes hand-offs in both directions.
type CrossDomainSpec struct {
	// Accepts maps an intent this handler takes over to the slots it asks for.
	Accepts map[string][]string `mapstructure:"accepts"`
	// Provides maps a slot name to the template that fills it when another
	// domain asks.
	Provides map[string]string `mapstructure:"provides"`
	Callback domain.TurnMode   `mapstructure:"callback"`
}

// Identity returns the handler identity.
func (d *Definition) Identity() domain.HandlerIdentity {
	return domain.HandlerIdentity{ID: d.ID, Version: d.Version}
}

// Graph builds the conversation graph. A definition without start edges or
// nodes has no graph and is driven by explicit continuations.
func (d *Definition) Graph() *domain.ConversationGraph {
	if len(d.Start) == 0 && len(d.Nodes) == 0 {
		return nil
	}
	g := domain.NewConversationGraph()
	for _, e := range d.Start {
		g.AddStart(d.ownEdge(e))
	}
	for _, n := range d.Nodes {
		edges := make([]domain.Edge, len(n.Edges))
		for i, e := range n.Edges {
			edges[i] = d.ownEdge(e)
		}
		n.Edges = edges
		g.AddNode(n)
	}
	return g
}

func (d *Definition) ownEdge(e domain.Edge) domain.Edge {
	if e.Domain == "" {
		e.Domain = d.Domain
	}
	return e
}

// Continuations lists every continuation the graph can invoke.
func (d *Definition) Continuations() []string {
	seen := make(map[string]bool)
	add := func(c string) {
		if c != "" {
			seen[c] = true
		}
	}
	for _, e := range d.Start {
		add(e.Continuation)
	}
	for _, n := range d.Nodes {
		add(n.RetryHandler)
		for _, e := range n.Edges {
			if !e.Scope.IsExternal() {
				add(e.Continuation)
			}
		}
	}
	for _, r := range d.Responses {
		add(r.Continuation)
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Validate checks the definition for everything that would fail at runtime.
func (d *Definition) Validate() error {
	var errs []error
	fail := func(key, reason string) {
		errs = append(errs, &ValidationError{Key: key, Reason: reason})
	}

	if d.ID == "" {
		fail("id", "required")
	}
	if d.Domain == "" {
		fail("domain", "required")
	}
	if d.Version.IsZero() {
		fail("version", "required")
	}
	if g := d.Graph(); g != nil {
		if err := g.Validate(); err != nil {
			fail("graph", err.Error())
		}
	}
	for _, c := range d.Continuations() {
		if _, ok := d.Responses[c]; !ok {
			fail("responses."+c, "continuation has no response")
		}
	}

	names := make([]string, 0, len(d.Responses))
	for k := range d.Responses {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		r := d.Responses[name]
		if _, err := r.ResultCode(); err != nil {
			fail("responses."+name+".code", err.Error())
		}
		if _, err := ParseTypeMap(r.Slots); err != nil {
			fail("responses."+name+".slots", err.Error())
		}
		if r.Invoke != nil && (r.Invoke.Domain == "" || r.Invoke.Intent == "") {
			fail("responses."+name+".invoke", "needs domain and intent")
		}
	}
	for i, t := range d.Triggers {
		if t.Intent == "" {
			fail(fmt.Sprintf("triggers[%d].intent", i), "required")
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Parse decodes and validates a YAML handler definition.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse handler definition: %w", err)
	}
	def, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handler definition %q: %w", def.ID, err)
	}
	return def, nil
}

// LoadFile reads and parses a handler definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read handler definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Decode maps a generic document onto a Definition. Unknown keys are errors.
func Decode(raw map[string]any) (*Definition, error) {
	var def Definition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &def,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			versionHook,
			boostSignalHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode handler definition: %w", err)
	}
	return &def, nil
}

var (
	versionType = reflect.TypeOf(domain.Version{})
	signalType  = reflect.TypeOf(domain.BoostSignal(0))
)

// versionHook accepts unquoted YAML versions such as 1.2.
func versionHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != versionType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return domain.Version{Major: v}, nil
	case float64:
		return domain.ParseVersion(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return data, nil
}

func boostSignalHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != signalType || f.Kind() != reflect.String {
		return data, nil
	}
	switch data.(string) {
	case "boost":
		return domain.BoostUp, nil
	case "suppress":
		return domain.BoostSuppress, nil
	case "", "no_change":
		return domain.BoostNoChange, nil
	}
	return nil, fmt.Errorf("unknown trigger signal %q", data)
}
