// Package scripted runs handlers described by YAML definitions.
//
// A scripted handler answers each continuation with the response its
// definition declares. Response fields are Go templates rendered against the
// hypothesis slots, the conversation session ("session"), the user's local
// profile ("profile") and turn metadata ("sys").
package scripted

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/schema"
)

// GlobalPrefix routes a profile write to the global profile.
const GlobalPrefix = "global."

// Handler is a ports.Handler compiled from a schema.Definition.
type Handler struct {
	ports.BaseHandler

	def       *schema.Definition
	graph     *domain.ConversationGraph
	responses map[string]*response
	triggers  []trigger
	provides  map[string]*template.Template
}

type response struct {
	code    domain.ResultCode
	spec    schema.ResponseSpec
	slots   schema.Schema
	text    *template.Template
	ssml    *template.Template
	errMsg  *template.Template
	missing *template.Template
	session map[string]*template.Template
	profile map[string]*template.Template
	invoke  map[string]*template.Template
}

type trigger struct {
	spec    schema.TriggerSpec
	session map[string]*template.Template
}

// New compiles a definition. The definition is validated first.
func New(def *schema.Definition) (*Handler, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handler definition %q: %w", def.ID, err)
	}

	h := &Handler{
		def:       def,
		graph:     def.Graph(),
		responses: make(map[string]*response, len(def.Responses)),
	}

	for name, spec := range def.Responses {
		r, err := compileResponse(name, spec)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", def.ID, err)
		}
		h.responses[name] = r
	}

	for i, ts := range def.Triggers {
		session, err := compileMap(fmt.Sprintf("triggers[%d].session", i), ts.Session)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", def.ID, err)
		}
		h.triggers = append(h.triggers, trigger{spec: ts, session: session})
	}

	provides, err := compileMap("cross_domain.provides", def.CrossDomain.Provides)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", def.ID, err)
	}
	h.provides = provides

	return h, nil
}

func compileResponse(name string, spec schema.ResponseSpec) (*response, error) {
	code, err := spec.ResultCode()
	if err != nil {
		return nil, fmt.Errorf("response %s: %w", name, err)
	}
	slots, err := schema.ParseTypeMap(spec.Slots)
	if err != nil {
		return nil, fmt.Errorf("response %s: %w", name, err)
	}

	r := &response{code: code, spec: spec, slots: slots}
	prefix := "responses." + name
	if r.text, err = compile(prefix+".text", spec.Text); err != nil {
		return nil, err
	}
	if r.ssml, err = compile(prefix+".ssml", spec.SSML); err != nil {
		return nil, err
	}
	if r.errMsg, err = compile(prefix+".error_message", spec.ErrorMessage); err != nil {
		return nil, err
	}
	if r.missing, err = compile(prefix+".missing", spec.Missing); err != nil {
		return nil, err
	}
	if r.session, err = compileMap(prefix+".session", spec.Session); err != nil {
		return nil, err
	}
	if r.profile, err = compileMap(prefix+".profile", spec.Profile); err != nil {
		return nil, err
	}
	if spec.Invoke != nil {
		if r.invoke, err = compileMap(prefix+".invoke.slots", spec.Invoke.Slots); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func compile(name, src string) (*template.Template, error) {
	if src == "" {
		return nil, nil
	}
	t, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return t, nil
}

func compileMap(prefix string, src map[string]string) (map[string]*template.Template, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out := make(map[string]*template.Template, len(src))
	for k, v := range src {
		t, err := compile(prefix+"."+k, v)
		if err != nil {
			return nil, err
		}
		out[k] = t
	}
	return out, nil
}

// Definition returns the definition the handler was compiled from.
func (h *Handler) Definition() *schema.Definition {
	return h.def
}

// Metadata implements ports.Handler.
func (h *Handler) Metadata() ports.HandlerMetadata {
	info := h.def.Info
	if info.Name == "" {
		info.Name = h.def.ID
	}
	return ports.HandlerMetadata{
		Identity: h.def.Identity(),
		Domain:   h.def.Domain,
		Graph:    h.graph,
		Info:     info,
	}
}

// Execute implements ports.Handler.
func (h *Handler) Execute(ctx context.Context, in ports.Input, svc *ports.Services) (*domain.HandlerResult, error) {
	r, ok := h.responses[in.Continuation]
	if !ok {
		svc.Logger.Warn("No response for continuation", "continuation", in.Continuation)
		return &domain.HandlerResult{Code: domain.ResultSkip}, nil
	}

	data := templateData(in, svc)

	if len(r.slots) > 0 {
		typed, err := schema.Validate(r.slots, slotValues(in.Hypothesis))
		if err != nil {
			missing := schema.Missing(r.slots, slotValues(in.Hypothesis))
			svc.Logger.Info("Continuation lacks slots", "continuation", in.Continuation, "missing", missing, "err", err)
			text, rerr := render(r.missing, data)
			if rerr != nil {
				return nil, rerr
			}
			return &domain.HandlerResult{Code: domain.ResultSkip, Response: domain.Response{Text: text}}, nil
		}
		for k, v := range typed {
			data[k] = v
		}
	}

	if err := writeAll(r.session, data, svc.Session.PutString); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}
	if err := h.writeProfile(r.profile, data, svc.Profiles); err != nil {
		return nil, err
	}

	res := &domain.HandlerResult{
		Code:             r.code,
		NextTurn:         r.spec.Behavior(),
		ContinuationName: r.spec.Continuation,
		ResultNode:       r.spec.ResultNode,
	}
	var err error
	if res.Response.Text, err = render(r.text, data); err != nil {
		return nil, err
	}
	if res.Response.SSML, err = render(r.ssml, data); err != nil {
		return nil, err
	}
	if res.ErrorMessage, err = render(r.errMsg, data); err != nil {
		return nil, err
	}

	if inv := r.spec.Invoke; inv != nil {
		action := &domain.DialogAction{Domain: inv.Domain, Intent: inv.Intent}
		for _, name := range sortedKeys(r.invoke) {
			v, err := render(r.invoke[name], data)
			if err != nil {
				return nil, err
			}
			action.Slots = append(action.Slots, domain.Slot{Name: name, Value: v, Format: domain.SlotInvoked})
		}
		res.InvokedAction = action
	}

	return res, nil
}

func (h *Handler) writeProfile(tmpls map[string]*template.Template, data map[string]any, p domain.UserProfiles) error {
	for _, key := range sortedKeys(tmpls) {
		v, err := render(tmpls[key], data)
		if err != nil {
			return err
		}
		store, name := p.Local, key
		if strings.HasPrefix(key, GlobalPrefix) {
			store, name = p.Global, strings.TrimPrefix(key, GlobalPrefix)
		}
		if store == nil {
			return fmt.Errorf("failed to write profile %q: no profile store", key)
		}
		if err := store.PutString(name, v); err != nil {
			return fmt.Errorf("failed to write profile %q: %w", key, err)
		}
	}
	return nil
}

// Trigger implements ports.Handler. The first trigger whose intent and
// required slot match decides the signal.
func (h *Handler) Trigger(ctx context.Context, in ports.Input, svc *ports.Services) (domain.BoostSignal, error) {
	for _, t := range h.triggers {
		if t.spec.Intent != in.Hypothesis.Intent {
			continue
		}
		if t.spec.RequireSlot != "" {
			if _, ok := in.Hypothesis.Slot(t.spec.RequireSlot); !ok {
				continue
			}
		}
		if err := writeAll(t.session, templateData(in, svc), svc.Session.PutString); err != nil {
			return domain.BoostNoChange, fmt.Errorf("failed to prepare side effects: %w", err)
		}
		return t.spec.Signal, nil
	}
	return domain.BoostNoChange, nil
}

// CrossDomainRequest implements ports.Handler.
func (h *Handler) CrossDomainRequest(ctx context.Context, targetIntent string) (*ports.CrossDomainRequest, error) {
	slots, ok := h.def.CrossDomain.Accepts[targetIntent]
	if !ok {
		return nil, nil
	}
	return &ports.CrossDomainRequest{RequestedSlots: append([]string(nil), slots...)}, nil
}

// CrossDomainResponse implements ports.Handler. Slots this handler cannot
// provide are left out; providing none declines the hand-off.
func (h *Handler) CrossDomainResponse(ctx context.Context, cdc ports.CrossDomainContext, svc *ports.Services) (*ports.CrossDomainResponse, error) {
	in := ports.Input{}
	if n := len(cdc.PastTurns); n > 0 {
		in.Hypothesis = cdc.PastTurns[n-1]
	}
	data := templateData(in, svc)

	resp := &ports.CrossDomainResponse{
		CallbackBehavior: domain.MultiTurnBehavior{Mode: h.def.CrossDomain.Callback},
	}
	for _, name := range cdc.RequestedSlots {
		t, ok := h.provides[name]
		if !ok {
			continue
		}
		v, err := render(t, data)
		if err != nil {
			return nil, err
		}
		if v == "" {
			continue
		}
		resp.FilledSlots = append(resp.FilledSlots, domain.Slot{Name: name, Value: v})
	}
	if len(resp.FilledSlots) == 0 {
		svc.Logger.Info("Declining hand-off", "request_domain", cdc.RequestDomain, "request_intent", cdc.RequestIntent)
		return nil, nil
	}
	return resp, nil
}

func slotValues(h domain.Hypothesis) map[string]string {
	out := make(map[string]string, len(h.Slots))
	for _, s := range h.Slots {
		out[s.Name] = s.Value
	}
	return out
}

func storeValues(s *domain.DataStore) map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	for _, k := range s.Keys() {
		v, _ := s.GetString(k)
		out[k] = v
	}
	return out
}

// templateData builds the values a template sees. Slots are top-level keys;
// session, profile and sys are reserved.
func templateData(in ports.Input, svc *ports.Services) map[string]any {
	data := make(map[string]any, len(in.Hypothesis.Slots)+3)
	for k, v := range slotValues(in.Hypothesis) {
		data[k] = v
	}
	data["session"] = storeValues(svc.Session)
	data["profile"] = storeValues(svc.Profiles.Local)
	data["sys"] = map[string]any{
		"domain":       in.Hypothesis.Domain,
		"intent":       in.Hypothesis.Intent,
		"utterance":    in.Hypothesis.Utterance,
		"continuation": in.Continuation,
		"turn":         in.TurnNum,
		"retry":        in.RetryCount,
		"text":         in.Text,
		"trace_id":     svc.TraceID,
	}
	return data
}

func render(t *template.Template, data map[string]any) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func writeAll(tmpls map[string]*template.Template, data map[string]any, put func(k, v string) error) error {
	for _, k := range sortedKeys(tmpls) {
		v, err := render(tmpls[k], data)
		if err != nil {
			return err
		}
		if err := put(k, v); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
