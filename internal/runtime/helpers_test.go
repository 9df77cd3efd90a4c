package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/require"
)

var (
	testClient = domain.ClientContext{UserID: "alice", ClientID: "phone"}
	testNow    = time.Now().UTC().Truncate(time.Second)
)

// scriptHandler is a handler whose behavior is supplied per test.
type scriptHandler struct {
	ports.BaseHandler
	meta ports.HandlerMetadata

	exec    func(ports.Input, *ports.Services) (*domain.HandlerResult, error)
	trigger func(ports.Input, *ports.Services) (domain.BoostSignal, error)
	cdReq   func(intent string) *ports.CrossDomainRequest
	cdResp  func(ports.CrossDomainContext) *ports.CrossDomainResponse

	mu    sync.Mutex
	calls []ports.Input
}

func newScript(id string, graph *domain.ConversationGraph) *scriptHandler {
	return &scriptHandler{meta: ports.HandlerMetadata{
		Identity: domain.HandlerIdentity{ID: id, Version: domain.Version{Major: 1}},
		Domain:   id,
		Graph:    graph,
	}}
}

func (s *scriptHandler) Metadata() ports.HandlerMetadata { return s.meta }

func (s *scriptHandler) Execute(_ context.Context, in ports.Input, svc *ports.Services) (*domain.HandlerResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, in)
	s.mu.Unlock()
	if s.exec == nil {
		return &domain.HandlerResult{Code: domain.ResultSuccess, Response: domain.Response{Text: s.meta.Domain}}, nil
	}
	return s.exec(in, svc)
}

func (s *scriptHandler) Trigger(_ context.Context, in ports.Input, svc *ports.Services) (domain.BoostSignal, error) {
	if s.trigger == nil {
		return domain.BoostNoChange, nil
	}
	return s.trigger(in, svc)
}

func (s *scriptHandler) CrossDomainRequest(_ context.Context, intent string) (*ports.CrossDomainRequest, error) {
	if s.cdReq == nil {
		return nil, nil
	}
	return s.cdReq(intent), nil
}

func (s *scriptHandler) CrossDomainResponse(_ context.Context, cdc ports.CrossDomainContext, _ *ports.Services) (*ports.CrossDomainResponse, error) {
	if s.cdResp == nil {
		return nil, nil
	}
	return s.cdResp(cdc), nil
}

func (s *scriptHandler) Calls() []ports.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Input(nil), s.calls...)
}

func reply(text string, next domain.MultiTurnBehavior) func(ports.Input, *ports.Services) (*domain.HandlerResult, error) {
	return func(ports.Input, *ports.Services) (*domain.HandlerResult, error) {
		return &domain.HandlerResult{Code: domain.ResultSuccess, Response: domain.Response{Text: text}, NextTurn: next}, nil
	}
}

type harness struct {
	engine   *runtime.Engine
	sessions *session.Manager
	states   *memory.StateCache
	profiles *memory.ProfileStore
	actions  *memory.Cache
	web      *memory.Cache
}

func newHarness(t *testing.T, cfg runtime.Config, handlers ...ports.Handler) *harness {
	t.Helper()
	reg := registry.New(memory.NewProvider(handlers...))
	require.NoError(t, reg.LoadAvailable(context.Background()))

	h := &harness{
		states:   memory.NewStateCache(),
		profiles: memory.NewProfileStore(),
		actions:  memory.NewCache(),
		web:      memory.NewCache(),
	}
	h.sessions = session.NewManager(h.states,
		session.WithProfileStore(h.profiles),
		session.WithDialogActionCache(h.actions),
		session.WithWebDataCache(h.web),
	)
	h.engine = runtime.NewEngine(reg, h.sessions,
		runtime.WithConfig(cfg),
		runtime.WithClock(func() time.Time { return testNow }),
	)
	return h
}

func (h *harness) process(t *testing.T, hyps ...domain.Hypothesis) (*domain.TurnResult, error) {
	t.Helper()
	res, err := h.engine.Process(context.Background(), domain.TurnRequest{
		Hypotheses:  hyps,
		Client:      testClient,
		InputMethod: domain.InputTyped,
	})
	h.sessions.Wait()
	return res, err
}

func (h *harness) turn(t *testing.T, hyps ...domain.Hypothesis) *domain.TurnResult {
	t.Helper()
	res, err := h.process(t, hyps...)
	require.NoError(t, err)
	return res
}

func (h *harness) seed(t *testing.T, bottomToTop ...*domain.ConversationState) {
	t.Helper()
	require.NoError(t, h.states.SetClientState(context.Background(), testClient.UserID, testClient.ClientID,
		domain.NewConversationStack(bottomToTop...)))
}

func (h *harness) stored(t *testing.T) *domain.ConversationStack {
	t.Helper()
	stack, err := h.states.TryRetrieve(context.Background(), testClient.UserID, testClient.ClientID)
	if err != nil {
		require.ErrorIs(t, err, domain.ErrStateNotFound)
		return domain.NewConversationStack()
	}
	return stack
}

func hyp(d, i string, conf float64) domain.Hypothesis {
	return domain.Hypothesis{Domain: d, Intent: i, Confidence: conf, Utterance: d + " " + i}
}

// seededFrame builds a stored frame for a handler created by newScript.
func seededFrame(id, node string, behavior domain.MultiTurnBehavior) *domain.ConversationState {
	f := domain.NewConversationState(nil)
	f.HandlerID = id
	f.HandlerVersion = domain.Version{Major: 1}
	f.Domain = id
	f.CurrentNode = node
	f.TurnNum = 1
	f.LastBehavior = behavior
	f.ExpireTime = testNow.Add(time.Hour)
	return f
}

// startGraph opens a conversation on each domain/intent pair and moves to node.
func startGraph(d, node string, intents ...string) *domain.ConversationGraph {
	g := domain.NewConversationGraph()
	g.AddNode(domain.Node{ID: node})
	for _, i := range intents {
		g.AddStart(domain.Edge{Domain: d, Intent: i, Target: node, Continuation: i})
	}
	return g
}
