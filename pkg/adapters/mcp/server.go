// Package mcp exposes a ports.TurnProcessor as a Model Context Protocol server,
// so an agent can drive conversations through the route_turn tool.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// HandlersURI is the resource listing loaded handlers.
const HandlersURI = "parley://handlers"

// TurnResponse is the structured output of route_turn.
type TurnResponse struct {
	Code         string `json:"code" jsonschema_description:"success, failure or skip"`
	Text         string `json:"text,omitempty" jsonschema_description:"Text reply for the user"`
	SSML         string `json:"ssml,omitempty"`
	Handler      string `json:"handler,omitempty" jsonschema_description:"id@major.minor of the handler that answered"`
	NextTurn     string `json:"next_turn" jsonschema_description:"none, tentative, locked or full_control"`
	ErrorMessage string `json:"error_message,omitempty"`
	TraceID      string `json:"trace_id"`
	WasRetrying  bool   `json:"was_retrying,omitempty"`
}

// HandlerInfo is one entry of the handlers resource.
type HandlerInfo struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Domain      string `json:"domain"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Server wraps a TurnProcessor as an MCP server.
type Server struct {
	proc      ports.TurnProcessor
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an MCP server for proc.
func NewServer(proc ports.TurnProcessor, opts ...Option) *Server {
	s := &Server{
		proc:   proc,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("parley-mcp", strings.TrimSpace(parley.Version),
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, true),
			server.WithRecovery(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	routeTool := mcp.NewTool("route_turn",
		mcp.WithDescription("Route one user turn to the conversation handlers and return the reply."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User whose conversation this turn belongs to")),
		mcp.WithString("client_id", mcp.Description("Device or channel ID (defaults to \"mcp\")")),
		mcp.WithString("text", mcp.Description("Raw user input")),
		mcp.WithString("domain", mcp.Description("Domain of a single hypothesis")),
		mcp.WithString("intent", mcp.Description("Intent of a single hypothesis")),
		mcp.WithString("slots", mcp.Description("JSON object of slot name to value for the single hypothesis")),
		mcp.WithString("hypotheses", mcp.Description("JSON array of ranked hypotheses; overrides domain/intent")),
		mcp.WithBoolean("new_conversation", mcp.Description("Discard stored conversation state first")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(routeTool, mcp.NewStructuredToolHandler(s.handleRouteTurn))

	s.mcpServer.AddTool(mcp.NewTool("list_handlers",
		mcp.WithDescription("List the loaded conversation handlers."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(s.handlerInfos())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(HandlersURI, "Loaded Handlers",
		mcp.WithMIMEType("application/json"),
	), s.readHandlers)
}

func (s *Server) readHandlers(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(s.handlerInfos())
	if err != nil {
		return nil, fmt.Errorf("failed to encode handlers: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      HandlersURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func (s *Server) handlerInfos() []HandlerInfo {
	md := s.proc.Handlers()
	out := make([]HandlerInfo, 0, len(md))
	for _, m := range md {
		out = append(out, HandlerInfo{
			ID:          m.Identity.ID,
			Version:     m.Identity.Version.String(),
			Domain:      m.Domain,
			Name:        m.Info.Name,
			Description: m.Info.Description,
		})
	}
	return out
}

func (s *Server) handleRouteTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	req, err := turnRequest(args)
	if err != nil {
		return TurnResponse{}, err
	}
	if err := req.Sanitize(domain.DefaultMaxInputSize); err != nil {
		return TurnResponse{}, fmt.Errorf("invalid input: %w", err)
	}

	res, err := s.proc.Process(ctx, req)
	if err != nil {
		s.logger.Error("MCP turn failed", "trace_id", req.TraceID, "error", err)
		return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
	}

	out := TurnResponse{
		Code:         res.Code.String(),
		Text:         res.Response.Text,
		SSML:         res.Response.SSML,
		NextTurn:     res.NextTurn.Mode.String(),
		ErrorMessage: res.ErrorMessage,
		TraceID:      res.TraceID,
		WasRetrying:  res.WasRetrying,
	}
	if res.Handler.ID != "" {
		out.Handler = res.Handler.String()
	}
	return out, nil
}

// turnRequest builds a TurnRequest from tool arguments.
func turnRequest(args map[string]interface{}) (domain.TurnRequest, error) {
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return domain.TurnRequest{}, errors.New("user_id is required")
	}
	clientID, _ := args["client_id"].(string)
	if clientID == "" {
		clientID = "mcp"
	}
	text, _ := args["text"].(string)
	fresh, _ := args["new_conversation"].(bool)

	req := domain.TurnRequest{
		Client:          domain.ClientContext{UserID: userID, ClientID: clientID},
		InputMethod:     domain.InputProgrammatic,
		Text:            text,
		NewConversation: fresh,
		TraceID:         uuid.NewString(),
	}

	if raw, ok := args["hypotheses"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Hypotheses); err != nil {
			return domain.TurnRequest{}, fmt.Errorf("invalid hypotheses: %w", err)
		}
		return req, nil
	}

	dom, _ := args["domain"].(string)
	intent, _ := args["intent"].(string)
	if dom == "" || intent == "" {
		return req, nil
	}
	h := domain.Hypothesis{Domain: dom, Intent: intent, Confidence: 1, Utterance: text}
	if raw, ok := args["slots"].(string); ok && raw != "" {
		var slots map[string]string
		if err := json.Unmarshal([]byte(raw), &slots); err != nil {
			return domain.TurnRequest{}, fmt.Errorf("invalid slots: %w", err)
		}
		for _, name := range sortedNames(slots) {
			h.Slots = append(h.Slots, domain.Slot{Name: name, Value: slots[name]})
		}
	}
	req.Hypotheses = []domain.Hypothesis{h}
	return req, nil
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
