package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
)

// Chat commands.
const (
	cmdQuit     = "/quit"
	cmdNew      = "/new"
	cmdHandlers = "/handlers"
	cmdHelp     = "/help"
)

const chatHelp = "Type `domain.intent [slot=value ...] [@confidence]` to send a hypothesis.\n" +
	"Separate alternatives with `|`. Commands: /new, /handlers, /help, /quit."

// Chat is an interactive loop that feeds typed hypotheses to a processor.
type Chat struct {
	Proc   ports.TurnProcessor
	Client domain.ClientContext
	Render tui.Renderer
	// Wait, when set, runs after each turn so the next one sees its state.
	Wait func()
}

// Run reads lines from in until EOF, /quit or ctx is done.
func (c *Chat) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	render := c.Render
	if render == nil {
		render = tui.Plain
	}
	print := func(md string) {
		s, err := render(md)
		if err != nil {
			s = md + "\n"
		}
		fmt.Fprint(out, s)
	}

	fresh := false
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case cmdQuit:
			return nil
		case cmdHelp:
			print(chatHelp)
			continue
		case cmdNew:
			fresh = true
			print("*Next turn starts a new conversation.*")
			continue
		case cmdHandlers:
			print(handlerList(c.Proc.Handlers()))
			continue
		}

		hyps, err := ParseUtterance(line)
		if err != nil {
			print(fmt.Sprintf("> **error:** %v", err))
			continue
		}
		req := domain.TurnRequest{
			Hypotheses:      hyps,
			Client:          c.Client,
			InputMethod:     domain.InputTyped,
			Text:            line,
			NewConversation: fresh,
			TraceID:         uuid.NewString(),
		}
		if err := req.Sanitize(domain.DefaultMaxInputSize); err != nil {
			print(fmt.Sprintf("> **error:** %v", err))
			continue
		}
		res, err := c.Proc.Process(ctx, req)
		fresh = false
		if c.Wait != nil {
			c.Wait()
		}
		if err != nil {
			print(fmt.Sprintf("> **turn failed:** %v", err))
			continue
		}
		print(tui.FormatResult(res))
	}
}

func handlerList(md []ports.HandlerMetadata) string {
	if len(md) == 0 {
		return "*No handlers loaded.*"
	}
	var b strings.Builder
	for _, m := range md {
		fmt.Fprintf(&b, "- `%s` (%s)", m.Identity.String(), m.Domain)
		if m.Info.Name != "" {
			fmt.Fprintf(&b, " %s", m.Info.Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ParseUtterance reads hypotheses written as
//
//	domain.intent [slot=value ...] [@confidence]
//
// with alternatives separated by "|". Confidence defaults to 1.
func ParseUtterance(line string) ([]domain.Hypothesis, error) {
	var hyps []domain.Hypothesis
	for _, alt := range strings.Split(line, "|") {
		fields := strings.Fields(alt)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty alternative in %q", line)
		}
		d, intent, ok := strings.Cut(fields[0], ".")
		if !ok || d == "" || intent == "" {
			return nil, fmt.Errorf("expected domain.intent, got %q", fields[0])
		}
		h := domain.Hypothesis{Domain: d, Intent: intent, Confidence: 1, Source: "chat"}
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "@") {
				conf, err := strconv.ParseFloat(f[1:], 64)
				if err != nil || conf < 0 || conf > 1 {
					return nil, fmt.Errorf("invalid confidence %q", f)
				}
				h.Confidence = conf
				continue
			}
			name, value, ok := strings.Cut(f, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("expected slot=value, got %q", f)
			}
			h.Slots = append(h.Slots, domain.Slot{Name: name, Value: value})
		}
		hyps = append(hyps, h)
	}
	return hyps, nil
}
