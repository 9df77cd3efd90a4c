package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer when styled is true and a
// pass-through otherwise.
func NewRenderer(styled bool) Renderer {
	if !styled {
		return Plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return Plain
	}
	return r.Render
}

// Plain returns markdown unchanged, newline-terminated.
func Plain(markdown string) (string, error) {
	if strings.HasSuffix(markdown, "\n") {
		return markdown, nil
	}
	return markdown + "\n", nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// FormatResult describes a turn result as markdown.
func FormatResult(res *domain.TurnResult) string {
	var b strings.Builder
	text := res.Response.Text
	if text == "" && res.Response.SSML != "" {
		text = res.Response.SSML
	}
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	if res.ErrorMessage != "" {
		fmt.Fprintf(&b, "> **error:** %s\n\n", res.ErrorMessage)
	}

	var meta []string
	if res.Handler.ID != "" {
		meta = append(meta, "`"+res.Handler.String()+"`")
	}
	meta = append(meta, res.Code.String())
	if res.NextTurn.Continues() {
		meta = append(meta, "next: "+res.NextTurn.Mode.String())
	}
	if res.WasRetrying {
		meta = append(meta, "retry")
	}
	fmt.Fprintf(&b, "*%s*", strings.Join(meta, " · "))
	return b.String()
}
