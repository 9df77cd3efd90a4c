package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
)

func TestFormatResult(t *testing.T) {
	res := &domain.TurnResult{
		Code:     domain.ResultSuccess,
		Response: domain.Response{Text: "What time?"},
		Handler:  domain.HandlerIdentity{ID: "booking", Version: domain.Version{Major: 1}},
		NextTurn: domain.BehaviorLocked,
	}
	got := FormatResult(res)
	want := "What time?\n\n*`booking@1.0` · success · next: locked*"
	if got != want {
		t.Errorf("FormatResult() = %q, want %q", got, want)
	}

	failed := FormatResult(&domain.TurnResult{Code: domain.ResultFailure, ErrorMessage: "no tables"})
	if !strings.Contains(failed, "**error:** no tables") || !strings.HasSuffix(failed, "*failure*") {
		t.Errorf("FormatResult() = %q", failed)
	}
}

func TestPlainRenderer(t *testing.T) {
	r := NewRenderer(false)
	got, err := r("**hi**")
	if err != nil || got != "**hi**\n" {
		t.Errorf("Plain() = %q, %v", got, err)
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	if !strings.Contains(buf.String(), "v1.2.3") {
		t.Errorf("banner = %q", buf.String())
	}
}
