package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"                  _", "#818cf8"},
	{"  _ __   __ _ _ _| | ___ _  _", "#a78bfa"},
	{" | '_ \\ / _` | '_| |/ -_) || |", "#c084fc"},
	{" | .__/ \\__,_|_| |_|\\___|\\_, |", "#e879f9"},
	{" |_|                     |__/", "#f472b6"},
}

// PrintBanner writes the parley banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
