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
	{` ____            _`, "#34d399"},
	{`|  _ \ __ _ _ __| | ___ _   _`, "#2dd4bf"},
	{`| |_) / _' | '__| |/ _ \ | | |`, "#22d3ee"},
	{`|  __/ (_| | |  | |  __/ |_| |`, "#38bdf8"},
	{`|_|   \__,_|_|  |_|\___|\__, |`, "#60a5fa"},
	{`                        |___/`, "#818cf8"},
}

// PrintBanner writes the Parley banner followed by a subtitle line.
// Colors degrade to whatever the terminal supports.
func PrintBanner(w io.Writer, subtitle string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if subtitle != "" {
		fmt.Fprintln(w, termenv.String(subtitle).Faint())
	}
	fmt.Fprintln(w)
}
