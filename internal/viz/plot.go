package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/diffbot/internal/storage"
)

// PlotOptions sizes each graph.
type PlotOptions struct {
	Width  int
	Height int
}

// Plot renders one graph per named trace column.
func Plot(trace *storage.Trace, columns []string, opts PlotOptions) (string, error) {
	if trace.Len() == 0 {
		return "", fmt.Errorf("no data to plot")
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 10
	}

	var b strings.Builder
	for _, name := range columns {
		data, err := trace.Column(name)
		if err != nil {
			return "", err
		}
		b.WriteString(asciigraph.Plot(data,
			asciigraph.Height(opts.Height),
			asciigraph.Width(opts.Width),
			asciigraph.Caption(name),
		))
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// Timeline renders the level sequence of a trace as "level@time" spans.
func Timeline(trace *storage.Trace) string {
	var parts []string
	prev := ""
	for i, lvl := range trace.Levels {
		if lvl == prev {
			continue
		}
		prev = lvl
		parts = append(parts, fmt.Sprintf("%s@%.2fs", lvl, trace.Times[i]))
	}
	return strings.Join(parts, " → ")
}
