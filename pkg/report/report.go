// Package report renders summaries, comparisons and store info as text
// tables, JSON, YAML or an HTML chart page.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/persist"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// Format selects an output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// Sentinel errors.
var (
	ErrUnknownFormat     = errors.New("unknown output format")
	ErrUnsupportedFormat = errors.New("format not supported for this report")
)

// Formats lists every accepted format name.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatHTML}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))

	for _, known := range Formats() {
		if format == known {
			return format, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Options configures a Renderer.
type Options struct {
	// Color enables ANSI colours in text output.
	Color bool
	// Now anchors relative dates in text output. Nil uses time.Now.
	Now func() time.Time
	// Phases limits text and HTML output to these phases. Empty shows all.
	Phases []string
}

// Renderer writes reports in any Format.
type Renderer struct {
	opts Options
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Renderer{opts: opts}
}

// Summary writes sum in format.
func (r *Renderer) Summary(w io.Writer, sum *summary.Summary, format Format) error {
	switch format {
	case FormatText:
		return r.summaryText(w, sum)
	case FormatJSON:
		return persist.NewJSONCodec().Encode(w, sum)
	case FormatYAML:
		return persist.NewYAMLCodec().Encode(w, sum)
	case FormatHTML:
		return r.summaryHTML(w, sum)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Comparison writes a single pairwise comparison in format.
func (r *Renderer) Comparison(w io.Writer, cmp *compare.Comparison, format Format) error {
	switch format {
	case FormatText:
		return r.comparisonText(w, cmp)
	case FormatJSON:
		return persist.NewJSONCodec().Encode(w, cmp)
	case FormatYAML:
		return persist.NewYAMLCodec().Encode(w, cmp)
	case FormatHTML:
		return r.comparisonHTML(w, cmp)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Info writes store info in format. HTML is not supported.
func (r *Renderer) Info(w io.Writer, info store.Info, format Format) error {
	switch format {
	case FormatText:
		return r.infoText(w, info)
	case FormatJSON:
		return persist.NewJSONCodec().Encode(w, info)
	case FormatYAML:
		return persist.NewYAMLCodec().Encode(w, info)
	case FormatHTML:
		return fmt.Errorf("%w: info as %s", ErrUnsupportedFormat, format)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (r *Renderer) wantPhase(phase string) bool {
	if len(r.opts.Phases) == 0 {
		return true
	}

	for _, p := range r.opts.Phases {
		if p == phase {
			return true
		}
	}

	return false
}
