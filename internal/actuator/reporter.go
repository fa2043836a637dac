package actuator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/optimizer"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// Format selects how a Reporter renders results.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json or yaml)", name)
	}
}

// Reporter writes results to an output stream.
type Reporter struct {
	out    io.Writer
	format Format
}

// NewReporter creates a Reporter writing to out in the given format.
func NewReporter(out io.Writer, format Format) (*Reporter, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	return &Reporter{out: out, format: format}, nil
}

// Report writes the result of a run.
func (r *Reporter) Report(result *optimizer.Result) error {
	if result == nil {
		return fmt.Errorf("no result to report")
	}
	if r.format == FormatText {
		return writeText(r.out, result.Best)
	}
	return r.encode(result)
}

// encode writes v in the structured format of the reporter.
func (r *Reporter) encode(v any) error {
	if r.format == FormatJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeText(out io.Writer, best core.ScoredStrategy) error {
	var b strings.Builder
	b.WriteString("Optimal Strategy:\n")
	for _, stint := range best.Strategy {
		fmt.Fprintf(&b, "  Tyre: %s, Laps: %d\n", stint.Compound, stint.Laps)
	}
	fmt.Fprintf(&b, "  Total Race Time: %.2f seconds\n", best.Cost)
	_, err := io.WriteString(out, b.String())
	return err
}

// Estimate is the outcome of a single-stint estimate.
type Estimate struct {
	Track       string        `json:"track" yaml:"track"`
	Compound    core.Compound `json:"compound" yaml:"compound"`
	Laps        int           `json:"laps" yaml:"laps"`
	Degradation float64       `json:"degradation" yaml:"degradation"`
	StintTime   float64       `json:"stintTime" yaml:"stintTime"`
}

// ReportEstimate writes a single-stint estimate.
func (r *Reporter) ReportEstimate(e Estimate) error {
	if r.format != FormatText {
		return r.encode(e)
	}
	_, err := fmt.Fprintf(r.out, "Using degradation rate: %g for tyre type: %s\nTotal stint time: %.2f seconds\n",
		e.Degradation, e.Compound, e.StintTime)
	return err
}
