// Package codec serializes a candidate set into the flat text form that is broadcast
// to every participant.
//
// Each strategy is one line; the stints of a line are alternating compound and lap
// tokens separated by single spaces, and every line ends with '\n':
//
//	HARD 20 SOFT 15\n
//	SOFT 10 SOFT 10 SOFT 15\n
//
// A strategy with no stints is an empty line. Decode(Encode(s)) == s for every set.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// ErrMalformed is returned when a payload cannot be decoded into a candidate set.
var ErrMalformed = errors.New("malformed strategy payload")

// Encode renders the candidate set in its line-oriented text form.
func Encode(candidates core.CandidateSet) []byte {
	var b strings.Builder
	for _, strategy := range candidates {
		for i, stint := range strategy {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(string(stint.Compound))
			b.WriteByte(' ')
			b.WriteString(strconv.Itoa(stint.Laps))
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Decode parses a payload produced by Encode. Tokens may be separated by any run of
// whitespace other than newlines. A missing final newline is tolerated.
func Decode(data []byte) (core.CandidateSet, error) {
	if len(data) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	out := make(core.CandidateSet, 0, len(lines))
	for n, line := range lines {
		strategy, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, n+1, err)
		}
		out = append(out, strategy)
	}
	return out, nil
}

func decodeLine(line string) (core.Strategy, error) {
	tokens := strings.Fields(line)
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("odd token count %d", len(tokens))
	}
	var strategy core.Strategy
	for i := 0; i < len(tokens); i += 2 {
		compound := core.Compound(tokens[i])
		if err := compound.Validate(); err != nil {
			return nil, err
		}
		laps, err := strconv.Atoi(tokens[i+1])
		if err != nil {
			return nil, fmt.Errorf("stint %d: lap count %q: %w", i/2, tokens[i+1], err)
		}
		if laps < 1 {
			return nil, fmt.Errorf("stint %d: lap count must be >= 1, got %d", i/2, laps)
		}
		strategy = append(strategy, core.Stint{Compound: compound, Laps: laps})
	}
	return strategy, nil
}
