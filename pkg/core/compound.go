package core

import (
	"fmt"
	"strings"
	"unicode"
)

// Compound identifies a tyre hardness class.
type Compound string

// Known compound labels, as written by the upstream lap data.
const (
	Hard         Compound = "HARD"
	Medium       Compound = "MEDIUM"
	Soft         Compound = "SOFT"
	Intermediate Compound = "INTERMEDIATE"
	Wet          Compound = "WET"
)

var knownCompounds = map[Compound]struct{}{
	Hard:         {},
	Medium:       {},
	Soft:         {},
	Intermediate: {},
	Wet:          {},
}

// DefaultSearchCompounds returns the compounds the generator explores, in search order.
func DefaultSearchCompounds() []Compound {
	return []Compound{Hard, Medium, Soft}
}

// ParseCompound normalizes a label to upper case and validates it.
func ParseCompound(label string) (Compound, error) {
	c := Compound(strings.ToUpper(strings.TrimSpace(label)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Validate checks that the compound can be carried as a single whitespace-free token.
func (c Compound) Validate() error {
	if c == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidCompound)
	}
	if strings.IndexFunc(string(c), unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidCompound, string(c))
	}
	return nil
}

// IsKnown reports whether the compound is one of the recognised hardness classes.
func (c Compound) IsKnown() bool {
	_, ok := knownCompounds[c]
	return ok
}

func (c Compound) String() string {
	return string(c)
}
