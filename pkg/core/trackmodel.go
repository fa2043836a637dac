package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"

	"k8s.io/utils/ptr"

	"github.com/llm-d/llm-d-race-strategy-optimizer/api/v1alpha1"
)

// CompoundRates are the validated statistics of one compound on one track.
type CompoundRates struct {
	// AverageDegradation is the per-lap time loss coefficient; always > 0.
	AverageDegradation float64
	// AverageStintLength is the typical stint length in laps; always >= 1.
	AverageStintLength int
}

// Validate checks the ranges required by the generator and the simulator.
func (r CompoundRates) Validate() error {
	if math.IsNaN(r.AverageDegradation) || math.IsInf(r.AverageDegradation, 0) || r.AverageDegradation <= 0 {
		return fmt.Errorf("%w: average degradation must be a positive number, got %v",
			ErrInvalidRates, r.AverageDegradation)
	}
	if r.AverageStintLength < 1 {
		return fmt.Errorf("%w: average stint length must be >= 1, got %d", ErrInvalidRates, r.AverageStintLength)
	}
	return nil
}

// TrackModel is the immutable per-track table of compound rates.
// It is safe for concurrent use because nothing mutates it after construction.
type TrackModel struct {
	name  string
	rates map[Compound]CompoundRates
}

// NewTrackModel validates and copies the given rates into a new TrackModel.
func NewTrackModel(name string, rates map[Compound]CompoundRates) (*TrackModel, error) {
	copied := make(map[Compound]CompoundRates, len(rates))
	for compound, r := range rates {
		if err := compound.Validate(); err != nil {
			return nil, fmt.Errorf("track %q: %w", name, err)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("track %q compound %s: %w", name, compound, err)
		}
		copied[compound] = r
	}
	return &TrackModel{name: name, rates: copied}, nil
}

// TrackModelFromDocument extracts and validates one track of a rates document.
// A track or compound label that is absent fails with ErrUnknownTrack or ErrMissingField.
func TrackModelFromDocument(doc v1alpha1.RatesDocument, track string) (*TrackModel, error) {
	trackRates, ok := doc[track]
	if !ok {
		return nil, fmt.Errorf("%w: %q not found in rates document", ErrUnknownTrack, track)
	}
	return TrackModelFromRates(track, trackRates)
}

// TrackModelFromRates converts the document form of one track into a TrackModel.
// The stint length is truncated toward zero, as the aggregator writes a mean.
func TrackModelFromRates(track string, trackRates v1alpha1.TrackRates) (*TrackModel, error) {
	rates := make(map[Compound]CompoundRates, len(trackRates))
	for label, entry := range trackRates {
		compound, err := ParseCompound(label)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", track, err)
		}
		if entry.AverageDegradation == nil {
			return nil, fmt.Errorf("%w: track %q compound %s: \"Average Degradation\"", ErrMissingField, track, label)
		}
		if entry.AverageStintLength == nil {
			return nil, fmt.Errorf("%w: track %q compound %s: \"Average Stint Length\"", ErrMissingField, track, label)
		}
		stint := *entry.AverageStintLength
		if math.IsNaN(stint) || math.IsInf(stint, 0) {
			return nil, fmt.Errorf("%w: track %q compound %s: average stint length is %v",
				ErrInvalidRates, track, label, stint)
		}
		rates[compound] = CompoundRates{
			AverageDegradation: *entry.AverageDegradation,
			AverageStintLength: int(stint),
		}
	}
	return NewTrackModel(track, rates)
}

// LoadTrackModel reads a rates document from path and extracts one track from it.
func LoadTrackModel(path, track string) (*TrackModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rates document: %w", err)
	}
	var doc v1alpha1.RatesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rates document %s: %w", path, err)
	}
	return TrackModelFromDocument(doc, track)
}

// Name returns the track name.
func (m *TrackModel) Name() string {
	return m.name
}

// Rates returns the rates of a compound and whether the track has them.
func (m *TrackModel) Rates(c Compound) (CompoundRates, bool) {
	r, ok := m.rates[c]
	return r, ok
}

// Compounds returns the compounds of the model in lexical order.
func (m *TrackModel) Compounds() []Compound {
	return slices.Sorted(maps.Keys(m.rates))
}

// Len returns the number of compounds in the model.
func (m *TrackModel) Len() int {
	return len(m.rates)
}

// ToDocument converts the model back to its document form, e.g. for broadcasting.
func (m *TrackModel) ToDocument() v1alpha1.TrackRates {
	out := make(v1alpha1.TrackRates, len(m.rates))
	for compound, r := range m.rates {
		out[string(compound)] = v1alpha1.CompoundRates{
			AverageDegradation: ptr.To(r.AverageDegradation),
			AverageStintLength: ptr.To(float64(r.AverageStintLength)),
		}
	}
	return out
}
