// Package v1alpha1 contains the document types exchanged with the outside world:
// the aggregated degradation rates consumed by the optimizer, the per-race lap data
// consumed by the aggregator, and the run descriptor broadcast to every participant.
//
// Field names mirror the upstream JSON documents exactly, spaces included.
package v1alpha1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RatesDocument is the aggregated degradation table keyed by track name.
type RatesDocument map[string]TrackRates

// TrackRates maps a compound label (e.g. "SOFT") to its aggregated rates.
type TrackRates map[string]CompoundRates

// CompoundRates holds the aggregated statistics for a single compound on a single track.
// Both fields are pointers so that a missing field can be told apart from a zero value.
type CompoundRates struct {
	// AverageDegradation is the mean positive lap-over-lap time loss, in normalized seconds.
	AverageDegradation *float64 `json:"Average Degradation,omitempty"`

	// AverageStintLength is the mean number of consecutive laps run on the compound.
	// The aggregator writes a mean, so the value is usually fractional.
	AverageStintLength *float64 `json:"Average Stint Length,omitempty"`
}

// LapDataDocument is the per-season lap data produced by the upstream fetcher.
type LapDataDocument []RaceRecord

// RaceRecord is one race of a LapDataDocument.
type RaceRecord struct {
	RaceInformation RaceInformation `json:"Race Information"`
	LapData         []LapRecord     `json:"Lap Data"`
}

// RaceInformation describes the race. Only TrackName is required by the aggregator,
// the remaining fields are carried for completeness.
type RaceInformation struct {
	TrackName    string          `json:"Track Name"`
	TrackLength  string          `json:"Track Length,omitempty"`
	EventName    string          `json:"Event Name,omitempty"`
	Date         string          `json:"Date,omitempty"`
	RoundNumber  *float64        `json:"Round Number,omitempty"`
	TotalLaps    *float64        `json:"Total Laps,omitempty"`
	RaceDistance string          `json:"Race Distance,omitempty"`
	Weather      json.RawMessage `json:"Weather,omitempty"`
}

// LapRecord is a single timed lap of a driver.
type LapRecord struct {
	Compound   string        `json:"Compound"`
	DriverName string        `json:"Driver Name"`
	LapTime    NumericString `json:"Lap Time,omitempty"`
	LapNumber  *float64      `json:"Lap Number,omitempty"`

	// NormalizedLapTime is the lap time divided by the track length (s/km).
	NormalizedLapTime NumericString `json:"Normalized Lap Time (s/km)"`
}

// NumericString is a numeric field that upstream writes either as a JSON number or as a
// formatted string such as "95.123" or "95.123 s". The raw text is kept so that a
// malformed value fails only the record that carries it, not the whole document.
type NumericString string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (n *NumericString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*n = NumericString(num.String())
	return nil
}

// Float64 parses the value, ignoring a trailing unit suffix separated by a space.
func (n NumericString) Float64() (float64, error) {
	s := string(n)
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			s = s[:i]
			break
		}
	}
	return strconv.ParseFloat(s, 64)
}

// RunSpec is the descriptor the coordinator broadcasts ahead of the candidate payload.
// Workers build their TrackModel from it and never read the rates document themselves.
type RunSpec struct {
	RunID           string     `json:"runID"`
	Track           string     `json:"track"`
	TotalLaps       int        `json:"totalLaps"`
	Tolerance       int        `json:"tolerance"`
	StartingLapTime float64    `json:"startingLapTime"`
	Rates           TrackRates `json:"rates"`

	// Candidates is the number of strategies in the payload that follows.
	Candidates int `json:"candidates"`

	// Abort is set when the coordinator failed before distribution; workers exit with it.
	Abort string `json:"abort,omitempty"`
}
