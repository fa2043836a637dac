/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package collector

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
	"k8s.io/utils/ptr"

	"github.com/llm-d/llm-d-race-strategy-optimizer/api/v1alpha1"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

// lap is one parsed lap of a driver on a compound.
type lap struct {
	// Number orders the laps; consecutive numbers belong to the same stint.
	Number float64
	// Time is the normalized lap time in s/km.
	Time float64
}

// groupKey identifies the laps of one driver on one compound within a race.
type groupKey struct {
	Driver   string
	Compound core.Compound
}

// samples pools the observations of one track and compound.
type samples struct {
	deltas []float64
	stints []float64
}

// addGroup records the positive deltas and the stint lengths of one group of laps.
// Groups of fewer than two laps carry no degradation signal and are ignored.
func (s *samples) addGroup(laps []lap) {
	if len(laps) < 2 {
		return
	}
	laps = slices.Clone(laps)
	sort.SliceStable(laps, func(i, j int) bool { return laps[i].Number < laps[j].Number })

	for i := 1; i < len(laps); i++ {
		if d := laps[i].Time - laps[i-1].Time; d > 0 {
			s.deltas = append(s.deltas, d)
		}
	}

	run := 1
	for i := 1; i < len(laps); i++ {
		if laps[i].Number == laps[i-1].Number+1 {
			run++
			continue
		}
		s.stints = append(s.stints, float64(run))
		run = 1
	}
	s.stints = append(s.stints, float64(run))
}

// trackSamples maps track name and compound to their pooled samples.
type trackSamples map[string]map[core.Compound]*samples

func (t trackSamples) at(track string, compound core.Compound) *samples {
	compounds, ok := t[track]
	if !ok {
		compounds = make(map[core.Compound]*samples)
		t[track] = compounds
	}
	s, ok := compounds[compound]
	if !ok {
		s = &samples{}
		compounds[compound] = s
	}
	return s
}

// merge appends the samples of other after those already held.
func (t trackSamples) merge(other trackSamples) {
	for track, compounds := range other {
		for compound, s := range compounds {
			dst := t.at(track, compound)
			dst.deltas = append(dst.deltas, s.deltas...)
			dst.stints = append(dst.stints, s.stints...)
		}
	}
}

// rates reduces the samples to the rates document. Compounds without a positive delta
// are left out, and so are tracks left without compounds.
func (t trackSamples) rates() v1alpha1.RatesDocument {
	doc := make(v1alpha1.RatesDocument)
	for track, compounds := range t {
		trackRates := make(v1alpha1.TrackRates)
		for compound, s := range compounds {
			if len(s.deltas) == 0 {
				continue
			}
			trackRates[string(compound)] = v1alpha1.CompoundRates{
				AverageDegradation: ptr.To(stat.Mean(s.deltas, nil)),
				AverageStintLength: ptr.To(stat.Mean(s.stints, nil)),
			}
		}
		if len(trackRates) > 0 {
			doc[track] = trackRates
		}
	}
	return doc
}
