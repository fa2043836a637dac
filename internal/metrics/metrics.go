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

// Package metrics defines the observability sink passed explicitly into generation,
// evaluation and distribution, and its Prometheus implementation.
package metrics

import (
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Recorder receives timing and volume observations from the optimizer pipeline.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveGeneration records the size of a generated candidate set and how long it took.
	ObserveGeneration(candidates int, elapsed time.Duration)

	// ObserveEvaluation records one rank scoring its partition.
	ObserveEvaluation(rank, strategies int, elapsed time.Duration)

	// ObserveCollective records a broadcast or gather and the bytes it moved.
	ObserveCollective(op string, bytes int, elapsed time.Duration)

	// SetBestCost records the winning race time of a track.
	SetBestCost(track string, cost float64)
}

// Collective operation labels.
const (
	OpBroadcast = "broadcast"
	OpGather    = "gather"
)

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObserveGeneration(int, time.Duration)         {}
func (NoopRecorder) ObserveEvaluation(int, int, time.Duration)    {}
func (NoopRecorder) ObserveCollective(string, int, time.Duration) {}
func (NoopRecorder) SetBestCost(string, float64)                  {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

// PrometheusRecorder exports observations as Prometheus metrics.
type PrometheusRecorder struct {
	candidates         prometheus.Gauge
	generationSeconds  prometheus.Histogram
	evaluatedTotal     *prometheus.CounterVec
	evaluationSeconds  *prometheus.HistogramVec
	collectiveBytes    *prometheus.CounterVec
	collectiveSeconds  *prometheus.HistogramVec
	bestRaceTimeSecond *prometheus.GaugeVec
}

// NewPrometheusRecorder creates the metric families and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "race_strategy_candidates",
			Help: "Number of candidate strategies in the last generated set.",
		}),
		generationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "race_strategy_generation_seconds",
			Help:    "Time spent enumerating candidate strategies.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		evaluatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "race_strategy_evaluated_total",
			Help: "Strategies scored, by participant rank.",
		}, []string{"rank"}),
		evaluationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "race_strategy_evaluation_seconds",
			Help:    "Time spent scoring a partition, by participant rank.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"rank"}),
		collectiveBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "race_strategy_collective_bytes_total",
			Help: "Bytes moved by collective operations.",
		}, []string{"op"}),
		collectiveSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "race_strategy_collective_seconds",
			Help:    "Time spent blocked in collective operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"op"}),
		bestRaceTimeSecond: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "race_strategy_best_race_time_seconds",
			Help: "Modeled total race time of the optimal strategy, by track.",
		}, []string{"track"}),
	}
	for _, c := range []prometheus.Collector{
		r.candidates, r.generationSeconds, r.evaluatedTotal, r.evaluationSeconds,
		r.collectiveBytes, r.collectiveSeconds, r.bestRaceTimeSecond,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveGeneration(candidates int, elapsed time.Duration) {
	r.candidates.Set(float64(candidates))
	r.generationSeconds.Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) ObserveEvaluation(rank, strategies int, elapsed time.Duration) {
	label := strconv.Itoa(rank)
	r.evaluatedTotal.WithLabelValues(label).Add(float64(strategies))
	r.evaluationSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) ObserveCollective(op string, bytes int, elapsed time.Duration) {
	r.collectiveBytes.WithLabelValues(op).Add(float64(bytes))
	r.collectiveSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) SetBestCost(track string, cost float64) {
	r.bestRaceTimeSecond.WithLabelValues(track).Set(cost)
}

// BestRaceTime returns the winning race time gauge of track.
func (r *PrometheusRecorder) BestRaceTime(track string) prometheus.Gauge {
	return r.bestRaceTimeSecond.WithLabelValues(track)
}

// WriteTextfile dumps every metric of g to path in the Prometheus text format,
// for pickup by a node-exporter textfile collector after a batch run.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Encode writes every metric of g to w in the Prometheus text format.
func Encode(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
