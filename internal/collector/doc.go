// Package collector turns historical lap data into the per-track compound rates that
// drive the strategy search.
//
// # Architecture
//
// Lap data is read through the LapSource interface; FileSource reads the JSON documents
// written by the upstream fetcher. The Aggregator parses its sources concurrently and
// merges their samples in source order, so the output does not depend on scheduling:
//
//	agg := collector.NewAggregator(collector.WithParallelism(4))
//	rates, err := agg.Aggregate(ctx, collector.FileSources(paths...))
//	err = collector.WriteRatesDocument("data/output/rates.json", rates)
//
// # Rates
//
// Laps are grouped per race, driver and compound, and ordered by lap number (record
// order when lap numbers are missing). Groups of fewer than two laps are ignored. For
// every track and compound:
//
//   - Average Degradation is the mean of all strictly positive deltas between
//     consecutive normalized lap times (s/km), pooled over drivers and races.
//   - Average Stint Length is the mean length of the maximal runs of consecutive lap
//     numbers within the groups.
//
// A track and compound appear in the output only when at least one positive delta was
// observed.
//
// # Data Quality
//
// A lap whose compound is empty or whose normalized time does not parse is logged and
// skipped. A source that cannot be read is logged and skipped. Neither aborts the run.
package collector
