// Package pipeline runs the enrichment passes against a feature store: the
// regional curve hydrology, the classification stages and the dam statistics.
// Every pass reads from the in-memory segment set, writes its columns back in
// one store call and reports what it skipped.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/brat/internal/classify"
	"github.com/chrissnell/brat/internal/damdensity"
	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/hydro"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Pipeline.
type Options struct {
	Region         int
	SnapTolerance  float64
	Classification classify.Options
	SkipHydrology  bool
	SkipClassify   bool
	SkipDams       bool
}

// Pipeline owns one feature store for the duration of a run.
type Pipeline struct {
	store   store.FeatureStore
	opts    Options
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// New returns a pipeline over fs. metrics may be nil.
func New(fs store.FeatureStore, opts Options, metrics *Metrics, logger *zap.SugaredLogger) *Pipeline {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pipeline{
		store:   fs,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes the enabled passes in order: hydrology, classification, dams.
// A store error aborts the run; per-segment problems are collected in the
// summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	logger := p.logger.With("run_id", sum.RunID)
	logger.Infow("pipeline run starting", "region", p.opts.Region)

	err := p.run(ctx, sum, logger)
	sum.Finished = time.Now()
	if err != nil {
		p.metrics.runs.WithLabelValues("error").Inc()
		logger.Errorw("pipeline run failed", "error", err)
		return sum, err
	}

	p.metrics.runs.WithLabelValues("success").Inc()
	logger.Infow("pipeline run complete",
		"segments", sum.Segments,
		"skipped", sum.SkippedTotal(),
		"elapsed", sum.Finished.Sub(sum.Started))
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, sum *Summary, logger *zap.SugaredLogger) error {
	cols, err := store.ResolveColumns(ctx, p.store)
	if err != nil {
		return err
	}
	if cols.CapacityHistoric == "" {
		logger.Warnw("no historic capacity column found", "tried", []string{types.FieldCapacityHistoric, types.FieldCapacityHistoricHPE})
	}
	if cols.VegHistoric == "" {
		logger.Warnw("no historic vegetation column found", "tried", []string{types.FieldVegHistoric, types.FieldVegHistoricHPE})
	}

	segments, err := p.store.ReadSegments(ctx, store.Selector{Columns: cols})
	if err != nil {
		return fmt.Errorf("reading segments: %w", err)
	}
	sum.Segments = len(segments)
	logger.Infow("segments loaded", "count", len(segments))

	if !p.opts.SkipHydrology {
		if sum.Hydrology, err = p.hydrology(ctx, segments, logger); err != nil {
			return err
		}
	}

	if !p.opts.SkipClassify {
		report, err := p.classify(ctx, segments, logger)
		if err != nil {
			return err
		}
		sum.Classification = &report
	}

	var stats []types.DamStats
	if !p.opts.SkipDams {
		sum.Dams, stats, err = p.dams(ctx, segments, logger)
		if err != nil {
			return err
		}
	}

	sum.Statistics = Describe(segments, stats)
	return nil
}

// ApplyHydrology evaluates the regional curve for every segment that has a
// drainage area and a slope, setting QLow, Q2, SPLow and SP2 together.
// Segments missing either input are left untouched.
func ApplyHydrology(segments []types.Segment, region int, logger *zap.SugaredLogger) *HydrologyReport {
	curve, known := hydro.Lookup(region)
	rep := &HydrologyReport{Region: region, Curve: curve.Name, KnownRegion: known}
	if !known && region != hydro.DefaultRegion {
		logger.Warnw("unknown region, using default curves",
			"region", region, "error", types.ErrInvalidRegion, "known", hydro.Regions())
	}

	for i := range segments {
		seg := &segments[i]

		da, ok := types.Value(seg.DrainageArea)
		if !ok {
			rep.Skipped = append(rep.Skipped, seg.ID)
			logger.Warnw("segment skipped", "stage", "hydrology", "reach_id", seg.ID,
				"reason", fmt.Errorf("%w: %s", types.ErrMissingField, types.FieldDrainageArea))
			continue
		}
		if da < 0 {
			rep.Skipped = append(rep.Skipped, seg.ID)
			logger.Warnw("segment skipped", "stage", "hydrology", "reach_id", seg.ID,
				"reason", "negative drainage area", "drainage_area", da)
			continue
		}

		d := hydro.Evaluate(region, da)
		if d.Corrected {
			rep.Corrected = append(rep.Corrected, seg.ID)
			logger.Debugw("peakflow raised above baseflow", "reach_id", seg.ID,
				"baseflow", d.Baseflow, "peakflow", d.Peakflow)
		}

		seg.QLow = types.Float(d.Baseflow)
		seg.Q2 = types.Float(d.Peakflow)
		rep.Computed++

		// Discharge only needs drainage area; stream power also needs slope.
		slope, ok := types.Value(seg.Slope)
		if !ok {
			seg.SPLow, seg.SP2 = nil, nil
			rep.NoStreamPower = append(rep.NoStreamPower, seg.ID)
			logger.Warnw("stream power not computed", "reach_id", seg.ID,
				"reason", fmt.Errorf("%w: %s", types.ErrMissingField, types.FieldSlope))
			continue
		}
		seg.SPLow = types.Float(hydro.StreamPower(slope, d.Baseflow))
		seg.SP2 = types.Float(hydro.StreamPower(slope, d.Peakflow))
	}
	return rep
}

func (p *Pipeline) hydrology(ctx context.Context, segments []types.Segment, logger *zap.SugaredLogger) (*HydrologyReport, error) {
	start := time.Now()
	rep := ApplyHydrology(segments, p.opts.Region, logger)

	computed := make([]types.Segment, 0, rep.Computed)
	skipped := make(map[int64]bool, len(rep.Skipped))
	for _, id := range rep.Skipped {
		skipped[id] = true
	}
	for _, seg := range segments {
		if !skipped[seg.ID] {
			computed = append(computed, seg)
		}
	}
	if err := p.store.WriteSegments(ctx, computed, types.HydrologyFields); err != nil {
		return nil, fmt.Errorf("writing hydrology: %w", err)
	}

	p.metrics.corrections.Add(float64(len(rep.Corrected)))
	p.metrics.observe("hydrology", rep.Computed, len(rep.Skipped), time.Since(start).Seconds())
	logger.Infow("hydrology complete", "curve", rep.Curve, "computed", rep.Computed,
		"corrected", len(rep.Corrected), "no_stream_power", len(rep.NoStreamPower), "skipped", len(rep.Skipped))
	return rep, nil
}

func (p *Pipeline) classify(ctx context.Context, segments []types.Segment, logger *zap.SugaredLogger) (classify.Report, error) {
	start := time.Now()
	engine := classify.NewEngine(p.opts.Classification, logger)

	report, err := engine.Run(ctx, segments)
	if err != nil {
		return report, fmt.Errorf("classification: %w", err)
	}
	if err := p.store.WriteSegments(ctx, segments, engine.Fields()); err != nil {
		return report, fmt.Errorf("writing classification: %w", err)
	}

	elapsed := time.Since(start).Seconds() / float64(max(len(report.Stages), 1))
	for _, st := range report.Stages {
		p.metrics.observe(st.Stage, st.Classified, len(st.Skipped), elapsed)
	}
	return report, nil
}

func (p *Pipeline) dams(ctx context.Context, segments []types.Segment, logger *zap.SugaredLogger) (*DamReport, []types.DamStats, error) {
	start := time.Now()

	observed, err := p.store.HasDams(ctx)
	if err != nil {
		return nil, nil, err
	}

	var counts map[int64]int
	if observed {
		if counts, err = p.store.AssociateDams(ctx, p.opts.SnapTolerance); err != nil {
			return nil, nil, fmt.Errorf("associating dams: %w", err)
		}
		logger.Infow("dams associated", "segments_with_dams", len(counts), "tolerance_m", p.opts.SnapTolerance)
	} else {
		logger.Infow("no dam observations, computing capacity summary only")
	}

	res := damdensity.EnrichAll(segments, counts, logger)

	fields := types.CapacitySummaryFields
	if observed {
		fields = append(append([]string(nil), types.ObservedDamFields...), types.CapacitySummaryFields...)
	}
	if err := p.store.WriteDamStats(ctx, res.Stats, fields); err != nil {
		return nil, nil, fmt.Errorf("writing dam statistics: %w", err)
	}

	p.metrics.flagged.Add(float64(len(res.Flagged)))
	p.metrics.observe("dams", len(res.Stats), len(res.Skipped), time.Since(start).Seconds())

	rep := &DamReport{
		Observed: observed,
		Enriched: len(res.Stats),
		Skipped:  res.Skipped,
		Flagged:  res.Flagged,
	}
	logger.Infow("dam statistics complete", "observed", observed, "enriched", rep.Enriched,
		"flagged", len(rep.Flagged), "skipped", len(rep.Skipped))
	return rep, res.Stats, nil
}
