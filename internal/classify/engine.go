// Package classify assigns the conflict-potential and management labels to
// stream segments. Each label is produced by an ordered list of guards, first
// match wins, and the passes run one after another over the whole network.
package classify

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/chrissnell/brat/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures an Engine.
type Options struct {
	// Workers bounds how many partitions of a stage run at once. Zero uses
	// GOMAXPROCS.
	Workers int

	// Management enables the experimental management pass.
	Management bool

	// ResetLabels clears every label before the first pass, so a rerun never
	// sees output from a previous run.
	ResetLabels bool
}

// Engine runs classification stages over a segment set.
type Engine struct {
	stages  []Stage
	workers int
	reset   bool
	logger  *zap.SugaredLogger
}

// NewEngine builds an engine with the standard stage order.
func NewEngine(opts Options, logger *zap.SugaredLogger) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		stages:  Stages(opts.Management),
		workers: workers,
		reset:   opts.ResetLabels,
		logger:  logger,
	}
}

// Fields returns the store columns the engine writes, in pass order.
func (e *Engine) Fields() []string {
	fields := make([]string, len(e.stages))
	for i, s := range e.stages {
		fields[i] = s.Field()
	}
	return fields
}

// StageReport summarizes one pass.
type StageReport struct {
	Stage      string         `json:"stage"`
	Field      string         `json:"field"`
	Classified int            `json:"classified"`
	Skipped    []int64        `json:"skipped,omitempty"`
	Labels     map[string]int `json:"labels"`
}

// Report summarizes a classification run.
type Report struct {
	Stages []StageReport `json:"stages"`
}

type outcome struct {
	decision Decision
	err      error
}

// Run classifies segments in place. Within a stage every segment is classified
// against an unmodified copy of the set; results are merged only after the
// whole stage completes, so no stage observes a peer's partial update.
func (e *Engine) Run(ctx context.Context, segments []types.Segment) (Report, error) {
	if e.reset {
		for i := range segments {
			resetLabels(&segments[i])
		}
	}

	var report Report
	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcomes, err := e.runStage(ctx, stage, segments)
		if err != nil {
			return report, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		report.Stages = append(report.Stages, e.merge(stage, segments, outcomes))
	}
	return report, nil
}

func (e *Engine) runStage(ctx context.Context, stage Stage, segments []types.Segment) ([]outcome, error) {
	outcomes := make([]outcome, len(segments))
	if len(segments) == 0 {
		return outcomes, nil
	}

	chunk := (len(segments) + e.workers - 1) / e.workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for start := 0; start < len(segments); start += chunk {
		start, end := start, min(start+chunk, len(segments))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				d, err := stage.Classify(segments[i])
				outcomes[i] = outcome{decision: d, err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (e *Engine) merge(stage Stage, segments []types.Segment, outcomes []outcome) StageReport {
	rep := StageReport{
		Stage:  stage.Name(),
		Field:  stage.Field(),
		Labels: make(map[string]int),
	}

	for i, o := range outcomes {
		id := segments[i].ID
		if o.err != nil {
			rep.Skipped = append(rep.Skipped, id)
			if errors.Is(o.err, types.ErrMissingField) {
				e.logger.Warnw("segment skipped", "stage", stage.Name(), "reach_id", id, "reason", o.err)
			} else {
				e.logger.Errorw("segment not classified", "stage", stage.Name(), "reach_id", id, "error", o.err)
			}
			continue
		}
		stage.Assign(&segments[i], o.decision.Label)
		rep.Classified++
		rep.Labels[o.decision.Label]++
		e.logger.Debugw("segment classified", "stage", stage.Name(), "reach_id", id,
			"label", o.decision.Label, "rule", o.decision.Rule)
	}

	e.logger.Infow("classification stage complete", "stage", stage.Name(),
		"classified", rep.Classified, "skipped", len(rep.Skipped))
	return rep
}

func resetLabels(seg *types.Segment) {
	seg.Risk = ""
	seg.Limitation = ""
	seg.Opportunity = ""
	seg.Management = ""
}
