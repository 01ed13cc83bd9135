// Package logger records experiment observations against a trial and
// forwards them to a pluggable backend. The logger owns every mutation of
// the trial while a run is in flight; storages only see the result when the
// client commits.
package logger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bouthilx/track/aggregator"
	"github.com/bouthilx/track/structure"
)

// RuntimeChrono is the reserved timer covering the whole run, started by
// Start and closed by Finish.
const RuntimeChrono = "runtime"

// Logger mutates a bound trial and forwards observations to a backend.
// It is not safe for concurrent use; a trial is tracked from one goroutine.
type Logger struct {
	trial   *structure.Trial
	backend Backend

	project *structure.Project
	group   *structure.TrialGroup

	chronos  map[string]time.Time
	finished bool
}

// New binds a logger to a trial and a backend.
func New(trial *structure.Trial, backend Backend) *Logger {
	if backend == nil {
		backend = NewNoop()
	}
	return &Logger{
		trial:   trial,
		backend: backend,
		chronos: map[string]time.Time{},
	}
}

// Trial reports the bound trial.
func (l *Logger) Trial() *structure.Trial {
	return l.trial
}

// Backend reports the bound backend.
func (l *Logger) Backend() Backend {
	return l.backend
}

// SetProject informs the logger of the owning project.
func (l *Logger) SetProject(p *structure.Project) {
	l.project = p
}

// SetGroup informs the logger of the owning group.
func (l *Logger) SetGroup(g *structure.TrialGroup) {
	l.group = g
}

// LogArguments merges the run's arguments into the trial parameters.
// The trial hash depends on the parameters, so arguments should be logged
// before the trial is registered with a storage.
func (l *Logger) LogArguments(args map[string]any) error {
	for k, v := range args {
		l.trial.Parameters[k] = v
	}
	return l.backend.LogArguments(context.Background(), l.trial, args)
}

// LogMetrics appends un-stepped observations, one time series per key.
func (l *Logger) LogMetrics(metrics map[string]any) error {
	for k, v := range metrics {
		container, ok := l.trial.Metrics[k].(aggregator.Aggregator)
		if !ok {
			container = aggregator.NewTimeSeriesAggregator()
			l.trial.Metrics[k] = container
		}
		container.Append(v)
	}
	return l.backend.LogMetrics(context.Background(), l.trial, NoStep, metrics)
}

// LogMetricsStep records observations under an explicit step, one step-keyed
// map per key. Re-logging a step overwrites it.
func (l *Logger) LogMetricsStep(step int64, metrics map[string]any) error {
	key := strconv.FormatInt(step, 10)
	for k, v := range metrics {
		container, ok := l.trial.Metrics[k].(map[string]any)
		if !ok {
			container = map[string]any{}
			l.trial.Metrics[k] = container
		}
		container[key] = v
	}
	return l.backend.LogMetrics(context.Background(), l.trial, step, metrics)
}

// LogMetadata records facts about the run environment. Values accumulate in
// a plain value container per key.
func (l *Logger) LogMetadata(metadata map[string]any) error {
	for k, v := range metadata {
		container, ok := l.trial.Metadata[k].(aggregator.Aggregator)
		if !ok {
			container = aggregator.NewValueAggregator()
			l.trial.Metadata[k] = container
		}
		container.Append(v)
	}
	return nil
}

// AddTags merges tags into the trial.
func (l *Logger) AddTags(tags map[string]string) {
	for k, v := range tags {
		l.trial.Tags[k] = v
	}
}

// ChronoStart opens a named wall-clock timer. Repeated start/finish cycles
// aggregate into streaming statistics per name.
func (l *Logger) ChronoStart(name string) {
	if _, ok := l.trial.Chronos[name].(aggregator.Aggregator); !ok {
		agg := aggregator.NewStatAggregator(1)
		agg.Unit = "s"
		l.trial.Chronos[name] = agg
	}
	l.chronos[name] = time.Now()
}

// ChronoFinish closes a named timer and records the elapsed seconds.
func (l *Logger) ChronoFinish(name string) error {
	start, ok := l.chronos[name]
	if !ok {
		return fmt.Errorf("chrono %q was never started", name)
	}
	delete(l.chronos, name)

	container, ok := l.trial.Chronos[name].(aggregator.Aggregator)
	if !ok {
		return fmt.Errorf("chrono %q has no container", name)
	}
	container.Append(time.Since(start).Seconds())
	return nil
}

// SetStatus moves the trial through its lifecycle and records the error
// when one is given.
func (l *Logger) SetStatus(status structure.Status, err error) {
	l.trial.Status = status
	if err != nil {
		l.trial.Errors = append(l.trial.Errors, err.Error())
	}
}

// Start marks the trial running and opens the runtime timer.
func (l *Logger) Start() error {
	l.SetStatus(structure.StatusRunning, nil)
	l.trial.Chronos[RuntimeChrono] = aggregator.NewValueAggregator()
	l.chronos[RuntimeChrono] = time.Now()
	return l.backend.LogTrialStart(context.Background(), l.trial)
}

// Finish closes the runtime timer, settles the final status and shuts the
// backend down. Calling it again does nothing.
func (l *Logger) Finish(runErr error) error {
	if l.finished {
		return nil
	}
	l.finished = true

	if start, ok := l.chronos[RuntimeChrono]; ok {
		delete(l.chronos, RuntimeChrono)
		if container, ok := l.trial.Chronos[RuntimeChrono].(aggregator.Aggregator); ok {
			container.Append(time.Since(start).Seconds())
		}
	}

	if runErr != nil {
		l.SetStatus(structure.StatusBroken, runErr)
	} else if !l.trial.Status.Finished() {
		l.SetStatus(structure.StatusCompleted, nil)
	}

	ctx := context.Background()
	if err := l.backend.LogTrialFinish(ctx, l.trial); err != nil {
		return err
	}
	return l.backend.Close(ctx)
}
