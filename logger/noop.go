package logger

import (
	"context"

	"github.com/bouthilx/track/structure"
)

func init() {
	Register("none", func(ctx context.Context, opts Options) (Backend, error) {
		return NewNoop(), nil
	})
}

// Noop is the default backend. It does nothing, tracking stays local.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) LogTrialStart(ctx context.Context, trial *structure.Trial) error {
	return nil
}

func (n *Noop) LogTrialFinish(ctx context.Context, trial *structure.Trial) error {
	return nil
}

func (n *Noop) LogMetrics(ctx context.Context, trial *structure.Trial, step int64, metrics map[string]any) error {
	return nil
}

func (n *Noop) LogArguments(ctx context.Context, trial *structure.Trial, args map[string]any) error {
	return nil
}

func (n *Noop) Close(ctx context.Context) error {
	return nil
}
