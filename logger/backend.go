package logger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bouthilx/track/structure"
)

// NoStep marks an un-stepped metrics observation in the backend hook.
const NoStep int64 = -1

// ErrUnknownBackend is returned by Build for unregistered backend names.
var ErrUnknownBackend = errors.New("unknown logger backend")

// Backend receives the observations the logger records. Implementations
// push them to an external collector; the default does nothing.
type Backend interface {
	LogTrialStart(ctx context.Context, trial *structure.Trial) error
	LogTrialFinish(ctx context.Context, trial *structure.Trial) error
	LogMetrics(ctx context.Context, trial *structure.Trial, step int64, metrics map[string]any) error
	LogArguments(ctx context.Context, trial *structure.Trial, args map[string]any) error
	Close(ctx context.Context) error
}

// Options configures backend construction. Backends pick the fields they
// need.
type Options struct {
	Endpoint string
	Insecure bool
}

// Builder constructs a backend from options.
type Builder func(ctx context.Context, opts Options) (Backend, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{}
)

// Register makes a backend available under a name. Backends register
// themselves in their init.
func Register(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if _, dup := builders[name]; dup {
		panic(fmt.Sprintf("logger: backend %q registered twice", name))
	}
	builders[name] = b
}

// Backends reports the registered backend names, sorted.
func Backends() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build constructs the backend registered under name. The empty name means
// the no-op backend.
func Build(ctx context.Context, name string, opts Options) (Backend, error) {
	if name == "" {
		name = "none"
	}

	buildersMu.RLock()
	b, ok := builders[name]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("build backend %q: %w", name, ErrUnknownBackend)
	}

	backend, err := b(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build backend %q: %w", name, err)
	}
	return backend, nil
}
