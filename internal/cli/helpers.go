package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bouthilx/track/internal/config"
	"github.com/bouthilx/track/persistence"
	"github.com/bouthilx/track/structure"
)

// resolveStorageURI returns the --storage flag value, falling back to the
// configured default. URIs still carrying the project placeholder are
// rejected, the CLI needs a concrete location.
func resolveStorageURI() (string, error) {
	uri := storageURI
	if uri == "" {
		cfg, err := config.Load()
		if err != nil {
			return "", fmt.Errorf("failed to load config: %w", err)
		}
		uri = cfg.Storage
	}
	if strings.Contains(uri, persistence.ProjectPlaceholder) {
		return "", fmt.Errorf("storage URI %q still contains %s, pass a concrete URI with --storage",
			uri, persistence.ProjectPlaceholder)
	}
	return uri, nil
}

func openStorage(ctx context.Context) (persistence.Storage, error) {
	uri, err := resolveStorageURI()
	if err != nil {
		return nil, err
	}
	st, err := persistence.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return st, nil
}

// findTrial resolves a trial by full UID or by a unique UID prefix.
func findTrial(st persistence.Storage, uid string) (*structure.Trial, error) {
	trial, err := st.GetTrial(uid)
	if err != nil {
		return nil, err
	}
	if trial != nil {
		return trial, nil
	}

	trials, err := st.FetchTrials(nil)
	if err != nil {
		return nil, err
	}
	var matches []*structure.Trial
	for _, t := range trials {
		if strings.HasPrefix(t.UID, uid) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("trial %q not found", uid)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("trial prefix %q is ambiguous (%d matches)", uid, len(matches))
	}
}

// compileFilter compiles an expr-lang filter expression.
func compileFilter(src string) (*vm.Program, error) {
	program, err := expr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", src, err)
	}
	return program, nil
}

// matchFilter evaluates a compiled filter against the trial's JSON
// projection, so serialized attribute names apply (status.name,
// parameters.lr, project_id).
func matchFilter(program *vm.Program, trial *structure.Trial) (bool, error) {
	env, err := trialEnv(trial)
	if err != nil {
		return false, err
	}
	out, err := vm.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter: %w", err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter must evaluate to a boolean, got %T", out)
	}
	return matched, nil
}

func trialEnv(trial *structure.Trial) (map[string]any, error) {
	data, err := json.Marshal(trial)
	if err != nil {
		return nil, err
	}
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env, nil
}

func truncateUID(uid string) string {
	if len(uid) > 12 {
		return uid[:12]
	}
	return uid
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(tags))
	for k, v := range tags {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
