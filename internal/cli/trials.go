package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	track "github.com/bouthilx/track"
	"github.com/bouthilx/track/structure"
)

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "Inspect trials",
	Long:  `List and inspect recorded trials.`,
}

var trialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trials",
	Long: `List recorded trials with optional filters.

The --filter expression is evaluated against each trial's JSON form, so
serialized attribute names apply (status.name, parameters.lr, project_id).

Examples:
  track trials list -s file://results.json
  track trials list --project mnist
  track trials list --filter 'status.name == "completed"'
  track trials list --filter 'parameters.lr > 0.01 && revision == 0'`,
	RunE: runTrialsList,
}

var trialsShowCmd = &cobra.Command{
	Use:   "show UID",
	Short: "Show one trial",
	Long: `Show a trial digest.

UID may be a unique prefix. With --short, identity attributes are dropped
and metric series are cut to their tail.

Examples:
  track trials show 3f2a9c -s file://results.json
  track trials show 3f2a9c --short`,
	Args: cobra.ExactArgs(1),
	RunE: runTrialsShow,
}

// Flags
var (
	trialsProject string
	trialsFilter  string
	trialsShort   bool
)

func init() {
	rootCmd.AddCommand(trialsCmd)
	trialsCmd.AddCommand(trialsListCmd)
	trialsCmd.AddCommand(trialsShowCmd)

	trialsListCmd.Flags().StringVar(&trialsProject, "project", "", "Filter by project name")
	trialsListCmd.Flags().StringVar(&trialsFilter, "filter", "", "Filter expression (expr-lang)")
	trialsShowCmd.Flags().BoolVar(&trialsShort, "short", false, "Show the short digest")
}

func runTrialsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var trials []*structure.Trial
	if trialsProject != "" {
		project, err := st.GetProjectByName(trialsProject)
		if err != nil {
			return err
		}
		if project == nil {
			return fmt.Errorf("project %q not found", trialsProject)
		}
		for _, uid := range project.Trials {
			trial, err := st.GetTrial(uid)
			if err != nil {
				return err
			}
			if trial == nil {
				continue
			}
			trials = append(trials, trial)
		}
	} else {
		trials, err = st.FetchTrials(nil)
		if err != nil {
			return fmt.Errorf("failed to list trials: %w", err)
		}
	}

	if trialsFilter != "" {
		program, err := compileFilter(trialsFilter)
		if err != nil {
			return err
		}
		kept := trials[:0]
		for _, trial := range trials {
			matched, err := matchFilter(program, trial)
			if err != nil {
				return err
			}
			if matched {
				kept = append(kept, trial)
			}
		}
		trials = kept
	}

	if len(trials) == 0 {
		fmt.Println("No trials found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tSTATUS\tREVISION\tVERSION\tTAGS")
	fmt.Fprintln(w, "---\t------\t--------\t-------\t----")
	for _, trial := range trials {
		version := trial.Version
		if len(version) > 10 {
			version = version[:10]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncateUID(trial.UID), trial.Status.Name, trial.Revision, version, formatTags(trial.Tags))
	}
	w.Flush()

	fmt.Printf("\nShowing %d trial(s)\n", len(trials))
	return nil
}

func runTrialsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	trial, err := findTrial(st, args[0])
	if err != nil {
		return err
	}

	renderDigest(os.Stdout, track.Digest(trial, trialsShort))
	return nil
}

// digestKeyOrder pins identity attributes before containers; anything not
// listed renders last, alphabetically.
var digestKeyOrder = []string{
	"dtype", "uid", "name", "description", "version", "status", "revision",
	"hash", "project_id", "group_id", "tags",
	"parameters", "metadata", "metrics", "chronos", "errors",
}

var (
	keyColor = color.New(color.FgCyan).SprintFunc()

	statusColors = map[string]func(a ...any) string{
		"new":         color.New(color.FgBlue).SprintFunc(),
		"running":     color.New(color.FgCyan).SprintFunc(),
		"completed":   color.New(color.FgGreen).SprintFunc(),
		"interrupted": color.New(color.FgYellow).SprintFunc(),
		"broken":      color.New(color.FgRed).SprintFunc(),
	}
)

func colorStatus(name string) string {
	if f, ok := statusColors[name]; ok {
		return f(name)
	}
	return name
}

func renderDigest(w io.Writer, digest map[string]any) {
	for _, k := range digestKeys(digest) {
		v := digest[k]
		if k == "status" {
			if st, ok := v.(map[string]any); ok {
				if name, ok := st["name"].(string); ok {
					fmt.Fprintf(w, "%s: %s\n", keyColor(k), colorStatus(name))
					continue
				}
			}
		}
		fmt.Fprintf(w, "%s: %s\n", keyColor(k), renderValue(v))
	}
}

func digestKeys(digest map[string]any) []string {
	seen := map[string]bool{}
	keys := make([]string, 0, len(digest))
	for _, k := range digestKeyOrder {
		if _, ok := digest[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range digest {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	default:
		data, err := json.MarshalIndent(x, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		s := string(data)
		if strings.Contains(s, "\n") {
			s = "\n  " + strings.ReplaceAll(s, "\n", "\n  ")
		}
		return s
	}
}
