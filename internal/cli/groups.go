package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bouthilx/track/structure"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Inspect trial groups",
	Long:  `List recorded trial groups.`,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trial groups",
	Long: `List recorded trial groups, optionally restricted to one project.

Examples:
  track groups list -s file://results.json
  track groups list --project mnist`,
	RunE: runGroupsList,
}

var groupsProject string

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsListCmd)

	groupsListCmd.Flags().StringVar(&groupsProject, "project", "", "Filter by project name")
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var groups []*structure.TrialGroup
	if groupsProject != "" {
		project, err := st.GetProjectByName(groupsProject)
		if err != nil {
			return err
		}
		if project == nil {
			return fmt.Errorf("project %q not found", groupsProject)
		}
		for _, uid := range project.Groups {
			group, err := st.GetGroup(uid)
			if err != nil {
				return err
			}
			if group == nil {
				continue
			}
			groups = append(groups, group)
		}
	} else {
		groups, err = st.FetchGroups(nil)
		if err != nil {
			return fmt.Errorf("failed to list groups: %w", err)
		}
	}

	if len(groups) == 0 {
		fmt.Println("No groups found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tNAME\tPROJECT\tTRIALS")
	fmt.Fprintln(w, "---\t----\t-------\t------")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			truncateUID(g.UID), g.Name, truncateUID(g.ProjectID), len(g.Trials))
	}
	w.Flush()

	fmt.Printf("\nShowing %d group(s)\n", len(groups))
	return nil
}
