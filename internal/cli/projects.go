package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Inspect projects",
	Long:  `List recorded projects.`,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Long: `List recorded projects.

Examples:
  track projects list --storage file://results.json
  track projects list -s sqlite://results.db`,
	RunE: runProjectsList,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	projects, err := st.FetchProjects(nil)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tNAME\tGROUPS\tTRIALS\tDESCRIPTION")
	fmt.Fprintln(w, "---\t----\t------\t------\t-----------")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			truncateUID(p.UID), p.Name, len(p.Groups), len(p.Trials), p.Description)
	}
	w.Flush()

	fmt.Printf("\nShowing %d project(s)\n", len(projects))
	return nil
}
