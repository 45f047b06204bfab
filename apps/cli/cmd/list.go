package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/loader"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/selection"
	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

var listFlat bool

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the specs in suite files",
	Long: `List the groups and specs defined in suite files without running them.

Examples:
  hitsuite list ./suites/
  hitsuite list api.suite.yaml --flat`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().BoolVar(&listFlat, "flat", false, "Print one prefixed description per spec, with its tags")
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := loader.Discover(args)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}
	if len(files) == 0 {
		return &exitError{code: ExitUsageError, err: fmt.Errorf("no .suite.yaml files found")}
	}

	root, err := loader.New().LoadFiles(files)
	if err != nil {
		return &exitError{code: ExitParseError, err: err}
	}

	out := cmd.OutOrStdout()
	if listFlat {
		for job := range root.OrderedJobs() {
			line := selection.Description(job)
			if tags := selection.TagsOf(job); len(tags) > 0 {
				line += "  " + formatTags(tags)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}
	printGroup(out, root, 0)
	return nil
}

// printGroup prints g as an indented tree. A synthetic root is not printed;
// its children start at depth.
func printGroup(w io.Writer, g *suite.Group, depth int) {
	next := depth
	if g.Description() != "" {
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), g.Description(), markers(g.Skipped(), g.Focused()))
		next++
	}
	for _, spec := range g.Specs() {
		fmt.Fprintf(w, "%s- %s%s\n", strings.Repeat("  ", next), spec.Description(), markers(spec.Skipped(), spec.Focused()))
	}
	for _, child := range g.Suites() {
		printGroup(w, child, next)
	}
}

func markers(skipped, focused bool) string {
	switch {
	case skipped:
		return " [skip]"
	case focused:
		return " [only]"
	}
	return ""
}

func formatTags(tags []suite.Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
