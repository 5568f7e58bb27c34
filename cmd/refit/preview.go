package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [flags] <file.java>",
	Short: "Show the source after applying one proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	addPreviewFlags(previewCmd)
}

func addPreviewFlags(cmd *cobra.Command) {
	addLocationFlags(cmd)
	cmd.Flags().Int("index", 1, "proposal number from the proposals listing")
	cmd.Flags().Int("context", 2, "unchanged lines shown around the rewrite")
	cmd.Flags().Bool("full", false, "print the whole rewritten file without decoration")
}

var (
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6")).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	gutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runPreview(cmd *cobra.Command, args []string) error {
	index, err := cmd.Flags().GetInt("index")
	if err != nil {
		return err
	}
	ctxLines, err := cmd.Flags().GetInt("context")
	if err != nil {
		return err
	}
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return err
	}

	req, cleanup, err := computeAt(cmd, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := req.pick(index)
	if err != nil {
		return err
	}
	after, err := p.Preview()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if full {
		_, err = fmt.Fprint(out, after)
		return err
	}

	lines, first := changedLines(string(req.snap.File.Content), after, max(ctxLines, 0))
	width := len(fmt.Sprint(first + len(lines)))
	var body strings.Builder
	for i, line := range lines {
		if i > 0 {
			body.WriteByte('\n')
		}
		body.WriteString(gutterStyle.Render(fmt.Sprintf("%*d │", width, first+i)))
		body.WriteByte(' ')
		body.WriteString(strings.ReplaceAll(line, "\t", "    "))
	}

	title := titleStyle.Render(fmt.Sprintf("%d. %s", index, p.Label))
	if !p.Status.OK {
		title += " " + color.YellowString("(%s)", p.Status.String())
	}
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, boxStyle.Render(body.String()))
	return nil
}
