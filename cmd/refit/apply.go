package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"refit/internal/assist"
	"refit/internal/fix"
)

var applyCmd = &cobra.Command{
	Use:   "apply [flags] <file.java>",
	Short: "Apply one proposal to the file in place",
	Long: `Apply computes the proposals at the caret again and writes the chosen one
to disk. The file keeps its line endings and byte order mark.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	addApplyFlags(applyCmd)
}

func addApplyFlags(cmd *cobra.Command) {
	addLocationFlags(cmd)
	cmd.Flags().Int("index", 1, "proposal number from the proposals listing")
	cmd.Flags().Bool("dry-run", false, "report the change without writing the file")
}

func runApply(cmd *cobra.Command, args []string) error {
	index, err := cmd.Flags().GetInt("index")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
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
	res, err := fix.Apply(req.fs, assist.Diagnostics(req.props), fix.ApplyOptions{
		Mode:     fix.ApplyModeID,
		TargetID: strconv.Itoa(index),
		DryRun:   dryRun,
	})
	if err != nil {
		if errors.Is(err, fix.ErrNoFixes) && res != nil && len(res.Skipped) > 0 {
			return fmt.Errorf("apply: %s: %s", p.Label, res.Skipped[len(res.Skipped)-1].Reason)
		}
		return fmt.Errorf("apply: %w", err)
	}

	if req.sess.quiet {
		return nil
	}
	out := cmd.OutOrStdout()
	verb := "Applied"
	if dryRun {
		verb = "Would apply"
	}
	for _, item := range res.Applied {
		fmt.Fprintf(out, "%s %s (%d edits) to %s\n", color.GreenString(verb), item.Title, item.EditCount, item.Path)
		if !p.Status.OK {
			fmt.Fprintf(out, "  %s\n", color.YellowString(p.Status.String()))
		}
	}
	return nil
}
