package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"refit/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [path]",
	Short: "List the rewrite rules and whether the configuration enables them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		sess, cleanup, err := openSession(cmd, target)
		if err != nil {
			return err
		}
		defer cleanup()
		for id := range sess.engine.Disabled {
			if _, ok := rules.Lookup(id); !ok && !sess.quiet {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: unknown rule %q in disabled_rules\n", id)
			}
		}
		renderRules(cmd.OutOrStdout(), sess.engine.Disabled)
		return nil
	},
}

func renderRules(out io.Writer, disabled map[string]bool) {
	header := []string{"ID", "FAMILY", "TITLE", "STATE"}
	rows := [][]string{}
	for _, k := range rules.All() {
		info := k.Info()
		state := "enabled"
		if disabled[info.ID] {
			state = "disabled"
		}
		rows = append(rows, []string{info.ID, info.Family, info.Title, state})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	bold := color.New(color.Bold)
	off := color.New(color.FgHiBlack)
	line := func(cells []string, style *color.Color) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = cell
			} else {
				parts[i] = runewidth.FillRight(cell, widths[i])
			}
		}
		text := strings.Join(parts, "  ")
		if style != nil {
			text = style.Sprint(text)
		}
		fmt.Fprintln(out, text)
	}

	line(header, bold)
	for _, row := range rows {
		var style *color.Color
		if row[len(row)-1] == "disabled" {
			style = off
		}
		line(row, style)
	}
}
