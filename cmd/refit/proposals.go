package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"refit/internal/assist"
	"refit/internal/diag"
	"refit/internal/source"
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals [flags] <file.java>",
	Short: "List the rewrites available at a caret or selection",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposals,
}

func init() {
	addProposalsFlags(proposalsCmd)
}

func addProposalsFlags(cmd *cobra.Command) {
	addLocationFlags(cmd)
	cmd.Flags().String("format", "text", "output format (text|json)")
}

// addLocationFlags registers the caret flags shared by proposals, preview
// and apply.
func addLocationFlags(cmd *cobra.Command) {
	cmd.Flags().Int("offset", -1, "caret byte offset")
	cmd.Flags().Int("line", 0, "caret line (1-based)")
	cmd.Flags().Int("col", 0, "caret column in bytes (1-based)")
	cmd.Flags().Int("length", 0, "selection length in bytes")
}

// request is one loaded file with the proposals at the requested caret.
type request struct {
	sess  *session
	fs    *source.FileSet
	snap  *assist.Snapshot
	props []assist.Proposal
}

// computeAt loads path, resolves the caret flags and computes proposals.
func computeAt(cmd *cobra.Command, path string) (*request, func(), error) {
	sess, cleanup, err := openSession(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	file := fs.Get(id)
	offset, length, err := caretFromFlags(cmd, file)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	ctx := cmd.Context()
	snap, err := assist.NewSnapshot(ctx, nil, sess.catalog, file, sess.cfg.FormattingOptions())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if !sess.quiet && len(snap.Diagnostics) > 0 {
		printSyntaxErrors(cmd.ErrOrStderr(), fs, snap.Diagnostics)
	}
	props, err := sess.engine.ComputeProposals(ctx, snap, offset, length)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return &request{sess: sess, fs: fs, snap: snap, props: props}, cleanup, nil
}

func caretFromFlags(cmd *cobra.Command, file *source.File) (offset, length int, err error) {
	flags := cmd.Flags()
	if offset, err = flags.GetInt("offset"); err != nil {
		return 0, 0, err
	}
	if length, err = flags.GetInt("length"); err != nil {
		return 0, 0, err
	}
	line, err := flags.GetInt("line")
	if err != nil {
		return 0, 0, err
	}
	col, err := flags.GetInt("col")
	if err != nil {
		return 0, 0, err
	}

	switch {
	case offset >= 0 && line > 0:
		return 0, 0, errors.New("--offset and --line are mutually exclusive")
	case offset >= 0:
		return offset, length, nil
	case line > 0:
		if col <= 0 {
			col = 1
		}
		off, ok := file.Offset(source.LineCol{Line: uint32(line), Col: uint32(col)})
		if !ok {
			return 0, 0, fmt.Errorf("%d:%d is outside %s", line, col, file.Path)
		}
		return int(off), length, nil
	}
	return 0, 0, errors.New("either --offset or --line is required")
}

func printSyntaxErrors(w io.Writer, fs *source.FileSet, ds []diag.Diagnostic) {
	warn := color.New(color.FgYellow)
	warn.Fprintf(w, "warning: %d syntax error(s), proposals near them are skipped\n", len(ds))
	for _, d := range ds {
		fmt.Fprint(w, diag.FormatShort([]diag.Diagnostic{d}, fs, false))
		start, _ := fs.Resolve(d.Primary)
		if line := fs.Get(d.Primary.File).GetLine(start.Line); strings.TrimSpace(line) != "" {
			fmt.Fprintf(w, "    | %s\n", line)
		}
	}
}

func runProposals(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}

	req, cleanup, err := computeAt(cmd, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if format == "json" {
		return renderProposalsJSON(out, req.props)
	}
	if len(req.props) == 0 {
		if !req.sess.quiet {
			fmt.Fprintln(out, "no proposals at this location")
		}
		return nil
	}
	renderProposals(out, req.props)
	return nil
}

func renderProposals(out io.Writer, props []assist.Proposal) {
	idx := color.New(color.Bold)
	rule := color.New(color.FgCyan)
	warn := color.New(color.FgYellow)
	for i, p := range props {
		fmt.Fprintf(out, "%s %s %s", idx.Sprintf("%2d.", i+1), p.Label, rule.Sprintf("[%s]", p.RuleID))
		if !p.Status.OK {
			fmt.Fprintf(out, " %s", warn.Sprint(p.Status.String()))
		}
		fmt.Fprintln(out)
	}
}

type proposalJSON struct {
	Index     int        `json:"index"`
	Rule      string     `json:"rule"`
	Label     string     `json:"label"`
	Status    string     `json:"status"`
	Relevance int        `json:"relevance"`
	Edits     []editJSON `json:"edits"`
}

type editJSON struct {
	Start   uint32 `json:"start"`
	End     uint32 `json:"end"`
	NewText string `json:"new_text"`
}

func renderProposalsJSON(out io.Writer, props []assist.Proposal) error {
	payload := make([]proposalJSON, 0, len(props))
	for i, p := range props {
		item := proposalJSON{
			Index:     i + 1,
			Rule:      p.RuleID,
			Label:     p.Label,
			Status:    p.Status.String(),
			Relevance: p.Relevance,
		}
		for _, e := range p.Edits {
			item.Edits = append(item.Edits, editJSON{Start: e.Span.Start, End: e.Span.End, NewText: e.NewText})
		}
		payload = append(payload, item)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// pick returns the proposal numbered index (1-based) in the listing.
func (r *request) pick(index int) (assist.Proposal, error) {
	if len(r.props) == 0 {
		return assist.Proposal{}, errors.New("no proposals at this location")
	}
	if index < 1 || index > len(r.props) {
		return assist.Proposal{}, fmt.Errorf("--index %d out of range (1..%d)", index, len(r.props))
	}
	return r.props[index-1], nil
}

// changedLines returns the 1-based line range of after that differs from
// before, widened by ctx lines.
func changedLines(before, after string, ctx int) (lines []string, first int) {
	a := strings.Split(before, "\n")
	b := strings.Split(after, "\n")
	pre := 0
	for pre < len(a) && pre < len(b) && a[pre] == b[pre] {
		pre++
	}
	suf := 0
	for suf < len(a)-pre && suf < len(b)-pre && a[len(a)-1-suf] == b[len(b)-1-suf] {
		suf++
	}
	lo := max(pre-ctx, 0)
	hi := min(len(b)-suf+ctx, len(b))
	return b[lo:hi], lo + 1
}
