package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"refit/internal/driver"
)

var scanCmd = &cobra.Command{
	Use:   "scan [flags] <directory|file.java>",
	Short: "Report every rewrite available in a tree of Java sources",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	addScanFlags(scanCmd)
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().Int("jobs", 0, "max parallel files (0=GOMAXPROCS)")
	cmd.Flags().String("format", "text", "output format (text|json|msgpack)")
	cmd.Flags().String("ui", "auto", "progress display (auto|on|off)")
	cmd.Flags().Bool("no-cache", false, "ignore the result cache")
	cmd.Flags().Bool("clear-cache", false, "drop the result cache before scanning")
	cmd.Flags().Bool("timings", false, "print phase timings to stderr")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	flags := cmd.Flags()
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	switch format {
	case "text", "json", "msgpack":
	default:
		return fmt.Errorf("unsupported format %q (must be text, json or msgpack)", format)
	}
	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return err
	}
	clearCache, err := flags.GetBool("clear-cache")
	if err != nil {
		return err
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return err
	}

	sess, cleanup, err := openSession(cmd, target)
	if err != nil {
		return err
	}
	defer cleanup()

	opt := driver.ScanOptions{
		Jobs:    jobs,
		Engine:  sess.engine,
		Format:  sess.cfg.FormattingOptions(),
		Catalog: sess.catalog,
	}
	if sess.cfg.Cache.Enabled && !noCache {
		cache, err := driver.OpenDiskCache(sess.cfg.Cache.Dir)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		if clearCache {
			if err := cache.DropAll(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
		}
		opt.Cache = cache
	}

	useUI := format == "text" && !sess.quiet && shouldUseTUI(mode)
	var res *driver.ScanResult
	if useUI {
		res, err = scanWithProgress(cmd.Context(), target, &opt, cmd.OutOrStdout())
	} else {
		res, err = driver.Scan(cmd.Context(), target, opt)
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if timings {
		fmt.Fprint(cmd.ErrOrStderr(), res.Timings.String())
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Files)
	case "msgpack":
		return msgpack.NewEncoder(out).Encode(res.Files)
	}
	renderScan(out, res, sess.quiet)
	return nil
}

func renderScan(out io.Writer, res *driver.ScanResult, quiet bool) {
	loc := color.New(color.Bold)
	rule := color.New(color.FgCyan)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	rel := relativeTo(res.Root)
	cached, failed := 0, 0
	for _, f := range res.Files {
		if f.Cached {
			cached++
		}
		if f.Err != "" {
			failed++
			fmt.Fprintf(out, "%s: %s\n", loc.Sprint(rel(f.Path)), bad.Sprint(f.Err))
			continue
		}
		for _, fd := range f.Findings {
			fmt.Fprintf(out, "%s: %s %s", loc.Sprintf("%s:%d:%d", rel(f.Path), fd.Line, fd.Col), fd.Label, rule.Sprintf("[%s]", fd.RuleID))
			if fd.Warning != "" {
				fmt.Fprintf(out, " %s", warn.Sprintf("warning: %s", fd.Warning))
			}
			fmt.Fprintln(out)
		}
	}
	if quiet {
		return
	}
	summary := fmt.Sprintf("%d finding(s) in %d file(s)", res.Count(), len(res.Files))
	var extra []string
	if cached > 0 {
		extra = append(extra, fmt.Sprintf("%d cached", cached))
	}
	if failed > 0 {
		extra = append(extra, bad.Sprintf("%d failed", failed))
	}
	if len(extra) > 0 {
		summary += " (" + strings.Join(extra, ", ") + ")"
	}
	fmt.Fprintln(out, summary)
}

// relativeTo shortens paths under a scanned directory; a scanned file keeps
// its path as given.
func relativeTo(root string) func(string) string {
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return filepath.ToSlash
	}
	return func(path string) string {
		if rel, err := filepath.Rel(root, path); err == nil {
			return filepath.ToSlash(rel)
		}
		return filepath.ToSlash(path)
	}
}
