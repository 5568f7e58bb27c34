package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"refit/internal/assist"
	"refit/internal/binding"
	"refit/internal/config"
	"refit/internal/trace"
)

// session bundles what every command needs: the resolved configuration,
// the engine built from it and the JDK catalog.
type session struct {
	cfg     *config.Config
	engine  assist.Engine
	catalog *binding.Catalog
	quiet   bool
}

// openSession loads the configuration for target, applies colour and trace
// flags and returns a cleanup that flushes the tracer.
func openSession(cmd *cobra.Command, target string) (*session, func(), error) {
	root := cmd.Root()
	quiet, err := root.PersistentFlags().GetBool("quiet")
	if err != nil {
		return nil, nil, err
	}
	if err := setupColor(cmd); err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(cmd, target)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.RuleTimeout()
	if err != nil {
		return nil, nil, err
	}
	cat, err := binding.DefaultCatalog()
	if err != nil {
		return nil, nil, fmt.Errorf("load JDK catalog: %w", err)
	}

	stopTrace, err := setupTracing(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	stopProf, err := setupProfiling(cmd)
	if err != nil {
		stopTrace()
		return nil, nil, err
	}
	cleanup := func() {
		stopProf()
		stopTrace()
	}
	if !quiet && cfg.Path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "using %s\n", cfg.Path)
	}
	return &session{
		cfg: cfg,
		engine: assist.Engine{
			Parallelism: cfg.Engine.Parallelism,
			RuleTimeout: timeout,
			Disabled:    cfg.Disabled(),
		},
		catalog: cat,
		quiet:   quiet,
	}, cleanup, nil
}

func loadConfig(cmd *cobra.Command, target string) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	if target == "" {
		if target, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	return config.Discover(target)
}

// setupColor applies --color to fatih/color and, through it, to every
// coloured writer of the process.
func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch strings.ToLower(mode) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// setupTracing reads the trace flags over the [trace] section and attaches
// the tracer to the command context.
func setupTracing(cmd *cobra.Command, cfg *config.Config) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	output, levelStr := cfg.Trace.Output, cfg.Trace.Level
	if flags.Changed("trace") {
		if output, _ = flags.GetString("trace"); output != "" && !flags.Changed("trace-level") && levelStr == "off" {
			// --trace без уровня включает фазы
			levelStr = "phase"
		}
	}
	if flags.Changed("trace-level") {
		levelStr, _ = flags.GetString("trace-level")
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	format, err := trace.ParseFormat(cfg.Trace.Format)
	if err != nil {
		return nil, err
	}
	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       trace.ModeStream,
		Format:     format,
		OutputPath: output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	return func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}
