package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/config"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/engine"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/enrich"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

// app carries the persistent flags and the resolved configuration for one
// invocation.
type app struct {
	configPath string
	dataDir    string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
	stderr io.Writer
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}

	root := &cobra.Command{
		Use:           "lineage",
		Short:         "Track leads across append-only JSON datasets",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Workspace directory holding datasets, mapping and registry")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "text or json")

	root.AddCommand(
		a.initCmd(),
		a.extractCmd(),
		a.updateCmd(),
		a.linkCmd(),
		a.enrichCmd(),
		a.appendCmd(),
		a.importCmd(),
		a.inspectCmd(),
		a.registryCmd(),
		a.exportCmd(),
		a.serveCmd(),
	)
	return root
}

// setup resolves flags over the config file over defaults and builds the
// process logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidArgument, err)
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidArgument, err)
	}
	logger, err := logging.New(a.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidArgument, err)
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// open locks the workspace. classifier may be nil for commands that never
// enrich.
func (a *app) open(classifier enrich.Classifier) (*engine.Engine, error) {
	opts := enrich.DefaultOptions()
	if e := a.cfg.Enrich; e != nil {
		opts.BatchSize = e.BatchSize
		opts.Concurrency = e.Concurrency
		opts.RatePerSecond = e.RatePerSecond
		d, err := e.TimeoutDuration()
		if err != nil {
			return nil, fmt.Errorf("%w: enrich.timeout: %v", api.ErrInvalidArgument, err)
		}
		opts.Timeout = d
	}
	return engine.Open(engine.Options{
		DataDir:      a.cfg.DataDir,
		MappingFile:  a.cfg.MappingFile,
		RegistryFile: a.cfg.RegistryFile,
		Classifier:   classifier,
		Enrich:       opts,
		Logger:       a.logger,
	})
}

// classifier returns the configured exec classifier, or nil.
func (a *app) classifier() enrich.Classifier {
	if e := a.cfg.Enrich; e != nil && len(e.ClassifierCommand) > 0 {
		return &enrich.ExecClassifier{Command: e.ClassifierCommand}
	}
	return nil
}

// withEngine opens the workspace, runs fn and prints its result.
func (a *app) withEngine(cmd *cobra.Command, fn func(*engine.Engine) (any, error)) error {
	eng, err := a.open(nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	v, err := fn(eng)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseIndices accepts "0,2,5" as well as repeated values.
func parseIndices(values []string) ([]int, error) {
	var out []int
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: index %q is not an integer", api.ErrInvalidArgument, part)
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no indices given", api.ErrInvalidArgument)
	}
	return out, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// run executes args and reports failures as an error result on stdout.
// It returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		_ = printJSON(stdout, api.NewErrorResult(err))
		return 1
	}
	return 0
}

// Execute runs the root command.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
