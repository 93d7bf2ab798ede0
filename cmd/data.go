package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/engine"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/snapshot"
	"github.com/spf13/cobra"
)

func (a *app) appendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <dataset> [file.json]",
		Short: "Append a JSON array of records to a dataset (reads stdin without a file)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 2 && args[1] != "-" {
				raw, err = os.ReadFile(args[1])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("%w: reading records: %v", api.ErrInvalidArgument, err)
			}
			var records []any
			if err := jsonfile.Decode(raw, &records); err != nil {
				return fmt.Errorf("%w: records must be a JSON array: %v", api.ErrInvalidArgument, err)
			}
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Append(args[0], records)
			})
		},
	}
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "import <dataset> <results.db>",
		Short: "Append every row of a SQLite results table to a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Import(args[0], args[1], table)
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "results", "Table holding (id TEXT, record JSON) rows")
	return cmd
}

func (a *app) registryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "List enrichment output files with their index-field and fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return map[string]any{"status": api.StatusSuccess, "files": eng.Registry()}, nil
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var opts snapshot.Options
	cmd := &cobra.Command{
		Use:   "export <snapshot.db>",
		Short: "Write a SQLite snapshot of datasets, leads, links and enrichment rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Export(args[0], opts)
			})
		},
	}
	cmd.Flags().StringSliceVar(&opts.Datasets, "dataset", nil, "Extra datasets to include besides the mapped ones")
	cmd.Flags().BoolVar(&opts.Records, "records", false, "Also copy raw dataset records")
	return cmd
}
