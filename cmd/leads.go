package cmd

import (
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/engine"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/filter"
	"github.com/spf13/cobra"
)

func (a *app) initCmd() *cobra.Command {
	var indexField string
	cmd := &cobra.Command{
		Use:   "init <dataset>",
		Short: "Create a lead for every record of a dataset not yet mapped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Init(args[0], indexField)
			})
		},
	}
	cmd.Flags().StringVar(&indexField, "index-field", "", "Index-field for the dataset (default derived from its name)")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <index-field> <indices> <field> <value>",
		Short: "Set field=value on the leads holding the given indices",
		Long: `Set field=value on every lead whose index-field holds one of the
comma-separated indices. The value is parsed as a literal: true, false, null,
a number, a quoted string, otherwise a bare string.`,
		Example: "  lineage update postIndex 0,2,5 relevant true",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, err := parseIndices([]string{args[1]})
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Update(args[0], indices, args[2], filter.ParseLiteral(args[3]))
			})
		},
	}
	return cmd
}

func (a *app) linkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "link <source-index-field> <source-indices> <target-index-field>",
		Short:   "Assign consecutive target indices to source indices not yet linked",
		Example: "  lineage link postIndex 0,2,5 profileIndex",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, err := parseIndices([]string{args[1]})
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Link(args[0], indices, args[2])
			})
		},
	}
	return cmd
}
