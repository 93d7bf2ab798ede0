package cmd

import (
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/engine"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/extract"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/projector"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/survey"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// selectFlags are shared by extract and enrich.
type selectFlags struct {
	path       string
	fields     string
	where      string
	indexField string
	offset     int
	limit      int
}

func (f *selectFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.path, "path", "", "Path such as [*].content or [3].author.name")
	fs.StringVar(&f.fields, "fields", "", "Multi-field projection: key=path,key2=path2")
	fs.StringVar(&f.where, "where", "", "Filter clause field=value")
	fs.StringVar(&f.indexField, "index-field", "", "Index-field of the dataset, if not the derived one")
	fs.IntVar(&f.offset, "offset", 0, "Skip this many matching items")
	fs.IntVar(&f.limit, "limit", 0, "Return at most this many items (0 = all)")
}

func (f *selectFlags) request(dataset string) (extract.Request, error) {
	req := extract.Request{
		Source:     dataset,
		Path:       f.path,
		Where:      f.where,
		IndexField: f.indexField,
		Offset:     f.offset,
		Limit:      f.limit,
	}
	if f.fields != "" {
		fields, err := projector.ParseFields(f.fields)
		if err != nil {
			return req, err
		}
		req.Fields = fields
	}
	return req, nil
}

func (a *app) extractCmd() *cobra.Command {
	var (
		sel  selectFlags
		save string
	)
	cmd := &cobra.Command{
		Use:   "extract <dataset>",
		Short: "Project a path or fields over a dataset, optionally filtered",
		Example: `  lineage extract postData --path '[*].content' --where relevant=true
  lineage extract postData --fields 'text=content,who=author.name' --limit 10
  lineage extract postData --path '[*].author' --save authorData`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := sel.request(args[0])
			if err != nil {
				return err
			}
			req.SaveAs = save
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Extract(req)
			})
		},
	}
	sel.register(cmd.Flags())
	cmd.Flags().StringVar(&save, "save", "", "Store the extracted values as a new dataset")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	cfg := survey.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "inspect <dataset>",
		Short: "Sample a dataset and list its paths with counts and types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd, func(eng *engine.Engine) (any, error) {
				return eng.Inspect(args[0], cfg)
			})
		},
	}
	cmd.Flags().IntVar(&cfg.SampleSize, "sample", cfg.SampleSize, "Records to sample")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Sampling seed")
	return cmd
}
