package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/enrich"
	"github.com/spf13/cobra"
)

func (a *app) enrichCmd() *cobra.Command {
	var (
		sel          selectFlags
		outputFields []string
		outputFile   string
		promote      []string
		promptFile   string
		classifier   string
		batchSize    int
		concurrency  int
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "enrich <dataset>",
		Short: "Classify the items still missing from an output file",
		Long: `Project and filter a dataset like extract, drop the items whose index
already appears in the output file, and send the rest to the classifier in
batches. Each batch is appended to the output file and its fields are
registered so later where clauses resolve them.

The classifier is a command that reads a JSON batch on stdin and writes a
JSON array of {"index": n, <field>: value, ...} objects on stdout.`,
		Example: `  lineage enrich postData --path '[*].content' --where relevant=true \
    --output-fields isCanvaRelated,confidence --classifier 'python3 classify.py'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selReq, err := sel.request(args[0])
			if err != nil {
				return err
			}
			fields := splitList(outputFields)
			if len(fields) == 0 {
				return fmt.Errorf("%w: --output-fields is required", api.ErrInvalidArgument)
			}
			req := enrich.Request{
				Select:     selReq,
				Fields:     fields,
				OutputFile: outputFile,
				Promote:    splitList(promote),
				DryRun:     dryRun,
			}
			if promptFile != "" {
				b, err := os.ReadFile(promptFile)
				if err != nil {
					return fmt.Errorf("%w: prompt file: %v", api.ErrInvalidArgument, err)
				}
				req.Prompt = string(b)
			}

			if e := a.cfg.Enrich; e != nil {
				if cmd.Flags().Changed("batch-size") {
					e.BatchSize = batchSize
				}
				if cmd.Flags().Changed("concurrency") {
					e.Concurrency = concurrency
				}
				if cmd.Flags().Changed("classifier") {
					e.ClassifierCommand = strings.Fields(classifier)
				}
				if err := a.cfg.Validate(); err != nil {
					return fmt.Errorf("%w: %v", api.ErrInvalidArgument, err)
				}
			}

			eng, err := a.open(a.classifier())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			res, err := eng.Enrich(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	sel.register(cmd.Flags())
	cmd.Flags().StringSliceVar(&outputFields, "output-fields", nil, "Fields every classifier result declares")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "Output file (default <dataset>_<first field>.json)")
	cmd.Flags().StringSliceVar(&promote, "promote", nil, "Output fields to also set on the leads")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "File whose contents are passed to the classifier as the prompt")
	cmd.Flags().StringVar(&classifier, "classifier", "", "Classifier command, overriding enrich.classifier_command")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Items per classifier call (overrides enrich.batch_size)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent classifier calls (overrides enrich.concurrency)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report pending items and batches without classifying")
	return cmd
}
