package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/HatiCode/gradecast/pkg/storage"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var name, query string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the stages of a bundle",
		Long: `Print bundle metadata, every stage's target, model kind, feature schema
and holdout metrics. --query prints the value at a gjson path instead.

Examples:
  trainer inspect --name default
  trainer inspect --name default --query 'stages.q2_to_final.schema'
  trainer inspect --name default --query 'evaluation.@values.#.r2'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.NewFileStore(root.artifactDir)
			if err != nil {
				return err
			}
			raw, err := st.Raw(name)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("bundle %q not found in %s", name, st.Dir())
				}
				return err
			}
			if !gjson.ValidBytes(raw) {
				return fmt.Errorf("bundle %q is not valid JSON", name)
			}

			out := cmd.OutOrStdout()
			if query != "" {
				res := gjson.GetBytes(raw, query)
				if !res.Exists() {
					return fmt.Errorf("no value at %q", query)
				}
				fmt.Fprintln(out, res.String())
				return nil
			}

			doc := gjson.ParseBytes(raw)
			fmt.Fprintf(out, "Bundle:    %s\n", doc.Get("name").String())
			fmt.Fprintf(out, "Version:   %s\n", doc.Get("version").String())
			fmt.Fprintf(out, "Generated: %s\n", doc.Get("generatedAt").String())
			fmt.Fprintf(out, "Baseline:  final %.2f%%\n\n", doc.Get("baseline.final").Float()*100)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STAGE\tTARGET\tMODEL\tFEATURES\tR2\tMAE")
			doc.Get("stages").ForEach(func(key, stage gjson.Result) bool {
				ev := doc.Get("evaluation." + key.String())
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.4f\n",
					key.String(),
					stage.Get("target").String(),
					stage.Get("model.kind").String(),
					stage.Get("schema.#").Int(),
					ev.Get("r2").Float(),
					ev.Get("mae").Float(),
				)
				return true
			})
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&name, "name", envOr("BUNDLE", "default"), "bundle name")
	cmd.Flags().StringVar(&query, "query", "", "gjson path to print")
	return cmd
}

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bundles in the artifact directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.NewFileStore(root.artifactDir)
			if err != nil {
				return err
			}
			names, err := st.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
