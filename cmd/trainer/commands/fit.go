package commands

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/storage"
	"github.com/HatiCode/gradecast/pkg/training"
)

type fitOptions struct {
	data         string
	name         string
	model        string
	seed         int64
	testFraction float64
	estimators   int
	learningRate float64
	maxDepth     int
	ridge        float64
	parallelism  int
}

func newFitCmd(root *rootOptions) *cobra.Command {
	opts := &fitOptions{}

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit all six stages and write a bundle",
		Long: `Fit every cascade stage on the grade table and write the bundle to
<dir>/<name>.json.

Each stage scales its features with a standard scaler fitted on the whole
table, holds out --test-fraction of the rows (shuffled with --seed) and
fits a gradient-boosted tree ensemble or a ridge regression on the rest.

Example:
  trainer fit --data cleaned_grades.csv --model gbr --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", envOr("DATA", "cleaned_grades.csv"), "grade CSV to fit on")
	f.StringVar(&opts.name, "name", envOr("BUNDLE", "default"), "bundle name")
	f.StringVar(&opts.model, "model", training.ModelGBR, "stage model: gbr or linear")
	f.Int64Var(&opts.seed, "seed", 42, "holdout shuffle seed")
	f.Float64Var(&opts.testFraction, "test-fraction", 0.2, "fraction of rows held out for evaluation")
	f.IntVar(&opts.estimators, "estimators", 100, "boosting rounds (gbr)")
	f.Float64Var(&opts.learningRate, "learning-rate", 0.1, "shrinkage per boosting round (gbr)")
	f.IntVar(&opts.maxDepth, "max-depth", 3, "tree depth (gbr)")
	f.Float64Var(&opts.ridge, "ridge", 1e-6, "L2 penalty (linear)")
	f.IntVar(&opts.parallelism, "parallelism", 0, "stages fitted concurrently (0 = GOMAXPROCS)")

	return cmd
}

func runFit(cmd *cobra.Command, root *rootOptions, opts *fitOptions) error {
	ds, err := training.LoadCSV(opts.data)
	if err != nil {
		return err
	}
	root.logger.Info("dataset loaded",
		"path", opts.data,
		"rows", ds.Len(),
		"columns", len(ds.Columns()),
	)

	tr, err := training.New(training.Config{
		Name:         opts.name,
		Model:        opts.model,
		TestFraction: opts.testFraction,
		Seed:         opts.seed,
		GB: models.GBParams{
			Estimators:   opts.estimators,
			LearningRate: opts.learningRate,
			MaxDepth:     opts.maxDepth,
		},
		Ridge:       opts.ridge,
		Parallelism: opts.parallelism,
	}, root.logger)
	if err != nil {
		return err
	}

	bundle, err := tr.Fit(cmd.Context(), ds)
	if err != nil {
		return err
	}

	fs, err := storage.NewFileStore(root.artifactDir)
	if err != nil {
		return err
	}
	if err := fs.Put(cmd.Context(), bundle); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bundle %q version %s written to %s\n\n", bundle.Name, bundle.Version, fs.Dir())
	printBaseline(out, bundle.Baseline)
	fmt.Fprintln(out)
	printEvaluation(out, bundle)
	return nil
}

func printBaseline(w io.Writer, base map[string]float64) {
	fmt.Fprintln(w, "Class averages:")
	for _, k := range []string{"q1", "q2", "q3", "q4", "final"} {
		if v, ok := base[k]; ok {
			fmt.Fprintf(w, "  %-5s %6.2f%%\n", k, v*100)
		}
	}
}

func printEvaluation(w io.Writer, b storage.Bundle) {
	names := make([]string, 0, len(b.Stages))
	for n := range b.Stages {
		names = append(names, n)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tTARGET\tMODEL\tFEATURES\tR2\tMAE")
	for _, n := range names {
		st := b.Stages[n]
		ev := b.Evaluation[n]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.4f\n", n, st.Target, st.Model.Kind, len(st.Schema), ev.R2, ev.MAE)
	}
	tw.Flush()
}
