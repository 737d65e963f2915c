package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"goencode/adapters/excel"
	"goencode/app"
	"goencode/domain/core"
	"goencode/domain/encoding"
	domainInference "goencode/domain/inference"
	"goencode/internal/errors"
	"goencode/internal/report"
	"goencode/ports"

	"github.com/spf13/cobra"
)

// outputFlags are shared by the analysis commands
type outputFlags struct {
	runID  string
	xlsx   string
	report string
	quiet  bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.runID, "run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().StringVar(&o.xlsx, "xlsx", "", "Write an xlsx workbook of the results to this path")
	cmd.Flags().StringVar(&o.report, "report", "", "Write an HTML report of the run to this path")
	cmd.Flags().BoolVar(&o.quiet, "quiet", false, "Do not print the JSON result")
}

func (o *outputFlags) finish(cmd *cobra.Command, runID core.RunID, result interface{}, wb *excel.Workbook) error {
	if wb != nil && o.xlsx != "" {
		if err := wb.SaveAs(o.xlsx); err != nil {
			return err
		}
		env.Logger.Info("wrote %s", o.xlsx)
	}
	if o.report != "" {
		page, err := env.Reports.HTML(cmd.Context(), runID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.report, page, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		env.Logger.Info("wrote %s", o.report)
	}
	if o.quiet {
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func featureNames(list []string) ([]core.FeatureName, error) {
	names := make([]core.FeatureName, 0, len(list))
	for _, s := range list {
		name, err := core.ParseFeatureName(s)
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// scoreSource picks the ledger encodings or the score workbooks
func scoreSource(encoded bool) ports.ScoreSource {
	if encoded {
		return env.EncodedScores
	}
	return env.Scores
}

// seedFor returns the --seed flag when set, else the configured SEED
func seedFor(cmd *cobra.Command, flag int64) (int64, error) {
	seed := env.Config.Inference.Seed
	if cmd.Flags().Changed("seed") {
		seed = flag
	}
	if seed == 0 && !env.Config.Inference.AllowZeroSeed {
		return 0, errors.WithCode(errors.CodeMissingSeed, core.ErrMissingSeed)
	}
	return seed, nil
}

func newSearchCmd() *cobra.Command {
	var (
		out      outputFlags
		subject  string
		group    string
		features []string
		policy   string
		encode   bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Sweep the penalty grid for each feature against one subject",
		Long: `Fit ridge models for every (timepoint, penalty) pair on the training split,
score them on the validation split and select the best penalty per timepoint
and in aggregate. With --encode, features that have a test split are refitted
with the selected penalty and scored on it.

Example: goencode search --subject sub-01 --features edges,skeleton --encode --xlsx sub-01.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := featureNames(features)
			if err != nil {
				return err
			}
			p, err := encoding.ParsePolicy(policy)
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}

			res, err := env.SearchService.Run(cmd.Context(), app.SearchRunRequest{
				RunID:    core.RunID(out.runID),
				Subject:  subject,
				Group:    group,
				Features: names,
				Grid:     env.Grid,
				Policy:   p,
				Encode:   encode,
			})
			if err != nil {
				return err
			}

			wb := excel.NewWorkbook()
			if err := wb.AddManifest(res.Manifest); err != nil {
				return err
			}
			for _, r := range res.Results {
				if err := wb.AddSelection(string(r.Feature), r.Selection); err != nil {
					return err
				}
				if e, ok := res.Encodings[r.Feature]; ok {
					if err := wb.AddEncoding(string(r.Feature), e); err != nil {
						return err
					}
				}
			}
			return out.finish(cmd, res.RunID, res, wb)
		},
	}

	out.register(cmd)
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (or network) whose responses to fit")
	cmd.Flags().StringVar(&group, "group", "", "Group tag for reading the encodings back with --from-ledger")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Features to search (default: all in FEATURES_DIR)")
	cmd.Flags().StringVar(&policy, "policy", string(encoding.PolicyTimepointCorr), "Penalty policy for --encode")
	cmd.Flags().BoolVar(&encode, "encode", false, "Refit with the selected penalty and score the test split")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func newBootstrapCmd() *cobra.Command {
	var (
		out      outputFlags
		seed     int64
		nPerm    int
		group    string
		features []string
		pairwise bool
		encoded  bool
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap accuracy and peak-latency confidence intervals",
		Long: `Resample subjects with replacement from each feature's subjects × timepoints
score matrix to get 95% intervals of the mean accuracy per timepoint and of
the peak latency. With --pairwise, every pair of features also gets an
interval of the peak latency difference.

Example: goencode bootstrap --group adults --features edges,skeleton,world --pairwise --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := featureNames(features)
			if err != nil {
				return err
			}
			s, err := seedFor(cmd, seed)
			if err != nil {
				return err
			}
			svc := env.BootstrapService
			if encoded || cmd.Flags().Changed("n-perm") {
				b := env.Bootstrapper
				if cmd.Flags().Changed("n-perm") {
					b.NPerm = nPerm
				}
				svc = app.NewBootstrapService(scoreSource(encoded), env.Ledger, env.RNG, b, env.Config.Search.FeatureWorkers, env.Logger)
			}

			res, err := svc.Run(cmd.Context(), app.BootstrapRequest{
				RunID:    core.RunID(out.runID),
				Group:    group,
				Features: names,
				Seed:     s,
				Pairwise: pairwise,
			})
			if err != nil {
				return err
			}

			wb := excel.NewWorkbook()
			if err := wb.AddManifest(res.Manifest); err != nil {
				return err
			}
			for _, acc := range res.Accuracy {
				if err := wb.AddAccuracy(acc); err != nil {
					return err
				}
			}
			if err := wb.AddPeaks(res.Peaks, res.Differences); err != nil {
				return err
			}
			return out.finish(cmd, res.RunID, res, wb)
		},
	}

	out.register(cmd)
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic resampling")
	cmd.Flags().IntVar(&nPerm, "n-perm", 1000, "Number of bootstrap draws (overrides N_PERM)")
	cmd.Flags().StringVar(&group, "group", "", "Subject group whose score workbook to read")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Features to bootstrap")
	cmd.Flags().BoolVar(&pairwise, "pairwise", false, "Also compare peak latencies of every feature pair")
	cmd.Flags().BoolVar(&encoded, "from-ledger", false, "Read scores from the group's search --encode runs instead of SCORES_DIR")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("features")

	return cmd
}

func newPermTestCmd() *cobra.Command {
	var (
		out      outputFlags
		seed     int64
		nPerm    int
		groupA   string
		groupB   string
		features []string
		tail     string
		alpha    float64
		encoded  bool
	)

	cmd := &cobra.Command{
		Use:   "permtest",
		Short: "Sign-flip permutation test between two groups, FDR corrected",
		Long: `Compare mean accuracy of group A against group B at every timepoint with a
sign-flip permutation test, then control the false discovery rate with
Benjamini-Hochberg. Observed differences are mean(A) - mean(B).

Example: goencode permtest --group-a adults --group-b children --features edges --tail both --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := featureNames(features)
			if err != nil {
				return err
			}
			s, err := seedFor(cmd, seed)
			if err != nil {
				return err
			}
			tester := env.Tester
			if cmd.Flags().Changed("n-perm") {
				tester.NPerm = nPerm
			}
			if cmd.Flags().Changed("tail") {
				if tester.Tail, err = domainInference.ParseTail(tail); err != nil {
					return errors.WithCode(errors.CodeInvalidInput, err)
				}
			}
			if cmd.Flags().Changed("alpha") {
				tester.Alpha = alpha
			}
			svc := app.NewPermutationService(scoreSource(encoded), env.Ledger, env.RNG, tester, env.Config.Search.FeatureWorkers, env.Logger)

			res, err := svc.Run(cmd.Context(), app.PermutationRequest{
				RunID:    core.RunID(out.runID),
				GroupA:   groupA,
				GroupB:   groupB,
				Features: names,
				Seed:     s,
			})
			if err != nil {
				return err
			}

			wb := excel.NewWorkbook()
			if err := wb.AddManifest(res.Manifest); err != nil {
				return err
			}
			for _, r := range res.Results {
				if err := wb.AddPermutation(r, env.Timeline.Labels(len(r.PValues))); err != nil {
					return err
				}
			}
			return out.finish(cmd, res.RunID, res, wb)
		},
	}

	out.register(cmd)
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic permutations")
	cmd.Flags().IntVar(&nPerm, "n-perm", 1000, "Number of permutations (overrides N_PERM)")
	cmd.Flags().StringVar(&groupA, "group-a", "", "First subject group")
	cmd.Flags().StringVar(&groupB, "group-b", "", "Second subject group")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Features to test")
	cmd.Flags().StringVar(&tail, "tail", "both", "Alternative hypothesis: both or right")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "FDR level")
	cmd.Flags().BoolVar(&encoded, "from-ledger", false, "Read scores from the groups' search --encode runs instead of SCORES_DIR")
	cmd.MarkFlagRequired("group-a")
	cmd.MarkFlagRequired("group-b")
	cmd.MarkFlagRequired("features")

	return cmd
}

func newReportCmd() *cobra.Command {
	var format, outPath string

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Render a stored run as HTML or markdown",
		Long: `Render every artifact of a run recorded in the PostgreSQL ledger.

Example: goencode report 0190c0de-... --format html --out run.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !env.Config.Database.Enabled() {
				return errors.ConfigInvalid("report needs DATABASE_URL; use --report on the analysis commands otherwise")
			}
			runID, err := core.ParseRunID(args[0])
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}
			md, err := env.Reports.Markdown(cmd.Context(), runID)
			if err != nil {
				return err
			}

			var body []byte
			switch strings.ToLower(format) {
			case "md", "markdown":
				body = []byte(md)
			case "html":
				body = report.ToHTML(md, "Run "+runID.String())
			default:
				return errors.InvalidInput(fmt.Sprintf("unknown format %q (want html|md)", format))
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return os.WriteFile(outPath, body, 0o644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "html", "Output format: html or md")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to this path instead of stdout")

	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL ledger schema",
		Long: `Create the artifacts and run_manifests tables in the database named by
DATABASE_URL. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.Migrate(cmd.Context())
		},
	}
}
