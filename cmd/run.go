package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/driver"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/opt"
	"github.com/cwbudde/priorfit/internal/prior"
	"github.com/cwbudde/priorfit/internal/profile"
	"github.com/cwbudde/priorfit/internal/refine"
)

var (
	datasetPath string
	configPath  string
	modelSpec   string
	searchKind  string
	stages      int
	stepSize    float64
	iters       int
	popSize     int
	seed        int64
	refineSpec  string
	runDataDir  string

	visualizeEvery int
	logEvery       int
	backupEvery    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit a model to a dataset",
	Long: `Fits the chosen profile model to a dataset, optionally narrowing the
priors around the best fit and searching again over several stages.`,
	RunE: runFit,
}

func init() {
	runCmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset JSON path (required)")
	runCmd.Flags().StringVar(&configPath, "config", "", "Prior/width/limit YAML config path")
	runCmd.Flags().StringVar(&modelSpec, "model", "gaussian", "Model: gaussian, exponential, or gaussian+exponential")
	runCmd.Flags().StringVar(&searchKind, "search", "mayfly", "Search: mayfly or grid")
	runCmd.Flags().IntVar(&stages, "stages", 1, "Number of search stages; later stages use refined priors")
	runCmd.Flags().Float64Var(&stepSize, "step", 0.1, "Grid step size in (0, 1]")
	runCmd.Flags().IntVar(&iters, "iters", 100, "Max iterations")
	runCmd.Flags().IntVar(&popSize, "pop", 30, "Population size")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().StringVar(&refineSpec, "refine", "", "Refinement width: absolute=X, relative=X, or config")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "./data", "Base directory for run artifacts")
	runCmd.Flags().IntVar(&visualizeEvery, "visualize-every", driver.Never, "Visualize every N calls (-1 = never)")
	runCmd.Flags().IntVar(&logEvery, "log-every", 100, "Trace every N calls (-1 = never)")
	runCmd.Flags().IntVar(&backupEvery, "backup-every", driver.Never, "Back up every N calls (-1 = never)")

	runCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(runCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	dataset, err := profile.LoadDataset(datasetPath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	analysis, err := profile.NewAnalysis(dataset)
	if err != nil {
		return err
	}

	space, err := buildSpace(cfg, dataset, modelSpec)
	if err != nil {
		return err
	}

	policy, err := parseWidthPolicy(refineSpec)
	if err != nil {
		return err
	}
	if stages > 1 && policy == nil {
		p := refine.RelativeWidth(0.5)
		policy = &p
	}

	slog.Info("Starting fit", "model", modelSpec, "search", searchKind, "stages", stages,
		"parameters", space.ParameterCount())

	start := time.Now()
	var result *driver.Result

	for stage := 0; stage < stages; stage++ {
		opts := driver.Options{
			BaseDir:           runDataDir,
			VisualizeInterval: visualizeEvery,
			LogInterval:       logEvery,
			BackupInterval:    backupEvery,
		}
		if policy != nil {
			opts.Refine = policy
		}

		result, err = runStage(space, analysis, cfg, opts)
		if err != nil {
			return err
		}

		slog.Info("Stage complete", "stage", stage+1, "best_score", result.Score)

		if stage < stages-1 {
			if result.Space == nil {
				return fmt.Errorf("stage %d produced no refined space", stage+1)
			}
			space = result.Space
		}
	}

	elapsed := time.Since(start)

	printResult(space, cfg, result, elapsed)
	return nil
}

// runStage dispatches one search over the given space.
func runStage(space *model.ParameterSpace, analysis *profile.Analysis, cfg *config.Config, opts driver.Options) (*driver.Result, error) {
	switch searchKind {
	case "grid":
		search, err := driver.NewGridSearch(space, analysis, cfg, opts, stepSize)
		if err != nil {
			return nil, err
		}
		return search.Run()
	case "mayfly":
		optimizer := opt.NewMayfly(iters, popSize, seed)
		search, err := driver.NewMayflySearch(space, analysis, cfg, opts, optimizer)
		if err != nil {
			return nil, err
		}
		return search.Run()
	default:
		return nil, fmt.Errorf("unknown search type: %s", searchKind)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// buildSpace assembles the parameter space for the requested model,
// with priors scaled to the dataset extent.
func buildSpace(cfg *config.Config, dataset *profile.Dataset, spec string) (*model.ParameterSpace, error) {
	extent := dataset.Xs[len(dataset.Xs)-1]
	space := model.NewParameterSpace()

	for _, part := range strings.Split(spec, "+") {
		switch part {
		case "gaussian":
			node, err := model.NodeOf[profile.Gaussian](cfg)
			if err != nil {
				return nil, err
			}
			if err := setProfilePriors(node, extent, "Sigma"); err != nil {
				return nil, err
			}
			space.AddModel("gaussian", node)
		case "exponential":
			node, err := model.NodeOf[profile.Exponential](cfg)
			if err != nil {
				return nil, err
			}
			if err := setProfilePriors(node, extent, "Rate"); err != nil {
				return nil, err
			}
			space.AddModel("exponential", node)
		default:
			return nil, fmt.Errorf("unknown model component: %s", part)
		}
	}

	return space, nil
}

func setProfilePriors(node *model.Node, extent float64, widthField string) error {
	if err := node.SetPrior("Centre", prior.NewUniformPrior(0, extent)); err != nil {
		return err
	}
	if err := node.SetPrior("Intensity", prior.NewLogUniformPrior(0.01, 100)); err != nil {
		return err
	}
	return node.SetPrior(widthField, prior.NewUniformPrior(0.01, extent))
}

// parseWidthPolicy interprets the --refine flag. Empty means no
// refinement is requested.
func parseWidthPolicy(spec string) (*refine.WidthPolicy, error) {
	if spec == "" {
		return nil, nil
	}
	if spec == "config" {
		p := refine.ConfiguredWidth()
		return &p, nil
	}

	kind, value, ok := strings.Cut(spec, "=")
	if !ok {
		return nil, fmt.Errorf("invalid refine spec %q: want absolute=X, relative=X or config", spec)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid refine width %q: %w", value, err)
	}

	switch kind {
	case "absolute":
		p := refine.AbsoluteWidth(v)
		return &p, nil
	case "relative":
		p := refine.RelativeWidth(v)
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown refine kind %q: want absolute or relative", kind)
	}
}

func printResult(space *model.ParameterSpace, cfg *config.Config, result *driver.Result, elapsed time.Duration) {
	fmt.Printf("Best score: %.6f (%.2fs)\n\n", result.Score, elapsed.Seconds())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tVALUE")
	fmt.Fprintln(w, "---------\t-----")
	names := paramLabels(space, cfg)
	for i, v := range result.Vector {
		name := fmt.Sprintf("p%d", i)
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(w, "%s\t%.6f\n", name, v)
	}
	w.Flush()
}

// paramLabels returns the display name of each parameter in vector order,
// with the field component swapped for its configured label.
func paramLabels(space *model.ParameterSpace, cfg *config.Config) []string {
	tuples := space.PriorTuplesOrderedByID()
	names := make([]string, len(tuples))
	for i, t := range tuples {
		name := t.Name
		if label := cfg.Label(t.Field); label != t.Field && strings.HasSuffix(name, t.Field) {
			name = name[:len(name)-len(t.Field)] + label
		}
		names[i] = name
	}
	return names
}
