package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/priorfit/internal/driver"
	"github.com/cwbudde/priorfit/internal/profile"
	"github.com/cwbudde/priorfit/internal/store"
)

var (
	resumeDatasetPath string
	resumeConfigPath  string
	resumeModelSpec   string
	resumeDataDir     string
	resumeLogEvery    int
	resumeBackupEvery int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume a grid search from its checkpoint",
	Long: `Resumes an interrupted grid search. The step size and dimensionality
are read from the persisted record and validated against the rebuilt
parameter space, so the dataset and model must match the original run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDatasetPath, "dataset", "", "Dataset JSON path (required)")
	resumeCmd.Flags().StringVar(&resumeConfigPath, "config", "", "Prior/width/limit YAML config path")
	resumeCmd.Flags().StringVar(&resumeModelSpec, "model", "gaussian", "Model: gaussian, exponential, or gaussian+exponential")
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for run artifacts")
	resumeCmd.Flags().IntVar(&resumeLogEvery, "log-every", 100, "Trace every N calls (-1 = never)")
	resumeCmd.Flags().IntVar(&resumeBackupEvery, "backup-every", driver.Never, "Back up every N calls (-1 = never)")

	resumeCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := loadConfig(resumeConfigPath)
	if err != nil {
		return err
	}

	dataset, err := profile.LoadDataset(resumeDatasetPath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	analysis, err := profile.NewAnalysis(dataset)
	if err != nil {
		return err
	}

	space, err := buildSpace(cfg, dataset, resumeModelSpec)
	if err != nil {
		return err
	}

	// The record carries the original step size.
	fs, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	record, err := fs.LoadCheckpoint(runID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint for %s: %w", runID, err)
	}

	slog.Info("Resuming grid search", "run_id", runID,
		"calls_done", record.Calls, "step", record.StepSize)

	opts := driver.Options{
		BaseDir:           resumeDataDir,
		RunID:             runID,
		VisualizeInterval: driver.Never,
		LogInterval:       resumeLogEvery,
		BackupInterval:    resumeBackupEvery,
	}

	search, err := driver.NewGridSearch(space, analysis, cfg, opts, record.StepSize)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := search.Run()
	if err != nil {
		return err
	}

	printResult(space, cfg, result, time.Since(start))
	return nil
}
