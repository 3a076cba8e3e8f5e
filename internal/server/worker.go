package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/priorfit/internal/config"
	"github.com/cwbudde/priorfit/internal/driver"
	"github.com/cwbudde/priorfit/internal/model"
	"github.com/cwbudde/priorfit/internal/opt"
	"github.com/cwbudde/priorfit/internal/prior"
	"github.com/cwbudde/priorfit/internal/profile"
)

// runJob executes a fitting job in the background. The job ID is used as
// the run ID, so the job's checkpoint, trace and fit dump land under
// <dataDir>/runs/<jobID>/.
func runJob(ctx context.Context, jm *JobManager, dataDir string, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "dataset", job.Config.DatasetPath, "search", job.Config.Search)

	dataset, err := profile.LoadDataset(job.Config.DatasetPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load dataset: %w", err))
		return err
	}

	analysis, err := profile.NewAnalysis(dataset)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	space, err := gaussianSpace(dataset)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	opts := driver.Options{
		BaseDir:           dataDir,
		RunID:             jobID,
		VisualizeInterval: driver.Never,
		LogInterval:       job.Config.LogInterval,
		BackupInterval:    driver.Never,
	}

	// Check for cancellation before starting expensive operation
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()
	result, search, err := runSearch(space, analysis, opts, job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	elapsed := time.Since(start)

	// Check for cancellation after the search
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestScore = result.Score
		j.BestVector = result.Vector
		j.Calls = search.Fitness().Calls()
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"best_score", result.Score,
		"calls", search.Fitness().Calls(),
	)

	return nil
}

// runSearch dispatches on the configured search type.
func runSearch(space *model.ParameterSpace, analysis *profile.Analysis, opts driver.Options, cfg JobConfig) (*driver.Result, *driver.Search, error) {
	switch cfg.Search {
	case "grid":
		search, err := driver.NewGridSearch(space, analysis, config.Default(), opts, cfg.StepSize)
		if err != nil {
			return nil, nil, err
		}
		result, err := search.Run()
		return result, search.Search, err
	case "mayfly":
		optimizer := opt.NewMayfly(cfg.Iters, cfg.PopSize, cfg.Seed)
		search, err := driver.NewMayflySearch(space, analysis, config.Default(), opts, optimizer)
		if err != nil {
			return nil, nil, err
		}
		result, err := search.Run()
		return result, search.Search, err
	default:
		return nil, nil, fmt.Errorf("unknown search type: %s", cfg.Search)
	}
}

// gaussianSpace builds a single-Gaussian parameter space with priors
// scaled to the dataset extent.
func gaussianSpace(dataset *profile.Dataset) (*model.ParameterSpace, error) {
	node, err := model.NodeOf[profile.Gaussian](config.Default())
	if err != nil {
		return nil, err
	}

	extent := dataset.Xs[len(dataset.Xs)-1]
	if err := node.SetPrior("Centre", prior.NewUniformPrior(0, extent)); err != nil {
		return nil, err
	}
	if err := node.SetPrior("Intensity", prior.NewLogUniformPrior(0.01, 100)); err != nil {
		return nil, err
	}
	if err := node.SetPrior("Sigma", prior.NewUniformPrior(0.01, extent)); err != nil {
		return nil, err
	}

	space := model.NewParameterSpace()
	space.AddModel("gaussian", node)
	return space, nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
