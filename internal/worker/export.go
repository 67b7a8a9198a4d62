// Package worker provides background jobs for the conformity service.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/report"
)

// ExportConfig holds configuration for the report export job.
type ExportConfig struct {
	// Concurrency is the number of concurrent export operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each export operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultExportConfig returns the default export configuration.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// ExportJob mirrors stored report bundles onto the filesystem so
// auditors can pick up signed-off results without database access.
type ExportJob struct {
	config ExportConfig
	repo   report.Repository
	store  *report.FileStore
	logger zerolog.Logger

	metrics *ExportMetrics
}

// ExportMetrics tracks export job statistics.
type ExportMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	ExportedReports   int64
	FailedReports     int64
	LastRunAt         time.Time
	LastRunDuration   time.Duration
	TotalRunsDuration time.Duration
}

// ExportJobConfig holds configuration for creating an ExportJob.
type ExportJobConfig struct {
	Config     ExportConfig
	Repository report.Repository
	Store      *report.FileStore
	Logger     zerolog.Logger
}

// NewExportJob creates a new export job processor.
func NewExportJob(cfg ExportJobConfig) *ExportJob {
	config := cfg.Config
	if config.Concurrency <= 0 {
		config = DefaultExportConfig()
	}

	return &ExportJob{
		config:  config,
		repo:    cfg.Repository,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: &ExportMetrics{},
	}
}

// ExportResult contains the result of one export run.
type ExportResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Errors     []ExportError
}

// ExportError represents a failed export of one trip's report.
type ExportError struct {
	TripID string
	Error  string
}

// Run exports every stored report once.
func (j *ExportJob) Run(ctx context.Context) *ExportResult {
	startTime := time.Now()
	result := &ExportResult{StartTime: startTime}

	ids, err := j.repo.List(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to list reports for export")
		result.Errors = append(result.Errors, ExportError{Error: err.Error()})
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		return result
	}
	result.Total = len(ids)

	j.logger.Info().
		Int("total", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting report export job")

	idsChan := make(chan string, len(ids))
	resultsChan := make(chan tripResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.exportWorker(ctx, idsChan, resultsChan)
		}()
	}

	for _, id := range ids {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err == nil {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, ExportError{
				TripID: tr.tripID,
				Error:  tr.err.Error(),
			})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("report export job completed")

	return result
}

type tripResult struct {
	tripID string
	err    error
}

func (j *ExportJob) exportWorker(ctx context.Context, ids <-chan string, results chan<- tripResult) {
	for id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
			results <- tripResult{tripID: id, err: j.exportTrip(ctx, id)}
		}
	}
}

func (j *ExportJob) exportTrip(ctx context.Context, tripID string) error {
	tripCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stored, err := j.repo.Get(tripCtx, tripID)
	if err != nil {
		return err
	}
	_, err = j.store.Write(stored.Bundle)
	return err
}

func (j *ExportJob) updateMetrics(result *ExportResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.ExportedReports += int64(result.Successful)
	j.metrics.FailedReports += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalRunsDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *ExportJob) GetMetrics() ExportMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return ExportMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		ExportedReports:   j.metrics.ExportedReports,
		FailedReports:     j.metrics.FailedReports,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalRunsDuration: j.metrics.TotalRunsDuration,
	}
}
