package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/pkg/models"
)

// batchResultKey is the cache key for a memoized per-batch result. Entries
// carry a fixed retention window so retries can reuse batches that already
// finished.
func batchResultKey(jobID, batchID uuid.UUID) string {
	return fmt.Sprintf("batch:result:%s:%s", jobID, batchID)
}

// splitDataset slices a dataset into contiguous, non-overlapping chunks of
// batchSize; the last chunk may be smaller.
func splitDataset(dataset []any, batchSize int) [][]any {
	if batchSize < 1 || len(dataset) == 0 {
		return nil
	}
	chunks := make([][]any, 0, (len(dataset)+batchSize-1)/batchSize)
	for start := 0; start < len(dataset); start += batchSize {
		end := start + batchSize
		if end > len(dataset) {
			end = len(dataset)
		}
		chunk := make([]any, end-start)
		copy(chunk, dataset[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

// makeBatches builds the batch records for a job, numbered sequentially from 1.
func makeBatches(job *models.Job, batchSize int) []*models.JobBatch {
	chunks := splitDataset(job.Data.Dataset, batchSize)
	batches := make([]*models.JobBatch, len(chunks))
	for i, chunk := range chunks {
		batches[i] = &models.JobBatch{
			ID:           uuid.New(),
			ParentJobID:  job.ID,
			BatchNumber:  i + 1,
			TotalBatches: len(chunks),
			DataSlice:    chunk,
			Status:       models.JobStatusPending,
		}
	}
	return batches
}

// runBatchedJob drives a batched job: groups of up to MaxBatchConcurrency
// batches are dispatched, awaited collectively, and progress is updated per
// group. A failing batch does not halt siblings already in flight; the job
// fails at aggregation time if any batch failed.
func (s *Scheduler) runBatchedJob(jobID uuid.UUID) {
	defer s.wg.Done()

	snapshot, handler, ok := s.markRunning(jobID)
	if !ok {
		s.releaseHold(jobID)
		return
	}

	s.mu.Lock()
	batches := s.batches[jobID]
	// Reset leftovers from a previous attempt; completed batches keep their
	// results and are skipped on re-execution.
	for _, b := range batches {
		if b.Status != models.JobStatusCompleted {
			b.Status = models.JobStatusPending
			b.Error = ""
			b.Result = nil
			b.StartedAt = nil
			b.CompletedAt = nil
		}
	}
	total := len(batches)
	s.mu.Unlock()

	if total == 0 {
		s.handleJobFailure(jobID, "no batches to process")
		return
	}

	step := s.cfg.MaxBatchConcurrency
	for start := 0; start < total; start += step {
		if s.jobInterrupted(jobID) {
			s.releaseHold(jobID)
			return
		}
		end := start + step
		if end > total {
			end = total
		}
		done := make(chan struct{}, end-start)
		for i := start; i < end; i++ {
			b := batches[i]
			go func() {
				defer func() { done <- struct{}{} }()
				s.runSingleBatch(s.ctx, snapshot, handler, b)
			}()
		}
		for i := start; i < end; i++ {
			<-done
		}

		s.mu.Lock()
		completed := 0
		for _, b := range batches {
			if b.Status == models.JobStatusCompleted {
				completed++
			}
		}
		s.mu.Unlock()
		s.recordProgress(jobID, completed*100/total, "processing_batches", map[string]any{
			"completed_batches": completed,
			"total_batches":     total,
		})
	}

	if s.jobInterrupted(jobID) {
		s.releaseHold(jobID)
		return
	}

	s.mu.Lock()
	var failures []string
	copies := make([]*models.JobBatch, len(batches))
	for i, b := range batches {
		copies[i] = b.Clone()
		if b.Status == models.JobStatusFailed {
			failures = append(failures, fmt.Sprintf("batch %d: %s", b.BatchNumber, b.Error))
		}
	}
	s.mu.Unlock()

	if len(failures) > 0 {
		s.handleJobFailure(jobID, strings.Join(failures, "; "))
		return
	}

	result, err := aggregateJob(snapshot, copies)
	if err != nil {
		s.handleJobFailure(jobID, fmt.Sprintf("aggregation: %v", err))
		return
	}
	s.handleJobSuccess(jobID, result)
}

// runSingleBatch executes one batch: cached results are reused when present,
// otherwise the registered handler is invoked with the batch's data slice.
func (s *Scheduler) runSingleBatch(ctx context.Context, job *models.Job, handler Handler, batch *models.JobBatch) {
	s.mu.Lock()
	if batch.Status == models.JobStatusCompleted {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	batch.Status = models.JobStatusRunning
	batch.StartedAt = &now
	slice := append([]any(nil), batch.DataSlice...)
	batchID := batch.ID
	s.mu.Unlock()

	key := batchResultKey(job.ID, batchID)
	if s.cache != nil {
		if data, found, err := s.cache.Get(ctx, key); err == nil && found {
			if cached, derr := decodeCachedBatchResult(job.Type, data); derr == nil {
				s.finishBatch(batch, cached, "")
				return
			}
		}
	}

	result, err := invokeHandler(ctx, handler, Task{
		JobID:       job.ID,
		Type:        job.Type,
		Params:      job.Data.Params,
		Dataset:     slice,
		BatchID:     batchID,
		BatchNumber: batch.BatchNumber,
	})
	if err != nil {
		s.finishBatch(batch, nil, err.Error())
		return
	}

	canonical := canonicalBatchResult(job.Type, result)
	s.finishBatch(batch, canonical, "")

	if s.cache != nil {
		if data, merr := json.Marshal(canonical); merr == nil {
			_ = s.cache.Set(ctx, key, data, s.cfg.BatchResultTTL)
		}
	}
}

func (s *Scheduler) finishBatch(batch *models.JobBatch, result any, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	batch.CompletedAt = &now
	if errMsg != "" {
		batch.Status = models.JobStatusFailed
		batch.Error = errMsg
		return
	}
	batch.Status = models.JobStatusCompleted
	batch.Result = result
}

// jobInterrupted reports whether the job left the running state (cancelled)
// or the scheduler is shutting down; either suppresses aggregation and
// completion events.
func (s *Scheduler) jobInterrupted(jobID uuid.UUID) bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return !ok || job.Status != models.JobStatusRunning
}
