// Package scheduler implements the enhanced job scheduling engine: admission
// control against a resource budget, a dependency graph, batch splitting and
// aggregation, backoff retries, and progress tracking, all coordinated by a
// single orchestrator instance.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahulnat/sentinelq/pkg/models"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrUnknownJobType    = errors.New("unknown job type")
	ErrMissingDataset    = errors.New("dataset is required")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrSchedulerClosed   = errors.New("scheduler is shut down")
	ErrNilHandler        = errors.New("handler must not be nil")
	ErrDuplicateHandler  = errors.New("handler already registered")
)

// Config tunes the scheduler. Zero values are replaced by defaults.
type Config struct {
	MaxConcurrentJobs      int
	MaxMemoryMB            int
	MaxCPUCores            float64
	AutoBatchThreshold     int
	DefaultBatchSize       int
	MaxBatchConcurrency    int
	AdmissionRetryInterval time.Duration
	DefaultMaxAttempts     int
	DefaultBackoff         time.Duration
	DefaultStrategy        models.BackoffStrategy
	DefaultRequirements    models.ResourceRequirements
	BatchResultTTL         time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentJobs:      4,
		MaxMemoryMB:            8192,
		MaxCPUCores:            8,
		AutoBatchThreshold:     1000,
		DefaultBatchSize:       100,
		MaxBatchConcurrency:    3,
		AdmissionRetryInterval: 500 * time.Millisecond,
		DefaultMaxAttempts:     3,
		DefaultBackoff:         time.Second,
		DefaultStrategy:        models.BackoffExponential,
		DefaultRequirements:    models.ResourceRequirements{MemoryMB: 512, CPUCores: 1},
		BatchResultTTL:         2 * time.Hour,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.MaxConcurrentJobs < 1 {
		c.MaxConcurrentJobs = d.MaxConcurrentJobs
	}
	if c.MaxMemoryMB < 1 {
		c.MaxMemoryMB = d.MaxMemoryMB
	}
	if c.MaxCPUCores <= 0 {
		c.MaxCPUCores = d.MaxCPUCores
	}
	if c.AutoBatchThreshold < 1 {
		c.AutoBatchThreshold = d.AutoBatchThreshold
	}
	if c.DefaultBatchSize < 1 {
		c.DefaultBatchSize = d.DefaultBatchSize
	}
	if c.MaxBatchConcurrency < 1 {
		c.MaxBatchConcurrency = d.MaxBatchConcurrency
	}
	if c.AdmissionRetryInterval <= 0 {
		c.AdmissionRetryInterval = d.AdmissionRetryInterval
	}
	if c.DefaultMaxAttempts < 1 {
		c.DefaultMaxAttempts = d.DefaultMaxAttempts
	}
	if c.DefaultBackoff <= 0 {
		c.DefaultBackoff = d.DefaultBackoff
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = d.DefaultStrategy
	}
	if c.DefaultRequirements.MemoryMB < 1 && c.DefaultRequirements.CPUCores <= 0 {
		c.DefaultRequirements = d.DefaultRequirements
	}
	if c.BatchResultTTL <= 0 {
		c.BatchResultTTL = d.BatchResultTTL
	}
}

// Scheduler is the orchestrator. All mutable registries are owned by this
// instance and guarded by a single mutex; accessors return deep copies.
type Scheduler struct {
	cfg *Config

	mu        sync.Mutex
	jobs      map[uuid.UUID]*models.Job
	batches   map[uuid.UUID][]*models.JobBatch
	submitSeq map[uuid.UUID]uint64
	held      map[uuid.UUID]models.ResourceRequirements
	timers    map[uuid.UUID]*time.Timer
	handlers  map[models.JobType]Handler
	seq       uint64
	closed    bool

	graph   *dependencyGraph
	tracker *progressTracker
	ledger  *resourceLedger
	queue   *execQueue

	listeners []Listener
	cache     ResultCache
	audit     AuditLogger
	notifier  Notifier

	ctx       context.Context
	cancelCtx context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithCache sets the batch-result memoization cache.
func WithCache(c ResultCache) Option { return func(s *Scheduler) { s.cache = c } }

// WithAuditLogger sets the audit collaborator.
func WithAuditLogger(a AuditLogger) Option { return func(s *Scheduler) { s.audit = a } }

// WithNotifier sets the push-notification collaborator.
func WithNotifier(n Notifier) Option { return func(s *Scheduler) { s.notifier = n } }

// WithListener registers a lifecycle event listener.
func WithListener(l Listener) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, l) }
}

// New creates a Scheduler. Call Start before submitting jobs and Shutdown
// for orderly termination.
func New(cfg *Config, opts ...Option) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		jobs:      make(map[uuid.UUID]*models.Job),
		batches:   make(map[uuid.UUID][]*models.JobBatch),
		submitSeq: make(map[uuid.UUID]uint64),
		held:      make(map[uuid.UUID]models.ResourceRequirements),
		timers:    make(map[uuid.UUID]*time.Timer),
		handlers:  make(map[models.JobType]Handler),
		graph:     newDependencyGraph(),
		tracker:   newProgressTracker(),
		ledger:    newResourceLedger(cfg.MaxMemoryMB, cfg.MaxCPUCores),
		ctx:       ctx,
		cancelCtx: cancel,
	}
	s.queue = newExecQueue(cfg.MaxConcurrentJobs, s.runJob)
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterHandler binds a handler to a job type. Registration is validated
// here so submission can assume the handler table is complete.
func (s *Scheduler) RegisterHandler(t models.JobType, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[t]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, t)
	}
	s.handlers[t] = h
	return nil
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	s.queue.start()
}

// Shutdown cancels all pending retry and admission timers without firing
// them, stops the worker pool, and waits for batch pipelines to drain.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cancelCtx()
	s.queue.stop()
	s.wg.Wait()
}

// batchRequired reports whether a job type cannot run without a dataset.
func batchRequired(t models.JobType) bool {
	switch t {
	case models.TypeLargeDatasetRiskAssessment,
		models.TypeBatchPatternValidation,
		models.TypeComplianceFrameworkAnalysis:
		return true
	}
	return false
}

// SubmitOptions carries the optional knobs for Submit.
type SubmitOptions struct {
	Priority     models.Priority
	Dependencies []uuid.UUID
	Tags         []string
	Requirements *models.ResourceRequirements
	BatchSize    int
	Retry        *models.RetryPolicy
	ParentJobID  *uuid.UUID
}

// Submit validates and registers a job, decides batching, and kicks off
// dispatch. It never blocks on execution; the returned id is available
// immediately for querying.
func (s *Scheduler) Submit(jobType models.JobType, data models.Payload, opts SubmitOptions) (uuid.UUID, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return uuid.Nil, ErrSchedulerClosed
	}
	if _, ok := s.handlers[jobType]; !ok {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	if batchRequired(jobType) && len(data.Dataset) == 0 {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w for type %q", ErrMissingDataset, jobType)
	}
	// Failure propagation runs when a prerequisite fails; one that is
	// already failed or cancelled has to be caught here or the job would
	// wait on propagation that already happened.
	staleDep := uuid.Nil
	for _, dep := range opts.Dependencies {
		d, ok := s.jobs[dep]
		if !ok {
			s.mu.Unlock()
			return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownDependency, dep)
		}
		if staleDep == uuid.Nil &&
			(d.Status == models.JobStatusFailed || d.Status == models.JobStatusCancelled) {
			staleDep = dep
		}
	}
	var parent *models.Job
	if opts.ParentJobID != nil {
		p, ok := s.jobs[*opts.ParentJobID]
		if !ok {
			s.mu.Unlock()
			return uuid.Nil, fmt.Errorf("%w: parent %s", ErrNotFound, *opts.ParentJobID)
		}
		parent = p
	}

	priority := opts.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("invalid priority %q", opts.Priority)
	}
	req := s.cfg.DefaultRequirements
	if opts.Requirements != nil {
		req = *opts.Requirements
	}
	retry := models.RetryPolicy{
		Strategy:    s.cfg.DefaultStrategy,
		MaxAttempts: s.cfg.DefaultMaxAttempts,
		BaseDelay:   s.cfg.DefaultBackoff,
	}
	if opts.Retry != nil {
		if opts.Retry.Strategy != "" {
			retry.Strategy = opts.Retry.Strategy
		}
		if opts.Retry.MaxAttempts > 0 {
			retry.MaxAttempts = opts.Retry.MaxAttempts
		}
		if opts.Retry.BaseDelay > 0 {
			retry.BaseDelay = opts.Retry.BaseDelay
		}
	}

	// Batching decision: explicit batch size the dataset exceeds, or the
	// auto-batch threshold with the default size assigned.
	batchSize := opts.BatchSize
	batched := batchSize > 0 && len(data.Dataset) > batchSize
	if !batched && len(data.Dataset) > s.cfg.AutoBatchThreshold {
		batchSize = s.cfg.DefaultBatchSize
		batched = true
	}

	job := &models.Job{
		ID:           uuid.New(),
		Type:         jobType,
		Status:       models.JobStatusPending,
		Priority:     priority,
		Data:         data,
		Dependencies: append([]uuid.UUID(nil), opts.Dependencies...),
		Tags:         append([]string(nil), opts.Tags...),
		Requirements: req,
		Retry: models.RetryInfo{
			MaxAttempts: retry.MaxAttempts,
			Strategy:    retry.Strategy,
			BaseDelay:   retry.BaseDelay,
		},
		ParentJobID: opts.ParentJobID,
		CreatedAt:   time.Now().UTC(),
	}
	if batched {
		job.BatchSize = batchSize
	}

	s.seq++
	s.jobs[job.ID] = job
	s.submitSeq[job.ID] = s.seq
	if batched {
		s.batches[job.ID] = makeBatches(job, batchSize)
	}
	if staleDep == uuid.Nil {
		for _, dep := range opts.Dependencies {
			s.graph.addEdge(dep, job.ID)
		}
	} else {
		now := time.Now().UTC()
		job.Status = models.JobStatusFailed
		job.Error = fmt.Sprintf("Dependency failed: %s", staleDep)
		job.CompletedAt = &now
	}
	if parent != nil {
		parent.ChildJobIDs = append(parent.ChildJobIDs, job.ID)
	}
	snap := job.Clone()
	s.mu.Unlock()

	s.publish(models.EventJobAdded, snap, "", nil)
	s.auditRecord(models.AuditJobCreated, snap.ID, models.SeverityInfo, map[string]any{
		"type":     string(jobType),
		"priority": string(priority),
		"batched":  batched,
	})
	if staleDep != uuid.Nil {
		s.publish(models.EventJobFailed, snap, "", map[string]any{"error": snap.Error})
		s.auditRecord(models.AuditJobFailed, snap.ID, models.SeverityError, map[string]any{"error": snap.Error})
		return snap.ID, nil
	}
	s.maybeDispatch(snap.ID)
	return snap.ID, nil
}

// maybeDispatch moves a pending job toward execution if its dependencies are
// satisfied and resources are available. Resource exhaustion is transient
// backpressure: dispatch is re-checked after a fixed delay, never failed.
func (s *Scheduler) maybeDispatch(jobID uuid.UUID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		s.mu.Unlock()
		return
	}
	if _, admitted := s.held[jobID]; admitted {
		s.mu.Unlock()
		return
	}
	if !s.depsSatisfiedLocked(job) {
		s.mu.Unlock()
		return
	}
	if !s.ledger.tryAcquire(job.Requirements) {
		if _, exists := s.timers[jobID]; !exists {
			s.timers[jobID] = time.AfterFunc(s.cfg.AdmissionRetryInterval, func() {
				s.clearTimer(jobID)
				s.maybeDispatch(jobID)
			})
		}
		s.mu.Unlock()
		return
	}
	s.held[jobID] = job.Requirements
	batched := len(s.batches[jobID]) > 0
	priority := job.Priority.Rank()
	seq := s.submitSeq[jobID]
	if batched {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if batched {
		go s.runBatchedJob(jobID)
	} else {
		s.queue.enqueue(jobID, priority, seq)
	}
}

func (s *Scheduler) depsSatisfiedLocked(job *models.Job) bool {
	for _, dep := range job.Dependencies {
		d, ok := s.jobs[dep]
		if !ok || d.Status != models.JobStatusCompleted {
			return false
		}
	}
	return true
}

// markRunning transitions a pending job to running and counts the attempt.
// Returns false if the job was cancelled or removed before a worker got to it.
func (s *Scheduler) markRunning(jobID uuid.UUID) (*models.Job, Handler, bool) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		s.mu.Unlock()
		return nil, nil, false
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	job.Retry.Attempts++
	handler := s.handlers[job.Type]
	snap := job.Clone()
	s.mu.Unlock()

	s.publish(models.EventJobStarted, snap, "", map[string]any{"attempt": snap.Retry.Attempts})
	s.auditRecord(models.AuditJobStarted, jobID, models.SeverityInfo, map[string]any{"attempt": snap.Retry.Attempts})
	return snap, handler, true
}

// runJob executes a non-batched job on a pool worker.
func (s *Scheduler) runJob(ctx context.Context, jobID uuid.UUID) {
	snap, handler, ok := s.markRunning(jobID)
	if !ok {
		s.releaseHold(jobID)
		return
	}
	result, err := invokeHandler(ctx, handler, Task{
		JobID:   jobID,
		Type:    snap.Type,
		Params:  snap.Data.Params,
		Dataset: snap.Data.Dataset,
		Report: func(progress int, stage string) {
			s.recordProgress(jobID, progress, stage, nil)
		},
	})
	if err != nil {
		s.handleJobFailure(jobID, err.Error())
		return
	}
	s.handleJobSuccess(jobID, result)
}

// handleJobSuccess lands a running job in completed, releases its resources,
// and starts any dependents whose prerequisites are all satisfied.
func (s *Scheduler) handleJobSuccess(jobID uuid.UUID, result any) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusRunning {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &now
	job.Result = result
	job.Error = ""
	s.releaseHoldLocked(jobID)

	var ready []*models.Job
	for _, depID := range s.graph.dependents(jobID) {
		dep, ok := s.jobs[depID]
		if !ok || dep.Status != models.JobStatusPending {
			continue
		}
		if s.depsSatisfiedLocked(dep) {
			ready = append(ready, dep.Clone())
		}
	}
	s.graph.removeNode(jobID)
	snap := job.Clone()
	s.mu.Unlock()

	s.publish(models.EventJobCompleted, snap, "", nil)
	s.auditRecord(models.AuditJobCompleted, jobID, models.SeverityInfo, map[string]any{
		"attempts": snap.Retry.Attempts,
	})
	for _, dep := range ready {
		s.publish(models.EventJobDependenciesSatisfied, dep, "", map[string]any{"satisfied_by": jobID.String()})
		s.maybeDispatch(dep.ID)
	}
}

// handleJobFailure records the failure, schedules a retry while attempts
// remain, and otherwise fails the job permanently, cascading failure to its
// dependents.
func (s *Scheduler) handleJobFailure(jobID uuid.UUID, reason string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusRunning {
		s.mu.Unlock()
		return
	}
	job.Retry.RetryReasons = append(job.Retry.RetryReasons, reason)
	s.releaseHoldLocked(jobID)

	if job.Retry.Attempts < job.Retry.MaxAttempts && !s.closed {
		now := time.Now().UTC()
		job.Status = models.JobStatusPending
		job.Error = reason
		job.Retry.LastRetryAt = &now
		delay := backoffDelay(job.Retry.Strategy, job.Retry.BaseDelay, job.Retry.Attempts)
		s.timers[jobID] = time.AfterFunc(delay, func() {
			s.clearTimer(jobID)
			s.prepareRetry(jobID)
		})
		snap := job.Clone()
		s.mu.Unlock()

		s.publish(models.EventJobRetrying, snap, "", map[string]any{
			"attempt":  snap.Retry.Attempts,
			"delay_ms": delay.Milliseconds(),
			"error":    reason,
		})
		s.auditRecord(models.AuditJobRetryScheduled, jobID, models.SeverityWarning, map[string]any{
			"attempt":  snap.Retry.Attempts,
			"delay_ms": delay.Milliseconds(),
			"error":    reason,
		})
		return
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.Error = reason
	job.CompletedAt = &now
	cascade := s.failDependentsLocked(jobID)
	s.graph.removeNode(jobID)
	snap := job.Clone()
	s.mu.Unlock()

	s.publish(models.EventJobFailed, snap, "", map[string]any{"error": reason})
	s.auditRecord(models.AuditJobFailed, jobID, models.SeverityError, map[string]any{
		"error":    reason,
		"attempts": snap.Retry.Attempts,
	})
	for _, c := range cascade {
		s.publish(models.EventJobFailed, c, "", map[string]any{"error": c.Error})
		s.auditRecord(models.AuditJobFailed, c.ID, models.SeverityError, map[string]any{"error": c.Error})
	}
}

// prepareRetry re-enters the ready path after a backoff delay: progress
// resets, the error clears, and dispatch is re-attempted.
func (s *Scheduler) prepareRetry(jobID uuid.UUID) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending || s.closed {
		s.mu.Unlock()
		return
	}
	job.Progress = 0
	job.Error = ""
	s.mu.Unlock()
	s.maybeDispatch(jobID)
}

// failDependentsLocked transitively fails every job waiting on root so that
// dependents never hang on a prerequisite that can no longer complete. Each
// dependent's error names its own failed prerequisite.
func (s *Scheduler) failDependentsLocked(root uuid.UUID) []*models.Job {
	var failed []*models.Job
	queue := []uuid.UUID{root}
	for len(queue) > 0 {
		causeID := queue[0]
		queue = queue[1:]
		for _, depID := range s.graph.dependents(causeID) {
			dep, ok := s.jobs[depID]
			if !ok || dep.Terminal() {
				continue
			}
			now := time.Now().UTC()
			dep.Status = models.JobStatusFailed
			dep.Error = fmt.Sprintf("Dependency failed: %s", causeID)
			dep.CompletedAt = &now
			s.stopTimerLocked(depID)
			s.releaseHoldLocked(depID)
			failed = append(failed, dep.Clone())
			queue = append(queue, depID)
		}
		if causeID != root {
			s.graph.removeNode(causeID)
		}
	}
	return failed
}

// recordProgress clamps and appends a progress update. Progress is
// meaningful only while a job is running and never decreases.
func (s *Scheduler) recordProgress(jobID uuid.UUID, progress int, stage string, metadata map[string]any) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusRunning {
		s.mu.Unlock()
		return
	}
	p := clampProgress(progress)
	if p < job.Progress {
		p = job.Progress
	}
	job.Progress = p
	s.tracker.append(jobID, p, stage, metadata)
	snap := job.Clone()
	s.mu.Unlock()

	s.publish(models.EventJobProgress, snap, stage, metadata)
}

// Cancel cancels a job and recursively cancels its children. Returns false
// if the job is unknown or already terminal. In-flight batches of a batched
// job are allowed to finish; aggregation and completion events are
// suppressed.
func (s *Scheduler) Cancel(jobID uuid.UUID) bool {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.stopTimerLocked(jobID)
	wasPending := job.Status == models.JobStatusPending
	now := time.Now().UTC()
	job.Status = models.JobStatusCancelled
	job.CompletedAt = &now
	s.releaseHoldLocked(jobID)
	children := append([]uuid.UUID(nil), job.ChildJobIDs...)
	cascade := s.failDependentsLocked(jobID)
	s.graph.removeNode(jobID)
	snap := job.Clone()
	s.mu.Unlock()

	if wasPending {
		s.queue.remove(jobID)
	} else {
		s.queue.cancelRunning(jobID)
	}
	s.publish(models.EventJobCancelled, snap, "", nil)
	s.auditRecord(models.AuditJobCancelled, jobID, models.SeverityInfo, nil)
	for _, c := range cascade {
		s.publish(models.EventJobFailed, c, "", map[string]any{"error": c.Error})
		s.auditRecord(models.AuditJobFailed, c.ID, models.SeverityError, map[string]any{"error": c.Error})
	}
	for _, child := range children {
		s.Cancel(child)
	}
	return true
}

// Get returns a copy of the job.
func (s *Scheduler) Get(jobID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// ListFilter narrows List output; zero fields match everything.
type ListFilter struct {
	Status      string
	Type        models.JobType
	Tags        []string
	ParentJobID *uuid.UUID
}

func (f ListFilter) matches(job *models.Job) bool {
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Type != "" && job.Type != f.Type {
		return false
	}
	if f.ParentJobID != nil {
		if job.ParentJobID == nil || *job.ParentJobID != *f.ParentJobID {
			return false
		}
	}
	for _, want := range f.Tags {
		found := false
		for _, tag := range job.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// List returns matching jobs, newest first.
func (s *Scheduler) List(filter ListFilter) []*models.Job {
	s.mu.Lock()
	type entry struct {
		job *models.Job
		seq uint64
	}
	entries := make([]entry, 0, len(s.jobs))
	for id, job := range s.jobs {
		if filter.matches(job) {
			entries = append(entries, entry{job: job.Clone(), seq: s.submitSeq[id]})
		}
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	out := make([]*models.Job, len(entries))
	for i, e := range entries {
		out[i] = e.job
	}
	return out
}

// Batches returns copies of a job's batch records.
func (s *Scheduler) Batches(jobID uuid.UUID) ([]*models.JobBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, ErrNotFound
	}
	batches := s.batches[jobID]
	out := make([]*models.JobBatch, len(batches))
	for i, b := range batches {
		out[i] = b.Clone()
	}
	return out, nil
}

// ProgressHistory returns the job's replayable progress timeline, oldest first.
func (s *Scheduler) ProgressHistory(jobID uuid.UUID) ([]models.ProgressUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, ErrNotFound
	}
	return s.tracker.snapshot(jobID), nil
}

// Cleanup evicts terminal jobs whose completion timestamp is older than the
// cutoff, along with their batch and progress history. Returns the number of
// jobs removed.
func (s *Scheduler) Cleanup(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()

	// A completed prerequisite still named by a live job must survive the
	// sweep: depsSatisfiedLocked treats a missing id as unsatisfied, so
	// evicting it would park the dependent forever.
	referenced := make(map[uuid.UUID]bool)
	for _, job := range s.jobs {
		if job.Terminal() {
			continue
		}
		for _, dep := range job.Dependencies {
			referenced[dep] = true
		}
	}

	removed := 0
	for id, job := range s.jobs {
		if !job.Terminal() || job.CompletedAt == nil || job.CompletedAt.After(cutoff) || referenced[id] {
			continue
		}
		delete(s.jobs, id)
		delete(s.batches, id)
		delete(s.submitSeq, id)
		s.tracker.remove(id)
		s.graph.removeNode(id)
		removed++
	}
	return removed
}

// Stats summarizes scheduler state for the query surface.
type Stats struct {
	TotalJobs     int            `json:"total_jobs"`
	ByStatus      map[string]int `json:"by_status"`
	QueueDepth    int            `json:"queue_depth"`
	TotalBatches  int            `json:"total_batches"`
	UsedMemoryMB  int            `json:"used_memory_mb"`
	UsedCPUCores  float64        `json:"used_cpu_cores"`
	LimitMemoryMB int            `json:"limit_memory_mb"`
	LimitCPUCores float64        `json:"limit_cpu_cores"`
}

// GetStats returns aggregate counts and resource usage.
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	st := Stats{
		TotalJobs: len(s.jobs),
		ByStatus: map[string]int{
			models.JobStatusPending:   0,
			models.JobStatusRunning:   0,
			models.JobStatusCompleted: 0,
			models.JobStatusFailed:    0,
			models.JobStatusCancelled: 0,
		},
	}
	for _, job := range s.jobs {
		st.ByStatus[job.Status]++
	}
	for _, batches := range s.batches {
		st.TotalBatches += len(batches)
	}
	s.mu.Unlock()

	st.QueueDepth = s.queue.depth()
	st.UsedMemoryMB, st.UsedCPUCores, st.LimitMemoryMB, st.LimitCPUCores = s.ledger.usage()
	return st
}

func (s *Scheduler) releaseHold(jobID uuid.UUID) {
	s.mu.Lock()
	s.releaseHoldLocked(jobID)
	s.mu.Unlock()
}

func (s *Scheduler) releaseHoldLocked(jobID uuid.UUID) {
	if req, ok := s.held[jobID]; ok {
		s.ledger.release(req)
		delete(s.held, jobID)
	}
}

func (s *Scheduler) stopTimerLocked(jobID uuid.UUID) {
	if t, ok := s.timers[jobID]; ok {
		t.Stop()
		delete(s.timers, jobID)
	}
}

func (s *Scheduler) clearTimer(jobID uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, jobID)
	s.mu.Unlock()
}
