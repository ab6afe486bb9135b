// Package scheduler drives due tasks through the external execution
// pipeline and records executed/deferred/failed outcomes. A pass is the
// only suspension point in the kernel: tasks run strictly one at a time so
// later tasks cannot race earlier ones' store writes.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ceopilot/internal/logging"
	"ceopilot/internal/types"
)

// Pipeline outcome types the scheduler understands. Anything else is
// treated as a failure.
const (
	OutcomeExecuted = "executed"
	OutcomeDeferred = "deferred"
)

// FailureMissingPayload marks a task that cannot ever execute. Terminal.
const FailureMissingPayload = "missing_payload"

// PipelineOutcome is what the external execution step reports back.
type PipelineOutcome struct {
	Type    string // executed, deferred, ...
	Summary string // human-readable outcome description
}

// PipelineFunc is the injected external execution step. Timeout policy
// belongs to the pipeline, not the scheduler.
type PipelineFunc func(ctx context.Context, action, identity string, policyContext, agentContext map[string]any, initiator string) (PipelineOutcome, error)

// Options configures one scheduler pass.
type Options struct {
	Identity      string
	MaxTasks      int            // batch cap, default 10
	DeferDelay    time.Duration  // reschedule delay for deferrals, default 60m
	PolicyContext map[string]any // passed through to the pipeline
	Now           time.Time      // zero means wall clock
}

// DefaultMaxTasks caps a pass when Options.MaxTasks is unset.
const DefaultMaxTasks = 10

// DefaultDeferDelay is the fixed deferral reschedule distance.
const DefaultDeferDelay = 60 * time.Minute

// Scheduler executes due tasks for one identity at a time.
type Scheduler struct {
	tasks    types.TaskStore
	pipeline PipelineFunc
}

// New creates a scheduler over the given task store and pipeline step.
func New(tasks types.TaskStore, pipeline PipelineFunc) *Scheduler {
	return &Scheduler{tasks: tasks, pipeline: pipeline}
}

// Run executes one pass: load tasks, filter to due ones, cap the batch,
// and drive each through the pipeline sequentially. One task's failure
// never aborts the pass.
func (s *Scheduler) Run(ctx context.Context, opts Options) (types.SchedulerRunSummary, error) {
	timer := logging.StartTimer(logging.CategoryScheduler, "scheduler pass")
	defer timer.StopWithThreshold(2 * time.Second)

	now := opts.Now
	if now.IsZero() {
		now = types.NowUTC()
	}
	maxTasks := opts.MaxTasks
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	deferDelay := opts.DeferDelay
	if deferDelay <= 0 {
		deferDelay = DefaultDeferDelay
	}

	all, err := s.tasks.ListTasks(opts.Identity)
	if err != nil {
		return types.SchedulerRunSummary{}, fmt.Errorf("list tasks: %w", err)
	}

	var due []types.ScheduledTask
	for _, task := range all {
		if (task.Status == types.TaskScheduled || task.Status == types.TaskDeferred) && !task.ScheduledAt.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > maxTasks {
		due = due[:maxTasks]
	}

	var summary types.SchedulerRunSummary
	for _, task := range due {
		summary.Processed++

		// Exactly one attempt increment per considered task.
		task.Attempts++
		attemptAt := now
		task.LastAttemptAt = &attemptAt

		switch s.executeOne(ctx, opts, &task, now, deferDelay) {
		case types.TaskExecuted:
			summary.Executed++
		case types.TaskDeferred:
			summary.Deferred++
		default:
			summary.Failed++
		}

		if err := s.tasks.SaveTask(opts.Identity, task); err != nil {
			logging.Get(logging.CategoryScheduler).Error("save task %s: %v", task.TaskID, err)
		}
	}

	logging.Scheduler("pass for %s: processed=%d executed=%d deferred=%d failed=%d",
		opts.Identity, summary.Processed, summary.Executed, summary.Deferred, summary.Failed)
	return summary, nil
}

// executeOne runs a single due task through the pipeline and mutates the
// task into its next lifecycle state, returning that state.
func (s *Scheduler) executeOne(ctx context.Context, opts Options, task *types.ScheduledTask, now time.Time, deferDelay time.Duration) types.TaskStatus {
	if task.Action == "" || task.Initiator == "" {
		// Nothing to execute, ever. Terminal, no retry.
		task.Status = types.TaskFailed
		task.FailureReason = FailureMissingPayload
		return task.Status
	}

	outcome, err := s.pipeline(ctx, task.Action, opts.Identity, opts.PolicyContext, task.AgentContext, task.Initiator)
	if err != nil {
		task.Status = types.TaskFailed
		task.FailureReason = err.Error()
		return task.Status
	}

	switch outcome.Type {
	case OutcomeExecuted:
		task.Status = types.TaskExecuted
		completed := now
		task.CompletedAt = &completed
		task.FailureReason = ""
	case OutcomeDeferred:
		task.Status = types.TaskDeferred
		task.ScheduledAt = now.Add(deferDelay)
		task.FailureReason = fmt.Sprintf("deferred: %s", outcome.Summary)
	default:
		task.Status = types.TaskFailed
		task.FailureReason = fmt.Sprintf("unexpected outcome %q: %s", outcome.Type, outcome.Summary)
	}
	return task.Status
}

// RunAll sweeps multiple identities concurrently. Each identity's pass
// stays strictly sequential; identities do not share store state, so the
// sweep introduces no write races.
func (s *Scheduler) RunAll(ctx context.Context, identities []string, opts Options) (map[string]types.SchedulerRunSummary, error) {
	var mu sync.Mutex
	summaries := make(map[string]types.SchedulerRunSummary, len(identities))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, identity := range identities {
		identityOpts := opts
		identityOpts.Identity = identity
		eg.Go(func() error {
			summary, err := s.Run(egCtx, identityOpts)
			if err != nil {
				return fmt.Errorf("identity %s: %w", identityOpts.Identity, err)
			}
			mu.Lock()
			summaries[identityOpts.Identity] = summary
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return summaries, err
	}
	return summaries, nil
}
