// Package scheduler runs independent provider tasks on a bounded worker
// pool. Failures are classified per task: authorization errors stop the
// whole run, rate-limit errors are retried with exponential backoff while
// the entire pool is paused, transient errors get a single retry, and
// anything else fails immediately.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Mode selects how hard the pool drives the provider. Anything other than
// Fast runs with the Slow settings.
type Mode string

const (
	Fast Mode = "FAST"
	Slow Mode = "SLOW"
)

const (
	fastWorkers = 20
	slowWorkers = 2

	// slowInterCallDelay spaces out calls on each worker in SLOW mode.
	slowInterCallDelay = time.Second

	// Attempt ceilings count total executions, the first call included.
	rateLimitAttempts = 3
	transientAttempts = 2

	defaultInitialBackoff = 5 * time.Second
	defaultMaxBackoff     = time.Minute
)

func (m Mode) workers() int {
	if m == Fast {
		return fastWorkers
	}
	return slowWorkers
}

func (m Mode) interCallDelay() time.Duration {
	if m == Fast {
		return 0
	}
	return slowInterCallDelay
}

// RunResult aggregates what happened to the tasks of one run. Retried
// counts re-executions: a task that failed twice before succeeding adds
// two.
type RunResult struct {
	Succeeded int
	Failed    int
	Retried   int
}

// Add merges two results, e.g. across fill phases.
func (r RunResult) Add(o RunResult) RunResult {
	return RunResult{
		Succeeded: r.Succeeded + o.Succeeded,
		Failed:    r.Failed + o.Failed,
		Retried:   r.Retried + o.Retried,
	}
}

func (r RunResult) String() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d retried", r.Succeeded, r.Failed, r.Retried)
}

// Scheduler executes tasks against a Provider. Zero-valued knobs take the
// mode's defaults; tests override them so runs finish in milliseconds.
type Scheduler struct {
	Provider Provider
	Mode     Mode

	// Workers overrides the mode's pool size when > 0. The pool is always
	// additionally capped at the number of tasks.
	Workers int

	// PerCallDelay overrides the mode's per-worker delay between tasks.
	PerCallDelay time.Duration

	// InitialBackoff and MaxBackoff bound the retry intervals.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnTaskDone, when set, is invoked exactly once per task that reaches
	// a terminal state, with a nil error for successes. It is called from
	// worker goroutines.
	OnTaskDone func(t Task, err error)
}

// Run executes all tasks and returns the aggregate counts. The error is
// non-nil only when an authorization failure aborted the run (then a
// *FatalError) or the caller's context was cancelled; ordinary per-task
// failures show up in the counts alone. Tasks never dispatched after an
// abort are not counted at all.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) (RunResult, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = s.Mode.workers()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers == 0 {
		return RunResult{}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		provider:       s.Provider,
		gate:           NewRateLimitState(),
		onDone:         s.OnTaskDone,
		cancel:         cancel,
		interCallDelay: s.PerCallDelay,
		initialBackoff: s.InitialBackoff,
		maxBackoff:     s.MaxBackoff,
	}
	if r.interCallDelay == 0 {
		r.interCallDelay = s.Mode.interCallDelay()
	}
	if r.initialBackoff <= 0 {
		r.initialBackoff = defaultInitialBackoff
	}
	if r.maxBackoff <= 0 {
		r.maxBackoff = defaultMaxBackoff
	}

	slog.Info("starting run", "tasks", len(tasks), "workers", workers, "mode", s.Mode)

	jobs := make(chan Task)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range jobs {
				// A cancelled run still drains the channel so the feeder
				// can exit, but nothing more is executed or counted.
				if runCtx.Err() != nil {
					continue
				}
				r.runTask(runCtx, t)
				sleep(runCtx, r.interCallDelay)
			}
		}()
	}

feed:
	for _, t := range tasks {
		select {
		case jobs <- t:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	res := r.counts.result()
	slog.Info("run finished", "succeeded", res.Succeeded, "failed", res.Failed, "retried", res.Retried)

	if r.fatalErr != nil {
		return res, r.fatalErr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// run holds the state shared by the workers of a single Run call.
type run struct {
	provider Provider
	gate     *RateLimitState
	counts   counters
	onDone   func(Task, error)
	cancel   context.CancelFunc

	interCallDelay time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration

	fatalOnce sync.Once
	fatalErr  error
}

func (r *run) runTask(ctx context.Context, t Task) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialBackoff
	bo.MaxInterval = r.maxBackoff
	bo.MaxElapsedTime = 0 // attempt ceilings bound the retries, not wall time
	bo.Reset()

	for attempt := 1; ; attempt++ {
		if err := r.gate.Wait(ctx); err != nil {
			// Cancelled while gated. Count the task only if it already
			// burned an attempt; otherwise it was never started.
			if attempt > 1 {
				r.fail(t, err)
			}
			return
		}

		err := r.execute(ctx, t)
		if err == nil {
			r.counts.succeeded.Add(1)
			r.done(t, nil)
			return
		}

		if ctx.Err() != nil {
			r.fail(t, err)
			return
		}

		switch classify(err) {
		case classAuth:
			slog.Error("authorization failure, stopping dispatch",
				"task_id", t.ID, "kind", t.Kind, "target", t.Target(), "error", err)
			r.fail(t, err)
			r.abort(&FatalError{Task: t, Err: err})
			return

		case classRateLimit:
			if attempt >= rateLimitAttempts {
				slog.Warn("rate limit retries exhausted",
					"task_id", t.ID, "kind", t.Kind, "target", t.Target(), "attempts", attempt, "error", err)
				r.fail(t, err)
				return
			}
			wait := bo.NextBackOff()
			if ra := retryAfterOf(err); ra > wait {
				wait = ra
			}
			r.gate.Throttle(wait)
			r.counts.retried.Add(1)
			slog.Warn("rate limited, pausing pool",
				"task_id", t.ID, "kind", t.Kind, "target", t.Target(), "attempt", attempt, "wait", wait, "error", err)

		case classTransient:
			if attempt >= transientAttempts {
				slog.Warn("transient failure not recovered",
					"task_id", t.ID, "kind", t.Kind, "target", t.Target(), "attempts", attempt, "error", err)
				r.fail(t, err)
				return
			}
			r.counts.retried.Add(1)
			slog.Warn("transient failure, retrying",
				"task_id", t.ID, "kind", t.Kind, "target", t.Target(), "attempt", attempt, "error", err)
			sleep(ctx, bo.NextBackOff())

		default:
			slog.Error("task failed",
				"task_id", t.ID, "kind", t.Kind, "target", t.Target(), "error", err)
			r.fail(t, err)
			return
		}
	}
}

func (r *run) execute(ctx context.Context, t Task) error {
	switch t.Kind {
	case CreateRepo:
		return r.provider.CreateRepository(ctx, t.Repo)
	case CreateFile:
		return r.provider.CreateFile(ctx, t.File)
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
}

func (r *run) fail(t Task, err error) {
	r.counts.failed.Add(1)
	r.done(t, err)
}

func (r *run) done(t Task, err error) {
	if r.onDone != nil {
		r.onDone(t, err)
	}
}

func (r *run) abort(err error) {
	r.fatalOnce.Do(func() {
		r.fatalErr = err
		r.cancel()
	})
}

type counters struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

func (c *counters) result() RunResult {
	return RunResult{
		Succeeded: int(c.succeeded.Load()),
		Failed:    int(c.failed.Load()),
		Retried:   int(c.retried.Load()),
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
