package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"junkgen/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeErr implements scheduler.ProviderError with whatever classification a
// test needs. Having the fake here proves the scheduler needs nothing from
// the real client package.
type fakeErr struct {
	msg   string
	auth  bool
	rate  bool
	temp  bool
	after time.Duration
}

var _ scheduler.ProviderError = fakeErr{}

func (e fakeErr) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "fake provider error"
}

func (e fakeErr) Unauthorized() bool        { return e.auth }
func (e fakeErr) RateLimited() bool         { return e.rate }
func (e fakeErr) Temporary() bool           { return e.temp }
func (e fakeErr) RetryAfter() time.Duration { return e.after }

// fakeProvider records every call, tracks peak concurrency and serves
// scripted errors per target, consumed in order.
type fakeProvider struct {
	mu     sync.Mutex
	delay  time.Duration
	delays map[string]time.Duration
	errs   map[string][]error
	calls  []string
	times  []time.Time
	cur    int
	peak   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		delays: make(map[string]time.Duration),
		errs:   make(map[string][]error),
	}
}

func (p *fakeProvider) failWith(target string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[target] = append(p.errs[target], errs...)
}

func (p *fakeProvider) CreateRepository(ctx context.Context, repo scheduler.RepoSpec) error {
	return p.call(repo.Name)
}

func (p *fakeProvider) CreateFile(ctx context.Context, file scheduler.FileSpec) error {
	return p.call(file.Repo + "/" + file.Path)
}

func (p *fakeProvider) call(target string) error {
	p.mu.Lock()
	p.calls = append(p.calls, target)
	p.times = append(p.times, time.Now())
	p.cur++
	if p.cur > p.peak {
		p.peak = p.cur
	}
	var err error
	if q := p.errs[target]; len(q) > 0 {
		err = q[0]
		p.errs[target] = q[1:]
	}
	delay, ok := p.delays[target]
	if !ok {
		delay = p.delay
	}
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	p.cur--
	p.mu.Unlock()
	return err
}

func (p *fakeProvider) callCount(target string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == target {
			n++
		}
	}
	return n
}

func (p *fakeProvider) callTargets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *fakeProvider) timesFor(target string) []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []time.Time
	for i, c := range p.calls {
		if c == target {
			out = append(out, p.times[i])
		}
	}
	return out
}

func (p *fakeProvider) peakConcurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func repoTasks(n int) []scheduler.Task {
	tasks := make([]scheduler.Task, 0, n)
	for i := 1; i <= n; i++ {
		tasks = append(tasks, scheduler.NewCreateRepoTask(scheduler.RepoSpec{Name: fmt.Sprintf("repo-%d", i)}))
	}
	return tasks
}

// testScheduler shrinks delays and backoff so runs finish in milliseconds.
func testScheduler(p scheduler.Provider, mode scheduler.Mode) *scheduler.Scheduler {
	return &scheduler.Scheduler{
		Provider:       p,
		Mode:           mode,
		PerCallDelay:   time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRunAllTasksSucceed(t *testing.T) {
	for _, mode := range []scheduler.Mode{scheduler.Fast, scheduler.Slow} {
		t.Run(string(mode), func(t *testing.T) {
			provider := newFakeProvider()
			s := testScheduler(provider, mode)

			res, err := s.Run(context.Background(), repoTasks(20))

			require.NoError(t, err)
			assert.Equal(t, scheduler.RunResult{Succeeded: 20}, res)
			assert.Len(t, provider.callTargets(), 20)
		})
	}
}

func TestRunEmptyTaskList(t *testing.T) {
	provider := newFakeProvider()
	s := testScheduler(provider, scheduler.Fast)

	res, err := s.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{}, res)
	assert.Empty(t, provider.callTargets())
}

func TestSlowModeBoundsConcurrency(t *testing.T) {
	provider := newFakeProvider()
	provider.delay = 10 * time.Millisecond
	s := testScheduler(provider, scheduler.Slow)

	res, err := s.Run(context.Background(), repoTasks(10))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Succeeded: 10}, res)
	assert.LessOrEqual(t, provider.peakConcurrency(), 2)
}

func TestFastModeOutpacesSlowMode(t *testing.T) {
	run := func(mode scheduler.Mode) int {
		provider := newFakeProvider()
		provider.delay = 20 * time.Millisecond
		s := testScheduler(provider, mode)
		res, err := s.Run(context.Background(), repoTasks(12))
		require.NoError(t, err)
		require.Equal(t, 12, res.Succeeded)
		return provider.peakConcurrency()
	}

	fastPeak := run(scheduler.Fast)
	slowPeak := run(scheduler.Slow)

	assert.LessOrEqual(t, slowPeak, 2)
	assert.GreaterOrEqual(t, fastPeak, slowPeak)
}

func TestAuthErrorStopsDispatch(t *testing.T) {
	provider := newFakeProvider()
	authErr := fakeErr{msg: "bad credentials", auth: true}
	provider.failWith("repo-3", authErr)
	s := testScheduler(provider, scheduler.Slow)
	s.Workers = 1

	res, err := s.Run(context.Background(), repoTasks(5))

	var fatal *scheduler.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "repo-3", fatal.Task.Target())
	assert.ErrorIs(t, err, authErr)

	assert.Equal(t, scheduler.RunResult{Succeeded: 2, Failed: 1}, res)
	assert.Equal(t, []string{"repo-1", "repo-2", "repo-3"}, provider.callTargets())
}

func TestInFlightTaskFinishesAfterAbort(t *testing.T) {
	provider := newFakeProvider()
	provider.delay = 30 * time.Millisecond
	provider.delays["repo-1"] = 0
	provider.failWith("repo-1", fakeErr{msg: "bad credentials", auth: true})
	s := testScheduler(provider, scheduler.Fast)
	s.Workers = 2

	res, err := s.Run(context.Background(), repoTasks(4))

	var fatal *scheduler.FatalError
	require.ErrorAs(t, err, &fatal)
	// repo-2 was already running when repo-1 aborted everything; it still
	// finishes and counts. repo-3 and repo-4 must never reach the provider.
	assert.Equal(t, scheduler.RunResult{Succeeded: 1, Failed: 1}, res)
	assert.ElementsMatch(t, []string{"repo-1", "repo-2"}, provider.callTargets())
}

func TestRateLimitRetriesThenSucceeds(t *testing.T) {
	provider := newFakeProvider()
	rateErr := fakeErr{msg: "rate limited", rate: true}
	provider.failWith("repo-1", rateErr, rateErr)
	s := testScheduler(provider, scheduler.Fast)

	res, err := s.Run(context.Background(), repoTasks(1))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Succeeded: 1, Retried: 2}, res)
	assert.Equal(t, 3, provider.callCount("repo-1"))
}

func TestRateLimitExhaustionFailsTaskOnly(t *testing.T) {
	provider := newFakeProvider()
	rateErr := fakeErr{msg: "rate limited", rate: true}
	provider.failWith("repo-2", rateErr, rateErr, rateErr)
	s := testScheduler(provider, scheduler.Fast)

	res, err := s.Run(context.Background(), repoTasks(4))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Succeeded: 3, Failed: 1, Retried: 2}, res)
	assert.Equal(t, 3, provider.callCount("repo-2"))
}

func TestTransientErrorRetriedOnce(t *testing.T) {
	provider := newFakeProvider()
	tempErr := fakeErr{msg: "bad gateway", temp: true}
	provider.failWith("repo-1", tempErr)          // recovers on second call
	provider.failWith("repo-2", tempErr, tempErr) // stays broken
	s := testScheduler(provider, scheduler.Fast)
	s.Workers = 2

	res, err := s.Run(context.Background(), repoTasks(2))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Succeeded: 1, Failed: 1, Retried: 2}, res)
	assert.Equal(t, 2, provider.callCount("repo-1"))
	assert.Equal(t, 2, provider.callCount("repo-2"))
}

func TestUnclassifiedErrorFailsImmediately(t *testing.T) {
	provider := newFakeProvider()
	provider.failWith("repo-1", errors.New("boom"))
	provider.failWith("repo-2", fakeErr{msg: "not found"})
	s := testScheduler(provider, scheduler.Fast)

	res, err := s.Run(context.Background(), repoTasks(2))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Failed: 2}, res)
	assert.Equal(t, 1, provider.callCount("repo-1"))
	assert.Equal(t, 1, provider.callCount("repo-2"))
}

func TestRateLimitPausesWholePool(t *testing.T) {
	provider := newFakeProvider()
	provider.delay = 5 * time.Millisecond
	provider.delays["repo-1"] = 0
	provider.failWith("repo-1", fakeErr{msg: "rate limited", rate: true, after: 80 * time.Millisecond})
	s := testScheduler(provider, scheduler.Fast)
	s.Workers = 2

	res, err := s.Run(context.Background(), repoTasks(4))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Succeeded: 4, Retried: 1}, res)

	// The rate-limit hit on repo-1 must hold back the other worker's next
	// call, not just repo-1's own retry.
	first := provider.timesFor("repo-1")
	require.Len(t, first, 2)
	retryGap := first[1].Sub(first[0])
	assert.GreaterOrEqual(t, retryGap, 50*time.Millisecond)

	third := provider.timesFor("repo-3")
	require.Len(t, third, 1)
	poolGap := third[0].Sub(first[0])
	assert.GreaterOrEqual(t, poolGap, 50*time.Millisecond)
}

func TestContextCancelStopsDispatch(t *testing.T) {
	provider := newFakeProvider()
	provider.delay = 30 * time.Millisecond
	s := testScheduler(provider, scheduler.Fast)
	s.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(40*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := s.Run(ctx, repoTasks(6))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(provider.callTargets()), 6)
}

func TestOnTaskDoneFiresOncePerTask(t *testing.T) {
	provider := newFakeProvider()
	rateErr := fakeErr{msg: "rate limited", rate: true}
	provider.failWith("repo-2", rateErr, rateErr, rateErr)

	var mu sync.Mutex
	done := make(map[string]int)
	failed := make(map[string]error)

	s := testScheduler(provider, scheduler.Fast)
	s.OnTaskDone = func(task scheduler.Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		done[task.Target()]++
		if err != nil {
			failed[task.Target()] = err
		}
	}

	res, err := s.Run(context.Background(), repoTasks(3))

	require.NoError(t, err)
	assert.Equal(t, scheduler.RunResult{Succeeded: 2, Failed: 1, Retried: 2}, res)
	assert.Equal(t, map[string]int{"repo-1": 1, "repo-2": 1, "repo-3": 1}, done)
	assert.Len(t, failed, 1)
	assert.ErrorIs(t, failed["repo-2"], rateErr)
}

func TestRunResultAdd(t *testing.T) {
	a := scheduler.RunResult{Succeeded: 2, Failed: 1, Retried: 3}
	b := scheduler.RunResult{Succeeded: 5, Retried: 1}

	assert.Equal(t, scheduler.RunResult{Succeeded: 7, Failed: 1, Retried: 4}, a.Add(b))
	assert.Equal(t, "2 succeeded, 1 failed, 3 retried", a.String())
}
