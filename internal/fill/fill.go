// Package fill turns a fill plan into scheduler tasks and runs them,
// reporting progress on the terminal.
package fill

import (
	"context"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"

	"junkgen/internal/junk"
	"junkgen/internal/scheduler"
)

// OrgPlan describes an organization fill: Repos junk repositories, each
// receiving FilesPerRepo junk files of FileSize characters.
type OrgPlan struct {
	Repos        int
	FilesPerRepo int
	FileSize     int

	RepoNamePrefix string
	Description    string
	Private        bool

	FilePrefix string
	FileExt    string
}

// RepoPlan describes filling a single repository with junk files.
type RepoPlan struct {
	Repo     string
	Files    int
	FileSize int

	FilePrefix string
	FileExt    string
}

// Org creates the repositories and then fills each one that was actually
// created; files for failed repositories are never attempted. The returned
// result merges both phases. An error from the repository phase (an abort
// or cancellation) skips the file phase entirely.
func Org(ctx context.Context, provider scheduler.Provider, plan OrgPlan, mode scheduler.Mode) (scheduler.RunResult, error) {
	tracker := &createdRepos{Provider: provider}

	repoTasks := make([]scheduler.Task, 0, plan.Repos)
	for i := 1; i <= plan.Repos; i++ {
		repoTasks = append(repoTasks, scheduler.NewCreateRepoTask(scheduler.RepoSpec{
			Name:        junk.RepoName(plan.RepoNamePrefix, i),
			Description: plan.Description,
			Private:     plan.Private,
		}))
	}

	repoRes, err := runPhase(ctx, tracker, mode, "creating repositories", repoTasks)
	if err != nil {
		return repoRes, err
	}

	created := tracker.names()
	fileTasks := make([]scheduler.Task, 0, len(created)*plan.FilesPerRepo)
	for _, repo := range created {
		for j := 1; j <= plan.FilesPerRepo; j++ {
			path := junk.FileName(plan.FilePrefix, j, plan.FileExt)
			fileTasks = append(fileTasks, scheduler.NewCreateFileTask(scheduler.FileSpec{
				Repo:    repo,
				Path:    path,
				Content: junk.Content(plan.FileSize),
				Message: junk.CommitMessage(path),
			}))
		}
	}

	fileRes, err := runPhase(ctx, provider, mode, "creating junk files", fileTasks)
	return repoRes.Add(fileRes), err
}

// Repo fills one existing repository with junk files.
func Repo(ctx context.Context, provider scheduler.Provider, plan RepoPlan, mode scheduler.Mode) (scheduler.RunResult, error) {
	tasks := make([]scheduler.Task, 0, plan.Files)
	for j := 1; j <= plan.Files; j++ {
		path := junk.FileName(plan.FilePrefix, j, plan.FileExt)
		tasks = append(tasks, scheduler.NewCreateFileTask(scheduler.FileSpec{
			Repo:    plan.Repo,
			Path:    path,
			Content: junk.Content(plan.FileSize),
			Message: junk.CommitMessage(path),
		}))
	}
	return runPhase(ctx, provider, mode, "creating junk files", tasks)
}

func runPhase(ctx context.Context, provider scheduler.Provider, mode scheduler.Mode, description string, tasks []scheduler.Task) (scheduler.RunResult, error) {
	if len(tasks) == 0 {
		return scheduler.RunResult{}, nil
	}

	bar := progressbar.NewOptions(len(tasks),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	s := &scheduler.Scheduler{
		Provider: provider,
		Mode:     mode,
		OnTaskDone: func(scheduler.Task, error) {
			_ = bar.Add(1)
		},
	}
	return s.Run(ctx, tasks)
}

// createdRepos records which repositories a run actually created, so the
// file phase only targets those.
type createdRepos struct {
	scheduler.Provider

	mu    sync.Mutex
	repos []string
}

func (c *createdRepos) CreateRepository(ctx context.Context, repo scheduler.RepoSpec) error {
	if err := c.Provider.CreateRepository(ctx, repo); err != nil {
		return err
	}
	c.mu.Lock()
	c.repos = append(c.repos, repo.Name)
	c.mu.Unlock()
	return nil
}

// names returns the created repositories sorted by name, so file tasks are
// generated in a stable order regardless of worker interleaving.
func (c *createdRepos) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.repos))
	copy(out, c.repos)
	sort.Strings(out)
	return out
}
