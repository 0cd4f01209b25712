package scheduler

import (
	"context"

	"github.com/google/uuid"
)

// Kind identifies the provider operation a task performs.
type Kind string

const (
	CreateRepo Kind = "create_repo"
	CreateFile Kind = "create_file"
)

// RepoSpec describes a repository to create.
type RepoSpec struct {
	Name        string
	Description string
	Private     bool
}

// FileSpec describes a file to write into an existing repository.
type FileSpec struct {
	Repo    string
	Path    string
	Content string
	Message string
}

// Task is one unit of work. The payload is fixed when the task is built;
// workers never mutate it.
type Task struct {
	ID   uuid.UUID
	Kind Kind
	Repo RepoSpec
	File FileSpec
}

func NewCreateRepoTask(repo RepoSpec) Task {
	return Task{ID: uuid.New(), Kind: CreateRepo, Repo: repo}
}

func NewCreateFileTask(file FileSpec) Task {
	return Task{ID: uuid.New(), Kind: CreateFile, File: file}
}

// Target names the remote resource the task touches, for logs and errors.
func (t Task) Target() string {
	if t.Kind == CreateFile {
		return t.File.Repo + "/" + t.File.Path
	}
	return t.Repo.Name
}

// Provider performs the remote operations tasks run against. Implementations
// must be safe for concurrent use.
type Provider interface {
	CreateRepository(ctx context.Context, repo RepoSpec) error
	CreateFile(ctx context.Context, file FileSpec) error
}
