// Package github is a small GitHub REST v3 client covering what the filler
// utilities need: creating repositories and committing junk files. It
// implements scheduler.Provider, and its errors expose the classification
// the scheduler retries on.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"junkgen/internal/scheduler"
)

const defaultBaseURL = "https://api.github.com"

type Config struct {
	Token string

	// BaseURL overrides the public API endpoint, e.g. for GitHub
	// Enterprise or tests.
	BaseURL string

	// Owner is the organization or user the target repositories live
	// under. OwnerIsOrg selects the organization repository-creation
	// endpoint.
	Owner      string
	OwnerIsOrg bool
}

type Client struct {
	http  *resty.Client
	owner string
	org   bool
}

var _ scheduler.Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	client := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetHeader("User-Agent", "junkgen")

	return &Client{http: client, owner: cfg.Owner, org: cfg.OwnerIsOrg}
}

// Repository is the subset of the API repository object we care about.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	HTMLURL  string `json:"html_url"`
}

// AuthenticatedUser returns the login behind the token. It doubles as a
// credential check at startup.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	const op = "get authenticated user"
	var user struct {
		Login string `json:"login"`
	}
	res, err := c.http.R().SetContext(ctx).SetResult(&user).Get("/user")
	if err != nil {
		return "", newTransportError(op, err)
	}
	if !res.IsSuccess() {
		return "", newRequestError(op, res)
	}
	return user.Login, nil
}

// CheckAccess verifies the configured organization exists and the token can
// see it.
func (c *Client) CheckAccess(ctx context.Context) error {
	op := fmt.Sprintf("access organization %s", c.owner)
	res, err := c.http.R().SetContext(ctx).Get("/orgs/" + c.owner)
	if err != nil {
		return newTransportError(op, err)
	}
	if !res.IsSuccess() {
		return newRequestError(op, res)
	}
	return nil
}

// CreateRepository creates a repository under the configured owner,
// initialized with a first commit so the contents API can write to it
// right away.
func (c *Client) CreateRepository(ctx context.Context, repo scheduler.RepoSpec) error {
	_, err := c.createRepository(ctx, repo)
	return err
}

func (c *Client) createRepository(ctx context.Context, repo scheduler.RepoSpec) (*Repository, error) {
	op := fmt.Sprintf("create repository %s", repo.Name)
	path := "/user/repos"
	if c.org {
		path = fmt.Sprintf("/orgs/%s/repos", c.owner)
	}
	body := map[string]any{
		"name":        repo.Name,
		"description": repo.Description,
		"private":     repo.Private,
		"auto_init":   true,
	}

	var created Repository
	res, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&created).Post(path)
	if err != nil {
		return nil, newTransportError(op, err)
	}
	if !res.IsSuccess() {
		return nil, newRequestError(op, res)
	}
	slog.Info("created repository", "repo", created.FullName)
	return &created, nil
}

// GetRepository looks up a repository under the configured owner. A 404
// maps to ErrRepositoryNotFound.
func (c *Client) GetRepository(ctx context.Context, name string) (*Repository, error) {
	op := fmt.Sprintf("get repository %s", name)
	var repo Repository
	res, err := c.http.R().SetContext(ctx).SetResult(&repo).Get(fmt.Sprintf("/repos/%s/%s", c.owner, name))
	if err != nil {
		return nil, newTransportError(op, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, c.owner, name)
	}
	if !res.IsSuccess() {
		return nil, newRequestError(op, res)
	}
	return &repo, nil
}

// EnsureRepository returns the named repository, creating it first when it
// does not exist yet.
func (c *Client) EnsureRepository(ctx context.Context, repo scheduler.RepoSpec) (*Repository, error) {
	existing, err := c.GetRepository(ctx, repo.Name)
	if err == nil {
		slog.Info("repository exists", "repo", existing.FullName)
		return existing, nil
	}
	if !errors.Is(err, ErrRepositoryNotFound) {
		return nil, err
	}
	slog.Info("repository not found, creating it", "repo", repo.Name)
	return c.createRepository(ctx, repo)
}

// CreateFile commits a file through the contents API. When the path is
// already taken, the call retries as an update with the current blob sha.
func (c *Client) CreateFile(ctx context.Context, file scheduler.FileSpec) error {
	err := c.putContents(ctx, file, "")
	if err == nil {
		return nil
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !needsExistingSHA(reqErr) {
		return err
	}

	sha, shaErr := c.contentsSHA(ctx, file.Repo, file.Path)
	if shaErr != nil {
		// No existing file to update; report the original conflict.
		return err
	}
	slog.Debug("file exists, updating instead", "repo", file.Repo, "path", file.Path)
	return c.putContents(ctx, file, sha)
}

func (c *Client) putContents(ctx context.Context, file scheduler.FileSpec, sha string) error {
	op := fmt.Sprintf("create file %s in %s", file.Path, file.Repo)
	body := map[string]any{
		"message": file.Message,
		"content": base64.StdEncoding.EncodeToString([]byte(file.Content)),
	}
	if sha != "" {
		body["sha"] = sha
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, file.Repo, file.Path))
	if err != nil {
		return newTransportError(op, err)
	}
	if !res.IsSuccess() {
		return newRequestError(op, res)
	}
	slog.Debug("wrote file", "repo", file.Repo, "path", file.Path)
	return nil
}

func (c *Client) contentsSHA(ctx context.Context, repo, path string) (string, error) {
	op := fmt.Sprintf("get contents %s in %s", path, repo)
	var contents struct {
		SHA string `json:"sha"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&contents).
		Get(fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, path))
	if err != nil {
		return "", newTransportError(op, err)
	}
	if !res.IsSuccess() {
		return "", newRequestError(op, res)
	}
	return contents.SHA, nil
}
