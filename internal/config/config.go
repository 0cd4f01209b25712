// Package config holds the typed configuration for the filler binaries.
// Values come from the process environment, usually populated from a
// key=value config file loaded at startup.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// OrgConfig configures orgfill: junk repositories created under an
// organization, each filled with junk files.
type OrgConfig struct {
	GithubToken     string `env:"GITHUB_TOKEN,notEmpty,required"`
	OrgName         string `env:"ORG_NAME,notEmpty,required"`
	APIBaseURL      string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	RepoNamePrefix  string `env:"REPO_NAME_PREFIX" envDefault:"junk-repo-"`
	RepoDescription string `env:"REPO_DESCRIPTION" envDefault:"Repository filled with junk content"`
	PrivateRepo     bool   `env:"PRIVATE_REPO" envDefault:"false"`
	FileNamePrefix  string `env:"FILE_NAME_PREFIX" envDefault:"junk-"`
	FileExtension   string `env:"FILE_EXTENSION" envDefault:"txt"`
}

// RepoConfig configures repofill: junk files pushed into one repository
// belonging to the authenticated user. Description and visibility only
// apply when the repository has to be created.
type RepoConfig struct {
	GithubToken     string `env:"GITHUB_TOKEN,notEmpty,required"`
	RepoName        string `env:"REPO_NAME,notEmpty,required"`
	APIBaseURL      string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	RepoDescription string `env:"REPO_DESCRIPTION" envDefault:"Repository filled with junk content"`
	PrivateRepo     bool   `env:"PRIVATE_REPO" envDefault:"false"`
	FileNamePrefix  string `env:"FILE_NAME_PREFIX" envDefault:"junk-"`
	FileExtension   string `env:"FILE_EXTENSION" envDefault:"txt"`
}

func LoadOrg() (*OrgConfig, error) {
	cfg := &OrgConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return cfg, nil
}

func LoadRepo() (*RepoConfig, error) {
	cfg := &RepoConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return cfg, nil
}
