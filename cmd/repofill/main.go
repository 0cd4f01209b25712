package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"junkgen/cmd"
	"junkgen/internal/config"
	"junkgen/internal/fill"
	"junkgen/internal/github"
	"junkgen/internal/scheduler"
)

func main() {
	log.Println("Starting repo fill...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadRepo()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received, stopping run...")
		cancel()
	}()

	// The repository lives under the authenticated user, so resolve the
	// login first. This also validates the token before any prompting.
	bootstrap := github.NewClient(github.Config{
		Token:   cfg.GithubToken,
		BaseURL: cfg.APIBaseURL,
	})
	login, err := bootstrap.AuthenticatedUser(ctx)
	if err != nil {
		if hint := cmd.Remediation(err); hint != "" {
			log.Println(hint)
		}
		log.Fatalf("Failed to resolve authenticated user: %v", err)
	}

	client := github.NewClient(github.Config{
		Token:   cfg.GithubToken,
		BaseURL: cfg.APIBaseURL,
		Owner:   login,
	})

	repo, err := client.EnsureRepository(ctx, scheduler.RepoSpec{
		Name:        cfg.RepoName,
		Description: cfg.RepoDescription,
		Private:     cfg.PrivateRepo,
	})
	if err != nil {
		if hint := cmd.Remediation(err); hint != "" {
			log.Println(hint)
		}
		log.Fatalf("Failed to prepare repository %s: %v", cfg.RepoName, err)
	}
	log.Printf("Repository %s ready", repo.FullName)

	p := cmd.NewPrompter(os.Stdin, os.Stdout)

	mode, err := p.Mode()
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}
	files, err := p.Count("Enter the number of junk files to create: ")
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}
	fileSize, err := p.Count("Enter the number of characters (each on its own line) per junk file: ")
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}

	res, err := fill.Repo(ctx, client, fill.RepoPlan{
		Repo:       cfg.RepoName,
		Files:      files,
		FileSize:   fileSize,
		FilePrefix: cfg.FileNamePrefix,
		FileExt:    cfg.FileExtension,
	}, mode)

	log.Printf("Run complete: %s", res)
	if err != nil {
		if hint := cmd.Remediation(err); hint != "" {
			log.Println(hint)
		}
		log.Fatalf("Run aborted: %v", err)
	}
}
