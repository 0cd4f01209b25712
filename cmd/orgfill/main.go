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
)

func main() {
	log.Println("Starting org fill...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadOrg()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	client := github.NewClient(github.Config{
		Token:      cfg.GithubToken,
		BaseURL:    cfg.APIBaseURL,
		Owner:      cfg.OrgName,
		OwnerIsOrg: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received, stopping run...")
		cancel()
	}()

	if err := client.CheckAccess(ctx); err != nil {
		if hint := cmd.Remediation(err); hint != "" {
			log.Println(hint)
		}
		log.Fatalf("Failed to verify access to organization %s: %v", cfg.OrgName, err)
	}

	p := cmd.NewPrompter(os.Stdin, os.Stdout)

	mode, err := p.Mode()
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}
	repos, err := p.Count("Enter the number of repositories to create: ")
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}
	filesPerRepo, err := p.Count("Enter the number of junk files per repository: ")
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}
	fileSize, err := p.Count("Enter the number of characters (each on its own line) per junk file: ")
	if err != nil {
		log.Fatalf("error reading input: %v", err)
	}

	res, err := fill.Org(ctx, client, fill.OrgPlan{
		Repos:          repos,
		FilesPerRepo:   filesPerRepo,
		FileSize:       fileSize,
		RepoNamePrefix: cfg.RepoNamePrefix,
		Description:    cfg.RepoDescription,
		Private:        cfg.PrivateRepo,
		FilePrefix:     cfg.FileNamePrefix,
		FileExt:        cfg.FileExtension,
	}, mode)

	log.Printf("Run complete: %s", res)
	if err != nil {
		if hint := cmd.Remediation(err); hint != "" {
			log.Println(hint)
		}
		log.Fatalf("Run aborted: %v", err)
	}
}
