package cmd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"junkgen/internal/scheduler"
)

// LoadEnvFile loads a key=value config file into the process environment.
// The default file is optional; a path given explicitly with -config must
// exist.
func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "config", "config.txt", "path to key=value config file")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	log.Printf("loading config from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			log.Printf("config file '%s' not found, using os.Environ only", configPath)
			return
		}
		log.Fatalf("error loading config file '%s': %v", configPath, err)
	}
}

// Prompter reads interactive answers line by line and re-asks until the
// answer parses.
type Prompter struct {
	s *bufio.Scanner
	w io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{s: bufio.NewScanner(in), w: out}
}

// Mode asks for the execution speed until the answer is F or S.
func (p *Prompter) Mode() (scheduler.Mode, error) {
	for {
		fmt.Fprint(p.w, "Choose execution speed - enter F for FAST or S for SLOW: ")
		if !p.s.Scan() {
			return "", p.inputErr()
		}
		switch strings.TrimSpace(p.s.Text()) {
		case "f", "F":
			return scheduler.Fast, nil
		case "s", "S":
			return scheduler.Slow, nil
		}
		fmt.Fprintln(p.w, "Please enter F or S.")
	}
}

// Count asks with label until the answer is a positive integer.
func (p *Prompter) Count(label string) (int, error) {
	for {
		fmt.Fprint(p.w, label)
		if !p.s.Scan() {
			return 0, p.inputErr()
		}
		n, err := strconv.Atoi(strings.TrimSpace(p.s.Text()))
		if err == nil && n > 0 {
			return n, nil
		}
		fmt.Fprintln(p.w, "Please enter a positive whole number.")
	}
}

func (p *Prompter) inputErr() error {
	if err := p.s.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return errors.New("input closed")
}

// Remediation suggests a fix for well-known failure classes, or returns ""
// when there is nothing useful to say.
func Remediation(err error) string {
	var perr scheduler.ProviderError
	if !errors.As(err, &perr) {
		return ""
	}
	switch {
	case perr.Unauthorized():
		return "check that GITHUB_TOKEN is valid and has the repo and admin:org scopes"
	case perr.RateLimited():
		return "the API rate limit was exhausted; wait a while or re-run in SLOW mode"
	}
	return ""
}
