package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
	"github.com/ochairo/sonarscan/internal/external-adapters/yaml"
)

type scanOptions struct {
	codebase   string
	language   string
	projectKey string
	token      string
	configPath string
	envFile    string
	verbose    bool
}

func runScan(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var opts scanOptions
	fs.StringVar(&opts.codebase, "codebase", "", "Path to the codebase directory")
	fs.StringVar(&opts.language, "language", "", "Toolchain label (e.g. python, \".NET Core\", \"Java (Maven)\")")
	fs.StringVar(&opts.projectKey, "project-key", "", "SonarQube project key (default: derived from the directory name)")
	fs.StringVar(&opts.token, "token", "", "SonarQube token (default: sonarqube_token from the configuration)")
	fs.StringVar(&opts.configPath, "config", yaml.DefaultConfigFile, "Path to the YAML configuration")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Optional .env file overriding the configuration")
	fs.BoolVar(&opts.verbose, "verbose", false, "Print the output of every command")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sonarscan scan [options]

Build and analyze a local codebase with the toolchain selected by --language.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  sonarscan scan --codebase ./service --language python --token squ_xxx
  sonarscan scan --codebase ./legacy --language ".NET Framework" --project-key legacy
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if opts.codebase == "" || opts.language == "" {
		fmt.Fprintf(os.Stderr, "Error: --codebase and --language are required\n\n")
		fs.Usage()
		return 1
	}

	if err := executeScan(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %s\n", scanerr.Message(err))
		return 1
	}
	return 0
}

func executeScan(ctx context.Context, opts scanOptions, out io.Writer) error {
	cfg, err := loadConfig(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}

	token := opts.token
	if token == "" {
		token = cfg.Token
	}

	logger := newLogger(cfg, token)
	workflow, _ := newScanPipeline(cfg, nil, nil, logger, token)

	fmt.Fprintf(out, "🔍 Scanning %s (%s)\n", opts.codebase, opts.language)

	outcome, err := workflow.ScanDirectory(ctx, opts.codebase, opts.language, opts.projectKey, token)
	if outcome != nil {
		displayScanOutcome(out, outcome, opts.verbose)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Scan completed successfully: %s (%v)\n", outcome.ProjectKey, outcome.Duration.Round(time.Millisecond))
	return nil
}

func displayScanOutcome(out io.Writer, outcome *entities.ScanOutcome, verbose bool) {
	fmt.Fprintf(out, "   Project key: %s\n", outcome.ProjectKey)
	fmt.Fprintf(out, "   Toolchain: %s\n", outcome.Toolchain)
	for _, r := range outcome.Results {
		status := "✅"
		if !r.Success {
			status = "❌"
		}
		fmt.Fprintf(out, "   %s %s (%v)\n", status, r.Step.Name, r.Duration.Round(time.Millisecond))
		if verbose && r.Output != "" {
			fmt.Fprintf(out, "%s\n", r.Output)
		}
	}
}
