package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ochairo/sonarscan/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/sonarscan/internal/domain-orchestrators"
	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	ports "github.com/ochairo/sonarscan/internal/domain/interfaces/gateways"
	svcports "github.com/ochairo/sonarscan/internal/domain/interfaces/services"
	"github.com/ochairo/sonarscan/internal/domain/services"
	"github.com/ochairo/sonarscan/internal/external-adapters/logging"
	"github.com/ochairo/sonarscan/internal/external-adapters/yaml"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]

	// Dispatch to subcommand
	var code int
	switch command {
	case "scan":
		code = runScan(ctx, os.Args[2:])
	case "serve":
		code = runServe(ctx, os.Args[2:])
	case "toolchains":
		code = runToolchains(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		code = 1
	}

	stop()
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`sonarscan - Run SonarQube analysis on uploaded or local codebases

Usage:
  sonarscan <command> [options]

Commands:
  scan        Scan a codebase directory
  serve       Start the archive upload service
  toolchains  List supported toolchains and their labels

Use "sonarscan <command> --help" for more information about a command.`)
}

// loadConfig reads the YAML configuration with its .env and environment overlay
func loadConfig(configPath, envFile string) (*entities.ScannerConfig, error) {
	return yaml.NewConfigLoader(envFile).Load(configPath)
}

// newLogger builds the process logger; secrets are masked in every entry
func newLogger(cfg *entities.ScannerConfig, secrets ...string) *logging.Logger {
	return logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Secrets: secrets,
	})
}

// newScanPipeline wires the components shared by the scan and serve commands
func newScanPipeline(
	cfg *entities.ScannerConfig,
	workspaces *gateways.WorkspaceStager,
	verifier ports.IntegrityVerifier,
	logger interfaces.Logger,
	secrets ...string,
) (*orchestrators.ScanWorkflow, svcports.ScanService) {
	runner := gateways.NewCommandRunner(gateways.CommandRunnerConfig{
		Timeout: cfg.CommandTimeout,
		Secrets: secrets,
		Logger:  logger,
	})
	scans := services.NewScanService(gateways.NewSolutionFinder(), logger)

	deps := orchestrators.ScanWorkflowDeps{
		Scans:        scans,
		Orchestrator: orchestrators.NewScanOrchestrator(runner, logger),
		Logger:       logger,
	}
	// Assigning a typed nil would make the interface non-nil.
	if workspaces != nil {
		deps.Workspaces = workspaces
	}
	if verifier != nil {
		deps.Verifier = verifier
	}
	return orchestrators.NewScanWorkflow(cfg, deps), scans
}

