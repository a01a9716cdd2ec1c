package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ochairo/sonarscan/internal/domain-adapters/gateways"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
	"github.com/ochairo/sonarscan/internal/external-adapters/httpapi"
	"github.com/ochairo/sonarscan/internal/external-adapters/yaml"
)

// shutdownGracePeriod bounds how long running scans may finish after a signal
const shutdownGracePeriod = 2 * time.Minute

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		configPath = fs.String("config", yaml.DefaultConfigFile, "Path to the YAML configuration")
		envFile    = fs.String("env-file", ".env", "Optional .env file overriding the configuration")
		addr       = fs.String("addr", "", "Listen address (default: listen_addr from the configuration)")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sonarscan serve [options]

Start the upload service. POST /scan accepts a multipart form with an
archive (file), a toolchain label (language) and an optional projectKey,
signature and sha256.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if err := executeServe(ctx, *configPath, *envFile, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %s\n", scanerr.Message(err))
		return 1
	}
	return 0
}

func executeServe(ctx context.Context, configPath, envFile, addr string) error {
	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForService(); err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.ListenAddr
	}

	logger := newLogger(cfg, cfg.Token)

	verifier, err := gateways.NewIntegrityVerifier(cfg.TrustedKeysFile, logger)
	if err != nil {
		return err
	}
	if cfg.RequireSignature && !verifier.HasTrustedKeys() {
		return scanerr.ConfigError("serve", "require_signature is set but no trusted keys were loaded", nil)
	}

	workspaces := gateways.NewWorkspaceStager(gateways.WorkspaceStagerConfig{
		BaseDir:        cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	workflow, scans := newScanPipeline(cfg, workspaces, verifier, logger, cfg.Token)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:           addr,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Scanner:        workflow,
		Toolchains:     scans.Toolchains(),
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", interfaces.F("error", err.Error()))
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}
