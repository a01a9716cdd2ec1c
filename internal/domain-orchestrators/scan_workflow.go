package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/services"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// ScanWorkflow runs one scan request end to end:
// validate, stage, verify, extract, resolve, execute, clean up.
type ScanWorkflow struct {
	config       *entities.ScannerConfig
	workspaces   gateways.WorkspaceGateway
	verifier     gateways.IntegrityVerifier
	scans        services.ScanService
	orchestrator *ScanOrchestrator
	logger       interfaces.Logger
}

// ScanWorkflowDeps groups the collaborators of a ScanWorkflow. Verifier may
// be nil when integrity checks are not offered.
type ScanWorkflowDeps struct {
	Workspaces   gateways.WorkspaceGateway
	Verifier     gateways.IntegrityVerifier
	Scans        services.ScanService
	Orchestrator *ScanOrchestrator
	Logger       interfaces.Logger
}

// NewScanWorkflow creates a new scan workflow
func NewScanWorkflow(config *entities.ScannerConfig, deps ScanWorkflowDeps) *ScanWorkflow {
	return &ScanWorkflow{
		config:       config,
		workspaces:   deps.Workspaces,
		verifier:     deps.Verifier,
		scans:        deps.Scans,
		orchestrator: deps.Orchestrator,
		logger:       interfaces.OrNoOp(deps.Logger),
	}
}

// Run processes an uploaded archive. The workspace created for the request
// is removed on every exit path, panics included; a cleanup failure is
// logged and never replaces the primary outcome.
func (w *ScanWorkflow) Run(ctx context.Context, req entities.ScanRequest) (*entities.ScanOutcome, error) {
	const op = "workflow.run"
	startTime := time.Now()

	if w.config == nil {
		return nil, scanerr.ConfigError(op, "scanner configuration is required", nil)
	}
	projectKey, err := w.validateRequest(req)
	if err != nil {
		return nil, err
	}

	log := w.logger.With(interfaces.F("project_key", projectKey))

	ws, err := w.workspaces.Stage(ctx, req.Archive, req.ArchiveName)
	if err != nil {
		return nil, err
	}
	defer w.cleanup(ws, log)
	log = log.With(interfaces.F("workspace", ws.ID))
	w.transition(log, entities.ScanStateStaged)

	if err := w.verify(ctx, ws, req); err != nil {
		w.transition(log, entities.ScanStateFailed)
		return nil, err
	}

	if err := w.workspaces.Extract(ctx, ws); err != nil {
		w.transition(log, entities.ScanStateFailed)
		return nil, err
	}

	outcome, err := w.resolveAndExecute(ctx, log, req.Toolchain, ws.ExtractDir, projectKey, w.config)
	if outcome != nil {
		outcome.Duration = time.Since(startTime)
	}
	return outcome, err
}

// ScanDirectory scans an existing codebase directory with a caller supplied
// token. Nothing is staged, so nothing is removed afterwards. An empty key
// is derived from the directory name.
func (w *ScanWorkflow) ScanDirectory(ctx context.Context, codebase, label, projectKey, token string) (*entities.ScanOutcome, error) {
	const op = "workflow.scan_directory"

	if w.config == nil {
		return nil, scanerr.ConfigError(op, "scanner configuration is required", nil)
	}

	info, err := os.Stat(codebase)
	if err != nil || !info.IsDir() {
		return nil, scanerr.NotFoundError(op, "codebase directory not found: "+codebase)
	}

	if _, err := w.scans.NormalizeToolchain(label); err != nil {
		return nil, err
	}
	key, err := w.scans.DeriveProjectKey(projectKey, filepath.Base(filepath.Clean(codebase)))
	if err != nil {
		return nil, err
	}

	cfg := w.config
	if token != "" {
		cfg = w.config.WithToken(token)
	}

	log := w.logger.With(interfaces.F("project_key", key), interfaces.F("codebase", codebase))
	return w.resolveAndExecute(ctx, log, label, codebase, key, cfg)
}

// validateRequest checks everything that needs no file system access
func (w *ScanWorkflow) validateRequest(req entities.ScanRequest) (string, error) {
	const op = "workflow.validate"

	if req.Archive == nil {
		return "", scanerr.ValidationError(op, "no file part")
	}
	if strings.TrimSpace(req.ArchiveName) == "" {
		return "", scanerr.ValidationError(op, "no selected file")
	}
	if !w.workspaces.ValidateExtension(req.ArchiveName) {
		return "", scanerr.ValidationError(op, "invalid file type: "+filepath.Base(req.ArchiveName))
	}
	if strings.TrimSpace(req.Toolchain) == "" {
		return "", scanerr.ValidationError(op, "no language specified")
	}
	if _, err := w.scans.NormalizeToolchain(req.Toolchain); err != nil {
		return "", err
	}
	if w.config.RequireSignature && len(req.Signature) == 0 {
		return "", scanerr.New(scanerr.CodeSignatureInvalid, op, "a detached signature is required")
	}
	return w.scans.DeriveProjectKey(req.ProjectKey, req.ArchiveName)
}

// verify checks the checksum and signature when supplied or required
func (w *ScanWorkflow) verify(ctx context.Context, ws *entities.Workspace, req entities.ScanRequest) error {
	if req.Checksum == "" && len(req.Signature) == 0 {
		return nil
	}
	if w.verifier == nil {
		return scanerr.ConfigError("workflow.verify", "integrity verification is not configured", nil)
	}
	if req.Checksum != "" {
		if err := w.verifier.VerifyChecksum(ctx, ws.ArchivePath, req.Checksum); err != nil {
			return err
		}
	}
	if len(req.Signature) > 0 {
		if err := w.verifier.VerifySignature(ctx, ws.ArchivePath, req.Signature); err != nil {
			return err
		}
	}
	return nil
}

// resolveAndExecute builds the plan for root and runs it
func (w *ScanWorkflow) resolveAndExecute(
	ctx context.Context,
	log interfaces.Logger,
	label, root, projectKey string,
	cfg *entities.ScannerConfig,
) (*entities.ScanOutcome, error) {
	plan, err := w.scans.ResolvePlan(ctx, label, root, projectKey, cfg)
	if err != nil {
		w.transition(log, entities.ScanStateFailed)
		return nil, err
	}
	w.transition(log, entities.ScanStateResolved,
		interfaces.F("toolchain", string(plan.Toolchain)),
		interfaces.F("steps", len(plan.Steps)),
	)

	w.transition(log, entities.ScanStateRunning)
	outcome, err := w.orchestrator.Execute(ctx, plan)
	if err != nil {
		w.transition(log, entities.ScanStateFailed, interfaces.F("error", scanerr.Message(err)))
		return outcome, fmt.Errorf("scan of %s failed: %w", projectKey, err)
	}

	w.transition(log, entities.ScanStateDone, interfaces.F("duration", outcome.Duration.String()))
	return outcome, nil
}

// cleanup removes the workspace; failures are only logged
func (w *ScanWorkflow) cleanup(ws *entities.Workspace, log interfaces.Logger) {
	if err := w.workspaces.Cleanup(ws); err != nil {
		log.Error("workspace cleanup failed",
			interfaces.F("code", string(scanerr.CodeOf(err))),
			interfaces.F("error", err.Error()),
		)
	}
}

func (w *ScanWorkflow) transition(log interfaces.Logger, state entities.ScanState, fields ...interfaces.Field) {
	fields = append([]interfaces.Field{interfaces.F("state", string(state))}, fields...)
	if state == entities.ScanStateFailed {
		log.Warn("scan state changed", fields...)
		return
	}
	log.Info("scan state changed", fields...)
}
