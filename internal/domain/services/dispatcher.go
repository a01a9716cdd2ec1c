// Package services implements domain business logic and use cases.
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/services"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// toolchainTable maps every recognised label to its canonical toolchain.
// Labels are compared after trimming and lower-casing.
var toolchainTable = []services.ToolchainInfo{
	{
		Toolchain:   entities.ToolchainDotNetFramework,
		Aliases:     []string{".net framework", "dotnet-framework"},
		Description: "MSBuild rebuild of the solution wrapped in SonarScanner for .NET",
	},
	{
		Toolchain:   entities.ToolchainDotNetCore,
		Aliases:     []string{".net core", "dotnet-core"},
		Description: "dotnet build <solution> --no-incremental wrapped in SonarScanner for .NET",
	},
	{
		Toolchain:   entities.ToolchainMaven,
		Aliases:     []string{"java (maven)", "maven"},
		Description: "mvn clean verify sonar:sonar",
	},
	{
		Toolchain:   entities.ToolchainGradle,
		Aliases:     []string{"java (gradle)", "gradle"},
		Description: "gradle sonar",
	},
	{
		Toolchain:   entities.ToolchainGeneric,
		Aliases:     []string{"python", "javascript", "typescript"},
		Description: "sonar-scanner CLI over the codebase root",
	},
}

// scanService implements ScanService with pure dispatch logic.
// File system access is delegated to the SolutionFinder gateway.
type scanService struct {
	finder gateways.SolutionFinder
	logger interfaces.Logger
}

// NewScanService creates a new scan service with dependency injection
func NewScanService(finder gateways.SolutionFinder, logger interfaces.Logger) services.ScanService {
	return &scanService{
		finder: finder,
		logger: interfaces.OrNoOp(logger),
	}
}

// NormalizeToolchain maps a label to its canonical toolchain (case-insensitive)
func (s *scanService) NormalizeToolchain(label string) (entities.Toolchain, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, info := range toolchainTable {
		for _, alias := range info.Aliases {
			if normalized == alias {
				return info.Toolchain, nil
			}
		}
	}
	return "", scanerr.DispatchError("dispatch.normalize", label)
}

// Toolchains lists the supported toolchains in dispatch order
func (s *scanService) Toolchains() []services.ToolchainInfo {
	out := make([]services.ToolchainInfo, len(toolchainTable))
	copy(out, toolchainTable)
	return out
}

// ResolvePlan selects the ordered command plan for a toolchain label.
// Unknown labels fail before any file system access.
func (s *scanService) ResolvePlan(
	ctx context.Context,
	label, codebaseRoot, projectKey string,
	cfg *entities.ScannerConfig,
) (*entities.ToolchainPlan, error) {
	const op = "dispatch.resolve"

	toolchain, err := s.NormalizeToolchain(label)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, scanerr.ConfigError(op, "scanner configuration is required", nil)
	}
	if err := ValidateProjectKey(projectKey); err != nil {
		return nil, err
	}
	if err := s.ValidateToken(cfg.Token); err != nil {
		return nil, err
	}

	plan := &entities.ToolchainPlan{
		Toolchain:  toolchain,
		ProjectKey: projectKey,
	}

	switch toolchain {
	case entities.ToolchainDotNetFramework, entities.ToolchainDotNetCore:
		solution, err := s.locateSolution(ctx, codebaseRoot)
		if err != nil {
			return nil, err
		}
		workDir := filepath.Dir(solution)

		var build entities.PlanStep
		if toolchain == entities.ToolchainDotNetFramework {
			build = newStep("build", cfg.MSBuildPath, workDir,
				filepath.Base(solution), "/t:Rebuild", "/p:Configuration=Release")
		} else {
			build = newStep("build", cfg.DotNetPath, workDir,
				"build", filepath.Base(solution), "--no-incremental")
		}

		plan.Steps = []entities.PlanStep{
			newStep("scanner-begin", cfg.DotNetScanner, workDir,
				"begin",
				"/k:"+projectKey,
				"/d:sonar.token="+cfg.Token,
				"/d:sonar.host.url="+cfg.HostURL,
			),
			build,
			newStep("scanner-end", cfg.DotNetScanner, workDir,
				"end",
				"/d:sonar.token="+cfg.Token,
			),
		}

	case entities.ToolchainMaven:
		plan.Steps = []entities.PlanStep{
			newStep("scan", cfg.MavenPath, codebaseRoot,
				"clean", "verify", "sonar:sonar",
				"-Dsonar.token="+cfg.Token,
				"-Dsonar.host.url="+cfg.HostURL,
				"-Dsonar.projectKey="+projectKey,
			),
		}

	case entities.ToolchainGradle:
		plan.Steps = []entities.PlanStep{
			newStep("scan", cfg.GradlePath, codebaseRoot,
				"sonar",
				"-Dsonar.token="+cfg.Token,
				"-Dsonar.host.url="+cfg.HostURL,
				"-Dsonar.projectKey="+projectKey,
			),
		}

	case entities.ToolchainGeneric:
		plan.Steps = []entities.PlanStep{
			newStep("scan", cfg.ScannerPath, codebaseRoot,
				"-Dsonar.projectKey="+projectKey,
				"-Dsonar.sources=.",
				"-Dsonar.host.url="+cfg.HostURL,
				"-Dsonar.token="+cfg.Token,
			),
		}
	}

	for i := range plan.Steps {
		plan.Steps[i].Secrets = []string{cfg.Token}
	}

	s.logger.Debug("resolved toolchain plan",
		interfaces.F("toolchain", string(toolchain)),
		interfaces.F("project_key", projectKey),
		interfaces.F("steps", len(plan.Steps)),
	)
	return plan, nil
}

// locateSolution returns the first solution descriptor below root
func (s *scanService) locateSolution(ctx context.Context, root string) (string, error) {
	if s.finder == nil {
		return "", scanerr.New(scanerr.CodeInternal, "dispatch.solution", "no solution finder configured")
	}

	solutions, err := s.finder.FindSolutions(ctx, root)
	if err != nil {
		return "", fmt.Errorf("failed to search for solution file: %w", err)
	}
	if len(solutions) == 0 {
		return "", scanerr.NotFoundError("dispatch.solution", "no solution file found in the codebase directory")
	}
	if len(solutions) > 1 {
		s.logger.Warn("multiple solution files found, using the first",
			interfaces.F("selected", solutions[0]),
			interfaces.F("candidates", strings.Join(solutions, ", ")),
		)
	}
	return solutions[0], nil
}

// newStep builds a plan step. A program configured with leading arguments
// (e.g. "dotnet sonarscanner") is split into program and arguments.
func newStep(name, program, workDir string, args ...string) entities.PlanStep {
	fields := strings.Fields(program)
	if len(fields) == 0 {
		fields = []string{program}
	}
	return entities.PlanStep{
		Name:       name,
		Program:    fields[0],
		Args:       append(fields[1:len(fields):len(fields)], args...),
		WorkingDir: workDir,
	}
}
