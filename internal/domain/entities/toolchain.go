package entities

import "strings"

// Toolchain is the canonical identifier of a supported build toolchain
type Toolchain string

// Supported toolchains
const (
	ToolchainDotNetFramework Toolchain = "dotnet-framework"
	ToolchainDotNetCore      Toolchain = "dotnet-core"
	ToolchainMaven           Toolchain = "maven"
	ToolchainGradle          Toolchain = "gradle"
	ToolchainGeneric         Toolchain = "generic"
)

// NeedsSolution reports whether the toolchain builds from a .sln descriptor
func (t Toolchain) NeedsSolution() bool {
	return t == ToolchainDotNetFramework || t == ToolchainDotNetCore
}

// PlanStep is a single external program invocation
type PlanStep struct {
	Name       string // "scanner-begin", "build", "scanner-end", "scan"
	Program    string
	Args       []string
	WorkingDir string
	Secrets    []string // values masked wherever the step is rendered
}

// CommandLine renders the step for display, replacing every occurrence of
// the step's own secrets and the given extra secrets with a mask.
func (s PlanStep) CommandLine(secrets ...string) string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, s.Program)
	for _, arg := range s.Args {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		parts = append(parts, arg)
	}
	return s.Mask(MaskSecrets(strings.Join(parts, " "), secrets...))
}

// Mask replaces the step's secrets in text
func (s PlanStep) Mask(text string) string {
	return MaskSecrets(text, s.Secrets...)
}

// ToolchainPlan is the ordered list of invocations for one scan
type ToolchainPlan struct {
	Toolchain  Toolchain
	ProjectKey string
	Steps      []PlanStep
}

// SecretMask replaces secrets in rendered command lines and log output
const SecretMask = "****"

// MaskSecrets replaces every non-empty secret in text with SecretMask
func MaskSecrets(text string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, secret, SecretMask)
	}
	return text
}
