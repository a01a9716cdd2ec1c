package gateways

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// solutionExtension identifies .NET solution descriptors
const solutionExtension = ".sln"

// SolutionFinder locates .NET solution files in an extracted codebase
type SolutionFinder struct{}

// NewSolutionFinder creates a new solution finder
func NewSolutionFinder() *SolutionFinder {
	return &SolutionFinder{}
}

// FindSolutions searches root recursively and returns every .sln file in
// lexical walk order. Symlinked directories are not followed.
func (f *SolutionFinder) FindSolutions(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, scanerr.NotFoundError("solution.find", "codebase directory does not exist: "+root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat codebase directory: %w", err)
	}
	if !info.IsDir() {
		return nil, scanerr.ValidationError("solution.find", "codebase path is not a directory: "+root)
	}

	var solutions []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(d.Name()), solutionExtension) {
			solutions = append(solutions, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk codebase: %w", err)
	}

	return solutions, nil
}
