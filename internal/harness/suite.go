package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios expands path into scenario files. A file is returned as is;
// a directory yields its .yaml and .yml files, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`

	// Results holds the result of every scenario that executed, keyed by
	// scenario file path.
	Results map[string]*Result `json:"-"`
}

// ScenarioFailure represents a failed scenario.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Scenario     string `json:"scenario,omitempty"`
	Error        string `json:"error"`
}

// RunAll loads and runs the scenarios at paths with at most parallel
// scenarios in flight (no limit when parallel <= 0). Scenarios share
// nothing, so they run independently; failures are collected, not
// returned. Failures are reported in path order.
func RunAll(ctx context.Context, paths []string, parallel int, opts ...Option) (*SuiteResult, error) {
	result := &SuiteResult{
		Total:   len(paths),
		Results: make(map[string]*Result, len(paths)),
	}

	var mu sync.Mutex
	fail := func(path, name, msg string) {
		mu.Lock()
		defer mu.Unlock()
		result.Failed++
		result.Failures = append(result.Failures, ScenarioFailure{
			ScenarioPath: path,
			Scenario:     name,
			Error:        msg,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for _, path := range paths {
		g.Go(func() error {
			scenario, err := LoadScenario(path)
			if err != nil {
				fail(path, "", fmt.Sprintf("failed to load scenario: %v", err))
				return nil
			}

			res, err := Run(gctx, scenario, opts...)
			if err != nil {
				fail(path, scenario.Name, fmt.Sprintf("scenario execution failed: %v", err))
				return nil
			}

			mu.Lock()
			result.Results[path] = res
			mu.Unlock()

			if !res.Pass {
				fail(path, scenario.Name, strings.Join(res.Errors, "; "))
				return nil
			}

			mu.Lock()
			result.Passed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(result.Failures, func(a, b ScenarioFailure) int {
		return strings.Compare(a.ScenarioPath, b.ScenarioPath)
	})
	return result, nil
}
