package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	Filter string // glob over scenario file names, without extension
	Update bool   // regenerate golden files instead of comparing

	// Run options applied to every scenario.
	RunOptions []Option
}

// ScenarioResult holds the result of a single scenario file.
type ScenarioResult struct {
	Name          string   `json:"name"`
	File          string   `json:"file"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// SuiteResult holds the overall result of a scenario directory.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// RunSuite runs every scenario file under dir.
//
// A scenario with a golden file at <dir>/golden/<file>.golden must also
// match its trace snapshot byte for byte. Scenarios without one are judged
// by their expect clause and assertions only.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarioFiles(dir, opts.Filter)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := RunScenarioFile(file, opts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

// FindScenarioFiles finds all YAML scenario files in a directory, sorted by
// path. Golden directories are skipped.
func FindScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// RunScenarioFile loads and runs one scenario file.
func RunScenarioFile(file string, opts SuiteOptions) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(scenario, opts.RunOptions...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("snapshot failed: %v", err)}
		return sr
	}

	goldenPath := GoldenPath(file)
	if opts.Update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			sr.Errors = []string{fmt.Sprintf("failed to update golden file: %v", err)}
			return sr
		}
		sr.GoldenUpdated = true
	} else {
		golden, err := os.ReadFile(goldenPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Assertion-based validation only
		case err != nil:
			sr.Errors = []string{fmt.Sprintf("golden comparison failed: %v", err)}
			return sr
		case !bytes.Equal(golden, snapshot):
			result.AddError("trace does not match golden file")
		}
	}

	sr.Pass = result.Pass
	sr.Errors = result.Errors
	return sr
}

// GoldenPath returns the golden file of a scenario file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
