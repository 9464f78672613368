package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// IndexFile is the report file name inside the output directory.
const IndexFile = "report.json"

// Write writes report.json into outputDir.
func Write(outputDir string, index *Index) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(outputDir, IndexFile), index); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadReport reads report.json from a report directory.
func ReadReport(reportDir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(reportDir, IndexFile)) //#nosec G304 -- report dir chosen by the user
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &index, nil
}

// atomicWriteJSON writes v to a temp file in the target directory and
// renames it over path, so readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
