package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ExportData is the single-document form of a stored run.
type ExportData struct {
	RunMetadata
	Solution []float64 `json:"solution"`
}

// Export writes the run's metadata and solution as one indented JSON
// document. Non-finite solution entries are rejected by encoding/json.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	x, err := s.LoadSolution(runID)
	if err != nil {
		return err
	}
	if x == nil {
		x = []float64{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ExportData{RunMetadata: *meta, Solution: x}); err != nil {
		return errors.Wrapf(err, "export %s", runID)
	}
	return nil
}

// ExportFile is Export to a newly created file.
func (s *Store) ExportFile(path, runID string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create export file")
	}
	defer file.Close()

	return s.Export(file, runID)
}
