package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrRunNotFound indicates a run id with no metadata on disk.
var ErrRunNotFound = errors.New("storage: run not found")

// ErrInvalidRunID indicates a run id that is not a single path element.
var ErrInvalidRunID = errors.New("storage: invalid run id")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return errors.Wrap(os.MkdirAll(s.baseDir, 0755), "creating data dir")
}

// RunMetadata describes one solve: which backend ran on which system and how
// it ended.
type RunMetadata struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Version       string        `json:"version"`
	Library       string        `json:"library"`
	Backend       string        `json:"backend"`
	Problem       string        `json:"problem"`
	N             int           `json:"n"`
	Seed          uint64        `json:"seed"`
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	FactorizeTime time.Duration `json:"factorize_ns"`
	SolveTime     time.Duration `json:"solve_ns"`
	Residual      float64       `json:"residual"`
	ResidualBound float64       `json:"residual_bound"`
}

type Run struct {
	Metadata RunMetadata
	Solution []float64
}

// Save writes metadata.json and solution.csv under a new run directory and
// returns the run id.
func (s *Store) Save(run *Run) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s_%d", idPart(run.Metadata.Library), idPart(run.Metadata.Problem), now.UnixNano())
	dir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "creating run dir")
	}

	meta := run.Metadata
	meta.ID = runID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = now
	}

	metaFile, err := os.Create(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return "", errors.Wrap(err, "creating metadata")
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", errors.Wrap(err, "writing metadata")
	}

	csvFile, err := os.Create(filepath.Join(dir, "solution.csv"))
	if err != nil {
		return "", errors.Wrap(err, "creating solution")
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"i", "x"}); err != nil {
		return "", errors.Wrap(err, "writing solution")
	}
	for i, v := range run.Solution {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(v, 'g', -1, 64)}
		if err := w.Write(row); err != nil {
			return "", errors.Wrap(err, "writing solution")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "writing solution")
	}

	return runID, nil
}

// List returns every readable run, oldest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, errors.Wrap(err, "listing runs")
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// idPart reduces a name to characters that are safe in a single path
// element.
func idPart(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, name)
}

// runDir resolves a run id to its directory. Ids are single path elements.
func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || filepath.Base(runID) != runID {
		return "", errors.Wrapf(ErrInvalidRunID, "%q", runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
		}
		return nil, errors.Wrap(err, "reading metadata")
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decoding metadata of %s", runID)
	}
	return &meta, nil
}

func (s *Store) LoadSolution(runID string) ([]float64, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(dir, "solution.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
		}
		return nil, errors.Wrap(err, "opening solution")
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading solution")
	}
	if len(records) < 2 {
		return []float64{}, nil
	}

	x := make([]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 2 {
			return nil, errors.Errorf("solution row %d has %d fields", i+1, len(record))
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "solution row %d", i+1)
		}
		x = append(x, v)
	}
	return x, nil
}
