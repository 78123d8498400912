package problem

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileFormat stores the full matrix by rows so the file reads like the
// mathematics.
type fileFormat struct {
	Name string      `yaml:"name,omitempty"`
	LHS  [][]float64 `yaml:"lhs"`
	RHS  []float64   `yaml:"rhs"`
}

func Load(path string) (*System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading problem file")
	}
	s, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "problem file %s", path)
	}
	return s, nil
}

// Decode parses a YAML system. Rows must all have length len(rhs).
func Decode(data []byte) (*System, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding yaml")
	}

	n := len(f.RHS)
	if len(f.LHS) != n {
		return nil, errors.Wrapf(ErrShape, "%d rows for %d unknowns", len(f.LHS), n)
	}
	s := New(f.Name, n)
	copy(s.RHS, f.RHS)
	for i, row := range f.LHS {
		if len(row) != n {
			return nil, errors.Wrapf(ErrShape, "row %d has %d entries, want %d", i, len(row), n)
		}
		for j, v := range row {
			s.Set(i, j, v)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) Encode() ([]byte, error) {
	f := fileFormat{
		Name: s.Name,
		LHS:  make([][]float64, s.N),
		RHS:  s.RHS,
	}
	for i := range f.LHS {
		f.LHS[i] = make([]float64, s.N)
		for j := range f.LHS[i] {
			f.LHS[i][j] = s.At(i, j)
		}
	}
	return yaml.Marshal(f)
}

func Save(path string, s *System) error {
	data, err := s.Encode()
	if err != nil {
		return errors.Wrap(err, "encoding problem")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "writing problem file")
}
