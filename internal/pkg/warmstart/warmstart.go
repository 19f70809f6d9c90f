/*
warmstart.go Imports the best vector of a previous run as the initial guess of a new one.
*/

package warmstart

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ohowland/firm_ce/internal/pkg/scenario"
)

// ErrEmpty is returned for a result file without rows.
var ErrEmpty = errors.New("no previous result")

// Load returns the last row of the result file at path as a vector of length dim.
func Load(path string, dim int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var last []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		last = rec
	}
	if last == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	if len(last) != dim {
		return nil, fmt.Errorf("%s: last row has %d values, want %d: %w", path, len(last), dim, scenario.ErrShape)
	}

	x := make([]float64, dim)
	for i, field := range last {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: column %d: %w", path, i, err)
		}
		x[i] = v
	}
	return x, nil
}
