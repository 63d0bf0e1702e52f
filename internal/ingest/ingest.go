// Package ingest loads tabular CSV datasets and describes them for the run record.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/fingerprint"
)

var ErrDatasetNotFound = errors.New("dataset not found")

const (
	DTypeInt64   = "int64"
	DTypeFloat64 = "float64"
	DTypeBool    = "bool"
	DTypeObject  = "object"
)

// Frame is an in-memory table of raw cells. Empty cells are missing values.
type Frame struct {
	Columns []string
	Rows    [][]string
	dtypes  map[string]string
}

func NewFrame(columns []string, rows [][]string) (*Frame, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i+1, len(row), len(columns))
		}
	}
	return &Frame{Columns: columns, Rows: rows}, nil
}

func (f *Frame) Len() int { return len(f.Rows) }

func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of one column.
func (f *Frame) Column(i int) []string {
	out := make([]string, len(f.Rows))
	for r, row := range f.Rows {
		out[r] = row[i]
	}
	return out
}

// DTypes infers a type name per column, cached after the first call.
func (f *Frame) DTypes() map[string]string {
	if f.dtypes != nil {
		return f.dtypes
	}
	types := make(map[string]string, len(f.Columns))
	for i, name := range f.Columns {
		types[name] = InferDType(f.Column(i))
	}
	f.dtypes = types
	return types
}

// InferDType follows pandas' defaults: integers with missing cells widen to float64.
func InferDType(values []string) string {
	allInt, allFloat, allBool := true, true, true
	missing, present := false, 0
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			missing = true
			continue
		}
		present++
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
	}
	switch {
	case present == 0:
		return DTypeFloat64
	case allInt && !missing:
		return DTypeInt64
	case allFloat:
		return DTypeFloat64
	case allBool && !missing:
		return DTypeBool
	default:
		return DTypeObject
	}
}

func parseBool(v string) (bool, bool) {
	switch v {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}

// ParseNumeric converts a numeric or bool cell to float64.
func ParseNumeric(dtype, raw string) (float64, error) {
	v := strings.TrimSpace(raw)
	if dtype == DTypeBool {
		b, ok := parseBool(v)
		if !ok {
			return 0, fmt.Errorf("invalid bool %q", raw)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func Load(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	frame, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return frame, nil
}

func Read(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty dataset")
		}
		return nil, fmt.Errorf("header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return NewFrame(columns, rows)
}

// Describe fingerprints the dataset file and summarizes the loaded frame.
func Describe(path string, frame *Frame) (domain.DatasetInfo, error) {
	digest, err := fingerprint.File(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DatasetInfo{}, fmt.Errorf("%s: %w", path, ErrDatasetNotFound)
		}
		return domain.DatasetInfo{}, err
	}
	return domain.DatasetInfo{
		DatasetPath:   path,
		DatasetSHA256: digest.SHA256,
		FileSizeBytes: domain.Some(digest.SizeBytes),
		Rows:          frame.Len(),
		Columns:       append([]string(nil), frame.Columns...),
		Schema:        frame.DTypes(),
	}, nil
}
