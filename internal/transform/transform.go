// Package transform cleans a loaded frame and turns it into a numeric design
// matrix with a binary target.
package transform

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/animus-labs/animus-audit/internal/ingest"
)

const DefaultTargetColumn = "deposit"

// BasicClean drops rows with missing cells and then exact duplicate rows,
// keeping the first occurrence.
func BasicClean(f *ingest.Frame) (*ingest.Frame, error) {
	seen := make(map[string]struct{}, f.Len())
	rows := make([][]string, 0, f.Len())
	for _, row := range f.Rows {
		if hasMissing(row) {
			continue
		}
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	return ingest.NewFrame(append([]string(nil), f.Columns...), rows)
}

func hasMissing(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) == "" {
			return true
		}
	}
	return false
}

// BinaryTarget maps the target column to 1 where it equals positive
// (case-insensitive) and 0 otherwise.
func BinaryTarget(f *ingest.Frame, column, positive string) ([]float64, error) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("expected target column %q in dataset", column)
	}
	y := make([]float64, f.Len())
	for i, row := range f.Rows {
		if strings.EqualFold(strings.TrimSpace(row[idx]), positive) {
			y[i] = 1
		}
	}
	return y, nil
}

// Features is the design matrix produced from a frame.
type Features struct {
	Names []string
	X     *mat.Dense
	Y     []float64
}

// PrepareFeatures keeps numeric and bool columns as-is and one-hot encodes
// object columns (categories sorted). The target column is excluded.
func PrepareFeatures(f *ingest.Frame, target, positive string) (Features, error) {
	y, err := BinaryTarget(f, target, positive)
	if err != nil {
		return Features{}, err
	}
	if f.Len() == 0 {
		return Features{}, errors.New("no rows to prepare")
	}

	type encoder struct {
		col        int
		dtype      string
		categories []string
	}
	dtypes := f.DTypes()
	var numeric, categorical []encoder
	for i, name := range f.Columns {
		if name == target {
			continue
		}
		switch dtypes[name] {
		case ingest.DTypeObject:
			categorical = append(categorical, encoder{col: i, dtype: ingest.DTypeObject, categories: categories(f.Column(i))})
		default:
			numeric = append(numeric, encoder{col: i, dtype: dtypes[name]})
		}
	}

	var names []string
	for _, e := range numeric {
		names = append(names, f.Columns[e.col])
	}
	for _, e := range categorical {
		for _, c := range e.categories {
			names = append(names, f.Columns[e.col]+"_"+c)
		}
	}
	if len(names) == 0 {
		return Features{}, errors.New("no feature columns")
	}

	x := mat.NewDense(f.Len(), len(names), nil)
	for r, row := range f.Rows {
		j := 0
		for _, e := range numeric {
			v, err := ingest.ParseNumeric(e.dtype, row[e.col])
			if err != nil {
				return Features{}, fmt.Errorf("row %d column %s: %w", r+1, f.Columns[e.col], err)
			}
			x.Set(r, j, v)
			j++
		}
		for _, e := range categorical {
			cell := strings.TrimSpace(row[e.col])
			for _, c := range e.categories {
				if cell == c {
					x.Set(r, j, 1)
				}
				j++
			}
		}
	}
	return Features{Names: names, X: x, Y: y}, nil
}

func categories(values []string) []string {
	set := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest []float64
}

// TrainTestSplit shuffles rows with seed and holds out ceil(n*testFraction) rows.
func TrainTestSplit(x *mat.Dense, y []float64, testFraction float64, seed int64) (Split, error) {
	n, p := x.Dims()
	if n != len(y) {
		return Split{}, fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if testFraction <= 0 || testFraction >= 1 {
		return Split{}, fmt.Errorf("test fraction must be in (0,1), got %v", testFraction)
	}
	nTest := int(float64(n)*testFraction + 0.999999)
	if nTest < 1 || nTest >= n {
		return Split{}, fmt.Errorf("cannot split %d rows with test fraction %v", n, testFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	take := func(idx []int) (*mat.Dense, []float64) {
		xs := mat.NewDense(len(idx), p, nil)
		ys := make([]float64, len(idx))
		for i, src := range idx {
			xs.SetRow(i, x.RawRowView(src))
			ys[i] = y[src]
		}
		return xs, ys
	}
	xTest, yTest := take(perm[:nTest])
	xTrain, yTrain := take(perm[nTest:])
	return Split{XTrain: xTrain, XTest: xTest, YTrain: yTrain, YTest: yTest}, nil
}
