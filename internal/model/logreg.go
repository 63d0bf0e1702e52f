// Package model trains and persists the binary classifier.
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const Algorithm = "LogisticRegression"

type Params struct {
	MaxIter      int     `json:"max_iter"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
	Tolerance    float64 `json:"tol"`
}

func DefaultParams() Params {
	return Params{MaxIter: 1000, LearningRate: 0.1, L2: 1e-4, Tolerance: 1e-6}
}

func (p Params) Validate() error {
	if p.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", p.MaxIter)
	}
	if p.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", p.LearningRate)
	}
	if p.L2 < 0 {
		return fmt.Errorf("l2 must not be negative, got %v", p.L2)
	}
	if p.Tolerance < 0 {
		return fmt.Errorf("tol must not be negative, got %v", p.Tolerance)
	}
	return nil
}

// Hyperparameters is the map recorded in the run metadata.
func (p Params) Hyperparameters() map[string]any {
	return map[string]any{
		"max_iter":      p.MaxIter,
		"learning_rate": p.LearningRate,
		"l2":            p.L2,
		"tol":           p.Tolerance,
	}
}

// LogisticRegression is a standardised linear model fitted by batch gradient descent.
type LogisticRegression struct {
	Features  []string  `json:"features"`
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Params    Params    `json:"params"`
	Iters     int       `json:"iterations"`
}

func Train(x *mat.Dense, y []float64, features []string, params Params) (*LogisticRegression, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, errors.New("empty training matrix")
	}
	if len(y) != n {
		return nil, fmt.Errorf("x has %d rows, y has %d", n, len(y))
	}
	if features != nil && len(features) != p {
		return nil, fmt.Errorf("got %d feature names for %d columns", len(features), p)
	}

	m := &LogisticRegression{
		Features: append([]string(nil), features...),
		Means:    make([]float64, p),
		Scales:   make([]float64, p),
		Weights:  make([]float64, p),
		Params:   params,
	}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.Means[j], m.Scales[j] = mean, std
	}

	xs := m.standardise(x)
	w := mat.NewVecDense(p, m.Weights)
	residual := make([]float64, n)
	grad := mat.NewVecDense(p, nil)
	var z mat.VecDense

	for iter := 1; iter <= params.MaxIter; iter++ {
		m.Iters = iter
		z.MulVec(xs, w)
		for i := 0; i < n; i++ {
			residual[i] = sigmoid(z.AtVec(i)+m.Intercept) - y[i]
		}
		grad.MulVec(xs.T(), mat.NewVecDense(n, residual))
		grad.ScaleVec(1/float64(n), grad)
		grad.AddScaledVec(grad, params.L2, w)
		gradB := floats.Sum(residual) / float64(n)

		w.AddScaledVec(w, -params.LearningRate, grad)
		m.Intercept -= params.LearningRate * gradB

		if math.Max(mat.Norm(grad, math.Inf(1)), math.Abs(gradB)) < params.Tolerance {
			break
		}
	}
	return m, nil
}

func (m *LogisticRegression) standardise(x mat.Matrix) *mat.Dense {
	var xs mat.Dense
	xs.Apply(func(_, j int, v float64) float64 {
		return (v - m.Means[j]) / m.Scales[j]
	}, x)
	return &xs
}

func (m *LogisticRegression) PredictProba(x mat.Matrix) ([]float64, error) {
	n, p := x.Dims()
	if p != len(m.Weights) {
		return nil, fmt.Errorf("model expects %d features, got %d", len(m.Weights), p)
	}
	var z mat.VecDense
	z.MulVec(m.standardise(x), mat.NewVecDense(p, m.Weights))
	out := make([]float64, n)
	for i := range out {
		out[i] = sigmoid(z.AtVec(i) + m.Intercept)
	}
	return out, nil
}

func (m *LogisticRegression) Predict(x mat.Matrix) ([]float64, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}
	for i, v := range proba {
		if v >= 0.5 {
			proba[i] = 1
		} else {
			proba[i] = 0
		}
	}
	return proba, nil
}

func Accuracy(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, errors.New("no samples")
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
