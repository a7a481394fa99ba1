package ml

import (
	"errors"
	"fmt"
	"math"
)

// GaussianNB picks the class with the highest Gaussian log-likelihood plus log prior.
type GaussianNB struct {
	classes  []int
	logPrior []float64
	means    [][]float64
	vars     [][]float64
	width    int
}

func NewGaussianNB(width int, classes []int, priors []float64, means, vars [][]float64) (*GaussianNB, error) {
	n := len(classes)
	if n == 0 {
		return nil, errors.New("naive bayes has no classes")
	}
	if len(priors) != n || len(means) != n || len(vars) != n {
		return nil, fmt.Errorf("naive bayes parameter count mismatch: %d classes, %d priors, %d means, %d vars",
			n, len(priors), len(means), len(vars))
	}

	nb := &GaussianNB{classes: classes, means: means, vars: vars, width: width, logPrior: make([]float64, n)}
	for c := 0; c < n; c++ {
		if priors[c] <= 0 || priors[c] > 1 {
			return nil, fmt.Errorf("class %d prior %v out of range (0, 1]", classes[c], priors[c])
		}
		nb.logPrior[c] = math.Log(priors[c])
		if len(means[c]) != width || len(vars[c]) != width {
			return nil, fmt.Errorf("class %d has %d means and %d variances, want %d", classes[c], len(means[c]), len(vars[c]), width)
		}
		if !allFinite(means[c]) {
			return nil, fmt.Errorf("class %d means contain non-finite values", classes[c])
		}
		for j, v := range vars[c] {
			if !(v > 0) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("class %d variance[%d] must be positive, got %v", classes[c], j, v)
			}
		}
	}
	return nb, nil
}

func (m *GaussianNB) NumFeatures() int { return m.width }

func (m *GaussianNB) Predict(x []float64) (int, error) {
	if err := checkWidth(m.width, x); err != nil {
		return 0, err
	}
	best, bestScore := 0, math.Inf(-1)
	for c := range m.classes {
		score := m.logPrior[c]
		for j, xj := range x {
			d := xj - m.means[c][j]
			score -= 0.5 * (math.Log(2*math.Pi*m.vars[c][j]) + d*d/m.vars[c][j])
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return m.classes[best], nil
}
