package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// LinearModel scores each class as coef·x + intercept and returns the best class.
// It covers logistic regression and linear SVMs. With a single coefficient row and two
// classes it behaves like a binary decision function: positive picks Classes[1].
type LinearModel struct {
	coef      [][]float64
	intercept []float64
	classes   []int
	width     int
}

func NewLinearModel(width int, coef [][]float64, intercept []float64, classes []int) (*LinearModel, error) {
	if len(coef) == 0 {
		return nil, errors.New("linear model has no coefficients")
	}
	if len(intercept) != len(coef) {
		return nil, fmt.Errorf("linear model has %d intercepts for %d coefficient rows", len(intercept), len(coef))
	}
	binary := len(coef) == 1 && len(classes) == 2
	if !binary && len(classes) != len(coef) {
		return nil, fmt.Errorf("linear model has %d classes for %d coefficient rows", len(classes), len(coef))
	}
	for i, row := range coef {
		if len(row) != width {
			return nil, fmt.Errorf("coefficient row %d has %d values, want %d", i, len(row), width)
		}
		if !allFinite(row) {
			return nil, fmt.Errorf("coefficient row %d contains non-finite values", i)
		}
	}
	if !allFinite(intercept) {
		return nil, errors.New("intercept contains non-finite values")
	}
	return &LinearModel{coef: coef, intercept: intercept, classes: classes, width: width}, nil
}

func (m *LinearModel) NumFeatures() int { return m.width }

func (m *LinearModel) Predict(x []float64) (int, error) {
	if err := checkWidth(m.width, x); err != nil {
		return 0, err
	}
	if len(m.coef) == 1 && len(m.classes) == 2 {
		if floats.Dot(m.coef[0], x)+m.intercept[0] > 0 {
			return m.classes[1], nil
		}
		return m.classes[0], nil
	}

	best := 0
	bestScore := floats.Dot(m.coef[0], x) + m.intercept[0]
	for c := 1; c < len(m.coef); c++ {
		score := floats.Dot(m.coef[c], x) + m.intercept[c]
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return m.classes[best], nil
}
