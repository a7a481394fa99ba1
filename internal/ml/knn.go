package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// KNN classifies by plurality over the k nearest stored prototypes (Euclidean distance).
// Ties in the vote go to the label of the nearer prototype.
type KNN struct {
	k      int
	points [][]float64
	labels []int
	width  int
}

func NewKNN(width, k int, points [][]float64, labels []int) (*KNN, error) {
	if len(points) == 0 {
		return nil, errors.New("knn has no prototypes")
	}
	if len(labels) != len(points) {
		return nil, fmt.Errorf("knn has %d labels for %d prototypes", len(labels), len(points))
	}
	if k <= 0 || k > len(points) {
		return nil, fmt.Errorf("knn k=%d out of range [1, %d]", k, len(points))
	}
	for i, p := range points {
		if len(p) != width {
			return nil, fmt.Errorf("prototype %d has %d values, want %d", i, len(p), width)
		}
		if !allFinite(p) {
			return nil, fmt.Errorf("prototype %d contains non-finite values", i)
		}
	}
	return &KNN{k: k, points: points, labels: labels, width: width}, nil
}

func (m *KNN) NumFeatures() int { return m.width }

func (m *KNN) Predict(x []float64) (int, error) {
	if err := checkWidth(m.width, x); err != nil {
		return 0, err
	}

	type neighbour struct {
		idx  int
		dist float64
	}
	ns := make([]neighbour, len(m.points))
	for i, p := range m.points {
		ns[i] = neighbour{idx: i, dist: floats.Distance(p, x, 2)}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })

	nearest := make([]int, m.k)
	for i := 0; i < m.k; i++ {
		nearest[i] = m.labels[ns[i].idx]
	}
	label, _ := plurality(nearest)
	return label, nil
}
