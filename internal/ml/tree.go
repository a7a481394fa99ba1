package ml

import (
	"errors"
	"fmt"
)

// TreeNode is one node of a persisted decision tree. Children always come after their parent.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

// DecisionTree walks x[feature] <= threshold to the left, otherwise right, until a leaf.
type DecisionTree struct {
	nodes []TreeNode
	width int
}

// NewDecisionTree validates nodes against width. Node 0 is the root.
func NewDecisionTree(width int, nodes []TreeNode) (*DecisionTree, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid feature width %d", width)
	}
	if len(nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	for i, n := range nodes {
		if n.IsLeaf {
			continue
		}
		if n.FeatureIdx < 0 || n.FeatureIdx >= width {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, n.FeatureIdx)
		}
		for _, child := range []int{n.LeftChild, n.RightChild} {
			if child <= i || child >= len(nodes) {
				return nil, fmt.Errorf("node %d: invalid child %d", i, child)
			}
		}
	}
	return &DecisionTree{nodes: append([]TreeNode(nil), nodes...), width: width}, nil
}

func (dt *DecisionTree) NumFeatures() int { return dt.width }

func (dt *DecisionTree) Predict(x []float64) (int, error) {
	if err := checkWidth(dt.width, x); err != nil {
		return 0, err
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if x[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// RandomForest takes a plurality vote over its trees. Ties go to the earliest tree's label.
type RandomForest struct {
	trees []*DecisionTree
	width int
}

func NewRandomForest(width int, trees [][]TreeNode) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	rf := &RandomForest{width: width, trees: make([]*DecisionTree, 0, len(trees))}
	for i, nodes := range trees {
		dt, err := NewDecisionTree(width, nodes)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		rf.trees = append(rf.trees, dt)
	}
	return rf, nil
}

func (rf *RandomForest) NumFeatures() int { return rf.width }

func (rf *RandomForest) Predict(x []float64) (int, error) {
	if err := checkWidth(rf.width, x); err != nil {
		return 0, err
	}
	labels := make([]int, len(rf.trees))
	for i, dt := range rf.trees {
		label, err := dt.Predict(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		labels[i] = label
	}
	label, _ := plurality(labels)
	return label, nil
}
