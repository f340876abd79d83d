package model

import (
	"errors"
	"fmt"
)

const leaf = -1

var errMalformedTree = errors.New("malformed tree")

// Tree is a single regression tree in flat array form: node i splits on Feature[i] at
// Threshold[i], going to ChildrenLeft[i] when x <= threshold and ChildrenRight[i] otherwise.
// Leaves have ChildrenLeft[i] == -1 and predict Value[i].
type Tree struct {
	Feature       []int     `mapstructure:"feature"`
	Threshold     []float64 `mapstructure:"threshold"`
	ChildrenLeft  []int     `mapstructure:"children_left"`
	ChildrenRight []int     `mapstructure:"children_right"`
	Value         []float64 `mapstructure:"value"`
}

// Forest averages the output of its trees.
type Forest struct {
	NFeatures int    `mapstructure:"n_features"`
	Trees     []Tree `mapstructure:"trees"`
}

func (f *Forest) Predict(vector []float64) (float64, error) {
	if len(vector) != f.NFeatures {
		return 0, fmt.Errorf("%w: forest wants %d features, got %d", ErrShapeMismatch, f.NFeatures, len(vector))
	}
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("%w: forest has no trees", errMalformedTree)
	}

	var sum float64
	for i := range f.Trees {
		y, err := f.Trees[i].predict(vector)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += y
	}
	return sum / float64(len(f.Trees)), nil
}

func (t *Tree) predict(vector []float64) (float64, error) {
	node := 0
	// A well-formed tree reaches a leaf in fewer hops than it has nodes.
	for hops := 0; hops <= len(t.Value); hops++ {
		if t.ChildrenLeft[node] == leaf {
			return t.Value[node], nil
		}
		if vector[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return 0, fmt.Errorf("%w: cycle detected", errMalformedTree)
}

func (f *Forest) validate(width int) error {
	if f.NFeatures == 0 {
		f.NFeatures = width
	}
	if f.NFeatures != width {
		return fmt.Errorf("%w: forest trained on %d features, artifact lists %d", ErrShapeMismatch, f.NFeatures, width)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", errMalformedTree)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(width int) error {
	n := len(t.Value)
	if n == 0 || len(t.Feature) != n || len(t.Threshold) != n || len(t.ChildrenLeft) != n || len(t.ChildrenRight) != n {
		return fmt.Errorf("%w: node arrays disagree in length", errMalformedTree)
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] == leaf {
			continue
		}
		if t.Feature[i] < 0 || t.Feature[i] >= width {
			return fmt.Errorf("%w: node %d splits on feature %d of %d", errMalformedTree, i, t.Feature[i], width)
		}
		if t.ChildrenLeft[i] < 0 || t.ChildrenLeft[i] >= n || t.ChildrenRight[i] < 0 || t.ChildrenRight[i] >= n {
			return fmt.Errorf("%w: node %d has out-of-range children", errMalformedTree, i)
		}
	}
	return nil
}
