package inference

import (
	"context"
	"fmt"
	"math"
)

// leafMarker marks a node without children, as in sklearn's tree_ arrays.
const leafMarker = -1

// tree is one fitted decision tree in the flat array layout sklearn exports.
type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

func (t *tree) validate(nFeatures, width int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leafMarker || r == leafMarker {
			if l != r {
				return fmt.Errorf("node %d has a single child", i)
			}
			if len(t.Value[i]) != width {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(t.Value[i]), width)
			}
			continue
		}
		// children always come after their parent; this also rules out cycles
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has children out of range (%d, %d)", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, model has %d", i, f, nFeatures)
		}
	}
	return nil
}

// leaf walks x down to its leaf and returns the leaf values.
// Splits compare in float32, the precision the trees were fitted with.
func (t *tree) leaf(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leafMarker {
		if float64(float32(x[t.Feature[node]])) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

func checkShape(x []float64, nFeatures int) error {
	if len(x) != nFeatures {
		return fmt.Errorf("X has %d features, but the model is expecting %d features as input", len(x), nFeatures)
	}
	return nil
}

// ForestClassifier averages the per-tree class distributions and picks the most probable class.
type ForestClassifier struct {
	name        string
	nFeatures   int
	classes     []int
	importances []float64
	trees       []tree
}

func (c *ForestClassifier) Classify(ctx context.Context, x []float64) (int, error) {
	proba, err := c.PredictProba(ctx, x)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return c.classes[best], nil
}

// PredictProba returns the mean class distribution, ordered like Classes.
func (c *ForestClassifier) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkShape(x, c.nFeatures); err != nil {
		return nil, err
	}
	proba := make([]float64, len(c.classes))
	for i := range c.trees {
		v := c.trees[i].leaf(x)
		var sum float64
		for _, w := range v {
			sum += w
		}
		if sum <= 0 {
			continue
		}
		for k, w := range v {
			proba[k] += w / sum
		}
	}
	for k := range proba {
		proba[k] /= float64(len(c.trees))
	}
	return proba, nil
}

func (c *ForestClassifier) Classes() []int { return append([]int(nil), c.classes...) }

// FeatureImportances returns a copy, nil when the artifact carries none.
func (c *ForestClassifier) FeatureImportances() []float64 {
	if len(c.importances) == 0 {
		return nil
	}
	return append([]float64(nil), c.importances...)
}

func (c *ForestClassifier) Describe() string { return c.name }

// ForestRegressor returns the mean of the leaf values across trees.
type ForestRegressor struct {
	name      string
	nFeatures int
	trees     []tree
}

func (r *ForestRegressor) Regress(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkShape(x, r.nFeatures); err != nil {
		return 0, err
	}
	var sum float64
	for i := range r.trees {
		sum += r.trees[i].leaf(x)[0]
	}
	out := sum / float64(len(r.trees))
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("regressor produced a non-finite value")
	}
	return out, nil
}

func (r *ForestRegressor) Describe() string { return r.name }
