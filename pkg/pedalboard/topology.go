package pedalboard

import "github.com/basswood-audio/pedalengine/pkg/effect"

// Node is one node of the two topologies §3 allows: Linear chains and
// two-way Split branches, nestable to arbitrary depth.
type Node interface {
	maxDepth() int
}

// EffectNode wraps a single loaded effect instance as a leaf node.
type EffectNode struct {
	Instance *effect.Instance
}

func (n *EffectNode) maxDepth() int { return 0 }

// LinearNode is an ordered chain; output[i] feeds input[i+1] with a
// bus.Rule resolved at each edge for channel-count mismatches.
type LinearNode struct {
	Children []Node
}

func (n *LinearNode) maxDepth() int {
	max := 0
	for _, c := range n.Children {
		if d := c.maxDepth(); d > max {
			max = d
		}
	}
	return max
}

// SplitNode feeds its input to both legs A and B and mixes their
// outputs with mix_ratio (0 = all A, 1 = all B) and per-leg pan gains.
type SplitNode struct {
	A, B             Node
	MixRatio         float64
	PanA, PanB       float64
}

func (n *SplitNode) maxDepth() int {
	da, db := n.A.maxDepth(), n.B.maxDepth()
	d := da
	if db > d {
		d = db
	}
	return d + 1
}

// MaxSplitDepth returns the arena sizing input from §4.F's plan
// construction step 1.
func MaxSplitDepth(root Node) int {
	if root == nil {
		return 0
	}
	return root.maxDepth()
}

// Walk visits every EffectNode in the tree in left-to-right order,
// matching the order the process plan invokes them in. Used by the
// swap protocol to find instances transferable across a reload.
func Walk(root Node, fn func(*effect.Instance)) {
	switch n := root.(type) {
	case nil:
		return
	case *EffectNode:
		fn(n.Instance)
	case *LinearNode:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *SplitNode:
		Walk(n.A, fn)
		Walk(n.B, fn)
	}
}
