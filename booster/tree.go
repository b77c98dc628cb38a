package booster

import (
	"github.com/crispml/drover/internal/pkg/drocluster"
)

// TreeNode is one node of a regression tree. Rows route left when their
// bin ordinal (or raw value) is <= the node's split point.
type TreeNode struct {
	Feature   int
	SplitBin  uint8
	Threshold float32
	Left      int
	Right     int
	IsLeaf    bool
	Weight    float64
}

// Tree is a single regression tree in flattened form. Node 0 is the root.
type Tree struct {
	Nodes []TreeNode
}

// PredictBinned routes a matrix row through the tree.
func (t *Tree) PredictBinned(m *QuantileDMatrix, row int) float64 {
	i := 0
	for !t.Nodes[i].IsLeaf {
		node := t.Nodes[i]
		if m.binned[node.Feature][row] <= node.SplitBin {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return t.Nodes[i].Weight
}

// Predict routes a raw feature vector through the tree.
func (t *Tree) Predict(features []float32) float64 {
	i := 0
	for !t.Nodes[i].IsLeaf {
		node := t.Nodes[i]
		if features[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return t.Nodes[i].Weight
}

// gradPair accumulates first and second order gradient sums.
type gradPair struct {
	g float64
	h float64
}

// nodeStats tracks the gradient totals of a growing tree node.
type nodeStats struct {
	gradPair
}

// splitCandidate is the best split found for one node on one feature.
type splitCandidate struct {
	gain    float64
	feature int
	bin     uint8
	left    gradPair
	right   gradPair
}

// growTree grows one regression tree level by level over the sampled
// rows. At each level a histogram of gradient sums is accumulated per
// feature as a cluster task; splits are then chosen from the histograms.
func growTree(client *drocluster.Client, m *QuantileDMatrix, grad, hess []float64, rows []int32, p Params) *Tree {
	tree := &Tree{}

	var root nodeStats
	for _, r := range rows {
		root.g += grad[r]
		root.h += hess[r]
	}
	tree.Nodes = append(tree.Nodes, TreeNode{IsLeaf: true})
	stats := []nodeStats{root}

	// assign[i] is the node the i-th sampled row currently sits in
	assign := make([]int32, len(rows))
	frontier := []int{0}

	for depth := 0; depth < p.MaxDepth && len(frontier) > 0; depth++ {
		hists := buildHistograms(client, m, grad, hess, rows, assign, frontier)

		type pendingSplit struct {
			node int
			best splitCandidate
		}
		splits := make([]pendingSplit, 0, len(frontier))
		for slot, node := range frontier {
			best := bestSplit(m, hists, slot, stats[node], p)
			if best.gain > 0 {
				splits = append(splits, pendingSplit{node: node, best: best})
			}
		}
		if len(splits) == 0 {
			break
		}

		nextFrontier := make([]int, 0, 2*len(splits))
		for _, s := range splits {
			left := len(tree.Nodes)
			right := left + 1
			tree.Nodes = append(tree.Nodes,
				TreeNode{IsLeaf: true},
				TreeNode{IsLeaf: true})
			stats = append(stats,
				nodeStats{s.best.left},
				nodeStats{s.best.right})

			node := &tree.Nodes[s.node]
			node.IsLeaf = false
			node.Feature = s.best.feature
			node.SplitBin = s.best.bin
			node.Threshold = m.cuts[s.best.feature][s.best.bin]
			node.Left = left
			node.Right = right

			nextFrontier = append(nextFrontier, left, right)
		}

		// Re-route sampled rows into the new children
		for i, r := range rows {
			node := tree.Nodes[assign[i]]
			if node.IsLeaf {
				continue
			}
			if m.binned[node.Feature][r] <= node.SplitBin {
				assign[i] = int32(node.Left)
			} else {
				assign[i] = int32(node.Right)
			}
		}
		frontier = nextFrontier
	}

	for i := range tree.Nodes {
		if tree.Nodes[i].IsLeaf {
			s := stats[i]
			tree.Nodes[i].Weight = p.LearningRate * (-s.g / (s.h + p.Lambda))
		}
	}

	return tree
}

// buildHistograms accumulates per-(node, bin) gradient sums for every
// feature. Each feature's pass over the sampled rows is submitted as one
// single-threaded cluster task; features write to disjoint histograms.
func buildHistograms(client *drocluster.Client, m *QuantileDMatrix, grad, hess []float64, rows []int32, assign []int32, frontier []int) [][][]gradPair {
	slotOf := make(map[int32]int, len(frontier))
	for slot, node := range frontier {
		slotOf[int32(node)] = slot
	}

	hists := make([][][]gradPair, m.numFeat)
	futures := make([]*drocluster.Future, m.numFeat)
	for f := 0; f < m.numFeat; f++ {
		f := f
		futures[f] = client.Submit(func(dev drocluster.Device) (interface{}, error) {
			numBins := len(m.cuts[f]) + 1
			hist := make([][]gradPair, len(frontier))
			for slot := range hist {
				hist[slot] = make([]gradPair, numBins)
			}

			binned := m.binned[f]
			for i, r := range rows {
				slot, active := slotOf[assign[i]]
				if !active {
					continue
				}
				b := binned[r]
				hist[slot][b].g += grad[r]
				hist[slot][b].h += hess[r]
			}

			hists[f] = hist
			return nil, nil
		})
	}
	client.Gather(futures)

	return hists
}

// bestSplit scans a node's histograms and returns the split with the
// highest gain. The returned candidate has gain <= 0 when no split beats
// the gamma complexity penalty.
func bestSplit(m *QuantileDMatrix, hists [][][]gradPair, slot int, parent nodeStats, p Params) splitCandidate {
	best := splitCandidate{gain: 0}
	parentScore := parent.g * parent.g / (parent.h + p.Lambda)

	for f := 0; f < m.numFeat; f++ {
		hist := hists[f][slot]

		var left gradPair
		for b := 0; b < len(hist)-1; b++ {
			left.g += hist[b].g
			left.h += hist[b].h
			right := gradPair{g: parent.g - left.g, h: parent.h - left.h}

			if left.h < p.MinChildWeight || right.h < p.MinChildWeight {
				continue
			}

			gain := 0.5*(left.g*left.g/(left.h+p.Lambda)+
				right.g*right.g/(right.h+p.Lambda)-
				parentScore) - p.Gamma
			if gain > best.gain {
				best = splitCandidate{
					gain:    gain,
					feature: f,
					bin:     uint8(b),
					left:    left,
					right:   right,
				}
			}
		}
	}

	return best
}
