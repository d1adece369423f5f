package ml

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"luminastay/utils"
)

// ForestConfig controls the regression forest.
type ForestConfig struct {
	Trees          int
	Seed           uint64
	MaxDepth       int // 0 grows trees until leaves are pure or too small
	MinSamplesLeaf int
	MaxFeatures    int // 0 considers every feature at each split
	Workers        int
}

// Node is one tree node. Feature is -1 for a leaf.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
}

// Tree is a regression tree stored as a flat node slice rooted at index 0.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for one encoded vector.
func (t *Tree) Predict(x []float64) float64 {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

// Forest averages the output of bootstrap-trained regression trees.
type Forest struct {
	Trees       []Tree
	Width       int
	Importances []float64
}

// Predict returns the mean tree output for x.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// FitForest grows cfg.Trees trees in parallel. Tree t draws from its own
// stream seeded by (cfg.Seed, t), so the result does not depend on scheduling.
func FitForest(x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("forest: need matching non-empty inputs, got %d rows and %d targets", len(x), len(y))
	}
	if cfg.Trees < 1 {
		return nil, fmt.Errorf("forest: tree count must be positive, got %d", cfg.Trees)
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}

	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), width)
		}
	}

	trees := make([]Tree, cfg.Trees)
	importances := make([][]float64, cfg.Trees)

	utils.ParallelFor(utils.NewWorkerPool(cfg.Workers), cfg.Trees, func(t int) {
		b := &treeBuilder{
			x:          x,
			y:          y,
			cfg:        cfg,
			rng:        rand.New(rand.NewPCG(cfg.Seed, uint64(t))),
			importance: make([]float64, width),
		}
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = b.rng.IntN(len(x))
		}
		b.build(sample, 0)
		trees[t] = Tree{Nodes: b.nodes}
		importances[t] = normalize(b.importance)
	})

	total := make([]float64, width)
	for _, imp := range importances {
		for j, v := range imp {
			total[j] += v / float64(cfg.Trees)
		}
	}

	return &Forest{Trees: trees, Width: width, Importances: total}, nil
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	cfg        ForestConfig
	rng        *rand.Rand
	nodes      []Node
	importance []float64
}

type split struct {
	feature   int
	threshold float64
	score     float64
	pos       int
}

func (b *treeBuilder) build(idx []int, depth int) int32 {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	n := float64(len(idx))

	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: -1, Value: sum / n})

	if len(idx) < 2*b.cfg.MinSamplesLeaf || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) || b.pure(idx) {
		return id
	}

	best, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}
	b.importance[best.feature] += best.score - sum*sum/n

	left := make([]int, 0, best.pos)
	right := make([]int, 0, len(idx)-best.pos)
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit maximizes sumL²/nL + sumR²/nR, which is equivalent to
// minimizing the summed squared error of the two children.
func (b *treeBuilder) bestSplit(idx []int, total float64) (split, bool) {
	features := b.candidateFeatures()
	minLeaf := b.cfg.MinSamplesLeaf
	n := len(idx)

	best := split{score: -1}
	found := false
	order := make([]int, n)

	for _, f := range features {
		copy(order, idx)
		slices.SortFunc(order, func(a, c int) int {
			switch va, vc := b.x[a][f], b.x[c][f]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			}
			return 0
		})

		var sumL float64
		for p := 1; p < n; p++ {
			sumL += b.y[order[p-1]]
			if p < minLeaf || n-p < minLeaf {
				continue
			}
			lo, hi := b.x[order[p-1]][f], b.x[order[p]][f]
			if lo == hi {
				continue
			}
			sumR := total - sumL
			score := sumL*sumL/float64(p) + sumR*sumR/float64(n-p)
			if !found || score > best.score {
				best = split{feature: f, threshold: (lo + hi) / 2, score: score, pos: p}
				found = true
			}
		}
	}
	return best, found
}

func (b *treeBuilder) candidateFeatures() []int {
	width := len(b.importance)
	if b.cfg.MaxFeatures <= 0 || b.cfg.MaxFeatures >= width {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(width)[:b.cfg.MaxFeatures]
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
