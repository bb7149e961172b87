package cluster

import (
	"math"
	"sort"

	"github.com/teranos/embcluster/errors"
)

// maxLambda caps 1/distance so duplicate points do not produce infinities
// in the stability sums.
const maxLambda = math.MaxFloat32

// HDBSCAN is hierarchical density-based clustering with excess-of-mass
// cluster selection.
//
// The implementation builds the minimum spanning tree of the mutual
// reachability graph with Prim's algorithm on the implicit dense graph, so it
// needs O(n) memory and O(n²) distance evaluations. That suits the batch
// re-clustering this tool runs; it is not meant for millions of rows.
type HDBSCAN struct {
	MinClusterSize int
	MinSamples     int
	Metric         Metric
}

// NewHDBSCAN validates parameters and returns an HDBSCAN engine.
// minSamples <= 0 defaults to minClusterSize.
func NewHDBSCAN(minClusterSize, minSamples int, metric Metric) (*HDBSCAN, error) {
	if minClusterSize < 2 {
		return nil, errors.Newf("hdbscan min cluster size must be >= 2, got %d", minClusterSize)
	}
	if minSamples <= 0 {
		minSamples = minClusterSize
	}
	if metric == nil {
		metric = Euclidean
	}
	return &HDBSCAN{MinClusterSize: minClusterSize, MinSamples: minSamples, Metric: metric}, nil
}

type mstEdge struct {
	a, b int
	w    float64
}

type linkageNode struct {
	left, right int
	dist        float64
	size        int
}

type condensedEdge struct {
	parent, child int
	lambda        float64
	size          int
}

// Cluster labels vectors. Cluster indices are assigned in order of the
// selected clusters' position in the condensed tree.
func (h *HDBSCAN) Cluster(vectors [][]float32) ([]int, error) {
	if err := checkMatrix(vectors); err != nil {
		return nil, err
	}

	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n < 2 || n < h.MinClusterSize {
		return labels, nil
	}

	core := h.coreDistances(vectors)
	edges := h.spanningTree(vectors, core)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })

	nodes := singleLinkage(n, edges)
	condensed, nClusters := condense(n, nodes, h.MinClusterSize)
	selected := selectClusters(n, condensed, nClusters)

	return assignLabels(n, condensed, selected, labels), nil
}

// coreDistances returns, per point, the distance to its MinSamples-th
// nearest neighbour counting the point itself.
func (h *HDBSCAN) coreDistances(vectors [][]float32) []float64 {
	n := len(vectors)
	k := h.MinSamples
	if k > n {
		k = n
	}

	core := make([]float64, n)
	nearest := make([]float64, 0, k+1)
	for i := range vectors {
		nearest = nearest[:0]
		for j := range vectors {
			d := 0.0
			if i != j {
				d = h.Metric(vectors[i], vectors[j])
			}
			if len(nearest) == k && d >= nearest[k-1] {
				continue
			}
			pos := sort.SearchFloat64s(nearest, d)
			nearest = append(nearest, 0)
			copy(nearest[pos+1:], nearest[pos:])
			nearest[pos] = d
			if len(nearest) > k {
				nearest = nearest[:k]
			}
		}
		core[i] = nearest[len(nearest)-1]
	}
	return core
}

// spanningTree runs Prim's algorithm over mutual reachability distances.
func (h *HDBSCAN) spanningTree(vectors [][]float32, core []float64) []mstEdge {
	n := len(vectors)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[current] = true

	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := math.Max(h.Metric(vectors[current], vectors[j]), math.Max(core[current], core[j]))
			if d < best[j] {
				best[j] = d
				from[j] = current
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		edges = append(edges, mstEdge{a: from[next], b: next, w: best[next]})
		inTree[next] = true
		current = next
	}
	return edges
}

// singleLinkage merges MST edges in ascending order. Internal node i of the
// returned slice has id n+i; leaves are the points 0..n-1.
func singleLinkage(n int, edges []mstEdge) []linkageNode {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	nodes := make([]linkageNode, 0, n-1)
	size := func(x int) int {
		if x < n {
			return 1
		}
		return nodes[x-n].size
	}

	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		id := n + len(nodes)
		nodes = append(nodes, linkageNode{left: ra, right: rb, dist: e.w, size: size(ra) + size(rb)})
		parent[ra] = id
		parent[rb] = id
	}
	return nodes
}

func lambdaOf(dist float64) float64 {
	if dist <= 0 {
		return maxLambda
	}
	return math.Min(1/dist, maxLambda)
}

// condense walks the linkage tree from the root and keeps only splits where
// both sides have at least minSize points. Condensed cluster labels start at n
// (the root); the returned count is the number of condensed clusters.
func condense(n int, nodes []linkageNode, minSize int) ([]condensedEdge, int) {
	size := func(x int) int {
		if x < n {
			return 1
		}
		return nodes[x-n].size
	}
	leaves := func(x int) []int {
		var out []int
		stack := []int{x}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top < n {
				out = append(out, top)
				continue
			}
			nd := nodes[top-n]
			stack = append(stack, nd.right, nd.left)
		}
		return out
	}

	root := 2*n - 2
	relabel := make(map[int]int, 2*n)
	relabel[root] = n
	next := n + 1

	var out []condensedEdge
	fallOut := func(parent, subtree int, lambda float64) {
		for _, p := range leaves(subtree) {
			out = append(out, condensedEdge{parent: parent, child: p, lambda: lambda, size: 1})
		}
	}

	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node < n {
			continue
		}

		nd := nodes[node-n]
		lambda := lambdaOf(nd.dist)
		label := relabel[node]
		ls, rs := size(nd.left), size(nd.right)

		switch {
		case ls >= minSize && rs >= minSize:
			for _, child := range []int{nd.left, nd.right} {
				relabel[child] = next
				out = append(out, condensedEdge{parent: label, child: next, lambda: lambda, size: size(child)})
				next++
				queue = append(queue, child)
			}
		case ls < minSize && rs < minSize:
			fallOut(label, nd.left, lambda)
			fallOut(label, nd.right, lambda)
		case ls < minSize:
			fallOut(label, nd.left, lambda)
			relabel[nd.right] = label
			queue = append(queue, nd.right)
		default:
			fallOut(label, nd.right, lambda)
			relabel[nd.left] = label
			queue = append(queue, nd.left)
		}
	}

	return out, next - n
}

// selectClusters applies excess-of-mass selection. The root is never
// selected, so a dataset with no internal split is all noise.
func selectClusters(n int, condensed []condensedEdge, nClusters int) []bool {
	birth := make([]float64, nClusters)
	children := make([][]int, nClusters)
	for _, e := range condensed {
		if e.child >= n {
			birth[e.child-n] = e.lambda
			children[e.parent-n] = append(children[e.parent-n], e.child-n)
		}
	}

	stability := make([]float64, nClusters)
	for _, e := range condensed {
		p := e.parent - n
		stability[p] += (e.lambda - birth[p]) * float64(e.size)
	}

	selected := make([]bool, nClusters)
	for c := 1; c < nClusters; c++ {
		selected[c] = true
	}

	var deselectBelow func(c int)
	deselectBelow = func(c int) {
		for _, ch := range children[c] {
			selected[ch] = false
			deselectBelow(ch)
		}
	}

	// Children always carry larger labels than their parent
	for c := nClusters - 1; c >= 1; c-- {
		var childSum float64
		for _, ch := range children[c] {
			childSum += stability[ch]
		}
		if childSum > stability[c] {
			selected[c] = false
			stability[c] = childSum
		} else {
			deselectBelow(c)
		}
	}
	return selected
}

func assignLabels(n int, condensed []condensedEdge, selected []bool, labels []int) []int {
	clusterParent := make(map[int]int)
	pointParent := make([]int, n)
	for _, e := range condensed {
		if e.child >= n {
			clusterParent[e.child-n] = e.parent - n
		} else {
			pointParent[e.child] = e.parent - n
		}
	}

	index := make(map[int]int)
	for c, ok := range selected {
		if ok {
			index[c] = len(index)
		}
	}

	for p := 0; p < n; p++ {
		for c := pointParent[p]; c != 0; c = clusterParent[c] {
			if selected[c] {
				labels[p] = index[c]
				break
			}
		}
	}
	return labels
}
