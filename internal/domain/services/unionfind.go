package services

// unionFind is a disjoint-set structure over record indexes, used to merge
// pairwise matches transitively into entity clusters.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

// find returns the set representative for x, with path compression.
func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union merges the sets containing a and b. Returns false when they were
// already in the same set.
func (uf *unionFind) union(a, b int) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return false
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
	return true
}

// sets returns the clusters as slices of member indexes. Members keep input
// order within each cluster and clusters are ordered by their smallest member,
// so the grouping is deterministic for a fixed input order.
func (uf *unionFind) sets() [][]int {
	byRoot := make(map[int][]int)
	var roots []int
	for i := range uf.parent {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], i)
	}
	out := make([][]int, 0, len(roots))
	for _, root := range roots {
		out = append(out, byRoot[root])
	}
	return out
}
