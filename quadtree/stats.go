package quadtree

// Stats describes the shape of a tree snapshot. Computing it is a full
// traversal, O(N).
type Stats struct {
	TotalNodes    int     `json:"total_nodes"`
	LeafNodes     int     `json:"leaf_nodes"`
	TotalEntries  int     `json:"total_entries"`
	AverageDepth  float64 `json:"average_depth"`
	MaxDepthFound int     `json:"max_depth_found"`
}

// Stats traverses the tree and returns node, entry and depth counts.
// AverageDepth is the mean depth of the leaves.
func (t *Tree[T]) Stats() Stats {
	var s Stats
	var depthSum int

	var walk func(n *node[T], depth int)
	walk = func(n *node[T], depth int) {
		s.TotalNodes++
		if depth > s.MaxDepthFound {
			s.MaxDepthFound = depth
		}

		if n.children == nil {
			s.LeafNodes++
			s.TotalEntries += len(n.entries)
			depthSum += depth
			return
		}
		for _, child := range n.children {
			walk(child, depth+1)
		}
	}
	walk(t.root, 0)

	if s.LeafNodes > 0 {
		s.AverageDepth = float64(depthSum) / float64(s.LeafNodes)
	}
	return s
}
