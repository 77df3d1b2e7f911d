package carousel

// DefaultSpacing is the horizontal distance between neighbouring nodes.
const DefaultSpacing = 0.3

// layoutServices positions one node per id, evenly spaced and centred on
// x = 0. Every position depends on the total count, so the whole list is
// rebuilt whenever an id is added.
//
// The centred rule is deliberate: two services must land at -0.15 and +0.15.
// The older i*s - n*s/2 form gives -0.3 and 0 and is not used.
func layoutServices(ids []string, spacing float64) []ServiceNode {
	nodes := make([]ServiceNode, len(ids))
	mid := float64(len(ids)-1) / 2
	for i, id := range ids {
		nodes[i] = ServiceNode{
			ID:     id,
			X:      (float64(i) - mid) * spacing,
			Y:      0,
			Status: StatusHealthy,
		}
	}
	return nodes
}
