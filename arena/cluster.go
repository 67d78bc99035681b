package arena

import "math"

// Clusterer collapses raw detections into a few canonical boundary lines
// in three passes: orientation, intersection, distance.
type Clusterer struct {
	// OrientationThreshold is the minimum sign-aligned dot product for two
	// normals to count as the same family (cosine of the max angle).
	OrientationThreshold float64
	// Workspace is where a corner between two families may project.
	Workspace Rect
	// DistanceThreshold is the rho gap below which two parallel lines are
	// duplicate detections of one edge.
	DistanceThreshold float64
}

// NewClusterer creates a clusterer from the runtime tunables
func NewClusterer(p Params) *Clusterer {
	return &Clusterer{
		OrientationThreshold: p.OrientationThreshold,
		Workspace:            p.Workspace,
		DistanceThreshold:    p.DistanceThreshold,
	}
}

// ClusterResult holds the output of every pass
type ClusterResult struct {
	Orientation  []*LineGroup
	Intersection []*LineGroup
	Distance     []*LineGroup
	// Corners are the pass-2 intersection points that fell inside the
	// workspace, one per merge.
	Corners []Point
}

// Lines returns the canonical line of every final group
func (r ClusterResult) Lines() []Line {
	lines := make([]Line, 0, len(r.Distance))
	for _, g := range r.Distance {
		lines = append(lines, g.ConvertToLine())
	}
	return lines
}

// Cluster runs the three passes over lines. Members may be flipped in place.
func (c *Clusterer) Cluster(lines []*Line) ClusterResult {
	var res ClusterResult
	res.Orientation = c.GroupByOrientation(lines)
	res.Intersection, res.Corners = c.GroupByIntersection(res.Orientation)
	res.Distance = c.GroupByDistance(res.Intersection)
	return res
}

// GroupByOrientation assigns each line, in order, to the first group whose
// average it is near-parallel to, or opens a new group.
func (c *Clusterer) GroupByOrientation(lines []*Line) []*LineGroup {
	var groups []*LineGroup
	for _, l := range lines {
		groups = c.addByOrientation(groups, l)
	}
	return groups
}

func (c *Clusterer) addByOrientation(groups []*LineGroup, l *Line) []*LineGroup {
	for _, g := range groups {
		if dot, _ := g.AlignedDot(l); dot > c.OrientationThreshold {
			g.Add(l)
			return groups
		}
	}
	return append(groups, NewLineGroup(l))
}

// GroupByIntersection merges pairs of groups whose representative lines
// cross inside the workspace. Pairs (i, j), i < j, are visited in index
// order using the representatives current at visit time; group i absorbs
// group j. Parallel pairs are skipped.
func (c *Clusterer) GroupByIntersection(groups []*LineGroup) ([]*LineGroup, []Point) {
	alive := make([]bool, len(groups))
	for i := range alive {
		alive[i] = true
	}

	var corners []Point
	for i := range groups {
		if !alive[i] {
			continue
		}
		for j := i + 1; j < len(groups); j++ {
			if !alive[j] {
				continue
			}
			p, ok := LineIntersection(groups[i].ConvertToLine(), groups[j].ConvertToLine())
			if !ok || !IsInsideRect(p, c.Workspace) {
				continue
			}
			groups[i].Absorb(groups[j])
			alive[j] = false
			corners = append(corners, p)
		}
	}

	merged := make([]*LineGroup, 0, len(groups))
	for i, g := range groups {
		if alive[i] {
			merged = append(merged, g)
		}
	}
	return merged, corners
}

// GroupByDistance splits each group into distinct edges: a member joins
// the first edge of the same family whose average rho is closer than
// DistanceThreshold, otherwise it starts a new edge.
func (c *Clusterer) GroupByDistance(groups []*LineGroup) []*LineGroup {
	var out []*LineGroup
	for _, g := range groups {
		var edges []*LineGroup
		for _, l := range g.Members() {
			edges = c.addByDistance(edges, l)
		}
		out = append(out, edges...)
	}
	return out
}

func (c *Clusterer) addByDistance(edges []*LineGroup, l *Line) []*LineGroup {
	for _, e := range edges {
		dot, rho := e.AlignedDot(l)
		if dot > c.OrientationThreshold && math.Abs(rho-e.AvgRho()) < c.DistanceThreshold {
			e.Add(l)
			return edges
		}
	}
	return append(edges, NewLineGroup(l))
}
