package arena

// LineGroup is an online-averaged cluster of lines. It references the
// lines it was given and does not own them; Add may flip a member in place
// so that every member is sign-aligned with the average at insertion time.
//
// The average orientation is not renormalized. Its norm shrinks below 1 as
// members with different angles accumulate, which weakens the alignment
// test for later additions.
type LineGroup struct {
	avgOrientation Vec2
	avgRho         float64
	members        []*Line
}

// NewLineGroup creates a group seeded with a single line
func NewLineGroup(seed *Line) *LineGroup {
	return &LineGroup{
		avgOrientation: seed.Orientation,
		avgRho:         seed.Rho,
		members:        []*Line{seed},
	}
}

// Add sign-aligns line against the current average and folds it into the
// running mean.
func (g *LineGroup) Add(line *Line) {
	if line.Orientation.Dot(g.avgOrientation) < 0 {
		line.InverseOrientation()
	}
	n := float64(len(g.members))
	g.avgRho = (g.avgRho*n + line.Rho) / (n + 1)
	g.avgOrientation = Vec2{
		X: (g.avgOrientation.X*n + line.Orientation.X) / (n + 1),
		Y: (g.avgOrientation.Y*n + line.Orientation.Y) / (n + 1),
	}
	g.members = append(g.members, line)
}

// Absorb adds every member of other, in order
func (g *LineGroup) Absorb(other *LineGroup) {
	for _, l := range other.members {
		g.Add(l)
	}
}

// ConvertToLine returns the canonical line for the group
func (g *LineGroup) ConvertToLine() Line {
	return NewLine(g.avgRho, g.avgOrientation)
}

// AlignedDot returns the dot product between line and the group average
// after sign alignment, together with the correspondingly aligned rho.
func (g *LineGroup) AlignedDot(line *Line) (dot, rho float64) {
	dot = line.Orientation.Dot(g.avgOrientation)
	rho = line.Rho
	if dot < 0 {
		return -dot, -rho
	}
	return dot, rho
}

// Members returns the referenced lines in insertion order
func (g *LineGroup) Members() []*Line {
	return g.members
}

// Len returns the number of members
func (g *LineGroup) Len() int {
	return len(g.members)
}

// AvgOrientation returns the running mean of the member normals
func (g *LineGroup) AvgOrientation() Vec2 {
	return g.avgOrientation
}

// AvgRho returns the running mean of the member distances
func (g *LineGroup) AvgRho() float64 {
	return g.avgRho
}
