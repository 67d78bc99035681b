package arena

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// squareLines returns x=0, x=100, y=0, y=100 in that order
func squareLines() []*Line {
	return []*Line{
		{Rho: 0, Orientation: Vec2{X: 1}},
		{Rho: 100, Orientation: Vec2{X: 1}},
		{Rho: 0, Orientation: Vec2{Y: 1}},
		{Rho: 100, Orientation: Vec2{Y: 1}},
	}
}

func testClusterer(workspace Rect, distance float64) *Clusterer {
	return &Clusterer{
		OrientationThreshold: math.Cos(10 * math.Pi / 180),
		Workspace:            workspace,
		DistanceThreshold:    distance,
	}
}

func TestCluster_SquareWorkspaceMissesCorner(t *testing.T) {
	c := testClusterer(Rect{X: 200, Y: 200, Width: 100, Height: 100}, 20)
	res := c.Cluster(squareLines())

	assert.Len(t, res.Orientation, 2)
	assert.Len(t, res.Intersection, 2)
	assert.Empty(t, res.Corners)

	want := []Line{
		NewLine(0, Vec2{X: 1}),
		NewLine(100, Vec2{X: 1}),
		NewLine(0, Vec2{Y: 1}),
		NewLine(100, Vec2{Y: 1}),
	}
	if diff := cmp.Diff(want, res.Lines(), approx); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestCluster_SquareWorkspaceContainsCorner(t *testing.T) {
	c := testClusterer(Rect{Width: 640, Height: 480}, 20)
	res := c.Cluster(squareLines())

	assert.Len(t, res.Orientation, 2)
	require.Len(t, res.Intersection, 1)
	assert.Equal(t, 4, res.Intersection[0].Len())
	if diff := cmp.Diff([]Point{{X: 50, Y: 50}}, res.Corners, approx); diff != "" {
		t.Errorf("Corners mismatch (-want +got):\n%s", diff)
	}

	// the merged family is split back into its four edges
	assert.Len(t, res.Distance, 4)
}

func TestCluster_LargeDistanceMergesParallelEdges(t *testing.T) {
	c := testClusterer(Rect{X: 200, Y: 200, Width: 100, Height: 100}, 150)
	res := c.Cluster(squareLines())

	require.Len(t, res.Distance, 2)
	want := []Line{
		NewLine(50, Vec2{X: 1}),
		NewLine(50, Vec2{Y: 1}),
	}
	if diff := cmp.Diff(want, res.Lines(), approx); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestCluster_DuplicateDetectionsCollapse(t *testing.T) {
	lines := []*Line{
		ptr(LineFromPolar(100, 0)),
		ptr(LineFromPolar(104, 0.02)),
		ptr(LineFromPolar(97, -0.015)),
		ptr(LineFromPolar(300, 0.01)),
	}
	c := testClusterer(Rect{Width: 640, Height: 480}, 20)
	res := c.Cluster(lines)

	require.Len(t, res.Orientation, 1)
	require.Len(t, res.Distance, 2)
	assert.Equal(t, 3, res.Distance[0].Len())
	assert.InDelta(t, 301.0/3, res.Distance[0].AvgRho(), 1e-9)
	assert.Equal(t, 1, res.Distance[1].Len())
}

func TestCluster_SignFlippedDuplicate(t *testing.T) {
	lines := []*Line{
		{Rho: 100, Orientation: Vec2{X: 1}},
		{Rho: -100, Orientation: Vec2{X: -1}},
	}
	c := testClusterer(Rect{Width: 640, Height: 480}, 20)
	res := c.Cluster(lines)

	require.Len(t, res.Distance, 1)
	assert.Equal(t, 2, res.Distance[0].Len())
	if diff := cmp.Diff(NewLine(100, Vec2{X: 1}), res.Distance[0].ConvertToLine(), approx); diff != "" {
		t.Errorf("merged line mismatch (-want +got):\n%s", diff)
	}
}

func TestCluster_Empty(t *testing.T) {
	c := NewClusterer(DefaultParams())
	res := c.Cluster(nil)
	assert.Empty(t, res.Orientation)
	assert.Empty(t, res.Intersection)
	assert.Empty(t, res.Distance)
	assert.Empty(t, res.Corners)
	assert.NotNil(t, res.Lines())
}

func TestGroupByOrientation_FirstMatchWins(t *testing.T) {
	c := testClusterer(Rect{Width: 640, Height: 480}, 20)
	lines := []*Line{
		ptr(LineFromPolar(10, 0)),
		ptr(LineFromPolar(10, math.Pi/2)),
		ptr(LineFromPolar(10, 0.05)),
		ptr(LineFromPolar(10, math.Pi/2+0.05)),
		ptr(LineFromPolar(10, math.Pi/4)),
	}

	groups := c.GroupByOrientation(lines)
	require.Len(t, groups, 3)
	assert.Equal(t, 2, groups[0].Len())
	assert.Equal(t, 2, groups[1].Len())
	assert.Equal(t, 1, groups[2].Len())
}

func TestGroupByIntersection_ParallelGroupsStayApart(t *testing.T) {
	c := testClusterer(Rect{Width: 640, Height: 480}, 20)
	a := NewLine(10, Vec2{X: 1})
	b := NewLine(300, Vec2{X: 1})

	groups, corners := c.GroupByIntersection([]*LineGroup{NewLineGroup(&a), NewLineGroup(&b)})
	assert.Len(t, groups, 2)
	assert.Empty(t, corners)
}

func TestNewClusterer(t *testing.T) {
	p := DefaultParams()
	c := NewClusterer(p)
	assert.Equal(t, p.OrientationThreshold, c.OrientationThreshold)
	assert.Equal(t, p.Workspace, c.Workspace)
	assert.Equal(t, p.DistanceThreshold, c.DistanceThreshold)
}

func ptr(l Line) *Line { return &l }
