package sphere

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// vertexPoint is a mesh vertex positioned for KD-tree lookups. It
// carries the vertex index so a nearest-neighbor query maps back into
// the mesh.
type vertexPoint struct {
	x, y, z float64
	idx     int
}

// Compare implements the kdtree.Comparable interface
func (p vertexPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertexPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	case 2:
		return p.z - q.z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p vertexPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p vertexPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(vertexPoint)
	dx := p.x - q.x
	dy := p.y - q.y
	dz := p.z - q.z
	return dx*dx + dy*dy + dz*dz
}

// vertexPoints is a collection of vertexPoint that satisfies kdtree.Interface
type vertexPoints []vertexPoint

func (p vertexPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p vertexPoints) Len() int                              { return len(p) }
func (p vertexPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p vertexPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(vertexPlane{vertexPoints: p, Dim: d}, kdtree.MedianOfRandoms(vertexPlane{vertexPoints: p, Dim: d}, 100))
}

// vertexPlane implements sort.Interface and kdtree.SortSlicer for vertexPoints
type vertexPlane struct {
	vertexPoints
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.vertexPoints[i].x < p.vertexPoints[j].x
	case 1:
		return p.vertexPoints[i].y < p.vertexPoints[j].y
	case 2:
		return p.vertexPoints[i].z < p.vertexPoints[j].z
	default:
		panic("illegal dimension")
	}
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertexPoints: p.vertexPoints[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertexPoints[i], p.vertexPoints[j] = p.vertexPoints[j], p.vertexPoints[i]
}

// vertexTree wraps the KD-tree built over the mesh vertices.
type vertexTree struct {
	tree *kdtree.Tree
}

// NearestVertex returns the index of the mesh vertex closest to the
// unit direction v. For unit vectors Euclidean proximity and maximal
// dot product select the same vertex. The spatial index is built once
// on first use.
func (m *Mesh) NearestVertex(v [3]float64) int {
	if m.tree == nil {
		points := make(vertexPoints, len(m.Vertices))
		for i, vert := range m.Vertices {
			points[i] = vertexPoint{x: vert[0], y: vert[1], z: vert[2], idx: i}
		}
		m.tree = &vertexTree{tree: kdtree.New(points, true)}
	}
	got, _ := m.tree.tree.Nearest(vertexPoint{x: v[0], y: v[1], z: v[2]})
	return got.(vertexPoint).idx
}

// NearestVertexSymmetric returns the vertex closest to either v or its
// antipode, which is the right lookup on hemisphere meshes where only
// one member of each antipodal pair is present.
func (m *Mesh) NearestVertexSymmetric(v [3]float64) int {
	i := m.NearestVertex(v)
	j := m.NearestVertex([3]float64{-v[0], -v[1], -v[2]})
	if absDot(m.Vertices[j], v) > absDot(m.Vertices[i], v) {
		return j
	}
	return i
}

func absDot(a, b [3]float64) float64 {
	d := Dot(a, b)
	if d < 0 {
		return -d
	}
	return d
}
