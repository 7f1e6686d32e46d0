// Package sphere provides triangulated discretizations of the unit
// sphere used to sample orientation distribution functions. A Mesh
// carries unit vertices plus the edge and face topology of a fixed
// triangulation, and supports subdivision, hemisphere collapsing and
// nearest-vertex queries.
package sphere

import (
	"math"
	"sort"
)

// antipodeTol is the dot-product tolerance used when matching a vertex
// with the antipode of another during hemisphere collapsing.
const antipodeTol = 1e-10

// Mesh is a triangulated discretization of the unit sphere.
//
// Vertices are unit-length 3-vectors. Edges hold each undirected
// vertex pair exactly once with the smaller index first. Faces hold
// the triangles the edges were derived from; a mesh built directly
// from vertices (see FromVertices) has no topology.
type Mesh struct {
	Vertices [][3]float64
	Edges    [][2]int
	Faces    [][3]int

	adjacency [][]int
	tree      *vertexTree
}

// Octahedron returns the unit octahedron: 6 vertices on the coordinate
// axes and 8 triangular faces.
func Octahedron() *Mesh {
	vertices := [][3]float64{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}
	faces := [][3]int{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{0, 5, 2}, {2, 5, 1}, {1, 5, 3}, {3, 5, 0},
	}
	return newMeshFromFaces(vertices, faces)
}

// Icosahedron returns the unit icosahedron: 12 vertices and 20
// triangular faces. Subdividing it yields the meshes commonly used to
// sample ODFs.
func Icosahedron() *Mesh {
	// Golden-ratio construction, vertices normalized to unit length.
	t := (1 + math.Sqrt(5)) / 2
	raw := [][3]float64{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	vertices := make([][3]float64, len(raw))
	for i, v := range raw {
		vertices[i] = Normalize(v)
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	return newMeshFromFaces(vertices, faces)
}

// Default returns the mesh used when callers do not supply one: a
// twice-subdivided icosahedron collapsed to a hemisphere.
func Default() *Mesh {
	return NewHemisphere(Icosahedron().Subdivide(2))
}

// FromVertices builds a topology-free mesh from the given unit
// directions. Such a mesh can be handed to a continuous evaluator as a
// query set but cannot be used for peak finding.
func FromVertices(vertices [][3]float64) *Mesh {
	m := &Mesh{Vertices: make([][3]float64, len(vertices))}
	copy(m.Vertices, vertices)
	return m
}

// newMeshFromFaces assembles a mesh, deriving the edge list from the
// triangle list.
func newMeshFromFaces(vertices [][3]float64, faces [][3]int) *Mesh {
	return &Mesh{
		Vertices: vertices,
		Faces:    faces,
		Edges:    edgesFromFaces(faces),
	}
}

// edgesFromFaces collects the unique undirected edges of a triangle
// list, smaller vertex index first, sorted for reproducible order.
func edgesFromFaces(faces [][3]int) [][2]int {
	seen := make(map[[2]int]struct{}, 3*len(faces))
	for _, f := range faces {
		for _, pair := range [3][2]int{{f[0], f[1]}, {f[1], f[2]}, {f[2], f[0]}} {
			a, b := pair[0], pair[1]
			if a > b {
				a, b = b, a
			}
			seen[[2]int{a, b}] = struct{}{}
		}
	}
	edges := make([][2]int, 0, len(seen))
	for e := range seen {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Subdivide splits every triangle of the mesh into four n times,
// projecting the new midpoint vertices onto the unit sphere. The
// vertex count grows roughly fourfold per level.
func (m *Mesh) Subdivide(n int) *Mesh {
	out := m
	for level := 0; level < n; level++ {
		out = out.subdivideOnce()
	}
	return out
}

func (m *Mesh) subdivideOnce() *Mesh {
	vertices := make([][3]float64, len(m.Vertices), 2*len(m.Vertices))
	copy(vertices, m.Vertices)

	// Midpoints are shared between the two triangles of an edge, so
	// they are cached by the undirected vertex pair.
	midpoints := make(map[[2]int]int)
	midpoint := func(a, b int) int {
		key := [2]int{a, b}
		if a > b {
			key = [2]int{b, a}
		}
		if idx, ok := midpoints[key]; ok {
			return idx
		}
		va, vb := vertices[a], vertices[b]
		mid := Normalize([3]float64{va[0] + vb[0], va[1] + vb[1], va[2] + vb[2]})
		idx := len(vertices)
		vertices = append(vertices, mid)
		midpoints[key] = idx
		return idx
	}

	faces := make([][3]int, 0, 4*len(m.Faces))
	for _, f := range m.Faces {
		ab := midpoint(f[0], f[1])
		bc := midpoint(f[1], f[2])
		ca := midpoint(f[2], f[0])
		faces = append(faces,
			[3]int{f[0], ab, ca},
			[3]int{f[1], bc, ab},
			[3]int{f[2], ca, bc},
			[3]int{ab, bc, ca},
		)
	}
	return newMeshFromFaces(vertices, faces)
}

// NewHemisphere collapses antipodal vertex pairs of a full sphere mesh
// to a single representative each, remapping the edge and face
// topology accordingly. Peak finding on the result cannot report both
// members of an antipodal pair because only one is present.
func NewHemisphere(full *Mesh) *Mesh {
	vertices := make([][3]float64, 0, (len(full.Vertices)+1)/2)
	remap := make([]int, len(full.Vertices))
	for i := range remap {
		remap[i] = -1
	}

	for i, v := range full.Vertices {
		matched := false
		for j, kept := range vertices {
			// Kept vertices are canonical representatives, so v matches
			// whether it arrived as the kept direction or its antipode.
			if absDot(v, kept) > 1-antipodeTol {
				remap[i] = j
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		remap[i] = len(vertices)
		vertices = append(vertices, upperRepresentative(v))
	}

	faces := remapFaces(full.Faces, remap)
	m := &Mesh{
		Vertices: vertices,
		Faces:    faces,
		Edges:    remapEdges(full.Edges, remap),
	}
	return m
}

// upperRepresentative returns v or its antipode, whichever lies in the
// canonical upper hemisphere (z > 0, ties broken by y then x).
func upperRepresentative(v [3]float64) [3]float64 {
	flip := v[2] < 0 ||
		(v[2] == 0 && v[1] < 0) ||
		(v[2] == 0 && v[1] == 0 && v[0] < 0)
	if flip {
		return [3]float64{-v[0], -v[1], -v[2]}
	}
	return v
}

func remapEdges(edges [][2]int, remap []int) [][2]int {
	seen := make(map[[2]int]struct{}, len(edges))
	for _, e := range edges {
		a, b := remap[e[0]], remap[e[1]]
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		seen[[2]int{a, b}] = struct{}{}
	}
	out := make([][2]int, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

func remapFaces(faces [][3]int, remap []int) [][3]int {
	seen := make(map[[3]int]struct{}, len(faces))
	out := make([][3]int, 0, len(faces))
	for _, f := range faces {
		g := [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
		if g[0] == g[1] || g[1] == g[2] || g[0] == g[2] {
			continue
		}
		key := g
		sort.Ints(key[:])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}

// Neighbors returns the indices of the vertices sharing an edge with
// vertex i. The adjacency table is built once on first use.
func (m *Mesh) Neighbors(i int) []int {
	if m.adjacency == nil {
		adj := make([][]int, len(m.Vertices))
		for _, e := range m.Edges {
			adj[e[0]] = append(adj[e[0]], e[1])
			adj[e[1]] = append(adj[e[1]], e[0])
		}
		m.adjacency = adj
	}
	return m.adjacency[i]
}

// Dot returns the dot product of two 3-vectors.
func Dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Normalize scales v to unit length. The zero vector is returned
// unchanged.
func Normalize(v [3]float64) [3]float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return v
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}
}

// SphericalToCartesian converts inclination theta (angle from the +z
// axis) and azimuth phi to a unit vector.
func SphericalToCartesian(theta, phi float64) [3]float64 {
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	return [3]float64{st * cp, st * sp, ct}
}

// CartesianToSpherical converts a unit vector to inclination and
// azimuth angles.
func CartesianToSpherical(v [3]float64) (theta, phi float64) {
	theta = math.Acos(math.Max(-1, math.Min(1, v[2])))
	phi = math.Atan2(v[1], v[0])
	return theta, phi
}
