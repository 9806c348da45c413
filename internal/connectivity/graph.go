package connectivity

import (
	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/distance"
)

// Set is a set of aircraft ICAO addresses
type Set map[string]struct{}

// Has reports whether id is in the set. A nil set is empty.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Graph is an undirected adjacency map. A missing key is equivalent to an
// empty neighbor set.
type Graph map[string]Set

// AddEdge links a and b in both directions. Self-loops are ignored.
func (g Graph) AddEdge(a, b string) {
	if a == b {
		return
	}
	g.neighborsForWrite(a)[b] = struct{}{}
	g.neighborsForWrite(b)[a] = struct{}{}
}

func (g Graph) neighborsForWrite(id string) Set {
	n, ok := g[id]
	if !ok {
		n = make(Set)
		g[id] = n
	}
	return n
}

// Neighbors returns the neighbor set of id. The result must not be
// modified; it is nil when id has no entry.
func (g Graph) Neighbors(id string) Set {
	return g[id]
}

// HasEdge reports whether a and b are adjacent
func (g Graph) HasEdge(a, b string) bool {
	return g[a].Has(b)
}

// Contains reports whether id has an adjacency entry
func (g Graph) Contains(id string) bool {
	_, ok := g[id]
	return ok
}

// EdgeCount returns the number of undirected edges
func (g Graph) EdgeCount() int {
	total := 0
	for _, n := range g {
		total += len(n)
	}
	return total / 2
}

// RangeTable maps carrier codes to communication range in kilometers
type RangeTable struct {
	DefaultKm float64
	ByCarrier map[string]float64
}

// RangeFor returns the range of carrier, falling back to the default for
// empty or unlisted codes
func (t RangeTable) RangeFor(carrier string) float64 {
	if carrier == "" {
		return t.DefaultKm
	}
	if r, ok := t.ByCarrier[carrier]; ok {
		return r
	}
	return t.DefaultKm
}

// BuildGraph links every pair whose 3D distance is within the smaller of
// the two aircraft's ranges. Line of sight is not required. Aircraft not
// found in list use the default range.
func BuildGraph(list []aircraft.Aircraft, records []distance.Record, ranges RangeTable) Graph {
	carriers := make(map[string]string, len(list))
	for _, a := range list {
		carriers[a.ICAO24] = a.Carrier
	}

	g := make(Graph)
	for _, r := range records {
		id1, id2 := r.Aircraft1.ICAO24, r.Aircraft2.ICAO24
		if id1 == id2 {
			continue
		}

		maxRange := min(ranges.RangeFor(carriers[id1]), ranges.RangeFor(carriers[id2]))
		if r.DistanceKm <= maxRange {
			g.AddEdge(id1, id2)
		}
	}
	return g
}

// ReachableWithinHops returns every node reachable from start in at most
// maxHops edges, excluding start itself
func ReachableWithinHops(g Graph, start string, maxHops int) Set {
	reachable := make(Set)
	if !g.Contains(start) {
		return reachable
	}

	for id, depth := range hopDistances(g, start, maxHops) {
		if depth > 0 {
			reachable[id] = struct{}{}
		}
	}
	return reachable
}

// hopDistances runs a breadth-first search from start and returns the
// minimum hop count of every node reached within maxHops, start included
// at 0
func hopDistances(g Graph, start string, maxHops int) map[string]int {
	depth := map[string]int{start: 0}
	frontier := []string{start}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, node := range frontier {
			for neighbor := range g.Neighbors(node) {
				if _, seen := depth[neighbor]; seen {
					continue
				}
				depth[neighbor] = hop
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return depth
}
