package connectivity

import (
	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/distance"
)

// MaxRelayHops is the deepest relay chain counted: 3 intermediate
// aircraft, 4 edges
const MaxRelayHops = 4

// HopCounts counts aircraft pairs by the fewest edges between them.
// Direct is one edge, OneHop two, TwoHop three and ThreeHop four.
type HopCounts struct {
	Direct   int `json:"direct"`
	OneHop   int `json:"1hop"`
	TwoHop   int `json:"2hop"`
	ThreeHop int `json:"3hop"`
}

// Total returns the number of pairs that can communicate at all
func (h HopCounts) Total() int {
	return h.Direct + h.OneHop + h.TwoHop + h.ThreeHop
}

type pairKey struct {
	lo, hi string
}

func canonicalPair(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// CountCommunicationPaths builds the communication graph and buckets every
// connected pair by its minimum hop count. Each unordered pair is counted
// once; pairs more than MaxRelayHops edges apart are not counted.
func CountCommunicationPaths(list []aircraft.Aircraft, records []distance.Record, ranges RangeTable) HopCounts {
	if len(list) < 2 {
		return HopCounts{}
	}
	g := BuildGraph(list, records, ranges)

	minHops := make(map[pairKey]int)
	for _, a := range list {
		if !g.Contains(a.ICAO24) {
			continue
		}
		for target, hops := range hopDistances(g, a.ICAO24, MaxRelayHops) {
			if hops == 0 {
				continue
			}
			minHops[canonicalPair(a.ICAO24, target)] = hops
		}
	}

	var counts HopCounts
	for _, hops := range minHops {
		switch hops {
		case 1:
			counts.Direct++
		case 2:
			counts.OneHop++
		case 3:
			counts.TwoHop++
		case 4:
			counts.ThreeHop++
		}
	}
	return counts
}

// Node is an aircraft in the graph view
type Node struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Carrier   string  `json:"carrier"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Edge is a communication link in the graph view
type Edge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// GraphView is a renderable form of the communication graph
type GraphView struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// BuildGraphView returns one node per aircraft, isolated ones included, and
// one edge per linked pair carrying its 3D distance
func BuildGraphView(list []aircraft.Aircraft, records []distance.Record, ranges RangeTable) GraphView {
	view := GraphView{
		Nodes: make([]Node, 0, len(list)),
		Edges: []Edge{},
	}

	for _, a := range list {
		view.Nodes = append(view.Nodes, Node{
			ID:        a.ICAO24,
			Label:     a.Label(),
			Carrier:   a.Carrier,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
		})
	}

	g := BuildGraph(list, records, ranges)
	emitted := make(map[pairKey]bool)
	for _, r := range records {
		id1, id2 := r.Aircraft1.ICAO24, r.Aircraft2.ICAO24
		if !g.HasEdge(id1, id2) {
			continue
		}

		key := canonicalPair(id1, id2)
		if emitted[key] {
			continue
		}
		emitted[key] = true

		view.Edges = append(view.Edges, Edge{
			From:     id1,
			To:       id2,
			Distance: r.DistanceKm,
		})
	}
	return view
}
