package connectivity

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/distance"
	"github.com/yegors/co-los/internal/geo"
)

// kmPerDegree is the equatorial length of one degree of longitude
var kmPerDegree = geo.EarthRadiusKm * math.Pi / 180

// onEquator places aircraft along the equator at the given offsets in km,
// at an altitude giving roughly 130 km of radio horizon each
func onEquator(offsetsKm ...float64) []aircraft.Aircraft {
	list := make([]aircraft.Aircraft, len(offsetsKm))
	for i, km := range offsetsKm {
		list[i] = aircraft.Aircraft{
			ICAO24:      string(rune('A' + i)),
			Callsign:    fmt.Sprintf("AAL%d", i+1),
			Carrier:     "AAL",
			Latitude:    0,
			Longitude:   km / kmPerDegree,
			GeoAltitude: 1326.3,
		}
	}
	return list
}

func aalRange(km float64) RangeTable {
	return RangeTable{DefaultKm: 200, ByCarrier: map[string]float64{"AAL": km}}
}

func TestScenarioRelayThroughMiddle(t *testing.T) {
	list := onEquator(0, 100, 200)
	records := distance.AllPairs(list)

	for _, r := range records {
		if r.Aircraft1.ICAO24 == "A" && r.Aircraft2.ICAO24 == "B" && !r.WithinLOS {
			t.Fatalf("Expected A-B within LOS, horizon %v distance %v", r.RadioHorizonKm, r.DistanceKm)
		}
	}

	got := CountCommunicationPaths(list, records, aalRange(150))
	want := HopCounts{Direct: 2, OneHop: 1}
	if got != want {
		t.Errorf("CountCommunicationPaths = %+v, want %+v", got, want)
	}

	g := BuildGraph(list, records, aalRange(150))
	if g.HasEdge("A", "C") {
		t.Error("A-C at 200 km should not be linked with a 150 km range")
	}
	if !g.HasEdge("A", "B") || !g.HasEdge("C", "B") {
		t.Error("Expected A-B and B-C edges")
	}
}

func TestChainBeyondFourHops(t *testing.T) {
	// Six aircraft 100 km apart: pairs span 1 to 5 hops
	list := onEquator(0, 100, 200, 300, 400, 500)
	records := distance.AllPairs(list)

	got := CountCommunicationPaths(list, records, aalRange(150))
	want := HopCounts{Direct: 5, OneHop: 4, TwoHop: 3, ThreeHop: 2}
	if got != want {
		t.Errorf("CountCommunicationPaths = %+v, want %+v", got, want)
	}

	// A-F is 5 hops and must not be counted anywhere
	if total := len(records); got.Total() != total-1 {
		t.Errorf("Counted %d pairs, want %d (all but A-F)", got.Total(), total-1)
	}
}

func TestDegenerateInputs(t *testing.T) {
	ranges := aalRange(150)

	if got := CountCommunicationPaths(nil, nil, ranges); got != (HopCounts{}) {
		t.Errorf("Empty input counts = %+v, want zero", got)
	}

	one := onEquator(0)
	if got := CountCommunicationPaths(one, distance.AllPairs(one), ranges); got != (HopCounts{}) {
		t.Errorf("Single aircraft counts = %+v, want zero", got)
	}

	view := BuildGraphView(nil, nil, ranges)
	if view.Nodes == nil || view.Edges == nil || len(view.Nodes) != 0 || len(view.Edges) != 0 {
		t.Errorf("Empty graph view = %+v, want empty non-nil slices", view)
	}

	if g := BuildGraph(nil, nil, ranges); len(g) != 0 {
		t.Errorf("Empty graph has %d entries", len(g))
	}
}

func TestCoLocatedAircraftAreDirect(t *testing.T) {
	list := []aircraft.Aircraft{
		{ICAO24: "x", Carrier: "DAL", Latitude: 10, Longitude: 20, GeoAltitude: 9000},
		{ICAO24: "y", Carrier: "UAL", Latitude: 10, Longitude: 20, GeoAltitude: 9000},
	}
	got := CountCommunicationPaths(list, distance.AllPairs(list), RangeTable{DefaultKm: 0.001})
	if got != (HopCounts{Direct: 1}) {
		t.Errorf("Co-located counts = %+v, want one direct pair", got)
	}
}

func TestEdgeDoesNotRequireLOS(t *testing.T) {
	// Both on the ground: zero horizon, but within range
	list := []aircraft.Aircraft{
		{ICAO24: "g1", Latitude: 0, Longitude: 0},
		{ICAO24: "g2", Latitude: 0, Longitude: 50 / kmPerDegree},
	}
	records := distance.AllPairs(list)
	if records[0].WithinLOS {
		t.Fatal("Ground aircraft 50 km apart should not be within LOS")
	}

	g := BuildGraph(list, records, RangeTable{DefaultKm: 200})
	if !g.HasEdge("g1", "g2") {
		t.Error("Expected edge between ground aircraft within range")
	}
}

func TestRangeUsesMinimumOfPair(t *testing.T) {
	list := []aircraft.Aircraft{
		{ICAO24: "long", Carrier: "UAE", Latitude: 0, Longitude: 0, GeoAltitude: 10000},
		{ICAO24: "short", Carrier: "SWA", Latitude: 0, Longitude: 190 / kmPerDegree, GeoAltitude: 10000},
		{ICAO24: "none", Latitude: 0, Longitude: -190 / kmPerDegree, GeoAltitude: 10000},
	}
	ranges := RangeTable{
		DefaultKm: 200,
		ByCarrier: map[string]float64{"UAE": 240, "SWA": 180},
	}

	g := BuildGraph(list, distance.AllPairs(list), ranges)
	if g.HasEdge("long", "short") {
		t.Error("190 km exceeds SWA range of 180 km")
	}
	if !g.HasEdge("long", "none") {
		t.Error("190 km is within min(240, default 200)")
	}
}

func TestRangeFor(t *testing.T) {
	table := RangeTable{DefaultKm: 200, ByCarrier: map[string]float64{"DLH": 220}}
	tests := []struct {
		carrier string
		want    float64
	}{
		{"DLH", 220},
		{"XYZ", 200},
		{"", 200},
	}
	for _, tt := range tests {
		if got := table.RangeFor(tt.carrier); got != tt.want {
			t.Errorf("RangeFor(%q) = %v, want %v", tt.carrier, got, tt.want)
		}
	}
	if got := (RangeTable{DefaultKm: 150}).RangeFor("DLH"); got != 150 {
		t.Errorf("RangeFor with nil map = %v, want 150", got)
	}
}

func TestUnknownAircraftInRecordsUseDefault(t *testing.T) {
	list := []aircraft.Aircraft{{ICAO24: "known", Carrier: "AAL"}}
	records := []distance.Record{
		{Aircraft1: distance.Endpoint{ICAO24: "known"}, Aircraft2: distance.Endpoint{ICAO24: "ghost", Carrier: "AAL"}, DistanceKm: 180},
		{Aircraft1: distance.Endpoint{ICAO24: "known"}, Aircraft2: distance.Endpoint{ICAO24: "known"}, DistanceKm: 0},
	}

	g := BuildGraph(list, records, RangeTable{DefaultKm: 200, ByCarrier: map[string]float64{"AAL": 190}})
	if !g.HasEdge("known", "ghost") {
		t.Error("Expected ghost to fall back to the default range")
	}
	if g.HasEdge("known", "known") {
		t.Error("Self-loops must never be added")
	}
}

func TestBuildGraphViewIncludesIsolatedNodes(t *testing.T) {
	list := onEquator(0, 100, 1000)
	list[2].Callsign = ""

	view := BuildGraphView(list, distance.AllPairs(list), aalRange(150))

	if len(view.Nodes) != len(list) {
		t.Fatalf("Got %d nodes, want %d", len(view.Nodes), len(list))
	}
	for i, n := range view.Nodes {
		if n.ID != list[i].ICAO24 {
			t.Errorf("Node %d id = %s, want %s (input order)", i, n.ID, list[i].ICAO24)
		}
	}
	if view.Nodes[0].Label != "AAL1" || view.Nodes[2].Label != "C" {
		t.Errorf("Unexpected labels: %q %q", view.Nodes[0].Label, view.Nodes[2].Label)
	}
	if view.Nodes[2].Carrier != "AAL" || view.Nodes[1].Longitude != list[1].Longitude {
		t.Errorf("Node metadata not carried: %+v", view.Nodes)
	}

	if len(view.Edges) != 1 {
		t.Fatalf("Got %d edges, want 1", len(view.Edges))
	}
	e := view.Edges[0]
	if e.From != "A" || e.To != "B" || math.Abs(e.Distance-100) > 1e-6 {
		t.Errorf("Edge = %+v, want A-B at 100 km", e)
	}
}

func TestBuildGraphViewDeduplicatesEdges(t *testing.T) {
	list := onEquator(0, 50)
	records := distance.AllPairs(list)
	// Same pair reported again in reverse order
	dup := records[0]
	dup.Aircraft1, dup.Aircraft2 = dup.Aircraft2, dup.Aircraft1
	records = append(records, dup)

	view := BuildGraphView(list, records, aalRange(150))
	if len(view.Edges) != 1 {
		t.Errorf("Got %d edges, want 1", len(view.Edges))
	}
}

// referenceCounts reproduces the depth-limited BFS definition: a target is
// 1hop if reachable within 2 edges and not direct, 2hop within 3 and not
// already classified, 3hop within 4 likewise
func referenceCounts(list []aircraft.Aircraft, records []distance.Record, ranges RangeTable) HopCounts {
	g := BuildGraph(list, records, ranges)
	buckets := [4]map[pairKey]bool{{}, {}, {}, {}}

	for _, a := range list {
		direct := g.Neighbors(a.ICAO24)
		within2 := ReachableWithinHops(g, a.ICAO24, 2)
		within3 := ReachableWithinHops(g, a.ICAO24, 3)
		within4 := ReachableWithinHops(g, a.ICAO24, 4)

		for n := range direct {
			buckets[0][canonicalPair(a.ICAO24, n)] = true
		}
		for n := range within2 {
			if !direct.Has(n) {
				buckets[1][canonicalPair(a.ICAO24, n)] = true
			}
		}
		for n := range within3 {
			if !direct.Has(n) && !within2.Has(n) {
				buckets[2][canonicalPair(a.ICAO24, n)] = true
			}
		}
		for n := range within4 {
			if !direct.Has(n) && !within2.Has(n) && !within3.Has(n) {
				buckets[3][canonicalPair(a.ICAO24, n)] = true
			}
		}
	}

	return HopCounts{
		Direct:   len(buckets[0]),
		OneHop:   len(buckets[1]),
		TwoHop:   len(buckets[2]),
		ThreeHop: len(buckets[3]),
	}
}

func randomFleet(rng *rand.Rand, n int) []aircraft.Aircraft {
	carriers := []string{"DAL", "UAL", "SWA", ""}
	list := make([]aircraft.Aircraft, n)
	for i := range list {
		list[i] = aircraft.Aircraft{
			ICAO24:      fmt.Sprintf("%06x", rng.Intn(1<<24)),
			Carrier:     carriers[rng.Intn(len(carriers))],
			Latitude:    35 + rng.Float64()*8,
			Longitude:   -100 + rng.Float64()*10,
			GeoAltitude: rng.Float64() * 12000,
		}
	}
	return list
}

func TestMinHopBucketsMatchDepthLimitedDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ranges := RangeTable{
		DefaultKm: 120,
		ByCarrier: map[string]float64{"DAL": 150, "UAL": 90, "SWA": 200},
	}

	for trial := 0; trial < 25; trial++ {
		list := randomFleet(rng, 5+rng.Intn(30))
		records := distance.AllPairs(list)

		got := CountCommunicationPaths(list, records, ranges)
		want := referenceCounts(list, records, ranges)
		if got != want {
			t.Fatalf("Trial %d: got %+v, want %+v", trial, got, want)
		}
	}
}

func TestBucketsPartitionReachablePairs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ranges := RangeTable{DefaultKm: 100}

	for trial := 0; trial < 10; trial++ {
		list := randomFleet(rng, 20)
		records := distance.AllPairs(list)
		g := BuildGraph(list, records, ranges)

		reachable := make(map[pairKey]bool)
		for _, a := range list {
			for n := range ReachableWithinHops(g, a.ICAO24, MaxRelayHops) {
				reachable[canonicalPair(a.ICAO24, n)] = true
			}
		}

		counts := CountCommunicationPaths(list, records, ranges)
		if counts.Total() != len(reachable) {
			t.Fatalf("Trial %d: buckets sum to %d, want %d reachable pairs", trial, counts.Total(), len(reachable))
		}
		if counts.Direct != g.EdgeCount() {
			t.Fatalf("Trial %d: direct = %d, want %d edges", trial, counts.Direct, g.EdgeCount())
		}
	}
}
