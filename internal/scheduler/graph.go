package scheduler

import "github.com/google/uuid"

// dependencyGraph maps a prerequisite job id to the set of job ids waiting
// on it. Not safe for concurrent use; the scheduler guards it with its own
// mutex.
type dependencyGraph struct {
	edges map[uuid.UUID]map[uuid.UUID]struct{}
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{edges: make(map[uuid.UUID]map[uuid.UUID]struct{})}
}

// addEdge records that dependent waits on prerequisite. Re-adding an
// existing edge is a no-op.
func (g *dependencyGraph) addEdge(prerequisite, dependent uuid.UUID) {
	set, ok := g.edges[prerequisite]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		g.edges[prerequisite] = set
	}
	set[dependent] = struct{}{}
}

// dependents returns the jobs waiting on the given prerequisite.
func (g *dependencyGraph) dependents(prerequisite uuid.UUID) []uuid.UUID {
	set := g.edges[prerequisite]
	if len(set) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// removeNode drops all edges keyed by id and removes id from every
// dependent set it appears in.
func (g *dependencyGraph) removeNode(id uuid.UUID) {
	delete(g.edges, id)
	for _, set := range g.edges {
		delete(set, id)
	}
}
