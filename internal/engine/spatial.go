package engine

import (
	"math"
	"sort"

	"github.com/epidemica/contagio-server/internal/domain/agent"
)

// NeighborIndex answers "which agents could be within the contact radius of
// agent i" without committing the transmission phase to a particular data
// structure. Implementations may over-report (the caller re-checks the exact
// Euclidean distance) but must never miss an agent inside the radius, and
// must return candidates in ascending agent order so infection decisions
// stay consistent with the iteration-order contract.
type NeighborIndex interface {
	Rebuild(agents []*agent.Agent)
	Near(i int, radius float64) []int
}

// bruteIndex is the literal all-pairs definition. Kept as the reference
// implementation for equivalence tests.
type bruteIndex struct {
	agents []*agent.Agent
}

func newBruteIndex() *bruteIndex { return &bruteIndex{} }

func (b *bruteIndex) Rebuild(agents []*agent.Agent) {
	b.agents = agents
}

func (b *bruteIndex) Near(i int, radius float64) []int {
	var out []int
	self := b.agents[i]
	for j, other := range b.agents {
		if j == i {
			continue
		}
		if math.Abs(other.X-self.X) <= radius {
			out = append(out, j)
		}
	}
	return out
}

// sweepIndex prunes candidate pairs with a sorted-by-x sweep: two agents
// cannot be within the contact radius unless their x positions are. The
// candidate set is identical to bruteIndex's for any radius.
type sweepIndex struct {
	agents []*agent.Agent
	byX    []int // agent indices sorted by x position
}

func newSweepIndex() *sweepIndex { return &sweepIndex{} }

func (s *sweepIndex) Rebuild(agents []*agent.Agent) {
	s.agents = agents
	if cap(s.byX) < len(agents) {
		s.byX = make([]int, len(agents))
	}
	s.byX = s.byX[:len(agents)]
	for i := range s.byX {
		s.byX[i] = i
	}
	sort.Slice(s.byX, func(a, b int) bool {
		return agents[s.byX[a]].X < agents[s.byX[b]].X
	})
}

func (s *sweepIndex) Near(i int, radius float64) []int {
	self := s.agents[i]
	lo := sort.Search(len(s.byX), func(k int) bool {
		return s.agents[s.byX[k]].X >= self.X-radius
	})
	hi := sort.Search(len(s.byX), func(k int) bool {
		return s.agents[s.byX[k]].X > self.X+radius
	})

	out := make([]int, 0, hi-lo)
	for _, j := range s.byX[lo:hi] {
		if j != i {
			out = append(out, j)
		}
	}
	sort.Ints(out)
	return out
}

// distance is the Euclidean distance between two agents.
func distance(a, b *agent.Agent) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
