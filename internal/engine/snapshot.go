package engine

// AgentView is the read-only per-agent state the display surface consumes:
// position, compartment, and whether the agent is isolating (so an isolating
// infectious agent can be drawn distinctly).
type AgentView struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Compartment string  `json:"compartment"`
	Isolating   bool    `json:"isolating"`
}

// Snapshot is the full view of a run at a tick boundary.
type Snapshot struct {
	RunID   string      `json:"run_id"`
	Tick    int         `json:"tick"`
	Running bool        `json:"running"`
	Stats   Stats       `json:"stats"`
	Agents  []AgentView `json:"agents"`
}

// Snapshot returns the current state of the run. It must only be taken at a
// tick boundary; the model never updates concurrently with a caller.
func (m *Model) Snapshot() Snapshot {
	views := make([]AgentView, len(m.agents))
	for i, a := range m.agents {
		views[i] = AgentView{
			ID:          a.ID,
			X:           a.X,
			Y:           a.Y,
			Compartment: a.Compartment().String(),
			Isolating:   a.Isolating(),
		}
	}
	return Snapshot{
		RunID:   m.runID,
		Tick:    m.ticks,
		Running: m.Running(),
		Stats:   m.stats,
		Agents:  views,
	}
}
