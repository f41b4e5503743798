package engine

import "github.com/epidemica/contagio-server/internal/domain/agent"

// Stats holds the aggregate counters of a run. TotalInfected and
// TotalDeceased are cumulative and never decrease; PeakCases is the maximum
// concurrent case count observed at any tick boundary so far.
//
// "Cases" counts Exposed plus both infectious compartments. The broader
// definition was chosen over infectious-only because exposed agents are
// already committed infections and reporting them mirrors how caseloads are
// usually quoted.
type Stats struct {
	TotalInfected int `json:"total_infected"`
	TotalDeceased int `json:"total_deceased"`
	PeakCases     int `json:"peak_cases"`
}

// currentCases counts agents in Exposed or either infectious compartment.
func (m *Model) currentCases() int {
	cases := 0
	for _, a := range m.agents {
		switch a.Compartment() {
		case agent.Exposed, agent.InfectiousAsymptomatic, agent.InfectiousSymptomatic:
			cases++
		}
	}
	return cases
}
