// Package engine contains the simulation model and its tick loop.
// This is the heartbeat of contagio.
//
// ARCHITECTURAL RULE: the Model is the only owner of the agent collection
// and the random source. Nothing outside this package mutates agent state;
// external collaborators observe runs through read-only snapshots and the
// event log.
package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/epidemica/contagio-server/internal/domain/agent"
	"github.com/epidemica/contagio-server/internal/events"
	"github.com/epidemica/contagio-server/internal/platform/logger"
	"github.com/epidemica/contagio-server/internal/platform/metrics"
	"github.com/google/uuid"
)

// Model tracks every agent and the aggregate state of one simulation run.
// It is advanced by calling Tick, never by touching agents directly, and a
// tick always runs its phases in the same order: movement, transmission,
// state advancement, statistics.
type Model struct {
	cfg    Config
	rng    *rand.Rand
	agents []*agent.Agent
	index  NeighborIndex

	ticks  int
	stats  Stats
	seeded int

	runID    string
	eventLog *events.EventLog
	logger   *logger.Logger
}

// ExposurePayload names the infectious party of a successful transmission.
type ExposurePayload struct {
	SourceID int `json:"source_id"`
}

// NewModel validates the configuration, lays the population out on grid cell
// centers, assigns masks and isolation willingness by exact proportion, and
// seeds the center-most agent as the index case. The event log may be nil
// for runs that do not need a history.
func NewModel(cfg Config, eventLog *events.EventLog, log *logger.Logger) (*Model, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		index:    newSweepIndex(),
		runID:    uuid.NewString(),
		eventLog: eventLog,
		logger:   log,
	}

	n := cfg.Population
	masks := proportionFlags(n, cfg.MaskProportion, m.rng)
	isolators := proportionFlags(n, cfg.SelfIsolationProportion, m.rng)

	side := int(math.Ceil(math.Sqrt(float64(n))))
	m.agents = make([]*agent.Agent, n)
	for i := 0; i < n; i++ {
		col := i % side
		row := i / side
		x := (float64(col) + 0.5) * cfg.Width / float64(side)
		y := (float64(row) + 0.5) * cfg.Height / float64(side)
		m.agents[i] = agent.New(i, x, y, masks[i], isolators[i])
	}

	if n > 0 {
		center := (side/2)*side + side/2
		if center >= n {
			center = n - 1
		}
		m.agents[center].SeedInfectious(0, m.rng, cfg.Params)
		m.seeded = 1
	}

	m.emit(events.EventTypeRunStarted, events.SystemAgentID, 0, cfg)
	return m, nil
}

// proportionFlags returns n flags of which round(proportion*n) are true,
// shuffled so the attribute is spread uniformly over the population.
func proportionFlags(n int, proportion float64, rng *rand.Rand) []bool {
	flags := make([]bool, n)
	k := int(math.Round(proportion * float64(n)))
	for i := 0; i < k && i < n; i++ {
		flags[i] = true
	}
	rng.Shuffle(n, func(i, j int) {
		flags[i], flags[j] = flags[j], flags[i]
	})
	return flags
}

// RunID identifies this run in the event log and the run registry.
func (m *Model) RunID() string { return m.runID }

// NumAgents returns the population size.
func (m *Model) NumAgents() int { return len(m.agents) }

// TickCount returns the number of completed update cycles.
func (m *Model) TickCount() int { return m.ticks }

// Running reports whether the tick budget allows further updates.
func (m *Model) Running() bool { return m.ticks < m.cfg.TickBudget }

// Stats returns the aggregate statistics as of the last tick boundary.
func (m *Model) Stats() Stats { return m.stats }

// Tick advances the simulation by one update cycle. Phase order is fixed:
// later phases depend on earlier phases' results within the same tick.
func (m *Model) Tick() {
	current := m.ticks

	// Movement phase. Deceased and isolating agents stay put on their own.
	for _, a := range m.agents {
		a.StepMovement(m.rng, m.cfg.Params, m.cfg.Width, m.cfg.Height)
	}

	// Proximity/transmission phase.
	newlyExposed := m.transmissionPhase(current)

	// State-advancement phase.
	for _, a := range m.agents {
		switch a.AdvanceState(current, m.cfg.Params) {
		case agent.TransitionInfectious:
			m.logger.Event(string(events.EventTypeAgentInfectious), a.ID, a.Compartment().String())
			m.emit(events.EventTypeAgentInfectious, a.ID, current, a.Compartment().String())
			if a.Isolating() {
				m.emit(events.EventTypeAgentIsolated, a.ID, current, nil)
			}
		case agent.TransitionRecovered:
			m.logger.Event(string(events.EventTypeAgentRecovered), a.ID, "")
			m.emit(events.EventTypeAgentRecovered, a.ID, current, nil)
		case agent.TransitionDeceased:
			m.stats.TotalDeceased++
			m.logger.Event(string(events.EventTypeAgentDeceased), a.ID, "")
			m.emit(events.EventTypeAgentDeceased, a.ID, current, nil)
		}
	}

	// Statistics update. The index case joins the cumulative count on the
	// first completed tick, so a zero-tick run reports all-zero statistics.
	if current == 0 {
		m.stats.TotalInfected += m.seeded
	}
	m.stats.TotalInfected += newlyExposed
	if cases := m.currentCases(); cases > m.stats.PeakCases {
		m.stats.PeakCases = cases
	}

	m.ticks++
}

// transmissionPhase evaluates every (infectious-active, susceptible) pair
// within the contact radius, in iteration order, and returns how many agents
// were exposed this tick. A successful exposure moves the target out of
// Susceptible immediately, so it cannot be exposed twice in one tick:
// first success wins and remaining contacts are skipped.
func (m *Model) transmissionPhase(tick int) int {
	m.index.Rebuild(m.agents)
	p := m.cfg.Params

	exposed := 0
	for i, src := range m.agents {
		if !src.IsInfectiousAndActive() {
			continue
		}
		for _, j := range m.index.Near(i, p.ContactRadius) {
			dst := m.agents[j]
			if dst.Compartment() != agent.Susceptible {
				continue
			}
			if distance(src, dst) > p.ContactRadius {
				continue
			}
			metrics.Get().RecordContact()

			prob := p.BaseTransmissionProb * src.MaskFactor(p) * dst.MaskFactor(p)
			if m.rng.Float64() >= prob {
				continue
			}
			if err := dst.Expose(tick, m.rng, p); err != nil {
				// Impossible given the Susceptible check above; a failure
				// here is a transmission-phase bug, not a runtime condition.
				m.logger.Error("transmission phase: %v", err)
				continue
			}
			metrics.Get().RecordTransmission()
			exposed++
			m.logger.Event(string(events.EventTypeAgentExposed), dst.ID, fmt.Sprintf("source=%d", src.ID))
			m.emit(events.EventTypeAgentExposed, dst.ID, tick, ExposurePayload{SourceID: src.ID})
		}
	}
	return exposed
}

// emit appends an event to the run history, if one is attached.
func (m *Model) emit(t events.EventType, agentID, tick int, payload interface{}) {
	if m.eventLog == nil {
		return
	}
	m.eventLog.Append(events.SimEvent{
		ID:        events.GenerateEventID(),
		RunID:     m.runID,
		Timestamp: time.Now(),
		Type:      t,
		AgentID:   agentID,
		Tick:      tick,
		Payload:   payload,
	})
}
