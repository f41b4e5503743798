// Package agent defines the core domain entity of the epidemic simulation.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package agent

import (
	"fmt"
	"math"
	"math/rand"
)

// TicksPerDay is the number of ticks used to model one simulated day.
// One tick models 15 minutes.
const TicksPerDay = 4 * 24

// Compartment represents an agent's current stage of infection.
type Compartment int

const (
	Susceptible Compartment = iota
	Exposed
	InfectiousAsymptomatic
	InfectiousSymptomatic
	Recovered
	Deceased
)

// String returns the wire and log name of the compartment.
func (c Compartment) String() string {
	switch c {
	case Susceptible:
		return "SUSCEPTIBLE"
	case Exposed:
		return "EXPOSED"
	case InfectiousAsymptomatic:
		return "INFECTIOUS_ASYMPTOMATIC"
	case InfectiousSymptomatic:
		return "INFECTIOUS_SYMPTOMATIC"
	case Recovered:
		return "RECOVERED"
	case Deceased:
		return "DECEASED"
	}
	return "UNKNOWN"
}

// Infectious reports whether the compartment can transmit at all.
func (c Compartment) Infectious() bool {
	return c == InfectiousAsymptomatic || c == InfectiousSymptomatic
}

// Params holds the fixed model constants of a run. They are part of the
// simulation contract, not user-facing inputs.
type Params struct {
	ContactRadius        float64 // maximum transmission distance
	StepSize             float64 // movement magnitude per tick
	BaseTransmissionProb float64 // per contact, before mask adjustment
	MaskRiskFactor       float64 // multiplier applied once per masked party
	SymptomaticProb      float64 // probability a case ever shows symptoms
	FatalityProb         float64 // probability a case ends in death
	IncubationTicks      int     // Exposed -> Infectious dwell time
	InfectiousTicks      int     // Infectious -> terminal dwell time
}

// DefaultParams returns the stock model constants. The probabilities come
// from research values gathered in late 2020; the mask factor 0.37 is chosen
// so that a masked-to-masked contact retains the product 0.37 * 0.37 ~ 0.134.
func DefaultParams() Params {
	return Params{
		ContactRadius:        5,
		StepSize:             1,
		BaseTransmissionProb: 0.037,
		MaskRiskFactor:       0.37,
		SymptomaticProb:      0.80,
		FatalityProb:         321734.0 / 18170062.0,
		IncubationTicks:      5 * TicksPerDay,
		InfectiousTicks:      10 * TicksPerDay,
	}
}

// Transition describes what AdvanceState did to the agent on a given tick.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionInfectious
	TransitionRecovered
	TransitionDeceased
)

// Agent represents one simulated individual. Movement and state advancement
// are driven exclusively by the owning model, once per tick.
type Agent struct {
	ID int

	X, Y float64

	WearsMask       bool
	WillSelfIsolate bool

	compartment Compartment
	isolating   bool

	// Set once at exposure time; the draws are never re-sampled.
	exposedTick    int
	infectiousTick int
	symptomatic    bool
	fatal          bool
}

// New creates a susceptible agent at the given grid position.
func New(id int, x, y float64, wearsMask, willSelfIsolate bool) *Agent {
	return &Agent{
		ID:              id,
		X:               x,
		Y:               y,
		WearsMask:       wearsMask,
		WillSelfIsolate: willSelfIsolate,
		compartment:     Susceptible,
	}
}

// Compartment returns the agent's current compartment.
func (a *Agent) Compartment() Compartment {
	return a.compartment
}

// Isolating reports whether the agent is currently self-isolating.
func (a *Agent) Isolating() bool {
	return a.isolating
}

// Symptomatic reports whether the agent's case is, or will become, symptomatic.
// Only meaningful after exposure.
func (a *Agent) Symptomatic() bool {
	return a.symptomatic
}

// IsInfectiousAndActive reports whether the agent can currently transmit:
// it must be in an infectious compartment and not self-isolating.
func (a *Agent) IsInfectiousAndActive() bool {
	return a.compartment.Infectious() && !a.isolating
}

// MaskFactor returns the agent's own contribution to the transmission
// probability of a contact. Masks reduce both outgoing and incoming risk,
// so the factor applies once for each masked party.
func (a *Agent) MaskFactor(p Params) float64 {
	if a.WearsMask {
		return p.MaskRiskFactor
	}
	return 1.0
}

// StepMovement moves the agent one step of fixed magnitude in a uniformly
// random direction, reflecting at the area boundary so the population stays
// closed. Deceased and self-isolating agents stay in place.
func (a *Agent) StepMovement(rng *rand.Rand, p Params, width, height float64) {
	if a.compartment == Deceased || a.isolating {
		return
	}

	dir := rng.Float64() * 2 * math.Pi
	a.X = reflect(a.X+p.StepSize*math.Cos(dir), width)
	a.Y = reflect(a.Y+p.StepSize*math.Sin(dir), height)
}

// reflect mirrors v back into [0, bound].
func reflect(v, bound float64) float64 {
	if v < 0 {
		v = -v
	}
	if v > bound {
		v = 2*bound - v
	}
	// A step larger than the area could still escape after one mirror.
	if v < 0 {
		v = 0
	} else if v > bound {
		v = bound
	}
	return v
}

// Expose transitions the agent from Susceptible to Exposed and fixes the two
// outcome draws of this infection episode: whether the case will turn
// symptomatic, and whether it ends in death. Calling Expose on an agent that
// is not susceptible is a contract violation in the transmission phase and
// returns an error so it cannot be silently swallowed.
func (a *Agent) Expose(tick int, rng *rand.Rand, p Params) error {
	if a.compartment != Susceptible {
		return fmt.Errorf("agent %d: expose called in compartment %s", a.ID, a.compartment)
	}

	a.compartment = Exposed
	a.exposedTick = tick
	a.symptomatic = rng.Float64() < p.SymptomaticProb
	a.fatal = rng.Float64() < p.FatalityProb
	return nil
}

// SeedInfectious puts a freshly created agent directly into the asymptomatic
// infectious compartment, drawing only the fatal outcome. Used for the index
// case at construction. The seed case is always asymptomatic: a symptomatic
// seed willing to isolate would lock itself away at tick zero and the
// outbreak could never take hold.
func (a *Agent) SeedInfectious(tick int, rng *rand.Rand, p Params) {
	a.symptomatic = false
	a.fatal = rng.Float64() < p.FatalityProb
	a.exposedTick = tick
	a.infectiousTick = tick
	a.compartment = InfectiousAsymptomatic
}

// AdvanceState applies the scheduled compartment transition for the current
// tick, if any. Dwell times are fixed durations measured from the tick the
// current compartment was entered; only the branch taken is probabilistic,
// and that branch was already drawn at exposure time.
func (a *Agent) AdvanceState(tick int, p Params) Transition {
	switch a.compartment {
	case Exposed:
		if tick-a.exposedTick < p.IncubationTicks {
			return TransitionNone
		}
		a.infectiousTick = tick
		if a.symptomatic {
			a.compartment = InfectiousSymptomatic
			if a.WillSelfIsolate {
				a.isolating = true
			}
		} else {
			a.compartment = InfectiousAsymptomatic
		}
		return TransitionInfectious

	case InfectiousAsymptomatic, InfectiousSymptomatic:
		if tick-a.infectiousTick < p.InfectiousTicks {
			return TransitionNone
		}
		a.isolating = false
		if a.fatal {
			a.compartment = Deceased
			return TransitionDeceased
		}
		a.compartment = Recovered
		return TransitionRecovered
	}

	return TransitionNone
}
