package engine

import (
	"fmt"

	"github.com/epidemica/contagio-server/internal/domain/agent"
)

// Config holds the user-facing construction parameters of a run.
// Validation happens once, at model construction; nothing is checked mid-run.
type Config struct {
	// Population is the number of agents to simulate. Zero is a legal
	// boundary value and yields an immediately finished, all-zero run.
	Population int

	// Width and Height are the continuous bounds of the simulated area.
	Width  float64
	Height float64

	// MaskProportion is the fraction of agents created with a mask.
	// Assignment is exact-proportion: round(proportion * population) agents
	// get the attribute, shuffled across the population.
	MaskProportion float64

	// SelfIsolationProportion is the fraction of agents that will isolate
	// upon becoming symptomatic, assigned the same way as masks.
	SelfIsolationProportion float64

	// TickBudget is the total number of ticks the run is allowed to advance.
	TickBudget int

	// Seed feeds the model-owned random source. Identical seeds with
	// identical parameters reproduce identical runs.
	Seed int64

	// Params are the fixed model constants. Zero value means DefaultParams.
	Params agent.Params
}

// Validate rejects malformed construction parameters, naming the offending
// field. A model is never partially constructed from an invalid config.
func (c Config) Validate() error {
	if c.Population < 0 {
		return fmt.Errorf("config: population must be >= 0, got %d", c.Population)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: area bounds must be positive, got %gx%g", c.Width, c.Height)
	}
	if c.MaskProportion < 0 || c.MaskProportion > 1 {
		return fmt.Errorf("config: mask proportion must be in [0,1], got %g", c.MaskProportion)
	}
	if c.SelfIsolationProportion < 0 || c.SelfIsolationProportion > 1 {
		return fmt.Errorf("config: self-isolation proportion must be in [0,1], got %g", c.SelfIsolationProportion)
	}
	if c.TickBudget < 0 {
		return fmt.Errorf("config: tick budget must be >= 0, got %d", c.TickBudget)
	}

	p := c.Params
	if p.ContactRadius <= 0 {
		return fmt.Errorf("config: contact radius must be positive, got %g", p.ContactRadius)
	}
	if p.StepSize <= 0 {
		return fmt.Errorf("config: step size must be positive, got %g", p.StepSize)
	}
	for name, v := range map[string]float64{
		"base transmission probability": p.BaseTransmissionProb,
		"mask risk factor":              p.MaskRiskFactor,
		"symptomatic probability":       p.SymptomaticProb,
		"fatality probability":          p.FatalityProb,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %g", name, v)
		}
	}
	if p.IncubationTicks <= 0 || p.InfectiousTicks <= 0 {
		return fmt.Errorf("config: dwell durations must be positive, got incubation=%d infectious=%d",
			p.IncubationTicks, p.InfectiousTicks)
	}
	return nil
}

// withDefaults fills in DefaultParams when the caller left Params zeroed.
func (c Config) withDefaults() Config {
	if c.Params == (agent.Params{}) {
		c.Params = agent.DefaultParams()
	}
	return c
}
