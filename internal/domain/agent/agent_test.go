package agent

import (
	"math/rand"
	"testing"
)

// fastParams returns constants with short dwell times so a whole infection
// episode fits in a handful of ticks.
func fastParams() Params {
	p := DefaultParams()
	p.IncubationTicks = 4
	p.InfectiousTicks = 3
	return p
}

func TestExposeOnlyFromSusceptible(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := fastParams()
	a := New(0, 1, 1, false, false)

	if err := a.Expose(0, rng, p); err != nil {
		t.Fatalf("Expected first exposure to succeed, got %v", err)
	}
	if a.Compartment() != Exposed {
		t.Errorf("Expected EXPOSED after Expose, got %s", a.Compartment())
	}

	// Act: expose again while already exposed
	if err := a.Expose(1, rng, p); err == nil {
		t.Errorf("Expected error exposing a non-susceptible agent")
	}
	if a.Compartment() != Exposed {
		t.Errorf("Expected failed exposure to leave compartment unchanged, got %s", a.Compartment())
	}
}

func TestIncubationAndRecoverySchedule(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := fastParams()
	p.SymptomaticProb = 1
	p.FatalityProb = 0

	a := New(0, 1, 1, false, true)
	if err := a.Expose(0, rng, p); err != nil {
		t.Fatalf("Expose: %v", err)
	}

	// Ticks 1..3 are inside the incubation window.
	for tick := 1; tick < p.IncubationTicks; tick++ {
		if tr := a.AdvanceState(tick, p); tr != TransitionNone {
			t.Fatalf("Expected no transition at tick %d, got %v", tick, tr)
		}
	}

	// Tick 4: incubation elapsed, case turns infectious and isolates.
	if tr := a.AdvanceState(p.IncubationTicks, p); tr != TransitionInfectious {
		t.Fatalf("Expected TransitionInfectious at tick %d, got %v", p.IncubationTicks, tr)
	}
	if a.Compartment() != InfectiousSymptomatic {
		t.Errorf("Expected INFECTIOUS_SYMPTOMATIC, got %s", a.Compartment())
	}
	if !a.Isolating() {
		t.Errorf("Expected willing symptomatic agent to isolate at symptom onset")
	}
	if a.IsInfectiousAndActive() {
		t.Errorf("Expected isolating agent to be inactive for transmission")
	}

	// Infectious window: ticks 5..6 hold, tick 7 resolves.
	for tick := p.IncubationTicks + 1; tick < p.IncubationTicks+p.InfectiousTicks; tick++ {
		if tr := a.AdvanceState(tick, p); tr != TransitionNone {
			t.Fatalf("Expected no transition at tick %d, got %v", tick, tr)
		}
	}
	if tr := a.AdvanceState(p.IncubationTicks+p.InfectiousTicks, p); tr != TransitionRecovered {
		t.Fatalf("Expected TransitionRecovered, got %v", tr)
	}
	if a.Compartment() != Recovered {
		t.Errorf("Expected RECOVERED, got %s", a.Compartment())
	}
	if a.Isolating() {
		t.Errorf("Expected isolation to end when the episode resolves")
	}

	// Recovered is terminal for the rest of the run.
	if tr := a.AdvanceState(100, p); tr != TransitionNone {
		t.Errorf("Expected RECOVERED to be terminal, got %v", tr)
	}
}

func TestFatalDrawEndsInDeath(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := fastParams()
	p.SymptomaticProb = 0
	p.FatalityProb = 1

	a := New(0, 1, 1, false, false)
	if err := a.Expose(0, rng, p); err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if a.AdvanceState(p.IncubationTicks, p) != TransitionInfectious {
		t.Fatalf("Expected infectious transition after incubation")
	}
	if a.Compartment() != InfectiousAsymptomatic {
		t.Errorf("Expected INFECTIOUS_ASYMPTOMATIC with SymptomaticProb=0, got %s", a.Compartment())
	}
	if a.AdvanceState(p.IncubationTicks+p.InfectiousTicks, p) != TransitionDeceased {
		t.Fatalf("Expected deceased transition with FatalityProb=1")
	}
	if a.Compartment() != Deceased {
		t.Errorf("Expected DECEASED, got %s", a.Compartment())
	}
	if a.AdvanceState(1000, p) != TransitionNone {
		t.Errorf("Expected DECEASED to be terminal")
	}
}

func TestDeceasedAndIsolatingStayPut(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := fastParams()
	p.SymptomaticProb = 1
	p.FatalityProb = 1

	a := New(0, 5, 5, false, true)
	if err := a.Expose(0, rng, p); err != nil {
		t.Fatalf("Expose: %v", err)
	}
	a.AdvanceState(p.IncubationTicks, p)
	if !a.Isolating() {
		t.Fatalf("Expected isolation at symptom onset")
	}

	x, y := a.X, a.Y
	for i := 0; i < 20; i++ {
		a.StepMovement(rng, p, 10, 10)
	}
	if a.X != x || a.Y != y {
		t.Errorf("Expected isolating agent to hold position, moved to (%g,%g)", a.X, a.Y)
	}

	a.AdvanceState(p.IncubationTicks+p.InfectiousTicks, p)
	if a.Compartment() != Deceased {
		t.Fatalf("Expected agent to die, got %s", a.Compartment())
	}
	x, y = a.X, a.Y
	for i := 0; i < 20; i++ {
		a.StepMovement(rng, p, 10, 10)
	}
	if a.X != x || a.Y != y {
		t.Errorf("Expected deceased agent to hold position, moved to (%g,%g)", a.X, a.Y)
	}
}

func TestMovementStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := fastParams()
	p.StepSize = 2

	// Start in a corner so reflection is exercised immediately.
	a := New(0, 0.1, 0.1, false, false)
	for i := 0; i < 500; i++ {
		a.StepMovement(rng, p, 10, 10)
		if a.X < 0 || a.X > 10 || a.Y < 0 || a.Y > 10 {
			t.Fatalf("Agent escaped the area at step %d: (%g,%g)", i, a.X, a.Y)
		}
	}
}

func TestMaskFactor(t *testing.T) {
	p := DefaultParams()
	masked := New(0, 0, 0, true, false)
	bare := New(1, 0, 0, false, false)

	if got := masked.MaskFactor(p); got != p.MaskRiskFactor {
		t.Errorf("Expected mask factor %g for masked agent, got %g", p.MaskRiskFactor, got)
	}
	if got := bare.MaskFactor(p); got != 1.0 {
		t.Errorf("Expected mask factor 1.0 for unmasked agent, got %g", got)
	}
}

func TestSeedIndexCaseIsAsymptomaticAndActive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := fastParams()
	// Even when every ordinary case turns symptomatic, the index case is
	// asymptomatic and active so the outbreak can take hold.
	p.SymptomaticProb = 1

	seed := New(0, 1, 1, false, true)
	seed.SeedInfectious(0, rng, p)
	if seed.Compartment() != InfectiousAsymptomatic {
		t.Errorf("Expected seeded case to be INFECTIOUS_ASYMPTOMATIC, got %s", seed.Compartment())
	}
	if seed.Symptomatic() {
		t.Errorf("Expected the index case to be asymptomatic")
	}
	if seed.Isolating() {
		t.Errorf("Expected the index case to start outside isolation")
	}
	if !seed.IsInfectiousAndActive() {
		t.Errorf("Expected the index case to be an active transmission source")
	}
}

func TestSeedFatalDrawResolvesToDeath(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := fastParams()
	p.FatalityProb = 1

	seed := New(0, 1, 1, false, false)
	seed.SeedInfectious(0, rng, p)
	if seed.AdvanceState(p.InfectiousTicks, p) != TransitionDeceased {
		t.Errorf("Expected a fatal seed to die when its infectious window ends")
	}
}
