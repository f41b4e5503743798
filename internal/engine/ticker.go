package engine

import (
	"context"
	"time"

	"github.com/epidemica/contagio-server/internal/domain/agent"
	"github.com/epidemica/contagio-server/internal/events"
	"github.com/epidemica/contagio-server/internal/platform/logger"
	"github.com/epidemica/contagio-server/internal/platform/metrics"
)

// DefaultTickRate is how often the live server advances the model. One tick
// models 15 simulated minutes regardless of the real-time rate chosen.
const DefaultTickRate = 100 * time.Millisecond

// TimeTickPayload is the data attached to each TIME_TICK event.
type TimeTickPayload struct {
	Tick         int   `json:"tick"`
	Day          int   `json:"day"`
	CurrentCases int   `json:"current_cases"`
	Stats        Stats `json:"stats"`
}

// SnapshotSink receives the read-only view of the run after each tick.
// The network hub satisfies it.
type SnapshotSink interface {
	BroadcastSnapshot(Snapshot)
}

// Ticker paces a model in real time for the live server. It only knows about
// time progression and the tick budget; all simulation logic stays in the
// model. Headless runs drive the model directly and never build a Ticker.
type Ticker struct {
	model    *Model
	eventLog *events.EventLog
	logger   *logger.Logger
	rate     time.Duration
	sink     SnapshotSink
	done     chan struct{}
	stopChan chan struct{}
}

// NewTicker creates a driver for the given model. A non-positive rate falls
// back to DefaultTickRate.
func NewTicker(model *Model, eventLog *events.EventLog, log *logger.Logger, rate time.Duration) *Ticker {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return &Ticker{
		model:    model,
		eventLog: eventLog,
		logger:   log,
		rate:     rate,
		done:     make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

// SetSink attaches a consumer for post-tick snapshots. Must be called
// before Start.
func (t *Ticker) SetSink(sink SnapshotSink) {
	t.sink = sink
}

// Done is closed once the tick budget is exhausted. Partial-run statistics
// remain valid and queryable if the ticker is stopped early instead.
func (t *Ticker) Done() <-chan struct{} { return t.done }

// Start begins the tick loop. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("Ticker started: %d agents, budget %d ticks", t.model.NumAgents(), t.model.cfg.TickBudget)

	ticker := time.NewTicker(t.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Ticker stopped by context at tick %d.", t.model.TickCount())
			return
		case <-t.stopChan:
			t.logger.Info("Ticker stopped manually at tick %d.", t.model.TickCount())
			return
		case <-ticker.C:
			if !t.model.Running() {
				t.finish()
				return
			}
			t.tick()
		}
	}
}

// Stop halts the loop early. The model stays queryable at the boundary.
func (t *Ticker) Stop() {
	close(t.stopChan)
}

// tick advances the model once and emits the heartbeat event.
func (t *Ticker) tick() {
	start := time.Now()
	t.model.Tick()
	metrics.Get().RecordTick(time.Since(start))

	if t.sink != nil {
		t.sink.BroadcastSnapshot(t.model.Snapshot())
	}

	tickNo := t.model.TickCount()
	t.eventLog.Append(events.SimEvent{
		ID:      events.GenerateEventID(),
		RunID:   t.model.RunID(),
		Type:    events.EventTypeTimeTick,
		AgentID: events.SystemAgentID,
		Tick:    tickNo,
		Payload: TimeTickPayload{
			Tick:         tickNo,
			Day:          tickNo / agent.TicksPerDay,
			CurrentCases: t.model.currentCases(),
			Stats:        t.model.Stats(),
		},
		Timestamp: time.Now(),
	})
}

// finish emits the end-of-run event with the final statistics.
func (t *Ticker) finish() {
	stats := t.model.Stats()
	t.logger.Info("Run complete: infected=%d deceased=%d peak=%d", stats.TotalInfected, stats.TotalDeceased, stats.PeakCases)

	t.eventLog.Append(events.SimEvent{
		ID:        events.GenerateEventID(),
		RunID:     t.model.RunID(),
		Type:      events.EventTypeRunCompleted,
		AgentID:   events.SystemAgentID,
		Tick:      t.model.TickCount(),
		Payload:   stats,
		Timestamp: time.Now(),
	})
	close(t.done)
}
