// Package main is the entry point for the contagio live simulation server.
// It only handles dependency injection and server initialization.
// NO simulation logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/epidemica/contagio-server/internal/domain/agent"
	"github.com/epidemica/contagio-server/internal/engine"
	"github.com/epidemica/contagio-server/internal/events"
	"github.com/epidemica/contagio-server/internal/infra/storage"
	"github.com/epidemica/contagio-server/internal/network"
	"github.com/epidemica/contagio-server/internal/platform/logger"
	"github.com/epidemica/contagio-server/internal/platform/metrics"
)

// SQLitePersisterAdapter translates domain events to storage events.
type SQLitePersisterAdapter struct {
	repo *storage.SQLiteEventRepository
}

func (a *SQLitePersisterAdapter) Append(event events.SimEvent) error {
	payloadMap, err := payloadAsMap(event.Payload)
	if err != nil {
		return err
	}

	storageEvent := storage.SimEvent{
		ID:        event.ID,
		RunID:     event.RunID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		AgentID:   event.AgentID,
		Tick:      event.Tick,
		Payload:   payloadMap,
	}

	start := time.Now()
	err = a.repo.Append(context.Background(), storageEvent)
	metrics.Get().RecordEventWrite(time.Since(start), err)
	return err
}

// payloadAsMap converts an event payload to the map form the storage layer
// persists. Scalar payloads (compartment names, counters) are wrapped under
// a "value" key so nothing is lost from the ledger.
func payloadAsMap(payload interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return nil, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return map[string]interface{}{"value": payload}, nil
	}
	return payloadMap, nil
}

func main() {
	log.Println("[CONTAGIO-SERVER] Initializing live epidemic simulation server...")

	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	appLogger := logger.NewLogger()

	dbPath := envStr("CONTAGIO_DB", "contagio.db")
	appLogger.Info("Initializing SQLite database %q...", dbPath)
	db, err := storage.InitSQLite(dbPath)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: %v", err)
		os.Exit(1)
	}
	eventRepo := storage.NewSQLiteEventRepository(db)
	runRepo := storage.NewSQLiteRunRepository(db)

	// Finish the bookkeeping of any run that was interrupted mid-flight.
	reconstructor := storage.NewReconstructor(eventRepo, runRepo)
	if recovered, err := reconstructor.RecoverInterruptedRuns(context.Background()); err != nil {
		appLogger.Warn("Run recovery failed: %v", err)
	} else if len(recovered) > 0 {
		appLogger.Info("Recovered statistics for %d interrupted run(s)", len(recovered))
	}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(&SQLitePersisterAdapter{repo: eventRepo})

	seed := envInt64("CONTAGIO_SEED", 0)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cfg := engine.Config{
		Population:              envInt("CONTAGIO_POPULATION", 400),
		Width:                   envFloat("CONTAGIO_AREA_WIDTH", 200),
		Height:                  envFloat("CONTAGIO_AREA_HEIGHT", 200),
		MaskProportion:          envFloat("CONTAGIO_MASKS", 0.5),
		SelfIsolationProportion: envFloat("CONTAGIO_ISOLATION", 0.5),
		TickBudget:              envInt("CONTAGIO_DAYS", 90) * agent.TicksPerDay,
		Seed:                    seed,
	}

	appLogger.Info("Bootstrapping simulation model...")
	model, err := engine.NewModel(cfg, eventLog, appLogger)
	if err != nil {
		appLogger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runRepo.CreateRun(ctx, storage.RunRecord{
		RunID:                   model.RunID(),
		StartedAt:               time.Now(),
		Population:              cfg.Population,
		Width:                   cfg.Width,
		Height:                  cfg.Height,
		MaskProportion:          cfg.MaskProportion,
		SelfIsolationProportion: cfg.SelfIsolationProportion,
		TickBudget:              cfg.TickBudget,
		Seed:                    cfg.Seed,
	}); err != nil {
		appLogger.Error("Failed to register run: %v", err)
		os.Exit(1)
	}

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog)

	tickRate := time.Duration(envInt("CONTAGIO_TICK_MS", 100)) * time.Millisecond
	ticker := engine.NewTicker(model, eventLog, appLogger, tickRate)
	ticker.SetSink(hub)
	go ticker.Start(ctx)

	// Store the final statistics once the tick budget is exhausted.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Done():
			// The driver goroutine has returned; the model is quiescent.
			stats := model.Stats()
			if err := runRepo.CompleteRun(ctx, model.RunID(), stats.TotalInfected, stats.TotalDeceased, stats.PeakCases); err != nil {
				appLogger.Error("Failed to store final statistics: %v", err)
			}
		}
	}()

	replayHandler := network.NewReplayHandler(eventLog, appLogger)

	// Setup API Routes
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r, appLogger)
	})

	http.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		snap := hub.LastSnapshot()
		w.Header().Set("Content-Type", "application/json")
		if snap == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "no tick completed yet"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"run_id":  snap.RunID,
			"tick":    snap.Tick,
			"running": snap.Running,
			"stats":   snap.Stats,
		})
	})

	http.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := runRepo.ListRuns(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runs)
	})

	http.HandleFunc("/api/replay", replayHandler.HandleReplay)
	http.HandleFunc("/metrics", metrics.Handler())
	http.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	addr := envStr("CONTAGIO_ADDR", ":8080")
	go func() {
		log.Printf("[CONTAGIO-SERVER] HTTP API & WS Server listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[CONTAGIO-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[CONTAGIO-SERVER] Shutting down...")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewers may be served from another origin in dev
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *network.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := network.NewClient(hub, conn)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
