// Package main is the command line front end for the contagio epidemic
// model. It only collects parameters, drives the tick loop, and prints the
// final statistics. NO simulation logic belongs here.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/epidemica/contagio-server/internal/domain/agent"
	"github.com/epidemica/contagio-server/internal/engine"
	"github.com/epidemica/contagio-server/internal/infra/storage"
	"github.com/epidemica/contagio-server/internal/platform/logger"
)

var (
	flagGrid      = flag.Int("grid", 0, "side length (in agents) of the square population grid; 0 prompts interactively")
	flagDays      = flag.Int("days", 0, "number of simulated days to run")
	flagMasks     = flag.Float64("masks", -1, "percentage of agents wearing masks (0-100)")
	flagIsolation = flag.Float64("isolation", -1, "percentage of agents that self-isolate when symptomatic (0-100)")
	flagSeed      = flag.Int64("seed", 0, "random seed; 0 derives one from the clock")
	flagDB        = flag.String("db", "", "optional sqlite path to record the run summary")
)

func main() {
	flag.Parse()
	appLogger := logger.NewLogger()

	grid, days, masks, isolation := *flagGrid, *flagDays, *flagMasks, *flagIsolation
	if grid <= 0 || days <= 0 || masks < 0 || isolation < 0 {
		grid, days, masks, isolation = promptParameters()
	}

	seed := *flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	params := agent.DefaultParams()
	cfg := engine.Config{
		Population: grid * grid,
		// Cell size is twice the contact radius, so neighbors start just
		// out of transmission range of one another.
		Width:                   float64(grid) * 2 * params.ContactRadius,
		Height:                  float64(grid) * 2 * params.ContactRadius,
		MaskProportion:          masks / 100,
		SelfIsolationProportion: isolation / 100,
		TickBudget:              days * agent.TicksPerDay,
		Seed:                    seed,
		Params:                  params,
	}

	model, err := engine.NewModel(cfg, nil, appLogger)
	if err != nil {
		appLogger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	fmt.Println("\nSimulation running...")
	for model.Running() {
		model.Tick()
	}

	stats := model.Stats()
	fmt.Println("\nSimulation complete!")
	fmt.Println("Total number of cases:", stats.TotalInfected)
	fmt.Println("Total number of deaths:", stats.TotalDeceased)
	fmt.Println("Peak number of cases:", stats.PeakCases)

	if *flagDB != "" {
		if err := recordRun(cfg, model, *flagDB); err != nil {
			appLogger.Error("Failed to record run: %v", err)
			os.Exit(1)
		}
		appLogger.Info("Run %s recorded in %s", model.RunID(), *flagDB)
	}
}

// recordRun stores the run parameters and final statistics in sqlite.
func recordRun(cfg engine.Config, model *engine.Model, dbPath string) error {
	db, err := storage.InitSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	repo := storage.NewSQLiteRunRepository(db)
	rec := storage.RunRecord{
		RunID:                   model.RunID(),
		StartedAt:               time.Now(),
		Population:              cfg.Population,
		Width:                   cfg.Width,
		Height:                  cfg.Height,
		MaskProportion:          cfg.MaskProportion,
		SelfIsolationProportion: cfg.SelfIsolationProportion,
		TickBudget:              cfg.TickBudget,
		Seed:                    cfg.Seed,
	}
	if err := repo.CreateRun(ctx, rec); err != nil {
		return err
	}
	stats := model.Stats()
	return repo.CompleteRun(ctx, model.RunID(), stats.TotalInfected, stats.TotalDeceased, stats.PeakCases)
}

// promptParameters runs the interactive parameter dialogue.
func promptParameters() (grid, days int, masks, isolation float64) {
	in := bufio.NewReader(os.Stdin)

	fmt.Println("Hello, and welcome to the contagio epidemic model!")
	fmt.Println()
	fmt.Println("The agents in the model will be arranged in a square grid.")
	fmt.Println("Please enter the side length (in agents) of this grid:")
	grid = inputInt(in, 1)

	fmt.Println("Please enter the number of days that you would like to")
	fmt.Println("simulate (as a whole number):")
	days = inputInt(in, 1)

	fmt.Println("Please enter the percentage of agents who you would like")
	fmt.Println("to wear masks (from 0 to 100):")
	masks = inputPercent(in)

	fmt.Println("Please enter the percentage of agents who you would like to")
	fmt.Println("self-isolate upon the development of symptoms (from 0 to 100):")
	isolation = inputPercent(in)

	return grid, days, masks, isolation
}

// inputInt reads integers until one at or above min is provided.
func inputInt(in *bufio.Reader, min int) int {
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			fmt.Println("Input closed; exiting.")
			os.Exit(1)
		}
		v, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && v >= min {
			return v
		}
		fmt.Println("Invalid input; please try again.")
	}
}

// inputPercent reads a number in [0,100].
func inputPercent(in *bufio.Reader) float64 {
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			fmt.Println("Input closed; exiting.")
			os.Exit(1)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err == nil && v >= 0 && v <= 100 {
			return v
		}
		fmt.Println("Invalid input; please try again.")
	}
}
