// wansim runs a scenario file through the simulator and reports what
// happened to the traffic it describes.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/Glorymaya/wansim"
)

const defaultStopTime = 16.0

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	scenarioFlag := flag.String("scenario", "", "scenario file (.yaml or .json)")
	stopFlag := flag.Float64("stop", 0.0, "override the scenario's stop time")
	traceFlag := flag.String("trace", "", "write the run trace to this file (.yaml or .json)")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	if *scenarioFlag == "" {
		return fmt.Errorf("a scenario file is required (-scenario)")
	}

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}))

	ext := strings.ToLower(path.Ext(*scenarioFlag))
	useYAML := ext == ".yaml" || ext == ".yml"

	cfg, err := wansim.ReadScenarioCfg(*scenarioFlag, useYAML, []byte{})
	if err != nil {
		return fmt.Errorf("failed to read scenario %s: %w", *scenarioFlag, err)
	}

	expt, err := cfg.BuildExperiment(log, *traceFlag != "")
	if err != nil {
		return fmt.Errorf("failed to build experiment %s: %w", cfg.Name, err)
	}

	stopTime := cfg.StopTime
	if *stopFlag > 0.0 {
		stopTime = *stopFlag
	}
	if stopTime <= 0.0 {
		stopTime = defaultStopTime
	}

	err = expt.Run(stopTime)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	for _, tg := range expt.Generators() {
		fmt.Printf("%s: sent %d delivered %d no-route %d all-routes-down %d hop-limit %d\n",
			tg.Name, len(tg.Outcomes()), tg.Delivered(),
			tg.Dropped(wansim.DropNoRoute), tg.Dropped(wansim.DropAllRoutesDown),
			tg.Dropped(wansim.DropHopLimit))
	}
	for _, dump := range expt.Dumps() {
		fmt.Printf("routing table of %s at t=%g:\n", dump.Node, dump.Time)
		for _, rd := range dump.Routes {
			via := rd.NxtHop
			if via == "" {
				via = "direct"
			}
			state := "up"
			if !rd.Active {
				state = "down"
			}
			fmt.Printf("  %s/%s via %s if%d metric %d %s\n",
				rd.Network, rd.Mask, via, rd.IntrfcIdx, rd.Metric, state)
		}
	}

	if *traceFlag != "" {
		expt.WriteTrace(*traceFlag)
		log.Info("trace written", "file", *traceFlag)
	}
	return nil
}
