package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"memview/config"
	"memview/report"
	"memview/session"
)

// frame is one line of output: every root's state after a refresh cycle.
type frame struct {
	Cycle int       `json:"cycle"`
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
	Roots any       `json:"roots"`
}

func main() {
	configFlag := flag.String("config", "memview.toml", "Configuration file")
	fromFlag := flag.String("from", "", "Watch a saved dump directory instead of the live process")
	intervalFlag := flag.Duration("interval", 0, "Refresh interval (default from the configuration)")
	countFlag := flag.Int("count", 0, "Stop after this many cycles (0 runs until interrupted)")
	prettyFlag := flag.Bool("pretty", false, "Indent JSON output")
	statsFlag := flag.Bool("stats", false, "Print read statistics on exit")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var s *session.Session
	if *fromFlag != "" {
		s, err = session.OpenDump(ctx, cfg, *fromFlag)
	} else {
		s, err = session.Open(ctx, cfg, session.Native())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	enc := json.NewEncoder(os.Stdout)
	if *prettyFlag {
		enc.SetIndent("", "  ")
	}

	emit := func(cycle int, err error) {
		f := frame{Cycle: cycle, Time: time.Now(), Roots: report.Finite(s.Snapshot())}
		if err != nil {
			f.Error = err.Error()
		}
		if err := enc.Encode(f); err != nil {
			fmt.Fprintf(os.Stderr, "cycle %d: %v\n", cycle, err)
		}
	}

	// the attach already ran the first cycle
	emit(0, nil)
	cycle := 0
	err = s.Run(ctx, *intervalFlag, func(err error) {
		cycle++
		emit(cycle, err)
		if *countFlag > 0 && cycle >= *countFlag {
			stop()
		}
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if *statsFlag {
		report.Stats(s.Stats()).Render(os.Stderr)
	}
}
