package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"memview/config"
	"memview/process"
	"memview/report"
	"memview/search"
	"memview/session"
)

func main() {
	configFlag := flag.String("config", "memview.toml", "Configuration file")
	fromFlag := flag.String("from", "", "Scan a saved dump directory instead of the live process")
	contextFlag := flag.Int("context", 0, "Bytes of memory to show around each match")
	findFlag := flag.String("find", "", "u32 value (decimal or 0x hex) to search for below -root")
	rootFlag := flag.String("root", "", "Root to start -find from")
	depthFlag := flag.Int("depth", 3, "Pointers -find may follow")
	colorFlag := flag.Bool("color", true, "Color output")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var s *session.Session
	if *fromFlag != "" {
		s, err = session.OpenDump(ctx, cfg, *fromFlag)
	} else {
		s, err = session.Open(ctx, cfg, session.Native())
	}
	if err != nil {
		var ambiguous *process.AmbiguousProcessError
		if errors.As(err, &ambiguous) {
			for _, m := range ambiguous.Matches {
				fmt.Printf("  pid %d  %s\n", m.PID, strings.Join(m.Cmdline, " "))
			}
			fmt.Println("Set target.pid to choose one")
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	table := s.OffsetTable()
	mod := s.Module()
	fmt.Printf("%s at %s, %d patterns\n\n", mod.Name, process.ProcessMemoryAddress(mod.Address), len(table.Offsets))
	if err := report.Offsets(table).Render(os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if *contextFlag > 0 {
		showContext(s, cfg, *contextFlag, *colorFlag)
	}

	if *findFlag != "" {
		if err := find(s, *rootFlag, *findFlag, *depthFlag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	report.Stats(s.Stats()).Render(os.Stdout)
}

// showContext dumps n bytes either side of each match, highlighting the pattern.
func showContext(s *session.Session, cfg *config.Config, n int, color bool) {
	patterns, err := cfg.CompilePatterns()
	if err != nil {
		return
	}
	table := s.OffsetTable()
	mm, _ := s.Process().GetMemoryMap()
	for _, p := range patterns {
		addr, err := table.Address(p.Name)
		if err != nil {
			continue
		}
		match := addr - process.ProcessMemoryAddress(p.Skip)
		start := match - process.ProcessMemoryAddress(n)
		data, err := s.Reader().ReadBytes(start, process.ProcessMemorySize(2*n+len(p.Bytes)))
		if len(data) == 0 {
			fmt.Printf("\n%s: %v\n", p.Name, err)
			continue
		}
		fmt.Printf("\n%s at %s (%s):\n", p.Name, addr, p)
		report.HexDump{
			Address:      uint64(start),
			Highlight:    n,
			HighlightLen: len(p.Bytes),
			MemoryMap:    mm,
			Color:        color,
		}.Write(os.Stdout, data)
	}
}

func find(s *session.Session, rootName, value string, depth int) error {
	root, ok := s.Root(rootName)
	if !ok {
		return fmt.Errorf("-find needs -root naming a configured root, got %q", rootName)
	}
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return fmt.Errorf("bad -find value %q: %w", value, err)
	}
	base := root.View.Address()
	if base == 0 {
		return fmt.Errorf("root %q is unbound", rootName)
	}

	results, err := search.Search(s.Reader(), base, search.ForValue(uint32(v)), search.WithMaxDepth(depth))
	if err != nil {
		return err
	}
	fmt.Printf("\n%d locations of %s below %s (%s)\n", len(results), value, rootName, base)
	for _, res := range results {
		offsets := make([]string, len(res.Path))
		for i, off := range res.Path {
			offsets[i] = fmt.Sprintf("0x%x", uint64(off))
		}
		fmt.Printf("  path = [%s]  %s\n", strings.Join(offsets, ", "), res.Address)
	}
	return nil
}
