package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"memview/process"
	"memview/process_blob"
	"memview/report"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Process ID to save")
	outputFlag := flag.String("output", "", "Output directory for the dump")
	fromFlag := flag.String("from", "", "Directory containing a dump to summarize")
	addrFlag := flag.String("addr", "", "Address to hexdump from the -from dump (hex)")
	sizeFlag := flag.Int("size", 256, "Number of bytes to hexdump")
	flag.Parse()

	switch {
	case *fromFlag != "":
		if err := summarize(*fromFlag, *addrFlag, *sizeFlag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	case *pidFlag != 0 && *outputFlag != "":
		fmt.Printf("Saving process %d to %s...\n", *pidFlag, *outputFlag)
		if err := save(process.ProcessID(*pidFlag), *outputFlag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Dump saved successfully.")
	default:
		fmt.Println("Error: either --from or both --pid and --output are required")
		flag.Usage()
		os.Exit(1)
	}
}

func summarize(dir, addrText string, size int) error {
	dump := process_blob.NewProcessDump()
	if err := dump.Load(dir); err != nil {
		return fmt.Errorf("cannot load dump from %s: %w", dir, err)
	}
	mm, err := dump.GetMemoryMap()
	if err != nil {
		return err
	}

	if addrText == "" {
		fmt.Printf("Process %s, pid %d, %d regions\n", dump.Name, dump.PID, len(mm))
		if dump.Module.Size > 0 {
			fmt.Printf("Main module at %s, %s\n", process.ProcessMemoryAddress(dump.Module.Address), process.ProcessMemorySize(dump.Module.Size).ToString())
		}
		fmt.Println()
		return report.Regions(mm).Render(os.Stdout)
	}

	addrVal, err := strconv.ParseUint(addrText, 0, 64)
	if err != nil {
		addrVal, err = strconv.ParseUint(addrText, 16, 64)
	}
	if err != nil {
		return fmt.Errorf("bad address %q: %w", addrText, err)
	}
	addr := process.ProcessMemoryAddress(addrVal)

	data, err := dump.ReadMemory(addr, process.ProcessMemorySize(size))
	if len(data) == 0 {
		return fmt.Errorf("cannot read %s: %w", addr, err)
	}
	fmt.Printf("%d bytes at %s:\n", len(data), addr)
	return report.HexDump{Address: addrVal, MemoryMap: mm, Color: true}.Write(os.Stdout, data)
}
