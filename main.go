// Command rv-emulator runs a user-mode RISC-V ELF binary against the
// functional simulator core, optionally dropping into an interactive
// console instead of running straight through.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lookbusy1344/rv-emulator/config"
	"github.com/lookbusy1344/rv-emulator/cpu"
	"github.com/lookbusy1344/rv-emulator/debugger"
	"github.com/lookbusy1344/rv-emulator/elfloader"
	"github.com/lookbusy1344/rv-emulator/xlen"
)

// Version information - overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		pcFlag      = flag.String("pc", "", "Override the initial program counter (hex, e.g. 0x80000000)")
		debugMode   = flag.Bool("d", false, "Launch the interactive console instead of running to completion")
		maxCycles   = flag.Uint64("max-cycles", 0, "Stop after this many instructions (0 = use config default)")
		configPath  = flag.String("config", "", "Path to a TOML config file (defaults to the platform config path)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("rv-emulator %s (commit %s, built %s)\n", Version, Commit, Date)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: rv-emulator [--pc <hex>] [-d] <elf-path>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("rv-emulator: %v", err)
	}

	result, err := elfloader.Load(path)
	if err != nil {
		log.Fatalf("rv-emulator: %v", err)
	}

	if err := elfloader.MapStack(result.Mem, cfg.Memory.StackTop, cfg.Execution.StackSize, result.Endian); err != nil {
		log.Fatalf("rv-emulator: %v", err)
	}
	if err := elfloader.MapHeap(result.Mem, cfg.Memory.StackTop, cfg.Memory.HeapSize, result.Endian); err != nil {
		log.Fatalf("rv-emulator: %v", err)
	}

	machine := cpu.NewVM(result.Xlen, result.Mem, result.Entry)
	machine.Regs.WUsize(2, addrToUWord(result.Xlen, cfg.Memory.StackTop)) // x2 = sp
	machine.MaxCycles = cfg.Execution.MaxCycles
	if *maxCycles != 0 {
		machine.MaxCycles = *maxCycles
	}
	if cfg.Execution.EnableTrace {
		machine.Logger = log.New(os.Stderr, "", 0)
	}

	if *pcFlag != "" {
		pc, err := parseHex(*pcFlag)
		if err != nil {
			log.Fatalf("rv-emulator: --pc: %v", err)
		}
		machine.PC = addrToUWord(machine.Xlen, pc)
	}

	if *debugMode {
		runConsole(machine)
		return
	}

	if err := machine.Run(); err != nil {
		if trap, ok := err.(*cpu.Trap); ok {
			fmt.Printf("halted: %s at pc=0x%x, cycles=%d\n", trap.Kind, trap.PC, machine.Cycles)
			return
		}
		log.Fatalf("rv-emulator: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func runConsole(machine *cpu.VM) {
	d := debugger.NewDebugger(machine)
	tui := debugger.NewTUI(d)

	go func() {
		for {
			if !d.Running {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if err := machine.Step(); err != nil {
				d.Running = false
				d.Printf("stopped: %v\n", err)
				continue
			}
			if stop, reason := d.ShouldBreak(); stop {
				d.Running = false
				d.Printf("stopped: %s\n", reason)
			}
		}
	}()

	if err := tui.Run(); err != nil {
		log.Fatalf("rv-emulator: console: %v", err)
	}
}

func parseHex(s string) (uint64, error) {
	s = trimHexPrefix(s)
	var v uint64
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	return v, nil
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func addrToUWord(xl xlen.Xlen, addr uint64) xlen.UWord {
	switch xl {
	case xlen.X32:
		return xlen.NewUWord32(uint32(addr))
	default:
		return xlen.NewUWord64(addr)
	}
}
