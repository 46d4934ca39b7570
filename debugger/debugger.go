// Package debugger implements the interactive console reachable via the
// simulator's -d flag. The command language and breakpoint/step machinery
// are adapted from the teacher's own debugger package; everything it does
// with ARM condition codes and step-over call-depth tracking is replaced
// with the much simpler RISC-V equivalent (there is no condition-code
// instruction set to special-case, and step-over only needs to recognize
// JAL/JALR with rd != x0).
package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lookbusy1344/rv-emulator/cpu"
)

// Debugger holds console state layered on top of a running cpu.VM.
type Debugger struct {
	VM *cpu.VM

	Breakpoints *BreakpointManager

	Running     bool
	StepMode    StepMode
	StepOverPC  uint64
	LastCommand string
	Output      strings.Builder
}

// StepMode selects how Continue behaves across one ShouldBreak check.
type StepMode int

const (
	StepNone StepMode = iota
	StepSingle
	StepOver
)

// NewDebugger wraps machine with console state.
func NewDebugger(machine *cpu.VM) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		StepMode:    StepNone,
	}
}

// ExecuteCommand parses and runs one console command line.
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		cmdLine = d.LastCommand
	}
	if cmdLine != "" {
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "continue", "c":
		d.StepMode = StepNone
		d.Running = true
		return nil
	case "step", "s", "si":
		d.StepMode = StepSingle
		d.Running = true
		return nil
	case "next", "n":
		d.setStepOver()
		return nil
	case "break", "b":
		return d.cmdBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnableDisable(args, true)
	case "disable":
		return d.cmdEnableDisable(args, false)
	case "print", "p", "info":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "reset":
		d.Printf("reset is not supported mid-session; relaunch the simulator\n")
		return nil
	case "help", "h", "?":
		d.cmdHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (d *Debugger) cmdBreak(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: break <address>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	bp := d.Breakpoints.AddBreakpoint(addr, false, "")
	d.Printf("breakpoint %d at 0x%x\n", bp.ID, bp.Address)
	return nil
}

func (d *Debugger) cmdDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint id: %s", args[0])
	}
	return d.Breakpoints.DeleteBreakpoint(id)
}

func (d *Debugger) cmdEnableDisable(args []string, enable bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: enable|disable <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint id: %s", args[0])
	}
	if enable {
		return d.Breakpoints.EnableBreakpoint(id)
	}
	return d.Breakpoints.DisableBreakpoint(id)
}

func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		d.printRegisters()
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "regs", "registers":
		d.printRegisters()
	case "pc":
		d.Printf("pc = 0x%x\n", d.VM.PC.Uint64())
	default:
		idx, err := strconv.Atoi(strings.TrimPrefix(args[0], "x"))
		if err != nil || idx < 0 || idx > 31 {
			return fmt.Errorf("unknown register: %s", args[0])
		}
		d.Printf("x%d = 0x%x\n", idx, d.VM.Regs.RUsize(uint8(idx)).Uint64())
	}
	return nil
}

func (d *Debugger) printRegisters() {
	for i := 0; i < 32; i += 4 {
		d.Printf("x%-2d=0x%016x  x%-2d=0x%016x  x%-2d=0x%016x  x%-2d=0x%016x\n",
			i, d.VM.Regs.RUsize(uint8(i)).Uint64(),
			i+1, d.VM.Regs.RUsize(uint8(i+1)).Uint64(),
			i+2, d.VM.Regs.RUsize(uint8(i+2)).Uint64(),
			i+3, d.VM.Regs.RUsize(uint8(i+3)).Uint64())
	}
	d.Printf("pc =0x%016x\n", d.VM.PC.Uint64())
}

func (d *Debugger) cmdExamine(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: x <address>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	w, err := d.VM.Mem.ReadU32(addr)
	if err != nil {
		return err
	}
	d.Printf("0x%x: 0x%08x\n", addr, w)
	return nil
}

func (d *Debugger) cmdHelp() {
	d.Printf("commands: continue(c) step(s) next(n) break(b) <addr> delete(d) <id> enable/disable <id> print(p) [reg] x <addr> help\n")
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return v, nil
}

// ShouldBreak reports whether execution should pause at the current PC,
// and why.
func (d *Debugger) ShouldBreak() (bool, string) {
	pc := d.VM.PC.Uint64()

	switch d.StepMode {
	case StepSingle:
		d.StepMode = StepNone
		return true, "single step"
	case StepOver:
		if pc == d.StepOverPC {
			d.StepMode = StepNone
			return true, "step over complete"
		}
	}

	if bp := d.Breakpoints.GetBreakpoint(pc); bp != nil && bp.Enabled {
		bp.HitCount++
		if bp.Temporary {
			_ = d.Breakpoints.DeleteBreakpoint(bp.ID)
		}
		return true, fmt.Sprintf("breakpoint %d", bp.ID)
	}

	return false, ""
}

// GetOutput returns and clears the console's output buffer.
func (d *Debugger) GetOutput() string {
	out := d.Output.String()
	d.Output.Reset()
	return out
}

// Printf writes formatted output to the console's output buffer.
func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

// setStepOver arranges to stop after the instruction at the current PC
// completes: for a call (JAL/JALR with rd != x0) that means stopping at the
// return address rather than descending into the callee, for anything else
// it degrades to a plain single step.
func (d *Debugger) setStepOver() {
	inst, err := d.VM.Fetch()
	if err != nil {
		d.StepMode = StepSingle
		d.Running = true
		return
	}
	isCall := (inst.Op.String() == "jal" || inst.Op.String() == "jalr") && inst.Rd != 0
	if isCall {
		d.StepOverPC = d.VM.PC.Uint64() + uint64(inst.Len)
		d.StepMode = StepOver
	} else {
		d.StepMode = StepSingle
	}
	d.Running = true
}
