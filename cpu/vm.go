package cpu

import (
	"fmt"
	"log"

	"github.com/lookbusy1344/rv-emulator/decoder"
	"github.com/lookbusy1344/rv-emulator/memory"
	"github.com/lookbusy1344/rv-emulator/xlen"
)

// State mirrors the teacher VM's execution-state machine: a simulator is
// either idle, running, stopped on a trap, or halted cleanly.
type State int

const (
	StateReady State = iota
	StateRunning
	StateTrapped
	StateHalted
)

// TrapKind distinguishes why Execute stopped without a memory.Fault.
type TrapKind int

const (
	TrapFence TrapKind = iota
	TrapEcall
	TrapEbreak
	TrapIllegalInstruction
)

func (k TrapKind) String() string {
	switch k {
	case TrapFence:
		return "fence"
	case TrapEcall:
		return "ecall"
	case TrapEbreak:
		return "ebreak"
	default:
		return "illegal instruction"
	}
}

// Trap is raised for instructions this core deliberately does not execute:
// FENCE, ECALL, and EBREAK are reserved for a privileged/syscall layer this
// package does not implement (see SPEC_FULL.md §5.4), and an Op execute has
// no case for. Encodings the decoder rejects are not Traps: Fetch and Step
// return the decoder's own error for them. A Trap is not a memory.Fault — it
// carries no address, only the PC at which it fired.
type Trap struct {
	Kind TrapKind
	PC   uint64
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap at pc 0x%x: %s", t.PC, t.Kind)
}

// VM is one simulated hart: its register file, CSR file, memory, and
// program counter, plus the bookkeeping a caller needs to run it to
// completion or single-step it from a debugger.
type VM struct {
	Xlen   xlen.Xlen
	Regs   *XReg
	Csr    *Csr
	Mem    *memory.Physical
	PC     xlen.UWord
	Cycles uint64

	// MaxCycles bounds Run when non-zero, mirroring the teacher's
	// VM.MaxCycles/CycleLimit guard against runaway programs.
	MaxCycles uint64

	State State

	// Logger receives one line per executed instruction when non-nil.
	// Left nil by default; the teacher's VM.OutputWriter plays the same
	// "optional sink" role.
	Logger *log.Logger
}

// NewVM constructs a VM over mem, starting execution at entry.
func NewVM(xl xlen.Xlen, mem *memory.Physical, entry uint64) *VM {
	pc := xlen.ZeroUWord(xl)
	switch xl {
	case xlen.X32:
		pc = xlen.NewUWord32(uint32(entry))
	case xlen.X64:
		pc = xlen.NewUWord64(entry)
	}
	return &VM{
		Xlen:  xl,
		Regs:  NewXReg(xl),
		Csr:   NewCsr(),
		Mem:   mem,
		PC:    pc,
		State: StateReady,
	}
}

// Fetch reads the instruction at the current PC, determining length via
// the RVC gate on the first halfword before deciding whether a second
// halfword must be read.
func (v *VM) Fetch() (decoder.Instruction, error) {
	addr := v.PC.Uint64()
	first, err := v.Mem.FetchInsU16(addr)
	if err != nil {
		return decoder.Instruction{}, err
	}
	if decoder.DecodeLength(first) == 2 {
		return decoder.Decode16(first, v.Xlen)
	}
	second, err := v.Mem.FetchInsU16(addr + 2)
	if err != nil {
		return decoder.Instruction{}, err
	}
	word := uint32(first) | uint32(second)<<16
	return decoder.Decode32(word, v.Xlen)
}

// Step fetches, decodes, and executes exactly one instruction, advancing PC
// and Cycles. It returns the Trap, memory.Fault or decode error that stopped
// execution, or nil on an ordinary instruction.
func (v *VM) Step() error {
	inst, err := v.Fetch()
	if err != nil {
		v.State = StateTrapped
		return err
	}
	if v.Logger != nil {
		v.Logger.Printf("pc=0x%x op=%s rd=%d rs1=%d rs2=%d", v.PC.Uint64(), inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
	}
	if err := v.execute(inst); err != nil {
		v.State = StateTrapped
		return err
	}
	v.Cycles++
	return nil
}

// Run steps until a Trap, a memory.Fault, or MaxCycles (if nonzero) is
// reached.
func (v *VM) Run() error {
	v.State = StateRunning
	for v.MaxCycles == 0 || v.Cycles < v.MaxCycles {
		if err := v.Step(); err != nil {
			return err
		}
	}
	return fmt.Errorf("cpu: exceeded cycle limit %d", v.MaxCycles)
}

// pcAdd advances PC by delta bytes, honoring XLEN wraparound.
func (v *VM) pcAdd(delta uint64) {
	v.PC = v.PC.Add(uwordFromU64(v.Xlen, delta))
}

// pcSet sets PC to an absolute address, honoring XLEN width.
func (v *VM) pcSet(addr uint64) {
	v.PC = uwordFromU64(v.Xlen, addr)
}

func uwordFromU64(xl xlen.Xlen, v uint64) xlen.UWord {
	switch xl {
	case xlen.X32:
		return xlen.NewUWord32(uint32(v))
	default:
		return xlen.NewUWord64(v)
	}
}
