// Package elfloader reads an ELF binary and populates a memory.Physical
// address space from its PT_LOAD segments, handing back the entry point the
// simulator should start executing at. ELF parsing itself is explicitly out
// of scope as a standalone feature (SPEC_FULL.md §1): this package is the
// minimal collaborator the core needs to go from "a file on disk" to "a
// Physical address space and a PC", nothing more.
package elfloader

import (
	"debug/elf"
	"fmt"

	"github.com/lookbusy1344/rv-emulator/memory"
	"github.com/lookbusy1344/rv-emulator/xlen"
)

// Result is what a loaded ELF binary hands to the simulator: a populated
// address space, the entry point, the detected XLEN, and the detected
// byte order.
type Result struct {
	Mem    *memory.Physical
	Entry  uint64
	Xlen   xlen.Xlen
	Endian memory.Endian
}

// Load opens path, maps every PT_LOAD segment into a fresh memory.Physical,
// and returns the ELF entry point. Segment permissions are translated
// directly from the ELF program header's R/W/X flags; section endianness is
// taken from the ELF data byte (ELFDATA2LSB/ELFDATA2MSB), since RISC-V
// permits both little- and big-endian harts (RV32BE/RV64BE), not just the
// little-endian variant most binaries in the wild use.
func Load(path string) (*Result, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfloader: opening %s: %w", path, err)
	}
	defer f.Close()

	xl, err := xlenOf(f)
	if err != nil {
		return nil, err
	}
	en, err := endianOf(f)
	if err != nil {
		return nil, err
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("elfloader: %s is not a RISC-V ELF (machine=%v)", path, f.Machine)
	}

	mem := memory.NewPhysical()
	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Memsz)
		n, err := prog.ReadAt(data[:prog.Filesz], 0)
		if err != nil && uint64(n) != prog.Filesz {
			return nil, fmt.Errorf("elfloader: reading segment %d: %w", i, err)
		}
		cfg := memory.Config{
			Lo:      prog.Vaddr,
			Hi:      prog.Vaddr + prog.Memsz,
			Protect: protectOf(prog.Flags),
			Endian:  en,
			Name:    fmt.Sprintf("PT_LOAD[%d]", i),
		}
		if err := mem.PushOwnedBytes(cfg, data); err != nil {
			return nil, fmt.Errorf("elfloader: mapping segment %d: %w", i, err)
		}
	}

	return &Result{Mem: mem, Entry: f.Entry, Xlen: xl, Endian: en}, nil
}

// MapStack reserves a read/write stack section of size bytes ending at
// (and not including) top, so the simulated program has somewhere to push
// to before any of its own code runs. Callers size and place it from
// config.Config.Memory/Execution, since the ELF's own PT_LOAD segments say
// nothing about stack placement. endian must match the byte order Load
// detected for the binary being run.
func MapStack(mem *memory.Physical, top, size uint64, endian memory.Endian) error {
	cfg := memory.Config{
		Lo:      top - size,
		Hi:      top,
		Protect: memory.Read | memory.Write,
		Endian:  endian,
		Name:    "stack",
	}
	if err := mem.PushOwned(cfg); err != nil {
		return fmt.Errorf("elfloader: mapping stack: %w", err)
	}
	return nil
}

// MapHeap reserves a read/write heap section of size bytes starting at
// base, immediately above the stack, sized from config.Config.Memory.
func MapHeap(mem *memory.Physical, base, size uint64, endian memory.Endian) error {
	cfg := memory.Config{
		Lo:      base,
		Hi:      base + size,
		Protect: memory.Read | memory.Write,
		Endian:  endian,
		Name:    "heap",
	}
	if err := mem.PushOwned(cfg); err != nil {
		return fmt.Errorf("elfloader: mapping heap: %w", err)
	}
	return nil
}

func xlenOf(f *elf.File) (xlen.Xlen, error) {
	switch f.Class {
	case elf.ELFCLASS32:
		return xlen.X32, nil
	case elf.ELFCLASS64:
		return xlen.X64, nil
	default:
		return 0, fmt.Errorf("elfloader: unsupported ELF class %v", f.Class)
	}
}

func endianOf(f *elf.File) (memory.Endian, error) {
	switch f.Data {
	case elf.ELFDATA2LSB:
		return memory.Little, nil
	case elf.ELFDATA2MSB:
		return memory.Big, nil
	default:
		return 0, fmt.Errorf("elfloader: unsupported ELF data encoding %v", f.Data)
	}
}

func protectOf(flags elf.ProgFlag) memory.Protect {
	var p memory.Protect
	if flags&elf.PF_R != 0 {
		p |= memory.Read
	}
	if flags&elf.PF_W != 0 {
		p |= memory.Write
	}
	if flags&elf.PF_X != 0 {
		p |= memory.Execute
	}
	return p
}
