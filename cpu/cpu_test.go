package cpu

import (
	"testing"

	"github.com/lookbusy1344/rv-emulator/decoder"
	"github.com/lookbusy1344/rv-emulator/memory"
	"github.com/lookbusy1344/rv-emulator/xlen"
)

func TestXRegX0WritesAreDiscarded(t *testing.T) {
	r := NewXReg(xlen.X64)
	r.WUsize(0, xlen.NewUWord64(42))
	if got := r.RUsize(0).Uint64(); got != 0 {
		t.Errorf("expected x0 to stay zero, got %d", got)
	}
}

func TestXRegWSext32WidensSignAcrossXlen(t *testing.T) {
	r := NewXReg(xlen.X64)
	r.WSext32(1, 0x80000000)
	got := r.RUsize(1).Uint64()
	if got != 0xFFFFFFFF80000000 {
		t.Errorf("expected sign-extended 0xFFFFFFFF80000000, got 0x%x", got)
	}
}

func TestXRegWZext32NeverSignExtends(t *testing.T) {
	r := NewXReg(xlen.X64)
	r.WZext32(1, 0x80000000)
	got := r.RUsize(1).Uint64()
	if got != 0x80000000 {
		t.Errorf("expected zero-extended 0x80000000, got 0x%x", got)
	}
}

func TestCsrFcsrAliasesFflagsAndFrm(t *testing.T) {
	c := NewCsr()
	c.Write(CsrFflags, 0x1F)
	c.Write(CsrFrm, 0x5)
	got := c.Read(CsrFcsr)
	want := uint64(0x5<<5 | 0x1F)
	if got != want {
		t.Errorf("expected fcsr 0x%x, got 0x%x", want, got)
	}
}

func TestCsrWriteFcsrPropagatesToAliases(t *testing.T) {
	c := NewCsr()
	c.Write(CsrFcsr, 0x3<<5|0x0A)
	if c.Read(CsrFrm) != 0x3 {
		t.Errorf("expected frm 0x3, got 0x%x", c.Read(CsrFrm))
	}
	if c.Read(CsrFflags) != 0x0A {
		t.Errorf("expected fflags 0x0A, got 0x%x", c.Read(CsrFflags))
	}
}

func newTestVM(t *testing.T) *VM {
	t.Helper()
	mem := memory.NewPhysical()
	if err := mem.PushOwned(memory.Config{Lo: 0, Hi: 0x1000, Protect: memory.Read | memory.Write | memory.Execute}); err != nil {
		t.Fatalf("PushOwned: %v", err)
	}
	return NewVM(xlen.X64, mem, 0)
}

func TestJalrClearsLowBitOfTarget(t *testing.T) {
	v := newTestVM(t)
	v.Regs.WUsize(1, xlen.NewUWord64(0x101)) // an odd target
	inst := decoder.Instruction{Op: decoder.OpJALR, Rd: 2, Rs1: 1, Len: 4, Imm: xlen.NewImm(0, 12)}
	if err := v.execute(inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v.PC.Uint64() != 0x100 {
		t.Errorf("expected JALR to clear the low bit, pc=0x%x", v.PC.Uint64())
	}
	if v.Regs.RUsize(2).Uint64() != 4 {
		t.Errorf("expected link register to hold the return address, got 0x%x", v.Regs.RUsize(2).Uint64())
	}
}

func TestBltuComparesWholeWordNotLane(t *testing.T) {
	v := newTestVM(t)
	v.Regs.WUsize(1, xlen.NewUWord64(1))
	v.Regs.WUsize(2, xlen.NewUWord64(1<<40))
	inst := decoder.Instruction{Op: decoder.OpBLTU, Rs1: 1, Rs2: 2, Len: 4, Imm: xlen.NewImm(8, 13)}
	if err := v.execute(inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v.PC.Uint64() != 8 {
		t.Errorf("expected the branch to be taken (pc=8), got pc=0x%x", v.PC.Uint64())
	}
}

func TestAddiWraparound(t *testing.T) {
	v := newTestVM(t)
	v.Regs.WUsize(1, xlen.NewUWord64(^uint64(0)))
	inst := decoder.Instruction{Op: decoder.OpADDI, Rd: 2, Rs1: 1, Len: 4, Imm: xlen.NewImm(1, 12)}
	if err := v.execute(inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := v.Regs.RUsize(2).Uint64(); got != 0 {
		t.Errorf("expected wraparound to 0, got 0x%x", got)
	}
}

func TestEcallRaisesTrap(t *testing.T) {
	v := newTestVM(t)
	inst := decoder.Instruction{Op: decoder.OpECALL, Len: 4}
	err := v.execute(inst)
	trap, ok := err.(*Trap)
	if !ok || trap.Kind != TrapEcall {
		t.Errorf("expected an ecall Trap, got %v", err)
	}
}

func TestCsrrsSkipsWriteWhenRs1IsX0(t *testing.T) {
	v := newTestVM(t)
	v.Csr.Write(0x100, 0xFF)
	inst := decoder.Instruction{Op: decoder.OpCSRRS, Rd: 1, Rs1: 0, Csr: 0x100, Len: 4}
	v.executeCsr(inst)
	if v.Csr.Read(0x100) != 0xFF {
		t.Errorf("expected csrrs with rs1=x0 to leave the CSR unchanged, got 0x%x", v.Csr.Read(0x100))
	}
	if v.Regs.RUsize(1).Uint64() != 0xFF {
		t.Errorf("expected rd to receive the prior CSR value, got 0x%x", v.Regs.RUsize(1).Uint64())
	}
}

func TestSllMasksShamtToLowBitsOfRs2RatherThanClamping(t *testing.T) {
	v := newTestVM(t)
	v.Regs.WUsize(1, xlen.NewUWord64(1))
	v.Regs.WUsize(2, xlen.NewUWord64(64)) // low 6 bits are 0 under X64: a no-op shift
	inst := decoder.Instruction{Op: decoder.OpSLL, Rd: 3, Rs1: 1, Rs2: 2, Len: 4}
	if err := v.execute(inst); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := v.Regs.RUsize(3).Uint64(); got != 1 {
		t.Errorf("expected shamt 64 to behave as shamt 0 under X64, got 0x%x", got)
	}
}

func TestFetchDecodesCompressedAndBaseInstructions(t *testing.T) {
	v := newTestVM(t)
	// c.nop at address 0 (quadrant 01, funct3 000, rd=0, imm=0).
	if err := v.Mem.WriteU16(0, 0b000_0_00000_00000_01); err != nil {
		t.Fatalf("WriteU16: %v", err)
	}
	inst, err := v.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if inst.Len != 2 || inst.Op != decoder.OpADDI {
		t.Errorf("expected a 2-byte ADDI (c.nop), got %+v", inst)
	}
}
