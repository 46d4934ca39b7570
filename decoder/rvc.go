package decoder

import (
	"fmt"

	"github.com/lookbusy1344/rv-emulator/xlen"
)

// Decode16 decodes a 2-byte RVC instruction, expanding it directly to the
// equivalent base-ISA Instruction (same Op space as Decode32 produces) so
// the execute stage never needs to know whether an instruction arrived
// compressed. The RVC "prime" registers (x8-x15) are re-biased to their
// real register numbers here, at decode time. Under X32 the RV64-only forms
// (C.LD, C.SD, C.LDSP, C.SDSP, C.SUBW, C.ADDW) and shift amounts of 32 or
// more are rejected here, as Decode32 rejects their base equivalents.
func Decode16(half uint16, xl xlen.Xlen) (Instruction, error) {
	op := half & 0b11
	funct3 := uint8((half >> 13) & 0b111)

	var inst Instruction
	var err error
	switch op {
	case 0b00:
		inst, err = decodeRVC0(half, funct3)
	case 0b01:
		inst, err = decodeRVC1(half, funct3, xl)
	case 0b10:
		inst, err = decodeRVC2(half, funct3)
	default:
		return Instruction{}, fmt.Errorf("decoder: 0x%04x is a 32-bit instruction, not RVC", half)
	}
	if err == nil && xl == xlen.X32 {
		switch inst.Op {
		case OpLD, OpSD, OpADDW, OpSUBW:
			return Instruction{}, fmt.Errorf("decoder: compressed %s is illegal under %v", inst.Op, xl)
		case OpSLLI, OpSRLI, OpSRAI:
			if inst.Imm.Low32() >= 32 {
				return Instruction{}, fmt.Errorf("decoder: compressed %s shamt %d is illegal under %v", inst.Op, inst.Imm.Low32(), xl)
			}
		}
	}
	return inst, err
}

func rvcPrime(b uint16) uint8 { return uint8(b) + 8 }

func decodeRVC0(half uint16, funct3 uint8) (Instruction, error) {
	rdPrime := rvcPrime((half >> 2) & 0b111)
	rs1Prime := rvcPrime((half >> 7) & 0b111)

	switch funct3 {
	case 0b000: // C.ADDI4SPN
		if half == 0 {
			return Instruction{}, fmt.Errorf("decoder: all-zero RVC halfword is illegal")
		}
		nzuimm := ((half >> 5) & 0b1) << 3
		nzuimm |= ((half >> 6) & 0b1) << 2
		nzuimm |= ((half >> 7) & 0b1111) << 6
		nzuimm |= ((half >> 11) & 0b11) << 4
		return Instruction{Op: OpADDI, Len: 2, Rd: rdPrime, Rs1: 2, Imm: xlen.NewImm(uint32(nzuimm), 10)}, nil
	case 0b010: // C.LW
		imm := clwImm(half)
		return Instruction{Op: OpLW, Len: 2, Rd: rdPrime, Rs1: rs1Prime, Imm: imm}, nil
	case 0b011: // C.LD
		imm := cldImm(half)
		return Instruction{Op: OpLD, Len: 2, Rd: rdPrime, Rs1: rs1Prime, Imm: imm}, nil
	case 0b110: // C.SW
		imm := clwImm(half)
		return Instruction{Op: OpSW, Len: 2, Rs1: rs1Prime, Rs2: rdPrime, Imm: imm}, nil
	case 0b111: // C.SD
		imm := cldImm(half)
		return Instruction{Op: OpSD, Len: 2, Rs1: rs1Prime, Rs2: rdPrime, Imm: imm}, nil
	default:
		return Instruction{}, fmt.Errorf("decoder: unsupported RVC quadrant 0 funct3 %03b", funct3)
	}
}

func clwImm(half uint16) xlen.Imm {
	v := ((half >> 6) & 0b1) << 2
	v |= ((half >> 10) & 0b111) << 3
	v |= ((half >> 5) & 0b1) << 6
	return xlen.NewImm(uint32(v), 7)
}

func cldImm(half uint16) xlen.Imm {
	v := ((half >> 10) & 0b111) << 3
	v |= ((half >> 5) & 0b11) << 6
	return xlen.NewImm(uint32(v), 8)
}

func decodeRVC1(half uint16, funct3 uint8, xl xlen.Xlen) (Instruction, error) {
	rd := uint8((half >> 7) & 0b11111)

	switch funct3 {
	case 0b000: // C.NOP / C.ADDI
		imm := cimm6(half)
		return Instruction{Op: OpADDI, Len: 2, Rd: rd, Rs1: rd, Imm: imm}, nil
	case 0b001:
		// This encoding slot is reused across XLEN: RV32 reserves it for
		// C.JAL (the 16-bit link-and-jump that RV64 drops since JAL's
		// range alone can't address a 64-bit space), RV64 reuses it for
		// C.ADDIW (sign-extended low 32, widened to XLEN).
		if xl == xlen.X32 {
			imm := cjImm(half)
			return Instruction{Op: OpJAL, Len: 2, Rd: 1, Imm: imm}, nil
		}
		imm := cimm6(half)
		return Instruction{Op: OpADDIW, Len: 2, Rd: rd, Rs1: rd, Imm: imm}, nil
	case 0b010: // C.LI
		imm := cimm6(half)
		return Instruction{Op: OpADDI, Len: 2, Rd: rd, Rs1: 0, Imm: imm}, nil
	case 0b011:
		if rd == 2 {
			// C.ADDI16SP
			v := ((half >> 6) & 0b1) << 4
			v |= ((half >> 2) & 0b1) << 5
			v |= ((half >> 5) & 0b1) << 6
			v |= ((half >> 3) & 0b11) << 7
			v |= ((half >> 12) & 0b1) << 9
			imm := xlen.NewImm(uint32(v), 10)
			return Instruction{Op: OpADDI, Len: 2, Rd: 2, Rs1: 2, Imm: imm}, nil
		}
		// C.LUI
		v := uint32((half>>2)&0b11111) << 12
		v |= uint32((half>>12)&0b1) << 17
		return Instruction{Op: OpLUI, Len: 2, Rd: rd, Imm: xlen.NewImm(v, 18)}, nil
	case 0b100:
		return decodeRVCAlu(half)
	case 0b101: // C.J
		imm := cjImm(half)
		return Instruction{Op: OpJAL, Len: 2, Rd: 0, Imm: imm}, nil
	case 0b110: // C.BEQZ
		imm := cbImm(half)
		rs1Prime := rvcPrime((half >> 7) & 0b111)
		return Instruction{Op: OpBEQ, Len: 2, Rs1: rs1Prime, Rs2: 0, Imm: imm}, nil
	case 0b111: // C.BNEZ
		imm := cbImm(half)
		rs1Prime := rvcPrime((half >> 7) & 0b111)
		return Instruction{Op: OpBNE, Len: 2, Rs1: rs1Prime, Rs2: 0, Imm: imm}, nil
	default:
		return Instruction{}, fmt.Errorf("decoder: unsupported RVC quadrant 1 funct3 %03b", funct3)
	}
}

func cimm6(half uint16) xlen.Imm {
	v := uint32(half>>2) & 0b11111
	v |= uint32(half>>12&0b1) << 5
	return xlen.NewImm(v, 6)
}

func cjImm(half uint16) xlen.Imm {
	b := func(bit int) uint32 { return uint32(half>>uint(bit)) & 1 }
	v := b(3)<<1 | b(4)<<2 | b(5)<<3 | b(11)<<4 | b(2)<<5 | b(7)<<6 | b(6)<<7 | b(9)<<8 | b(10)<<9 | b(8)<<10 | b(12)<<11
	return xlen.NewImm(v, 12)
}

func cbImm(half uint16) xlen.Imm {
	b := func(bit int) uint32 { return uint32(half>>uint(bit)) & 1 }
	v := b(3)<<1 | b(4)<<2 | b(10)<<3 | b(11)<<4 | b(2)<<5 | b(5)<<6 | b(6)<<7 | b(12)<<8
	return xlen.NewImm(v, 9)
}

func decodeRVCAlu(half uint16) (Instruction, error) {
	rdPrime := rvcPrime((half >> 7) & 0b111)
	funct2High := (half >> 10) & 0b11
	switch funct2High {
	case 0b00: // C.SRLI
		shamt := ((half >> 2) & 0b11111) | (((half >> 12) & 1) << 5)
		return Instruction{Op: OpSRLI, Len: 2, Rd: rdPrime, Rs1: rdPrime, Imm: xlen.NewImm(uint32(shamt), 6)}, nil
	case 0b01: // C.SRAI
		shamt := ((half >> 2) & 0b11111) | (((half >> 12) & 1) << 5)
		return Instruction{Op: OpSRAI, Len: 2, Rd: rdPrime, Rs1: rdPrime, Imm: xlen.NewImm(uint32(shamt), 6)}, nil
	case 0b10: // C.ANDI
		imm := cimm6(half)
		return Instruction{Op: OpANDI, Len: 2, Rd: rdPrime, Rs1: rdPrime, Imm: imm}, nil
	case 0b11:
		rs2Prime := rvcPrime((half >> 2) & 0b111)
		isWord := (half>>12)&1 != 0
		switch (half >> 5) & 0b11 {
		case 0b00:
			op := OpSUB
			if isWord {
				op = OpSUBW
			}
			return Instruction{Op: op, Len: 2, Rd: rdPrime, Rs1: rdPrime, Rs2: rs2Prime}, nil
		case 0b01:
			op := OpXOR
			if isWord {
				op = OpADDW // C.ADDW
			}
			return Instruction{Op: op, Len: 2, Rd: rdPrime, Rs1: rdPrime, Rs2: rs2Prime}, nil
		case 0b10:
			return Instruction{Op: OpOR, Len: 2, Rd: rdPrime, Rs1: rdPrime, Rs2: rs2Prime}, nil
		case 0b11:
			return Instruction{Op: OpAND, Len: 2, Rd: rdPrime, Rs1: rdPrime, Rs2: rs2Prime}, nil
		}
	}
	return Instruction{}, fmt.Errorf("decoder: unsupported RVC ALU encoding 0x%04x", half)
}

func decodeRVC2(half uint16, funct3 uint8) (Instruction, error) {
	rd := uint8((half >> 7) & 0b11111)
	rs2 := uint8((half >> 2) & 0b11111)

	switch funct3 {
	case 0b000: // C.SLLI
		shamt := ((half >> 2) & 0b11111) | (((half >> 12) & 1) << 5)
		return Instruction{Op: OpSLLI, Len: 2, Rd: rd, Rs1: rd, Imm: xlen.NewImm(uint32(shamt), 6)}, nil
	case 0b010: // C.LWSP
		v := ((half >> 4) & 0b111) << 2
		v |= ((half >> 12) & 0b1) << 5
		v |= ((half >> 2) & 0b11) << 6
		return Instruction{Op: OpLW, Len: 2, Rd: rd, Rs1: 2, Imm: xlen.NewImm(uint32(v), 8)}, nil
	case 0b011: // C.LDSP
		v := ((half >> 5) & 0b11) << 3
		v |= ((half >> 12) & 0b1) << 5
		v |= ((half >> 2) & 0b111) << 6
		return Instruction{Op: OpLD, Len: 2, Rd: rd, Rs1: 2, Imm: xlen.NewImm(uint32(v), 9)}, nil
	case 0b100:
		bit12 := (half >> 12) & 1
		switch {
		case bit12 == 0 && rs2 == 0: // C.JR
			return Instruction{Op: OpJALR, Len: 2, Rd: 0, Rs1: rd, Imm: xlen.NewImm(0, 12)}, nil
		case bit12 == 0: // C.MV
			return Instruction{Op: OpADD, Len: 2, Rd: rd, Rs1: 0, Rs2: rs2}, nil
		case bit12 == 1 && rd == 0 && rs2 == 0: // C.EBREAK
			return Instruction{Op: OpEBREAK, Len: 2}, nil
		case bit12 == 1 && rs2 == 0: // C.JALR
			return Instruction{Op: OpJALR, Len: 2, Rd: 1, Rs1: rd, Imm: xlen.NewImm(0, 12)}, nil
		default: // C.ADD
			return Instruction{Op: OpADD, Len: 2, Rd: rd, Rs1: rd, Rs2: rs2}, nil
		}
	case 0b110: // C.SWSP
		v := ((half >> 9) & 0b1111) << 2
		v |= ((half >> 7) & 0b11) << 6
		return Instruction{Op: OpSW, Len: 2, Rs1: 2, Rs2: rs2, Imm: xlen.NewImm(uint32(v), 8)}, nil
	case 0b111: // C.SDSP
		v := ((half >> 10) & 0b111) << 3
		v |= ((half >> 7) & 0b111) << 6
		return Instruction{Op: OpSD, Len: 2, Rs1: 2, Rs2: rs2, Imm: xlen.NewImm(uint32(v), 9)}, nil
	default:
		return Instruction{}, fmt.Errorf("decoder: unsupported RVC quadrant 2 funct3 %03b", funct3)
	}
}
