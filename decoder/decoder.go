// Package decoder turns raw instruction words into a tagged Instruction
// value. It covers the RV32I/RV64I base integer encodings, the Zicsr
// extension, and the 16-bit RVC compressed encodings, bit-exact against the
// reference decoder this simulator was modeled on.
package decoder

import (
	"fmt"

	"github.com/lookbusy1344/rv-emulator/xlen"
)

// Op names one decoded operation. Values are grouped by source extension;
// RVC ops decode straight to their expanded base-ISA equivalent rather than
// getting their own Op (C.NOP, for example, decodes to OpADDI).
type Op int

const (
	OpInvalid Op = iota

	// RV32I
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpECALL
	OpEBREAK

	// RV64I (illegal under RV32I; Decode32 and Decode16 reject them at
	// decode time when xl is X32)
	OpLWU
	OpLD
	OpSD
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
)

var opNames = map[Op]string{
	OpInvalid: "invalid",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori", OpANDI: "andi",
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpFENCE: "fence", OpECALL: "ecall", OpEBREAK: "ebreak",
	OpLWU: "lwu", OpLD: "ld", OpSD: "sd",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw", OpSRAW: "sraw",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Instruction is the decoded, operand-extracted form of one instruction
// word, independent of source length (4-byte base or 2-byte RVC).
type Instruction struct {
	Op       Op
	Len      int // 2 or 4
	Rd       uint8
	Rs1      uint8
	Rs2      uint8
	Imm      xlen.Imm
	Csr      uint16 // valid only for Zicsr ops
	ZimmUimm uint8  // CSRRWI/CSRRSI/CSRRCI 5-bit zero-extended immediate operand
}

// DecodeLength inspects the low 2 bits of the first fetched halfword and
// reports whether the full instruction is 2 or 4 bytes: the universal RVC
// gate, "11" selects the 32-bit encoding, anything else is a 16-bit RVC
// instruction.
func DecodeLength(firstHalfword uint16) int {
	if firstHalfword&0b11 == 0b11 {
		return 4
	}
	return 2
}

// base opcode field values (bits [6:0]).
const (
	opLoad   = 0b0000011
	opMiscMem = 0b0001111
	opOpImm  = 0b0010011
	opAUIPC  = 0b0010111
	opOpImm32 = 0b0011011
	opStore  = 0b0100011
	opOp     = 0b0110011
	opLUI    = 0b0110111
	opOp32   = 0b0111011
	opBranch = 0b1100011
	opJALR   = 0b1100111
	opJAL    = 0b1101111
	opSystem = 0b1110011
)

func bits(word uint32, hi, lo int) uint32 {
	return (word >> uint(lo)) & ((1 << uint(hi-lo+1)) - 1)
}

// Decode32 decodes a 4-byte base-ISA (or Zicsr) instruction word. xl gates
// the RV64-only opcodes and shamt widths: the decoder is the sole
// enforcement point, so execute never needs to
// re-check XLEN before running whatever Op it's handed.
func Decode32(word uint32, xl xlen.Xlen) (Instruction, error) {
	opcode := word & 0x7F
	funct3 := uint8(bits(word, 14, 12))
	funct7 := uint8(bits(word, 31, 25))
	rd := uint8(bits(word, 11, 7))
	rs1 := uint8(bits(word, 19, 15))
	rs2 := uint8(bits(word, 24, 20))

	switch opcode {
	case opLUI:
		return Instruction{Op: OpLUI, Len: 4, Rd: rd, Imm: uType(word)}, nil
	case opAUIPC:
		return Instruction{Op: OpAUIPC, Len: 4, Rd: rd, Imm: uType(word)}, nil
	case opJAL:
		return Instruction{Op: OpJAL, Len: 4, Rd: rd, Imm: jType(word)}, nil
	case opJALR:
		if funct3 != 0 {
			return Instruction{}, fmt.Errorf("decoder: illegal jalr funct3 %d", funct3)
		}
		return Instruction{Op: OpJALR, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case opBranch:
		op, err := branchOp(funct3)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: op, Len: 4, Rs1: rs1, Rs2: rs2, Imm: bType(word)}, nil
	case opLoad:
		op, err := loadOp(funct3, xl)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: op, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case opStore:
		op, err := storeOp(funct3, xl)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: op, Len: 4, Rs1: rs1, Rs2: rs2, Imm: sType(word)}, nil
	case opOpImm:
		return decodeOpImm(word, funct3, funct7, rd, rs1, false, xl)
	case opOpImm32:
		if xl == xlen.X32 {
			return Instruction{}, fmt.Errorf("decoder: OP-IMM-32 is illegal under %v", xl)
		}
		return decodeOpImm(word, funct3, funct7, rd, rs1, true, xl)
	case opOp:
		op, err := regRegOp(funct3, funct7, false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: op, Len: 4, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
	case opOp32:
		if xl == xlen.X32 {
			return Instruction{}, fmt.Errorf("decoder: OP-32 is illegal under %v", xl)
		}
		op, err := regRegOp(funct3, funct7, true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: op, Len: 4, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
	case opMiscMem:
		return Instruction{Op: OpFENCE, Len: 4}, nil
	case opSystem:
		return decodeSystem(word, funct3, rd, rs1)
	default:
		return Instruction{}, fmt.Errorf("decoder: unknown opcode 0b%07b", opcode)
	}
}

func branchOp(funct3 uint8) (Op, error) {
	switch funct3 {
	case 0b000:
		return OpBEQ, nil
	case 0b001:
		return OpBNE, nil
	case 0b100:
		return OpBLT, nil
	case 0b101:
		return OpBGE, nil
	case 0b110:
		return OpBLTU, nil
	case 0b111:
		return OpBGEU, nil
	default:
		return OpInvalid, fmt.Errorf("decoder: illegal branch funct3 %03b", funct3)
	}
}

func loadOp(funct3 uint8, xl xlen.Xlen) (Op, error) {
	switch funct3 {
	case 0b000:
		return OpLB, nil
	case 0b001:
		return OpLH, nil
	case 0b010:
		return OpLW, nil
	case 0b100:
		return OpLBU, nil
	case 0b101:
		return OpLHU, nil
	case 0b110:
		if xl == xlen.X32 {
			return OpInvalid, fmt.Errorf("decoder: lwu is illegal under %v", xl)
		}
		return OpLWU, nil
	case 0b011:
		if xl == xlen.X32 {
			return OpInvalid, fmt.Errorf("decoder: ld is illegal under %v", xl)
		}
		return OpLD, nil
	default:
		return OpInvalid, fmt.Errorf("decoder: illegal load funct3 %03b", funct3)
	}
}

func storeOp(funct3 uint8, xl xlen.Xlen) (Op, error) {
	switch funct3 {
	case 0b000:
		return OpSB, nil
	case 0b001:
		return OpSH, nil
	case 0b010:
		return OpSW, nil
	case 0b011:
		if xl == xlen.X32 {
			return OpInvalid, fmt.Errorf("decoder: sd is illegal under %v", xl)
		}
		return OpSD, nil
	default:
		return OpInvalid, fmt.Errorf("decoder: illegal store funct3 %03b", funct3)
	}
}

func decodeOpImm(word uint32, funct3 uint8, funct7 uint8, rd, rs1 uint8, is32 bool, xl xlen.Xlen) (Instruction, error) {
	switch funct3 {
	case 0b000:
		op := OpADDI
		if is32 {
			op = OpADDIW
		}
		return Instruction{Op: op, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case 0b010:
		if is32 {
			return Instruction{}, fmt.Errorf("decoder: slti not valid in OP-IMM-32")
		}
		return Instruction{Op: OpSLTI, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case 0b011:
		if is32 {
			return Instruction{}, fmt.Errorf("decoder: sltiu not valid in OP-IMM-32")
		}
		return Instruction{Op: OpSLTIU, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case 0b100:
		if is32 {
			return Instruction{}, fmt.Errorf("decoder: xori not valid in OP-IMM-32")
		}
		return Instruction{Op: OpXORI, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case 0b110:
		if is32 {
			return Instruction{}, fmt.Errorf("decoder: ori not valid in OP-IMM-32")
		}
		return Instruction{Op: OpORI, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case 0b111:
		if is32 {
			return Instruction{}, fmt.Errorf("decoder: andi not valid in OP-IMM-32")
		}
		return Instruction{Op: OpANDI, Len: 4, Rd: rd, Rs1: rs1, Imm: iType(word)}, nil
	case 0b001:
		// OP-IMM-32's SLLIW always takes a 5-bit shamt (bits [24:20]).
		// Plain OP-IMM's SLLI takes a 6-bit shamt (bits [25:20]) under
		// RV64I, but under RV32I bit 25 isn't part of the shamt at all —
		// it's the lowest bit of funct7, which must read as 0 (the
		// "funct7==0" gating rule), so a word with that bit set is not
		// SLLI, it's an illegal encoding.
		op := OpSLLI
		shamtBits := uint8(6)
		if is32 {
			op = OpSLLIW
			shamtBits = 5
		} else if xl == xlen.X32 {
			shamtBits = 5
			if funct7&0b0000001 != 0 {
				return Instruction{}, fmt.Errorf("decoder: illegal slli shamt bit under %v", xl)
			}
		}
		shamt := bits(word, int(19+shamtBits), 20)
		return Instruction{Op: op, Len: 4, Rd: rd, Rs1: rs1, Imm: xlen.NewImm(shamt, shamtBits)}, nil
	case 0b101:
		arithmetic := funct7&0b0100000 != 0
		op := OpSRLI
		shamtBits := uint8(6)
		if is32 {
			shamtBits = 5
		} else if xl == xlen.X32 {
			shamtBits = 5
			if funct7&0b0000001 != 0 {
				return Instruction{}, fmt.Errorf("decoder: illegal srli/srai shamt bit under %v", xl)
			}
		}
		switch {
		case is32 && arithmetic:
			op = OpSRAIW
		case is32 && !arithmetic:
			op = OpSRLIW
		case !is32 && arithmetic:
			op = OpSRAI
		}
		shamt := bits(word, int(19+shamtBits), 20)
		return Instruction{Op: op, Len: 4, Rd: rd, Rs1: rs1, Imm: xlen.NewImm(shamt, shamtBits)}, nil
	default:
		return Instruction{}, fmt.Errorf("decoder: unreachable op-imm funct3 %03b", funct3)
	}
}

func regRegOp(funct3 uint8, funct7 uint8, is32 bool) (Op, error) {
	switch {
	case funct3 == 0b000 && funct7 == 0b0000000:
		if is32 {
			return OpADDW, nil
		}
		return OpADD, nil
	case funct3 == 0b000 && funct7 == 0b0100000:
		if is32 {
			return OpSUBW, nil
		}
		return OpSUB, nil
	case funct3 == 0b001 && funct7 == 0b0000000:
		if is32 {
			return OpSLLW, nil
		}
		return OpSLL, nil
	case funct3 == 0b010 && funct7 == 0b0000000 && !is32:
		return OpSLT, nil
	case funct3 == 0b011 && funct7 == 0b0000000 && !is32:
		return OpSLTU, nil
	case funct3 == 0b100 && funct7 == 0b0000000 && !is32:
		return OpXOR, nil
	case funct3 == 0b101 && funct7 == 0b0000000:
		if is32 {
			return OpSRLW, nil
		}
		return OpSRL, nil
	case funct3 == 0b101 && funct7 == 0b0100000:
		if is32 {
			return OpSRAW, nil
		}
		return OpSRA, nil
	case funct3 == 0b110 && funct7 == 0b0000000 && !is32:
		return OpOR, nil
	case funct3 == 0b111 && funct7 == 0b0000000 && !is32:
		return OpAND, nil
	default:
		return OpInvalid, fmt.Errorf("decoder: unsupported reg-reg funct3=%03b funct7=%07b is32=%v", funct3, funct7, is32)
	}
}

func decodeSystem(word uint32, funct3 uint8, rd, rs1 uint8) (Instruction, error) {
	if funct3 == 0 {
		imm12 := bits(word, 31, 20)
		switch imm12 {
		case 0:
			return Instruction{Op: OpECALL, Len: 4}, nil
		case 1:
			return Instruction{Op: OpEBREAK, Len: 4}, nil
		default:
			return Instruction{}, fmt.Errorf("decoder: unsupported system imm12 0x%x", imm12)
		}
	}
	csr := uint16(bits(word, 31, 20))
	switch funct3 {
	case 0b001:
		return Instruction{Op: OpCSRRW, Len: 4, Rd: rd, Rs1: rs1, Csr: csr}, nil
	case 0b010:
		return Instruction{Op: OpCSRRS, Len: 4, Rd: rd, Rs1: rs1, Csr: csr}, nil
	case 0b011:
		return Instruction{Op: OpCSRRC, Len: 4, Rd: rd, Rs1: rs1, Csr: csr}, nil
	case 0b101:
		return Instruction{Op: OpCSRRWI, Len: 4, Rd: rd, Csr: csr, ZimmUimm: rs1}, nil
	case 0b110:
		return Instruction{Op: OpCSRRSI, Len: 4, Rd: rd, Csr: csr, ZimmUimm: rs1}, nil
	case 0b111:
		return Instruction{Op: OpCSRRCI, Len: 4, Rd: rd, Csr: csr, ZimmUimm: rs1}, nil
	default:
		return Instruction{}, fmt.Errorf("decoder: unsupported system funct3 %03b", funct3)
	}
}

// uType gathers the U-type immediate: bits [31:12] placed at bit 12, the
// rest zero. Valid bits is 32 (the full word, already shifted into place)
// so Sext is a no-op sign check on bit 31.
func uType(word uint32) xlen.Imm {
	return xlen.NewImm(word&0xFFFFF000, 32)
}

// jType gathers the J-type immediate (bit 20 sign, bits [10:1], bit 11,
// bits [19:12]) into a 21-bit signed byte offset.
func jType(word uint32) xlen.Imm {
	imm20 := bits(word, 31, 31)
	imm10_1 := bits(word, 30, 21)
	imm11 := bits(word, 20, 20)
	imm19_12 := bits(word, 19, 12)
	v := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	return xlen.NewImm(v, 21)
}

// iType gathers the 12-bit I-type immediate.
func iType(word uint32) xlen.Imm {
	return xlen.NewImm(bits(word, 31, 20), 12)
}

// sType gathers the 12-bit S-type immediate (bits [11:5] and [4:0] split
// around the source register fields).
func sType(word uint32) xlen.Imm {
	hi := bits(word, 31, 25)
	lo := bits(word, 11, 7)
	return xlen.NewImm((hi<<5)|lo, 12)
}

// bType gathers the B-type immediate (bit 12 sign, bit 11, bits [10:5],
// bits [4:1]) into a 13-bit signed byte offset.
func bType(word uint32) xlen.Imm {
	imm12 := bits(word, 31, 31)
	imm10_5 := bits(word, 30, 25)
	imm4_1 := bits(word, 11, 8)
	imm11 := bits(word, 7, 7)
	v := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	return xlen.NewImm(v, 13)
}
