package decoder

import (
	"testing"

	"github.com/lookbusy1344/rv-emulator/xlen"
)

// encR assembles an R-type word.
func encR(funct7 uint8, rs2, rs1, funct3, rd uint8, opcode uint8) uint32 {
	return uint32(funct7)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | uint32(opcode)
}

func encI(imm12 uint32, rs1, funct3, rd, opcode uint8) uint32 {
	return (imm12&0xFFF)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | uint32(opcode)
}

func TestDecodeLengthGate(t *testing.T) {
	if got := DecodeLength(0xFFFF); got != 4 {
		t.Errorf("low bits 11: expected 4, got %d", got)
	}
	if got := DecodeLength(0x0001); got != 2 {
		t.Errorf("low bits 01: expected 2, got %d", got)
	}
	if got := DecodeLength(0x0000); got != 2 {
		t.Errorf("low bits 00: expected 2, got %d", got)
	}
}

func TestDecodeAddi(t *testing.T) {
	word := encI(uint32(0xFFF&0x7FF|0x800), 1, 0b000, 2, opOpImm) // addi x2, x1, -1
	inst, err := Decode32(word, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpADDI || inst.Rd != 2 || inst.Rs1 != 1 {
		t.Errorf("unexpected decode: %+v", inst)
	}
	if inst.Imm.Low32() != 0xFFF {
		t.Errorf("expected imm 0xFFF, got 0x%x", inst.Imm.Low32())
	}
}

func TestDecodeSlliUsesSixBitShamtUnderBaseOpImm(t *testing.T) {
	// shamt = 0x3F (6 bits), funct7's lowest bit (bit 25) must be part of the shamt field here.
	word := encI(0x3F, 5, 0b001, 6, opOpImm)
	inst, err := Decode32(word, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpSLLI {
		t.Fatalf("expected SLLI, got %s", inst.Op)
	}
	if inst.Imm.Low32() != 0x3F {
		t.Errorf("expected shamt 0x3F, got 0x%x", inst.Imm.Low32())
	}
}

func TestDecodeSlliwUsesFiveBitShamtInOpImm32(t *testing.T) {
	word := encI(0x1F, 5, 0b001, 6, opOpImm32)
	inst, err := Decode32(word, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpSLLIW {
		t.Fatalf("expected SLLIW, got %s", inst.Op)
	}
	if inst.Imm.Low32() != 0x1F {
		t.Errorf("expected shamt 0x1F, got 0x%x", inst.Imm.Low32())
	}
}

func TestDecodeSraiSetsArithmeticBit(t *testing.T) {
	word := encI(0b010000<<6|0x1F, 5, 0b101, 6, opOpImm)
	inst, err := Decode32(word, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpSRAI {
		t.Fatalf("expected SRAI, got %s", inst.Op)
	}
}

func TestDecodeAddSubDistinguishedByFunct7(t *testing.T) {
	add := encR(0b0000000, 2, 1, 0b000, 3, opOp)
	sub := encR(0b0100000, 2, 1, 0b000, 3, opOp)

	addInst, err := Decode32(add, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32(add): %v", err)
	}
	if addInst.Op != OpADD {
		t.Errorf("expected ADD, got %s", addInst.Op)
	}

	subInst, err := Decode32(sub, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32(sub): %v", err)
	}
	if subInst.Op != OpSUB {
		t.Errorf("expected SUB, got %s", subInst.Op)
	}
}

func TestDecodeJalImmediateIsByteOffset(t *testing.T) {
	// jal x1, +2: a simple positive offset keeps the encoding legible:
	// offset 2 -> imm10_1 bit0 set (word bit 21).
	word := uint32(0)
	word |= 1 << 21 // imm[1] -> bit 21 maps to imm10_1 bit 0
	word |= uint32(1) << 7
	word |= opJAL
	inst, err := Decode32(word, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpJAL || inst.Rd != 1 {
		t.Errorf("unexpected decode: %+v", inst)
	}
	if inst.Imm.Low32() != 2 {
		t.Errorf("expected byte offset 2, got %d", inst.Imm.Low32())
	}
}

func TestDecodeCsrrw(t *testing.T) {
	word := encI(0x001, 5, 0b001, 6, opSystem)
	inst, err := Decode32(word, xlen.X64)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpCSRRW || inst.Csr != 0x001 || inst.Rs1 != 5 || inst.Rd != 6 {
		t.Errorf("unexpected decode: %+v", inst)
	}
}

func TestDecodeEcallEbreak(t *testing.T) {
	ecall := encI(0, 0, 0, 0, opSystem)
	inst, err := Decode32(ecall, xlen.X64)
	if err != nil || inst.Op != OpECALL {
		t.Errorf("expected ECALL, got %+v err=%v", inst, err)
	}

	ebreak := encI(1, 0, 0, 0, opSystem)
	inst, err = Decode32(ebreak, xlen.X64)
	if err != nil || inst.Op != OpEBREAK {
		t.Errorf("expected EBREAK, got %+v err=%v", inst, err)
	}
}

func TestDecodeIllegalBranchFunct3(t *testing.T) {
	word := encI(0, 1, 0b010, 0, opBranch) // funct3 010/011 undefined for branches
	if _, err := Decode32(word, xlen.X64); err == nil {
		t.Fatal("expected an error for an illegal branch funct3")
	}
}

func TestDecodeSlliUsesFiveBitShamtUnderX32(t *testing.T) {
	word := encI(0x1F, 5, 0b001, 6, opOpImm)
	inst, err := Decode32(word, xlen.X32)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if inst.Op != OpSLLI {
		t.Fatalf("expected SLLI, got %s", inst.Op)
	}
	if inst.Imm.Low32() != 0x1F {
		t.Errorf("expected shamt 0x1F, got 0x%x", inst.Imm.Low32())
	}
}

func TestDecodeSlliRejectsSixthShamtBitUnderX32(t *testing.T) {
	word := encI(0x3F, 5, 0b001, 6, opOpImm) // shamt bit 5 set: illegal under RV32I
	if _, err := Decode32(word, xlen.X32); err == nil {
		t.Fatal("expected an error for a 6-bit shamt under X32")
	}
}

func TestDecodeLwuLdSdRejectedUnderX32(t *testing.T) {
	lwu := encI(0, 1, 0b110, 2, opLoad)
	if _, err := Decode32(lwu, xlen.X32); err == nil {
		t.Fatal("expected lwu to be illegal under X32")
	}
	ld := encI(0, 1, 0b011, 2, opLoad)
	if _, err := Decode32(ld, xlen.X32); err == nil {
		t.Fatal("expected ld to be illegal under X32")
	}
	sd := encI(0, 1, 0b011, 2, opStore) // encI misuses rd for store but funct3/opcode suffice here
	if _, err := Decode32(sd, xlen.X32); err == nil {
		t.Fatal("expected sd to be illegal under X32")
	}
}

func TestDecodeOpImm32AndOp32RejectedUnderX32(t *testing.T) {
	addiw := encI(1, 5, 0b000, 6, opOpImm32)
	if _, err := Decode32(addiw, xlen.X32); err == nil {
		t.Fatal("expected OP-IMM-32 to be illegal under X32")
	}
	addw := encR(0b0000000, 2, 1, 0b000, 3, opOp32)
	if _, err := Decode32(addw, xlen.X32); err == nil {
		t.Fatal("expected OP-32 to be illegal under X32")
	}
}
