// Package cpu implements the XLEN-polymorphic execution engine: the integer
// register file, the CSR file, and the Fetch/Execute pipeline that drives
// them against a memory.Physical address space.
package cpu

import "github.com/lookbusy1344/rv-emulator/xlen"

// XReg is the 32-entry integer register file. x0 reads as zero because
// every write method below silently no-ops on index 0 — there is no
// separate read-time check, matching the reference register file.
type XReg struct {
	x [32]xlen.UWord
}

// NewXReg returns a zeroed register file for the given XLEN.
func NewXReg(xl xlen.Xlen) *XReg {
	r := &XReg{}
	for i := range r.x {
		r.x[i] = xlen.ZeroUWord(xl)
	}
	return r
}

// RUsize reads register idx as an unsigned word.
func (r *XReg) RUsize(idx uint8) xlen.UWord { return r.x[idx] }

// RIsize reads register idx as a signed word.
func (r *XReg) RIsize(idx uint8) xlen.IWord { return r.x[idx].AsIWord() }

// RLow32 reads the low 32 bits of register idx.
func (r *XReg) RLow32(idx uint8) uint32 { return r.x[idx].Low32() }

// WUsize writes an unsigned word to register idx; a no-op when idx is 0.
func (r *XReg) WUsize(idx uint8, val xlen.UWord) {
	if idx == 0 {
		return
	}
	r.x[idx] = val
}

// WIsize writes a signed word to register idx; a no-op when idx is 0.
func (r *XReg) WIsize(idx uint8, val xlen.IWord) {
	if idx == 0 {
		return
	}
	r.x[idx] = val.AsUWord()
}

// WZext32 zero-extends a 32-bit value into register idx, widening to the
// register file's XLEN; a no-op when idx is 0.
func (r *XReg) WZext32(idx uint8, val uint32) {
	if idx == 0 {
		return
	}
	switch r.x[idx].Xlen() {
	case xlen.X32:
		r.x[idx] = xlen.NewUWord32(val)
	case xlen.X64:
		r.x[idx] = xlen.NewUWord64(uint64(val))
	}
}

// WSext32 sign-extends a 32-bit value into register idx. This is the
// canonicalization every W-suffix instruction (ADDW, SLLW, ...) performs on
// its result before writing back, per the W-suffix rule in SPEC_FULL.md.
func (r *XReg) WSext32(idx uint8, val uint32) {
	if idx == 0 {
		return
	}
	switch r.x[idx].Xlen() {
	case xlen.X32:
		r.x[idx] = xlen.NewUWord32(val)
	case xlen.X64:
		sign := uint64(0)
		if val>>31 != 0 {
			sign = 0xFFFFFFFF00000000
		}
		r.x[idx] = xlen.NewUWord64(uint64(val) | sign)
	}
}
