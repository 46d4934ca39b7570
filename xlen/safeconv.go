package xlen

import (
	"fmt"
	"math"
)

// SafeUint64ToUint32 narrows v to 32 bits, failing loudly instead of
// silently truncating, for a 64-bit address bound for an RV32 hart. The CLI
// and the debugger do not call it: main.go's addrToUWord truncates --pc.
func SafeUint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("xlen: value 0x%x exceeds uint32 range for an RV32 address", v)
	}
	return uint32(v), nil
}

// SafeInt64ToUint64 rejects negative values rather than silently
// reinterpreting their bit pattern, for inputs that must be an address
// (never negative) but arrive through a signed parser. Nothing in this
// module calls it.
func SafeInt64ToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("xlen: value %d cannot be a negative address", v)
	}
	return uint64(v), nil
}
