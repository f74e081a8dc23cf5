package helpers

// A fixed-size set of small integers. The linker uses one per module to record
// which chunk roots reach it, and the string form is used as a map key to
// group modules with identical reachability into the same chunk.
type BitSet struct {
	entries []byte
}

func NewBitSet(bitCount uint) BitSet {
	return BitSet{make([]byte, (bitCount+7)/8)}
}

func (bs BitSet) HasBit(bit uint) bool {
	return (bs.entries[bit/8] & (1 << (bit & 7))) != 0
}

func (bs BitSet) SetBit(bit uint) {
	bs.entries[bit/8] |= 1 << (bit & 7)
}

func (bs BitSet) IsAllZeros() bool {
	for _, b := range bs.entries {
		if b != 0 {
			return false
		}
	}
	return true
}

func (bs BitSet) String() string {
	return string(bs.entries)
}
