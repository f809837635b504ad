package plum

// ByteOrder selects how multi-byte integers are laid out.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// Suffix returns the short format-name suffix, "be" or "le".
func (o ByteOrder) Suffix() string {
	if o == LittleEndian {
		return "le"
	}
	return "be"
}

// PutUint writes the low len(b) bytes of v into b.
func (o ByteOrder) PutUint(b []byte, v uint64) {
	n := len(b)
	for i := range n {
		shift := 8 * uint(i)
		if o == LittleEndian {
			b[i] = byte(v >> shift)
		} else {
			b[n-1-i] = byte(v >> shift)
		}
	}
}

// Uint reads len(b) bytes as an unsigned integer.
func (o ByteOrder) Uint(b []byte) uint64 {
	var v uint64
	n := len(b)
	for i := range n {
		shift := 8 * uint(i)
		if o == LittleEndian {
			v |= uint64(b[i]) << shift
		} else {
			v |= uint64(b[n-1-i]) << shift
		}
	}
	return v
}
