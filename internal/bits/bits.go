// Package bits resolves bit-field positions within a shared integer group.
package bits

import (
	"sort"

	"github.com/wippyai/plum/errors"
)

// Unpositioned marks a field whose lsb is assigned during resolution.
const Unpositioned = -1

// Order decides where unpositioned fields go.
type Order uint8

const (
	// LeastToMost places the first declared field at bit 0.
	LeastToMost Order = iota
	// MostToLeast places the first declared field at the top of the group.
	MostToLeast
)

func (o Order) String() string {
	if o == MostToLeast {
		return "most_to_least"
	}
	return "least_to_most"
}

// Field is a bit-field declaration.
type Field struct {
	Name string
	Size int
	LSB  int
}

// Placed is a resolved bit-field.
type Placed struct {
	Name string
	LSB  int
	Size int
}

// MSB returns the top bit index of the field.
func (p Placed) MSB() int {
	return p.LSB + p.Size - 1
}

// Mask returns the field mask in group position.
func (p Placed) Mask() uint64 {
	return Mask(p.Size) << uint(p.LSB)
}

// Group is a resolved run of bit-fields sharing one integer.
type Group struct {
	Fields []Placed
	NBytes int
}

// Bits returns the group width in bits.
func (g Group) Bits() int {
	return g.NBytes * 8
}

// Mask returns the union of all field masks.
func (g Group) Mask() uint64 {
	var m uint64
	for _, f := range g.Fields {
		m |= f.Mask()
	}
	return m
}

// Resolve assigns lsb positions to unpositioned fields, checks for overlap
// and sizes the group. nbytes of zero selects the minimum width.
//
// Unpositioned fields are packed contiguously in declaration order directly
// after the previous field's top bit (LeastToMost) or directly below the
// previous field's lsb (MostToLeast).
func Resolve(fields []Field, nbytes int, order Order) (Group, error) {
	placed := make([]Placed, len(fields))

	for _, f := range fields {
		if f.Size < 1 || f.Size > 64 {
			return Group{}, errors.New(errors.PhaseDeclare, errors.KindInvalidValue).
				Path(f.Name).
				Value(f.Size).
				Detail("bit-field %q size %d not in 1..64", f.Name, f.Size).
				Build()
		}
		if f.LSB < Unpositioned {
			return Group{}, errors.New(errors.PhaseDeclare, errors.KindInvalidValue).
				Path(f.Name).
				Value(f.LSB).
				Detail("bit-field %q has negative lsb %d", f.Name, f.LSB).
				Build()
		}
	}

	if order == LeastToMost {
		cursor := 0
		for i, f := range fields {
			lsb := f.LSB
			if lsb == Unpositioned {
				lsb = cursor
			}
			placed[i] = Placed{Name: f.Name, LSB: lsb, Size: f.Size}
			cursor = lsb + f.Size
		}
	} else {
		cursor := topBit(fields, nbytes)
		for i, f := range fields {
			lsb := f.LSB
			if lsb == Unpositioned {
				lsb = cursor - f.Size
				if lsb < 0 {
					return Group{}, errors.New(errors.PhaseDeclare, errors.KindTypeTooSmall).
						Path(f.Name).
						Detail("no room below bit %d for bit-field %q of %d bits", cursor, f.Name, f.Size).
						Build()
				}
			}
			placed[i] = Placed{Name: f.Name, LSB: lsb, Size: f.Size}
			cursor = lsb
		}
	}

	if err := checkOverlap(placed); err != nil {
		return Group{}, err
	}

	top := 0
	for _, p := range placed {
		top = max(top, p.LSB+p.Size)
	}
	need := (top + 7) / 8

	if nbytes == 0 {
		nbytes = need
	}
	if nbytes < need {
		return Group{}, errors.New(errors.PhaseDeclare, errors.KindTypeTooSmall).
			Value(nbytes).
			Detail("%d bytes declared, bit-fields need %d", nbytes, need).
			Build()
	}
	if nbytes > 8 {
		return Group{}, errors.New(errors.PhaseDeclare, errors.KindUnsupported).
			Value(nbytes).
			Detail("bit-field group of %d bytes exceeds 8", nbytes).
			Build()
	}

	return Group{Fields: placed, NBytes: nbytes}, nil
}

// topBit returns the starting cursor for MostToLeast placement.
func topBit(fields []Field, nbytes int) int {
	if nbytes > 0 {
		return nbytes * 8
	}
	sum, top := 0, 0
	for _, f := range fields {
		sum += f.Size
		if f.LSB != Unpositioned {
			top = max(top, f.LSB+f.Size)
		}
	}
	return max(roundUp8(sum), roundUp8(top))
}

func roundUp8(n int) int {
	return (n + 7) / 8 * 8
}

func checkOverlap(placed []Placed) error {
	idx := make([]int, len(placed))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return placed[idx[a]].LSB < placed[idx[b]].LSB
	})

	for i := 1; i < len(idx); i++ {
		for j := i - 1; j >= 0; j-- {
			lo, hi := placed[idx[j]], placed[idx[i]]
			if lo.LSB+lo.Size > hi.LSB {
				first, second := lo, hi
				if idx[i] < idx[j] {
					first, second = hi, lo
				}
				return errors.OverlappingField("", first.Name, second.Name)
			}
		}
	}
	return nil
}

// Mask returns a mask of the low n bits.
func Mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(n) - 1
}

// Extract reads size bits at lsb.
func Extract(raw uint64, lsb, size int) uint64 {
	return (raw >> uint(lsb)) & Mask(size)
}

// Insert writes the low size bits of v at lsb.
func Insert(raw uint64, lsb, size int, v uint64) uint64 {
	m := Mask(size) << uint(lsb)
	return (raw &^ m) | ((v << uint(lsb)) & m)
}

// SignExtend interprets the low size bits of v as two's complement.
func SignExtend(v uint64, size int) int64 {
	if size >= 64 {
		return int64(v)
	}
	shift := 64 - uint(size)
	return int64(v<<shift) >> shift
}

// SignedRange returns the inclusive range of a size-bit signed field.
func SignedRange(size int) (int64, int64) {
	if size >= 64 {
		return -1 << 63, 1<<63 - 1
	}
	hi := int64(1)<<uint(size-1) - 1
	return -hi - 1, hi
}
