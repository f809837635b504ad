package view

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/errors"
)

// Memory adapts a wazero linear memory for typed access.
type Memory struct {
	Mem api.Memory
}

// WrapMemory wraps mem, or returns nil for a nil memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

// Read copies length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds("read", offset, length)
	}
	return append([]byte(nil), data...), nil
}

// Write stores data at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return outOfBounds("write", offset, uint32(len(data)))
	}
	return nil
}

// View returns a view of t at offset that aliases guest memory. The view
// is invalidated when the memory grows.
func (m *Memory) View(t plum.Transform, offset uint32) (*View, error) {
	all, ok := m.Mem.Read(0, m.Mem.Size())
	if !ok {
		return nil, outOfBounds("read", 0, m.Mem.Size())
	}
	return New(t, all, int(offset))
}

// Load unpacks a value of t at offset.
func (m *Memory) Load(t plum.Transform, offset uint32) (any, error) {
	v, err := m.View(t, offset)
	if err != nil {
		return nil, err
	}
	return v.Get()
}

// Store packs val and writes it at offset. It returns the packed length.
func (m *Memory) Store(t plum.Transform, offset uint32, val any) (int, error) {
	b, err := plum.Pack(t, val)
	if err != nil {
		return 0, err
	}
	if err := m.Write(offset, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func outOfBounds(op string, offset, length uint32) error {
	return errors.New(errors.PhaseView, errors.KindOutOfRange).
		Offset(int(offset)).
		Value(length).
		Detail("memory %s out of bounds: offset=%d, length=%d", op, offset, length).
		Build()
}

// FromMemory is shorthand for WrapMemory(mem).View(t, offset).
func FromMemory(mem api.Memory, t plum.Transform, offset uint32) (*View, error) {
	return WrapMemory(mem).View(t, offset)
}
