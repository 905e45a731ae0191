// Package memaccess reads and writes the memory of a foreign process.
// It deliberately exposes only the narrow surface the runtime core needs:
// byte-level reads/writes at absolute addresses and module enumeration.
package memaccess

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region.
	ErrAddressNotMapped = errors.New("address not mapped")

	ErrUnsupportedPlatform = errors.New("process memory access is not supported on this platform")
)

// ModuleInfo describes one module mapped into the target process.
type ModuleInfo struct {
	Name string
	Base uint64
	Size uint64
}

// ProcessMemory is a handle to the address space of a running process.
type ProcessMemory interface {
	Pid() int32
	ReadBytes(addr uint64, n int) ([]byte, error)
	WriteBytes(addr uint64, data []byte) error
	Modules() ([]ModuleInfo, error)
	Close() error
}

// Open attaches to the address space of the given process.
func Open(pid int32) (ProcessMemory, error) {
	return openProcess(pid)
}

func ReadUint32(m ProcessMemory, addr uint64) (uint32, error) {
	raw, err := m.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func ReadInt32(m ProcessMemory, addr uint64) (int32, error) {
	val, err := ReadUint32(m, addr)
	return int32(val), err
}

func WriteUint32(m ProcessMemory, addr uint64, val uint32) error {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, val)
	return m.WriteBytes(addr, raw)
}

func WriteInt32(m ProcessMemory, addr uint64, val int32) error {
	return WriteUint32(m, addr, uint32(val))
}

// The target is a 32-bit binary; floats are IEEE-754 single precision.
func ReadFloat32(m ProcessMemory, addr uint64) (float32, error) {
	bits, err := ReadUint32(m, addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func WriteFloat32(m ProcessMemory, addr uint64, val float32) error {
	return WriteUint32(m, addr, math.Float32bits(val))
}

func ReadUint8(m ProcessMemory, addr uint64) (uint8, error) {
	raw, err := m.ReadBytes(addr, 1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

func WriteUint8(m ProcessMemory, addr uint64, val uint8) error {
	return m.WriteBytes(addr, []byte{val})
}
