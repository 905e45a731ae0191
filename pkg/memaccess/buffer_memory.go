package memaccess

// BufferMemory is an in-memory ProcessMemory backed by module byte buffers.
// It backs unit tests and the dry-run execution path, where no live process exists.
type BufferMemory struct {
	ProcessID int32
	ModuleSet []ModuleInfo
	buffers   map[string][]byte
	closed    bool

	// FailWritesAt makes writes to the given address fail once, then clear.
	// Used to exercise the critical-symbol retry path.
	FailWritesAt uint64
}

func NewBufferMemory(pid int32) *BufferMemory {
	return &BufferMemory{
		ProcessID: pid,
		buffers:   map[string][]byte{},
	}
}

// AddModule maps a named byte buffer at the given base address.
func (m *BufferMemory) AddModule(name string, base uint64, data []byte) {
	m.ModuleSet = append(m.ModuleSet, ModuleInfo{Name: name, Base: base, Size: uint64(len(data))})
	m.buffers[name] = data
}

func (m *BufferMemory) Pid() int32 {
	return m.ProcessID
}

func (m *BufferMemory) locate(addr uint64, n int) (ModuleInfo, []byte, bool) {
	for _, mod := range m.ModuleSet {
		if addr >= mod.Base && addr+uint64(n) <= mod.Base+mod.Size {
			return mod, m.buffers[mod.Name], true
		}
	}
	return ModuleInfo{}, nil, false
}

func (m *BufferMemory) ReadBytes(addr uint64, n int) ([]byte, error) {
	if m.closed {
		return nil, ErrProcessNotOpen
	}

	mod, buf, found := m.locate(addr, n)
	if !found {
		return nil, ErrAddressNotMapped
	}

	out := make([]byte, n)
	copy(out, buf[addr-mod.Base:])
	return out, nil
}

func (m *BufferMemory) WriteBytes(addr uint64, data []byte) error {
	if m.closed {
		return ErrProcessNotOpen
	}

	if m.FailWritesAt != 0 && addr == m.FailWritesAt {
		m.FailWritesAt = 0
		return ErrAddressNotMapped
	}

	mod, buf, found := m.locate(addr, len(data))
	if !found {
		return ErrAddressNotMapped
	}

	copy(buf[addr-mod.Base:], data)
	return nil
}

func (m *BufferMemory) Modules() ([]ModuleInfo, error) {
	if m.closed {
		return nil, ErrProcessNotOpen
	}
	out := make([]ModuleInfo, len(m.ModuleSet))
	copy(out, m.ModuleSet)
	return out, nil
}

func (m *BufferMemory) Close() error {
	m.closed = true
	return nil
}

var _ ProcessMemory = (*BufferMemory)(nil)
