//go:build linux

package memaccess

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type linuxProcessMemory struct {
	pid int32
	mem *os.File
}

func openProcess(pid int32) (ProcessMemory, error) {
	mem, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory of process %d: %w", pid, err)
	}

	return &linuxProcessMemory{pid: pid, mem: mem}, nil
}

func (m *linuxProcessMemory) Pid() int32 {
	return m.pid
}

func (m *linuxProcessMemory) ReadBytes(addr uint64, n int) ([]byte, error) {
	if m.mem == nil {
		return nil, ErrProcessNotOpen
	}

	buf := make([]byte, n)
	read, err := m.mem.ReadAt(buf, int64(addr))
	if err != nil && read == 0 {
		return nil, fmt.Errorf("read of %d bytes at 0x%x failed: %w", n, addr, err)
	}
	return buf[:read], nil
}

func (m *linuxProcessMemory) WriteBytes(addr uint64, data []byte) error {
	if m.mem == nil {
		return ErrProcessNotOpen
	}

	written, err := m.mem.WriteAt(data, int64(addr))
	if err != nil {
		return fmt.Errorf("write of %d bytes at 0x%x failed: %w", len(data), addr, err)
	}
	if written != len(data) {
		return fmt.Errorf("short write at 0x%x: %d of %d bytes", addr, written, len(data))
	}
	return nil
}

// Modules parses /proc/<pid>/maps. Consecutive regions backed by the same file
// are folded into a single module entry spanning the lowest base to the highest end.
func (m *linuxProcessMemory) Modules() ([]ModuleInfo, error) {
	if m.mem == nil {
		return nil, ErrProcessNotOpen
	}

	maps, err := os.Open(fmt.Sprintf("/proc/%d/maps", m.pid))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map of process %d: %w", m.pid, err)
	}
	defer maps.Close()

	type span struct {
		base uint64
		end  uint64
	}
	spans := map[string]*span{}
	order := []string{}

	scanner := bufio.NewScanner(maps)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || !strings.HasPrefix(fields[5], "/") {
			continue
		}

		rangeParts := strings.SplitN(fields[0], "-", 2)
		if len(rangeParts) != 2 {
			continue
		}
		base, baseErr := strconv.ParseUint(rangeParts[0], 16, 64)
		end, endErr := strconv.ParseUint(rangeParts[1], 16, 64)
		if baseErr != nil || endErr != nil {
			continue
		}

		path := fields[5]
		if existing, found := spans[path]; found {
			if base < existing.base {
				existing.base = base
			}
			if end > existing.end {
				existing.end = end
			}
		} else {
			spans[path] = &span{base: base, end: end}
			order = append(order, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse memory map of process %d: %w", m.pid, err)
	}

	modules := make([]ModuleInfo, 0, len(order))
	for _, path := range order {
		s := spans[path]
		modules = append(modules, ModuleInfo{
			Name: filepath.Base(path),
			Base: s.base,
			Size: s.end - s.base,
		})
	}
	return modules, nil
}

func (m *linuxProcessMemory) Close() error {
	if m.mem == nil {
		return nil
	}
	err := m.mem.Close()
	m.mem = nil
	return err
}
