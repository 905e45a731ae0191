//go:build windows

package memaccess

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsProcessMemory struct {
	pid    int32
	handle windows.Handle
	open   bool
}

func openProcess(pid int32) (ProcessMemory, error) {
	const access = windows.PROCESS_VM_READ |
		windows.PROCESS_VM_WRITE |
		windows.PROCESS_VM_OPERATION |
		windows.PROCESS_QUERY_INFORMATION

	handle, err := windows.OpenProcess(access, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	return &windowsProcessMemory{pid: pid, handle: handle, open: true}, nil
}

func (m *windowsProcessMemory) Pid() int32 {
	return m.pid
}

func (m *windowsProcessMemory) ReadBytes(addr uint64, n int) ([]byte, error) {
	if !m.open {
		return nil, ErrProcessNotOpen
	}

	buf := make([]byte, n)
	var read uintptr
	err := windows.ReadProcessMemory(m.handle, uintptr(addr), &buf[0], uintptr(n), &read)
	if err != nil {
		return nil, fmt.Errorf("read of %d bytes at 0x%x failed: %w", n, addr, err)
	}
	return buf[:read], nil
}

func (m *windowsProcessMemory) WriteBytes(addr uint64, data []byte) error {
	if !m.open {
		return ErrProcessNotOpen
	}

	var written uintptr
	err := windows.WriteProcessMemory(m.handle, uintptr(addr), &data[0], uintptr(len(data)), &written)
	if err != nil {
		return fmt.Errorf("write of %d bytes at 0x%x failed: %w", len(data), addr, err)
	}
	if written != uintptr(len(data)) {
		return fmt.Errorf("short write at 0x%x: %d of %d bytes", addr, written, len(data))
	}
	return nil
}

func (m *windowsProcessMemory) Modules() ([]ModuleInfo, error) {
	if !m.open {
		return nil, ErrProcessNotOpen
	}

	handles := make([]windows.Handle, 512)
	var needed uint32
	err := windows.EnumProcessModules(m.handle, &handles[0], uint32(len(handles))*uint32(unsafe.Sizeof(handles[0])), &needed)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate modules of process %d: %w", m.pid, err)
	}

	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	if count > len(handles) {
		count = len(handles)
	}

	modules := make([]ModuleInfo, 0, count)
	for _, moduleHandle := range handles[:count] {
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(m.handle, moduleHandle, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}

		nameBuf := make([]uint16, windows.MAX_PATH)
		nameLen, err := windows.GetModuleBaseName(m.handle, moduleHandle, &nameBuf[0], uint32(len(nameBuf)))
		if err != nil {
			continue
		}

		modules = append(modules, ModuleInfo{
			Name: windows.UTF16ToString(nameBuf[:nameLen]),
			Base: uint64(info.BaseOfDll),
			Size: uint64(info.SizeOfImage),
		})
	}

	return modules, nil
}

func (m *windowsProcessMemory) Close() error {
	if !m.open {
		return nil
	}
	m.open = false
	return windows.CloseHandle(m.handle)
}
