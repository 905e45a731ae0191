//go:build !windows && !linux

package memaccess

func openProcess(_ int32) (ProcessMemory, error) {
	return nil, ErrUnsupportedPlatform
}
