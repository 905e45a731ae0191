//go:build windows

package ipc

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

func platformDialer(pipeName string) DialFunc {
	path := `\\.\pipe\` + pipeName
	return func(ctx context.Context) (net.Conn, error) {
		return winio.DialPipeContext(ctx, path)
	}
}
