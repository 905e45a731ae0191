//go:build !windows

package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
)

// Off Windows the bridges listen on a unix socket named after the pipe, which
// keeps local development and CI on the same wire protocol.
func platformDialer(pipeName string) DialFunc {
	path := filepath.Join(os.TempDir(), pipeName+".sock")
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}
