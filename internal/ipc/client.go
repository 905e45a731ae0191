package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/tidwall/gjson"
)

const maxResponseLine = 1 << 20

// DialFunc opens one connection to a bridge endpoint. Tests inject their own;
// production code uses the platform dialer for the configured pipe name.
type DialFunc func(ctx context.Context) (net.Conn, error)

// PipeClient performs one request/response exchange per connection, matching
// the bridge server's accept loop: dial, write one line, read one line, close.
type PipeClient struct {
	pipeName string
	timeout  time.Duration
	dial     DialFunc
	log      logr.Logger
}

func NewPipeClient(pipeName string, timeout time.Duration, log logr.Logger) *PipeClient {
	return &PipeClient{
		pipeName: pipeName,
		timeout:  timeout,
		dial:     platformDialer(pipeName),
		log:      log.WithValues("pipe", pipeName),
	}
}

// NewPipeClientWithDialer is NewPipeClient with a custom transport.
func NewPipeClientWithDialer(pipeName string, timeout time.Duration, dial DialFunc, log logr.Logger) *PipeClient {
	c := NewPipeClient(pipeName, timeout, log)
	c.dial = dial
	return c
}

func (c *PipeClient) PipeName() string { return c.pipeName }

// RoundTrip sends req and returns the parsed reply. Cancelling ctx closes the
// connection, which unblocks any pending read or write.
func (c *PipeClient) RoundTrip(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("dialing pipe %q: %w", c.pipeName, err)
	}
	defer conn.Close()

	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	line, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request %s: %w", req.CommandID, err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return Response{}, fmt.Errorf("writing request %s: %w", req.CommandID, err)
	}

	// The limit bounds how much a misbehaving bridge can make us buffer; the
	// length check below turns hitting it into a typed failure.
	reader := bufio.NewReaderSize(io.LimitReader(conn, maxResponseLine+1), 64*1024)
	raw, err := reader.ReadString('\n')
	if err != nil && raw == "" {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("awaiting reply for %s: %w", req.CommandID, ctx.Err())
		}
		return Response{}, fmt.Errorf("reading reply for %s: %w", req.CommandID, err)
	}
	raw = strings.TrimRight(raw, "\r\n")
	if len(raw) > maxResponseLine {
		return Response{}, fmt.Errorf("reply for %s exceeds %d bytes", req.CommandID, maxResponseLine)
	}

	resp, err := ParseResponse(raw)
	if err != nil {
		return Response{}, fmt.Errorf("decoding reply for %s: %w", req.CommandID, err)
	}
	return resp, nil
}

// ParseResponse decodes one reply line. The native bridge hand-assembles its
// JSON, so parsing is tolerant: unknown fields are ignored and only top-level
// string diagnostics land in the flat map. Nested values stay reachable
// through Response.Raw.
func ParseResponse(raw string) (Response, error) {
	if !gjson.Valid(raw) {
		return Response{}, fmt.Errorf("reply is not valid JSON: %.80q", raw)
	}
	doc := gjson.Parse(raw)
	resp := Response{
		CommandID:   doc.Get("commandId").String(),
		Succeeded:   doc.Get("succeeded").Bool(),
		ReasonCode:  doc.Get("reasonCode").String(),
		Backend:     doc.Get("backend").String(),
		HookState:   doc.Get("hookState").String(),
		Message:     doc.Get("message").String(),
		Diagnostics: map[string]string{},
		Raw:         raw,
	}
	doc.Get("diagnostics").ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.JSON {
			resp.Diagnostics[key.String()] = value.String()
		}
		return true
	})
	return resp, nil
}
