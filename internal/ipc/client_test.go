package ipc

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/testutil"
)

// serveOnce is a one-connection bridge: read one line, answer one line, close.
// Request lines land on the returned channel.
func serveOnce(response string) (DialFunc, <-chan string) {
	requests := make(chan string, 1)
	dial := func(_ context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			defer server.Close()
			line, err := bufio.NewReader(server).ReadString('\n')
			if err != nil {
				return
			}
			requests <- line
			_, _ = server.Write([]byte(response + "\n"))
		}()
		return client, nil
	}
	return dial, requests
}

func unreachableDial(_ context.Context) (net.Conn, error) {
	return nil, errors.New("pipe does not exist")
}

func newTestClient(dial DialFunc) *PipeClient {
	return NewPipeClientWithDialer("TestBridge", 2*time.Second, dial, testutil.NewLogForTesting("ipc"))
}

func TestRoundTrip(t *testing.T) {
	dial, requests := serveOnce(`{"commandId":"cmd-1","succeeded":true,"reasonCode":"CAPABILITY_PROBE_PASS","backend":"extender","hookState":"HOOK_READY","message":"ok","diagnostics":{"hybridExecution":"true"}}`)

	resp, err := newTestClient(dial).RoundTrip(context.Background(), Request{
		CommandID: "cmd-1",
		FeatureID: "freeze_timer",
		ProfileID: "roe_3447786229_swfoc",
	})
	require.NoError(t, err)
	require.True(t, resp.Succeeded)
	require.Equal(t, "cmd-1", resp.CommandID)
	require.Equal(t, "HOOK_READY", resp.HookState)
	require.Equal(t, "true", resp.Diagnostics["hybridExecution"])

	sent := gjson.Parse(<-requests)
	require.Equal(t, "freeze_timer", sent.Get("featureId").String())
	require.Equal(t, "roe_3447786229_swfoc", sent.Get("profileId").String())
}

func TestRoundTripCancelClosesConnection(t *testing.T) {
	// A server that never answers; cancelling the context must unblock.
	dial := func(_ context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			_, _ = bufio.NewReader(server).ReadString('\n')
			// Hold the connection open without replying.
		}()
		_ = server
		return client, nil
	}

	ctx, cancel := testutil.GetTestContext(t, 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(dial).RoundTrip(ctx, Request{CommandID: "cmd-2"})
	require.Error(t, err)
}

func TestRoundTripRejectsOversizedReply(t *testing.T) {
	// The reply never terminates within the line cap; the client must stop
	// buffering at the cap and fail instead of holding the whole line.
	dial, _ := serveOnce(`{"commandId":"big","message":"` + strings.Repeat("x", maxResponseLine+16) + `"}`)

	_, err := newTestClient(dial).RoundTrip(context.Background(), Request{CommandID: "big"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds")
}

func TestParseResponseToleratesHandRolledJSON(t *testing.T) {
	// The native bridge assembles JSON by hand: loose spacing, unknown fields,
	// non-string diagnostic values.
	raw := `{ "commandId" : "c-9", "succeeded" : true, "reasonCode":"CAPABILITY_PROBE_PASS",
		"unknownField": [1,2,3], "diagnostics": { "hookCount": 5, "nested": {"deep": true}, "flag": "on" } }`

	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.True(t, resp.Succeeded)
	require.Equal(t, "c-9", resp.CommandID)
	require.Equal(t, "5", resp.Diagnostics["hookCount"])
	require.Equal(t, "on", resp.Diagnostics["flag"])
	// Nested objects stay out of the flat map but remain reachable via Raw.
	_, found := resp.Diagnostics["nested"]
	require.False(t, found)
	require.True(t, gjson.Get(resp.Raw, "diagnostics.nested.deep").Bool())

	_, err = ParseResponse("not json at all")
	require.Error(t, err)
}

func TestExtenderExecuteFillsDefaults(t *testing.T) {
	dial, requests := serveOnce(`{"commandId":"x","succeeded":true}`)
	backend := NewExtenderBackend(newTestClient(dial), testutil.NewLogForTesting("ipc"))

	resp := backend.Execute(context.Background(), Request{FeatureID: "toggle_fog_reveal"})
	require.True(t, resp.Succeeded)

	sent := gjson.Parse(<-requests)
	require.NotEmpty(t, sent.Get("commandId").String())
	require.NotEmpty(t, sent.Get("timestampUtc").String())
	require.Equal(t, "runtime-core", sent.Get("requestedBy").String())
}

func TestExtenderExecuteUnreachable(t *testing.T) {
	backend := NewExtenderBackend(newTestClient(unreachableDial), testutil.NewLogForTesting("ipc"))

	resp := backend.Execute(context.Background(), Request{FeatureID: "freeze_timer"})
	require.False(t, resp.Succeeded)
	require.Equal(t, capability.ReasonBackendUnavailable, resp.ReasonCode)
	require.Equal(t, "unreachable", resp.HookState)
	require.NotEmpty(t, resp.Diagnostics["transportError"])
}

func TestExtenderProbeCapabilities(t *testing.T) {
	dial, _ := serveOnce(`{"commandId":"p-1","succeeded":true,"reasonCode":"CAPABILITY_PROBE_PASS",` +
		`"diagnostics":{"hookDllVersion":"1.4.2","capabilities":{` +
		`"freeze_timer":{"available":true,"state":"Verified"},` +
		`"set_credits":{"available":true,"state":"Experimental","reasonCode":"hook_partial"},` +
		`"toggle_ai":{"available":false}}}}`)
	backend := NewExtenderBackend(newTestClient(dial), testutil.NewLogForTesting("ipc"))

	report := backend.ProbeCapabilities(context.Background(), "roe_3447786229_swfoc")
	require.Equal(t, capability.ReasonProbePass, report.ReasonCode)
	require.Equal(t, "1.4.2", report.Diagnostics["hookDllVersion"])
	require.Len(t, report.Features, 3)

	freeze, _ := report.Feature("freeze_timer")
	require.True(t, freeze.Available)
	require.Equal(t, capability.ConfidenceVerified, freeze.State)

	credits, _ := report.Feature("set_credits")
	require.Equal(t, capability.ConfidenceExperimental, credits.State)
	require.Equal(t, "hook_partial", credits.ReasonCode)

	// Undeclared state parses as Unknown, never as Verified.
	ai, _ := report.Feature("toggle_ai")
	require.False(t, ai.Available)
	require.Equal(t, capability.ConfidenceUnknown, ai.State)
}

func TestExtenderProbeCapabilitiesUnreachable(t *testing.T) {
	backend := NewExtenderBackend(newTestClient(unreachableDial), testutil.NewLogForTesting("ipc"))

	report := backend.ProbeCapabilities(context.Background(), "base_swfoc")
	require.Equal(t, capability.ReasonBackendUnavailable, report.ReasonCode)
	require.Empty(t, report.Features)
	require.NotEmpty(t, report.Diagnostics["transportError"])
}

func TestExtenderHealth(t *testing.T) {
	dial, _ := serveOnce(`{"commandId":"h-1","succeeded":true,"hookState":"RUNNING","message":"alive"}`)
	backend := NewExtenderBackend(newTestClient(dial), testutil.NewLogForTesting("ipc"))

	health := backend.Health(context.Background())
	require.True(t, health.Healthy)
	require.Equal(t, "RUNNING", health.HookState)

	down := NewExtenderBackend(newTestClient(unreachableDial), testutil.NewLogForTesting("ipc"))
	health = down.Health(context.Background())
	require.False(t, health.Healthy)
	require.Equal(t, "unreachable", health.HookState)
}
