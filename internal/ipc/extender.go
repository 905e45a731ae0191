package ipc

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
)

const (
	// Reserved feature ids the native bridge answers without touching game
	// state.
	FeatureProbeCapabilities = "probe_capabilities"
	FeatureHealthCheck       = "health_check"

	requestedByRuntime = "runtime-core"
)

// ExtenderBackend talks to the in-process native extender over its bridge
// pipe. It is the only backend allowed to carry promoted mutations.
type ExtenderBackend struct {
	client *PipeClient
	log    logr.Logger
}

func NewExtenderBackend(client *PipeClient, log logr.Logger) *ExtenderBackend {
	return &ExtenderBackend{client: client, log: log.WithValues("backend", "extender")}
}

func (b *ExtenderBackend) ID() string { return "extender" }

func (b *ExtenderBackend) Execute(ctx context.Context, req Request) Response {
	fillRequestDefaults(&req)
	resp, err := b.client.RoundTrip(ctx, req)
	if err != nil {
		b.log.V(1).Info("extender round trip failed", "featureId", req.FeatureID, "error", err.Error())
		return unreachableResponse(req, "extender", err)
	}
	return resp
}

// ProbeCapabilities asks the bridge to enumerate its hook table. The reply's
// diagnostics.capabilities object is nested JSON the flat diagnostics map
// cannot hold, so it is read back out of the raw line.
func (b *ExtenderBackend) ProbeCapabilities(ctx context.Context, profileID string) capability.Report {
	req := Request{
		FeatureID: FeatureProbeCapabilities,
		ProfileID: profileID,
	}
	fillRequestDefaults(&req)

	report := capability.Report{
		ProfileID:   profileID,
		ProbedAt:    time.Now().UTC(),
		Features:    map[string]capability.BackendCapability{},
		Diagnostics: map[string]string{},
	}

	resp, err := b.client.RoundTrip(ctx, req)
	if err != nil {
		report.ReasonCode = capability.ReasonBackendUnavailable
		report.Diagnostics["transportError"] = err.Error()
		return report
	}

	report.ReasonCode = resp.ReasonCode
	if report.ReasonCode == "" {
		report.ReasonCode = capability.ReasonProbePass
	}
	for k, v := range resp.Diagnostics {
		report.Diagnostics[k] = v
	}

	gjson.Get(resp.Raw, "diagnostics.capabilities").ForEach(func(key, value gjson.Result) bool {
		feature := capability.BackendCapability{
			Available:  value.Get("available").Bool(),
			State:      capability.ConfidenceUnknown,
			ReasonCode: value.Get("reasonCode").String(),
		}
		switch value.Get("state").String() {
		case string(capability.ConfidenceVerified):
			feature.State = capability.ConfidenceVerified
		case string(capability.ConfidenceExperimental):
			feature.State = capability.ConfidenceExperimental
		}
		report.Features[key.String()] = feature
		return true
	})
	return report
}

func (b *ExtenderBackend) Health(ctx context.Context) HealthStatus {
	req := Request{FeatureID: FeatureHealthCheck}
	fillRequestDefaults(&req)
	resp, err := b.client.RoundTrip(ctx, req)
	if err != nil {
		return HealthStatus{
			Healthy:    false,
			ReasonCode: capability.ReasonBackendUnavailable,
			HookState:  "unreachable",
			Message:    err.Error(),
		}
	}
	return HealthStatus{
		Healthy:    resp.Succeeded,
		ReasonCode: resp.ReasonCode,
		HookState:  resp.HookState,
		Message:    resp.Message,
	}
}

func fillRequestDefaults(req *Request) {
	if req.CommandID == "" {
		req.CommandID = uuid.NewString()
	}
	if req.RequestedBy == "" {
		req.RequestedBy = requestedByRuntime
	}
	if req.TimestampUtc == "" {
		req.TimestampUtc = NewRequestTimestamp()
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
}

func unreachableResponse(req Request, backend string, err error) Response {
	return Response{
		CommandID:  req.CommandID,
		Succeeded:  false,
		ReasonCode: capability.ReasonBackendUnavailable,
		Backend:    backend,
		HookState:  "unreachable",
		Message:    "bridge pipe is not reachable",
		Diagnostics: map[string]string{
			"transportError": err.Error(),
		},
	}
}
