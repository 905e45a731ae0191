package ipc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
)

const ReasonHelperVerificationFailed = "HELPER_VERIFICATION_FAILED"

// VerifyRule is one entry of a helper verification contract. Either Expect
// holds the exact diagnostics value required, or EchoField names the request
// field whose sent value the helper must echo back under Key.
type VerifyRule struct {
	Key       string
	Expect    string
	EchoField string
}

// DefaultVerifyContract is the contract applied when an action declares none:
// the helper must confirm it applied the change and echo the feature id, so a
// stale or mismatched script cannot report someone else's success.
func DefaultVerifyContract() []VerifyRule {
	return []VerifyRule{
		{Key: "helperVerifyState", Expect: "applied"},
		{Key: "featureId", EchoField: "featureId"},
	}
}

// HelperBridgeBackend talks to the scripted helper bridge. Helper replies are
// never taken at face value: a nominal success is downgraded to a verification
// failure unless the contract holds.
type HelperBridgeBackend struct {
	client   *PipeClient
	contract []VerifyRule
	log      logr.Logger
}

func NewHelperBridgeBackend(client *PipeClient, log logr.Logger) *HelperBridgeBackend {
	return &HelperBridgeBackend{
		client:   client,
		contract: DefaultVerifyContract(),
		log:      log.WithValues("backend", "helper"),
	}
}

// WithContract replaces the verification contract for subsequent executions.
func (b *HelperBridgeBackend) WithContract(rules []VerifyRule) *HelperBridgeBackend {
	clone := *b
	clone.contract = rules
	return &clone
}

func (b *HelperBridgeBackend) ID() string { return "helper" }

func (b *HelperBridgeBackend) Execute(ctx context.Context, req Request) Response {
	fillRequestDefaults(&req)
	resp, err := b.client.RoundTrip(ctx, req)
	if err != nil {
		b.log.V(1).Info("helper round trip failed", "featureId", req.FeatureID, "error", err.Error())
		return unreachableResponse(req, "helper", err)
	}
	if !resp.Succeeded {
		return resp
	}
	if failure, ok := b.verify(req, resp); !ok {
		b.log.Info("helper reply failed contract verification",
			"featureId", req.FeatureID, "detail", failure)
		resp.Succeeded = false
		resp.ReasonCode = ReasonHelperVerificationFailed
		resp.Message = "helper reported success but failed contract verification"
		if resp.Diagnostics == nil {
			resp.Diagnostics = map[string]string{}
		}
		resp.Diagnostics["verificationFailure"] = failure
	}
	return resp
}

func (b *HelperBridgeBackend) verify(req Request, resp Response) (string, bool) {
	for _, rule := range b.contract {
		got, found := resp.Diagnostics[rule.Key]
		if !found {
			return fmt.Sprintf("diagnostics key %q missing", rule.Key), false
		}
		want := rule.Expect
		if rule.EchoField != "" {
			want = requestFieldValue(req, rule.EchoField)
		}
		if got != want {
			return fmt.Sprintf("diagnostics key %q is %q, want %q", rule.Key, got, want), false
		}
	}
	return "", true
}

func requestFieldValue(req Request, field string) string {
	switch field {
	case "commandId":
		return req.CommandID
	case "featureId":
		return req.FeatureID
	case "profileId":
		return req.ProfileID
	case "mode":
		return req.Mode
	default:
		if v, ok := req.Payload[field]; ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}
}

// ProbeCapabilities reports the helper's feature table. The helper bridge has
// no hook table to enumerate; it answers with the scripts it has loaded, in
// the same capabilities shape the extender uses.
func (b *HelperBridgeBackend) ProbeCapabilities(ctx context.Context, profileID string) capability.Report {
	ext := ExtenderBackend{client: b.client, log: b.log}
	report := ext.ProbeCapabilities(ctx, profileID)
	report.ProbedAt = time.Now().UTC()
	for id, feature := range report.Features {
		// Scripted hooks are never verified at the anchor level.
		if feature.State == capability.ConfidenceVerified {
			feature.State = capability.ConfidenceExperimental
			report.Features[id] = feature
		}
	}
	return report
}

func (b *HelperBridgeBackend) Health(ctx context.Context) HealthStatus {
	ext := ExtenderBackend{client: b.client, log: b.log}
	return ext.Health(ctx)
}
