// Package ipc implements the line-delimited JSON pipe protocol shared by the
// native extender bridge and the scripted helper bridge, plus the two backend
// clients that speak it. A transport failure is always a typed negative
// result; no error ever escapes the backend contract.
package ipc

import (
	"context"
	"time"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
)

// Request is one command sent over the bridge pipe.
type Request struct {
	CommandID    string         `json:"commandId"`
	FeatureID    string         `json:"featureId"`
	ProfileID    string         `json:"profileId"`
	Mode         string         `json:"mode"`
	RequestedBy  string         `json:"requestedBy"`
	TimestampUtc string         `json:"timestampUtc"`
	Payload      map[string]any `json:"payload"`
}

// Response is the bridge's single-line reply.
type Response struct {
	CommandID   string            `json:"commandId"`
	Succeeded   bool              `json:"succeeded"`
	ReasonCode  string            `json:"reasonCode"`
	Backend     string            `json:"backend"`
	HookState   string            `json:"hookState"`
	Message     string            `json:"message"`
	Diagnostics map[string]string `json:"-"`

	// Raw preserves the exact line received, for callers that need to dig
	// into nested diagnostics the flat map cannot carry.
	Raw string `json:"-"`
}

// HealthStatus is the outcome of a cheap, side-effect-free backend probe.
type HealthStatus struct {
	Healthy    bool
	ReasonCode string
	HookState  string
	Message    string
}

// Backend is one out-of-process execution backend.
type Backend interface {
	ID() string
	Execute(ctx context.Context, req Request) Response
	ProbeCapabilities(ctx context.Context, profileID string) capability.Report
	Health(ctx context.Context) HealthStatus
}

// NewRequestTimestamp is the wire timestamp format.
func NewRequestTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
