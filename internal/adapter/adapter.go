// Package adapter orchestrates the execution pipeline: attach to a running
// game process, resolve its symbols, and run actions through the routing
// layer to whichever backend the decision selects.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/capability"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/config"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/discovery"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/fingerprint"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/ipc"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/launchctx"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/modeprobe"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/routing"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/signature"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/memaccess"
	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/pkg/resiliency"
)

var (
	ErrNotAttached        = errors.New("no attach session is active")
	ErrAlreadyAttached    = errors.New("an attach session is already active")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrNoSupportedProcess = errors.New("no supported game process found")
)

// ExecutionRequest is one action invocation against the attached process.
type ExecutionRequest struct {
	ActionID    string
	Mode        profile.Mode
	Payload     map[string]any
	RequestedBy string
}

// ExecutionResult is the self-describing outcome of one invocation. Every
// result carries the full diagnostic trail so callers never need to re-derive
// why a route was chosen or refused.
type ExecutionResult struct {
	ActionID      string
	Succeeded     bool
	ReasonCode    string
	Backend       string
	EffectiveMode profile.Mode
	HookState     string
	Message       string
	Diagnostics   map[string]string
}

// RuntimeAdapter owns at most one AttachSession at a time.
type RuntimeAdapter struct {
	cfg       config.RuntimeConfig
	log       logr.Logger
	scanner   *discovery.Scanner
	profiles  []*profile.Profile
	resolver  *signature.Resolver
	caps      *capability.Resolver
	router    *routing.Router
	modeprobe *modeprobe.Resolver
	extender  ipc.Backend
	helper    ipc.Backend

	// openMemory is swappable for tests.
	openMemory func(pid int32) (memaccess.ProcessMemory, error)

	mu      sync.Mutex
	session *AttachSession
}

func NewRuntimeAdapter(
	cfg config.RuntimeConfig,
	profiles []*profile.Profile,
	extender, helper ipc.Backend,
	log logr.Logger,
) *RuntimeAdapter {
	var workshopIDs []string
	for _, prof := range profiles {
		workshopIDs = append(workshopIDs, prof.RequiredWorkshopIDs()...)
	}
	log = log.WithName("adapter")
	return &RuntimeAdapter{
		cfg:        cfg,
		log:        log,
		scanner:    discovery.NewScanner(log, workshopIDs),
		profiles:   profiles,
		resolver:   signature.NewResolver(log),
		caps:       capability.NewResolver(cfg.CapabilityDir, log),
		router:     routing.NewRouter(cfg, log),
		modeprobe:  modeprobe.NewResolver(log),
		extender:   extender,
		helper:     helper,
		openMemory: memaccess.Open,
	}
}

func (a *RuntimeAdapter) profileByID(id string) *profile.Profile {
	for _, prof := range a.profiles {
		if prof.ID == id {
			return prof
		}
	}
	return nil
}

// Attach is AttachCtx with a background context.
func (a *RuntimeAdapter) Attach(profileID string) (*AttachSession, error) {
	return a.AttachCtx(context.Background(), profileID)
}

// AttachCtx discovers the best matching process for the profile, fingerprints
// its binary, snapshots the main module and resolves the profile's symbols.
func (a *RuntimeAdapter) AttachCtx(ctx context.Context, profileID string) (*AttachSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return nil, ErrAlreadyAttached
	}

	prof := a.profileByID(profileID)
	if prof == nil {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, profileID)
	}

	candidates, err := a.scanner.FindSupportedProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning for game processes: %w", err)
	}
	proc := discovery.SelectBestMatch(prof.ExeTarget, candidates)
	if proc == nil {
		return nil, fmt.Errorf("%w for target %s", ErrNoSupportedProcess, prof.ExeTarget)
	}
	lc := launchctx.Resolve(proc.Input(), a.profiles, launchctx.Options{
		ForcedWorkshopID: a.cfg.ForcedWorkshopID,
		ForcedProfileID:  a.cfg.ForcedProfileID,
	})
	proc.LaunchContext = &lc

	fp, err := fingerprint.FromFile(proc.Path)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting %s: %w", proc.Path, err)
	}

	// Opening right after discovery can race the process still settling, so
	// retry briefly before giving up.
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	mem, err := resiliency.RetryGet(ctx, b, func() (memaccess.ProcessMemory, error) {
		return a.openMemory(proc.Pid)
	})
	if err != nil {
		return nil, fmt.Errorf("opening process %d: %w", proc.Pid, err)
	}

	module, err := snapshotMainModule(mem, proc.Path)
	if err != nil {
		mem.Close()
		return nil, err
	}

	session := &AttachSession{
		adapter:    a,
		prof:       prof,
		proc:       proc,
		fp:         fp,
		mem:        mem,
		module:     module,
		symbols:    a.resolver.Resolve(module, prof.Signatures, prof.FallbackOffsets),
		attachedAt: time.Now().UTC(),
		lastRun:    map[string]time.Time{},
		log: a.log.WithValues(
			"profile", prof.ID, "pid", proc.Pid, "fingerprint", fp.FingerprintID),
	}
	a.session = session
	session.log.Info("attached",
		"exeTarget", proc.ExeTarget, "symbols", len(session.symbols))
	return session, nil
}

// Session returns the active attach session, if any.
func (a *RuntimeAdapter) Session() (*AttachSession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.session != nil
}

// Detach is DetachCtx with a background context.
func (a *RuntimeAdapter) Detach() error {
	return a.DetachCtx(context.Background())
}

func (a *RuntimeAdapter) DetachCtx(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return ErrNotAttached
	}
	err := a.session.mem.Close()
	a.session.log.Info("detached")
	a.session = nil
	return err
}

// Execute is ExecuteCtx with a background context.
func (a *RuntimeAdapter) Execute(req ExecutionRequest) (ExecutionResult, error) {
	return a.ExecuteCtx(context.Background(), req)
}

func (a *RuntimeAdapter) ExecuteCtx(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	session, ok := a.Session()
	if !ok {
		return ExecutionResult{}, ErrNotAttached
	}
	return session.ExecuteCtx(ctx, req), nil
}

// snapshotMainModule reads the target's main module bytes once; signature
// scans run against this snapshot, never against live memory.
func snapshotMainModule(mem memaccess.ProcessMemory, exePath string) (*signature.Module, error) {
	modules, err := mem.Modules()
	if err != nil {
		return nil, fmt.Errorf("enumerating modules: %w", err)
	}
	if len(modules) == 0 {
		return nil, errors.New("target process has no readable modules")
	}
	want := strings.ToLower(filepath.Base(exePath))
	main := modules[0]
	for _, m := range modules {
		if strings.ToLower(filepath.Base(m.Name)) == want {
			main = m
			break
		}
	}
	raw, err := mem.ReadBytes(main.Base, int(main.Size))
	if err != nil {
		return nil, fmt.Errorf("reading main module %s: %w", main.Name, err)
	}
	return &signature.Module{
		Name:  filepath.Base(main.Name),
		Base:  main.Base,
		Size:  main.Size,
		Bytes: raw,
	}, nil
}
