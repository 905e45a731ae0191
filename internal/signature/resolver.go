// Package signature resolves named symbols inside the target module, either by
// byte-pattern scan or by bounds-validated fallback offsets. Unresolved symbols
// are explicit values, never errors: downstream safety gates need to see them.
package signature

import (
	"encoding/binary"
	"sort"

	"github.com/go-logr/logr"

	"github.com/Prekzursil/SWFOC-Mod-Menu-sub004/internal/profile"
)

// Source records how a symbol's address was obtained.
type Source string

const (
	SourceNone      Source = "None"
	SourceSignature Source = "Signature"
	SourceFallback  Source = "Fallback"
)

// Health grades a resolved symbol.
type Health string

const (
	HealthHealthy    Health = "Healthy"
	HealthDegraded   Health = "Degraded"
	HealthUnresolved Health = "Unresolved"
)

// SymbolInfo is one resolved (or explicitly unresolved) symbol.
// A zero address always means unresolved.
type SymbolInfo struct {
	Name         string
	Address      uint64
	ValueType    profile.ValueType
	Source       Source
	Confidence   float64
	Health       Health
	HealthReason string
}

// SymbolMap is an immutable name-to-symbol snapshot built once per attach.
type SymbolMap map[string]SymbolInfo

// Names returns the symbol names in sorted order.
func (m SymbolMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvedAnchors returns the ids of symbols that resolved to a non-zero
// address; these are the observed anchors capability resolution validates against.
func (m SymbolMap) ResolvedAnchors() []string {
	anchors := make([]string, 0, len(m))
	for name, info := range m {
		if info.Address != 0 {
			anchors = append(anchors, name)
		}
	}
	sort.Strings(anchors)
	return anchors
}

// Module is the scanned snapshot of the target's main module.
type Module struct {
	Name  string
	Base  uint64
	Size  uint64
	Bytes []byte
}

func (m *Module) contains(addr uint64) bool {
	return addr >= m.Base && addr < m.Base+m.Size
}

// readUint32 reads a little-endian u32 from the module snapshot.
func (m *Module) readUint32(addr uint64) (uint32, bool) {
	if !m.contains(addr) || addr+4 > m.Base+uint64(len(m.Bytes)) {
		return 0, false
	}
	off := addr - m.Base
	return binary.LittleEndian.Uint32(m.Bytes[off : off+4]), true
}

type Resolver struct {
	log logr.Logger
}

func NewResolver(log logr.Logger) *Resolver {
	return &Resolver{log: log.WithName("signature")}
}

const (
	signatureConfidence = 0.95
	fallbackConfidence  = 0.50
)

// Resolve builds the symbol map for one module snapshot. Every signature in
// specs produces exactly one entry; fallbacks fill pattern misses only when the
// fallback address lands inside the module's mapped bounds.
func (r *Resolver) Resolve(module *Module, specs []profile.SignatureSpec, fallbacks map[string]uint64) SymbolMap {
	symbols := SymbolMap{}

	for _, spec := range specs {
		info := r.resolveOne(module, spec)
		if info.Source == SourceNone {
			if fallbackOffset, found := fallbacks[spec.Name]; found {
				info = r.resolveFallback(module, spec, fallbackOffset)
			}
		}
		symbols[spec.Name] = info
	}

	// Fallback-only symbols with no signature declared.
	for name, offset := range fallbacks {
		if _, found := symbols[name]; found {
			continue
		}
		spec := profile.SignatureSpec{Name: name, ValueType: profile.ValueTypeInt32}
		symbols[name] = r.resolveFallback(module, spec, offset)
	}

	return symbols
}

func unresolved(spec profile.SignatureSpec, reason string) SymbolInfo {
	return SymbolInfo{
		Name:         spec.Name,
		Address:      0,
		ValueType:    spec.ValueType,
		Source:       SourceNone,
		Confidence:   0,
		Health:       HealthUnresolved,
		HealthReason: reason,
	}
}

func (r *Resolver) resolveOne(module *Module, spec profile.SignatureSpec) SymbolInfo {
	pattern, err := ParsePattern(spec.Pattern)
	if err != nil {
		r.log.V(1).Info("unparseable pattern", "symbol", spec.Name, "error", err.Error())
		return unresolved(spec, "pattern_invalid")
	}

	hit := ScanPattern(module.Bytes, pattern)
	if hit < 0 {
		return unresolved(spec, "pattern_miss")
	}

	anchor := module.Base + uint64(hit) + uint64(spec.Offset)

	var addr uint64
	switch spec.AddressMode {
	case profile.AddressModeAbsolutePointer:
		ptr, ok := module.readUint32(anchor)
		if !ok {
			return unresolved(spec, "pointer_read_out_of_bounds")
		}
		addr = uint64(ptr)
	case profile.AddressModeRelativeDisplacement:
		disp, ok := module.readUint32(anchor)
		if !ok {
			return unresolved(spec, "displacement_read_out_of_bounds")
		}
		addr = anchor + 4 + uint64(int64(int32(disp)))
	default: // AddressModePatternOffset
		addr = anchor
	}

	if addr == 0 {
		return unresolved(spec, "resolved_to_null")
	}

	return SymbolInfo{
		Name:       spec.Name,
		Address:    addr,
		ValueType:  spec.ValueType,
		Source:     SourceSignature,
		Confidence: signatureConfidence,
		Health:     HealthHealthy,
	}
}

// resolveFallback validates a fixed offset against the module bounds before use.
// Out-of-bounds fallback offsets are discarded, never used.
func (r *Resolver) resolveFallback(module *Module, spec profile.SignatureSpec, offset uint64) SymbolInfo {
	addr := module.Base + offset
	if !module.contains(addr) {
		r.log.V(1).Info("fallback offset out of module bounds, discarding",
			"symbol", spec.Name, "offset", offset, "moduleSize", module.Size)
		return unresolved(spec, "pattern_miss_no_valid_fallback")
	}

	return SymbolInfo{
		Name:         spec.Name,
		Address:      addr,
		ValueType:    spec.ValueType,
		Source:       SourceFallback,
		Confidence:   fallbackConfidence,
		Health:       HealthDegraded,
		HealthReason: "fallback_offset",
	}
}
