package signature

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Symbol pack documents are produced by the headless analysis pipeline.
// Only the fields this core consumes are modeled.

type PackFingerprint struct {
	FingerprintID string `json:"fingerprintId"`
	ModuleName    string `json:"moduleName"`
	FileSHA256    string `json:"fileSha256"`
}

type PackBuildMetadata struct {
	AnalysisRunID  string `json:"analysisRunId"`
	GeneratedAtUtc string `json:"generatedAtUtc"`
	Toolchain      string `json:"toolchain"`
	Notes          string `json:"notes"`
}

type PackAnchor struct {
	ID         string  `json:"id"`
	Address    string  `json:"address"`
	Module     string  `json:"module"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	ValueType  string  `json:"valueType"`
}

type PackCapability struct {
	FeatureID       string   `json:"featureId"`
	Available       bool     `json:"available"`
	State           string   `json:"state"`
	ReasonCode      string   `json:"reasonCode"`
	RequiredAnchors []string `json:"requiredAnchors"`
}

type SymbolPack struct {
	SchemaVersion     string            `json:"schemaVersion"`
	BinaryFingerprint PackFingerprint   `json:"binaryFingerprint"`
	BuildMetadata     PackBuildMetadata `json:"buildMetadata"`
	Anchors           []PackAnchor      `json:"anchors"`
	Capabilities      []PackCapability  `json:"capabilities"`
}

// artifactIndex is the indirection file the analysis pipeline writes next to its outputs.
type artifactIndex struct {
	ArtifactPointers struct {
		SymbolPackPath string `json:"symbolPackPath"`
	} `json:"artifactPointers"`
}

const (
	packSuffix        = ".symbolpack.json"
	artifactIndexName = "artifact-index.json"
)

// LoadSymbolPack reads and decodes one pack file.
func LoadSymbolPack(path string) (*SymbolPack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol pack %s: %w", path, err)
	}

	var pack SymbolPack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse symbol pack %s: %w", path, err)
	}
	return &pack, nil
}

// SelectBestGhidraPackPath picks the pre-built symbol pack to use, deterministically:
//  1. an exact-named <fingerprintId>.symbolpack.json whose embedded fingerprint
//     matches the expected id;
//  2. the pack named by the artifact-index indirection file;
//  3. the newest pack by embedded generation timestamp, ties broken by
//     ascending normalized relative path.
//
// Given unchanged directory state the result is idempotent.
func SelectBestGhidraPackPath(dir, expectedFingerprintID string) (string, error) {
	// 1: exact fingerprint-named file.
	if expectedFingerprintID != "" {
		exact := filepath.Join(dir, expectedFingerprintID+packSuffix)
		if pack, err := LoadSymbolPack(exact); err == nil {
			if pack.BinaryFingerprint.FingerprintID == expectedFingerprintID {
				return exact, nil
			}
		}
	}

	// 2: artifact-index indirection.
	if indexed := packPathFromArtifactIndex(dir); indexed != "" {
		return indexed, nil
	}

	// 3: newest by generation timestamp.
	return newestPackByTimestamp(dir)
}

func packPathFromArtifactIndex(dir string) string {
	raw, err := os.ReadFile(filepath.Join(dir, artifactIndexName))
	if err != nil {
		return ""
	}

	var index artifactIndex
	if err := json.Unmarshal(raw, &index); err != nil {
		return ""
	}

	pointer := strings.TrimSpace(index.ArtifactPointers.SymbolPackPath)
	if pointer == "" {
		return ""
	}
	if !filepath.IsAbs(pointer) {
		pointer = filepath.Join(dir, filepath.FromSlash(pointer))
	}
	if _, err := os.Stat(pointer); err != nil {
		return ""
	}
	return pointer
}

func normalizeRelPath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = path
	}
	return strings.ToLower(filepath.ToSlash(rel))
}

func newestPackByTimestamp(dir string) (string, error) {
	type candidate struct {
		path        string
		relPath     string
		generatedAt time.Time
	}

	var candidates []candidate
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), packSuffix) {
			return nil
		}

		pack, loadErr := LoadSymbolPack(path)
		if loadErr != nil {
			return nil
		}

		generatedAt, parseErr := time.Parse(time.RFC3339, pack.BuildMetadata.GeneratedAtUtc)
		if parseErr != nil {
			generatedAt = time.Time{}
		}

		candidates = append(candidates, candidate{
			path:        path,
			relPath:     normalizeRelPath(dir, path),
			generatedAt: generatedAt,
		})
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("failed to scan symbol pack directory %s: %w", dir, walkErr)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no symbol packs under %s", dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].generatedAt.Equal(candidates[j].generatedAt) {
			return candidates[i].generatedAt.After(candidates[j].generatedAt)
		}
		return candidates[i].relPath < candidates[j].relPath
	})

	return candidates[0].path, nil
}
