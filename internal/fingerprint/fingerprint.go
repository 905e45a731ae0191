// Package fingerprint identifies exactly one build of the target executable.
// Capability maps and symbol packs are keyed by the fingerprint id, which is
// derived the same way the headless analysis pipeline derives it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fingerprint is a hash/version identity of one specific binary build.
type Fingerprint struct {
	FingerprintID  string    `json:"fingerprintId"`
	FileSHA256     string    `json:"fileSha256"`
	ModuleName     string    `json:"moduleName"`
	ProductVersion string    `json:"productVersion,omitempty"`
	FileVersion    string    `json:"fileVersion,omitempty"`
	CapturedAt     time.Time `json:"capturedAt"`
	Modules        []string  `json:"modules,omitempty"`
	SourcePath     string    `json:"sourcePath"`
}

// ID derives the fingerprint id from a module name and its file hash:
// lowercase stem with spaces collapsed to underscores, plus the first 16 hex
// characters of the SHA-256. Must stay in sync with the analysis tooling.
func ID(moduleName, fileSHA256 string) string {
	stem := strings.TrimSuffix(moduleName, filepath.Ext(moduleName))
	stem = strings.ReplaceAll(strings.ToLower(stem), " ", "_")
	short := fileSHA256
	if len(short) > 16 {
		short = short[:16]
	}
	return fmt.Sprintf("%s_%s", stem, short)
}

// FromFile fingerprints the binary at path.
func FromFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to open binary %s: %w", path, err)
	}
	defer f.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return Fingerprint{}, fmt.Errorf("failed to hash binary %s: %w", path, err)
	}

	sum := hex.EncodeToString(digest.Sum(nil))
	moduleName := filepath.Base(path)

	return Fingerprint{
		FingerprintID: ID(moduleName, sum),
		FileSHA256:    sum,
		ModuleName:    moduleName,
		CapturedAt:    time.Now().UTC(),
		SourcePath:    path,
	}, nil
}
