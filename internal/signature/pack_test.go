package signature

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePack(t *testing.T, dir, name, fingerprintID, generatedAt string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	doc := `{
  "schemaVersion": "1.0",
  "binaryFingerprint": {"fingerprintId": "` + fingerprintID + `", "moduleName": "starwarsg.exe"},
  "buildMetadata": {"generatedAtUtc": "` + generatedAt + `"},
  "anchors": [{"id": "credits_value", "address": "0x7FEE10"}],
  "capabilities": [{"featureId": "set_credits", "available": true, "state": "Verified"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadSymbolPack(t *testing.T) {
	dir := t.TempDir()
	path := writePack(t, dir, "starwarsg_0011223344556677.symbolpack.json",
		"starwarsg_0011223344556677", "2026-05-01T10:00:00Z")

	pack, err := LoadSymbolPack(path)
	require.NoError(t, err)
	require.Equal(t, "starwarsg_0011223344556677", pack.BinaryFingerprint.FingerprintID)
	require.Len(t, pack.Anchors, 1)
	require.Len(t, pack.Capabilities, 1)
}

func TestSelectPackExactFingerprintWins(t *testing.T) {
	dir := t.TempDir()
	exact := writePack(t, dir, "starwarsg_aabbccddeeff0011.symbolpack.json",
		"starwarsg_aabbccddeeff0011", "2026-01-01T00:00:00Z")
	// A newer pack for a different build must not override an exact match.
	writePack(t, dir, "other.symbolpack.json", "starwarsg_ffff", "2026-06-01T00:00:00Z")

	path, err := SelectBestGhidraPackPath(dir, "starwarsg_aabbccddeeff0011")
	require.NoError(t, err)
	require.Equal(t, exact, path)
}

func TestSelectPackExactNameWithWrongEmbeddedFingerprintSkipped(t *testing.T) {
	dir := t.TempDir()
	// File named for the expected build but embedding a different fingerprint.
	writePack(t, dir, "starwarsg_aabbccddeeff0011.symbolpack.json",
		"starwarsg_0000000000000000", "2026-01-01T00:00:00Z")
	newest := writePack(t, dir, "newest.symbolpack.json", "starwarsg_1111", "2026-06-01T00:00:00Z")

	path, err := SelectBestGhidraPackPath(dir, "starwarsg_aabbccddeeff0011")
	require.NoError(t, err)
	require.Equal(t, newest, path)
}

func TestSelectPackArtifactIndexIndirection(t *testing.T) {
	dir := t.TempDir()
	pointed := writePack(t, dir, filepath.Join("run-0042", "out.symbolpack.json"),
		"starwarsg_2222", "2026-02-01T00:00:00Z")
	writePack(t, dir, "decoy.symbolpack.json", "starwarsg_3333", "2026-07-01T00:00:00Z")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "artifact-index.json"),
		[]byte(`{"artifactPointers": {"symbolPackPath": "run-0042/out.symbolpack.json"}}`), 0o644))

	path, err := SelectBestGhidraPackPath(dir, "starwarsg_nomatch")
	require.NoError(t, err)
	require.Equal(t, pointed, path)
}

func TestSelectPackNewestTimestampThenRelPath(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "old.symbolpack.json", "starwarsg_4444", "2026-01-01T00:00:00Z")
	newest := writePack(t, dir, "new.symbolpack.json", "starwarsg_5555", "2026-03-01T00:00:00Z")

	path, err := SelectBestGhidraPackPath(dir, "")
	require.NoError(t, err)
	require.Equal(t, newest, path)

	// Equal timestamps break the tie by ascending normalized relative path.
	tieDir := t.TempDir()
	first := writePack(t, tieDir, "a.symbolpack.json", "starwarsg_6666", "2026-04-01T00:00:00Z")
	writePack(t, tieDir, "b.symbolpack.json", "starwarsg_7777", "2026-04-01T00:00:00Z")
	path, err = SelectBestGhidraPackPath(tieDir, "")
	require.NoError(t, err)
	require.Equal(t, first, path)
}

func TestSelectPackEmptyDir(t *testing.T) {
	_, err := SelectBestGhidraPackPath(t.TempDir(), "starwarsg_8888")
	require.Error(t, err)
}
