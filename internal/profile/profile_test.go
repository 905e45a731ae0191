package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "base.json", `{
		"id": "base_swfoc",
		"displayName": "Forces of Corruption",
		"signatures": [
			{"name": "credits_value", "pattern": "A1 ?? ?? ?? ??", "offset": 1,
			 "valueType": "Int32", "addressMode": "AbsolutePointer"}
		],
		"actions": {
			"get_credits": {"id": "get_credits", "category": "inspection",
			 "executionKind": "Memory", "targetSymbol": "credits_value"}
		}
	}`)

	p, err := Load(filepath.Join(dir, "base.json"))
	require.NoError(t, err)
	require.Equal(t, "base_swfoc", p.ID)
	require.Equal(t, ExeTargetUnknown, p.ExeTarget)
	require.Equal(t, BackendPreferenceAutomatic, p.BackendPreference)
	require.Len(t, p.Signatures, 1)
	require.Equal(t, AddressModeAbsolutePointer, p.Signatures[0].AddressMode)
	require.False(t, p.Actions["get_credits"].Mutates())
}

func TestLoadRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "anon.json", `{"displayName": "No Identity"}`)

	_, err := Load(filepath.Join(dir, "anon.json"))
	require.ErrorContains(t, err, "has no id")
}

func TestLoadDirSortsAndSkipsBrokenDocuments(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "profiles")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeProfile(t, dir, "z.json", `{"id": "roe_3447786229_swfoc", "exeTarget": "StarWarsG"}`)
	writeProfile(t, dir, "a.json", `{"id": "base_sweaw", "exeTarget": "Sweaw"}`)
	writeProfile(t, dir, "broken.json", `{not json`)
	writeProfile(t, dir, "anon.json", `{"displayName": "skipped"}`)
	writeProfile(t, dir, "notes.txt", `ignored`)

	profiles, err := LoadDir(root)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	// Sorted by id, not by filename.
	require.Equal(t, "base_sweaw", profiles[0].ID)
	require.Equal(t, "roe_3447786229_swfoc", profiles[1].ID)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nowhere"))
	require.Error(t, err)
}

func TestMetadataCSVTrimsAndDropsEmpties(t *testing.T) {
	p := &Profile{Metadata: map[string]string{
		"localPathHints": " revans_expectation , ,mods\\roe,",
	}}
	require.Equal(t, []string{"revans_expectation", `mods\roe`}, p.LocalPathHints())
	require.Nil(t, p.CriticalSymbols())
}

func TestRequiredWorkshopIDsDeduplicatesAndSorts(t *testing.T) {
	p := &Profile{
		SteamWorkshopID: "3447786229",
		Metadata: map[string]string{
			"requiredWorkshopIds": "1125571106, 3447786229",
			"requiredWorkshopId":  "1125571106",
		},
	}
	require.Equal(t, []string{"1125571106", "3447786229"}, p.RequiredWorkshopIDs())
}

func TestSymbolValidationRulesParsing(t *testing.T) {
	p := &Profile{Metadata: map[string]string{
		"symbolValidationRules": "credits_value:0:10000000, unit_cap_value:1:500, bad_entry, worse:x:y",
	}}

	rules := p.SymbolValidationRules()
	require.Len(t, rules, 2)
	require.Equal(t, ValidationRule{Symbol: "credits_value", Min: 0, Max: 10000000}, rules["credits_value"])
	require.Equal(t, ValidationRule{Symbol: "unit_cap_value", Min: 1, Max: 500}, rules["unit_cap_value"])
}

func TestExeTargetHybridBackend(t *testing.T) {
	require.True(t, ExeTargetSwfoc.HasHybridBackend())
	require.True(t, ExeTargetStarWarsG.HasHybridBackend())
	require.False(t, ExeTargetSweaw.HasHybridBackend())
	require.False(t, ExeTargetUnknown.HasHybridBackend())
}
