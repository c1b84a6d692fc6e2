package settings

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/daemonerrors"
	"github.com/tuxedocomputers/tccd/internal/profile"
)

func TestLoadMissingFileIsIONotPresent(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, daemonerrors.IsKind(err, daemonerrors.KindIONotPresent))
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New("default-A")
	s.Fahrenheit = true
	s.FanControlEnabled = true

	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, loaded.Fahrenheit)
	assert.True(t, loaded.FanControlEnabled)
	assert.Equal(t, "default-A", loaded.StateMap[StateAC])
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New("A").Save(dir))

	entries, err := readDirNames(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"settings.json"}, entries)
}

func TestAutosaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	a := &Autosave{DisplayBrightness: 42}
	require.NoError(t, a.Save(dir))

	loaded, err := LoadAutosave(dir)
	require.NoError(t, err)
	assert.Equal(t, int32(42), loaded.DisplayBrightness)
}

func TestHealStateMapReplacesDanglingReference(t *testing.T) {
	defaults := profile.NewDefaultTable(&profile.Profile{ID: "default-A"})
	s := New("default-A")
	s.StateMap[StateBattery] = "deleted-custom-profile"

	healed := s.HealStateMap(defaults, "default-A")
	assert.Contains(t, healed, StateBattery)
	assert.Equal(t, "default-A", s.StateMap[StateBattery])
}

func TestHealStateMapKeepsValidCustomProfile(t *testing.T) {
	defaults := profile.NewDefaultTable(&profile.Profile{ID: "default-A"})
	s := New("default-A")
	s.Profiles["custom-B"] = []byte(`{"id":"custom-B"}`)
	s.StateMap[StateWaterCooler] = "custom-B"

	healed := s.HealStateMap(defaults, "default-A")
	assert.NotContains(t, healed, StateWaterCooler)
	assert.Equal(t, "custom-B", s.StateMap[StateWaterCooler])
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
