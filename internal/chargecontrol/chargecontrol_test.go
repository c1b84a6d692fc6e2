package chargecontrol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNode(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTypeAndOnline(t *testing.T) {
	dir := t.TempDir()
	writeNode(t, dir, "type", "Battery\n")
	writeNode(t, dir, "online", "0\n")

	s := New(dir)
	assert.Equal(t, TypeBattery, s.Type())
	assert.False(t, s.IsOnline())
}

func TestMainsOnline(t *testing.T) {
	dir := t.TempDir()
	writeNode(t, dir, "type", "Mains\n")
	writeNode(t, dir, "online", "1\n")

	s := New(dir)
	assert.Equal(t, TypeMains, s.Type())
	assert.True(t, s.IsOnline())
}

func TestChargeThresholdsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeNode(t, dir, "charge_control_start_threshold", "40\n")
	writeNode(t, dir, "charge_control_end_threshold", "80\n")

	s := New(dir)
	assert.Equal(t, 40, s.ChargeControlStartThreshold())
	assert.Equal(t, 80, s.ChargeControlEndThreshold())
	assert.True(t, s.SetChargeControlStartThreshold(50))
}

func TestChargeThresholdUnavailableWhenMissing(t *testing.T) {
	s := New(t.TempDir())
	assert.Equal(t, ChargeThresholdUnavailable, s.ChargeControlStartThreshold())
	assert.Equal(t, ChargeThresholdUnavailable, s.ChargeControlEndThreshold())
}

func TestChargeTypeKnownAndUnknown(t *testing.T) {
	dir := t.TempDir()
	writeNode(t, dir, "charge_type", "Standard\n")
	assert.Equal(t, ChargeTypeStandard, New(dir).ChargeType())

	dir2 := t.TempDir()
	writeNode(t, dir2, "charge_type", "SomethingNew\n")
	assert.Equal(t, ChargeTypeUnknown, New(dir2).ChargeType())
}

func TestAvailableThresholds(t *testing.T) {
	dir := t.TempDir()
	writeNode(t, dir, "charge_control_start_available_thresholds", "0 20 40 60\n")

	s := New(dir)
	assert.Equal(t, []int32{0, 20, 40, 60}, s.ChargeControlStartAvailableThresholds())
}

func TestBatteriesAndFirstBattery(t *testing.T) {
	root := t.TempDir()
	bat := filepath.Join(root, "BAT0")
	mains := filepath.Join(root, "AC")
	require.NoError(t, os.MkdirAll(bat, 0o755))
	require.NoError(t, os.MkdirAll(mains, 0o755))
	writeNode(t, bat, "type", "Battery\n")
	writeNode(t, mains, "type", "Mains\n")

	original := powerSupplyRoot
	powerSupplyRoot = root
	defer func() { powerSupplyRoot = original }()

	batteries := Batteries()
	require.Len(t, batteries, 1)
	assert.Equal(t, bat, batteries[0].basePath)

	first := FirstBattery()
	require.NotNil(t, first)
	assert.Equal(t, bat, first.basePath)
}
