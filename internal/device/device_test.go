package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSKU(t *testing.T, sku string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product_sku"), []byte(sku+"\n"), 0o644))
	return dir
}

func TestIdentifyBySKU(t *testing.T) {
	dir := writeSKU(t, "STELLARIS1XI04")
	id := Identify(dir, "")
	assert.Equal(t, STELLARIS1XI04, id)
}

func TestIdentifyFallsBackToModuleID(t *testing.T) {
	dir := t.TempDir() // no product_sku file at all
	id := Identify(dir, "19")
	assert.Equal(t, IBP14G6TUX, id)
}

func TestIdentifyUnknown(t *testing.T) {
	dir := writeSKU(t, "NOT_A_REAL_SKU")
	id := Identify(dir, "9999")
	assert.Equal(t, Unknown, id)
}

func TestCapabilitiesForWaterCoolerDevice(t *testing.T) {
	caps := CapabilitiesFor(STELLARIS1XI04)
	assert.True(t, caps.WaterCoolerSupported)
	assert.True(t, caps.CTGPAdjustmentSupported)
}

func TestCapabilitiesForCTGPHiddenDevice(t *testing.T) {
	caps := CapabilitiesFor(IBPG8)
	assert.False(t, caps.WaterCoolerSupported)
	assert.False(t, caps.CTGPAdjustmentSupported)
}

func TestCapabilitiesForUnknownDisablesBoth(t *testing.T) {
	caps := CapabilitiesFor(Unknown)
	assert.False(t, caps.WaterCoolerSupported)
	assert.False(t, caps.CTGPAdjustmentSupported)
}
