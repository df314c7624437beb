package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAllocationConfig_DefaultsWhenFileMissing(t *testing.T) {
	holder, err := loadAllocationConfig(t.TempDir())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "DEFAULT", cfg.DefaultStepCode)
	assert.Equal(t, RatioPolicyWarn, cfg.RatioPolicy)
	assert.True(t, cfg.EnforceOnWrite)
	assert.True(t, cfg.RefreshStaleOnRead)
	assert.Equal(t, "0.000001", cfg.ToleranceDecimal().String())
}

func TestLoadAllocationConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`allocation:
  tolerance: 0.0001
  defaultStepCode: "LUMP"
  ratioPolicy: "REJECT"
  enforceOnWrite: false
  unassignedLabel: "unassigned"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "allocation.yml"), content, 0o600))

	holder, err := loadAllocationConfig(dir)
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "LUMP", cfg.DefaultStepCode)
	assert.True(t, cfg.Rejects())
	assert.False(t, cfg.EnforceOnWrite)
	assert.True(t, cfg.RefreshStaleOnRead)
	assert.Equal(t, "unassigned", cfg.UnassignedLabel)
	assert.Equal(t, "0.0001", cfg.ToleranceDecimal().String())
}

func TestLoadAllocationConfig_RejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	content := []byte("allocation:\n  ratioPolicy: ignore\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "allocation.yml"), content, 0o600))

	_, err := loadAllocationConfig(dir)
	assert.Error(t, err)
}

func TestAllocationConfigHolder_NilFallsBackToDefaults(t *testing.T) {
	var holder *AllocationConfigHolder
	assert.Equal(t, DefaultAllocationConfig(), holder.Get())

	static := NewStaticAllocationConfigHolder(AllocationConfig{Tolerance: 0.01})
	cfg := static.Get()
	assert.Equal(t, "DEFAULT", cfg.DefaultStepCode)
	assert.Equal(t, RatioPolicyWarn, cfg.RatioPolicy)
}
