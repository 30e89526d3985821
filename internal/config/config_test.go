package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goodmartian/beacon/internal/ledger"
	"github.com/goodmartian/beacon/internal/mesh"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:4780", cfg.Listen)
	assert.Equal(t, "127.0.0.1:9478", cfg.MetricsListen)
	assert.Equal(t, ledger.DefaultWindow, cfg.DedupWindow())
	assert.NotEmpty(t, cfg.DataDir)
	assert.Nil(t, cfg.HopBudgets())
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
data_dir: /var/lib/beacon
listen: 0.0.0.0:5000
bootstrap:
  - 10.0.0.2:4780
  - 10.0.0.3:4780
metrics_listen: 127.0.0.1:9100
mesh:
  dedup_window: 2m
  hop_budgets:
    sos: 15
    text: 4
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/beacon", cfg.DataDir)
	assert.Equal(t, []string{"10.0.0.2:4780", "10.0.0.3:4780"}, cfg.Bootstrap)
	assert.Equal(t, 2*time.Minute, cfg.DedupWindow())

	budgets := cfg.HopBudgets()
	assert.Equal(t, uint8(15), budgets[mesh.KindSOS])
	assert.Equal(t, uint8(4), budgets[mesh.KindText])
	_, ok := budgets[mesh.KindMedical]
	assert.False(t, ok)
}

func TestParseEmptyGetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultWindow, cfg.DedupWindow())
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte("mesh:\n  hop_budgets:\n    smoke_signal: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smoke_signal")
}

func TestParseRejectsZeroBudget(t *testing.T) {
	_, err := Parse([]byte("mesh:\n  hop_budgets:\n    sos: 0\n"))
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("listen: [not, a, string"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}
