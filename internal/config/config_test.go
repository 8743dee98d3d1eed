package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/cache"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/model"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/pruner"
	"github.com/danielpatrickdp/torchcat/go-constraints/internal/solution"
)

const sampleConfig = `
model: resnet-mini.yaml
pruner:
  kind: channel
constraints:
  - type: l0norm
    relation: "<="
    budget: 10
  - type: all
    children:
      - type: channel
cache:
  kind: sqlite
  path: cache.db
workers: 8
log_db: runs.db
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feasible.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testNetwork(t *testing.T) *model.Network {
	t.Helper()
	n, err := model.NewNetwork("cfg-net",
		&model.Layer{Name: "conv", Kind: model.KindConv2D, Prunable: true, Weight: model.NewTensor(4, 3, 3, 3)},
		&model.Layer{Name: "fc", Kind: model.KindLinear, Weight: model.NewTensor(2, 4)},
	)
	require.NoError(t, err)
	return n
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "resnet-mini.yaml", cfg.Model)
	assert.Equal(t, "sqlite", cfg.Cache.Kind)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "runs.db", cfg.LogDB)
	require.Len(t, cfg.Constraints, 2)
	assert.Equal(t, int64(10), cfg.Constraints[0].Budget)
	assert.Equal(t, "channel", cfg.Constraints[1].Children[0].Type)

	timeout, err := cfg.PrunerTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout, "unset fields keep their defaults")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEASIBLE_MODEL", "other.yaml")
	t.Setenv("FEASIBLE_PRUNER_ADDR", "localhost:50052")
	t.Setenv("FEASIBLE_WORKERS", "2")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "other.yaml", cfg.Model)
	assert.Equal(t, "remote", cfg.Pruner.Kind)
	assert.Equal(t, "localhost:50052", cfg.Pruner.Addr)
	assert.Equal(t, 2, cfg.Workers)
}

func TestEnvOverrideBadWorkers(t *testing.T) {
	t.Setenv("FEASIBLE_WORKERS", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown pruner", "pruner: {kind: magic}"},
		{"remote without addr", "pruner: {kind: remote}"},
		{"bad timeout", "pruner: {kind: channel, timeout: soon}"},
		{"sqlite without path", "cache: {kind: sqlite}"},
		{"zero workers", "workers: 0"},
		{"unknown constraint", "constraints: [{type: latency}]"},
		{"bad relation", `constraints: [{type: l0norm, relation: "~", budget: 1}]`},
		{"nested bad relation", `constraints: [{type: all, children: [{type: l0norm, relation: "=>"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestBuildTree(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	mem := cache.NewMemory()
	tree, err := cfg.BuildTree(Deps{Model: testNetwork(t), Pruner: pruner.NewChannelPruner(), Cache: mem})
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())

	ok, err := tree.Feasible(solution.MustNew(3))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tree.Feasible(solution.MustNew(4))
	require.NoError(t, err)
	assert.False(t, ok, "pruning every channel is structurally invalid")
	assert.Equal(t, 2, mem.Stats().Entries)

	_, err = tree.Feasible(solution.MustNew(1, 1))
	assert.ErrorIs(t, err, solution.ErrMalformed)
}

func TestBuildChannelNeedsCollaborators(t *testing.T) {
	_, err := ConstraintSpec{Type: "channel"}.Build(Deps{})
	assert.Error(t, err)
}
