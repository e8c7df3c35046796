package universe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/breakscan/internal/contracts"
	"github.com/wonny/breakscan/pkg/config"
	"github.com/wonny/breakscan/pkg/logger"
)

const sampleYAML = `
primary: [msft, AAPL, AAPL]
secondary: [NVDA, INTC]
sectors:
  Technology: [AAPL, MSFT, NVDA, INTC, ORCL]
  Energy: [XOM, CVX]
  Financials: [JPM]
`

func TestEmbeddedSource(t *testing.T) {
	u, err := EmbeddedSource{}.Load(context.Background())
	require.NoError(t, err)

	assert.Greater(t, u.Count(), 100)
	assert.NotEmpty(t, u.Primary())
	assert.NotEmpty(t, u.Secondary())

	// every tier member has a real sector
	for _, sym := range append(u.Primary(), u.Secondary()...) {
		sector, ok := u.Sector(sym)
		require.True(t, ok, sym)
		assert.NotEqual(t, "Unknown", sector, sym)
	}
}

func TestParse(t *testing.T) {
	u, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT", "AAPL"}, u.Primary(), "normalized and deduped")
	assert.Equal(t, []string{"NVDA", "INTC"}, u.Secondary())
	assert.Equal(t, 8, u.Count())

	sector, ok := u.Sector("XOM")
	require.True(t, ok)
	assert.Equal(t, "Energy", sector)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "primery: [AAPL]\n"},
		{"duplicate sector", "sectors:\n  Energy: [XOM]\n  Materials: [XOM]\n"},
		{"empty", "sectors: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	u, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, u.Contains("JPM"))

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Load(context.Background())
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	log := logger.Nop()

	src, err := NewSource(&config.Config{}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, EmbeddedSource{}, src)

	cfg := &config.Config{Universe: config.UniverseConfig{Source: config.UniverseFile, File: "u.yaml"}}
	src, err = NewSource(cfg, nil, log)
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "u.yaml"}, src)

	cfg = &config.Config{Universe: config.UniverseConfig{Source: config.UniversePostgres}}
	_, err = NewSource(cfg, nil, log)
	assert.Error(t, err, "postgres without a database")

	cfg = &config.Config{Universe: config.UniverseConfig{Source: "s3"}}
	_, err = NewSource(cfg, nil, log)
	assert.Error(t, err)
}

func TestFromRows(t *testing.T) {
	u, err := fromRows([]symbolRow{
		{Symbol: "AAPL", Sector: "Technology", IndexTier: contracts.TierPrimary},
		{Symbol: "MSFT", Sector: "Technology", IndexTier: contracts.TierPrimary},
		{Symbol: "INTC", Sector: "Technology", IndexTier: contracts.TierSecondary},
		{Symbol: "XOM", Sector: "Energy"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, u.Primary())
	assert.Equal(t, []string{"INTC"}, u.Secondary())
	assert.Equal(t, contracts.TierOther, u.Tier("XOM"))
}

func TestCandidates(t *testing.T) {
	u, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	tests := []struct {
		name   string
		sector string
		limit  int
		want   []string
	}{
		{"priority order", "", 0, []string{"MSFT", "AAPL", "NVDA", "INTC", "CVX", "JPM", "ORCL", "XOM"}},
		{"limit truncates after ordering", "", 3, []string{"MSFT", "AAPL", "NVDA"}},
		{"sector before limit", "energy", 1, []string{"CVX"}},
		{"sector keeps tier order", "Technology", 0, []string{"MSFT", "AAPL", "NVDA", "INTC", "ORCL"}},
		{"unknown sector", "Utilities", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(u, tt.sector, tt.limit))
		})
	}

	assert.Nil(t, Candidates(nil, "", 0))
}

func TestPostgresSource_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err, "database connection failed")
	defer pool.Close()

	u, err := NewPostgresSource(pool, logger.Nop()).Load(ctx)
	if err != nil {
		t.Skipf("scanner.symbols not available: %v", err)
	}
	assert.Greater(t, u.Count(), 0)
}
