package config

import (
	"os"
	"path/filepath"
	"testing"

	"binroute/internal/opt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCasesSequenceAndLiteral(t *testing.T) {
	data := []byte(`
seq:
  - [0, 1, 2]
  - [1, 0, 1]
  - [2, 1, 0]
literal: "[[0, 3], [4, 0]]"
`)
	c, err := ParseCases(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"literal", "seq"}, c.Names())

	m, err := c.Get("literal")
	require.NoError(t, err)
	assert.Equal(t, opt.DistanceMatrix{{0, 3}, {4, 0}}, m)

	m, err = c.Get("seq")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Clients())

	_, err = c.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownCase)
}

func TestParseCasesRejectsBadMatrix(t *testing.T) {
	for name, data := range map[string]string{
		"ragged":   "bad: [[0, 1], [1]]",
		"negative": "bad: \"[[0, -1], [1, 0]]\"",
		"single":   "bad: [[0]]",
	} {
		_, err := ParseCases([]byte(data))
		assert.ErrorIs(t, err, opt.ErrInvalidMatrix, name)
		assert.ErrorContains(t, err, "case bad", name)
	}

	_, err := ParseCases([]byte("bad:\n  a: 1\n"))
	assert.Error(t, err)
	_, err = ParseCases([]byte(`bad: "[[0, x]]"`))
	assert.Error(t, err)
}

func TestLoadCasesFile(t *testing.T) {
	c, err := LoadCases(filepath.Join("..", "..", "configs", "cases.yaml"))
	require.NoError(t, err)
	for _, name := range []string{"test1", "test2", "test3"} {
		_, err := c.Get(name)
		assert.NoError(t, err, name)
	}

	_, err = LoadCases(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("OPTIMIZE_RATE_RPS", "2.5")
	t.Setenv("LAHC_MAX_RESTARTS", "not-a-number")
	t.Setenv("DB_MIGRATE", "false")

	s := FromEnv()
	assert.Equal(t, "9999", s.Port)
	assert.Equal(t, 2.5, s.RateRPS)
	assert.Equal(t, 16, s.MaxRestarts)
	assert.False(t, s.DBMigrate)
	assert.Equal(t, 1000, s.HistoryLength)
}
